package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"splicer/internal/logging"
	"splicer/internal/queue"
)

type stubStats struct {
	stats map[queue.Type]queue.Counts
	err   error
}

func (s stubStats) Stats(context.Context) (map[queue.Type]queue.Counts, error) {
	return s.stats, s.err
}

func TestCollectorSetsQueueGauges(t *testing.T) {
	c := NewCollector(stubStats{stats: map[queue.Type]queue.Counts{
		queue.TypeTranscode: {queue.StateWaiting: 3, queue.StateActive: 1},
	}}, 0, logging.NewNop())
	c.Collect(context.Background())

	if got := gaugeValue(t, QueueJobs.WithLabelValues("transcode", "waiting")); got != 3 {
		t.Fatalf("transcode waiting = %v, want 3", got)
	}
	if got := gaugeValue(t, QueueJobs.WithLabelValues("transfer", "failed")); got != 0 {
		t.Fatalf("transfer failed = %v, want 0", got)
	}
}

func TestCollectorKeepsGaugesOnError(t *testing.T) {
	QueueJobs.WithLabelValues("transcribe", "waiting").Set(7)
	c := NewCollector(stubStats{err: errors.New("locked")}, 0, logging.NewNop())
	c.Collect(context.Background())
	if got := gaugeValue(t, QueueJobs.WithLabelValues("transcribe", "waiting")); got != 7 {
		t.Fatalf("gauge changed on error: %v", got)
	}
}

func TestJobMetricsRegistered(t *testing.T) {
	counter := JobsFinishedTotal.WithLabelValues("transfer", "completed")
	counter.Inc()
	var m dto.Metric
	if err := counter.Write(&m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if m.GetCounter().GetValue() < 1 {
		t.Fatalf("counter = %v", m.GetCounter().GetValue())
	}
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return m.GetGauge().GetValue()
}
