package queue_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"splicer/internal/queue"
	"splicer/internal/services"
	"splicer/internal/testsupport"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time          { return c.now }
func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newStore(t *testing.T) (*queue.Store, *clock) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Queue.MaxAttempts = 3
	store := testsupport.MustOpenStore(t, cfg)
	c := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store.SetClock(c.Now)
	return store, c
}

func TestBackoffDelayDoublesAndCaps(t *testing.T) {
	b := queue.Backoff{Base: time.Second, Max: 10 * time.Second}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second, 10 * time.Second}
	for i, w := range want {
		if got := b.Delay(i + 1); got != w {
			t.Fatalf("Delay(%d) = %v, want %v", i+1, got, w)
		}
	}
	if got := b.Delay(0); got != time.Second {
		t.Fatalf("Delay(0) = %v, want base", got)
	}
}

func TestEnqueueAndClaimFollowsEnqueueOrder(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 3; i++ {
		job, err := store.Enqueue(ctx, queue.TypeTranscode, queue.TranscodePayload{ExportID: fmt.Sprintf("e%d", i)}, queue.WithArtifact("art-1"))
		if err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
		if job.State != queue.StateWaiting || job.ArtifactID != "art-1" {
			t.Fatalf("unexpected job after enqueue: %+v", job)
		}
		ids = append(ids, job.ID)
	}
	if _, err := store.Enqueue(ctx, queue.TypeTransfer, queue.TransferPayload{ArtifactID: "x"}); err != nil {
		t.Fatalf("Enqueue transfer: %v", err)
	}

	for i, want := range ids {
		job, err := store.Claim(ctx, queue.TypeTranscode, "worker-1")
		if err != nil {
			t.Fatalf("Claim: %v", err)
		}
		if job == nil || job.ID != want {
			t.Fatalf("claim %d returned %+v, want id %d", i, job, want)
		}
		if job.State != queue.StateActive || job.Attempts != 1 || job.OwnerID != "worker-1" {
			t.Fatalf("claimed job not active: %+v", job)
		}
		var payload queue.TranscodePayload
		if err := job.Decode(&payload); err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if payload.ExportID != fmt.Sprintf("e%d", i) {
			t.Fatalf("payload = %+v", payload)
		}
	}
	job, err := store.Claim(ctx, queue.TypeTranscode, "worker-1")
	if err != nil || job != nil {
		t.Fatalf("expected empty claim, got %+v, %v", job, err)
	}
}

func TestEnqueueRejectsUnknownType(t *testing.T) {
	store, _ := newStore(t)
	if _, err := store.Enqueue(context.Background(), queue.Type("ripping"), nil); err == nil {
		t.Fatal("expected error for unknown type")
	}
}

func TestDelayedJobNotClaimedEarly(t *testing.T) {
	store, c := newStore(t)
	ctx := context.Background()
	if _, err := store.Enqueue(ctx, queue.TypeTransfer, queue.TransferPayload{}, queue.WithDelay(time.Minute)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if job, _ := store.Claim(ctx, queue.TypeTransfer, "w"); job != nil {
		t.Fatalf("claimed delayed job early: %+v", job)
	}
	c.Advance(time.Minute)
	if job, _ := store.Claim(ctx, queue.TypeTransfer, "w"); job == nil {
		t.Fatal("expected delayed job to be claimable")
	}
}

func TestRepeatedFailureReachesFailedAfterMaxAttempts(t *testing.T) {
	store, c := newStore(t)
	ctx := context.Background()
	backoff := queue.Backoff{Base: time.Second, Max: time.Hour}
	cause := services.Wrap(services.ErrProcessing, "transcode", "encode", "ffmpeg exited 1", nil)

	job, err := store.Enqueue(ctx, queue.TypeTranscode, queue.TranscodePayload{})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	var delays []time.Duration
	for attempt := 1; ; attempt++ {
		claimed, err := store.Claim(ctx, queue.TypeTranscode, "w")
		if err != nil || claimed == nil {
			t.Fatalf("attempt %d: claim = %+v, %v", attempt, claimed, err)
		}
		out, err := store.Fail(ctx, claimed.ID, cause, backoff, services.Retryable(cause))
		if err != nil {
			t.Fatalf("Fail: %v", err)
		}
		if out.Attempts != attempt {
			t.Fatalf("outcome attempts = %d, want %d", out.Attempts, attempt)
		}
		if out.Terminal {
			if attempt != 3 {
				t.Fatalf("terminal after %d attempts, want 3", attempt)
			}
			break
		}
		delays = append(delays, out.Delay)
		c.Advance(out.Delay)
	}

	for i := 1; i < len(delays); i++ {
		if delays[i] <= delays[i-1] {
			t.Fatalf("delays not strictly increasing: %v", delays)
		}
	}
	final, err := store.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if final.State != queue.StateFailed || final.ErrorKind != "processing_failure" || final.FinishedAt == nil {
		t.Fatalf("final job = %+v", final)
	}
}

func TestNonRetryableFailureIsTerminal(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()
	if _, err := store.Enqueue(ctx, queue.TypeTranscribe, queue.TranscribePayload{}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	job, _ := store.Claim(ctx, queue.TypeTranscribe, "w")
	cause := services.Wrap(services.ErrValidation, "transcribe", "decode", "missing artifact id", nil)
	out, err := store.Fail(ctx, job.ID, cause, queue.Backoff{Base: time.Second}, services.Retryable(cause))
	if err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if !out.Terminal || out.Attempts != 1 {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestProgressCompleteAndHeartbeat(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()
	if _, err := store.Enqueue(ctx, queue.TypeTransfer, queue.TransferPayload{}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	job, _ := store.Claim(ctx, queue.TypeTransfer, "w")

	if err := store.UpdateProgress(ctx, job.ID, 140); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	got, _ := store.Get(ctx, job.ID)
	if got.Progress != 100 {
		t.Fatalf("progress = %v, want clamp to 100", got.Progress)
	}
	if err := store.UpdateProgress(ctx, job.ID, 100.0/3); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	got, _ = store.Get(ctx, job.ID)
	if got.Progress != 33 {
		t.Fatalf("progress = %v, want whole percent 33", got.Progress)
	}

	cancel, err := store.UpdateHeartbeat(ctx, job.ID)
	if err != nil || cancel {
		t.Fatalf("UpdateHeartbeat = %v, %v", cancel, err)
	}
	if err := store.RequestCancel(ctx, job.ID); err != nil {
		t.Fatalf("RequestCancel: %v", err)
	}
	if cancel, _ := store.UpdateHeartbeat(ctx, job.ID); !cancel {
		t.Fatal("expected cancel flag after RequestCancel")
	}

	if err := store.Complete(ctx, job.ID, map[string]string{"url": "https://x"}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	got, _ = store.Get(ctx, job.ID)
	if got.State != queue.StateCompleted || string(got.Result) != `{"url":"https://x"}` {
		t.Fatalf("completed job = %+v", got)
	}
	if _, err := store.UpdateHeartbeat(ctx, job.ID); !errors.Is(err, queue.ErrNotActive) {
		t.Fatalf("heartbeat on completed job err = %v", err)
	}
}

func TestRemoveOnlyWaiting(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()
	first, _ := store.Enqueue(ctx, queue.TypeTranscode, queue.TranscodePayload{})
	second, _ := store.Enqueue(ctx, queue.TypeTranscode, queue.TranscodePayload{})

	if _, err := store.Claim(ctx, queue.TypeTranscode, "w"); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if err := store.Remove(ctx, first.ID); !errors.Is(err, queue.ErrNotRemovable) {
		t.Fatalf("Remove active err = %v, want ErrNotRemovable", err)
	}
	if err := store.Remove(ctx, second.ID); err != nil {
		t.Fatalf("Remove waiting: %v", err)
	}
	if got, _ := store.Get(ctx, second.ID); got != nil {
		t.Fatalf("removed job still present: %+v", got)
	}
	if err := store.Remove(ctx, 9999); !errors.Is(err, queue.ErrJobNotFound) {
		t.Fatalf("Remove missing err = %v", err)
	}
	if err := store.RequestCancel(ctx, second.ID); !errors.Is(err, queue.ErrJobNotFound) {
		t.Fatalf("RequestCancel missing err = %v", err)
	}
}

func TestMarkCancelledAndRetry(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()
	job, _ := store.Enqueue(ctx, queue.TypeTranscode, queue.TranscodePayload{})
	if _, err := store.Claim(ctx, queue.TypeTranscode, "w"); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if err := store.MarkCancelled(ctx, job.ID); err != nil {
		t.Fatalf("MarkCancelled: %v", err)
	}
	got, _ := store.Get(ctx, job.ID)
	if got.State != queue.StateFailed || got.ErrorKind != "cancelled" {
		t.Fatalf("cancelled job = %+v", got)
	}

	n, err := store.Retry(ctx, job.ID)
	if err != nil || n != 1 {
		t.Fatalf("Retry = %d, %v", n, err)
	}
	got, _ = store.Get(ctx, job.ID)
	if got.State != queue.StateWaiting || got.Attempts != 0 || got.Error != "" {
		t.Fatalf("retried job = %+v", got)
	}
}

func TestReclaimStaleAndResetActive(t *testing.T) {
	store, c := newStore(t)
	ctx := context.Background()
	fresh, _ := store.Enqueue(ctx, queue.TypeTransfer, queue.TransferPayload{})
	exhausted, _ := store.Enqueue(ctx, queue.TypeTranscode, queue.TranscodePayload{}, queue.WithMaxAttempts(1))

	if _, err := store.Claim(ctx, queue.TypeTransfer, "w"); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if _, err := store.Claim(ctx, queue.TypeTranscode, "w"); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	c.Advance(10 * time.Minute)
	n, err := store.ReclaimStale(ctx, c.Now().Add(-5*time.Minute))
	if err != nil || n != 2 {
		t.Fatalf("ReclaimStale = %d, %v", n, err)
	}
	if got, _ := store.Get(ctx, fresh.ID); got.State != queue.StateWaiting {
		t.Fatalf("fresh job state = %s, want waiting", got.State)
	}
	if got, _ := store.Get(ctx, exhausted.ID); got.State != queue.StateFailed {
		t.Fatalf("exhausted job state = %s, want failed", got.State)
	}

	if _, err := store.Claim(ctx, queue.TypeTransfer, "w"); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	n, err = store.ResetActive(ctx)
	if err != nil || n != 1 {
		t.Fatalf("ResetActive = %d, %v", n, err)
	}
	got, _ := store.Get(ctx, fresh.ID)
	if got.State != queue.StateWaiting || got.Attempts != 1 {
		t.Fatalf("reset job = %+v", got)
	}
}

func TestListStatsHealthAndClear(t *testing.T) {
	store, c := newStore(t)
	ctx := context.Background()
	a, _ := store.Enqueue(ctx, queue.TypeTranscode, queue.TranscodePayload{}, queue.WithArtifact("a"))
	if _, err := store.Enqueue(ctx, queue.TypeTransfer, queue.TransferPayload{}, queue.WithArtifact("b")); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := store.Claim(ctx, queue.TypeTranscode, "w"); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if err := store.Complete(ctx, a.ID, nil); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	jobs, err := store.List(ctx, queue.Filter{ArtifactID: "a"})
	if err != nil || len(jobs) != 1 || jobs[0].ID != a.ID {
		t.Fatalf("List by artifact = %+v, %v", jobs, err)
	}
	jobs, _ = store.List(ctx, queue.Filter{States: []queue.State{queue.StateWaiting}})
	if len(jobs) != 1 || jobs[0].Type != queue.TypeTransfer {
		t.Fatalf("List waiting = %+v", jobs)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[queue.TypeTranscode][queue.StateCompleted] != 1 || stats[queue.TypeTransfer].Total() != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	health := store.CheckHealth(ctx)
	if !health.DatabaseExists || !health.DatabaseReadable || !health.TableExists || health.SchemaVersion != 2 {
		t.Fatalf("health = %+v", health)
	}

	c.Advance(time.Hour)
	n, err := store.ClearFinished(ctx, c.Now())
	if err != nil || n != 1 {
		t.Fatalf("ClearFinished = %d, %v", n, err)
	}
}

func TestPercentRoundsAndClamps(t *testing.T) {
	cases := []struct {
		in   float64
		want int
	}{
		{-5, 0},
		{0.4, 0},
		{49.5, 50},
		{100.0 / 3, 33},
		{200.0 / 3, 67},
		{99.6, 100},
		{140, 100},
		{math.NaN(), 0},
	}
	for _, tc := range cases {
		if got := queue.Percent(tc.in); got != tc.want {
			t.Fatalf("Percent(%v) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
