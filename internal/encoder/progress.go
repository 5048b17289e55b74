package encoder

import (
	"strconv"
	"strings"
)

// progressTracker converts ffmpeg -progress key=value lines into percentages.
type progressTracker struct {
	expected float64
	last     float64
}

func newProgressTracker(expectedSeconds float64) *progressTracker {
	return &progressTracker{expected: expectedSeconds, last: -1}
}

// feed returns the new percentage when the line advances progress.
func (p *progressTracker) feed(line string) (float64, bool) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return 0, false
	}
	var pct float64
	switch key {
	case "out_time_us", "out_time_ms":
		// ffmpeg reports both keys in microseconds.
		us, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil || us < 0 || p.expected <= 0 {
			return 0, false
		}
		pct = float64(us) / 1e6 / p.expected * 100
		if pct > 99 {
			pct = 99
		}
	case "progress":
		if strings.TrimSpace(value) != "end" {
			return 0, false
		}
		pct = 100
	default:
		return 0, false
	}
	if pct <= p.last {
		return 0, false
	}
	p.last = pct
	return pct, true
}
