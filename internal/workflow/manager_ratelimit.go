package workflow

import (
	"time"

	"golang.org/x/time/rate"
)

// reserve takes a rate token for the next job. When the lane is throttled it
// returns the wait instead and holds nothing. Callers cancel the reservation
// when no job was claimed so idle polling does not drain the allowance.
func (m *Manager) reserve(lane *laneState) (*rate.Reservation, time.Duration) {
	if lane.limiter == nil {
		return nil, 0
	}
	r := lane.limiter.Reserve()
	if !r.OK() {
		return nil, m.pollInterval
	}
	if delay := r.Delay(); delay > 0 {
		r.Cancel()
		return nil, delay
	}
	return r, 0
}
