package poller

import (
	"sync"
	"time"

	"humidity-monitor/internal/types"
)

// Status is a point-in-time view of the loop, safe to read from other goroutines.
type Status struct {
	Cycles              int           `json:"cycles"`
	Samples             int           `json:"samples"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	LastSample          *types.Sample `json:"-"`
	LastSampleAt        time.Time     `json:"last_sample_at,omitzero"`
	LastError           string        `json:"last_error,omitempty"`
}

type statusTracker struct {
	mu sync.RWMutex
	s  Status
}

func (t *statusTracker) record(sample *types.Sample, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s.Cycles++
	if err != nil {
		t.s.ConsecutiveFailures++
		t.s.LastError = err.Error()
		return
	}
	t.s.ConsecutiveFailures = 0
	t.s.LastError = ""
	if sample != nil {
		cp := *sample
		t.s.Samples++
		t.s.LastSample = &cp
		t.s.LastSampleAt = cp.Timestamp
	}
}

func (t *statusTracker) snapshot() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s := t.s
	if s.LastSample != nil {
		cp := *s.LastSample
		s.LastSample = &cp
	}
	return s
}
