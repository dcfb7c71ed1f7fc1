package hub

import (
	"sync/atomic"

	"acars_hub/internal/message"
)

// SourceStats holds the per-minute running counters one listener maintains.
// The counters are read and reset by the maintenance scheduler; plain atomics
// are enough, the values are best-effort snapshots.
type SourceStats struct {
	Received atomic.Int64
	Errors   atomic.Int64
}

// Snapshot returns the current counts and resets them to zero.
func (s *SourceStats) Snapshot() (received, errors int64) {
	return s.Received.Swap(0), s.Errors.Swap(0)
}

// Stats is the per-source counter registry shared between the listeners and
// the scheduler. Construct with NewStats; the map is never mutated after.
type Stats struct {
	sources map[message.SourceType]*SourceStats
}

func NewStats() *Stats {
	sources := make(map[message.SourceType]*SourceStats, len(message.SourceTypes))
	for _, s := range message.SourceTypes {
		sources[s] = &SourceStats{}
	}
	return &Stats{sources: sources}
}

// Source returns the counter block for one decoder source.
func (s *Stats) Source(source message.SourceType) *SourceStats {
	return s.sources[source]
}
