package hub

import (
	"context"
	"time"

	"go.uber.org/zap"

	"acars_hub/internal/message"
	"acars_hub/internal/storage"
)

// Maintenance runs the periodic housekeeping loop: per-minute counter
// snapshots pushed to live clients, and a daily retention prune.
type Maintenance struct {
	stats         *Stats
	store         *storage.Store
	sink          Sink
	saveDays      int
	alertSaveDays int
	log           *zap.Logger

	lastPrune time.Time
}

func NewMaintenance(stats *Stats, store *storage.Store, sink Sink, saveDays, alertSaveDays int, log *zap.Logger) *Maintenance {
	return &Maintenance{
		stats:         stats,
		store:         store,
		sink:          sink,
		saveDays:      saveDays,
		alertSaveDays: alertSaveDays,
		log:           log,
	}
}

// Serve ticks once a minute until ctx is canceled.
func (m *Maintenance) Serve(ctx context.Context) error {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			m.tick(now)
		}
	}
}

func (m *Maintenance) tick(now time.Time) {
	perSource := make(map[string]map[string]int64, len(message.SourceTypes))
	for _, source := range message.SourceTypes {
		received, errs := m.stats.Source(source).Snapshot()
		perSource[string(source)] = map[string]int64{"received": received, "errors": errs}
		if received > 0 {
			m.log.Info("per-minute message totals",
				zap.String("source", string(source)),
				zap.Int64("received", received),
				zap.Int64("errors", errs))
		}
	}

	if m.sink != nil && m.sink.HasClients() {
		payload := map[string]any{"sources": perSource}
		if counters, err := m.store.GetCounters(); err == nil {
			payload["counters"] = counters
		}
		m.sink.Deliver("system_status", payload)
	}

	if now.Sub(m.lastPrune) >= 24*time.Hour {
		m.lastPrune = now
		pruned, err := m.store.Prune(now, m.saveDays, m.alertSaveDays)
		if err != nil {
			m.log.Error("retention prune failed", zap.Error(err))
			return
		}
		m.log.Info("retention prune complete", zap.Int64("pruned", pruned))
	}
}
