package hub

import (
	"context"

	"go.uber.org/zap"

	"acars_hub/internal/alerts"
	"acars_hub/internal/message"
	"acars_hub/internal/metrics"
	"acars_hub/internal/storage"
)

// Feed is an optional egress sink receiving every persisted message.
type Feed interface {
	Publish(m *message.Stored) error
}

// Writer is the single consumer of the persistence queue. Each message is
// normalized, alert-evaluated, and committed as one transaction; a failed
// write is logged and the writer moves on.
type Writer struct {
	queue   *Queue
	store   *storage.Store
	backup  storage.Backup
	feed    Feed
	matcher *alerts.Matcher
	norm    *message.Normalizer
	saveAll bool
	log     *zap.Logger
}

// NewWriter builds the persistence consumer. backup and feed may be nil.
func NewWriter(queue *Queue, store *storage.Store, backup storage.Backup, feed Feed, matcher *alerts.Matcher, saveAll bool, log *zap.Logger) *Writer {
	return &Writer{
		queue:   queue,
		store:   store,
		backup:  backup,
		feed:    feed,
		matcher: matcher,
		norm:    message.NewNormalizer(log),
		saveAll: saveAll,
		log:     log,
	}
}

// Serve drains the queue until ctx is canceled.
func (w *Writer) Serve(ctx context.Context) error {
	for {
		item, err := w.queue.Pop(ctx)
		if err != nil {
			return err
		}
		w.process(ctx, item)
	}
}

func (w *Writer) process(ctx context.Context, item Item) {
	p := w.norm.Normalize(item.Raw)
	store := message.HasPayload(item.Raw) || w.saveAll

	var matches []alerts.Match
	if store {
		matches = w.matcher.EvaluateText(p.Text)
	}

	stored, err := w.store.AddMessage(item.Source, p, store, matches)
	if err != nil {
		metrics.WriteFailures.Inc()
		w.log.Error("message write failed",
			zap.String("source", string(item.Source)), zap.Error(err))
		return
	}
	if stored == nil {
		return
	}

	metrics.MessagesSaved.Inc()
	for _, m := range matches {
		metrics.AlertMatches.WithLabelValues(m.Term).Inc()
		w.log.Info("alert term matched",
			zap.String("term", m.Term),
			zap.String("type", m.Type),
			zap.String("uid", stored.UID))
	}

	// The backup write is independent: its failure never unwinds the
	// primary commit.
	if w.backup != nil {
		if err := w.backup.WriteMessage(ctx, stored); err != nil {
			metrics.BackupWriteFailures.Inc()
			w.log.Warn("backup write failed", zap.String("uid", stored.UID), zap.Error(err))
		}
	}

	if w.feed != nil {
		if err := w.feed.Publish(stored); err != nil {
			w.log.Warn("feed publish failed", zap.String("uid", stored.UID), zap.Error(err))
		}
	}
}
