package hub

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"acars_hub/internal/alerts"
	"acars_hub/internal/message"
	"acars_hub/internal/storage"
)

func testStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestWriterPersistsMessage(t *testing.T) {
	store := testStore(t)
	queue := NewQueue("persist", QueueCapacity)
	matcher := alerts.NewMatcher([]string{"mayday"}, nil)
	w := NewWriter(queue, store, nil, nil, matcher, false, zap.NewNop())

	w.process(context.Background(), Item{
		Source: message.SourceACARS,
		Raw: map[string]any{
			"timestamp": 1608428171.43,
			"freq":      "130.025",
			"text":      "MAYDAY ENGINE FIRE",
			"tail":      "N332FR",
		},
	})

	rows, total, err := store.Search(map[string]string{"tail": "N332FR"}, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if total != 1 || len(rows) != 1 {
		t.Fatalf("rows/total = %d/%d, want 1/1", len(rows), total)
	}
	if rows[0].Freq != "130.0250" {
		t.Errorf("Freq = %q, want padded %q", rows[0].Freq, "130.0250")
	}

	counts, err := store.AlertCounts()
	if err != nil {
		t.Fatalf("AlertCounts: %v", err)
	}
	if counts["MAYDAY"] != 1 {
		t.Errorf("MAYDAY count = %d, want 1", counts["MAYDAY"])
	}
}

func TestWriterEmptyMessageTalliedOnly(t *testing.T) {
	store := testStore(t)
	queue := NewQueue("persist", QueueCapacity)
	w := NewWriter(queue, store, nil, nil, alerts.NewMatcher(nil, nil), false, zap.NewNop())

	w.process(context.Background(), Item{
		Source: message.SourceVDLM2,
		Raw:    map[string]any{"timestamp": 1.0, "freq": "136.975", "tail": "N1"},
	})

	n, err := store.RowCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("rows = %d, want 0 for empty frame", n)
	}

	c, err := store.GetCounters()
	if err != nil {
		t.Fatal(err)
	}
	if c.NonLoggedGood != 1 {
		t.Errorf("nonlogged good = %d, want 1", c.NonLoggedGood)
	}
}

func TestWriterSaveAllOverride(t *testing.T) {
	store := testStore(t)
	queue := NewQueue("persist", QueueCapacity)
	w := NewWriter(queue, store, nil, nil, alerts.NewMatcher(nil, nil), true, zap.NewNop())

	w.process(context.Background(), Item{
		Source: message.SourceVDLM2,
		Raw:    map[string]any{"timestamp": 1.0, "freq": "136.975", "tail": "N1"},
	})

	n, err := store.RowCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("rows = %d, want 1 with save-all", n)
	}
}

type recordingFeed struct {
	mu   sync.Mutex
	msgs []*message.Stored
}

func (f *recordingFeed) Publish(m *message.Stored) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, m)
	return nil
}

func TestWriterFeedsEgress(t *testing.T) {
	store := testStore(t)
	queue := NewQueue("persist", QueueCapacity)
	f := &recordingFeed{}
	w := NewWriter(queue, store, nil, f, alerts.NewMatcher(nil, nil), false, zap.NewNop())

	w.process(context.Background(), Item{
		Source: message.SourceACARS,
		Raw:    map[string]any{"timestamp": 1.0, "text": "HELLO"},
	})

	if len(f.msgs) != 1 || f.msgs[0].Text != "HELLO" {
		t.Errorf("feed received %v, want the stored message", f.msgs)
	}
}

func TestWriterServeDrainsQueue(t *testing.T) {
	store := testStore(t)
	queue := NewQueue("persist", QueueCapacity)
	w := NewWriter(queue, store, nil, nil, alerts.NewMatcher(nil, nil), false, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Serve(ctx) }()

	queue.Push(Item{Source: message.SourceACARS, Raw: map[string]any{"timestamp": 1.0, "text": "A"}})
	queue.Push(Item{Source: message.SourceACARS, Raw: map[string]any{"timestamp": 2.0, "text": "B"}})

	deadline := time.After(2 * time.Second)
	for {
		n, err := store.RowCount()
		if err != nil {
			t.Fatal(err)
		}
		if n == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("writer did not drain queue, rows = %d", n)
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != context.Canceled {
		t.Errorf("Serve returned %v, want context.Canceled", err)
	}
}
