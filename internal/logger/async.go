package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// AsyncHandler hands records to a pool of writer goroutines through a
// bounded queue. Records are dropped, and counted, when the queue is full.
// Handlers derived with WithAttrs or WithGroup share the queue.
type AsyncHandler struct {
	next  slog.Handler
	queue *asyncQueue
}

type asyncQueue struct {
	records chan asyncRecord
	wg      sync.WaitGroup
	dropped atomic.Int64
	once    sync.Once
}

type asyncRecord struct {
	h   slog.Handler
	rec slog.Record
}

// NewAsyncHandler starts workers goroutines draining a queue of size buffer.
func NewAsyncHandler(next slog.Handler, buffer, workers int) *AsyncHandler {
	q := &asyncQueue{records: make(chan asyncRecord, buffer)}
	for range workers {
		q.wg.Add(1)
		go q.run()
	}
	return &AsyncHandler{next: next, queue: q}
}

func (q *asyncQueue) run() {
	defer q.wg.Done()
	for r := range q.records {
		_ = r.h.Handle(context.Background(), r.rec)
	}
}

func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *AsyncHandler) Handle(_ context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface
	select {
	case h.queue.records <- asyncRecord{h: h.next, rec: rec.Clone()}:
	default:
		h.queue.dropped.Add(1)
	}
	return nil
}

func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{next: h.next.WithAttrs(attrs), queue: h.queue}
}

func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{next: h.next.WithGroup(name), queue: h.queue}
}

// Dropped returns the number of records discarded because the queue was full.
func (h *AsyncHandler) Dropped() int64 {
	return h.queue.dropped.Load()
}

// Close stops accepting records and waits until the queue is drained.
// It is safe to call more than once.
func (h *AsyncHandler) Close() {
	h.queue.once.Do(func() {
		close(h.queue.records)
		h.queue.wg.Wait()
	})
}
