package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Closer flushes and stops the async handler on shutdown.
type Closer interface {
	Close()
}

// nopCloser is returned when logging is synchronous.
type nopCloser struct{}

func (nopCloser) Close() {}

// AsyncHandler decouples log emission from the hot path. Audit runs
// log from many goroutines at once, so records go onto a bounded queue
// and a worker writes them out. When the queue is full, records are
// dropped and counted rather than blocking a detective or judge.
type AsyncHandler struct {
	inner   slog.Handler
	queue   chan queued
	workers *sync.WaitGroup
	dropped *atomic.Int64
}

// queued pairs a record with the handler it was enqueued through, so
// attrs and groups added via WithAttrs/WithGroup after construction are
// not lost between derived handlers sharing one queue.
type queued struct {
	sink slog.Handler
	rec  slog.Record
}

// NewAsyncHandler wraps inner with a queue of the given capacity
// serviced by the given number of workers.
func NewAsyncHandler(inner slog.Handler, capacity, workers int) *AsyncHandler {
	h := &AsyncHandler{
		inner:   inner,
		queue:   make(chan queued, capacity),
		workers: &sync.WaitGroup{},
		dropped: &atomic.Int64{},
	}
	for range workers {
		h.workers.Add(1)
		go h.pump()
	}
	return h
}

func (h *AsyncHandler) pump() {
	defer h.workers.Done()
	for q := range h.queue {
		_ = q.sink.Handle(context.Background(), q.rec)
	}
}

func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle enqueues the record, tagging it with the request id when one
// is present in the context. A full queue drops the record.
func (h *AsyncHandler) Handle(ctx context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	if id := RequestID(ctx); id != "" {
		rec.AddAttrs(slog.String("request_id", id))
	}
	select {
	case h.queue <- queued{sink: h.inner, rec: rec}:
	default:
		h.dropped.Add(1)
	}
	return nil
}

func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{
		inner:   h.inner.WithAttrs(attrs),
		queue:   h.queue,
		workers: h.workers,
		dropped: h.dropped,
	}
}

func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{
		inner:   h.inner.WithGroup(name),
		queue:   h.queue,
		workers: h.workers,
		dropped: h.dropped,
	}
}

// DroppedCount reports how many records were discarded on queue overflow.
func (h *AsyncHandler) DroppedCount() int64 {
	return h.dropped.Load()
}

// Close stops accepting records and waits for the queue to drain.
func (h *AsyncHandler) Close() {
	close(h.queue)
	h.workers.Wait()
}
