package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

// captureHandler records everything it handles.
type captureHandler struct {
	mu    sync.Mutex
	recs  []slog.Record
	delay time.Duration
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	if h.delay > 0 {
		time.Sleep(h.delay)
	}
	h.mu.Lock()
	h.recs = append(h.recs, rec)
	h.mu.Unlock()
	return nil
}

func (h *captureHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *captureHandler) WithGroup(string) slog.Handler      { return h }

func (h *captureHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.recs)
}

func newRec(msg string) slog.Record {
	return slog.NewRecord(time.Now(), slog.LevelInfo, msg, 0)
}

func TestAsyncHandlerDelivers(t *testing.T) {
	inner := &captureHandler{}
	ah := NewAsyncHandler(inner, 100, 1)

	if err := ah.Handle(context.Background(), newRec("hello")); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	ah.Close()

	if got := inner.count(); got != 1 {
		t.Fatalf("expected 1 record, got %d", got)
	}
}

func TestAsyncHandlerTagsRequestID(t *testing.T) {
	inner := &captureHandler{}
	ah := NewAsyncHandler(inner, 10, 1)

	ctx := WithRequestID(context.Background(), "req-42")
	_ = ah.Handle(ctx, newRec("tagged"))
	ah.Close()

	if got := inner.count(); got != 1 {
		t.Fatalf("expected 1 record, got %d", got)
	}
	found := false
	inner.recs[0].Attrs(func(a slog.Attr) bool {
		if a.Key == "request_id" && a.Value.String() == "req-42" {
			found = true
			return false
		}
		return true
	})
	if !found {
		t.Error("expected request_id attribute on record")
	}
}

func TestAsyncHandlerKeepsDerivedAttrs(t *testing.T) {
	var buf bytes.Buffer
	ah := NewAsyncHandler(slog.NewJSONHandler(&buf, nil), 16, 1)

	log := slog.New(ah).With("service", "tribunal")
	log.Info("hello")
	ah.Close()

	out := buf.String()
	if !strings.Contains(out, `"service":"tribunal"`) {
		t.Fatalf("expected service attr on async record, got %s", out)
	}
	if !strings.Contains(out, `"msg":"hello"`) {
		t.Fatalf("expected message on async record, got %s", out)
	}
}

func TestAsyncHandlerKeepsGroups(t *testing.T) {
	var buf bytes.Buffer
	ah := NewAsyncHandler(slog.NewJSONHandler(&buf, nil), 16, 1)

	log := slog.New(ah).WithGroup("audit").With("run_id", "r1")
	log.Info("staged")
	ah.Close()

	out := buf.String()
	if !strings.Contains(out, `"audit":{"run_id":"r1"}`) {
		t.Fatalf("expected grouped attr on async record, got %s", out)
	}
}

func TestAsyncHandlerConcurrentProducers(t *testing.T) {
	const producers = 100
	const perProducer = 100

	inner := &captureHandler{}
	ah := NewAsyncHandler(inner, 10000, 4)

	var wg sync.WaitGroup
	for range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perProducer {
				_ = ah.Handle(context.Background(), newRec("concurrent"))
			}
		}()
	}
	wg.Wait()
	ah.Close()

	if got := inner.count(); got != producers*perProducer {
		t.Fatalf("expected %d records, got %d", producers*perProducer, got)
	}
}

func TestAsyncHandlerDropsOnOverflow(t *testing.T) {
	inner := &captureHandler{delay: 10 * time.Millisecond}
	ah := NewAsyncHandler(inner, 1, 1)

	for range 50 {
		_ = ah.Handle(context.Background(), newRec("flood"))
	}
	ah.Close()

	if ah.DroppedCount() == 0 {
		t.Fatal("expected drops with a full queue, got 0")
	}
}

func TestAsyncHandlerCloseDrainsQueue(t *testing.T) {
	inner := &captureHandler{}
	ah := NewAsyncHandler(inner, 1000, 2)

	const total = 200
	for range total {
		_ = ah.Handle(context.Background(), newRec("flush"))
	}
	ah.Close()

	if got := inner.count(); got != total {
		t.Fatalf("expected %d records after close, got %d", total, got)
	}
}
