// Package eventbus defines the port for broadcasting audit lifecycle events
// to interested consumers (websocket clients, message queues).
package eventbus

import (
	"context"
	"errors"
	"time"
)

// Event kinds emitted over a run's lifetime.
const (
	KindStarted   = "started"
	KindStage     = "stage"
	KindCompleted = "completed"
	KindFailed    = "failed"
)

// Event is one audit lifecycle notification.
type Event struct {
	RunID  string    `json:"run_id"`
	Kind   string    `json:"kind"`
	Stage  string    `json:"stage,omitempty"`
	Detail string    `json:"detail,omitempty"`
	Time   time.Time `json:"time"`
}

// Publisher broadcasts audit events. Publishing is best-effort: the pipeline
// never fails a run because an event could not be delivered.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop discards all events. Used when no bus is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Multi fans every event out to all publishers. Delivery is attempted on
// each one even when an earlier one fails; errors are joined.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
