package eventbus

import (
	"context"
	"fmt"
	"testing"
)

type countingPublisher struct {
	calls int
	err   error
}

func (c *countingPublisher) Publish(context.Context, Event) error {
	c.calls++
	return c.err
}

func TestMulti_DeliversToAll(t *testing.T) {
	a, b := &countingPublisher{}, &countingPublisher{}
	m := Multi{a, b}

	if err := m.Publish(context.Background(), Event{RunID: "r1", Kind: KindStarted}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if a.calls != 1 || b.calls != 1 {
		t.Errorf("calls = %d, %d, want 1 each", a.calls, b.calls)
	}
}

func TestMulti_FailureDoesNotSkipOthers(t *testing.T) {
	a := &countingPublisher{err: fmt.Errorf("down")}
	b := &countingPublisher{}
	m := Multi{a, b}

	if err := m.Publish(context.Background(), Event{RunID: "r1"}); err == nil {
		t.Error("expected joined error")
	}
	if b.calls != 1 {
		t.Error("later publisher skipped after earlier failure")
	}
}

func TestNop(t *testing.T) {
	if err := (Nop{}).Publish(context.Background(), Event{}); err != nil {
		t.Fatalf("Nop.Publish: %v", err)
	}
}
