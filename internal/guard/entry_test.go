package guard

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

type fakeAck struct {
	ids []string
	err error
}

func (f *fakeAck) Dislike(ctx context.Context, id string) error {
	f.ids = append(f.ids, id)
	return f.err
}

func TestEntryTrigger(t *testing.T) {
	e, _ := ParseEntry("/training?tab=chat&fromDislikeId=5&fromNotification=true")
	id, ok := e.Trigger()
	if !ok || id != "5" {
		t.Fatalf("Trigger() = %q, %v", id, ok)
	}

	e.Clear()
	if e.String() != "/training?tab=chat" {
		t.Fatalf("unexpected cleared location %q", e.String())
	}
	if _, ok := e.Trigger(); ok {
		t.Fatal("trigger must be gone after Clear")
	}

	noNotif, _ := ParseEntry("/training?fromDislikeId=5")
	if _, ok := noNotif.Trigger(); ok {
		t.Fatal("trigger requires fromNotification=true")
	}
}

func TestEntryClearKeepsOtherParams(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/training?z=1&fromDislikeId=5&b=a%20b&fromNotification=true&a=2", "/training?z=1&b=a%20b&a=2"},
		{"/training?fromNotification=true&fromDislikeId=5", "/training"},
		{"/training?q=x+y&from%44islikeId=5&fromNotification=true#top", "/training?q=x+y#top"},
		{"/training?tab=chat", "/training?tab=chat"},
	}
	for _, tt := range tests {
		e, err := ParseEntry(tt.in)
		if err != nil {
			t.Fatal(err)
		}
		e.Clear()
		if got := e.String(); got != tt.want {
			t.Errorf("Clear(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHandleEntryOncePerID(t *testing.T) {
	ack := &fakeAck{}
	ft := NewFeedbackTrigger(newTestGuard(), ack, zerolog.Nop())
	ctx := context.Background()

	// Two mounts with the same deep link.
	for i := 0; i < 2; i++ {
		e, _ := ParseEntry("/training?fromDislikeId=5&fromNotification=true")
		ft.HandleEntry(ctx, e)
		if e.String() != "/training" {
			t.Fatalf("mount %d: trigger not cleared: %q", i, e.String())
		}
	}

	if len(ack.ids) != 1 || ack.ids[0] != "5" {
		t.Fatalf("expected one acknowledgement of 5, got %v", ack.ids)
	}
}

func TestHandleEntryFailureClearsAndAllowsRetry(t *testing.T) {
	ack := &fakeAck{err: errors.New("500")}
	ft := NewFeedbackTrigger(newTestGuard(), ack, zerolog.Nop())
	ctx := context.Background()

	e, _ := ParseEntry("/training?fromDislikeId=5&fromNotification=true")
	outcome, err := ft.HandleEntry(ctx, e)
	if err == nil || outcome != OutcomeFailed {
		t.Fatalf("expected failure, got %s, %v", outcome, err)
	}
	if e.String() != "/training" {
		t.Fatalf("trigger must be cleared after a failed attempt, got %q", e.String())
	}

	ack.err = nil
	e, _ = ParseEntry("/training?fromDislikeId=5&fromNotification=true")
	if outcome, err := ft.HandleEntry(ctx, e); err != nil || outcome != OutcomeExecuted {
		t.Fatalf("expected retry to execute, got %s, %v", outcome, err)
	}
	if len(ack.ids) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(ack.ids))
	}
}

func TestHandleEntryWithoutTrigger(t *testing.T) {
	ft := NewFeedbackTrigger(newTestGuard(), &fakeAck{}, zerolog.Nop())
	e, _ := ParseEntry("/training")
	if _, err := ft.HandleEntry(context.Background(), e); !errors.Is(err, ErrNoTrigger) {
		t.Fatalf("expected ErrNoTrigger, got %v", err)
	}
}
