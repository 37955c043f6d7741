package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
)

type recordingSender struct {
	name   string
	titles []string
	fail   error
}

func (s *recordingSender) Send(_ context.Context, title, _ string) error {
	if s.fail != nil {
		return s.fail
	}
	s.titles = append(s.titles, title)
	return nil
}

func (s *recordingSender) Name() string { return s.name }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifyFiltersByEvent(t *testing.T) {
	ctx := context.Background()
	rec := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{rec}, []string{"trade_executed"}, testLogger())

	if err := n.Notify(ctx, "trade_executed", "Trade", "details"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if err := n.Notify(ctx, "config_updated", "Config", "details"); err != nil {
		t.Fatalf("Notify filtered: %v", err)
	}
	if len(rec.titles) != 1 || rec.titles[0] != "Trade" {
		t.Errorf("delivered titles = %v, want [Trade]", rec.titles)
	}

	// NotifyAll bypasses the filter.
	if err := n.NotifyAll(ctx, "Anything", "details"); err != nil {
		t.Fatalf("NotifyAll: %v", err)
	}
	if len(rec.titles) != 2 {
		t.Errorf("delivered = %d, want 2 after NotifyAll", len(rec.titles))
	}
}

func TestEmptyFilterAllowsEverything(t *testing.T) {
	rec := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{rec}, nil, testLogger())
	if err := n.Notify(context.Background(), "anything", "T", "m"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(rec.titles) != 1 {
		t.Errorf("delivered = %d, want 1", len(rec.titles))
	}
}

func TestDispatchCollectsFailures(t *testing.T) {
	good := &recordingSender{name: "good"}
	bad := &recordingSender{name: "bad", fail: errors.New("boom")}
	n := NewNotifier([]Sender{bad, good}, nil, testLogger())

	err := n.NotifyAll(context.Background(), "T", "m")
	if err == nil {
		t.Fatal("failure was swallowed")
	}
	if !strings.Contains(err.Error(), "bad: boom") {
		t.Errorf("error = %v, want sender name and cause", err)
	}
	// The healthy sender still received the message.
	if len(good.titles) != 1 {
		t.Errorf("good sender delivered = %d, want 1", len(good.titles))
	}
}

func TestNoSendersIsANoop(t *testing.T) {
	n := NewNotifier(nil, nil, testLogger())
	if err := n.NotifyAll(context.Background(), "T", "m"); err != nil {
		t.Fatalf("NotifyAll with no senders: %v", err)
	}
}
