package notify

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

type mockNotifier struct {
	events []Event
	err    error
}

func (m *mockNotifier) Post(ctx context.Context, evt Event) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, evt)
	return nil
}

func TestFanout_PostsToAll(t *testing.T) {
	a := &mockNotifier{}
	b := &mockNotifier{}
	f := NewFanout(zap.NewNop(), a, b)

	f.Post(context.Background(), Event{Title: "New dialog", Severity: SeverityInfo})

	if len(a.events) != 1 || len(b.events) != 1 {
		t.Errorf("deliveries = %d, %d; want 1, 1", len(a.events), len(b.events))
	}
}

func TestFanout_SkipsFailingChannel(t *testing.T) {
	bad := &mockNotifier{err: errors.New("rate limited")}
	good := &mockNotifier{}
	f := NewFanout(zap.NewNop(), bad, good)

	f.Post(context.Background(), Event{Title: "Stale dialog", Severity: SeverityWarning})

	if len(good.events) != 1 {
		t.Errorf("good channel deliveries = %d, want 1", len(good.events))
	}
}

func TestFanout_NilIsNoop(t *testing.T) {
	var f *Fanout
	f.Post(context.Background(), Event{Title: "ignored"})
}

func TestSeverityColor(t *testing.T) {
	if SeverityColor(SeveritySuccess) != "#36a64f" {
		t.Error("success color mismatch")
	}
	if SeverityColor("unknown") != "#439fe0" {
		t.Error("default color mismatch")
	}
}
