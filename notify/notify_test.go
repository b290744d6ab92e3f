package notify

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSinkFunc(t *testing.T) {
	var got Notification
	s := SinkFunc(func(n Notification) { got = n })
	s.Notify(Notification{Title: "t", Description: "d", Severity: SeverityInfo})
	if got.Title != "t" || got.Description != "d" {
		t.Fatalf("unexpected notification: %+v", got)
	}
}

func TestDiscard(t *testing.T) {
	Discard().Notify(Notification{Title: "ignored"})
}

func TestLogSinkLevels(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	s := NewLogSink(zap.New(core))

	s.Notify(Notification{Title: "a", Severity: SeverityInfo})
	s.Notify(Notification{Title: "b", Severity: SeverityWarning})
	s.Notify(Notification{Title: "c", Severity: SeverityError})

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("expected 3 log entries, got %d", len(entries))
	}
	wantLevels := []string{"info", "warn", "error"}
	for i, e := range entries {
		if e.Level.String() != wantLevels[i] {
			t.Fatalf("entry %d: want level %s got %s", i, wantLevels[i], e.Level)
		}
	}
}

func TestLogSinkNilLogger(t *testing.T) {
	NewLogSink(nil).Notify(Notification{Title: "safe"})
}
