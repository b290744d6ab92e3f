package reconcile

import (
	"testing"
	"time"

	"github.com/agusx1211/crewdeck/model"
)

func TestNormalizeHistoryFilters(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	raw := []model.RawHistoryMessage{
		{Role: "assistant", Kind: "task", Content: "plan", Timestamp: "2026-03-14T11:00:00Z"},
		{Role: "assistant", Kind: "step", Content: "   ", Timestamp: "2026-03-14T11:00:01Z"},
		{Role: "assistant", Kind: "step", Content: "real step", Timestamp: "2026-03-14T11:00:02Z"},
	}
	out := NormalizeHistory(raw, now)
	if len(out) != 1 {
		t.Fatalf("expected exactly one surviving row, got %d", len(out))
	}
	if out[0].Content != "real step" || out[0].Kind != model.KindStep {
		t.Fatalf("unexpected survivor: %+v", out[0])
	}
}

func TestNormalizeHistorySortsAscending(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	raw := []model.RawHistoryMessage{
		{Role: "assistant", Kind: "result", Content: "third", Timestamp: "2026-03-14T11:00:03Z"},
		{Role: "user", Content: "first", Timestamp: "2026-03-14T11:00:01Z"},
		{Role: "assistant", Content: "second", Timestamp: "2026-03-14T11:00:02Z"},
	}
	out := NormalizeHistory(raw, now)
	if len(out) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(out))
	}
	for i, want := range []string{"first", "second", "third"} {
		if out[i].Content != want {
			t.Fatalf("row %d: want %q got %q", i, want, out[i].Content)
		}
	}
}

func TestNormalizeHistoryTimestampFallback(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	raw := []model.RawHistoryMessage{
		{Role: "user", Content: "a", Timestamp: "2026-03-14T11:00:00Z"},
		{Role: "user", Content: "b", CreatedAt: "2026-03-14T11:00:01Z"},
		{Role: "user", Content: "c", JobStartedAt: "2026-03-14T11:00:02Z"},
		{Role: "user", Content: "d"},
		{Role: "user", Content: "e", Timestamp: "garbage", CreatedAt: "2026-03-14T11:00:03Z"},
	}
	out := NormalizeHistory(raw, now)
	if len(out) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(out))
	}
	byContent := map[string]time.Time{}
	for _, m := range out {
		byContent[m.Content] = m.Timestamp
	}
	if !byContent["a"].Equal(time.Date(2026, 3, 14, 11, 0, 0, 0, time.UTC)) {
		t.Fatalf("timestamp field ignored: %v", byContent["a"])
	}
	if !byContent["b"].Equal(time.Date(2026, 3, 14, 11, 0, 1, 0, time.UTC)) {
		t.Fatalf("created_at fallback failed: %v", byContent["b"])
	}
	if !byContent["c"].Equal(time.Date(2026, 3, 14, 11, 0, 2, 0, time.UTC)) {
		t.Fatalf("job_started_at fallback failed: %v", byContent["c"])
	}
	if !byContent["d"].Equal(now) {
		t.Fatalf("clock fallback failed: %v", byContent["d"])
	}
	if !byContent["e"].Equal(time.Date(2026, 3, 14, 11, 0, 3, 0, time.UTC)) {
		t.Fatalf("unparseable timestamp must fall through: %v", byContent["e"])
	}
}

func TestNormalizeHistoryRoleDefault(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	out := NormalizeHistory([]model.RawHistoryMessage{
		{Content: "no role set", Timestamp: "2026-03-14T11:00:00Z"},
		{Role: "user", Content: "mine", Timestamp: "2026-03-14T11:00:01Z"},
	}, now)
	if len(out) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(out))
	}
	if out[0].Role != model.RoleAssistant {
		t.Fatalf("missing role must default to assistant, got %q", out[0].Role)
	}
	if out[1].Role != model.RoleUser {
		t.Fatalf("user role lost: %q", out[1].Role)
	}
}
