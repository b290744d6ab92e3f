package reconcile

import (
	"sort"
	"strings"
	"time"

	"github.com/agusx1211/crewdeck/model"
)

// NormalizeHistory turns a bulk history payload into an ordered transcript.
// Empty steps and all tasks are dropped, timestamps are resolved through the
// fallback chain (timestamp, created_at, job_started_at, now), and the
// result is sorted ascending by resolved timestamp. Runs once per
// connection, before any live event is reconciled.
func NormalizeHistory(raw []model.RawHistoryMessage, now time.Time) []model.Message {
	out := make([]model.Message, 0, len(raw))
	for _, h := range raw {
		kind := model.Kind(h.Kind)
		if kind == model.KindTask {
			continue
		}
		if kind == model.KindStep && strings.TrimSpace(h.Content) == "" {
			continue
		}
		role := model.RoleAssistant
		if h.Role == string(model.RoleUser) {
			role = model.RoleUser
		}
		out = append(out, model.Message{
			ID:         model.NewID(),
			Role:       role,
			Kind:       kind,
			Content:    h.Content,
			Tool:       h.Tool,
			ToolInput:  h.ToolInput,
			ToolOutput: h.ToolOutput,
			AgentID:    h.AgentID,
			Timestamp:  resolveTimestamp(h, now),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

func resolveTimestamp(h model.RawHistoryMessage, now time.Time) time.Time {
	for _, s := range []string{h.Timestamp, h.CreatedAt, h.JobStartedAt} {
		if s == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t
		}
	}
	return now
}
