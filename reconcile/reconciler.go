package reconcile

import (
	"strings"
	"time"

	"github.com/agusx1211/crewdeck/event"
	"github.com/agusx1211/crewdeck/model"
)

// FinishMessage is the synthetic completion entry appended when a per-job
// execution stream reports its terminal finish event.
const FinishMessage = "Execution completed."

// Reconciler merges a stream of decoded events into a single transcript.
// It is not safe for concurrent use; the owner serializes Apply calls.
type Reconciler struct {
	transcript   []model.Message
	acc          Accumulator
	jobID        string
	jobStartedAt time.Time
	lastStreamed string
	loading      bool
	errMsg       string
}

func New() *Reconciler {
	return &Reconciler{}
}

// Apply folds one event into the transcript. Events are applied strictly in
// delivery order; only history replay is timestamp-sorted.
func (r *Reconciler) Apply(ev event.Event) {
	switch e := ev.(type) {
	case event.Token:
		r.applyToken(e)
	case event.ToolCall:
		r.transcript = append(r.transcript, model.Message{
			ID:         model.NewID(),
			Role:       model.RoleAssistant,
			Kind:       model.KindTool,
			Content:    e.Tool,
			Tool:       e.Tool,
			ToolInput:  e.ToolInput,
			ToolOutput: e.ToolOutput,
			AgentID:    e.AgentID,
			Timestamp:  e.Timestamp,
		})
	case event.Step:
		r.markJobBoundary(e.Timestamp)
		r.acc.Push(model.KindStep, model.Message{
			ID:         model.NewID(),
			Role:       model.RoleAssistant,
			Kind:       model.KindStep,
			Content:    e.Content,
			Tool:       e.Tool,
			ToolInput:  e.ToolInput,
			ToolOutput: e.ToolOutput,
			AgentID:    e.AgentID,
			Timestamp:  e.Timestamp,
		})
		// A new step invalidates the assumption that the next result
		// merely echoes the token stream.
		r.lastStreamed = ""
		r.rebuild()
	case event.Task:
		r.markJobBoundary(e.Timestamp)
		r.acc.Push(model.KindTask, model.Message{
			ID:        model.NewID(),
			Role:      model.RoleAssistant,
			Kind:      model.KindTask,
			Content:   e.Content,
			Timestamp: e.Timestamp,
		})
		r.rebuild()
	case event.Result:
		r.markJobBoundary(e.Timestamp)
		r.loading = false
		if r.duplicatesStream(e.Content) {
			return
		}
		r.acc.Push(model.KindResult, model.Message{
			ID:        model.NewID(),
			Role:      model.RoleAssistant,
			Kind:      model.KindResult,
			Content:   e.Content,
			Tool:      e.Tool,
			AgentID:   e.AgentID,
			Timestamp: e.Timestamp,
		})
		r.rebuild()
	case event.JobStarted:
		r.acc.Reset()
		r.jobID = e.JobID
		// The boundary stays anchored at the earliest job start since the
		// transcript was seeded. Live output of superseded jobs sits at or
		// after it, so the next rebuild replaces that output too instead of
		// leaving stale steps behind.
		if r.jobStartedAt.IsZero() || e.StartedAt.Before(r.jobStartedAt) {
			r.jobStartedAt = e.StartedAt
		}
		r.lastStreamed = ""
	case event.UserMessage:
		r.transcript = append(r.transcript, model.Message{
			ID:        model.NewID(),
			Role:      model.RoleUser,
			Content:   e.Content,
			Timestamp: e.Timestamp,
		})
	case event.History:
		r.transcript = NormalizeHistory(e.Messages, time.Now().UTC())
		r.acc.Reset()
		r.jobStartedAt = time.Time{}
		r.lastStreamed = ""
	case event.ServerError:
		r.errMsg = e.Message
		r.loading = false
	case event.End:
		r.loading = false
	case event.Finish:
		r.loading = false
		r.transcript = append(r.transcript, model.Message{
			ID:        model.NewID(),
			Role:      model.RoleAssistant,
			Kind:      model.KindResult,
			Content:   FinishMessage,
			Timestamp: e.Timestamp,
		})
	}
}

func (r *Reconciler) applyToken(e event.Token) {
	if n := len(r.transcript); n > 0 {
		last := &r.transcript[n-1]
		if last.Role == model.RoleAssistant && (last.Kind == model.KindNone || last.Kind == model.KindToken) {
			last.Content += e.Content
			r.lastStreamed = last.Content
			return
		}
	}
	r.transcript = append(r.transcript, model.Message{
		ID:        model.NewID(),
		Role:      model.RoleAssistant,
		Kind:      model.KindNone,
		Content:   e.Content,
		AgentID:   e.AgentID,
		Timestamp: e.Timestamp,
	})
	r.lastStreamed = e.Content
}

// duplicatesStream reports whether a result restates what was already
// streamed token by token.
func (r *Reconciler) duplicatesStream(content string) bool {
	marker := strings.TrimSpace(r.lastStreamed)
	return marker != "" && strings.TrimSpace(content) == marker
}

// markJobBoundary sets an implicit partition boundary when accumulated
// output arrives before any JobStarted event, so replayed history ahead of
// the boundary is never swept by rebuild.
func (r *Reconciler) markJobBoundary(ts time.Time) {
	if r.jobStartedAt.IsZero() {
		r.jobStartedAt = ts
	}
}

// rebuild recomputes the active job's live slice of the transcript: every
// assistant message with a concrete kind at or after the job boundary is
// removed, then the accumulator's steps and results are appended in order.
// Tasks stay suppressed. Repeating this on every event keeps the transcript
// idempotent under partial updates.
func (r *Reconciler) rebuild() {
	out := make([]model.Message, 0, len(r.transcript)+len(r.acc.steps)+len(r.acc.results))
	for _, m := range r.transcript {
		if m.Role == model.RoleAssistant && m.Kind != model.KindNone && !m.Timestamp.Before(r.jobStartedAt) {
			continue
		}
		out = append(out, m)
	}
	out = append(out, r.acc.steps...)
	out = append(out, r.acc.results...)
	r.transcript = out
}

// Seed replaces the transcript with normalized history rows.
func (r *Reconciler) Seed(msgs []model.Message) {
	r.transcript = append([]model.Message(nil), msgs...)
}

// Reset discards the transcript, the accumulator, and all flags. Used by the
// explicit new-conversation action, never by a plain disconnect.
func (r *Reconciler) Reset() {
	r.transcript = nil
	r.acc.Reset()
	r.jobID = ""
	r.jobStartedAt = time.Time{}
	r.lastStreamed = ""
	r.loading = false
	r.errMsg = ""
}

func (r *Reconciler) Messages() []model.Message {
	return append([]model.Message(nil), r.transcript...)
}

func (r *Reconciler) Loading() bool {
	return r.loading
}

func (r *Reconciler) SetLoading(v bool) {
	r.loading = v
}

func (r *Reconciler) Err() string {
	return r.errMsg
}

func (r *Reconciler) SetErr(msg string) {
	r.errMsg = msg
}

func (r *Reconciler) JobID() string {
	return r.jobID
}
