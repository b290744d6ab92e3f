package event

import (
	"time"

	"github.com/agusx1211/crewdeck/model"
)

// Event is one decoded unit pushed by a transport.
type Event interface {
	eventTag() string
}

type Token struct {
	Content   string
	AgentID   string
	Timestamp time.Time
}

func (Token) eventTag() string { return "token" }

type ToolCall struct {
	Tool       string
	ToolInput  string
	ToolOutput string
	AgentID    string
	Timestamp  time.Time
}

func (ToolCall) eventTag() string { return "tool" }

type Step struct {
	Content    string
	Tool       string
	ToolInput  string
	ToolOutput string
	AgentID    string
	Timestamp  time.Time
}

func (Step) eventTag() string { return "step" }

type Task struct {
	Content   string
	Timestamp time.Time
}

func (Task) eventTag() string { return "task" }

type Result struct {
	Content   string
	Tool      string
	AgentID   string
	Timestamp time.Time
}

func (Result) eventTag() string { return "result" }

type History struct {
	Messages []model.RawHistoryMessage
}

func (History) eventTag() string { return "history" }

type JobStarted struct {
	JobID     string
	StartedAt time.Time
}

func (JobStarted) eventTag() string { return "job_started" }

type UserMessage struct {
	Content   string
	Timestamp time.Time
}

func (UserMessage) eventTag() string { return "user_message" }

type ServerError struct {
	Message string
}

func (ServerError) eventTag() string { return "error" }

// End marks end-of-turn. It only clears loading state.
type End struct{}

func (End) eventTag() string { return "end" }

// Finish is the terminal event of a per-job execution stream.
type Finish struct {
	Timestamp time.Time
}

func (Finish) eventTag() string { return "finish" }
