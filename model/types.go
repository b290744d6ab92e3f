package model

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
)

// Kind classifies a transcript entry. KindNone marks a still-open streamed
// assistant message that later tokens may coalesce into.
type Kind string

const (
	KindNone   Kind = ""
	KindToken  Kind = "token"
	KindTool   Kind = "tool"
	KindStep   Kind = "step"
	KindTask   Kind = "task"
	KindResult Kind = "result"
)

// Message is one rendered transcript entry.
type Message struct {
	ID         string    `json:"id"`
	Role       Role      `json:"role"`
	Kind       Kind      `json:"kind,omitempty"`
	Content    string    `json:"content"`
	Tool       string    `json:"tool,omitempty"`
	ToolInput  string    `json:"tool_input,omitempty"`
	ToolOutput string    `json:"tool_output,omitempty"`
	AgentID    string    `json:"agent_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// RawHistoryMessage is one row of the bulk history payload delivered at
// connection start, before normalization. Timestamp fields stay strings
// here; resolution order is timestamp, created_at, job_started_at.
type RawHistoryMessage struct {
	Role         string `json:"role"`
	Kind         string `json:"kind"`
	Content      string `json:"content"`
	Tool         string `json:"tool"`
	ToolInput    string `json:"tool_input"`
	ToolOutput   string `json:"tool_output"`
	AgentID      string `json:"agent_id"`
	Timestamp    string `json:"timestamp"`
	CreatedAt    string `json:"created_at"`
	JobStartedAt string `json:"job_started_at"`
}

type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

func NewID() string {
	return uuid.New().String()
}
