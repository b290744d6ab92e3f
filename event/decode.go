package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/agusx1211/crewdeck/model"
)

// ErrEmptyFrame marks an empty or whitespace-only frame. Callers skip these
// silently; they are not decode failures.
var ErrEmptyFrame = errors.New("empty frame")

type Decoder struct {
	Now func() time.Time
}

type envelope struct {
	Type       string                     `json:"type"`
	StreamType string                     `json:"stream_type"`
	Content    string                     `json:"content"`
	Tool       string                     `json:"tool"`
	ToolInput  string                     `json:"tool_input"`
	ToolOutput string                     `json:"tool_output"`
	AgentID    string                     `json:"agent_id"`
	Timestamp  string                     `json:"timestamp"`
	Messages   []model.RawHistoryMessage  `json:"messages"`
	JobID      string                     `json:"job_id"`
	StartedAt  string                     `json:"started_at"`
	Message    string                     `json:"message"`
}

// Decode parses one duplex-socket frame into an Event. Empty frames return
// ErrEmptyFrame; anything else that cannot be mapped returns a non-nil error
// and no event. Decode never panics on malformed input.
func (d *Decoder) Decode(raw []byte) (Event, error) {
	if strings.TrimSpace(string(raw)) == "" {
		return nil, ErrEmptyFrame
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("malformed frame: %v", err)
	}
	switch env.Type {
	case "stream":
		return d.decodeStreamEnvelope(env)
	case "history":
		return History{Messages: env.Messages}, nil
	case "job_started":
		return JobStarted{JobID: env.JobID, StartedAt: d.parseTime(env.StartedAt)}, nil
	case "user_message":
		return UserMessage{Content: env.Content, Timestamp: d.parseTime(env.Timestamp)}, nil
	case "error":
		return ServerError{Message: env.Message}, nil
	case "":
		return nil, errors.New("frame missing type")
	default:
		return nil, fmt.Errorf("unknown frame type %q", env.Type)
	}
}

func (d *Decoder) decodeStreamEnvelope(env envelope) (Event, error) {
	ts := d.parseTime(env.Timestamp)
	switch env.StreamType {
	case "token":
		return Token{Content: env.Content, AgentID: env.AgentID, Timestamp: ts}, nil
	case "tool":
		return ToolCall{
			Tool:       env.Tool,
			ToolInput:  env.ToolInput,
			ToolOutput: env.ToolOutput,
			AgentID:    env.AgentID,
			Timestamp:  ts,
		}, nil
	case "step":
		return Step{
			Content:    env.Content,
			Tool:       env.Tool,
			ToolInput:  env.ToolInput,
			ToolOutput: env.ToolOutput,
			AgentID:    env.AgentID,
			Timestamp:  ts,
		}, nil
	case "task":
		return Task{Content: env.Content, Timestamp: ts}, nil
	case "result":
		return Result{Content: env.Content, Tool: env.Tool, AgentID: env.AgentID, Timestamp: ts}, nil
	case "end":
		return End{}, nil
	default:
		return nil, fmt.Errorf("unknown stream type %q", env.StreamType)
	}
}

type streamPayload struct {
	Type      string `json:"type"`
	Content   string `json:"content"`
	Tool      string `json:"tool"`
	AgentID   string `json:"agent_id"`
	Timestamp string `json:"timestamp"`
	Message   string `json:"message"`
}

// DecodeStream parses one named event of the unidirectional per-job stream.
// The event name comes from the stream framing, not the payload.
func (d *Decoder) DecodeStream(name string, data []byte) (Event, error) {
	if strings.TrimSpace(string(data)) == "" {
		return nil, ErrEmptyFrame
	}
	var p streamPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("malformed stream payload: %v", err)
	}
	ts := d.parseTime(p.Timestamp)
	switch name {
	case "step":
		return Step{Content: p.Content, Tool: p.Tool, AgentID: p.AgentID, Timestamp: ts}, nil
	case "task":
		return Task{Content: p.Content, Timestamp: ts}, nil
	case "result":
		return Result{Content: p.Content, Tool: p.Tool, AgentID: p.AgentID, Timestamp: ts}, nil
	case "error":
		msg := p.Message
		if msg == "" {
			msg = p.Content
		}
		return ServerError{Message: msg}, nil
	case "finish":
		return Finish{Timestamp: ts}, nil
	default:
		return nil, fmt.Errorf("unknown stream event %q", name)
	}
}

func (d *Decoder) parseTime(s string) time.Time {
	if s != "" {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t
		}
	}
	return d.now()
}

func (d *Decoder) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now().UTC()
}
