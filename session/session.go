package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// Session is the identity a connection is scoped to: one bearer token and
// one conversation id, immutable for the life of the connection.
type Session struct {
	Token          string `json:"token"`
	ConversationID string `json:"conversation_id"`
}

type Provider interface {
	Session(ctx context.Context) (Session, error)
	// Rotate mints a fresh conversation identity for subsequent turns.
	Rotate(ctx context.Context) (Session, error)
}

// Static holds a fixed session. Rotate replaces the conversation id in
// place.
type Static struct {
	mu sync.Mutex
	s  Session
}

func NewStatic(s Session) *Static {
	return &Static{s: s}
}

func (p *Static) Session(context.Context) (Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.s, nil
}

func (p *Static) Rotate(context.Context) (Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.s.ConversationID = uuid.New().String()
	return p.s, nil
}

// File persists the session in a JSON file so the conversation survives
// process restarts. A missing file is seeded with the default token and a
// fresh conversation id.
type File struct {
	mu           sync.Mutex
	path         string
	defaultToken string
}

func NewFile(path, defaultToken string) *File {
	return &File{path: path, defaultToken: defaultToken}
}

func (p *File) Session(context.Context) (Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.load()
}

func (p *File) Rotate(context.Context) (Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, err := p.load()
	if err != nil {
		return Session{}, err
	}
	s.ConversationID = uuid.New().String()
	if err := p.save(s); err != nil {
		return Session{}, err
	}
	return s, nil
}

func (p *File) load() (Session, error) {
	b, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		s := Session{Token: p.defaultToken, ConversationID: uuid.New().String()}
		if err := p.save(s); err != nil {
			return Session{}, err
		}
		return s, nil
	}
	if err != nil {
		return Session{}, fmt.Errorf("read session %q: %v", p.path, err)
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return Session{}, fmt.Errorf("parse session %q: %v", p.path, err)
	}
	if s.Token == "" {
		s.Token = p.defaultToken
	}
	if s.ConversationID == "" {
		s.ConversationID = uuid.New().String()
		if err := p.save(s); err != nil {
			return Session{}, err
		}
	}
	return s, nil
}

func (p *File) save(s Session) error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if err := os.WriteFile(p.path, data, 0o600); err != nil {
		return fmt.Errorf("write session %q: %w", p.path, err)
	}
	return nil
}
