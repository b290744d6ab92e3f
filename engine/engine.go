package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/agusx1211/crewdeck/event"
	"github.com/agusx1211/crewdeck/model"
	"github.com/agusx1211/crewdeck/notify"
	"github.com/agusx1211/crewdeck/reconcile"
	"github.com/agusx1211/crewdeck/session"
	"github.com/agusx1211/crewdeck/store"
	"github.com/agusx1211/crewdeck/transport"
)

type Status string

const (
	StatusIdle       Status = "idle"
	StatusConnecting Status = "connecting"
	StatusOpen       Status = "open"
	StatusClosing    Status = "closing"
)

// Update is the render-ready snapshot published after every completed
// reconciliation step. Readers never observe a partial step.
type Update struct {
	Messages  []model.Message
	Connected bool
	Loading   bool
	Err       string
}

type Config struct {
	BaseURL string
	// LoadingTimeout bounds the wait for a job to emit a terminal event.
	// Zero disables the bound and keeps loading set until the next
	// terminal event or reconnect.
	LoadingTimeout time.Duration
}

type Deps struct {
	Dial          transport.DialFunc
	Sessions      session.Provider
	Messages      store.MessageStore
	Conversations store.ConversationStore
	Sink          notify.Sink
	Logger        *zap.Logger
	Now           func() time.Time
}

// Engine owns the transcript and connection lifecycle for exactly one
// conversation at a time. All mutation happens under mu as a sequence of
// discrete reconciliation steps; connect/disconnect/reset serialize on
// lifecycleMu so two connections can never feed the same accumulator.
type Engine struct {
	cfg           Config
	dial          transport.DialFunc
	sessions      session.Provider
	messages      store.MessageStore
	conversations store.ConversationStore
	sink          notify.Sink
	logger        *zap.Logger
	now           func() time.Time

	lifecycleMu sync.Mutex

	mu        sync.Mutex
	rec       *reconcile.Reconciler
	conn      transport.Transport
	sess      session.Session
	status    Status
	epoch     uint64
	loadTimer *time.Timer

	broker *Broker[Update]
}

func New(cfg Config, deps Deps) *Engine {
	must(deps.Dial != nil, "dial func must not be nil")
	must(deps.Sessions != nil, "session provider must not be nil")

	if deps.Sink == nil {
		deps.Sink = notify.Discard()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Engine{
		cfg:           cfg,
		dial:          deps.Dial,
		sessions:      deps.Sessions,
		messages:      deps.Messages,
		conversations: deps.Conversations,
		sink:          deps.Sink,
		logger:        deps.Logger,
		now:           deps.Now,
		rec:           reconcile.New(),
		status:        StatusIdle,
		broker:        NewBroker[Update](),
	}
}

// Connect obtains the session identity and opens the duplex connection.
// Calling it while connected first tears the previous connection down and
// waits for its close before dialing the replacement.
func (e *Engine) Connect(ctx context.Context) error {
	sess, err := e.sessions.Session(ctx)
	if err != nil {
		return fmt.Errorf("resolve session: %w", err)
	}
	return e.connect(ctx, sess)
}

func (e *Engine) connect(ctx context.Context, sess session.Session) error {
	e.lifecycleMu.Lock()
	defer e.lifecycleMu.Unlock()

	e.mu.Lock()
	prev := e.conn
	e.conn = nil
	e.epoch++
	e.stopLoadTimerLocked()
	if prev != nil {
		e.status = StatusClosing
	} else {
		e.status = StatusConnecting
	}
	e.mu.Unlock()
	e.publish()

	if prev != nil {
		_ = prev.Close()
		select {
		case <-prev.Done():
		case <-ctx.Done():
			e.setStatus(StatusIdle)
			return ctx.Err()
		}
		e.setStatus(StatusConnecting)
	}

	conn, err := e.dial(ctx, e.cfg.BaseURL, sess.ConversationID, sess.Token)
	if err != nil {
		e.setStatus(StatusIdle)
		e.sink.Notify(notify.Notification{
			Title:       "Connection error",
			Description: "could not reach the server",
			Severity:    notify.SeverityError,
		})
		return err
	}

	e.mu.Lock()
	e.conn = conn
	e.sess = sess
	e.status = StatusOpen
	ep := e.epoch
	e.mu.Unlock()
	e.logger.Info("connected", zap.String("conversation_id", sess.ConversationID))
	go e.pump(conn, ep)
	e.publish()
	return nil
}

// Disconnect closes the transport unconditionally. The transcript is kept;
// disconnect is a suspend, not a reset.
func (e *Engine) Disconnect() {
	e.lifecycleMu.Lock()
	defer e.lifecycleMu.Unlock()

	e.mu.Lock()
	conn := e.conn
	e.conn = nil
	e.epoch++
	e.stopLoadTimerLocked()
	if conn != nil {
		e.status = StatusClosing
	}
	e.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
		<-conn.Done()
	}
	e.setStatus(StatusIdle)
}

// SendMessage optimistically appends a user message and transmits it. A
// blank input or a disconnected engine makes it a no-op.
func (e *Engine) SendMessage(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	e.mu.Lock()
	if e.status != StatusOpen || e.conn == nil {
		e.mu.Unlock()
		return nil
	}
	conn := e.conn
	sess := e.sess
	e.rec.Apply(event.UserMessage{Content: text, Timestamp: e.now()})
	e.rec.SetLoading(true)
	e.armLoadTimerLocked()
	e.mu.Unlock()
	e.publish()

	payload, err := json.Marshal(outboundFrame{
		Type:           "message",
		Content:        text,
		ConversationID: sess.ConversationID,
	})
	if err != nil {
		return err
	}
	if err := conn.Send(ctx, payload); err != nil {
		e.mu.Lock()
		e.rec.SetLoading(false)
		e.stopLoadTimerLocked()
		e.mu.Unlock()
		e.sink.Notify(notify.Notification{
			Title:       "Send failed",
			Description: err.Error(),
			Severity:    notify.SeverityError,
		})
		e.publish()
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

type outboundFrame struct {
	Type           string  `json:"type"`
	Content        string  `json:"content"`
	ConversationID string  `json:"conversation_id"`
	AgentID        *string `json:"agent_id"`
}

// ResetHistory deletes the persisted rows, clears local state, and
// reconnects under a fresh conversation identity. All or nothing: if the
// deletion fails nothing local changes and no reconnect is attempted.
func (e *Engine) ResetHistory(ctx context.Context) error {
	e.mu.Lock()
	sess := e.sess
	e.mu.Unlock()
	if sess.ConversationID == "" {
		s, err := e.sessions.Session(ctx)
		if err != nil {
			return fmt.Errorf("resolve session: %w", err)
		}
		sess = s
	}

	if e.messages != nil {
		if err := e.messages.DeleteByConversation(sess.ConversationID); err != nil {
			e.sink.Notify(notify.Notification{
				Title:       "Reset failed",
				Description: err.Error(),
				Severity:    notify.SeverityError,
			})
			return fmt.Errorf("delete history: %w", err)
		}
	}

	e.mu.Lock()
	e.rec.Reset()
	e.stopLoadTimerLocked()
	e.mu.Unlock()
	e.publish()

	next, err := e.sessions.Rotate(ctx)
	if err != nil {
		return fmt.Errorf("rotate session: %w", err)
	}
	if e.conversations != nil {
		if err := e.conversations.Create(&model.Conversation{ID: next.ConversationID, CreatedAt: e.now()}); err != nil {
			e.logger.Warn("create conversation row", zap.Error(err))
		}
	}
	return e.connect(ctx, next)
}

func (e *Engine) pump(t transport.Transport, ep uint64) {
	clean := false
	for ev := range t.Events() {
		if _, ok := ev.(event.Finish); ok {
			clean = true
		}
		e.mu.Lock()
		if e.epoch != ep {
			e.mu.Unlock()
			return
		}
		n := e.applyLocked(ev)
		e.mu.Unlock()
		if n != nil {
			e.sink.Notify(*n)
		}
		e.publish()
	}
	// The events channel closing on the live epoch means the transport went
	// away underneath us; engine-driven teardown bumps the epoch first. A
	// stream that delivered its terminal finish event closed cleanly,
	// anything else is a connection failure to surface.
	e.mu.Lock()
	stale := e.epoch != ep
	if !stale {
		e.conn = nil
		e.status = StatusIdle
		e.stopLoadTimerLocked()
		if !clean {
			e.rec.SetLoading(false)
			e.rec.SetErr("connection lost")
		}
	}
	e.mu.Unlock()
	if !stale {
		if !clean {
			e.sink.Notify(notify.Notification{
				Title:       "Connection lost",
				Description: "the server closed the connection",
				Severity:    notify.SeverityError,
			})
		}
		e.publish()
	}
}

func (e *Engine) applyLocked(ev event.Event) *notify.Notification {
	e.rec.Apply(ev)
	switch v := ev.(type) {
	case event.ServerError:
		e.stopLoadTimerLocked()
		return &notify.Notification{
			Title:       "Agent error",
			Description: v.Message,
			Severity:    notify.SeverityError,
		}
	case event.Result, event.End, event.Finish:
		e.stopLoadTimerLocked()
	}
	return nil
}

func (e *Engine) armLoadTimerLocked() {
	if e.cfg.LoadingTimeout <= 0 {
		return
	}
	e.stopLoadTimerLocked()
	ep := e.epoch
	e.loadTimer = time.AfterFunc(e.cfg.LoadingTimeout, func() { e.loadTimedOut(ep) })
}

func (e *Engine) stopLoadTimerLocked() {
	if e.loadTimer != nil {
		e.loadTimer.Stop()
		e.loadTimer = nil
	}
}

func (e *Engine) loadTimedOut(ep uint64) {
	e.mu.Lock()
	if e.epoch != ep || !e.rec.Loading() {
		e.mu.Unlock()
		return
	}
	e.rec.SetLoading(false)
	e.rec.SetErr("timed out waiting for job completion")
	e.mu.Unlock()
	e.sink.Notify(notify.Notification{
		Title:       "Job timed out",
		Description: "no result or end event arrived in time",
		Severity:    notify.SeverityWarning,
	})
	e.publish()
}

func (e *Engine) setStatus(s Status) {
	e.mu.Lock()
	e.status = s
	e.mu.Unlock()
	e.publish()
}

func (e *Engine) publish() {
	e.broker.Publish(e.snapshot())
}

func (e *Engine) snapshot() Update {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Update{
		Messages:  e.rec.Messages(),
		Connected: e.status == StatusOpen,
		Loading:   e.rec.Loading(),
		Err:       e.rec.Err(),
	}
}

func (e *Engine) Messages() []model.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rec.Messages()
}

func (e *Engine) IsConnected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status == StatusOpen
}

func (e *Engine) IsLoading() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rec.Loading()
}

func (e *Engine) Err() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rec.Err()
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

func (e *Engine) Subscribe() (<-chan Update, func()) {
	return e.broker.Subscribe()
}
