package transport

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/agusx1211/crewdeck/event"
)

const eventBuffer = 64

type wsTransport struct {
	conn   *websocket.Conn
	events chan event.Event
	done   chan struct{}
	closed chan struct{}
	dec    event.Decoder
	logger *zap.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// DialWS opens the duplex connection against <base>/ws with the bearer
// token and conversation identifier passed as connection parameters.
func DialWS(ctx context.Context, baseURL, conversationID, token string, logger *zap.Logger) (Transport, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	u, err := wsURL(baseURL, conversationID, token)
	if err != nil {
		return nil, err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %v", baseURL, err)
	}
	t := &wsTransport{
		conn:   conn,
		events: make(chan event.Event, eventBuffer),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
		logger: logger,
	}
	go t.readLoop()
	return t, nil
}

func wsURL(baseURL, conversationID, token string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url %q: %v", baseURL, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	q := u.Query()
	q.Set("conversation_id", conversationID)
	if token != "" {
		q.Set("token", token)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (t *wsTransport) readLoop() {
	defer close(t.done)
	defer close(t.events)
	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.logger.Warn("connection closed unexpectedly", zap.Error(err))
			}
			return
		}
		ev, err := t.dec.Decode(data)
		if err != nil {
			if err != event.ErrEmptyFrame {
				t.logger.Warn("dropping frame", zap.Error(err))
			}
			continue
		}
		// Close must not wait on a consumer that stopped reading, or Done
		// never fires and teardown stalls.
		select {
		case t.events <- ev:
		case <-t.closed:
			return
		}
	}
}

func (t *wsTransport) Events() <-chan event.Event {
	return t.events
}

func (t *wsTransport) Send(ctx context.Context, payload []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = t.conn.SetWriteDeadline(deadline)
	}
	return t.conn.WriteMessage(websocket.TextMessage, payload)
}

func (t *wsTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closed)
		t.writeMu.Lock()
		_ = t.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		t.writeMu.Unlock()
		err = t.conn.Close()
	})
	return err
}

func (t *wsTransport) Done() <-chan struct{} {
	return t.done
}
