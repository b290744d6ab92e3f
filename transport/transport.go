package transport

import (
	"context"
	"errors"

	"github.com/agusx1211/crewdeck/event"
)

// ErrSendUnsupported is returned by unidirectional transports.
var ErrSendUnsupported = errors.New("transport does not support send")

// Transport is the capability the engine consumes: a thing that delivers
// decoded events and exposes send/close. Events is closed when the
// connection is fully torn down; Done closes at the same point and is the
// barrier the engine waits on before opening a replacement connection.
type Transport interface {
	Events() <-chan event.Event
	Send(ctx context.Context, payload []byte) error
	Close() error
	Done() <-chan struct{}
}

// DialFunc opens a transport scoped to one conversation (or job) identity
// and one bearer token, both immutable for the life of the connection.
type DialFunc func(ctx context.Context, baseURL, conversationID, token string) (Transport, error)
