package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/agusx1211/crewdeck/event"
)

type streamTransport struct {
	body   io.ReadCloser
	cancel context.CancelFunc
	events chan event.Event
	done   chan struct{}
	closed chan struct{}
	dec    event.Decoder
	logger *zap.Logger

	closeOnce sync.Once
}

// DialStream follows the unidirectional per-job execution stream. Named
// events step, task, result, error, and finish are mapped onto the same
// event union the duplex transport produces; finish is terminal and closes
// the stream.
func DialStream(ctx context.Context, baseURL, jobID, token string, logger *zap.Logger) (Transport, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	u, err := streamURL(baseURL, jobID, token)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("dial stream %s: %v", baseURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("stream %s: status %d", baseURL, resp.StatusCode)
	}
	t := &streamTransport{
		body:   resp.Body,
		cancel: cancel,
		events: make(chan event.Event, eventBuffer),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
		logger: logger,
	}
	go t.readLoop()
	return t, nil
}

func streamURL(baseURL, jobID, token string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url %q: %v", baseURL, err)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	case "http", "https":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/jobs/" + jobID + "/stream"
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (t *streamTransport) readLoop() {
	defer close(t.done)
	defer close(t.events)
	defer t.cancel()
	defer t.body.Close()

	scanner := bufio.NewScanner(t.body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	name := ""
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			terminal := t.emit(name, data)
			name = ""
			if terminal {
				return
			}
		}
	}
}

func (t *streamTransport) emit(name, data string) bool {
	if name == "" {
		return false
	}
	ev, err := t.dec.DecodeStream(name, []byte(data))
	if err != nil {
		if err != event.ErrEmptyFrame {
			t.logger.Warn("dropping stream event", zap.String("event", name), zap.Error(err))
		}
		return false
	}
	// Close must not wait on a consumer that stopped reading, or Done
	// never fires and teardown stalls.
	select {
	case t.events <- ev:
	case <-t.closed:
		return true
	}
	_, terminal := ev.(event.Finish)
	return terminal
}

func (t *streamTransport) Events() <-chan event.Event {
	return t.events
}

func (t *streamTransport) Send(context.Context, []byte) error {
	return ErrSendUnsupported
}

func (t *streamTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.closed)
		t.cancel()
		_ = t.body.Close()
	})
	return nil
}

func (t *streamTransport) Done() <-chan struct{} {
	return t.done
}
