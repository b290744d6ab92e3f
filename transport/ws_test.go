package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agusx1211/crewdeck/event"
)

func TestWSURL(t *testing.T) {
	cases := []struct {
		base string
		want string
	}{
		{"http://host:8080", "ws://host:8080/ws?conversation_id=c1&token=tok"},
		{"https://host", "wss://host/ws?conversation_id=c1&token=tok"},
		{"ws://host/base/", "ws://host/base/ws?conversation_id=c1&token=tok"},
		{"wss://host", "wss://host/ws?conversation_id=c1&token=tok"},
	}
	for _, c := range cases {
		got, err := wsURL(c.base, "c1", "tok")
		if err != nil {
			t.Fatalf("wsURL(%q): %v", c.base, err)
		}
		if got != c.want {
			t.Fatalf("wsURL(%q): want %q got %q", c.base, c.want, got)
		}
	}
	if _, err := wsURL("ftp://host", "c1", "tok"); err == nil {
		t.Fatalf("expected error for unsupported scheme")
	}
}

func TestWSURLOmitsEmptyToken(t *testing.T) {
	got, err := wsURL("http://host", "c1", "")
	if err != nil {
		t.Fatalf("wsURL: %v", err)
	}
	if strings.Contains(got, "token") {
		t.Fatalf("empty token must not appear in the url: %q", got)
	}
}

func TestDialWSRoundTrip(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws" {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		if q.Get("conversation_id") != "c1" || q.Get("token") != "tok" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"type":"stream","stream_type":"token","content":"hi","timestamp":"2026-03-14T12:00:00Z"}`))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		received <- string(msg)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	tr, err := DialWS(ctx, srv.URL, "c1", "tok", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	select {
	case ev := <-tr.Events():
		tok, ok := ev.(event.Token)
		if !ok || tok.Content != "hi" {
			t.Fatalf("unexpected event: %#v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no event received")
	}

	if err := tr.Send(ctx, []byte(`{"type":"message","content":"hello"}`)); err != nil {
		t.Fatalf("send: %v", err)
	}
	select {
	case got := <-received:
		if !strings.Contains(got, "hello") {
			t.Fatalf("server received %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("server never received the frame")
	}

	if err := tr.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	select {
	case <-tr.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("done never signalled after close")
	}
}

func TestDialWSDropsBadFrames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte("   "))
		_ = conn.WriteMessage(websocket.TextMessage, []byte("{garbage"))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"mystery"}`))
		_ = conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"type":"stream","stream_type":"result","content":"valid"}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	tr, err := DialWS(ctx, srv.URL, "c1", "tok", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer tr.Close()

	select {
	case ev := <-tr.Events():
		res, ok := ev.(event.Result)
		if !ok || res.Content != "valid" {
			t.Fatalf("bad frames must be dropped, got %#v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("valid frame never delivered")
	}
}

func TestDialWSCloseWithUndrainedEvents(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for i := 0; i < 200; i++ {
			err := conn.WriteMessage(websocket.TextMessage,
				[]byte(`{"type":"stream","stream_type":"token","content":"x"}`))
			if err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	tr, err := DialWS(ctx, srv.URL, "c1", "tok", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	// One read, then the consumer walks away with the buffer overflowing.
	select {
	case <-tr.Events():
	case <-time.After(2 * time.Second):
		t.Fatalf("no event received")
	}

	if err := tr.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	select {
	case <-tr.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("done never signalled after close with undrained events")
	}
}

func TestDialWSRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := DialWS(ctx, srv.URL, "c1", "bad", nil); err == nil {
		t.Fatalf("expected handshake failure")
	}
}
