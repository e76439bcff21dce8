package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"battlemap_server/internal/service/realtime"
)

// flakyServer 记录收到的帧，第一条连接在收到 join 后被直接掐断
type flakyServer struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	conns   int
	joins   []realtime.JoinPayload
	queries []string
}

func (s *flakyServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.conns++
	n := s.conns
	s.queries = append(s.queries, r.URL.RawQuery)
	s.mu.Unlock()
	defer conn.Close()

	for {
		var env realtime.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}
		if env.Event != realtime.EventJoinSession {
			continue
		}
		var p realtime.JoinPayload
		_ = json.Unmarshal(env.Data, &p)
		s.mu.Lock()
		s.joins = append(s.joins, p)
		s.mu.Unlock()

		frame, _ := realtime.Encode(realtime.EventSessionState, map[string]any{"role": "PLAYER"})
		_ = conn.WriteMessage(websocket.TextMessage, frame)
		if n == 1 {
			// 不发 close 帧，模拟网络中断
			return
		}
	}
}

func (s *flakyServer) snapshot() (int, []realtime.JoinPayload, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns, append([]realtime.JoinPayload(nil), s.joins...), append([]string(nil), s.queries...)
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + "/wss"
}

func next(t *testing.T, c *Client, event string) Event {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-c.Events():
			if !ok {
				t.Fatalf("events closed while waiting for %s", event)
			}
			if ev.Event == event {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", event)
		}
	}
}

func TestClient_ReconnectsAndRejoins(t *testing.T) {
	fs := &flakyServer{}
	server := httptest.NewServer(fs)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := New(Options{URL: wsURL(server), Token: "tok", InitialDelay: 10 * time.Millisecond})
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := c.Join("s1", "Alice"); err != nil {
		t.Fatalf("join: %v", err)
	}
	next(t, c, realtime.EventSessionState)
	next(t, c, EventReconnected)
	next(t, c, realtime.EventSessionState)

	conns, joins, queries := fs.snapshot()
	if conns != 2 || len(joins) != 2 {
		t.Fatalf("conns=%d joins=%+v", conns, joins)
	}
	if joins[1].SessionId != "s1" || joins[1].DisplayName != "Alice" {
		t.Fatalf("rejoin payload=%+v", joins[1])
	}
	if queries[1] != "token=tok" {
		t.Fatalf("query=%q", queries[1])
	}

	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := c.Chat("hello", "chat"); err != ErrNotConnected {
		t.Fatalf("send after close err=%v", err)
	}
}

func TestClient_RejectedHandshakeIsPermanent(t *testing.T) {
	var attempts int
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		mu.Unlock()
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	c := New(Options{URL: wsURL(server), InitialDelay: 10 * time.Millisecond})
	if err := c.Connect(context.Background()); err == nil {
		t.Fatal("expected handshake error")
	}
	mu.Lock()
	defer mu.Unlock()
	if attempts != 1 {
		t.Fatalf("attempts=%d, 4xx should not be retried", attempts)
	}
}

func TestClient_GivesUpAfterMaxRetries(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(server)
	server.Close()

	start := time.Now()
	c := New(Options{URL: url, MaxRetries: 3, InitialDelay: 5 * time.Millisecond})
	if err := c.Connect(context.Background()); err == nil {
		t.Fatal("expected dial error")
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("retries should stay bounded")
	}
}

func TestClient_ServerCloseStopsReconnect(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var conns int
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		mu.Lock()
		conns++
		mu.Unlock()
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "kicked"))
		time.Sleep(50 * time.Millisecond)
		_ = conn.Close()
	}))
	defer server.Close()

	c := New(Options{URL: wsURL(server), UserId: "bob", InitialDelay: 10 * time.Millisecond})
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	next(t, c, EventDisconnected)
	if _, ok := <-c.Events(); ok {
		t.Fatal("events should be closed")
	}
	mu.Lock()
	defer mu.Unlock()
	if conns != 1 {
		t.Fatalf("conns=%d", conns)
	}
}
