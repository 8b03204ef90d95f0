// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package websocket

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/drivecast/internal/auth"
	"github.com/tomtom215/drivecast/internal/bus"
	"github.com/tomtom215/drivecast/internal/logging"
	"github.com/tomtom215/drivecast/internal/metrics"
	"github.com/tomtom215/drivecast/internal/relay"
	"github.com/tomtom215/drivecast/internal/store"
)

func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

type testServer struct {
	srv    *httptest.Server
	hub    *Hub
	relay  *relay.Relay
	cancel context.CancelFunc
}

func newTestServer(t *testing.T, cfg Config) *testServer {
	t.Helper()
	rl, err := relay.New(relay.Config{NodeID: "node-1"}, store.NewMemory(), bus.NewMemory())
	if err != nil {
		t.Fatalf("relay.New: %v", err)
	}
	hub := NewHub(rl, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = hub.RunWithContext(ctx) }()

	srv := httptest.NewServer(Handler(hub, auth.QueryAuthenticator{}))
	ts := &testServer{srv: srv, hub: hub, relay: rl, cancel: cancel}
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return ts
}

func (ts *testServer) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/ws?userId=" + userID
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// waitFor polls cond until it holds or the timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, msg string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("%s: timeout after %v", msg, timeout)
}

func (ts *testServer) waitBound(t *testing.T, userID string) relay.Session {
	t.Helper()
	var s relay.Session
	waitFor(t, 2*time.Second, "session bound", func() bool {
		var ok bool
		s, ok = ts.relay.Registry().Get(userID)
		return ok
	})
	return s
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("SetReadDeadline: %v", err)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("decode frame %s: %v", data, err)
	}
	return f
}

func expectSilence(t *testing.T, conn *websocket.Conn, wait time.Duration) {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
		t.Fatalf("SetReadDeadline: %v", err)
	}
	_, data, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("expected no frame, got %s", data)
	}
	var netErr interface{ Timeout() bool }
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Fatalf("expected read timeout, got %v", err)
	}
}

func TestHandlerDeliversRelayFrames(t *testing.T) {
	ts := newTestServer(t, Config{})

	conn := ts.dial(t, "u1")
	ts.waitBound(t, "u1")

	waitFor(t, time.Second, "client registered", func() bool { return ts.hub.ClientCount() == 1 })
	if testutil.ToFloat64(metrics.WSConnections) < 1 {
		t.Error("connection gauge should count the live client")
	}
	if owner, ok := ts.relay.Ownership().Owner(context.Background(), "u1"); !ok || owner != "node-1" {
		t.Fatalf("owner = %q, %v; want node-1", owner, ok)
	}

	if err := ts.relay.ToUser(context.Background(), "u1", "/queue/incident", []byte(`{"type":"ACCIDENT"}`)); err != nil {
		t.Fatalf("ToUser: %v", err)
	}

	f := readFrame(t, conn)
	if f.Destination != "/queue/incident" {
		t.Errorf("destination = %q, want /queue/incident", f.Destination)
	}
	if string(f.Body) != `{"type":"ACCIDENT"}` {
		t.Errorf("body = %s", f.Body)
	}
}

func TestPingIsAnsweredWithPong(t *testing.T) {
	ts := newTestServer(t, Config{})
	conn := ts.dial(t, "u1")
	ts.waitBound(t, "u1")

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatalf("write ping: %v", err)
	}

	f := readFrame(t, conn)
	if f.Destination != relay.SystemDestination {
		t.Errorf("destination = %q, want %q", f.Destination, relay.SystemDestination)
	}
	var body pongBody
	if err := json.Unmarshal(f.Body, &body); err != nil {
		t.Fatalf("decode pong: %v", err)
	}
	if body.Type != "pong" {
		t.Errorf("type = %q, want pong", body.Type)
	}
	if _, err := time.Parse(time.RFC3339, body.Timestamp); err != nil {
		t.Errorf("timestamp %q: %v", body.Timestamp, err)
	}
}

func TestUnknownAndMalformedFramesAreIgnored(t *testing.T) {
	ts := newTestServer(t, Config{})
	conn := ts.dial(t, "u1")
	ts.waitBound(t, "u1")

	for _, msg := range []string{`not json`, `{"type":"subscribe"}`} {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			t.Fatalf("write %q: %v", msg, err)
		}
	}
	expectSilence(t, conn, 150*time.Millisecond)
}

func TestUnauthenticatedUpgradeIsRejected(t *testing.T) {
	ts := newTestServer(t, Config{})
	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/ws"

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if conn != nil {
		_ = conn.Close()
	}
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil {
		t.Fatal("expected an HTTP response")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
	if got := resp.Header.Get("WWW-Authenticate"); got != "Bearer" {
		t.Errorf("WWW-Authenticate = %q", got)
	}
}

func TestInboundRateLimit(t *testing.T) {
	ts := newTestServer(t, Config{InboundRate: 0.001, InboundBurst: 1})
	before := testutil.ToFloat64(metrics.WSErrors.WithLabelValues("rate_limited"))

	conn := ts.dial(t, "u1")
	ts.waitBound(t, "u1")

	for i := 0; i < 3; i++ {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
			t.Fatalf("write ping %d: %v", i, err)
		}
	}

	if f := readFrame(t, conn); f.Destination != relay.SystemDestination {
		t.Fatalf("destination = %q", f.Destination)
	}
	waitFor(t, time.Second, "rate limited frames counted", func() bool {
		return testutil.ToFloat64(metrics.WSErrors.WithLabelValues("rate_limited"))-before == 2
	})
	expectSilence(t, conn, 150*time.Millisecond)
}

func TestClientCloseReleasesSession(t *testing.T) {
	ts := newTestServer(t, Config{})
	conn := ts.dial(t, "u1")
	ts.waitBound(t, "u1")

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()

	waitFor(t, 2*time.Second, "session released", func() bool {
		_, ok := ts.relay.Registry().Get("u1")
		return !ok && ts.hub.ClientCount() == 0
	})
	if _, ok := ts.relay.Ownership().Owner(context.Background(), "u1"); ok {
		t.Error("ownership should be released after the last session closes")
	}
}

func TestReconnectOnSameNodeKeepsNewestSession(t *testing.T) {
	ts := newTestServer(t, Config{})

	first := ts.dial(t, "u1")
	firstSession := ts.waitBound(t, "u1")

	second := ts.dial(t, "u1")
	waitFor(t, 2*time.Second, "second session bound", func() bool {
		s, ok := ts.relay.Registry().Get("u1")
		return ok && s.ID() != firstSession.ID()
	})

	if err := ts.relay.ToUser(context.Background(), "u1", "/queue/incident", []byte(`{"n":1}`)); err != nil {
		t.Fatalf("ToUser: %v", err)
	}
	if f := readFrame(t, second); string(f.Body) != `{"n":1}` {
		t.Errorf("second body = %s", f.Body)
	}
	expectSilence(t, first, 150*time.Millisecond)

	// The stale socket going away must not release the new session.
	_ = first.Close()
	waitFor(t, 2*time.Second, "stale client removed", func() bool { return ts.hub.ClientCount() == 1 })

	if _, ok := ts.relay.Registry().Get("u1"); !ok {
		t.Error("newest session should stay registered")
	}
	if owner, ok := ts.relay.Ownership().Owner(context.Background(), "u1"); !ok || owner != "node-1" {
		t.Errorf("owner = %q, %v; want node-1", owner, ok)
	}
}

func TestHubShutdownClosesClients(t *testing.T) {
	ts := newTestServer(t, Config{})
	conn := ts.dial(t, "u1")
	ts.waitBound(t, "u1")

	ts.cancel()

	select {
	case <-ts.hub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("SetReadDeadline: %v", err)
	}
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Fatalf("expected going-away close, got %v", err)
	}
	if n := ts.hub.ClientCount(); n != 0 {
		t.Errorf("ClientCount = %d after shutdown", n)
	}
	waitFor(t, 2*time.Second, "session released on shutdown", func() bool {
		_, ok := ts.relay.Registry().Get("u1")
		return !ok
	})
}

func TestClientSend(t *testing.T) {
	hub := NewHub(nil, Config{SendBuffer: 1})

	t.Run("full buffer drops", func(t *testing.T) {
		c := NewClient(hub, nil, "u1")
		if err := c.Send("/queue/incident", []byte(`{}`)); err != nil {
			t.Fatalf("first Send: %v", err)
		}
		if err := c.Send("/queue/incident", []byte(`{}`)); !errors.Is(err, ErrSendBufferFull) {
			t.Fatalf("second Send err = %v, want ErrSendBufferFull", err)
		}
	})

	t.Run("closed client rejects", func(t *testing.T) {
		c := NewClient(hub, nil, "u1")
		c.close()
		c.close()
		if err := c.Send("/queue/incident", []byte(`{}`)); !errors.Is(err, ErrClientClosed) {
			t.Fatalf("Send err = %v, want ErrClientClosed", err)
		}
	})

	t.Run("payload is copied", func(t *testing.T) {
		c := NewClient(hub, nil, "u1")
		payload := []byte(`{"a":1}`)
		if err := c.Send("/queue/driving", payload); err != nil {
			t.Fatalf("Send: %v", err)
		}
		payload[2] = 'b'
		f := <-c.send
		if string(f.Body) != `{"a":1}` {
			t.Errorf("body = %s", f.Body)
		}
	})

	t.Run("ids are unique", func(t *testing.T) {
		a, b := NewClient(hub, nil, "u1"), NewClient(hub, nil, "u1")
		if a.ID() == "" || a.ID() == b.ID() {
			t.Errorf("ids %q and %q", a.ID(), b.ID())
		}
		if a.UserID() != "u1" {
			t.Errorf("UserID = %q", a.UserID())
		}
	})
}

func TestConfigDefaults(t *testing.T) {
	got := Config{}.withDefaults()
	want := DefaultConfig()
	if got.SendBuffer != want.SendBuffer || got.InboundRate != want.InboundRate || got.InboundBurst != want.InboundBurst {
		t.Errorf("withDefaults = %+v, want %+v", got, want)
	}
	if pingPeriod >= pongWait {
		t.Errorf("pingPeriod %v must be shorter than pongWait %v", pingPeriod, pongWait)
	}
}

func TestOriginChecker(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"no list allows all", nil, "https://evil.example", true},
		{"wildcard", []string{"*"}, "https://evil.example", true},
		{"listed", []string{"https://app.example/"}, "https://APP.example", true},
		{"not listed", []string{"https://app.example"}, "https://evil.example", false},
		{"missing origin", []string{"https://app.example"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := originChecker(tt.allowed)(r); got != tt.want {
				t.Errorf("originChecker(%v)(%q) = %v, want %v", tt.allowed, tt.origin, got, tt.want)
			}
		})
	}
}
