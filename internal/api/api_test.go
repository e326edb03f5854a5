package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"ionic/internal/config"
	"ionic/internal/server"
)

type fakeGame struct {
	mu        sync.Mutex
	submitted []string
	full      bool
	subs      []func(string)
}

func (g *fakeGame) Info() server.Info {
	return server.Info{Version: "1.21.1", Protocol: 767, MOTD: "test", Online: 1, MaxPlayers: 20}
}

func (g *fakeGame) Players() []server.PlayerInfo {
	return []server.PlayerInfo{{Name: "Notch", UUID: "b50ad385-829d-3141-a216-7e7d7539ba7f"}}
}

func (g *fakeGame) Submit(line string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.full {
		return false
	}
	g.submitted = append(g.submitted, line)
	return true
}

func (g *fakeGame) SubscribeConsole(fn func(string)) func() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.subs = append(g.subs, fn)
	return func() {}
}

func (g *fakeGame) publish(line string) {
	g.mu.Lock()
	subs := append([]func(string){}, g.subs...)
	g.mu.Unlock()
	for _, fn := range subs {
		fn(line)
	}
}

func (g *fakeGame) lines() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string{}, g.submitted...)
}

func testRouter(g Game, token string, console *ConsoleHub) http.Handler {
	return NewRouter(RouterConfig{
		Game:            g,
		Console:         console,
		RateLimitConfig: &RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
		Token:           token,
		DisableLogging:  true,
		Log:             zerolog.Nop(),
	})
}

func request(h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	r.RemoteAddr = "127.0.0.1:1234"
	for k, v := range header {
		r.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

// TestStatusAndPlayers verifies the read endpoints return the game snapshot
func TestStatusAndPlayers(t *testing.T) {
	h := testRouter(&fakeGame{}, "", nil)

	rec := request(h, http.MethodGet, "/api/status", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var info server.Info
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatal(err)
	}
	if info.Protocol != 767 || info.MOTD != "test" || info.MaxPlayers != 20 {
		t.Errorf("info = %+v", info)
	}

	rec = request(h, http.MethodGet, "/api/players", "", nil)
	var out struct {
		Count   int                 `json:"count"`
		Players []server.PlayerInfo `json:"players"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.Count != 1 || out.Players[0].Name != "Notch" {
		t.Errorf("players = %+v", out)
	}
}

// TestCommandEndpoint verifies commands are queued and bad bodies rejected
func TestCommandEndpoint(t *testing.T) {
	g := &fakeGame{}
	h := testRouter(g, "", nil)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"valid", `{"command":"say hi"}`, http.StatusAccepted},
		{"not json", `say hi`, http.StatusBadRequest},
		{"empty", `{"command":"  "}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := request(h, http.MethodPost, "/api/command", tt.body, nil)
			if rec.Code != tt.want {
				t.Errorf("code = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
	if got := g.lines(); len(got) != 1 || got[0] != "say hi" {
		t.Errorf("submitted = %v", got)
	}

	g.full = true
	rec := request(h, http.MethodPost, "/api/command", `{"command":"list"}`, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("full queue code = %d", rec.Code)
	}
}

// TestTokenAuth verifies bearer tokens are required when configured
func TestTokenAuth(t *testing.T) {
	h := testRouter(&fakeGame{}, "secret", nil)

	tests := []struct {
		name   string
		path   string
		header map[string]string
		want   int
	}{
		{"missing", "/api/status", nil, http.StatusUnauthorized},
		{"wrong", "/api/status", map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized},
		{"basic scheme", "/api/status", map[string]string{"Authorization": "Basic secret"}, http.StatusUnauthorized},
		{"bearer", "/api/status", map[string]string{"Authorization": "Bearer secret"}, http.StatusOK},
		{"query", "/api/status?token=secret", nil, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := request(h, http.MethodGet, tt.path, "", tt.header)
			if rec.Code != tt.want {
				t.Errorf("code = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

// TestLoopbackOnlyWithoutToken verifies remote peers are refused when no
// token is set, even with a spoofed forwarding header
func TestLoopbackOnlyWithoutToken(t *testing.T) {
	h := testRouter(&fakeGame{}, "", nil)

	r := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	r.RemoteAddr = "203.0.113.7:5555"
	r.Header.Set("X-Forwarded-For", "127.0.0.1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("remote code = %d", rec.Code)
	}

	r = httptest.NewRequest(http.MethodGet, "/api/status", nil)
	r.RemoteAddr = "127.0.0.1:5555"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if rec.Code != http.StatusOK {
		t.Errorf("loopback code = %d", rec.Code)
	}
}

// TestRateLimit verifies the limiter answers 429 once the burst is spent
func TestRateLimit(t *testing.T) {
	rl := NewIPRateLimiter(RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2})
	defer rl.Stop()
	h := NewRouter(RouterConfig{Game: &fakeGame{}, RateLimiter: rl, DisableLogging: true, Log: zerolog.Nop()})

	var codes []int
	for i := 0; i < 3; i++ {
		r := httptest.NewRequest(http.MethodGet, "/api/status", nil)
		r.RemoteAddr = "127.0.0.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v", codes)
	}
	if s := rl.Stats(); s["rejected"] != 1 || s["allowed"] != 2 {
		t.Errorf("stats = %v", s)
	}
}

// TestClientIP verifies forwarding headers take precedence
func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		want   string
	}{
		{"remote", nil, "192.0.2.1"},
		{"xff list", map[string]string{"X-Forwarded-For": "198.51.100.1, 10.0.0.1"}, "198.51.100.1"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.2"}, "198.51.100.2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = "192.0.2.1:80"
			for k, v := range tt.header {
				r.Header.Set(k, v)
			}
			if got := ClientIP(r); got != tt.want {
				t.Errorf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestSocketLimiter verifies per-IP slots are reserved and released
func TestSocketLimiter(t *testing.T) {
	l := NewSocketLimiter(2)
	if !l.Allow("a") || !l.Allow("a") {
		t.Fatal("first two sockets refused")
	}
	if l.Allow("a") {
		t.Error("third socket admitted")
	}
	if !l.Allow("b") {
		t.Error("other address refused")
	}
	l.Release("a")
	if l.Count("a") != 1 || !l.Allow("a") {
		t.Error("release did not free a slot")
	}
}

// TestOriginAllowed verifies wildcard origin patterns
func TestOriginAllowed(t *testing.T) {
	patterns := []string{"http://localhost:*", "https://admin.example.com"}
	tests := []struct {
		origin string
		want   bool
	}{
		{"http://localhost:3000", true},
		{"https://admin.example.com", true},
		{"https://evil.example.com", false},
		{"http://localhost.evil.com", false},
	}
	for _, tt := range tests {
		if got := originAllowed(tt.origin, patterns); got != tt.want {
			t.Errorf("originAllowed(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// TestConsoleSocket verifies console lines stream out and received lines
// are submitted as commands
func TestConsoleSocket(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g := &fakeGame{}
	hub := NewConsoleHub(g, 2, nil, zerolog.Nop())
	go hub.Run(ctx)
	g.SubscribeConsole(hub.Broadcast)

	ts := httptest.NewServer(testRouter(g, "", hub))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/console"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer ws.Close()
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	g.publish("<Server> hello")
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev ConsoleEvent
	if err := ws.ReadJSON(&ev); err != nil {
		t.Fatal(err)
	}
	if ev.Event != "console" || ev.Data != "<Server> hello" {
		t.Errorf("event = %+v", ev)
	}

	if err := ws.WriteMessage(websocket.TextMessage, []byte("time set 6000")); err != nil {
		t.Fatal(err)
	}
	if err := ws.WriteMessage(websocket.TextMessage, []byte(`{"command":"list"}`)); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return len(g.lines()) == 2 })
	if got := g.lines(); got[0] != "time set 6000" || got[1] != "list" {
		t.Errorf("submitted = %v", got)
	}

	ws.Close()
	waitFor(t, func() bool { return hub.ClientCount() == 0 })
}

// TestConsoleClientLimit verifies the hub refuses sockets past its cap
func TestConsoleClientLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g := &fakeGame{}
	hub := NewConsoleHub(g, 1, nil, zerolog.Nop())
	go hub.Run(ctx)
	ts := httptest.NewServer(testRouter(g, "", hub))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/console"
	first, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer first.Close()
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("second socket admitted")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("response = %v", resp)
	}
}

// TestServeWiresConsole verifies Serve subscribes the hub to the game
// and answers HTTP on the listener
func TestServeWiresConsole(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	g := &fakeGame{}
	s := NewServer(g, config.DefaultAdmin(), zerolog.Nop())
	if err := s.Serve(ctx, ln); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Post("http://"+ln.Addr().String()+"/api/command", "application/json",
		bytes.NewBufferString(`{"command":"say hi"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("code = %d", resp.StatusCode)
	}

	g.mu.Lock()
	subs := len(g.subs)
	g.mu.Unlock()
	if subs != 1 {
		t.Errorf("subscriptions = %d", subs)
	}
}
