package server

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ionic/internal/codec"
	"ionic/internal/config"
	"ionic/internal/protocol"
	"ionic/internal/wire"
	"ionic/internal/world"
)

func testConfig() config.AppConfig {
	cfg := config.Default()
	cfg.Server.Encryption = false
	cfg.Server.Favicon = false
	cfg.World.Pigs = 0
	cfg.World.Seed = 1
	cfg.Limits.ChatCooldown = 0
	return cfg
}

func newServer(t *testing.T, cfg config.AppConfig) (*Server, context.Context) {
	t.Helper()
	s, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		s.chat.Stop()
	})
	return s, ctx
}

type client struct {
	t   *testing.T
	raw net.Conn
	r   *wire.Reader
	w   *wire.Writer
	reg *protocol.Registry

	once    sync.Once
	packets chan protocol.Packet
}

func dial(t *testing.T, s *Server, ctx context.Context) *client {
	t.Helper()
	srv, cli := net.Pipe()
	cli.SetDeadline(time.Now().Add(10 * time.Second))
	go s.ServeConn(ctx, srv)
	t.Cleanup(func() { cli.Close() })
	return &client{t: t, raw: cli, r: wire.NewReader(cli), w: wire.NewWriter(cli), reg: protocol.Default()}
}

func (c *client) send(state protocol.State, p protocol.Packet) {
	c.t.Helper()
	body, err := c.reg.MarshalServerbound(state, p)
	if err != nil {
		c.t.Fatalf("marshal %s: %v", p.Name(), err)
	}
	if err := c.w.WriteBody(body); err != nil {
		c.t.Fatalf("send %s: %v", p.Name(), err)
	}
}

func (c *client) recv(state protocol.State) protocol.Packet {
	c.t.Helper()
	f, err := c.r.ReadFrame()
	if err != nil {
		c.t.Fatalf("read: %v", err)
	}
	p, err := c.reg.DecodeClientbound(state, f.ID, f.Payload)
	if err != nil {
		c.t.Fatalf("decode 0x%02x: %v", f.ID, err)
	}
	return p
}

// expectClosed reads until the server closes the pipe.
func (c *client) expectClosed() {
	c.t.Helper()
	for {
		if _, err := c.r.ReadFrame(); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) && !errors.Is(err, io.ErrUnexpectedEOF) {
				c.t.Fatalf("read error = %v, want closed", err)
			}
			return
		}
	}
}

// play starts decoding every later frame as play packets in the background.
func (c *client) play() {
	c.once.Do(func() {
		c.packets = make(chan protocol.Packet, 256)
		go func() {
			defer close(c.packets)
			for {
				f, err := c.r.ReadFrame()
				if err != nil {
					return
				}
				if p, err := c.reg.DecodeClientbound(protocol.StatePlay, f.ID, f.Payload); err == nil {
					c.packets <- p
				}
			}
		}()
	})
}

// await ticks s until a play packet satisfying match arrives.
func await[T protocol.Packet](t *testing.T, s *Server, ctx context.Context, c *client, match func(T) bool) T {
	t.Helper()
	c.play()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		s.Step(ctx)
		for {
			select {
			case p, ok := <-c.packets:
				if !ok {
					t.Fatal("connection closed while waiting")
				}
				if v, ok := p.(T); ok && (match == nil || match(v)) {
					return v
				}
				continue
			case <-time.After(10 * time.Millisecond):
			}
			break
		}
	}
	var zero T
	t.Fatalf("no %T received", zero)
	return zero
}

// login completes an offline login and returns once the join queue holds
// the connection. Compression follows cfg.
func login(t *testing.T, s *Server, ctx context.Context, name string) *client {
	t.Helper()
	c := dial(t, s, ctx)
	c.send(protocol.StateHandshake, &protocol.Intention{
		ProtocolVersion: protocol.ProtocolVersion, Address: "localhost", Port: 25565, NextState: protocol.IntentLogin,
	})
	c.send(protocol.StateLogin, &protocol.Hello{Username: name})

	p := c.recv(protocol.StateLogin)
	if lc, ok := p.(*protocol.LoginCompression); ok {
		c.r.SetCompression(int(lc.Threshold))
		c.w.SetCompression(int(lc.Threshold))
		p = c.recv(protocol.StateLogin)
	}
	gp, ok := p.(*protocol.GameProfile)
	if !ok {
		t.Fatalf("got %s, want game_profile", p.Name())
	}
	if gp.Username != name || gp.UUID != OfflineUUID(name) {
		t.Fatalf("profile = %+v", gp)
	}
	c.send(protocol.StateLogin, &protocol.LoginAcknowledged{})
	waitFor(t, func() bool { return s.joins.Len() > 0 })
	return c
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// TestOfflineUUID verifies the name-based v3 derivation
func TestOfflineUUID(t *testing.T) {
	id := OfflineUUID("Notch")
	if want := uuid.MustParse("b50ad385-829d-3141-a216-7e7d7539ba7f"); id != want {
		t.Errorf("OfflineUUID(Notch) = %s, want %s", id, want)
	}
	if id.Version() != 3 || id.Variant() != uuid.RFC4122 {
		t.Errorf("version %d variant %s", id.Version(), id.Variant())
	}
	if OfflineUUID("notch") == id {
		t.Error("names must be case sensitive")
	}
}

// TestValidUsername verifies the accepted alphabet and length
func TestValidUsername(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"Steve", true},
		{"a_b_9", true},
		{"sixteen_chars_ok", true},
		{"seventeen_chars_x", false},
		{"", false},
		{"bad name", false},
		{"émile", false},
	}
	for _, tt := range tests {
		if got := ValidUsername(tt.name); got != tt.want {
			t.Errorf("ValidUsername(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

// TestStatusPing verifies the status document and ping echo
func TestStatusPing(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Favicon = true
	cfg.Server.MOTD = "hello there"
	s, ctx := newServer(t, cfg)
	c := dial(t, s, ctx)

	c.send(protocol.StateHandshake, &protocol.Intention{ProtocolVersion: 5, Address: "x", Port: 1, NextState: protocol.IntentStatus})
	c.send(protocol.StateStatus, &protocol.StatusRequest{})
	resp, ok := c.recv(protocol.StateStatus).(*protocol.StatusResponse)
	if !ok {
		t.Fatal("want status_response")
	}
	var doc StatusDocument
	if err := json.Unmarshal([]byte(resp.JSON), &doc); err != nil {
		t.Fatalf("status json: %v", err)
	}
	if doc.Version.Protocol != protocol.ProtocolVersion || doc.Version.Name != protocol.VersionName {
		t.Errorf("version = %+v", doc.Version)
	}
	if doc.Players.Max != cfg.Server.MaxPlayers || doc.Players.Online != 0 {
		t.Errorf("players = %+v", doc.Players)
	}
	if doc.Description.Text != "hello there" {
		t.Errorf("description = %+v", doc.Description)
	}
	if !strings.HasPrefix(doc.Favicon, "data:image/png;base64,") {
		t.Errorf("favicon = %.30q", doc.Favicon)
	}

	c.send(protocol.StateStatus, &protocol.PingRequest{Payload: 424242})
	pong, ok := c.recv(protocol.StateStatus).(*protocol.PongResponse)
	if !ok || pong.Payload != 424242 {
		t.Fatalf("pong = %+v", pong)
	}
	c.expectClosed()
}

// TestOfflineLoginWithCompression verifies the compressed login sequence
// and the move to play on login_acknowledged
func TestOfflineLoginWithCompression(t *testing.T) {
	s, ctx := newServer(t, testConfig())
	c := login(t, s, ctx, "Steve")

	if c.r.Compression() != 256 {
		t.Errorf("threshold = %d, want 256", c.r.Compression())
	}
	pos := await(t, s, ctx, c, func(*protocol.PlayerPosition) bool { return true })
	if pos.Y != world.New(64).SurfaceY() {
		t.Errorf("spawn y = %v", pos.Y)
	}

	players := s.Players()
	if len(players) != 1 || players[0].Name != "Steve" {
		t.Fatalf("players = %+v", players)
	}
	if players[0].UUID != OfflineUUID("Steve").String() {
		t.Errorf("uuid = %s", players[0].UUID)
	}
}

// TestEncryptedLogin verifies the RSA exchange and CFB8 stream
func TestEncryptedLogin(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Encryption = true
	cfg.Network.CompressionThreshold = -1
	s, ctx := newServer(t, cfg)
	c := dial(t, s, ctx)

	c.send(protocol.StateHandshake, &protocol.Intention{ProtocolVersion: protocol.ProtocolVersion, NextState: protocol.IntentLogin})
	c.send(protocol.StateLogin, &protocol.Hello{Username: "Alex"})
	req, ok := c.recv(protocol.StateLogin).(*protocol.EncryptionRequest)
	if !ok {
		t.Fatal("want encryption_request")
	}
	if req.ServerID != "" || len(req.VerifyToken) != verifyTokenLen || req.ShouldAuthenticate {
		t.Errorf("request = %+v", req)
	}
	parsed, err := x509.ParsePKIXPublicKey(req.PublicKey)
	if err != nil {
		t.Fatalf("public key: %v", err)
	}
	pub := parsed.(*rsa.PublicKey)
	if pub.N.BitLen() != 1024 {
		t.Errorf("key bits = %d", pub.N.BitLen())
	}

	secret := []byte("0123456789abcdef")
	encSecret, _ := rsa.EncryptPKCS1v15(rand.Reader, pub, secret)
	encToken, _ := rsa.EncryptPKCS1v15(rand.Reader, pub, req.VerifyToken)
	c.send(protocol.StateLogin, &protocol.Key{SharedSecret: encSecret, VerifyToken: encToken})

	enc, dec, err := wire.NewCipherPair(secret)
	if err != nil {
		t.Fatal(err)
	}
	c.w.SetCipher(enc)
	c.r.SetCipher(dec)

	gp, ok := c.recv(protocol.StateLogin).(*protocol.GameProfile)
	if !ok || gp.Username != "Alex" {
		t.Fatalf("profile = %+v", gp)
	}
	c.send(protocol.StateLogin, &protocol.LoginAcknowledged{})
	waitFor(t, func() bool { return s.joins.Len() == 1 })
	await(t, s, ctx, c, func(*protocol.PlayerPosition) bool { return true })
}

// TestEncryptionTokenMismatch verifies a bad verify token is rejected with
// login_disconnect
func TestEncryptionTokenMismatch(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Encryption = true
	s, ctx := newServer(t, cfg)
	c := dial(t, s, ctx)

	c.send(protocol.StateHandshake, &protocol.Intention{ProtocolVersion: protocol.ProtocolVersion, NextState: protocol.IntentLogin})
	c.send(protocol.StateLogin, &protocol.Hello{Username: "Alex"})
	req := c.recv(protocol.StateLogin).(*protocol.EncryptionRequest)
	parsed, _ := x509.ParsePKIXPublicKey(req.PublicKey)
	pub := parsed.(*rsa.PublicKey)

	encSecret, _ := rsa.EncryptPKCS1v15(rand.Reader, pub, []byte("0123456789abcdef"))
	encToken, _ := rsa.EncryptPKCS1v15(rand.Reader, pub, []byte{9, 9, 9, 9, 9})
	c.send(protocol.StateLogin, &protocol.Key{SharedSecret: encSecret, VerifyToken: encToken})

	d, ok := c.recv(protocol.StateLogin).(*protocol.LoginDisconnect)
	if !ok || !strings.Contains(d.Reason.Text, "encryption") {
		t.Fatalf("disconnect = %+v", d)
	}
	c.expectClosed()
}

// TestLoginRejections verifies version, username and duplicate checks
func TestLoginRejections(t *testing.T) {
	s, ctx := newServer(t, testConfig())
	login(t, s, ctx, "Steve")

	tests := []struct {
		name    string
		version int32
		user    string
		want    string
	}{
		{"old client", 766, "Other", "Outdated client"},
		{"new server needed", 800, "Other", "Outdated server"},
		{"bad username", protocol.ProtocolVersion, "no spaces", "Invalid username"},
		{"duplicate", protocol.ProtocolVersion, "Steve", "already online"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := dial(t, s, ctx)
			c.send(protocol.StateHandshake, &protocol.Intention{ProtocolVersion: tt.version, NextState: protocol.IntentLogin})
			if tt.version == protocol.ProtocolVersion {
				c.send(protocol.StateLogin, &protocol.Hello{Username: tt.user})
			}
			d, ok := c.recv(protocol.StateLogin).(*protocol.LoginDisconnect)
			if !ok || !strings.Contains(d.Reason.Text, tt.want) {
				t.Fatalf("disconnect = %+v, want %q", d, tt.want)
			}
			c.expectClosed()
		})
	}
}

// dialTCP connects over loopback TCP. Unlike a pipe, writes do not wait
// for the server to read them, so a client can run ahead of a rejection.
func dialTCP(t *testing.T, s *Server, ctx context.Context) *client {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	cli, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	srv, err := ln.Accept()
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	go s.ServeConn(ctx, srv)
	cli.SetDeadline(time.Now().Add(10 * time.Second))
	t.Cleanup(func() { cli.Close() })
	return &client{t: t, raw: cli, r: wire.NewReader(cli), w: wire.NewWriter(cli), reg: protocol.Default()}
}

// drain reads until the server goes away. Unread input makes the server's
// close a reset, so any read error counts.
func (c *client) drain() {
	for {
		if _, err := c.r.ReadFrame(); err != nil {
			return
		}
	}
}

// TestLoginSequencing verifies out-of-order login input ends the
// connection without a join or a leaked name reservation
func TestLoginSequencing(t *testing.T) {
	tests := []struct {
		name    string
		encrypt bool
		version int32
		frames  []protocol.Packet
		want    []string // clientbound login packets before the close
		names   []string
	}{
		{
			name:    "repeated hello",
			version: protocol.ProtocolVersion,
			frames:  []protocol.Packet{&protocol.Hello{Username: "Alpha"}, &protocol.Hello{Username: "Beta"}, &protocol.LoginAcknowledged{}},
			names:   []string{"Alpha", "Beta"},
		},
		{
			name:    "frames after version rejection",
			version: 766,
			frames:  []protocol.Packet{&protocol.Hello{Username: "Gamma"}, &protocol.LoginAcknowledged{}},
			names:   []string{"Gamma"},
		},
		{
			name:    "key after game profile",
			version: protocol.ProtocolVersion,
			frames:  []protocol.Packet{&protocol.Hello{Username: "Delta"}, &protocol.Key{SharedSecret: []byte{1}, VerifyToken: []byte{2}}},
			want:    []string{"game_profile", "login_disconnect"},
			names:   []string{"Delta"},
		},
		{
			name:    "acknowledged before encryption",
			encrypt: true,
			version: protocol.ProtocolVersion,
			frames:  []protocol.Packet{&protocol.Hello{Username: "Echo"}, &protocol.LoginAcknowledged{}},
			names:   []string{"Echo"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Server.Encryption = tt.encrypt
			cfg.Network.CompressionThreshold = -1
			s, ctx := newServer(t, cfg)
			c := dialTCP(t, s, ctx)

			// One write, so the whole sequence is on the wire before the
			// server reacts to its first frame.
			var buf bytes.Buffer
			w := wire.NewWriter(&buf)
			intent, _ := c.reg.MarshalServerbound(protocol.StateHandshake, &protocol.Intention{ProtocolVersion: tt.version, NextState: protocol.IntentLogin})
			w.WriteBody(intent)
			for _, p := range tt.frames {
				body, err := c.reg.MarshalServerbound(protocol.StateLogin, p)
				if err != nil {
					t.Fatalf("marshal %s: %v", p.Name(), err)
				}
				w.WriteBody(body)
			}
			if _, err := c.raw.Write(buf.Bytes()); err != nil {
				t.Fatalf("write: %v", err)
			}
			for _, name := range tt.want {
				if got := c.recv(protocol.StateLogin).Name(); got != name {
					t.Fatalf("got %s, want %s", got, name)
				}
			}
			c.drain()

			waitFor(t, func() bool {
				all := s.conns.All()
				return len(all) == 1 && all[0].Closed() && s.reserved.Load() == 0
			})
			if n := s.joins.Len(); n != 0 {
				t.Errorf("join queue holds %d connections", n)
			}
			if reason := s.conns.All()[0].CloseReason(); !strings.HasPrefix(reason, reasonProtocol) {
				t.Errorf("close reason = %q", reason)
			}
			for _, name := range tt.names {
				if _, held := s.names.Load(name); held {
					t.Errorf("name %q still reserved", name)
				}
			}
			if _, ok := s.logins.Load(s.conns.All()[0].ID()); ok {
				t.Error("login state not released")
			}
			if !tt.encrypt {
				login(t, s, ctx, tt.names[0])
			}
		})
	}
}

// TestServerFull verifies max_players bounds logins
func TestServerFull(t *testing.T) {
	cfg := testConfig()
	cfg.Server.MaxPlayers = 1
	s, ctx := newServer(t, cfg)
	login(t, s, ctx, "First")

	c := dial(t, s, ctx)
	c.send(protocol.StateHandshake, &protocol.Intention{ProtocolVersion: protocol.ProtocolVersion, NextState: protocol.IntentLogin})
	c.send(protocol.StateLogin, &protocol.Hello{Username: "Second"})
	d, ok := c.recv(protocol.StateLogin).(*protocol.LoginDisconnect)
	if !ok || !strings.Contains(d.Reason.Text, "full") {
		t.Fatalf("disconnect = %+v", d)
	}
}

// TestPlayPacketDuringLoginCloses verifies Login-state gating of play ids
func TestPlayPacketDuringLoginCloses(t *testing.T) {
	s, ctx := newServer(t, testConfig())
	c := dial(t, s, ctx)
	c.send(protocol.StateHandshake, &protocol.Intention{ProtocolVersion: protocol.ProtocolVersion, NextState: protocol.IntentLogin})

	e := codec.NewEncoder()
	e.WriteVarInt(protocol.C2SSwing)
	e.WriteVarInt(0)
	if err := c.w.WriteBody(e.Bytes()); err != nil {
		t.Fatal(err)
	}
	c.expectClosed()

	waitFor(t, func() bool {
		all := s.conns.All()
		return len(all) == 1 && all[0].Closed()
	})
	if reason := s.conns.All()[0].CloseReason(); !strings.HasPrefix(reason, "protocol: ") {
		t.Errorf("close reason = %q", reason)
	}
}

// TestChatBroadcast verifies chat is attributed and delivered to players
func TestChatBroadcast(t *testing.T) {
	s, ctx := newServer(t, testConfig())
	c := login(t, s, ctx, "Steve")
	await(t, s, ctx, c, func(*protocol.PlayerPosition) bool { return true })

	var mu sync.Mutex
	var console []string
	unsub := s.SubscribeConsole(func(line string) {
		mu.Lock()
		console = append(console, line)
		mu.Unlock()
	})
	defer unsub()

	c.send(protocol.StatePlay, &protocol.Chat{Message: "hi"})
	msg := await(t, s, ctx, c, func(p *protocol.SystemChat) bool { return p.Message.String() == "<Steve> hi" })
	if msg.Overlay {
		t.Error("chat sent as overlay")
	}

	c.send(protocol.StatePlay, &protocol.ChatCommand{Command: "say yo"})
	await(t, s, ctx, c, func(p *protocol.SystemChat) bool { return p.Message.String() == "<Steve> yo" })

	if !s.Submit("/say from console") {
		t.Fatal("Submit rejected")
	}
	await(t, s, ctx, c, func(p *protocol.SystemChat) bool { return p.Message.String() == "<Server> from console" })

	mu.Lock()
	defer mu.Unlock()
	want := []string{"<Steve> hi", "<Steve> yo", "<Server> from console"}
	if strings.Join(console, "|") != strings.Join(want, "|") {
		t.Errorf("console = %q, want %q", console, want)
	}
}

// TestMovementAfterTeleportConfirm verifies moves are ignored until the
// spawn teleport is confirmed
func TestMovementAfterTeleportConfirm(t *testing.T) {
	s, ctx := newServer(t, testConfig())
	c := login(t, s, ctx, "Steve")
	pos := await(t, s, ctx, c, func(*protocol.PlayerPosition) bool { return true })

	c.send(protocol.StatePlay, &protocol.MovePlayerPos{X: 50, Y: 70, Z: 50})
	c.send(protocol.StatePlay, &protocol.AcceptTeleportation{TeleportID: pos.TeleportID})
	c.send(protocol.StatePlay, &protocol.MovePlayerPos{X: 10, Y: 66, Z: -3, OnGround: true})

	waitFor(t, func() bool {
		s.Step(ctx)
		p := s.Players()
		return len(p) == 1 && p[0].X == 10 && p[0].Z == -3
	})
}

// TestBlockBreaking verifies finished digging within reach sets air for
// everyone and out-of-reach digging is resynced
func TestBlockBreaking(t *testing.T) {
	s, ctx := newServer(t, testConfig())
	c := login(t, s, ctx, "Steve")
	await(t, s, ctx, c, func(*protocol.PlayerPosition) bool { return true })

	near := codec.Position{X: 0, Y: 64, Z: 0}
	c.send(protocol.StatePlay, &protocol.PlayerAction{Status: protocol.ActionFinishDigging, Location: near})
	await(t, s, ctx, c, func(p *protocol.BlockUpdate) bool {
		return p.Location == near && p.BlockStateID == world.BlockAir
	})

	far := codec.Position{X: 100, Y: 64, Z: 100}
	c.send(protocol.StatePlay, &protocol.PlayerAction{Status: protocol.ActionFinishDigging, Location: far})
	await(t, s, ctx, c, func(p *protocol.BlockUpdate) bool {
		return p.Location == far && p.BlockStateID == world.BlockGrass
	})
}

// TestInvalidMoveFlagsAndDisconnects verifies a non-finite position ends
// the session with a play disconnect
func TestInvalidMoveFlagsAndDisconnects(t *testing.T) {
	s, ctx := newServer(t, testConfig())
	c := login(t, s, ctx, "Steve")
	pos := await(t, s, ctx, c, func(*protocol.PlayerPosition) bool { return true })

	c.send(protocol.StatePlay, &protocol.AcceptTeleportation{TeleportID: pos.TeleportID})
	c.send(protocol.StatePlay, &protocol.MovePlayerPos{X: 1e9, Y: 64, Z: 0})
	d := await(t, s, ctx, c, func(*protocol.Disconnect) bool { return true })
	if !strings.Contains(d.Reason.String(), "Invalid move") {
		t.Errorf("reason = %q", d.Reason.String())
	}
}

// TestCommandSuggestions verifies tab completion of command names
func TestCommandSuggestions(t *testing.T) {
	s, ctx := newServer(t, testConfig())
	c := login(t, s, ctx, "Steve")
	await(t, s, ctx, c, func(*protocol.PlayerPosition) bool { return true })

	c.send(protocol.StatePlay, &protocol.CommandSuggestion{TransactionID: 7, Input: "/ti"})
	got := await(t, s, ctx, c, func(p *protocol.CommandSuggestions) bool { return p.TransactionID == 7 })
	if got.Start != 1 || got.Length != 2 || len(got.Matches) != 1 || got.Matches[0].Content != "time" {
		t.Errorf("suggestions = %+v", got)
	}
}

// TestServeShutdown verifies Serve returns on cancel and closes sessions
func TestServeShutdown(t *testing.T) {
	s, err := New(testConfig(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	raw, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer raw.Close()
	waitFor(t, func() bool { return s.conns.Len() == 1 })

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}
	if c := s.conns.All()[0]; !strings.HasPrefix(c.CloseReason(), "shutdown") {
		t.Errorf("close reason = %q", c.CloseReason())
	}
}
