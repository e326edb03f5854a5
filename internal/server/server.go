// Package server ties the runtime together: it accepts game connections,
// runs the handshake, status and login exchanges on each reader goroutine,
// queues play frames for the tick, and exposes a small control surface for
// the console and the admin API.
package server

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"ionic/internal/broadcast"
	"ionic/internal/codec"
	"ionic/internal/command"
	"ionic/internal/config"
	"ionic/internal/conn"
	"ionic/internal/dispatch"
	"ionic/internal/favicon"
	"ionic/internal/observability"
	"ionic/internal/protocol"
	"ionic/internal/sched"
	"ionic/internal/systems"
	"ionic/internal/text"
	"ionic/internal/world"
)

// Close reason prefixes. The text before the first colon becomes the
// metrics cause.
const (
	reasonEOF      = "eof: "
	reasonTimeout  = "timeout: "
	reasonProtocol = "protocol: "
	reasonShutdown = "shutdown: server stopping"
)

// Server owns every long-lived runtime component.
type Server struct {
	cfg config.AppConfig
	log zerolog.Logger

	reg        *protocol.Registry
	world      *world.World
	conns      *conn.Registry
	broadcast  *broadcast.Queue
	commands   *command.Registry
	cmdQueue   *command.Queue
	cmdEnv     *command.Env
	chat       *command.RateLimiter
	dispatcher *dispatch.Dispatcher
	sched      *sched.Scheduler
	loop       *sched.Loop
	joins      *systems.JoinQueue
	lan        *systems.LANAnnouncer

	key     *rsa.PrivateKey
	pubDER  []byte
	favicon string

	logins   sync.Map // conn.ID -> *loginState
	names    sync.Map // username -> conn.ID
	reserved atomic.Int32

	snapshot atomic.Pointer[[]PlayerInfo]
	console  consoleHub
	started  time.Time
}

// New builds a server from cfg. Nothing listens or ticks until Run.
func New(cfg config.AppConfig, log zerolog.Logger) (*Server, error) {
	s := &Server{
		cfg:     cfg,
		log:     log.With().Str("component", "server").Logger(),
		reg:     protocol.Default(),
		world:   world.New(cfg.World.GroundY),
		conns:   conn.NewRegistry(),
		joins:   &systems.JoinQueue{},
		started: time.Now(),
	}
	s.world.SetDayCycle(cfg.World.DayCycle)

	s.broadcast = broadcast.New(s.reg, log)
	s.broadcast.SetMaxPending(cfg.Limits.BroadcastPending)
	s.broadcast.Observe(s.mirrorChat)

	s.commands = command.NewDefaultRegistry()
	s.cmdQueue = command.NewQueue(command.QueueConfig{
		BufferSize: cfg.Limits.CommandBuffer,
		MaxPerTick: cfg.Limits.CommandsPerTick,
	}, log)
	s.cmdEnv = &command.Env{
		World:     s.world,
		Broadcast: s.broadcast,
		Conns:     s.conns,
		Commands:  s.commands,
		Log:       log.With().Str("component", "command").Logger(),
		Console:   s.consoleReply,
	}
	s.chat = command.NewRateLimiter(command.RateLimitConfig{
		MaxPerWindow:     cfg.Limits.ChatPerWindow,
		WindowDuration:   cfg.Limits.ChatWindow,
		CooldownDuration: cfg.Limits.ChatCooldown,
	})

	limits := codec.Limits{
		MaxSequence: cfg.Limits.MaxSequence,
		MaxString:   cfg.Limits.MaxString,
		MaxBytes:    cfg.Limits.MaxBytes,
	}
	s.dispatcher = dispatch.New(s.reg, limits, &dispatch.Services{
		World:     s.world,
		Broadcast: s.broadcast,
		Commands:  s.cmdQueue,
		Conns:     s.conns,
	}, log)
	if err := s.registerLogin(); err != nil {
		return nil, err
	}
	if err := s.registerPlay(); err != nil {
		return nil, err
	}

	if cfg.Server.Encryption {
		key, err := rsa.GenerateKey(rand.Reader, 1024)
		if err != nil {
			return nil, fmt.Errorf("server: generate key: %w", err)
		}
		der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("server: encode public key: %w", err)
		}
		s.key, s.pubDER = key, der
	}
	if cfg.Server.Favicon {
		icon, err := favicon.Resolve(cfg.Server.IconPath, cfg.Server.MOTD)
		if err != nil {
			return nil, err
		}
		s.favicon = icon
	}

	s.sched = sched.New(log)
	sysCfg := systems.Config{
		KeepAliveInterval: cfg.Tick.KeepAliveInterval,
		KeepAliveTimeout:  cfg.Tick.KeepAliveTimeout,
		TimeSyncTicks:     uint64(cfg.Tick.TimeSyncTicks),
		ViewDistance:      cfg.World.ViewDistance,
		Pigs:              cfg.World.Pigs,
		Seed:              cfg.World.Seed,
	}
	if cfg.Server.LAN {
		s.lan = systems.NewLANAnnouncer(systems.LANInterval)
	}
	if err := systems.Register(s.sched, &systems.Env{
		Config:     sysCfg,
		World:      s.world,
		Conns:      s.conns,
		Registry:   s.reg,
		Broadcast:  s.broadcast,
		Commands:   s.cmdQueue,
		CommandEnv: s.cmdEnv,
		Dispatcher: s.dispatcher,
		Joins:      s.joins,
		LAN:        s.lan,
		Log:        log,
	}); err != nil {
		return nil, err
	}
	systems.SpawnPigs(s.world, cfg.World.Pigs, cfg.World.Seed)

	s.loop = sched.NewLoop(s.sched, sched.LoopConfig{
		TickRate:        cfg.Tick.Rate,
		CatchupMaxTicks: cfg.Tick.CatchupMaxTicks,
	}, log)
	s.loop.AfterTick = s.takeSnapshot
	return s, nil
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the tick loop and accepts connections from ln until ctx is
// cancelled or accepting fails. Every connection is closed on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.log.Info().
		Str("addr", ln.Addr().String()).
		Int32("protocol", protocol.ProtocolVersion).
		Bool("encryption", s.key != nil).
		Int("compression", s.cfg.Network.CompressionThreshold).
		Msg("listening")

	if s.lan != nil {
		stop := s.announceLAN(ln.Addr())
		defer stop()
	}

	// Connections outlive ctx so shutdown can say goodbye first.
	connCtx, stopConns := context.WithCancel(context.WithoutCancel(ctx))
	defer stopConns()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.loop.Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return ln.Close()
	})
	g.Go(func() error {
		return s.accept(gctx, connCtx, ln)
	})
	err := g.Wait()

	s.shutdown(shutdownGrace)
	s.chat.Stop()
	s.console.closeAll()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	s.log.Info().Msg("server stopped")
	return err
}

// announceLAN starts the LAN announcements for the listener at addr and
// returns the function that stops them.
func (s *Server) announceLAN(addr net.Addr) func() {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		s.log.Warn().Str("addr", addr.String()).Msg("lan announcements need a tcp listener")
		return func() {}
	}
	udp, err := net.Dial("udp", systems.LANGroup)
	if err != nil {
		s.log.Warn().Err(err).Str("group", systems.LANGroup).Msg("lan announcements disabled")
		return func() {}
	}
	s.lan.Start(udp, systems.LANPayload(s.cfg.Server.MOTD, tcp.Port))
	s.log.Info().Str("group", systems.LANGroup).Int("port", tcp.Port).Msg("announcing on lan")
	return func() {
		s.lan.Stop()
		udp.Close()
	}
}

// shutdownGrace bounds how long shutdown waits for goodbye packets.
const shutdownGrace = 2 * time.Second

// shutdown disconnects joined players with a message and closes the rest.
func (s *Server) shutdown(grace time.Duration) {
	all := s.conns.All()
	for _, c := range all {
		if _, joined := c.Entity(); joined {
			c.Disconnect(&protocol.Disconnect{Reason: text.Plain("Server closed")}, reasonShutdown)
		} else {
			c.Close(reasonShutdown)
		}
	}

	done := make(chan struct{})
	go func() {
		for _, c := range all {
			c.Wait()
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
	}
	s.conns.CloseAll(reasonShutdown)
}

func (s *Server) accept(ctx, connCtx context.Context, ln net.Listener) error {
	for {
		raw, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Warn().Err(err).Msg("accept failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(50 * time.Millisecond):
			}
			continue
		}
		go s.ServeConn(connCtx, raw)
	}
}

// ServeConn runs one connection's reader until it closes.
func (s *Server) ServeConn(ctx context.Context, raw net.Conn) {
	c := conn.New(ctx, s.conns.NextID(), raw, s.reg, conn.Options{
		InboundQueue:     s.cfg.Limits.InboundQueue,
		OutboundQueue:    s.cfg.Limits.OutboundQueue,
		PacketsPerSecond: s.cfg.Limits.PacketsPerSecond,
		PacketBurst:      s.cfg.Limits.PacketBurst,
		WriteTimeout:     s.cfg.Network.WriteTimeout,
	}, s.log)
	s.conns.Add(c)
	defer s.release(c)

	s.readLoop(c)
}

func (s *Server) readLoop(c *conn.Connection) {
	for !c.Closing() {
		timeout := s.cfg.Network.HandshakeTimeout
		if c.State() == protocol.StatePlay {
			timeout = s.cfg.Network.ReadTimeout
		}
		if timeout > 0 {
			c.SetReadDeadline(time.Now().Add(timeout))
		}

		f, err := c.ReadFrame()
		if err != nil {
			s.readFailed(c, err)
			return
		}
		if c.State() == protocol.StatePlay {
			if c.Enqueue(f) != nil {
				return
			}
			continue
		}
		if err := s.dispatcher.Dispatch(c.Context(), c, command.Server(), f); err != nil {
			c.Close(reasonProtocol + err.Error())
			return
		}
	}
}

func (s *Server) readFailed(c *conn.Connection, err error) {
	if c.Closed() {
		return
	}
	var perr *protocol.Error
	switch {
	case errors.As(err, &perr):
		observability.RecordProtocolError(perr.Kind.String())
		c.Log().Debug().Err(err).Msg("malformed inbound frame")
		c.Close(reasonProtocol + err.Error())
	case errors.Is(err, conn.ErrRateLimited):
		c.Close(reasonProtocol + err.Error())
	case errors.Is(err, os.ErrDeadlineExceeded):
		c.Close(reasonTimeout + "read deadline exceeded")
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.ErrClosedPipe), errors.Is(err, net.ErrClosed):
		c.Close(reasonEOF + "connection closed by peer")
	default:
		c.Close(reasonEOF + err.Error())
	}
}

// release frees the login state and name reservation of a finished
// connection. The sweep removes it from the registry.
func (s *Server) release(c *conn.Connection) {
	s.logins.Delete(c.ID())
	if name := c.Username(); name != "" {
		if s.names.CompareAndDelete(name, c.ID()) {
			s.reserved.Add(-1)
		}
		s.chat.Forget(name)
	}
}

// Submit queues a console line for execution by the tick. A leading slash
// is ignored.
func (s *Server) Submit(line string) bool {
	if len(line) > 0 && line[0] == '/' {
		line = line[1:]
	}
	if line == "" {
		return false
	}
	return s.cmdQueue.Enqueue(command.Invocation{
		Sender:     command.Server(),
		Line:       line,
		ReceivedAt: time.Now(),
	})
}

// Announce broadcasts msg as system chat to every player.
func (s *Server) Announce(msg string) bool {
	return s.broadcast.Broadcast(text.Plain(msg), false)
}

// SubscribeConsole registers fn to receive console output: command replies
// addressed to the server and every broadcast chat line. The returned func
// unsubscribes.
func (s *Server) SubscribeConsole(fn func(string)) func() {
	return s.console.subscribe(fn)
}

func (s *Server) consoleReply(msg text.Component) {
	s.log.Info().Str("reply", msg.String()).Msg("console")
	s.console.publish(msg)
}

func (s *Server) mirrorChat(m broadcast.Message) {
	if m.Packet != nil || m.Overlay {
		return
	}
	s.console.publish(m.Text)
}

// Config returns the configuration the server was built with.
func (s *Server) Config() config.AppConfig { return s.cfg }

// Ticks returns the number of completed ticks.
func (s *Server) Ticks() uint64 { return s.loop.Ticks() }

// Step runs one tick synchronously.
func (s *Server) Step(ctx context.Context) {
	s.loop.Step(ctx, time.Now(), s.loop.Interval())
}

// Describe lists the registered systems per phase.
func (s *Server) Describe() map[string][]string { return s.sched.Describe() }

type consoleHub struct {
	mu   sync.Mutex
	next int
	subs map[int]func(string)
}

func (h *consoleHub) subscribe(fn func(string)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs == nil {
		h.subs = make(map[int]func(string))
	}
	id := h.next
	h.next++
	h.subs[id] = fn
	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}

func (h *consoleHub) publish(msg text.Component) {
	line := msg.String()
	h.mu.Lock()
	subs := make([]func(string), 0, len(h.subs))
	for _, fn := range h.subs {
		subs = append(subs, fn)
	}
	h.mu.Unlock()
	for _, fn := range subs {
		fn(line)
	}
}

func (h *consoleHub) closeAll() {
	h.mu.Lock()
	h.subs = nil
	h.mu.Unlock()
}
