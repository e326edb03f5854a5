package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"ionic/internal/config"
)

// Server is the admin HTTP API with its console websocket.
type Server struct {
	game        Game
	cfg         config.AdminConfig
	log         zerolog.Logger
	router      *chi.Mux
	console     *ConsoleHub
	rateLimiter *IPRateLimiter
}

// NewServer wires the router and console hub. Background work starts in
// Start, so Router can be tested without it.
func NewServer(game Game, cfg config.AdminConfig, log zerolog.Logger) *Server {
	s := &Server{
		game: game,
		cfg:  cfg,
		log:  log.With().Str("component", "admin").Logger(),
	}
	s.rateLimiter = NewIPRateLimiter(RateLimitConfig{
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		CleanupInterval:   DefaultRateLimitConfig.CleanupInterval,
	})
	s.console = NewConsoleHub(game, cfg.MaxConsoleClients, cfg.CORSOrigins, log)
	s.router = NewRouter(RouterConfig{
		Game:        game,
		Console:     s.console,
		RateLimiter: s.rateLimiter,
		CORSOrigins: cfg.CORSOrigins,
		Token:       cfg.Token,
		Log:         log,
	})
	return s
}

// Start runs the console hub and serves HTTP until ctx is cancelled. It
// returns once the listener is open.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		s.rateLimiter.Stop()
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.cfg.Token == "" && !isLoopbackAddr(ln.Addr()) {
		s.log.Warn().Str("addr", ln.Addr().String()).Msg("admin API has no token; only loopback clients are admitted")
	}
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go s.console.Run(ctx)
	unsubscribe := s.game.SubscribeConsole(s.console.Broadcast)

	go func() {
		<-ctx.Done()
		unsubscribe()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		s.rateLimiter.Stop()
	}()
	go func() {
		s.log.Info().Str("addr", ln.Addr().String()).Msg("admin API listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("admin API error")
		}
	}()
	return nil
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler {
	return s.router
}

// Console returns the console hub.
func (s *Server) Console() *ConsoleHub {
	return s.console
}

func isLoopbackAddr(addr net.Addr) bool {
	tcp, ok := addr.(*net.TCPAddr)
	return ok && tcp.IP.IsLoopback()
}
