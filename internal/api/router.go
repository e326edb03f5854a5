package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"ionic/internal/observability"
	"ionic/internal/server"
)

// Game is the slice of the game server the admin API uses. It lets tests
// drive the router without a running tick loop.
type Game interface {
	// Info returns a snapshot of server state.
	Info() server.Info
	// Players lists joined players as of the last tick.
	Players() []server.PlayerInfo
	// Submit queues a server command and reports whether it was accepted.
	Submit(line string) bool
	// SubscribeConsole registers fn for console output. fn must not block.
	SubscribeConsole(fn func(string)) func()
}

// RouterConfig holds the router's dependencies.
//
//	router := api.NewRouter(api.RouterConfig{
//	    Game:            fakeGame,
//	    RateLimitConfig: &api.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
//	})
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Game is required.
	Game Game

	// Console serves /ws/console when set.
	Console *ConsoleHub

	// RateLimiter is used as is when set. Otherwise one is built from
	// RateLimitConfig, or DefaultRateLimitConfig when that is nil too.
	RateLimiter     *IPRateLimiter
	RateLimitConfig *RateLimitConfig

	// CORSOrigins defaults to localhost on any port.
	CORSOrigins []string

	// Token is the bearer token. Empty admits loopback peers only.
	Token string

	// DisableLogging turns off the access log.
	DisableLogging bool

	Log zerolog.Logger
}

type routerHandlers struct {
	game Game
	log  zerolog.Logger
}

// DefaultCORSOrigins admits local tooling.
var DefaultCORSOrigins = []string{"http://localhost:*", "http://127.0.0.1:*"}

// NewRouter builds the admin router. It starts no goroutines of its own
// beyond the rate limiter's cleanup when it has to create one.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()
	log := cfg.Log.With().Str("component", "admin").Logger()

	// Order: recover, instrument, rate limit, CORS, auth.
	r.Use(middleware.Recoverer)
	r.Use(instrument(log, cfg.DisableLogging))

	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rlc := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rlc = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rlc)
	}
	r.Use(rateLimiter.Middleware)

	origins := cfg.CORSOrigins
	if origins == nil {
		origins = DefaultCORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	h := &routerHandlers{game: cfg.Game, log: log}

	r.Group(func(r chi.Router) {
		r.Use(tokenAuth(cfg.Token))

		r.Route("/api", func(r chi.Router) {
			r.Get("/status", h.handleStatus)
			r.Get("/players", h.handlePlayers)
			r.Post("/command", h.handleCommand)
		})
		if cfg.Console != nil {
			r.Get("/ws/console", cfg.Console.HandleConsole)
		}
	})

	return r
}

// instrument records request metrics under the matched route pattern and
// writes an access log line.
func instrument(log zerolog.Logger, quiet bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			elapsed := time.Since(start)
			observability.RecordRequest(r.Method, route, status, elapsed)
			if !quiet {
				log.Debug().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", status).
					Dur("elapsed", elapsed).
					Str("ip", ClientIP(r)).
					Msg("request")
			}
		})
	}
}
