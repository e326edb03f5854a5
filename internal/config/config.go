// Package config provides centralized configuration management.
//
// Every section has a DefaultX constructor. Load layers an optional TOML
// file and then IONIC_* environment variables over the defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// SERVER
// =============================================================================

// ServerConfig holds the game listener and status settings.
type ServerConfig struct {
	Addr       string `toml:"addr"`
	MOTD       string `toml:"motd"`
	MaxPlayers int    `toml:"max_players"`
	Encryption bool   `toml:"encryption"` // offline-mode encryption handshake
	Favicon    bool   `toml:"favicon"`
	IconPath   string `toml:"icon"` // png, jpeg, gif or webp; empty draws one
	LAN        bool   `toml:"lan"`  // multicast LAN discovery announcements
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Addr:       ":25565",
		MOTD:       "An ionic server",
		MaxPlayers: 20,
		Encryption: true,
		Favicon:    true,
	}
}

func (c *ServerConfig) applyEnv() {
	if v := os.Getenv("IONIC_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("IONIC_MOTD"); v != "" {
		c.MOTD = v
	}
	if mp := getEnvInt("IONIC_MAX_PLAYERS", 0); mp > 0 {
		c.MaxPlayers = mp
	}
	c.Encryption = getEnvBool("IONIC_ENCRYPTION", c.Encryption)
	c.LAN = getEnvBool("IONIC_LAN", c.LAN)
	if v := os.Getenv("IONIC_ICON"); v != "" {
		c.IconPath = v
	}
}

// =============================================================================
// NETWORK
// =============================================================================

// NetworkConfig holds per-connection transport settings.
type NetworkConfig struct {
	CompressionThreshold int           `toml:"compression_threshold"` // negative disables
	HandshakeTimeout     time.Duration `toml:"handshake_timeout"`
	ReadTimeout          time.Duration `toml:"read_timeout"`
	WriteTimeout         time.Duration `toml:"write_timeout"`
}

// DefaultNetwork returns the default network configuration.
func DefaultNetwork() NetworkConfig {
	return NetworkConfig{
		CompressionThreshold: 256,
		HandshakeTimeout:     10 * time.Second,
		ReadTimeout:          30 * time.Second,
		WriteTimeout:         10 * time.Second,
	}
}

func (c *NetworkConfig) applyEnv() {
	if v := os.Getenv("IONIC_COMPRESSION_THRESHOLD"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			c.CompressionThreshold = i
		}
	}
}

// =============================================================================
// LIMITS
// =============================================================================

// LimitsConfig bounds queues, decode allocations and chat rate.
type LimitsConfig struct {
	InboundQueue     int           `toml:"inbound_queue"`
	OutboundQueue    int           `toml:"outbound_queue"`
	PacketsPerSecond float64       `toml:"packets_per_second"`
	PacketBurst      int           `toml:"packet_burst"`
	MaxSequence      int           `toml:"max_sequence"`
	MaxString        int           `toml:"max_string"`
	MaxBytes         int           `toml:"max_bytes"`
	ChatPerWindow    int           `toml:"chat_per_window"`
	ChatWindow       time.Duration `toml:"chat_window"`
	ChatCooldown     time.Duration `toml:"chat_cooldown"`
	BroadcastPending int           `toml:"broadcast_pending"`
	CommandBuffer    int           `toml:"command_buffer"`
	CommandsPerTick  int           `toml:"commands_per_tick"`
}

// DefaultLimits returns the default limits.
func DefaultLimits() LimitsConfig {
	return LimitsConfig{
		InboundQueue:     256,
		OutboundQueue:    1024,
		PacketsPerSecond: 500,
		PacketBurst:      1000,
		MaxSequence:      4096,
		MaxString:        32767,
		MaxBytes:         1 << 20,
		ChatPerWindow:    10,
		ChatWindow:       5 * time.Second,
		ChatCooldown:     100 * time.Millisecond,
		BroadcastPending: 4096,
		CommandBuffer:    256,
		CommandsPerTick:  64,
	}
}

// =============================================================================
// TICK
// =============================================================================

// TickConfig holds simulation timing.
type TickConfig struct {
	Rate              int           `toml:"rate"`
	CatchupMaxTicks   int           `toml:"catchup_max_ticks"`
	KeepAliveInterval time.Duration `toml:"keep_alive_interval"`
	KeepAliveTimeout  time.Duration `toml:"keep_alive_timeout"`
	TimeSyncTicks     int           `toml:"time_sync_ticks"`
}

// DefaultTick returns 20 ticks per second with standard keep-alive timing.
func DefaultTick() TickConfig {
	return TickConfig{
		Rate:              20,
		CatchupMaxTicks:   2,
		KeepAliveInterval: 15 * time.Second,
		KeepAliveTimeout:  30 * time.Second,
		TimeSyncTicks:     20,
	}
}

func (c *TickConfig) applyEnv() {
	if tps := getEnvInt("IONIC_TPS", 0); tps > 0 {
		c.Rate = tps
	}
}

// =============================================================================
// WORLD
// =============================================================================

// WorldConfig describes the generated world.
type WorldConfig struct {
	GroundY      int32 `toml:"ground_y"`
	ViewDistance int32 `toml:"view_distance"`
	Pigs         int   `toml:"pigs"`
	Seed         int64 `toml:"seed"`
	DayCycle     bool  `toml:"day_cycle"`
}

// DefaultWorld returns a flat world with a few pigs. Seed 0 is replaced by
// a time-based seed in Load.
func DefaultWorld() WorldConfig {
	return WorldConfig{
		GroundY:      64,
		ViewDistance: 8,
		Pigs:         4,
		DayCycle:     true,
	}
}

func (c *WorldConfig) applyEnv() {
	if v := os.Getenv("IONIC_SEED"); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Seed = i
		}
	}
	if vd := getEnvInt("IONIC_VIEW_DISTANCE", 0); vd > 0 {
		c.ViewDistance = int32(vd)
	}
}

// =============================================================================
// ADMIN API
// =============================================================================

// AdminConfig holds the admin HTTP API settings.
type AdminConfig struct {
	Enabled           bool     `toml:"enabled"`
	Addr              string   `toml:"addr"`
	Token             string   `toml:"token"` // bearer token; empty allows loopback only
	CORSOrigins       []string `toml:"cors_origins"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	Burst             int      `toml:"burst"`
	MaxConsoleClients int      `toml:"max_console_clients"`
}

// DefaultAdmin returns the default admin configuration.
func DefaultAdmin() AdminConfig {
	return AdminConfig{
		Enabled:           true,
		Addr:              "127.0.0.1:8080",
		CORSOrigins:       []string{"http://localhost:*", "http://127.0.0.1:*"},
		RequestsPerSecond: 10,
		Burst:             20,
		MaxConsoleClients: 4,
	}
}

func (c *AdminConfig) applyEnv() {
	if v := os.Getenv("IONIC_ADMIN_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("IONIC_ADMIN_TOKEN"); v != "" {
		c.Token = v
	}
	c.Enabled = getEnvBool("IONIC_ADMIN", c.Enabled)
}

// =============================================================================
// DEBUG SERVER
// =============================================================================

// DebugConfig holds the pprof and metrics server settings.
type DebugConfig struct {
	Enabled       bool   `toml:"enabled"`
	Addr          string `toml:"addr"`
	AllowExternal bool   `toml:"allow_external"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
}

// DefaultDebug returns a disabled, localhost-only debug server.
func DefaultDebug() DebugConfig {
	return DebugConfig{Addr: "127.0.0.1:6060"}
}

func (c *DebugConfig) applyEnv() {
	c.Enabled = getEnvBool("IONIC_DEBUG", c.Enabled)
	if v := os.Getenv("IONIC_DEBUG_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("IONIC_DEBUG_USER"); v != "" {
		c.User = v
	}
	if v := os.Getenv("IONIC_DEBUG_PASS"); v != "" {
		c.Password = v
	}
}

// =============================================================================
// LOGGING
// =============================================================================

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // console or json
}

// DefaultLog returns info-level console logging.
func DefaultLog() LogConfig {
	return LogConfig{Level: "info", Format: "console"}
}

func (c *LogConfig) applyEnv() {
	if v := os.Getenv("IONIC_LOG_LEVEL"); v != "" {
		c.Level = strings.ToLower(v)
	}
	if v := os.Getenv("IONIC_LOG_FORMAT"); v != "" {
		c.Format = strings.ToLower(v)
	}
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Server  ServerConfig  `toml:"server"`
	Network NetworkConfig `toml:"network"`
	Limits  LimitsConfig  `toml:"limits"`
	Tick    TickConfig    `toml:"tick"`
	World   WorldConfig   `toml:"world"`
	Admin   AdminConfig   `toml:"admin"`
	Debug   DebugConfig   `toml:"debug"`
	Log     LogConfig     `toml:"log"`
}

// Default returns every section's defaults.
func Default() AppConfig {
	return AppConfig{
		Server:  DefaultServer(),
		Network: DefaultNetwork(),
		Limits:  DefaultLimits(),
		Tick:    DefaultTick(),
		World:   DefaultWorld(),
		Admin:   DefaultAdmin(),
		Debug:   DefaultDebug(),
		Log:     DefaultLog(),
	}
}

// Load returns the defaults overlaid with the TOML file at path (skipped
// when path is empty) and then the environment.
func Load(path string) (AppConfig, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return AppConfig{}, err
		}
	}
	cfg.applyEnv()
	if cfg.World.Seed == 0 {
		cfg.World.Seed = time.Now().UnixNano()
	}
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// overlayFile decodes path over cfg. Keys absent from the file keep their
// current values; unknown keys are an error.
func (cfg *AppConfig) overlayFile(path string) error {
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return fmt.Errorf("load config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	return nil
}

func (cfg *AppConfig) applyEnv() {
	cfg.Server.applyEnv()
	cfg.Network.applyEnv()
	cfg.Tick.applyEnv()
	cfg.World.applyEnv()
	cfg.Admin.applyEnv()
	cfg.Debug.applyEnv()
	cfg.Log.applyEnv()
}

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Validate checks values that would otherwise fail at runtime.
func (cfg AppConfig) Validate() error {
	var problems []string
	check := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}
	check(cfg.Server.Addr != "", "server.addr is empty")
	check(cfg.Server.MaxPlayers > 0, "server.max_players must be positive")
	check(cfg.Tick.Rate > 0 && cfg.Tick.Rate <= 1000, "tick.rate must be in 1..1000")
	check(cfg.Tick.KeepAliveTimeout > cfg.Tick.KeepAliveInterval, "tick.keep_alive_timeout must exceed keep_alive_interval")
	check(cfg.Limits.InboundQueue > 0 && cfg.Limits.OutboundQueue > 0, "limits queues must be positive")
	check(cfg.Limits.MaxSequence > 0 && cfg.Limits.MaxString > 0 && cfg.Limits.MaxBytes > 0, "limits decode bounds must be positive")
	check(cfg.World.GroundY > -64 && cfg.World.GroundY < 319, "world.ground_y outside build height")
	check(cfg.World.ViewDistance >= 2 && cfg.World.ViewDistance <= 32, "world.view_distance must be in 2..32")
	check(cfg.Log.Format == "console" || cfg.Log.Format == "json", "log.format must be console or json")
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}
