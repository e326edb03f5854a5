package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"ionic/internal/api"
	"ionic/internal/config"
	"ionic/internal/logging"
	"ionic/internal/observability"
	"ionic/internal/server"
)

type runOptions struct {
	configPath string
	envFile    string
	noConsole  bool
}

func runCmd(opts *runOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the game server",
		Long: `Start the game server, the admin API and, when enabled, the debug
server. Configuration is read from defaults, then the --config file, then
IONIC_* environment variables.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), *opts)
		},
	}
	cmd.Flags().BoolVar(&opts.noConsole, "no-console", false, "do not read commands from stdin")
	return cmd
}

func run(ctx context.Context, opts runOptions) error {
	envErr := loadEnv(opts.envFile)

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	log, err := logging.New("ionic", cfg.Log)
	if err != nil {
		return err
	}
	if envErr != nil {
		log.Warn().Err(envErr).Str("file", opts.envFile).Msg("env file not loaded")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Debug.Enabled {
		dbg := observability.DebugConfig{
			Enabled:       true,
			ListenAddr:    cfg.Debug.Addr,
			AllowExternal: cfg.Debug.AllowExternal,
			BasicAuthUser: cfg.Debug.User,
			BasicAuthPass: cfg.Debug.Password,
		}
		if err := observability.StartDebugServer(ctx, dbg, log); err != nil {
			log.Warn().Err(err).Msg("debug server disabled")
		}
	}

	srv, err := server.New(cfg, log)
	if err != nil {
		return err
	}
	log.Info().
		Str("version", version).
		Str("addr", cfg.Server.Addr).
		Int("max_players", cfg.Server.MaxPlayers).
		Bool("encryption", cfg.Server.Encryption).
		Int("compression_threshold", cfg.Network.CompressionThreshold).
		Msg("starting")

	if cfg.Admin.Enabled {
		if err := api.NewServer(srv, cfg.Admin, log).Start(ctx); err != nil {
			return err
		}
	}
	if !opts.noConsole {
		go readConsole(ctx, os.Stdin, srv, log)
	}

	return srv.Run(ctx)
}

// loadEnv loads path into the environment. A missing file is not an error.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// readConsole submits each stdin line as a server command until ctx ends
// or stdin closes.
func readConsole(ctx context.Context, in io.Reader, srv *server.Server, log zerolog.Logger) {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if !srv.Submit(line) {
			log.Warn().Str("command", line).Msg("command queue full")
		}
	}
}
