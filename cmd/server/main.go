package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	var opts runOptions

	rootCmd := &cobra.Command{
		Use:   "ionic",
		Short: "A Minecraft 1.21.1 server",
		Long: `ionic is a Minecraft Java Edition server speaking protocol 767.

Without a subcommand it starts the server, the same as "ionic run".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "TOML configuration file")
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env", ".env", "environment file loaded before configuration")
	rootCmd.Flags().BoolVar(&opts.noConsole, "no-console", false, "do not read commands from stdin")

	rootCmd.AddCommand(
		runCmd(&opts),
		pingCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
