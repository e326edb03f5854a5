// Command pinger polls a server's status and prints one line per ping.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"ionic/internal/pinger"
)

func main() {
	var (
		interval time.Duration
		timeout  time.Duration
		count    int
	)

	cmd := &cobra.Command{
		Use:           "pinger address",
		Short:         "Poll a Minecraft server's status",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return poll(ctx, args[0], interval, timeout, count)
		},
	}
	cmd.Flags().DurationVarP(&interval, "interval", "i", time.Second, "time between pings")
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 5*time.Second, "per-ping timeout")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "stop after n pings; 0 runs until interrupted")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func poll(ctx context.Context, addr string, interval, timeout time.Duration, count int) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var failures int
	for seq := 1; count == 0 || seq <= count; seq++ {
		res, err := pinger.Ping(ctx, addr, timeout)
		if err != nil {
			failures++
			fmt.Printf("seq=%d error: %v\n", seq, err)
		} else {
			fmt.Printf("seq=%d players=%d/%d version=%q time=%s\n",
				seq, res.Status.Players.Online, res.Status.Players.Max,
				res.Status.Version.Name, res.Latency.Round(time.Microsecond))
		}
		if count != 0 && seq == count {
			break
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	if failures > 0 && failures == count {
		return fmt.Errorf("all %d pings failed", count)
	}
	return nil
}
