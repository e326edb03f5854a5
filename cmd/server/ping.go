package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"ionic/internal/pinger"
)

func pingCmd() *cobra.Command {
	var (
		timeout time.Duration
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "ping [address]",
		Short: "Query a server's status",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := "127.0.0.1:25565"
			if len(args) == 1 {
				addr = args[0]
			}
			res, err := pinger.Ping(cmd.Context(), addr, timeout)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				fmt.Fprintln(out, res.Raw)
				return nil
			}
			return printStatus(out, addr, res)
		},
	}
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 5*time.Second, "dial and exchange timeout")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw status document")
	return cmd
}

func printStatus(out io.Writer, addr string, res pinger.Result) error {
	st := res.Status
	fmt.Fprintf(out, "%s\n", addr)
	fmt.Fprintf(out, "  Version:  %s (protocol %d)\n", st.Version.Name, st.Version.Protocol)
	fmt.Fprintf(out, "  MOTD:     %s\n", st.Description.String())
	fmt.Fprintf(out, "  Players:  %d/%d\n", st.Players.Online, st.Players.Max)
	for _, p := range st.Players.Sample {
		fmt.Fprintf(out, "            %s (%s)\n", p.Name, p.ID)
	}
	fmt.Fprintf(out, "  Latency:  %s\n", res.Latency.Round(time.Microsecond))
	if st.Favicon != "" {
		fmt.Fprintf(out, "  Favicon:  %d bytes\n", len(st.Favicon))
	}
	return nil
}
