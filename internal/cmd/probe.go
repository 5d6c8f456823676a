package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/giantswarm/browserenv/internal/devtools"
	"github.com/giantswarm/browserenv/internal/slogger"
)

func newProbeCmd() *cobra.Command {
	var (
		port    int
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "probe --port N",
		Short: "Wait for a DevTools endpoint and print its WebSocket URL",
		Long: `Run the readiness handshake against a browser that is already listening
on 127.0.0.1:<port> and print the advertised webSocketDebuggerUrl.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if port < 1 || port > 65535 {
				return fmt.Errorf("--port must be between 1 and 65535, got %d", port)
			}
			ws, err := devtools.WaitForEndpoint(cmd.Context(), devtools.Config{
				Port:    port,
				Timeout: timeout,
				Logger:  slogger.FromContext(cmd.Context()),
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), ws)
			return err
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "remote-debugging port")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "how long to wait")
	_ = cmd.MarkFlagRequired("port")
	return cmd
}
