package main

import (
	"context"
	"time"

	"github.com/ggoodman/hello-mcp/internal/probe"
	"github.com/spf13/cobra"
)

func newProbeCmd() *cobra.Command {
	var (
		url     string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Run the MCP handshake and call hello_world against a server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return probe.Run(ctx, url, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&url, "url", "ws://localhost:9090", "websocket URL of the server")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "overall deadline for the probe")
	return cmd
}
