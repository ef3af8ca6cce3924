// Command hellomcp runs a minimal MCP server over a websocket (or stdio) and
// ships a small probe client for manual checks.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ggoodman/hello-mcp/internal/logctx"
	"github.com/ggoodman/hello-mcp/mcp"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "hellomcp",
		Short:         "Minimal MCP server over a persistent websocket",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s v%s\n", mcp.ServerName, mcp.ServerVersion)
		},
	}

	root.AddCommand(newServeCmd(&serveOptions{}), newProbeCmd(), versionCmd)
	return root
}

// newLogger builds the process logger. Records carry connection and rpc
// attributes via logctx.
func newLogger(w io.Writer, format string, level *slog.LevelVar) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch format {
	case "", "text":
		h = slog.NewTextHandler(w, opts)
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("unsupported log format %q (want text or json)", format)
	}
	return slog.New(logctx.Handler{Handler: h}), nil
}
