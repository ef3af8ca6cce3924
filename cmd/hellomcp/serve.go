package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ggoodman/hello-mcp/config"
	"github.com/ggoodman/hello-mcp/internal/tracing"
	"github.com/ggoodman/hello-mcp/mcp"
	"github.com/ggoodman/hello-mcp/mcpservice"
	"github.com/ggoodman/hello-mcp/stdio"
	"github.com/ggoodman/hello-mcp/wstransport"
	"github.com/spf13/cobra"
)

type serveOptions struct {
	configPath   string
	host         string
	port         int
	verbose      bool
	logFormat    string
	useStdio     bool
	trace        string
	otlpEndpoint string
}

func newServeCmd(o *serveOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, o)
		},
	}
	cmd.Flags().StringVar(&o.configPath, "config", config.DefaultPath, "path to the JSON config file")
	cmd.Flags().StringVar(&o.host, "host", config.DefaultHost, "interface to bind (overrides config)")
	cmd.Flags().IntVar(&o.port, "port", config.DefaultPort, "port to bind (overrides config)")
	cmd.Flags().BoolVarP(&o.verbose, "verbose", "v", false, "log every frame at debug level")
	cmd.Flags().StringVar(&o.logFormat, "log-format", "text", "log format (text, json)")
	cmd.Flags().BoolVar(&o.useStdio, "stdio", false, "serve on stdin/stdout instead of a websocket")
	cmd.Flags().StringVar(&o.trace, "trace", "none", "trace exporter (none, stdout, otlp)")
	cmd.Flags().StringVar(&o.otlpEndpoint, "otlp-endpoint", "", "OTLP/HTTP collector host:port")
	return cmd
}

// resolveConfig layers defaults, the config file, the environment and any
// flags the user set explicitly, in that order. The file-only layer is
// returned as well so reloads can be compared against it.
func resolveConfig(cmd *cobra.Command, o *serveOptions, log *slog.Logger) (file, cfg config.Config, err error) {
	file = config.Load(o.configPath, log)
	cfg = config.ApplyEnv(file, log)

	if cmd.Flags().Changed("host") {
		cfg.Host = o.host
	}
	if cmd.Flags().Changed("port") {
		if o.port < 1 || o.port > 65535 {
			return file, cfg, fmt.Errorf("--port %d out of range", o.port)
		}
		cfg.Port = o.port
	}
	return file, cfg, nil
}

func runServe(cmd *cobra.Command, o *serveOptions) error {
	level := new(slog.LevelVar)
	log, err := newLogger(cmd.ErrOrStderr(), o.logFormat, level)
	if err != nil {
		return err
	}

	fileCfg, cfg, err := resolveConfig(cmd, o, log)
	if err != nil {
		return err
	}
	applyLevel(level, cfg.LogLevel, o.verbose)
	log.Debug("resolved config", slog.String("config", cfg.String()))

	exporter, err := tracing.ParseExporterType(o.trace)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tcfg := tracing.Config{
		Exporter:       exporter,
		OTLPEndpoint:   o.otlpEndpoint,
		ServiceVersion: mcp.ServerVersion,
	}
	if o.useStdio {
		// stdout carries the protocol
		tcfg.Output = cmd.ErrOrStderr()
	}
	tp, err := tracing.New(ctx, tcfg)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Warn("tracer shutdown failed", slog.String("err", err.Error()))
		}
	}()

	go watchConfig(ctx, o, fileCfg, level, log)

	srv := mcpservice.NewServer(
		mcpservice.WithLogger(log),
		mcpservice.WithTracer(tp.Tracer()),
	)

	if o.useStdio {
		return stdio.NewHandler(srv, stdio.WithLogger(log)).Serve(ctx)
	}

	h := wstransport.New(srv, wstransport.WithLogger(log))
	if err := wstransport.ListenAndServe(ctx, cfg.Addr(), h, log); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// watchConfig applies log level changes from the config file while the
// server runs. Host and port only take effect on restart.
func watchConfig(ctx context.Context, o *serveOptions, last config.Config, level *slog.LevelVar, log *slog.Logger) {
	err := config.Watch(ctx, o.configPath, log, func(c config.Config) {
		// the environment still outranks the file
		eff := config.ApplyEnv(c, nil)
		applyLevel(level, eff.LogLevel, o.verbose)
		log.Info("config reloaded", slog.String("log_level", eff.LogLevel))
		if c.Addr() != last.Addr() {
			log.Warn("listen address changed in config; restart to apply",
				slog.String("was", last.Addr()),
				slog.String("now", c.Addr()),
			)
		}
		last = c
	})
	if err != nil {
		log.Warn("config watch stopped", slog.String("err", err.Error()))
	}
}

// applyLevel sets the process log level. --verbose pins it at debug.
func applyLevel(level *slog.LevelVar, name string, verbose bool) {
	if verbose {
		level.Set(slog.LevelDebug)
		return
	}
	l, _ := config.ParseLevel(name)
	level.Set(l)
}
