// Package config loads the server's listening address and log level.
//
// Sources are layered: built-in defaults, then the optional JSON file at
// DefaultPath (or a caller-supplied path), then HELLOMCP_* environment
// variables. Loading never fails; every problem degrades to the previous
// layer's values plus a warning on the supplied logger.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/joeshaw/envdecode"
)

// DefaultPath is the well-known config file location, relative to the
// working directory.
const DefaultPath = "mcp_server_config.json"

const (
	DefaultHost     = "localhost"
	DefaultPort     = 9090
	DefaultLogLevel = "info"
)

// Config is the resolved server configuration.
type Config struct {
	Host     string
	Port     int
	LogLevel string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{Host: DefaultHost, Port: DefaultPort, LogLevel: DefaultLogLevel}
}

// Addr returns host:port suitable for net.Listen.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Load reads the JSON object at path over the defaults. Recognized keys are
// "host", "port" and "log_level"; each is applied independently so a file may
// override any subset. A missing file is not an error and is not logged.
func Load(path string, log *slog.Logger) Config {
	cfg := Default()
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn("failed to read config file", slog.String("path", path), slog.String("err", err.Error()))
		}
		return cfg
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil || doc == nil {
		if err == nil {
			err = errors.New("config must be a JSON object")
		}
		log.Warn("failed to parse config file", slog.String("path", path), slog.String("err", err.Error()))
		return cfg
	}

	if raw, ok := doc["host"]; ok {
		var host string
		if err := json.Unmarshal(raw, &host); err != nil || host == "" {
			log.Warn("ignoring invalid host in config file", slog.String("path", path), slog.String("value", string(raw)))
		} else {
			cfg.Host = host
		}
	}

	if raw, ok := doc["port"]; ok {
		var port int
		if err := json.Unmarshal(raw, &port); err != nil || !validPort(port) {
			log.Warn("ignoring invalid port in config file", slog.String("path", path), slog.String("value", string(raw)))
		} else {
			cfg.Port = port
		}
	}

	if raw, ok := doc["log_level"]; ok {
		var level string
		if err := json.Unmarshal(raw, &level); err != nil {
			log.Warn("ignoring invalid log_level in config file", slog.String("path", path), slog.String("value", string(raw)))
		} else if _, ok := ParseLevel(level); !ok {
			log.Warn("ignoring unknown log_level in config file", slog.String("path", path), slog.String("value", level))
		} else {
			cfg.LogLevel = strings.ToLower(level)
		}
	}

	return cfg
}

// Each variable is decoded on its own so one malformed value does not
// discard the others.
type (
	hostEnv struct {
		Value string `env:"HELLOMCP_HOST"`
	}
	portEnv struct {
		Value int `env:"HELLOMCP_PORT"`
	}
	logLevelEnv struct {
		Value string `env:"HELLOMCP_LOG_LEVEL"`
	}
)

// decodeEnv reports whether target was set from the environment. Unset
// variables are silent; malformed ones are logged.
func decodeEnv(target any, name string, log *slog.Logger) bool {
	if err := envdecode.Decode(target); err != nil {
		if !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
			log.Warn("ignoring invalid "+name, slog.String("err", err.Error()))
		}
		return false
	}
	return true
}

// ApplyEnv overlays HELLOMCP_HOST, HELLOMCP_PORT and HELLOMCP_LOG_LEVEL onto
// cfg. A malformed value is logged and ignored; the others still apply.
func ApplyEnv(cfg Config, log *slog.Logger) Config {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	var host hostEnv
	if decodeEnv(&host, "HELLOMCP_HOST", log) && host.Value != "" {
		cfg.Host = host.Value
	}

	var port portEnv
	if decodeEnv(&port, "HELLOMCP_PORT", log) {
		if validPort(port.Value) {
			cfg.Port = port.Value
		} else {
			log.Warn("ignoring out of range HELLOMCP_PORT", slog.Int("value", port.Value))
		}
	}

	var level logLevelEnv
	if decodeEnv(&level, "HELLOMCP_LOG_LEVEL", log) && level.Value != "" {
		if _, ok := ParseLevel(level.Value); ok {
			cfg.LogLevel = strings.ToLower(level.Value)
		} else {
			log.Warn("ignoring unknown HELLOMCP_LOG_LEVEL", slog.String("value", level.Value))
		}
	}
	return cfg
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

func validPort(p int) bool {
	return p > 0 && p <= 65535
}

// String is used in startup logs.
func (c Config) String() string {
	return fmt.Sprintf("%s (log_level=%s)", c.Addr(), c.LogLevel)
}
