package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultPath)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name     string
		content  *string
		want     Config
		wantWarn bool
	}{
		{
			name: "missing file uses defaults silently",
			want: Config{Host: "localhost", Port: 9090, LogLevel: "info"},
		},
		{
			name:    "full override",
			content: ptr(`{"host":"0.0.0.0","port":9092,"log_level":"debug"}`),
			want:    Config{Host: "0.0.0.0", Port: 9092, LogLevel: "debug"},
		},
		{
			name:    "partial override keeps other defaults",
			content: ptr(`{"port":9092}`),
			want:    Config{Host: "localhost", Port: 9092, LogLevel: "info"},
		},
		{
			name:    "unrecognized keys are ignored",
			content: ptr(`{"host":"example.test","color":"blue"}`),
			want:    Config{Host: "example.test", Port: 9090, LogLevel: "info"},
		},
		{
			name:     "malformed JSON falls back to defaults",
			content:  ptr(`{"host": "x",`),
			want:     Config{Host: "localhost", Port: 9090, LogLevel: "info"},
			wantWarn: true,
		},
		{
			name:     "non-object JSON falls back to defaults",
			content:  ptr(`[9092]`),
			want:     Config{Host: "localhost", Port: 9090, LogLevel: "info"},
			wantWarn: true,
		},
		{
			name:     "null document falls back to defaults",
			content:  ptr(`null`),
			want:     Config{Host: "localhost", Port: 9090, LogLevel: "info"},
			wantWarn: true,
		},
		{
			name:     "wrongly typed key is skipped, others apply",
			content:  ptr(`{"host":"example.test","port":"9092"}`),
			want:     Config{Host: "example.test", Port: 9090, LogLevel: "info"},
			wantWarn: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), DefaultPath)
			if tt.content != nil {
				path = writeConfig(t, *tt.content)
			}
			log, buf := bufferLogger()

			got := Load(path, log)
			if got != tt.want {
				t.Errorf("want %+v, got %+v", tt.want, got)
			}
			warned := strings.Contains(buf.String(), "level=WARN")
			if warned != tt.wantWarn {
				t.Errorf("warning logged = %v, want %v (log: %q)", warned, tt.wantWarn, buf.String())
			}
		})
	}
}

func TestLoadSuccessDoesNotLog(t *testing.T) {
	path := writeConfig(t, `{"host":"127.0.0.1","port":8080}`)
	log, buf := bufferLogger()
	_ = Load(path, log)
	if buf.Len() != 0 {
		t.Errorf("expected no log output, got %q", buf.String())
	}
}

func TestApplyEnv(t *testing.T) {
	t.Run("overrides file values", func(t *testing.T) {
		t.Setenv("HELLOMCP_HOST", "10.0.0.1")
		t.Setenv("HELLOMCP_PORT", "7000")
		t.Setenv("HELLOMCP_LOG_LEVEL", "DEBUG")

		got := ApplyEnv(Config{Host: "localhost", Port: 9092, LogLevel: "info"}, nil)
		want := Config{Host: "10.0.0.1", Port: 7000, LogLevel: "debug"}
		if got != want {
			t.Errorf("want %+v, got %+v", want, got)
		}
	})

	t.Run("nothing set leaves config alone", func(t *testing.T) {
		t.Setenv("HELLOMCP_HOST", "")
		t.Setenv("HELLOMCP_PORT", "")
		t.Setenv("HELLOMCP_LOG_LEVEL", "")

		in := Config{Host: "localhost", Port: 9092, LogLevel: "info"}
		if got := ApplyEnv(in, nil); got != in {
			t.Errorf("want %+v, got %+v", in, got)
		}
	})

	t.Run("malformed port is ignored", func(t *testing.T) {
		t.Setenv("HELLOMCP_HOST", "")
		t.Setenv("HELLOMCP_PORT", "not-a-port")
		t.Setenv("HELLOMCP_LOG_LEVEL", "")
		log, buf := bufferLogger()

		in := Default()
		if got := ApplyEnv(in, log); got != in {
			t.Errorf("want %+v, got %+v", in, got)
		}
		if !strings.Contains(buf.String(), "level=WARN") {
			t.Errorf("expected a warning, got %q", buf.String())
		}
	})
}

func TestApplyEnvKeepsValidValuesBesideMalformedOne(t *testing.T) {
	t.Setenv("HELLOMCP_HOST", "10.0.0.2")
	t.Setenv("HELLOMCP_PORT", "abc")
	t.Setenv("HELLOMCP_LOG_LEVEL", "warn")
	log, buf := bufferLogger()

	got := ApplyEnv(Default(), log)
	want := Config{Host: "10.0.0.2", Port: DefaultPort, LogLevel: "warn"}
	if got != want {
		t.Errorf("want %+v, got %+v", want, got)
	}
	if !strings.Contains(buf.String(), "HELLOMCP_PORT") {
		t.Errorf("expected a warning naming HELLOMCP_PORT, got %q", buf.String())
	}
}

func TestApplyEnvOutOfRangePort(t *testing.T) {
	t.Setenv("HELLOMCP_HOST", "")
	t.Setenv("HELLOMCP_PORT", "70000")
	t.Setenv("HELLOMCP_LOG_LEVEL", "")
	log, buf := bufferLogger()

	if got := ApplyEnv(Default(), log); got.Port != DefaultPort {
		t.Errorf("want default port, got %d", got.Port)
	}
	if !strings.Contains(buf.String(), "out of range") {
		t.Errorf("expected out of range warning, got %q", buf.String())
	}
}

func TestAddr(t *testing.T) {
	if got := Default().Addr(); got != "localhost:9090" {
		t.Errorf("want localhost:9090, got %s", got)
	}
	if got := (Config{Host: "::1", Port: 1}).Addr(); got != "[::1]:1" {
		t.Errorf("want [::1]:1, got %s", got)
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{"debug": slog.LevelDebug, "INFO": slog.LevelInfo, "warning": slog.LevelWarn, "error": slog.LevelError} {
		got, ok := ParseLevel(in)
		if !ok || got != want {
			t.Errorf("%q: want %v, got %v (ok=%v)", in, want, got, ok)
		}
	}
	if _, ok := ParseLevel("verbose"); ok {
		t.Error("unknown level should not parse")
	}
}

func ptr(s string) *string { return &s }
