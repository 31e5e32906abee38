package appconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Evaluator.Kind != EvaluatorJavaScript {
		t.Fatalf("expected default evaluator, got %q", cfg.Evaluator.Kind)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
state_dir: /tmp/replwin
session:
  command_prefix: "%"
  new_line: "\n"
  output_flush_ms: 0
  smart_up_down: false
evaluator:
  timeout_seconds: 5
console:
  clipboard: memory
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	session := cfg.SessionConfig()
	if session.CommandPrefix != "%" || session.NewLine != "\n" || session.SmartUpDown {
		t.Fatalf("unexpected session config: %+v", session)
	}
	if session.OutputFlushInterval != 0 {
		t.Fatalf("expected immediate flush, got %v", session.OutputFlushInterval)
	}
	if session.HistoryMax != 200 {
		t.Fatalf("expected default history max, got %d", session.HistoryMax)
	}
	if cfg.EvaluatorTimeout() != 5*time.Second {
		t.Fatalf("expected 5s timeout, got %v", cfg.EvaluatorTimeout())
	}
	if cfg.Console.Clipboard != ClipboardMemory {
		t.Fatalf("expected memory clipboard, got %q", cfg.Console.Clipboard)
	}
	if cfg.StateDir != "/tmp/replwin" {
		t.Fatalf("unexpected state dir %q", cfg.StateDir)
	}
}

func TestLoadRejectsUnsupportedConfigVersion(t *testing.T) {
	path := writeConfig(t, `
config_version: 3
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unsupported config_version") {
		t.Fatalf("expected config_version error, got %v", err)
	}
}

func TestLoadRequiresConfigVersion(t *testing.T) {
	path := writeConfig(t, `
state_dir: /tmp/replwin
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "config_version is required") {
		t.Fatalf("expected config_version error, got %v", err)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"evaluator.kind":    "evaluator:\n  kind: python",
		"console.clipboard": "console:\n  clipboard: x11",
		"new line":          "session:\n  new_line: \"\\r\"",
		"command prefix":    "session:\n  command_prefix: \" #\"",
		"timeout_seconds":   "evaluator:\n  timeout_seconds: -1",
	}
	for want, body := range cases {
		path := writeConfig(t, "config_version: 1\n"+body)
		if _, err := Load(path); err == nil || !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q error, got %v", want, err)
		}
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("FOO", "bar")
	value := expandEnv("$FOO/$UID/$GID/$MISSING")
	if !strings.HasPrefix(value, "bar/") {
		t.Fatalf("expected env expansion, got %q", value)
	}
	if strings.Contains(value, "$UID") || strings.Contains(value, "$GID") {
		t.Fatalf("expected UID/GID expansion, got %q", value)
	}
	if !strings.HasSuffix(value, "/$MISSING") {
		t.Fatalf("expected missing vars to remain, got %q", value)
	}
}

func TestLoadExpandsStateDir(t *testing.T) {
	t.Setenv("REPLWIN_TEST_HOME", "/srv/home")
	path := writeConfig(t, `
config_version: 1
state_dir: ${REPLWIN_TEST_HOME}/state
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StateDir != "/srv/home/state" {
		t.Fatalf("expected expanded state dir, got %q", cfg.StateDir)
	}
}

func TestWriteDefaultRespectsOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	written, err := WriteDefault(path, false)
	if err != nil {
		t.Fatalf("write default: %v", err)
	}
	if written != path {
		t.Fatalf("expected path %q, got %q", path, written)
	}
	if _, err := Load(path); err != nil {
		t.Fatalf("expected written default to load: %v", err)
	}
	if _, err := WriteDefault(path, false); err == nil {
		t.Fatalf("expected error when config exists")
	}
	if _, err := WriteDefault(path, true); err != nil {
		t.Fatalf("expected overwrite to succeed: %v", err)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
