package appconfig

import (
	"os"
	"path/filepath"
	"time"

	"pkt.systems/replwin/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int             `mapstructure:"config_version" yaml:"config_version"`
	StateDir      string          `mapstructure:"state_dir" yaml:"state_dir"`
	Session       SessionConfig   `mapstructure:"session" yaml:"session"`
	Evaluator     EvaluatorConfig `mapstructure:"evaluator" yaml:"evaluator"`
	SSH           SSHConfig       `mapstructure:"ssh" yaml:"ssh"`
	Console       ConsoleConfig   `mapstructure:"console" yaml:"console"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// SessionConfig controls the session engine.
type SessionConfig struct {
	CommandPrefix string `mapstructure:"command_prefix" yaml:"command_prefix"`
	NewLine       string `mapstructure:"new_line" yaml:"new_line"`
	HistoryMax    int    `mapstructure:"history_max" yaml:"history_max"`
	OutputFlushMS int    `mapstructure:"output_flush_ms" yaml:"output_flush_ms"`
	SmartUpDown   bool   `mapstructure:"smart_up_down" yaml:"smart_up_down"`
}

// EvaluatorConfig selects and tunes the evaluator.
type EvaluatorConfig struct {
	Kind           string `mapstructure:"kind" yaml:"kind"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	StartupScript  string `mapstructure:"startup_script" yaml:"startup_script"`
}

// SSHConfig configures the SSH console server.
type SSHConfig struct {
	Addr               string `mapstructure:"addr" yaml:"addr"`
	HostKeyPath        string `mapstructure:"host_key_path" yaml:"host_key_path"`
	AuthorizedKeysPath string `mapstructure:"authorized_keys_path" yaml:"authorized_keys_path"`
}

// ConsoleConfig configures terminal front ends.
type ConsoleConfig struct {
	Clipboard string `mapstructure:"clipboard" yaml:"clipboard"`
}

const (
	// EvaluatorJavaScript is the goja backed evaluator.
	EvaluatorJavaScript = "javascript"
	// ClipboardSystem uses the host clipboard.
	ClipboardSystem = "system"
	// ClipboardMemory keeps clipboard content in process.
	ClipboardMemory = "memory"
)

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	return Config{
		ConfigVersion: CurrentConfigVersion,
		StateDir:      filepath.Join(home, ".replwin", "state"),
		Session: SessionConfig{
			CommandPrefix: schema.DefaultCommandPrefix,
			NewLine:       schema.DefaultNewLine,
			HistoryMax:    schema.DefaultHistoryMax,
			OutputFlushMS: 30,
			SmartUpDown:   true,
		},
		Evaluator: EvaluatorConfig{
			Kind:           EvaluatorJavaScript,
			TimeoutSeconds: 0,
			StartupScript:  "",
		},
		SSH: SSHConfig{
			Addr:               ":2222",
			HostKeyPath:        filepath.Join(home, ".replwin", "ssh", "host_ed25519"),
			AuthorizedKeysPath: filepath.Join(home, ".replwin", "ssh", "authorized_keys"),
		},
		Console: ConsoleConfig{
			Clipboard: ClipboardSystem,
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".replwin", "config.yaml"), nil
}

// SessionConfig converts the session section to the engine config.
func (c Config) SessionConfig() schema.SessionConfig {
	return schema.SessionConfig{
		CommandPrefix:       c.Session.CommandPrefix,
		NewLine:             c.Session.NewLine,
		HistoryMax:          c.Session.HistoryMax,
		OutputFlushInterval: time.Duration(c.Session.OutputFlushMS) * time.Millisecond,
		SmartUpDown:         c.Session.SmartUpDown,
	}
}

// EvaluatorTimeout returns the per submission timeout, zero for none.
func (c Config) EvaluatorTimeout() time.Duration {
	return time.Duration(c.Evaluator.TimeoutSeconds) * time.Second
}
