package schema

import (
	"errors"
	"strings"
	"time"
)

// SessionConfig defines defaults and limits for an interactive session.
type SessionConfig struct {
	// CommandPrefix introduces meta-commands, e.g. "#" in "#reset".
	CommandPrefix string
	// NewLine terminates committed input and output lines.
	NewLine string
	// HistoryMax bounds the number of history entries kept.
	HistoryMax int
	// OutputFlushInterval delays automatic output flushing; zero flushes on every write.
	OutputFlushInterval time.Duration
	// SmartUpDown makes Up/Down navigate history at the end of input.
	SmartUpDown bool
}

const (
	// DefaultCommandPrefix is the default meta-command prefix.
	DefaultCommandPrefix = "#"
	// DefaultNewLine is the default line terminator.
	DefaultNewLine = "\r\n"
	// DefaultHistoryMax is the default history size.
	DefaultHistoryMax = 200
)

// NormalizeSessionConfig applies defaults and validates the config.
func NormalizeSessionConfig(cfg SessionConfig) (SessionConfig, error) {
	if cfg.CommandPrefix == "" {
		cfg.CommandPrefix = DefaultCommandPrefix
	}
	if strings.TrimSpace(cfg.CommandPrefix) != cfg.CommandPrefix {
		return SessionConfig{}, errors.New("command prefix must not contain surrounding whitespace")
	}
	switch cfg.NewLine {
	case "":
		cfg.NewLine = DefaultNewLine
	case "\r\n", "\n":
	default:
		return SessionConfig{}, errors.New("new line must be \\r\\n or \\n")
	}
	if cfg.HistoryMax <= 0 {
		cfg.HistoryMax = DefaultHistoryMax
	}
	if cfg.OutputFlushInterval < 0 {
		cfg.OutputFlushInterval = 0
	}
	return cfg, nil
}
