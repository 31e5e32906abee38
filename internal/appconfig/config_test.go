package appconfig

import (
	"testing"
	"time"

	"pkt.systems/replwin/schema"
)

func TestDefaultConfigSession(t *testing.T) {
	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	session := cfg.SessionConfig()
	if session.CommandPrefix != "#" || session.NewLine != "\r\n" {
		t.Fatalf("unexpected session defaults: %+v", session)
	}
	if session.OutputFlushInterval != 30*time.Millisecond {
		t.Fatalf("expected 30ms flush interval, got %v", session.OutputFlushInterval)
	}
	if !session.SmartUpDown {
		t.Fatalf("expected smart up/down to default true")
	}
	if _, err := schema.NormalizeSessionConfig(session); err != nil {
		t.Fatalf("expected defaults to normalize: %v", err)
	}
	if cfg.EvaluatorTimeout() != 0 {
		t.Fatalf("expected no evaluator timeout by default")
	}
}
