package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"pkt.systems/pslog"
	"pkt.systems/replwin/schema"
)

func TestWithSessionAddsField(t *testing.T) {
	capture := &logCapture{}
	logger := newCaptureLogger(capture)
	ctx := pslog.ContextWithLogger(context.Background(), logger)
	log := WithSession(ctx, "s1")
	log.Info("hello")

	entry := capture.firstEntry(t)
	if entry["session"] != "s1" {
		t.Fatalf("expected session field, got %+v", entry)
	}
}

func TestWithSessionSkipsDuplicateMarker(t *testing.T) {
	capture := &logCapture{}
	logger := newCaptureLogger(capture).With("session", "s1")
	ctx := ContextWithSessionLogger(context.Background(), logger, "s1")
	WithSession(ctx, "s1").Info("hello")

	if n := bytes.Count(capture.buf.Bytes(), []byte(`"session"`)); n != 1 {
		t.Fatalf("expected one session field, got %d in %s", n, capture.buf.String())
	}
}

func TestWithStateAndCommand(t *testing.T) {
	capture := &logCapture{}
	log := WithCommand(WithState(newCaptureLogger(capture), schema.StateExecuting), "reset")
	log.Info("hello")

	entry := capture.firstEntry(t)
	if entry["state"] != "executing" {
		t.Fatalf("expected state field, got %+v", entry)
	}
	if entry["command"] != "reset" {
		t.Fatalf("expected command field, got %+v", entry)
	}
}

func TestContextWithSessionSkipsEmpty(t *testing.T) {
	ctx := context.Background()
	if got := ContextWithSession(ctx, ""); got != ctx {
		t.Fatalf("expected context unchanged for empty session id")
	}
}

func newCaptureLogger(capture *logCapture) pslog.Logger {
	return pslog.NewWithOptions(capture, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		MinLevel:      pslog.InfoLevel,
		VerboseFields: true,
	})
}

type logCapture struct {
	buf bytes.Buffer
}

func (c *logCapture) Write(p []byte) (int, error) {
	return c.buf.Write(p)
}

func (c *logCapture) firstEntry(t *testing.T) map[string]any {
	t.Helper()
	data := c.buf.Bytes()
	idx := bytes.IndexByte(data, '\n')
	if idx == -1 {
		idx = len(data)
	}
	line := bytes.TrimSpace(data[:idx])
	entry := map[string]any{}
	if err := json.Unmarshal(line, &entry); err != nil {
		t.Fatalf("parse log entry: %v", err)
	}
	return entry
}
