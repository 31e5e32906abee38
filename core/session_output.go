package core

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"pkt.systems/replwin/schema"
)

type pendingWrite struct {
	text   string
	stream schema.OutputStream
}

// Write queues output text. It is placed ahead of the live prompt when
// flushed. Writes after Close are dropped.
func (s *Session) Write(text string) {
	s.write(text, schema.StreamOutput)
}

func (s *Session) write(text string, stream schema.OutputStream) {
	if text == "" {
		return
	}
	_ = s.do(func() {
		s.pendingOut = append(s.pendingOut, pendingWrite{text: text, stream: stream})
		if s.cfg.OutputFlushInterval <= 0 {
			s.flushOutput()
			return
		}
		s.scheduleFlush()
	})
}

// WriteLine writes text followed by a line break.
func (s *Session) WriteLine(text string) {
	s.Write(text + s.cfg.NewLine)
}

// WriteError writes to the error stream. Error output lands in its own
// output spans.
func (s *Session) WriteError(text string) {
	s.write(text, schema.StreamError)
}

// WriteErrorLine writes error output followed by a line break.
func (s *Session) WriteErrorLine(text string) {
	s.WriteError(text + s.cfg.NewLine)
}

// OutputWriter adapts Write to io.Writer.
func (s *Session) OutputWriter() io.Writer {
	return sessionWriter{write: s.Write}
}

// ErrorWriter adapts WriteError to io.Writer.
func (s *Session) ErrorWriter() io.Writer {
	return sessionWriter{write: s.WriteError}
}

type sessionWriter struct {
	write func(string)
}

func (w sessionWriter) Write(p []byte) (int, error) {
	w.write(string(p))
	return len(p), nil
}

// FlushOutput places all queued output in the view.
func (s *Session) FlushOutput() {
	_ = s.do(s.flushOutput)
}

func (s *Session) scheduleFlush() {
	if s.flushTimer != nil {
		return
	}
	s.flushTimer = time.AfterFunc(s.cfg.OutputFlushInterval, func() {
		_ = s.do(func() {
			s.flushTimer = nil
			s.flushOutput()
		})
	})
}

func (s *Session) stopFlushTimer() {
	if s.flushTimer != nil {
		s.flushTimer.Stop()
		s.flushTimer = nil
	}
}

// flushOutput appends queued output before the live region. Each run of
// writes to one stream merges into a directly preceding output span of the
// same stream.
func (s *Session) flushOutput() {
	if len(s.pendingOut) == 0 {
		return
	}
	s.stopFlushTimer()
	writes := coalesceWrites(s.pendingOut)
	s.pendingOut = nil

	index := s.spans.live
	if index > 0 && s.spans.at(index-1).Kind == schema.SpanLineBreak {
		s.replaceSpans(index-1, 1)
		index--
	}
	for _, w := range writes {
		text := normalizeNewLines(w.text, s.cfg.NewLine)
		isErr := w.stream == schema.StreamError
		if index > 0 {
			if prev := s.spans.at(index - 1); prev.Kind == schema.SpanOutput && prev.Error == isErr {
				s.replaceSpans(index-1, 1, schema.Span{Kind: schema.SpanOutput, Text: prev.Text + text, Error: isErr})
				s.emitOutput(w.stream, text)
				continue
			}
		}
		s.replaceSpans(index, 0, schema.Span{Kind: schema.SpanOutput, Text: text, Error: isErr})
		index++
		s.emitOutput(w.stream, text)
	}
	if s.spans.hasLive() {
		s.ensureLineBreak(s.spans.live)
	}
}

func (s *Session) emitOutput(stream schema.OutputStream, text string) {
	if s.sink != nil {
		s.sink.OnOutput(schema.OutputEvent{SessionID: s.id, Stream: stream, Text: text})
	}
}

// coalesceWrites joins consecutive writes to the same stream.
func coalesceWrites(writes []pendingWrite) []pendingWrite {
	out := make([]pendingWrite, 0, len(writes))
	for _, w := range writes {
		if n := len(out); n > 0 && out[n-1].stream == w.stream {
			out[n-1].text += w.text
			continue
		}
		out = append(out, w)
	}
	return out
}

// normalizeNewLines rewrites every line terminator as newLine.
func normalizeNewLines(text, newLine string) string {
	if !strings.ContainsAny(text, "\r\n") {
		return text
	}
	var b strings.Builder
	for i := 0; i < len(text); i++ {
		if n := breakAt(text, i); n > 0 {
			b.WriteString(newLine)
			i += n - 1
			continue
		}
		b.WriteByte(text[i])
	}
	return b.String()
}

// ClearView removes committed text. While waiting for input the live
// prompt and input are kept.
func (s *Session) ClearView() {
	_ = s.do(func() {
		s.flushOutput()
		s.replaceSpans(0, s.spans.live)
		if !s.spans.hasLive() {
			s.setCaret(0)
		}
	})
}

// ReadStandardInput opens a standard input line below the output of the
// running submission and waits for the user to submit it.
func (s *Session) ReadStandardInput(ctx context.Context) (string, error) {
	ch := make(chan stdinResult, 1)
	err := s.doErr(func() error {
		if s.state != schema.StateExecuting || !s.busy {
			return fmt.Errorf("%w: standard input requires a running submission", schema.ErrInvalidState)
		}
		if s.stdin != nil {
			return fmt.Errorf("%w: standard input already pending", schema.ErrInvalidState)
		}
		s.flushOutput()
		s.stdin = ch
		s.input = ""
		s.spans.openLive(s.spans.len())
		s.renderLive(schema.SpanStandardInput)
		s.setCaret(len(s.spans.text))
		s.undo.reset()
		return nil
	})
	if err != nil {
		return "", err
	}
	select {
	case res := <-ch:
		return res.text, res.err
	case <-ctx.Done():
		_ = s.do(func() {
			if s.stdin == ch {
				s.cancelStandardInput()
			}
		})
		return "", ctx.Err()
	}
}

// TrySubmitStandardInput submits the pending standard input read. It
// returns false when no read is pending.
func (s *Session) TrySubmitStandardInput() bool {
	ok := false
	_ = s.do(func() {
		if s.stdin != nil {
			s.submitStandardInput()
			ok = true
		}
	})
	return ok
}

// CancelStandardInput ends the pending standard input read with
// ErrInputCancelled.
func (s *Session) CancelStandardInput() error {
	return s.doErr(func() error {
		if s.stdin == nil {
			return schema.ErrNotReadingInput
		}
		s.cancelStandardInput()
		return nil
	})
}

func (s *Session) submitStandardInput() {
	text := s.input
	s.finishStandardInput(stdinResult{text: text})
}

func (s *Session) cancelStandardInput() {
	if s.stdin == nil {
		return
	}
	s.finishStandardInput(stdinResult{err: schema.ErrInputCancelled})
}

// finishStandardInput commits the typed line and answers the reader.
func (s *Session) finishStandardInput(res stdinResult) {
	ch := s.stdin
	s.input += s.cfg.NewLine
	s.renderLive(schema.SpanStandardInput)
	s.spans.commit()
	s.stdin = nil
	s.input = ""
	s.undo.reset()
	s.setCaret(len(s.spans.text))
	ch <- res
}
