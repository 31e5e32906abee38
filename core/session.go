package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/replwin/internal/logx"
	"pkt.systems/replwin/schema"
)

// Session is one interactive window: a composed view of prompts, inputs
// and outputs, an input editor and a submission pipeline feeding an
// Evaluator.
//
// All session state is owned by a single loop goroutine. Public methods hop
// onto it and may be called from any goroutine, except that collaborators
// invoked on the loop (EventSink, CanExecuteCode, Prompt, FormatClipboard)
// must not call back in.
type Session struct {
	id        schema.SessionID
	cfg       schema.SessionConfig
	evaluator Evaluator
	commands  Commands
	clipboard Clipboard
	sink      EventSink
	logger    pslog.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	ops       chan func()
	execs     chan execRequest
	quit      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once

	// Owned by the loop goroutine.
	state       schema.State
	spans       *spanList
	input       string
	caret       int
	anchor      int
	active      int
	history     *historyBuffer
	search      *string
	undo        undoStack
	queue       submissionQueue
	uncommitted *string
	deferred    []string
	pendingOut  []pendingWrite
	flushTimer  *time.Timer
	stdin       chan stdinResult
	abortRun    context.CancelFunc
	busy        bool
	resetting   bool
	textDirty   bool
	closed      bool
}

type execRequest struct {
	ctx        context.Context
	input      string
	completion *Completion
}

type stdinResult struct {
	text string
	err  error
}

// NewSession constructs a session in the Starting state. Call Initialize
// before submitting input.
func NewSession(cfg schema.SessionConfig, deps SessionDeps) (*Session, error) {
	normalized, err := schema.NormalizeSessionConfig(cfg)
	if err != nil {
		return nil, err
	}
	if deps.Evaluator == nil {
		return nil, errors.New("missing evaluator")
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	id := newSessionID()
	ctx, cancel := context.WithCancel(logx.ContextWithSessionLogger(context.Background(), logger, id))
	s := &Session{
		id:        id,
		cfg:       normalized,
		evaluator: deps.Evaluator,
		commands:  deps.Commands,
		clipboard: deps.Clipboard,
		sink:      deps.EventSink,
		logger:    logger.With("session", id),
		ctx:       ctx,
		cancel:    cancel,
		ops:       make(chan func()),
		execs:     make(chan execRequest, 1),
		quit:      make(chan struct{}),
		state:     schema.StateStarting,
		spans:     newSpanList(),
		history:   newHistory(normalized.HistoryMax),
	}
	s.wg.Add(2)
	go s.run()
	go s.runExecutor()
	return s, nil
}

func (s *Session) run() {
	defer s.wg.Done()
	for {
		select {
		case op := <-s.ops:
			op()
			s.emitText()
		case <-s.quit:
			return
		}
	}
}

func (s *Session) runExecutor() {
	defer s.wg.Done()
	for {
		select {
		case req := <-s.execs:
			result, command := s.execute(req.ctx, req.input)
			if err := s.do(func() { s.finishExecute(req, result, command) }); err != nil {
				req.completion.complete(err)
			}
		case <-s.quit:
			return
		}
	}
}

// do runs fn on the session loop and waits for it.
func (s *Session) do(fn func()) error {
	done := make(chan struct{})
	select {
	case s.ops <- func() {
		defer close(done)
		fn()
	}:
	case <-s.quit:
		return schema.ErrClosed
	}
	<-done
	return nil
}

// doErr runs fn on the session loop and returns its error.
func (s *Session) doErr(fn func() error) error {
	var err error
	if doErr := s.do(func() { err = fn() }); doErr != nil {
		return doErr
	}
	return err
}

// ID returns the session identifier.
func (s *Session) ID() schema.SessionID {
	return s.id
}

// SmartUpDown reports whether Up and Down browse history at the end of input.
func (s *Session) SmartUpDown() bool {
	return s.cfg.SmartUpDown
}

// CommandPrefix returns the meta-command prefix.
func (s *Session) CommandPrefix() string {
	return s.cfg.CommandPrefix
}

// State returns the current session state.
func (s *Session) State() schema.State {
	state := schema.StateStarting
	if err := s.do(func() { state = s.state }); err != nil {
		return schema.StateStarting
	}
	return state
}

// Initialize runs evaluator initialization and opens the first prompt.
// It may be called once; a failed initialization leaves the session in
// the Initializing state.
func (s *Session) Initialize(ctx context.Context) (schema.ExecutionResult, error) {
	err := s.doErr(func() error {
		if s.state != schema.StateStarting {
			return fmt.Errorf("%w: already initialized", schema.ErrInvalidState)
		}
		s.setState(schema.StateInitializing)
		return nil
	})
	if err != nil {
		return schema.Failed(), err
	}
	log := logx.WithSession(ctx, s.id)
	log.Info("session initialize start")
	result, err := s.evaluator.Initialize(ctx, s)
	if err != nil {
		log.Warn("session initialize failed", "err", err)
		s.WriteErrorLine(err.Error())
		result = schema.Failed()
	}
	if !result.Success {
		s.FlushOutput()
		return result, nil
	}
	if err := s.do(s.prepareForInput); err != nil {
		return schema.Failed(), err
	}
	log.Info("session initialize done")
	return result, nil
}

// Reset resets the evaluator. From WaitingForInput the live input is set
// aside and restored on the fresh prompt. From Executing the running
// submission finishes first.
func (s *Session) Reset(ctx context.Context, initialize bool) (schema.ExecutionResult, error) {
	err := s.doErr(func() error {
		switch s.state {
		case schema.StateWaitingForInput, schema.StateExecuting:
		default:
			return fmt.Errorf("%w: cannot reset while %s", schema.ErrInvalidState, s.state)
		}
		s.cancelStandardInput()
		s.flushOutput()
		if s.state == schema.StateWaitingForInput {
			s.storeUncommittedInput()
			s.removeLive()
		}
		s.resetting = true
		s.setState(schema.StateResetting)
		return nil
	})
	if err != nil {
		return schema.Failed(), err
	}
	log := logx.WithSession(ctx, s.id)
	log.Info("session reset start", "initialize", initialize)
	result, err := s.evaluator.Reset(ctx, initialize)
	if err != nil {
		log.Warn("session reset failed", "err", err)
		s.WriteErrorLine(err.Error())
		result = schema.Failed()
	}
	if err := s.do(func() {
		s.resetting = false
		if !s.busy {
			s.prepareForInput()
		}
	}); err != nil {
		return schema.Failed(), err
	}
	log.Info("session reset done", "success", result.Success)
	return result, nil
}

// Close stops the session. Queued submissions and pending reads fail with
// ErrClosed and the evaluator is closed.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		_ = s.do(func() {
			s.closed = true
			s.stopFlushTimer()
			s.cancelStandardInput()
			for _, pending := range s.queue.drain() {
				pending.Completion.complete(schema.ErrClosed)
			}
		})
		s.cancel()
		s.evaluator.AbortExecution()
		close(s.quit)
		s.wg.Wait()
		err = s.evaluator.Close()
		s.logger.Info("session closed")
	})
	return err
}

func (s *Session) setState(next schema.State) {
	if s.state == next {
		return
	}
	prev := s.state
	s.state = next
	logx.WithState(s.logger, next).Debug("session state change", "from", prev.String())
	if s.sink != nil {
		s.sink.OnState(schema.StateEvent{SessionID: s.id, From: prev, To: next})
	}
}

func (s *Session) emitText() {
	if !s.textDirty {
		return
	}
	s.textDirty = false
	if s.sink != nil {
		s.sink.OnText(schema.TextEvent{SessionID: s.id, Length: len(s.spans.text)})
	}
}

// prepareForInput flushes output, inserts deferred inputs and opens a new
// prompt, then hands over to pending submissions.
func (s *Session) prepareForInput() {
	if s.closed {
		return
	}
	s.flushOutput()
	for _, input := range s.deferred {
		s.insertCommittedInput(input)
		s.history.Append(trimLineBreak(input))
	}
	s.deferred = nil
	s.ensureLineBreak(s.spans.len())
	s.undo.reset()
	s.search = nil
	s.input = ""
	s.spans.openLive(s.spans.len())
	s.renderLive(schema.SpanInput)
	s.setCaret(s.spans.fromInput(0))
	s.processPendingSubmissions()
}

// processPendingSubmissions submits the next queued input or, when the
// queue is empty, restores the input set aside and waits for the user.
func (s *Session) processPendingSubmissions() {
	if pending, ok := s.queue.pop(); ok {
		s.setInput(pending.Input)
		s.submitLive(pending.Completion)
		return
	}
	if s.uncommitted != nil {
		s.setInput(*s.uncommitted)
		s.uncommitted = nil
	}
	s.setState(schema.StateWaitingForInput)
}

// storeUncommittedInput sets the typed input aside while queued
// submissions or a reset take over the prompt.
func (s *Session) storeUncommittedInput() {
	if s.uncommitted != nil || s.input == "" {
		return
	}
	text := s.input
	s.uncommitted = &text
}

// SubmitAsync queues inputs for evaluation in order and returns a
// completion for the whole batch.
func (s *Session) SubmitAsync(inputs ...string) *Completion {
	batch, completion := newBatch(inputs)
	if len(batch) == 0 {
		return completion
	}
	err := s.do(func() {
		s.queue.push(batch...)
		if s.state == schema.StateWaitingForInput && !s.busy {
			s.storeUncommittedInput()
			s.processPendingSubmissions()
		}
	})
	if err != nil {
		completion.complete(err)
	}
	return completion
}

// Submit queues inputs and waits for them to finish.
func (s *Session) Submit(ctx context.Context, inputs ...string) error {
	return s.SubmitAsync(inputs...).Wait(ctx)
}

// ClearPendingSubmissions discards queued submissions that have not started.
func (s *Session) ClearPendingSubmissions() error {
	return s.do(func() {
		for _, pending := range s.queue.drain() {
			pending.Completion.complete(schema.ErrSubmissionCancelled)
		}
	})
}

// submitLive commits the live input and hands it to the executor.
func (s *Session) submitLive(completion *Completion) {
	s.flushOutput()
	input := s.input
	committed := input
	if !endsWithLineBreak(committed) {
		committed += s.cfg.NewLine
	}
	live := s.spans.live
	s.replaceSpans(live, s.spans.len()-live, s.promptedLines(committed, schema.SpanInput, false)...)
	s.spans.commit()
	s.input = ""
	s.history.Append(input)
	s.search = nil
	s.undo.reset()
	s.setCaret(len(s.spans.text))
	s.busy = true
	ctx, cancel := context.WithCancel(s.ctx)
	s.abortRun = cancel
	s.setState(schema.StateExecuting)
	if s.sink != nil {
		s.sink.OnSubmission(schema.SubmissionEvent{SessionID: s.id, Input: input})
	}
	s.execs <- execRequest{ctx: ctx, input: input, completion: completion}
}

// execute runs one submission off the loop: meta-commands first, then
// the evaluator. ctx is cancelled when the submission is aborted.
func (s *Session) execute(ctx context.Context, input string) (schema.ExecutionResult, bool) {
	if s.commands != nil {
		if result, ok := s.commands.TryExecute(ctx, s, input); ok {
			return result, true
		}
	}
	result, err := s.evaluator.ExecuteCode(ctx, input)
	if err != nil {
		s.logger.Debug("session execute failed", "err", err)
		s.WriteErrorLine(err.Error())
		return schema.Failed(), false
	}
	return result, false
}

func (s *Session) finishExecute(req execRequest, result schema.ExecutionResult, command bool) {
	s.busy = false
	if s.abortRun != nil {
		s.abortRun()
		s.abortRun = nil
	}
	if s.closed {
		req.completion.complete(schema.ErrClosed)
		return
	}
	if s.sink != nil {
		s.sink.OnSubmission(schema.SubmissionEvent{SessionID: s.id, Input: req.input, Command: command, Done: true, Result: result})
	}
	if !s.resetting {
		s.prepareForInput()
	}
	req.completion.complete(nil)
}

// ExecuteInput submits the live input regardless of completeness. With
// the caret on a previous submission, that submission is appended to the
// live input instead.
func (s *Session) ExecuteInput() error {
	return s.do(func() {
		if s.state != schema.StateWaitingForInput || s.liveKind() != schema.SpanInput {
			return
		}
		if start := s.spans.liveStart(); s.caret >= start {
			s.clearSelection()
			s.submitLive(nil)
			return
		}
		rs, re, ok := s.inputGroupAt(s.caret)
		if !ok {
			return
		}
		s.appendToInput(s.codeIn(rs, re), false)
	})
}

// AbortExecution interrupts the running submission. Its context is
// cancelled first, so an abort that lands before the evaluator starts
// running is not lost.
func (s *Session) AbortExecution() error {
	busy := false
	err := s.do(func() {
		busy = s.busy
		if s.abortRun != nil {
			s.abortRun()
		}
	})
	if err != nil {
		return err
	}
	if busy {
		s.evaluator.AbortExecution()
	}
	return nil
}

// AddToHistory inserts input as a committed submission ahead of the live
// prompt and records it in history without running it.
func (s *Session) AddToHistory(input string) error {
	return s.doErr(func() error {
		switch s.state {
		case schema.StateStarting, schema.StateInitializing, schema.StateResetting:
			return fmt.Errorf("%w: cannot add history while %s", schema.ErrInvalidState, s.state)
		}
		if input == "" {
			return nil
		}
		s.flushOutput()
		s.insertCommittedInput(input)
		s.history.Append(trimLineBreak(input))
		return nil
	})
}

// AddInput behaves like AddToHistory, except that while a submission runs
// the input is held until the next prompt opens.
func (s *Session) AddInput(input string) error {
	return s.doErr(func() error {
		switch s.state {
		case schema.StateStarting, schema.StateInitializing:
			return fmt.Errorf("%w: cannot add input while %s", schema.ErrInvalidState, s.state)
		}
		if input == "" {
			return nil
		}
		if s.busy || s.state != schema.StateWaitingForInput {
			s.deferred = append(s.deferred, input)
			return nil
		}
		s.flushOutput()
		s.insertCommittedInput(input)
		s.history.Append(trimLineBreak(input))
		return nil
	})
}

// insertCommittedInput places prompted input lines ahead of the live region.
func (s *Session) insertCommittedInput(input string) {
	text := input
	if !endsWithLineBreak(text) {
		text += s.cfg.NewLine
	}
	index := s.spans.live
	index += s.ensureLineBreak(index)
	s.replaceSpans(index, 0, s.promptedLines(text, schema.SpanInput, false)...)
}

// ClearHistory forgets past submissions.
func (s *Session) ClearHistory() error {
	return s.do(func() {
		s.history.Clear()
		s.search = nil
	})
}

// HistoryEntries returns the recorded submissions, oldest first.
func (s *Session) HistoryEntries() []string {
	var entries []string
	_ = s.do(func() { entries = s.history.Entries() })
	return entries
}

// Snapshot returns the committed part of the view as blocks, after
// flushing output. The live prompt and input are not included.
func (s *Session) Snapshot() []schema.Block {
	var blocks []schema.Block
	_ = s.do(func() {
		s.flushOutput()
		spans := s.spans.all()
		blocks = schema.BlocksFromSpans(spans[:s.spans.live])
	})
	return blocks
}

// Restore loads previously snapshotted blocks as committed view text and
// seeds history with entries. It is only valid before Initialize.
func (s *Session) Restore(blocks []schema.Block, history []string) error {
	return s.doErr(func() error {
		if s.state != schema.StateStarting {
			return fmt.Errorf("%w: restore requires a fresh session", schema.ErrInvalidState)
		}
		spans := make([]schema.Span, 0, len(blocks))
		for i, block := range blocks {
			if !block.Kind.Valid() {
				return &schema.InvalidDataError{Msg: fmt.Sprintf("block %d has unknown kind %d", i, int(block.Kind))}
			}
			if block.Content == "" {
				continue
			}
			spans = append(spans, schema.Span{Kind: block.Kind, Text: block.Content, Error: block.Error && block.Kind == schema.SpanOutput})
		}
		s.replaceSpans(0, s.spans.len(), spans...)
		s.spans.commit()
		s.history = newHistoryFromPersisted(s.cfg.HistoryMax, history)
		s.setCaret(len(s.spans.text))
		return nil
	})
}

func trimLineBreak(text string) string {
	switch {
	case strings.HasSuffix(text, "\r\n"):
		return text[:len(text)-2]
	case strings.HasSuffix(text, "\n"), strings.HasSuffix(text, "\r"):
		return text[:len(text)-1]
	}
	return text
}
