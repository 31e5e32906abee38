// Package jseval runs submissions as JavaScript on a goja runtime that
// lives for the whole session and is replaced on reset.
package jseval

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"pkt.systems/pslog"
	"pkt.systems/replwin/core"
	"pkt.systems/replwin/schema"
)

const prompt = "> "

// ErrInterrupted is returned when a submission was aborted or timed out.
var ErrInterrupted = errors.New("execution interrupted")

// Config tunes the evaluator.
type Config struct {
	// Timeout bounds each submission; zero means no limit.
	Timeout time.Duration
	// StartupScript is a file run after initialization and after a reset
	// that asks for initialization.
	StartupScript string
}

// Evaluator implements core.Evaluator with goja.
type Evaluator struct {
	cfg Config
	log pslog.Logger

	mu     sync.Mutex
	vm     *goja.Runtime
	window core.Window
	ctx    context.Context

	running atomic.Pointer[goja.Runtime]
	closed  atomic.Bool
}

var _ core.Evaluator = (*Evaluator)(nil)

// New constructs an evaluator. The runtime is created by Initialize.
func New(cfg Config, logger pslog.Logger) *Evaluator {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Evaluator{cfg: cfg, log: logger.With("evaluator", "javascript")}
}

// Initialize creates the runtime and prints the banner.
func (e *Evaluator) Initialize(ctx context.Context, w core.Window) (schema.ExecutionResult, error) {
	e.mu.Lock()
	e.window = w
	e.mu.Unlock()
	w.WriteLine(fmt.Sprintf("JavaScript interactive (goja). Type \"%shelp\" for more information.", w.CommandPrefix()))
	return e.Reset(ctx, true)
}

// Reset discards all script state. A running submission is interrupted.
func (e *Evaluator) Reset(ctx context.Context, initialize bool) (schema.ExecutionResult, error) {
	e.AbortExecution()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.window == nil {
		return schema.Failed(), fmt.Errorf("%w: evaluator not initialized", schema.ErrInvalidState)
	}
	vm, err := e.newRuntime()
	if err != nil {
		return schema.Failed(), err
	}
	e.vm = vm
	e.log.Debug("evaluator reset", "initialize", initialize)
	if !initialize || e.cfg.StartupScript == "" {
		return schema.Succeeded(), nil
	}
	src, err := os.ReadFile(e.cfg.StartupScript)
	if err != nil {
		return schema.Failed(), fmt.Errorf("startup script: %w", err)
	}
	e.window.WriteLine(fmt.Sprintf("Loading context from '%s'.", e.cfg.StartupScript))
	if _, err := e.run(ctx, e.cfg.StartupScript, string(src)); err != nil {
		return schema.Failed(), err
	}
	return schema.Succeeded(), nil
}

// CanExecuteCode reports false only when text is an incomplete program,
// so Return keeps adding lines to an open block.
func (e *Evaluator) CanExecuteCode(text string) bool {
	if strings.TrimSpace(text) == "" {
		return true
	}
	_, err := goja.Compile("", text, false)
	if err == nil {
		return true
	}
	return !strings.Contains(err.Error(), "Unexpected end of input")
}

// ExecuteCode runs text and writes the value of the last expression.
func (e *Evaluator) ExecuteCode(ctx context.Context, text string) (schema.ExecutionResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.vm == nil {
		return schema.Failed(), fmt.Errorf("%w: evaluator not initialized", schema.ErrInvalidState)
	}
	if strings.TrimSpace(text) == "" {
		return schema.Succeeded(), nil
	}
	val, err := e.run(ctx, "<input>", text)
	if err != nil {
		return schema.Failed(), err
	}
	if out, ok := formatValue(val); ok {
		e.window.WriteLine(out)
	}
	return schema.Succeeded(), nil
}

// run executes src with the timeout and abort hooks armed. Callers hold mu.
func (e *Evaluator) run(ctx context.Context, name, src string) (goja.Value, error) {
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}
	vm := e.vm
	if ctx.Err() != nil {
		e.log.Debug("evaluator interrupted before start", "reason", ctx.Err().Error())
		return nil, ErrInterrupted
	}
	e.ctx = ctx
	vm.ClearInterrupt()
	e.running.Store(vm)
	done := make(chan struct{})
	watched := make(chan struct{})
	go func() {
		defer close(watched)
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()
	val, err := vm.RunScript(name, src)
	close(done)
	<-watched
	e.running.Store(nil)
	vm.ClearInterrupt()
	e.ctx = nil
	if err == nil {
		return val, nil
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		e.log.Debug("evaluator interrupted", "reason", fmt.Sprint(interrupted.Value()))
		return nil, ErrInterrupted
	}
	var exception *goja.Exception
	if errors.As(err, &exception) {
		return nil, errors.New(exception.Value().String())
	}
	return nil, err
}

// AbortExecution interrupts the running submission, if any.
func (e *Evaluator) AbortExecution() {
	if vm := e.running.Load(); vm != nil {
		vm.Interrupt("aborted")
	}
}

// FormatClipboard never overrides clipboard content.
func (e *Evaluator) FormatClipboard() (string, bool) {
	return "", false
}

// Prompt returns the input prompt.
func (e *Evaluator) Prompt() string {
	return prompt
}

// Configuration describes the evaluator for status output.
func (e *Evaluator) Configuration() string {
	parts := []string{"javascript"}
	if e.cfg.Timeout > 0 {
		parts = append(parts, "timeout="+e.cfg.Timeout.String())
	}
	if e.cfg.StartupScript != "" {
		parts = append(parts, "startup="+e.cfg.StartupScript)
	}
	return strings.Join(parts, " ")
}

// Close interrupts any submission and drops the runtime.
func (e *Evaluator) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.AbortExecution()
	e.mu.Lock()
	e.vm = nil
	e.mu.Unlock()
	return nil
}

func (e *Evaluator) newRuntime() (*goja.Runtime, error) {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.UncapFieldNameMapper())
	w := e.window
	printFn := func(call goja.FunctionCall) goja.Value {
		w.WriteLine(joinArgs(call.Arguments))
		return goja.Undefined()
	}
	if err := vm.Set("print", printFn); err != nil {
		return nil, fmt.Errorf("failed to set print: %w", err)
	}
	console := vm.NewObject()
	errorFn := func(call goja.FunctionCall) goja.Value {
		w.WriteErrorLine(joinArgs(call.Arguments))
		return goja.Undefined()
	}
	for _, name := range []string{"log", "info", "debug"} {
		if err := console.Set(name, printFn); err != nil {
			return nil, fmt.Errorf("failed to set console.%s: %w", name, err)
		}
	}
	for _, name := range []string{"error", "warn"} {
		if err := console.Set(name, errorFn); err != nil {
			return nil, fmt.Errorf("failed to set console.%s: %w", name, err)
		}
	}
	if err := vm.Set("console", console); err != nil {
		return nil, fmt.Errorf("failed to set console: %w", err)
	}
	readline := func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) > 0 {
			w.Write(call.Arguments[0].String())
		}
		ctx := e.ctx
		if ctx == nil {
			ctx = context.Background()
		}
		line, err := w.ReadStandardInput(ctx)
		if err != nil {
			panic(vm.NewGoError(err))
		}
		return vm.ToValue(strings.TrimRight(line, "\r\n"))
	}
	if err := vm.Set("readline", readline); err != nil {
		return nil, fmt.Errorf("failed to set readline: %w", err)
	}
	return vm, nil
}

func joinArgs(args []goja.Value) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = arg.String()
	}
	return strings.Join(parts, " ")
}

// formatValue renders an expression result. Undefined prints nothing.
func formatValue(val goja.Value) (string, bool) {
	if val == nil || goja.IsUndefined(val) {
		return "", false
	}
	if goja.IsNull(val) {
		return "null", true
	}
	if v, ok := val.Export().(string); ok {
		return strconv.Quote(v), true
	}
	if obj, ok := val.(*goja.Object); ok && obj.ClassName() != "Function" && obj.ClassName() != "Error" {
		if data, err := obj.MarshalJSON(); err == nil {
			return string(data), true
		}
	}
	return val.String(), true
}
