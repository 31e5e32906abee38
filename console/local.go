package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/term"
	"pkt.systems/pslog"
)

// ErrNotTerminal is returned when the local console is started without a
// terminal on standard input.
var ErrNotTerminal = errors.New("standard input is not a terminal")

// sizePollInterval is how often the local console checks for a resize.
var sizePollInterval = 250 * time.Millisecond

// RunLocal drives attached from the process terminal. The terminal is put
// in raw mode for the duration and restored afterwards. The caller keeps
// ownership of attached.
func RunLocal(ctx context.Context, in *os.File, out io.Writer, attached Attached) error {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return ErrNotTerminal
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("enter raw mode: %w", err)
	}
	defer func() {
		_ = term.Restore(fd, state)
	}()

	width, height, err := term.GetSize(fd)
	if err != nil {
		pslog.Ctx(ctx).Debug("console size unavailable", "err", err)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	sizes := make(chan Size, 1)
	go pollSize(ctx, func() (int, int, error) { return term.GetSize(fd) }, Size{Width: width, Height: height}, sizes)

	ui := New(attached.Session, out, attached.Events, pslog.Ctx(ctx))
	ui.SetSize(width, height)
	return ui.Run(ctx, in, sizes)
}

// pollSize reports size changes until ctx ends.
func pollSize(ctx context.Context, get func() (int, int, error), last Size, out chan<- Size) {
	defer close(out)
	ticker := time.NewTicker(sizePollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w, h, err := get()
			if err != nil {
				continue
			}
			next := Size{Width: w, Height: h}
			if next == last {
				continue
			}
			last = next
			select {
			case out <- next:
			case <-ctx.Done():
				return
			}
		}
	}
}
