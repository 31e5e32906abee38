package clipboard

import (
	"context"
	"errors"
	"sync"

	"github.com/atotto/clipboard"
	"pkt.systems/pslog"
	"pkt.systems/replwin/schema"
)

// ErrUnsupported indicates the host has no usable clipboard utility.
var ErrUnsupported = errors.New("system clipboard unsupported")

// System places plain text on the operating system clipboard. Richer
// formats are remembered in process and returned while the system text is
// still the text this clipboard wrote.
type System struct {
	mu     sync.Mutex
	last   schema.DataObject
	logger pslog.Logger
	read   func() (string, error)
	write  func(string) error
}

// NewSystem returns a clipboard backed by the operating system.
func NewSystem(logger pslog.Logger) (*System, error) {
	if clipboard.Unsupported {
		return nil, ErrUnsupported
	}
	return newSystem(logger, clipboard.ReadAll, clipboard.WriteAll), nil
}

func newSystem(logger pslog.Logger, read func() (string, error), write func(string) error) *System {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &System{logger: logger, read: read, write: write}
}

// SetData writes the text format to the system clipboard.
func (s *System) SetData(data schema.DataObject) error {
	text, _ := data.Text()
	if err := s.write(text); err != nil {
		s.logger.Warn("clipboard write failed", "err", err)
		return err
	}
	s.mu.Lock()
	s.last = copyData(data)
	s.mu.Unlock()
	return nil
}

// GetData reads the system clipboard.
func (s *System) GetData() (schema.DataObject, error) {
	text, err := s.read()
	if err != nil {
		s.logger.Warn("clipboard read failed", "err", err)
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.last.Text(); ok && last == text {
		return copyData(s.last), nil
	}
	return schema.DataObject{schema.ClipboardTextFormat: text}, nil
}
