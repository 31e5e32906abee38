// Package clipboard provides session clipboards: an in-process one and one
// backed by the operating system clipboard.
package clipboard

import (
	"sync"

	"pkt.systems/replwin/schema"
)

// Memory is an in-process clipboard.
type Memory struct {
	mu   sync.Mutex
	data schema.DataObject
}

// NewMemory returns an empty in-process clipboard.
func NewMemory() *Memory {
	return &Memory{}
}

// SetData replaces the clipboard content.
func (m *Memory) SetData(data schema.DataObject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = copyData(data)
	return nil
}

// GetData returns a copy of the clipboard content.
func (m *Memory) GetData() (schema.DataObject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyData(m.data), nil
}

func copyData(data schema.DataObject) schema.DataObject {
	out := make(schema.DataObject, len(data))
	for format, content := range data {
		out[format] = content
	}
	return out
}
