// Package clipboard adapts the system clipboard to the panel.
package clipboard

import (
	"fmt"
	"sync"

	"github.com/atotto/clipboard"

	"github.com/user/planbridge/internal/types"
)

// writeAll is a package-level variable to allow mocking in tests.
var writeAll = clipboard.WriteAll

// System writes to the OS clipboard.
type System struct{}

var _ types.Clipboard = System{}

func (System) WriteText(text string) error {
	if clipboard.Unsupported {
		return fmt.Errorf("write clipboard: no clipboard utility available")
	}
	if err := writeAll(text); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	return nil
}

// Memory keeps the last written text. Used when no system clipboard exists.
type Memory struct {
	mu   sync.Mutex
	text string
}

var _ types.Clipboard = (*Memory)(nil)

func (m *Memory) WriteText(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text = text
	return nil
}

// Text returns the last written text.
func (m *Memory) Text() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text
}
