package mention

import (
	"slices"

	"github.com/user/planbridge/internal/types"
)

type Key string

const (
	KeyUp     Key = "up"
	KeyDown   Key = "down"
	KeyEnter  Key = "enter"
	KeyTab    Key = "tab"
	KeyEscape Key = "escape"
)

// State is the query state of the mention menu.
type State struct {
	Active        bool   `json:"active"`
	TriggerOffset int    `json:"triggerOffset"`
	Query         string `json:"query"`
	SelectedIndex int    `json:"selectedIndex"`
	Narrowed      Kind   `json:"narrowed"`
}

// Edit is a draft change produced by accepting a candidate.
type Edit struct {
	Text     string
	Cursor   int
	Inserted Candidate
}

// Menu tracks mention context across draft changes and key presses. It is
// not safe for concurrent use.
type Menu struct {
	index   types.FileIndex
	state   State
	options []Candidate
}

// NewMenu creates a closed menu. index may be nil, in which case only the
// built-in entries are offered.
func NewMenu(index types.FileIndex) *Menu {
	return &Menu{index: index}
}

func (m *Menu) State() State {
	return m.state
}

// Options returns the currently visible candidates.
func (m *Menu) Options() []Candidate {
	return slices.Clone(m.options)
}

// Selected returns the highlighted candidate while the menu is open.
func (m *Menu) Selected() (Candidate, bool) {
	if !m.state.Active || m.state.SelectedIndex >= len(m.options) {
		return Candidate{}, false
	}
	return m.options[m.state.SelectedIndex], true
}

// Update re-evaluates mention context after the draft or cursor changed.
// The menu opens when a trigger is detected and closes when the context
// is lost. Narrowing survives edits within the same mention.
func (m *Menu) Update(text string, cursor int) {
	idx, ok := triggerIndex(text, cursor)
	if !ok {
		m.Close()
		return
	}
	if !m.state.Active || idx != m.state.TriggerOffset {
		m.state = State{Active: true, TriggerOffset: idx}
	}
	m.state.Query = ExtractQuery(text, cursor)
	m.refresh()
	m.state.SelectedIndex = m.defaultIndex()
}

// Close dismisses the menu and clears its state.
func (m *Menu) Close() {
	m.state = State{}
	m.options = nil
}

// Key applies a navigation key against the current draft. handled is false
// when the menu is closed or the key is not a menu key. edit is non-nil
// only when a candidate was inserted.
func (m *Menu) Key(k Key, text string, cursor int) (edit *Edit, handled bool) {
	if !m.state.Active || len(m.options) == 0 {
		return nil, false
	}
	n := len(m.options)
	switch k {
	case KeyUp:
		m.state.SelectedIndex = (m.state.SelectedIndex - 1 + n) % n
		return nil, true
	case KeyDown:
		m.state.SelectedIndex = (m.state.SelectedIndex + 1) % n
		return nil, true
	case KeyEscape:
		m.state.Narrowed = KindNone
		m.refresh()
		m.state.SelectedIndex = m.defaultIndex()
		return nil, true
	case KeyEnter, KeyTab:
		return m.accept(text, cursor), true
	default:
		return nil, false
	}
}

func (m *Menu) accept(text string, cursor int) *Edit {
	c, ok := m.Selected()
	if !ok || !c.Selectable() {
		return nil
	}
	if c.Browse() {
		m.state.Narrowed = c.Kind
		m.state.Query = ""
		m.refresh()
		m.state.SelectedIndex = 0
		return nil
	}
	out, pos, err := Insert(text, cursor, c.Value)
	if err != nil {
		m.Close()
		return nil
	}
	m.Close()
	return &Edit{Text: out, Cursor: pos, Inserted: c}
}

func (m *Menu) refresh() {
	all := Builtins()
	if m.index != nil {
		all = append(all, FromPaths(m.index.Paths())...)
	}
	m.options = Filter(m.state.Query, m.state.Narrowed, all)
}

// defaultIndex points at the browse entry when it is visible.
func (m *Menu) defaultIndex() int {
	if i := slices.Index(m.options, BrowseFolders); i >= 0 {
		return i
	}
	return 0
}
