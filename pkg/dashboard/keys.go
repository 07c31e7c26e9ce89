package dashboard

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/greg-hellings/greencode/pkg/session"
)

type keyMap struct {
	Quit     key.Binding
	Analyze  key.Binding
	Language key.Binding
	History  key.Binding
	Editor   key.Binding
	About    key.Binding
	Docs     key.Binding
	Back     key.Binding
	Tab      key.Binding
	Export   key.Binding
	Copy     key.Binding
	Edit     key.Binding
	Up       key.Binding
	Down     key.Binding
	Open     key.Binding
	Clear    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit:     key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
		Analyze:  key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "analyze")),
		Language: key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("ctrl+l", "language")),
		History:  key.NewBinding(key.WithKeys("ctrl+o"), key.WithHelp("ctrl+o", "history")),
		Editor:   key.NewBinding(key.WithKeys("f3"), key.WithHelp("f3", "analyzer")),
		About:    key.NewBinding(key.WithKeys("f1"), key.WithHelp("f1", "about")),
		Docs:     key.NewBinding(key.WithKeys("f2"), key.WithHelp("f2", "docs")),
		Back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		Tab:      key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "overview/code")),
		Export:   key.NewBinding(key.WithKeys("ctrl+e"), key.WithHelp("ctrl+e", "export")),
		Copy:     key.NewBinding(key.WithKeys("ctrl+y"), key.WithHelp("ctrl+y", "copy code")),
		Edit:     key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new analysis")),
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Open:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
		Clear:    key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "clear history")),
	}
}

// bindings returns the help line for the current view and focus.
func (k keyMap) bindings(view session.View, historyFocused bool) []key.Binding {
	if historyFocused {
		return []key.Binding{k.Up, k.Down, k.Open, k.Clear, k.Back}
	}
	switch view {
	case session.ViewEditing:
		return []key.Binding{k.Analyze, k.Language, k.History, k.About, k.Docs, k.Quit}
	case session.ViewReport:
		return []key.Binding{k.Tab, k.Export, k.Copy, k.Edit, k.History, k.Back, k.Quit}
	default:
		return []key.Binding{k.Up, k.Down, k.Editor, k.Back, k.Quit}
	}
}
