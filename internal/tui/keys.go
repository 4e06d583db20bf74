package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Prev   key.Binding
	Next   key.Binding
	Choose key.Binding
	Flag   key.Binding
	Submit key.Binding
	Review key.Binding
	Quit   key.Binding
}

var keys = keyMap{
	Prev:   key.NewBinding(key.WithKeys("left", "h", "p"), key.WithHelp("←/h", "prev")),
	Next:   key.NewBinding(key.WithKeys("right", "l", "n"), key.WithHelp("→/l", "next")),
	Choose: key.NewBinding(key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8", "9"), key.WithHelp("1-9", "answer")),
	Flag:   key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "flag")),
	Submit: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "submit")),
	Review: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "review")),
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Prev, k.Next, k.Choose, k.Flag, k.Submit, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp(), {k.Review}}
}

// reviewKeys is the binding set shown once the exam is over.
type reviewKeys struct{ keyMap }

func (k reviewKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Prev, k.Next, k.Review, k.Quit}
}
