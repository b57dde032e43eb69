package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the progress view.
type keyMap struct {
	albums key.Binding
	quit   key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		albums: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "toggle albums")),
		quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "cancel")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.albums, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.albums, k.quit}}
}
