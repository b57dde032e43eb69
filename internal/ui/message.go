package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/discog/internal/tasks"
)

// MsgKind enumerates all message types in the progress view.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgProgressUpdate MsgKind = iota
	MsgProgressClosed
	MsgRunComplete
)

// outcome is what a [Job] returned.
type outcome struct {
	results []*tasks.Result
	err     error
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// progressClosedMsg is the constructor for [MsgProgressClosed]
func progressClosedMsg() Msg {
	return Msg{kind: MsgProgressClosed}
}

// runCompleteMsg is the constructor for [MsgRunComplete]
func runCompleteMsg(results []*tasks.Result, err error) Msg {
	return Msg{kind: MsgRunComplete, data: outcome{results: results, err: err}}
}
