package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/plexsync/internal/models"
	"github.com/desertthunder/plexsync/internal/tasks"
)

// MsgKind enumerates all message types in the application.
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
	MsgRunsFetched MsgKind = iota
	MsgUnresolvedFetched
	MsgProgressUpdate
	MsgSyncComplete
)

type runsFetched struct {
	runs []*models.SyncRun
	err  error
}

type unresolvedFetched struct {
	run    *models.SyncRun
	tracks []*models.UnresolvedTrack
	err    error
}

type syncComplete struct {
	result *tasks.SyncResult
	err    error
}

// runsFetchedMsg is the constructor for [MsgRunsFetched]
func runsFetchedMsg(runs []*models.SyncRun, err error) Msg {
	return Msg{kind: MsgRunsFetched, data: runsFetched{runs, err}}
}

// unresolvedFetchedMsg is the constructor for [MsgUnresolvedFetched]
func unresolvedFetchedMsg(run *models.SyncRun, tracks []*models.UnresolvedTrack, err error) Msg {
	return Msg{kind: MsgUnresolvedFetched, data: unresolvedFetched{run, tracks, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// syncCompleteMsg is the constructor for [MsgSyncComplete]
func syncCompleteMsg(result *tasks.SyncResult, err error) Msg {
	return Msg{kind: MsgSyncComplete, data: syncComplete{result, err}}
}
