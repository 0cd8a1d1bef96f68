// Package ui implements an interactive sync history browser using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow:
//  1. [RunListView] : Browse recorded sync runs, newest first
//  2. [UnresolvedView] : Tracks a run could not find in the library
//  3. [ConfirmView] : Confirm starting a new run
//  4. [SyncView] : Monitor real-time progress updates
//  5. [ResultView] : Per-playlist outcome of the run
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the SyncEngine, providing non-blocking status reporting during a run.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, s, y/n, r, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
