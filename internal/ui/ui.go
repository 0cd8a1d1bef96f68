package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/plexsync/internal/models"
	"github.com/desertthunder/plexsync/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	RunListView ViewState = iota
	UnresolvedView
	ConfirmView
	SyncView
	ResultView
)

// runLimit caps how many runs the browser loads.
const runLimit = 100

// History reads recorded sync runs.
type History interface {
	Runs(ctx context.Context, limit int) ([]*models.SyncRun, error)
	Unresolved(ctx context.Context, runID string) ([]*models.UnresolvedTrack, error)
}

// SyncFunc performs a full run, reporting progress on the channel.
type SyncFunc func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*tasks.SyncResult, error)

// Model represents the TUI application state.
type Model struct {
	ctx            context.Context
	view           ViewState
	history        History
	sync           SyncFunc
	width          int
	height         int
	runList        list.Model
	runs           []*models.SyncRun
	unresolvedList list.Model
	selectedRun    *models.SyncRun
	progressChan   chan tasks.ProgressUpdate
	doneChan       chan syncComplete
	progress       tasks.ProgressUpdate
	result         *tasks.SyncResult
	err            error
	help           help.Model
	keys           keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
//
// A nil sync disables starting runs from the browser.
func NewModel(ctx context.Context, history History, sync SyncFunc) *Model {
	return &Model{
		ctx:            ctx,
		view:           RunListView,
		history:        history,
		sync:           sync,
		runList:        list.New(nil, list.NewDefaultDelegate(), 0, 0),
		unresolvedList: list.New(nil, list.NewDefaultDelegate(), 0, 0),
		help:           help.New(),
		keys:           newKeyMap(),
	}
}

// Init initializes the TUI by loading the run history.
func (m *Model) Init() tea.Cmd {
	return m.fetchRuns()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.runList.SetSize(msg.Width-4, msg.Height-8)
		m.unresolvedList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.quit) && !m.filtering() {
			return m, tea.Quit
		}
		switch m.view {
		case RunListView:
			return m.handleRunListKeys(msg)
		case UnresolvedView:
			return m.handleUnresolvedKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}
		return m, nil

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgRunsFetched:
		data := msg.data.(runsFetched)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.err = nil
		m.runs = data.runs
		items := make([]list.Item, len(data.runs))
		for i, run := range data.runs {
			items[i] = runItem{run: run}
		}
		m.runList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.runList.Title = "Sync Runs"
		m.runList.SetSize(m.width-4, m.height-8)
		return m, nil

	case MsgUnresolvedFetched:
		data := msg.data.(unresolvedFetched)
		if data.err != nil {
			m.err = data.err
			m.view = RunListView
			return m, nil
		}
		m.selectedRun = data.run
		items := make([]list.Item, len(data.tracks))
		for i, track := range data.tracks {
			items[i] = unresolvedItem{track: track}
		}
		m.unresolvedList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.unresolvedList.Title = fmt.Sprintf("Unresolved in run #%d", data.run.Sequence())
		m.unresolvedList.SetSize(m.width-4, m.height-8)
		m.view = UnresolvedView
		return m, nil

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, m.waitForProgress()

	case MsgSyncComplete:
		data := msg.data.(syncComplete)
		m.result = data.result
		m.err = data.err
		m.view = ResultView
		m.progressChan = nil
		m.doneChan = nil
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case RunListView:
		return m.renderRunList()
	case UnresolvedView:
		return m.renderUnresolved()
	case ConfirmView:
		return m.renderConfirm()
	case SyncView:
		return m.renderSync()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleRunListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.runList.FilterState() != list.Filtering {
		switch {
		case key.Matches(msg, m.keys.enter):
			if item, ok := m.runList.SelectedItem().(runItem); ok {
				return m, m.fetchUnresolved(item.run)
			}
			return m, nil
		case key.Matches(msg, m.keys.sync) && m.sync != nil:
			m.view = ConfirmView
			return m, nil
		case key.Matches(msg, m.keys.refresh):
			return m, m.fetchRuns()
		}
	}

	var cmd tea.Cmd
	m.runList, cmd = m.runList.Update(msg)
	return m, cmd
}

func (m *Model) handleUnresolvedKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.back) && m.unresolvedList.FilterState() == list.Unfiltered {
		m.view = RunListView
		m.selectedRun = nil
		return m, nil
	}

	var cmd tea.Cmd
	m.unresolvedList, cmd = m.unresolvedList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back):
		m.view = RunListView
		return m, nil
	case key.Matches(msg, m.keys.yes):
		m.view = SyncView
		m.progress = tasks.ProgressUpdate{}
		return m, m.startSync()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.refresh) || key.Matches(msg, m.keys.back) {
		m.view = RunListView
		m.result = nil
		m.err = nil
		return m, m.fetchRuns()
	}
	return m, nil
}

// filtering reports whether the visible list is capturing keystrokes for its filter input.
func (m *Model) filtering() bool {
	switch m.view {
	case RunListView:
		return m.runList.FilterState() == list.Filtering
	case UnresolvedView:
		return m.unresolvedList.FilterState() == list.Filtering
	}
	return false
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case RunListView:
		m.runList, cmd = m.runList.Update(msg)
	case UnresolvedView:
		m.unresolvedList, cmd = m.unresolvedList.Update(msg)
	}
	return m, cmd
}

func (m *Model) fetchRuns() tea.Cmd {
	return func() tea.Msg {
		runs, err := m.history.Runs(m.ctx, runLimit)
		return runsFetchedMsg(runs, err)
	}
}

func (m *Model) fetchUnresolved(run *models.SyncRun) tea.Cmd {
	return func() tea.Msg {
		tracks, err := m.history.Unresolved(m.ctx, run.ID())
		return unresolvedFetchedMsg(run, tracks, err)
	}
}

func (m *Model) startSync() tea.Cmd {
	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan syncComplete, 1)
	m.progressChan = progress
	m.doneChan = done

	go func() {
		result, err := m.sync(m.ctx, progress)
		close(progress)
		done <- syncComplete{result: result, err: err}
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progress, done := m.progressChan, m.doneChan
	return func() tea.Msg {
		if progress == nil {
			return syncCompleteMsg(m.result, m.err)
		}

		update, ok := <-progress
		if !ok {
			c := <-done
			return syncCompleteMsg(c.result, c.err)
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) renderRunList() string {
	bindings := []key.Binding{m.keys.enter}
	if m.sync != nil {
		bindings = append(bindings, m.keys.sync)
	}
	bindings = append(bindings, m.keys.refresh, m.keys.quit)

	body := m.runList.View()
	if len(m.runs) == 0 {
		body = Title("Sync Runs") + "\n" + Muted("No runs recorded yet.")
	}
	return fmt.Sprintf("%s\n\n%s", body, m.help.ShortHelpView(bindings))
}

func (m *Model) renderUnresolved() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.back, m.keys.quit})
	if len(m.unresolvedList.Items()) == 0 {
		title := Title(fmt.Sprintf("Run #%d", m.selectedRun.Sequence()))
		return fmt.Sprintf("%s\n%s\n\n%s", title, Success("Every track was resolved."), helpView)
	}
	return fmt.Sprintf("%s\n\n%s", m.unresolvedList.View(), helpView)
}

func (m *Model) renderConfirm() string {
	title := Title("Start a sync run now?")
	info := "\nPlaylists from every configured source will be mirrored into the library.\n"
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.yes, m.keys.no, m.keys.quit})
	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}

func (m *Model) renderSync() string {
	title := Title("Syncing Playlists")

	var phase string
	switch m.progress.Phase {
	case tasks.ExpandSources:
		phase = fmt.Sprintf("Expanding sources (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.FetchPlaylist:
		phase = fmt.Sprintf("Fetching playlist (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.ResolveTracks:
		phase = fmt.Sprintf("Resolving tracks (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.WritePlaylist:
		phase = "Writing playlist..."
	default:
		phase = "Processing..."
	}

	return fmt.Sprintf("%s\n\n%s\n%s", title, phase, Muted(m.progress.Message))
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.refresh, m.keys.quit})

	if m.err != nil {
		return fmt.Sprintf("%s\n\n%s", Failure(fmt.Sprintf("Sync failed: %v", m.err)), helpView)
	}
	if m.result == nil {
		return fmt.Sprintf("%s\n\n%s", Failure("No result available"), helpView)
	}

	title := Success("✓ Sync Complete")
	if m.result.Failed() > 0 || m.result.Err != nil {
		title = Warning("Sync finished with errors")
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("\n%s\n", m.result.Summary()))
	for _, p := range m.result.Playlists {
		line := fmt.Sprintf("  • %s: %s, %d/%d matched", p.Name, p.Action, p.Matched, p.Total)
		if p.Err != nil {
			line = Failure(fmt.Sprintf("  • %s: %v", p.Name, p.Err))
		}
		b.WriteString(line + "\n")
	}
	for _, e := range m.result.SourceErrors {
		b.WriteString(Failure(fmt.Sprintf("  • %v", e)) + "\n")
	}

	return fmt.Sprintf("%s\n%s\n%s", title, b.String(), helpView)
}
