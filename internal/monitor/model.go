package monitor

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rileyhilliard/hfwatch/internal/terrain"
)

// controls is the slice of Controller the model drives.
type controls interface {
	Start()
	Refresh() error
	Attach(id terrain.EndpointID) bool
	Disconnect()
}

// clockInterval drives the "updated N ago" text.
const clockInterval = time.Second

// Layout breakpoints
const (
	// BreakpointSideBySide is the width from which the list sits beside the map.
	BreakpointSideBySide = 72
	listWidth            = 28
	chromeHeight         = 6
)

// Model is the Bubble Tea model for the dashboard.
type Model struct {
	ctl  controls
	keys keyMap
	help help.Model

	candidates []terrain.EndpointID
	selected   int
	pattern    string

	busy    bool
	spinner spinner.Model
	target  terrain.EndpointID // endpoint of the latest attach request
	lastErr error

	// Active refresher. Messages from any other generation are stale.
	gen       uint64
	endpoint  terrain.EndpointID
	connected bool

	snap     *terrain.Snapshot
	stats    terrain.Stats
	digest   uint64
	rendered string
	frames   int

	width    int
	height   int
	now      time.Time
	showHelp bool
	quitting bool
}

// NewModel creates a dashboard model driven by ctl. initial seeds the
// candidate list before the first discovery refresh lands.
func NewModel(ctl controls, pattern string, initial []terrain.EndpointID) Model {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = SpinnerStyle

	h := help.New()
	h.Styles.ShortKey = LabelStyle
	h.Styles.ShortDesc = MutedStyle
	h.Styles.FullKey = LabelStyle
	h.Styles.FullDesc = MutedStyle

	return Model{
		ctl:        ctl,
		keys:       defaultKeyMap(),
		help:       h,
		spinner:    sp,
		pattern:    pattern,
		candidates: append([]terrain.EndpointID(nil), initial...),
		now:        time.Now(),
	}
}

// tickMsg advances the clock.
type tickMsg time.Time

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.startCmd(), tickCmd())
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.render()
		return m, nil

	case tickMsg:
		m.now = time.Time(msg)
		return m, tickCmd()

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case candidatesMsg:
		m.setCandidates(msg)
		return m, nil

	case discoveryErrMsg:
		m.lastErr = msg.err
		return m, nil

	case busyMsg:
		m.busy = bool(msg)
		if m.busy {
			return m, m.spinner.Tick
		}
		return m, nil

	case attachedMsg:
		m.gen = msg.gen
		m.endpoint = msg.endpoint
		m.connected = true
		m.lastErr = nil
		m.snap = nil
		m.digest = 0
		m.rendered = ""
		m.frames = 0
		return m, nil

	case attachFailedMsg:
		m.lastErr = msg.err
		return m, nil

	case snapshotMsg:
		if msg.gen != m.gen || !m.connected || msg.snap == nil {
			return m, nil
		}
		m.setSnapshot(msg.snap)
		return m, nil

	case disconnectedMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		m.connected = false
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		m.ctl.Disconnect()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		return m, nil
	}

	if m.showHelp {
		if msg.Type == tea.KeyEsc {
			m.showHelp = false
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
		}
	case key.Matches(msg, m.keys.Down):
		if m.selected < len(m.candidates)-1 {
			m.selected++
		}
	case key.Matches(msg, m.keys.Attach):
		id, ok := m.SelectedEndpoint()
		if !ok {
			return m, nil
		}
		if m.ctl.Attach(id) {
			m.target = id
			m.lastErr = nil
		}
	case key.Matches(msg, m.keys.Disconnect):
		if m.connected {
			m.ctl.Disconnect()
		}
	case key.Matches(msg, m.keys.Refresh):
		return m, m.refreshCmd()
	}
	return m, nil
}

// setCandidates replaces the list, keeping the selection on the same
// endpoint when it is still present.
func (m *Model) setCandidates(ids []terrain.EndpointID) {
	prev, hadPrev := m.SelectedEndpoint()
	m.candidates = ids
	m.selected = 0
	if !hadPrev {
		return
	}
	for i, id := range ids {
		if id == prev {
			m.selected = i
			return
		}
	}
}

// setSnapshot stores s and redraws only when the grid changed.
func (m *Model) setSnapshot(s *terrain.Snapshot) {
	m.frames++
	d := s.Digest()
	unchanged := m.snap != nil && d == m.digest
	m.snap = s
	if unchanged {
		return
	}
	m.digest = d
	m.stats = s.Stats()
	m.render()
}

func (m *Model) render() {
	if m.snap == nil {
		m.rendered = ""
		return
	}
	m.rendered = renderMap(m.snap, m.mapCols())
}

// mapCols is the widest map that fits the current window.
func (m Model) mapCols() int {
	if m.width == 0 {
		return 64
	}
	cols := m.width - 4
	if m.width >= BreakpointSideBySide {
		cols -= listWidth + 4
	}
	rows := m.height - chromeHeight
	if !m.sideBySide() {
		rows -= len(m.candidates) + 3
	}
	if rows > 0 && cols > 2*rows {
		cols = 2 * rows
	}
	return max(cols, 1)
}

func (m Model) sideBySide() bool {
	return m.width == 0 || m.width >= BreakpointSideBySide
}

func (m Model) startCmd() tea.Cmd {
	return func() tea.Msg {
		m.ctl.Start()
		return nil
	}
}

func (m Model) refreshCmd() tea.Cmd {
	return func() tea.Msg {
		_ = m.ctl.Refresh()
		return nil
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(clockInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.showHelp {
		return m.renderHelpOverlay()
	}
	return m.renderDashboard()
}

// SelectedEndpoint returns the highlighted candidate.
func (m Model) SelectedEndpoint() (terrain.EndpointID, bool) {
	if m.selected < 0 || m.selected >= len(m.candidates) {
		return "", false
	}
	return m.candidates[m.selected], true
}

// Connected reports whether a refresher is feeding the model.
func (m Model) Connected() bool {
	return m.connected
}

// Snapshot returns the last snapshot shown.
func (m Model) Snapshot() *terrain.Snapshot {
	return m.snap
}
