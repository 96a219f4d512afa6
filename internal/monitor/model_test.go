package monitor

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rileyhilliard/hfwatch/internal/errors"
	"github.com/rileyhilliard/hfwatch/internal/terrain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeControls records what the model asks of its controller.
type fakeControls struct {
	refuse      bool
	attached    []terrain.EndpointID
	disconnects int
	refreshes   int
	started     int
}

func (f *fakeControls) Start()         { f.started++ }
func (f *fakeControls) Refresh() error { f.refreshes++; return nil }
func (f *fakeControls) Disconnect()    { f.disconnects++ }

func (f *fakeControls) Attach(id terrain.EndpointID) bool {
	if f.refuse {
		return false
	}
	f.attached = append(f.attached, id)
	return true
}

func newTestModel(ids ...terrain.EndpointID) (Model, *fakeControls) {
	ctl := &fakeControls{}
	return NewModel(ctl, "*", ids), ctl
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func grid(t *testing.T, id terrain.EndpointID, heights ...float32) *terrain.Snapshot {
	t.Helper()
	size := int(math.Sqrt(float64(len(heights))))
	s, err := terrain.NewSnapshot(id, size, heights)
	require.NoError(t, err)
	return s
}

func TestModel_Navigation(t *testing.T) {
	m, _ := newTestModel("a", "b", "c")

	m, _ = update(t, m, runes("j"))
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = update(t, m, runes("j")) // clamps at the end
	id, ok := m.SelectedEndpoint()
	require.True(t, ok)
	assert.Equal(t, terrain.EndpointID("c"), id)

	m, _ = update(t, m, runes("k"))
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyUp})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyUp})
	id, _ = m.SelectedEndpoint()
	assert.Equal(t, terrain.EndpointID("a"), id)
}

func TestModel_EnterAttachesSelected(t *testing.T) {
	m, ctl := newTestModel("a", "b")

	m, _ = update(t, m, runes("j"))
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Equal(t, []terrain.EndpointID{"b"}, ctl.attached)
	assert.Equal(t, terrain.EndpointID("b"), m.target)
}

func TestModel_EnterWhileBusyIsIgnored(t *testing.T) {
	m, ctl := newTestModel("a", "b")
	ctl.refuse = true

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Empty(t, ctl.attached)
	assert.Equal(t, terrain.EndpointID(""), m.target)
}

func TestModel_EnterWithNoCandidates(t *testing.T) {
	m, ctl := newTestModel()
	_, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Empty(t, ctl.attached)
}

func TestModel_CandidatesKeepSelection(t *testing.T) {
	m, _ := newTestModel("a", "b", "c")
	m, _ = update(t, m, runes("j")) // b

	m, _ = update(t, m, candidatesMsg{"0", "a", "b"})
	id, _ := m.SelectedEndpoint()
	assert.Equal(t, terrain.EndpointID("b"), id)

	m, _ = update(t, m, candidatesMsg{"x", "y"})
	id, _ = m.SelectedEndpoint()
	assert.Equal(t, terrain.EndpointID("x"), id, "selection resets when the endpoint disappears")

	m, _ = update(t, m, candidatesMsg{})
	_, ok := m.SelectedEndpoint()
	assert.False(t, ok)
}

func TestModel_BusyStartsSpinner(t *testing.T) {
	m, _ := newTestModel("a")

	m, cmd := update(t, m, busyMsg(true))
	assert.True(t, m.busy)
	assert.NotNil(t, cmd)
	assert.Contains(t, m.View(), "attaching")

	m, cmd = update(t, m, busyMsg(false))
	assert.False(t, m.busy)
	assert.Nil(t, cmd)
}

func TestModel_SnapshotLifecycle(t *testing.T) {
	m, _ := newTestModel("a")

	m, _ = update(t, m, attachedMsg{gen: 1, endpoint: "a"})
	assert.True(t, m.Connected())

	s1 := grid(t, "a", 0, 1, 2, 3)
	m, _ = update(t, m, snapshotMsg{gen: 1, snap: s1})
	require.Same(t, s1, m.Snapshot())
	assert.NotEmpty(t, m.rendered)
	assert.Equal(t, float32(3), m.stats.Max)

	m, _ = update(t, m, disconnectedMsg{gen: 1})
	assert.False(t, m.Connected())

	// Disconnect is terminal for the generation.
	m, _ = update(t, m, snapshotMsg{gen: 1, snap: grid(t, "a", 9, 9, 9, 9)})
	assert.Same(t, s1, m.Snapshot())
}

func TestModel_StaleGenerationIgnored(t *testing.T) {
	m, _ := newTestModel("a", "b")

	m, _ = update(t, m, attachedMsg{gen: 2, endpoint: "b"})
	m, _ = update(t, m, snapshotMsg{gen: 1, snap: grid(t, "a", 1)})
	assert.Nil(t, m.Snapshot())

	m, _ = update(t, m, disconnectedMsg{gen: 1})
	assert.True(t, m.Connected())
}

func TestModel_UnchangedGridSkipsRedraw(t *testing.T) {
	m, _ := newTestModel("a")
	m, _ = update(t, m, attachedMsg{gen: 1, endpoint: "a"})

	m, _ = update(t, m, snapshotMsg{gen: 1, snap: grid(t, "a", 1, 2, 3, 4)})
	first := m.digest
	m.rendered = "sentinel"

	m, _ = update(t, m, snapshotMsg{gen: 1, snap: grid(t, "a", 1, 2, 3, 4)})
	assert.Equal(t, first, m.digest)
	assert.Equal(t, "sentinel", m.rendered)
	assert.Equal(t, 2, m.frames)

	m, _ = update(t, m, snapshotMsg{gen: 1, snap: grid(t, "a", 4, 3, 2, 1)})
	assert.NotEqual(t, first, m.digest)
	assert.NotEqual(t, "sentinel", m.rendered)
}

func TestModel_Disconnect(t *testing.T) {
	m, ctl := newTestModel("a")

	_, _ = update(t, m, runes("d"))
	assert.Equal(t, 0, ctl.disconnects, "nothing to disconnect")

	m, _ = update(t, m, attachedMsg{gen: 1, endpoint: "a"})
	_, _ = update(t, m, runes("d"))
	assert.Equal(t, 1, ctl.disconnects)
}

func TestModel_RefreshRunsAsCommand(t *testing.T) {
	m, ctl := newTestModel("a")

	_, cmd := update(t, m, runes("r"))
	require.NotNil(t, cmd)
	assert.Equal(t, 0, ctl.refreshes)
	assert.Nil(t, cmd())
	assert.Equal(t, 1, ctl.refreshes)
}

func TestModel_Quit(t *testing.T) {
	for _, msg := range []tea.KeyMsg{runes("q"), {Type: tea.KeyCtrlC}} {
		m, ctl := newTestModel("a")
		m, cmd := update(t, m, msg)
		require.NotNil(t, cmd)
		assert.IsType(t, tea.QuitMsg{}, cmd())
		assert.Equal(t, 1, ctl.disconnects)
		assert.Empty(t, m.View())
	}
}

func TestModel_HelpToggle(t *testing.T) {
	m, ctl := newTestModel("a", "b")
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})

	m, _ = update(t, m, runes("?"))
	assert.Contains(t, m.View(), "Keyboard Shortcuts")
	assert.Contains(t, m.View(), "disconnect")

	// Keys other than ? and esc are swallowed while help is open.
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Empty(t, ctl.attached)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.NotContains(t, m.View(), "Keyboard Shortcuts")
}

func TestModel_View(t *testing.T) {
	m, _ := newTestModel()
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})
	assert.Contains(t, m.View(), "No endpoints found")
	assert.Contains(t, m.View(), "not attached")

	m, _ = update(t, m, candidatesMsg{"terrain-a", "terrain-b"})
	view := m.View()
	assert.Contains(t, view, "terrain-a")
	assert.Contains(t, view, "terrain-b")
	assert.Contains(t, view, "2 endpoints")

	s := grid(t, "terrain-a", 1, float32(math.Inf(1)), 3, 4)
	s.FetchedAt = time.Now().Add(-3 * time.Second)
	m, _ = update(t, m, attachedMsg{gen: 1, endpoint: "terrain-a"})
	m, _ = update(t, m, tickMsg(time.Now()))
	m, _ = update(t, m, snapshotMsg{gen: 1, snap: s})

	view = m.View()
	assert.Contains(t, view, "2×2")
	assert.Contains(t, view, "1.00..4.00")
	assert.Contains(t, view, "1 no-data")
	assert.Contains(t, view, "seconds ago")
}

func TestModel_ViewShowsError(t *testing.T) {
	m, _ := newTestModel("a")
	err := errors.New(errors.ErrConnect, "Can't reach terrain-a", "Check the host")

	m, _ = update(t, m, attachFailedMsg{err: err})
	assert.Contains(t, m.View(), "Can't reach terrain-a")

	m, _ = update(t, m, attachedMsg{gen: 1, endpoint: "a"})
	assert.NotContains(t, m.View(), "Can't reach terrain-a")
}

func TestModel_MapColsFitsWindow(t *testing.T) {
	m, _ := newTestModel("a")

	assert.Equal(t, 64, m.mapCols(), "default before the first resize")

	m, _ = update(t, m, tea.WindowSizeMsg{Width: 200, Height: 30})
	assert.Equal(t, 2*(30-chromeHeight), m.mapCols(), "height bound")

	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 200})
	assert.Equal(t, 80-4-listWidth-4, m.mapCols(), "width bound")
}

func TestModel_InitStartsController(t *testing.T) {
	m, ctl := newTestModel()
	require.NotNil(t, m.Init())

	assert.Nil(t, m.startCmd()())
	assert.Equal(t, 1, ctl.started)
}

func TestLineWriter(t *testing.T) {
	var buf bytes.Buffer
	lw := NewLineWriter(&buf)

	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	s := grid(t, "terrain-a", 1, float32(math.NaN()), 3, 4)
	s.FetchedAt = at

	lw.OnSnapshot(s)
	lw.OnSnapshot(s)
	lw.OnDisconnected()
	lw.OnDisconnected()

	select {
	case <-lw.Done():
	default:
		t.Fatal("Done not closed")
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "03:04:05.000 terrain-a 2x2 range=1.00..4.00 no-data=1", lines[0])
	assert.Equal(t, lines[0]+" (unchanged)", lines[1])
	assert.Equal(t, "disconnected", lines[2])
}

func TestFormatRange(t *testing.T) {
	assert.Equal(t, "n/a", formatRange(terrain.Stats{}))
	assert.Equal(t, "-1.50..2.00", formatRange(terrain.Stats{Min: -1.5, Max: 2, Finite: 2}))
}
