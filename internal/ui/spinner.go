package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// SpinnerState is the lifecycle of a Spinner.
type SpinnerState int

const (
	SpinnerIdle SpinnerState = iota
	SpinnerActive
	SpinnerSucceeded
	SpinnerFailed
)

var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

const spinnerInterval = 80 * time.Millisecond

// Spinner redraws one status line while a background operation runs. It
// is safe for use from several goroutines; the attach owner drives it from
// the attach goroutine.
type Spinner struct {
	mu       sync.Mutex
	w        io.Writer
	label    string
	state    SpinnerState
	frame    int
	started  time.Time
	lastLen  int
	stop     chan struct{}
	finished chan struct{}
}

// NewSpinner creates an idle spinner that draws on w.
func NewSpinner(w io.Writer, label string) *Spinner {
	return &Spinner{w: w, label: label}
}

// Start begins animating. Starting an active spinner does nothing.
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.state == SpinnerActive {
		s.mu.Unlock()
		return
	}
	s.state = SpinnerActive
	s.started = time.Now()
	s.stop = make(chan struct{})
	s.finished = make(chan struct{})
	stop, finished := s.stop, s.finished
	s.drawLocked()
	s.mu.Unlock()

	go s.animate(stop, finished)
}

// Success stops the spinner and prints "✓ label elapsed".
func (s *Spinner) Success() { s.finish(SpinnerSucceeded) }

// Fail stops the spinner and prints "✗ label elapsed".
func (s *Spinner) Fail() { s.finish(SpinnerFailed) }

// SetLabel changes the text drawn after the frame.
func (s *Spinner) SetLabel(label string) {
	s.mu.Lock()
	s.label = label
	s.mu.Unlock()
}

// State returns the current state.
func (s *Spinner) State() SpinnerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Spinner) finish(to SpinnerState) {
	s.mu.Lock()
	if s.state != SpinnerActive {
		s.mu.Unlock()
		return
	}
	s.state = to
	close(s.stop)
	finished := s.finished
	s.mu.Unlock()

	<-finished

	s.mu.Lock()
	defer s.mu.Unlock()
	symbol, style := SymbolSuccess, SuccessStyle
	if to == SpinnerFailed {
		symbol, style = SymbolFail, ErrorStyle
	}
	s.clearLocked()
	fmt.Fprintf(s.w, "%s %s %s\n", style.Render(symbol), s.label, MutedStyle.Render(formatElapsed(time.Since(s.started))))
}

func (s *Spinner) animate(stop <-chan struct{}, finished chan<- struct{}) {
	defer close(finished)
	ticker := time.NewTicker(spinnerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.frame = (s.frame + 1) % len(spinnerFrames)
			s.drawLocked()
			s.mu.Unlock()
		}
	}
}

func (s *Spinner) drawLocked() {
	s.clearLocked()
	style := lipgloss.NewStyle().Foreground(ColorSecondary)
	line := style.Render(spinnerFrames[s.frame]) + " " + s.label + "..."
	fmt.Fprint(s.w, line)
	s.lastLen = lipgloss.Width(line)
}

func (s *Spinner) clearLocked() {
	if s.lastLen == 0 {
		return
	}
	fmt.Fprint(s.w, "\r"+strings.Repeat(" ", s.lastLen)+"\r")
	s.lastLen = 0
}

// formatElapsed formats a duration for display (e.g., "0.03s", "1.2s").
func formatElapsed(d time.Duration) string {
	secs := d.Seconds()
	if secs < 0.1 {
		return fmt.Sprintf("%.2fs", secs)
	}
	return fmt.Sprintf("%.1fs", secs)
}
