package monitor

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rileyhilliard/hfwatch/internal/terrain"
)

// LineWriter is a listener that prints one line per snapshot, then
// "disconnected". It is the non-interactive counterpart to Model.
type LineWriter struct {
	mu   sync.Mutex
	w    io.Writer
	last uint64

	once sync.Once
	done chan struct{}
}

// NewLineWriter creates a LineWriter writing to w.
func NewLineWriter(w io.Writer) *LineWriter {
	return &LineWriter{w: w, done: make(chan struct{})}
}

// OnSnapshot writes a summary line. Unchanged grids are marked as such.
func (l *LineWriter) OnSnapshot(s *terrain.Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	d := s.Digest()
	fmt.Fprintln(l.w, FormatLine(s, d == l.last))
	l.last = d
}

// OnDisconnected writes the final line and closes Done. Later calls do
// nothing.
func (l *LineWriter) OnDisconnected() {
	l.once.Do(func() {
		l.mu.Lock()
		fmt.Fprintln(l.w, "disconnected")
		l.mu.Unlock()
		close(l.done)
	})
}

// Done is closed after the disconnect line is written.
func (l *LineWriter) Done() <-chan struct{} {
	return l.done
}

// FormatLine summarizes s on one line.
func FormatLine(s *terrain.Snapshot, unchanged bool) string {
	at := s.FetchedAt
	if at.IsZero() {
		at = time.Now()
	}
	st := s.Stats()

	line := fmt.Sprintf("%s %s %dx%d range=%s no-data=%s",
		at.Format("15:04:05.000"), s.Endpoint, s.Size, s.Size, formatRange(st), humanize.Comma(int64(st.NoData)))
	if unchanged {
		line += " (unchanged)"
	}
	return line
}
