package discovery

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rileyhilliard/hfwatch/internal/errors"
	"github.com/rileyhilliard/hfwatch/internal/logger"
	"github.com/rileyhilliard/hfwatch/internal/terrain"
)

// DefaultInterval is how often a started Directory refreshes.
const DefaultInterval = time.Second

// Directory holds the current candidate endpoints. Each refresh replaces
// the whole list; readers always get a copy.
type Directory struct {
	source   Source
	interval time.Duration
	busy     func() bool
	onChange func([]terrain.EndpointID)
	log      logger.Logger

	mu         sync.RWMutex
	pattern    string
	candidates []terrain.EndpointID

	// refreshMu keeps a manual Refresh and a tick from interleaving.
	refreshMu sync.Mutex

	runMu sync.Mutex
	stop  chan struct{}
	done  chan struct{}
}

// Option configures a Directory.
type Option func(*Directory)

// WithInterval sets the refresh period used by Start.
func WithInterval(d time.Duration) Option {
	return func(dir *Directory) {
		if d > 0 {
			dir.interval = d
		}
	}
}

// WithPattern sets the initial glob pattern. The default matches everything.
func WithPattern(p string) Option {
	return func(dir *Directory) { dir.pattern = p }
}

// WithBusy installs a hook consulted before each refresh. While it
// returns true, refreshes are skipped.
func WithBusy(busy func() bool) Option {
	return func(dir *Directory) { dir.busy = busy }
}

// WithOnChange installs a callback that receives the new candidates
// whenever a refresh changes them. It runs on the refreshing goroutine
// and must not call Stop.
func WithOnChange(fn func([]terrain.EndpointID)) Option {
	return func(dir *Directory) { dir.onChange = fn }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(dir *Directory) { dir.log = l }
}

// NewDirectory creates a stopped directory over source.
func NewDirectory(source Source, opts ...Option) *Directory {
	d := &Directory{
		source:   source,
		interval: DefaultInterval,
		pattern:  "*",
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = logger.OrDefault(d.log)
	return d
}

// Candidates returns a copy of the current candidate list.
func (d *Directory) Candidates() []terrain.EndpointID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.candidates)
}

// Pattern returns the glob pattern used for queries.
func (d *Directory) Pattern() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.pattern
}

// SetPattern changes the query pattern. A malformed pattern is rejected
// and the old one kept.
func (d *Directory) SetPattern(p string) error {
	if err := ValidatePattern(p); err != nil {
		return err
	}
	d.mu.Lock()
	d.pattern = p
	d.mu.Unlock()
	return nil
}

// Refresh queries the source and replaces the candidates. It is a no-op
// while the busy hook reports an attach in progress. On error the error is
// logged, returned, and the previous candidates are kept.
func (d *Directory) Refresh() (err error) {
	if d.busy != nil && d.busy() {
		d.log.Debug("discovery: skipping refresh, attach in progress")
		return nil
	}

	d.refreshMu.Lock()
	defer d.refreshMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = errors.New(errors.ErrInternal,
				fmt.Sprintf("Discovery source panicked: %v", r),
				"This is a bug in the discovery source.")
			d.log.Error("discovery: %s", errors.Summary(err))
		}
	}()

	pattern := d.Pattern()
	found, err := d.source.Query(pattern)
	if err != nil {
		if !errors.IsCode(err, errors.ErrDiscovery) {
			err = errors.WrapWithCode(err, errors.ErrDiscovery,
				"Endpoint discovery failed",
				"The previous endpoint list is kept. Discovery retries on the next tick.")
		}
		d.log.Error("discovery: %s", errors.Summary(err))
		return err
	}

	next := slices.Clone(found)

	d.mu.Lock()
	changed := !slices.Equal(d.candidates, next)
	d.candidates = next
	d.mu.Unlock()

	if changed {
		d.log.Debug("discovery: %d candidates for %q", len(next), pattern)
		if d.onChange != nil {
			d.onChange(slices.Clone(next))
		}
	}
	return nil
}

// Start refreshes once and then on every tick until Stop. Calling Start
// on a running directory does nothing.
func (d *Directory) Start() {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	if d.stop != nil {
		return
	}
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	go d.run(d.stop, d.done)
}

// Stop halts the ticker and waits for an in-flight refresh to finish.
// It is safe to call at any time, any number of times.
func (d *Directory) Stop() {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	if d.stop == nil {
		return
	}
	close(d.stop)
	<-d.done
	d.stop, d.done = nil, nil
}

// Running reports whether the ticker is active.
func (d *Directory) Running() bool {
	d.runMu.Lock()
	defer d.runMu.Unlock()
	return d.stop != nil
}

func (d *Directory) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	_ = d.Refresh()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			_ = d.Refresh()
		}
	}
}
