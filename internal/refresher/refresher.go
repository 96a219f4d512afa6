// Package refresher polls a terrain.Handle on a fixed interval and fans
// each snapshot out to registered listeners.
package refresher

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rileyhilliard/hfwatch/internal/errors"
	"github.com/rileyhilliard/hfwatch/internal/logger"
	"github.com/rileyhilliard/hfwatch/internal/terrain"
)

// DefaultInterval is the pause between polls.
const DefaultInterval = 500 * time.Millisecond

// State is the lifecycle state of a Refresher.
type State int32

const (
	Stopped State = iota
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Refresher owns one handle and runs its polling loop. It runs at most
// once: after it stops, a new handle needs a new Refresher.
type Refresher struct {
	handle   terrain.Handle
	interval time.Duration
	log      logger.Logger

	listeners registry
	state     atomic.Int32
	launched  atomic.Bool
	done      chan struct{}
}

// Option configures a Refresher.
type Option func(*Refresher)

// WithInterval sets the pause between polls.
func WithInterval(d time.Duration) Option {
	return func(r *Refresher) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Refresher) { r.log = l }
}

// WithListeners registers listeners up front.
func WithListeners(ls ...Listener) Option {
	return func(r *Refresher) {
		for _, l := range ls {
			r.AddListener(l)
		}
	}
}

// New wraps h. The Refresher takes ownership of h and closes it when the
// loop ends.
func New(h terrain.Handle, opts ...Option) (*Refresher, error) {
	if h == nil {
		return nil, errors.New(errors.ErrInternal,
			"Refresher needs a connection handle",
			"Attach to an endpoint before starting a refresher.")
	}
	r := &Refresher{
		handle:   h,
		interval: DefaultInterval,
		done:     make(chan struct{}),
	}
	r.log = logger.Default()
	for _, opt := range opts {
		opt(r)
	}
	r.log = logger.OrDefault(r.log)
	return r, nil
}

// Endpoint returns the endpoint being polled.
func (r *Refresher) Endpoint() terrain.EndpointID {
	return r.handle.Endpoint()
}

// AddListener registers l. Nil and already-registered listeners are
// ignored. A listener added while a broadcast is running sees the next one.
func (r *Refresher) AddListener(l Listener) {
	if l == nil {
		return
	}
	if !isComparable(l) {
		r.log.Warn("refresher: ignoring listener of type %T, register it by pointer", l)
		return
	}
	r.listeners.add(l)
}

// RemoveListener unregisters l. A broadcast already running still
// delivers to it.
func (r *Refresher) RemoveListener(l Listener) {
	if l == nil || !isComparable(l) {
		return
	}
	r.listeners.remove(l)
}

// ListenerCount returns the number of registered listeners.
func (r *Refresher) ListenerCount() int {
	return r.listeners.size()
}

// Start launches the polling loop after telling each AttachListener the
// endpoint. Cancelling ctx interrupts the loop at
// its next wait and also reaches an in-flight Fetch. Calling Start again
// does nothing.
func (r *Refresher) Start(ctx context.Context) {
	if !r.launched.CompareAndSwap(false, true) {
		if r.State() == Running {
			r.log.Warn("refresher: %s is already running", r.Endpoint())
		} else {
			r.log.Error("refresher: %s has stopped and cannot be restarted; attach again", r.Endpoint())
		}
		return
	}

	r.state.Store(int32(Running))
	r.log.Debug("refresher: polling %s every %s", r.Endpoint(), r.interval)
	for _, l := range r.listeners.load() {
		if al, ok := l.(AttachListener); ok {
			r.deliver(l, func() { al.OnAttached(r.Endpoint()) })
		}
	}
	go r.run(ctx)
}

// Stop asks the loop to finish. It does not interrupt an in-flight fetch;
// the loop notices at its next iteration, within one interval.
func (r *Refresher) Stop() {
	if r.state.CompareAndSwap(int32(Running), int32(Stopping)) {
		r.log.Debug("refresher: stop requested for %s", r.Endpoint())
	}
}

// State returns the current lifecycle state.
func (r *Refresher) State() State {
	return State(r.state.Load())
}

// Done is closed once the loop has exited and every listener has been
// told about the disconnect.
func (r *Refresher) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until Done is closed. It returns at once if Start was never
// called.
func (r *Refresher) Wait() {
	if !r.launched.Load() {
		return
	}
	<-r.done
}

func (r *Refresher) run(ctx context.Context) {
	defer r.finish()

	for r.State() == Running {
		snap, err := r.fetch(ctx)
		if err != nil {
			if ctx.Err() != nil && stderrors.Is(err, ctx.Err()) {
				r.log.Info("refresher: %s interrupted during fetch", r.Endpoint())
			} else {
				r.log.Error("refresher: %s: %s", r.Endpoint(), errors.Summary(err))
			}
			r.state.CompareAndSwap(int32(Running), int32(Stopping))
			return
		}

		if !snap.Empty() {
			r.broadcast(snap)
		}

		if !r.sleep(ctx) {
			r.log.Info("refresher: %s interrupted, stopping", r.Endpoint())
			r.state.CompareAndSwap(int32(Running), int32(Stopping))
			return
		}
	}
}

func (r *Refresher) fetch(ctx context.Context) (snap *terrain.Snapshot, err error) {
	defer func() {
		if p := recover(); p != nil {
			snap = nil
			err = errors.New(errors.ErrInternal,
				fmt.Sprintf("Fetch panicked: %v", p),
				"This is a bug in the connection handle.")
		}
	}()

	snap, err = r.handle.Fetch(ctx)
	if err != nil {
		var coded *errors.Error
		if !stderrors.As(err, &coded) {
			err = errors.WrapWithCode(err, errors.ErrFetch,
				fmt.Sprintf("Couldn't fetch a snapshot from %s", r.Endpoint()),
				"Attach again to resume monitoring.")
		}
		return nil, err
	}
	return snap, nil
}

// broadcast delivers s to the listeners registered when it starts, in
// registration order.
func (r *Refresher) broadcast(s *terrain.Snapshot) {
	for _, l := range r.listeners.load() {
		r.deliver(l, func() { l.OnSnapshot(s) })
	}
}

func (r *Refresher) deliver(l Listener, call func()) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("refresher: listener %T panicked: %v", l, p)
		}
	}()
	call()
}

// sleep waits one interval. It returns false if ctx was cancelled first.
func (r *Refresher) sleep(ctx context.Context) bool {
	t := time.NewTimer(r.interval)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (r *Refresher) finish() {
	if err := r.handle.Close(); err != nil {
		r.log.Warn("refresher: closing %s: %v", r.Endpoint(), err)
	}

	for _, l := range r.listeners.load() {
		r.deliver(l, l.OnDisconnected)
	}

	r.log.Info("refresher: %s disconnected", r.Endpoint())
	r.state.Store(int32(Stopped))
	close(r.done)
}
