// Package attach connects to one endpoint at a time without blocking the
// caller. A compare-and-swap guard makes sure at most one attach is ever
// in flight.
package attach

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rileyhilliard/hfwatch/internal/errors"
	"github.com/rileyhilliard/hfwatch/internal/logger"
	"github.com/rileyhilliard/hfwatch/internal/terrain"
)

// State is the connection state of a Manager.
type State int32

const (
	Idle State = iota
	Attaching
	Attached
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Attaching:
		return "attaching"
	case Attached:
		return "attached"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Owner receives the outcome of attach attempts. Callbacks run on the
// attach goroutine; implementations marshal to their own context.
type Owner interface {
	BackgroundOperationChanged(active bool)
	Attached(h terrain.Handle)
	AttachFailed(err error)
}

// Connector opens a handle to an endpoint.
type Connector interface {
	Connect(ctx context.Context, id terrain.EndpointID) (terrain.Handle, error)
}

// ConnectorFunc adapts a function to Connector.
type ConnectorFunc func(ctx context.Context, id terrain.EndpointID) (terrain.Handle, error)

// Connect calls f.
func (f ConnectorFunc) Connect(ctx context.Context, id terrain.EndpointID) (terrain.Handle, error) {
	return f(ctx, id)
}

// Manager performs attach attempts on behalf of an Owner.
type Manager struct {
	connector Connector
	owner     Owner
	log       logger.Logger

	state atomic.Int32
	wg    sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// NewManager creates an idle manager.
func NewManager(connector Connector, owner Owner, opts ...Option) *Manager {
	m := &Manager{connector: connector, owner: owner}
	for _, opt := range opts {
		opt(m)
	}
	m.log = logger.OrDefault(m.log)
	return m
}

// Attach starts connecting to id in the background and returns
// immediately. It returns false, and does nothing else, when another
// attach is still in flight. For an accepted call exactly one of
// Owner.Attached or Owner.AttachFailed fires.
//
// ctx bounds the connect and must outlive the call.
func (m *Manager) Attach(ctx context.Context, id terrain.EndpointID) bool {
	if !m.acquire() {
		m.log.Debug("attach: %s ignored, another attach is in progress", id)
		return false
	}

	m.wg.Add(1)
	go m.run(ctx, id)
	return true
}

// acquire moves any settled state to Attaching.
func (m *Manager) acquire() bool {
	for _, from := range []State{Idle, Attached, Failed} {
		if m.state.CompareAndSwap(int32(from), int32(Attaching)) {
			return true
		}
	}
	return false
}

func (m *Manager) run(ctx context.Context, id terrain.EndpointID) {
	defer m.wg.Done()

	m.owner.BackgroundOperationChanged(true)
	m.log.Info("attach: connecting to %s", id)

	h, err := m.connect(ctx, id)
	if err != nil {
		m.release(Failed)
		m.log.Info("attach: unable to connect to %s: %s", id, errors.Summary(err))
		m.owner.BackgroundOperationChanged(false)
		m.owner.AttachFailed(err)
		m.state.CompareAndSwap(int32(Failed), int32(Idle))
		return
	}

	m.release(Attached)
	m.log.Info("attach: attached to %s", id)
	m.owner.BackgroundOperationChanged(false)
	m.owner.Attached(h)
}

func (m *Manager) connect(ctx context.Context, id terrain.EndpointID) (h terrain.Handle, err error) {
	defer func() {
		if r := recover(); r != nil {
			h = nil
			err = errors.New(errors.ErrInternal,
				fmt.Sprintf("Connector panicked while attaching to %s: %v", id, r),
				"This is a bug in the connector.")
		}
	}()

	h, err = m.connector.Connect(ctx, id)
	if err != nil {
		var coded *errors.Error
		if !stderrors.As(err, &coded) {
			err = errors.WrapWithCode(err, errors.ErrConnect,
				fmt.Sprintf("Couldn't attach to %s", id),
				"Check the endpoint is reachable and try again.")
		}
		return nil, err
	}
	if h == nil {
		return nil, errors.New(errors.ErrInternal,
			fmt.Sprintf("Connector returned no handle for %s", id),
			"This is a bug in the connector.")
	}
	return h, nil
}

// release ends the attach. The guard must still read Attaching; anything
// else means another path changed it under us.
func (m *Manager) release(to State) {
	if m.state.CompareAndSwap(int32(Attaching), int32(to)) {
		return
	}
	got := State(m.state.Load())
	err := errors.New(errors.ErrInternal,
		fmt.Sprintf("Concurrency problem: unable to reset attach guard (state is %s, want %s)", got, Attaching),
		"Behavior of this connection manager is no longer guaranteed. Restart hfwatch.")
	m.log.Error("attach: %s", errors.Summary(err))
}

// Detached records that the attached handle has gone away.
func (m *Manager) Detached() {
	m.state.CompareAndSwap(int32(Attached), int32(Idle))
}

// Busy reports whether an attach is in flight.
func (m *Manager) Busy() bool {
	return State(m.state.Load()) == Attaching
}

// State returns the current state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// Wait blocks until every accepted attach has signalled its owner.
func (m *Manager) Wait() {
	m.wg.Wait()
}
