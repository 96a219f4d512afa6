package monitor

import (
	"context"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rileyhilliard/hfwatch/internal/attach"
	"github.com/rileyhilliard/hfwatch/internal/discovery"
	"github.com/rileyhilliard/hfwatch/internal/logger"
	"github.com/rileyhilliard/hfwatch/internal/refresher"
	"github.com/rileyhilliard/hfwatch/internal/terrain"
)

// Sender delivers messages to a running program. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(msg tea.Msg)

// Send calls f.
func (f SenderFunc) Send(msg tea.Msg) { f(msg) }

// Messages the Controller sends. Refresher-scoped messages carry the
// generation of the refresher that produced them.
type (
	candidatesMsg []terrain.EndpointID

	busyMsg bool

	attachedMsg struct {
		gen      uint64
		endpoint terrain.EndpointID
	}

	attachFailedMsg struct {
		err error
	}

	snapshotMsg struct {
		gen  uint64
		snap *terrain.Snapshot
	}

	disconnectedMsg struct {
		gen uint64
	}

	discoveryErrMsg struct {
		err error
	}
)

// Controller connects discovery, attach and polling to a Sender. It is the
// attach owner: each successful attach replaces the active refresher.
type Controller struct {
	ctx       context.Context
	dir       *discovery.Directory
	mgr       *attach.Manager
	log       logger.Logger
	interval  time.Duration
	listeners []refresher.Listener

	dirOpts []discovery.Option

	mu     sync.Mutex
	sender Sender
	active *refresher.Refresher
	gen    uint64
	closed bool
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithPollInterval sets the refresher interval.
func WithPollInterval(d time.Duration) ControllerOption {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithDiscovery passes options through to the endpoint directory.
func WithDiscovery(opts ...discovery.Option) ControllerOption {
	return func(c *Controller) { c.dirOpts = append(c.dirOpts, opts...) }
}

// WithListeners registers extra listeners on every refresher the
// controller starts, alongside its own.
func WithListeners(ls ...refresher.Listener) ControllerOption {
	return func(c *Controller) { c.listeners = append(c.listeners, ls...) }
}

// WithSender sets the message target up front.
func WithSender(s Sender) ControllerOption {
	return func(c *Controller) { c.sender = s }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) ControllerOption {
	return func(c *Controller) { c.log = logger.OrDefault(l) }
}

// NewController builds a controller. ctx bounds every attach and refresher
// it starts.
func NewController(ctx context.Context, source discovery.Source, connector attach.Connector, opts ...ControllerOption) *Controller {
	c := &Controller{
		ctx:      ctx,
		log:      logger.Default(),
		interval: refresher.DefaultInterval,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.mgr = attach.NewManager(connector, c, attach.WithLogger(c.log))

	dirOpts := append([]discovery.Option{
		discovery.WithLogger(c.log),
		discovery.WithBusy(c.mgr.Busy),
	}, c.dirOpts...)
	dirOpts = append(dirOpts, discovery.WithOnChange(func(ids []terrain.EndpointID) {
		c.send(candidatesMsg(ids))
	}))
	c.dir = discovery.NewDirectory(source, dirOpts...)

	return c
}

// SetSender sets the message target. Messages sent before a sender is set
// are dropped.
func (c *Controller) SetSender(s Sender) {
	c.mu.Lock()
	c.sender = s
	c.mu.Unlock()
}

// Start begins periodic discovery.
func (c *Controller) Start() {
	c.dir.Start()
}

// Candidates returns the current discovery result.
func (c *Controller) Candidates() []terrain.EndpointID {
	return c.dir.Candidates()
}

// Pattern returns the discovery pattern.
func (c *Controller) Pattern() string {
	return c.dir.Pattern()
}

// Refresh runs discovery now. Errors are reported to the sender as well
// as returned.
func (c *Controller) Refresh() error {
	err := c.dir.Refresh()
	if err != nil {
		c.send(discoveryErrMsg{err: err})
	}
	return err
}

// Attach starts attaching to id. It reports false if another attach is
// still in flight.
func (c *Controller) Attach(id terrain.EndpointID) bool {
	return c.mgr.Attach(c.ctx, id)
}

// Busy reports whether an attach is in flight.
func (c *Controller) Busy() bool {
	return c.mgr.Busy()
}

// Disconnect asks the active refresher to stop. It does not wait.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	r := c.active
	c.mu.Unlock()
	if r != nil {
		r.Stop()
	}
}

// Close stops discovery and the active refresher, and waits for any
// attach in flight to report.
func (c *Controller) Close() {
	c.dir.Stop()

	c.mu.Lock()
	r := c.active
	c.active = nil
	c.gen++
	c.closed = true
	c.mu.Unlock()

	if r != nil {
		r.Stop()
		r.Wait()
	}
	c.mgr.Wait()
}

// BackgroundOperationChanged implements attach.Owner.
func (c *Controller) BackgroundOperationChanged(active bool) {
	c.send(busyMsg(active))
}

// Attached implements attach.Owner. The previous refresher is stopped and
// drained before the new one starts.
func (c *Controller) Attached(h terrain.Handle) {
	c.mu.Lock()
	prev := c.active
	c.active = nil
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	if prev != nil {
		c.log.Debug("monitor: replacing %s", prev.Endpoint())
		prev.Stop()
		prev.Wait()
	}

	listeners := append([]refresher.Listener{&bridge{c: c, gen: gen}}, c.listeners...)
	r, err := refresher.New(h,
		refresher.WithInterval(c.interval),
		refresher.WithLogger(c.log),
		refresher.WithListeners(listeners...),
	)
	if err != nil {
		if c.ownsManager(gen) {
			c.mgr.Detached()
		}
		c.send(attachFailedMsg{err: err})
		return
	}

	c.mu.Lock()
	if c.gen != gen {
		// Closed, or overtaken by a later attach while draining the
		// previous refresher. The later attach owns the manager state.
		closed := c.closed
		c.mu.Unlock()
		_ = h.Close()
		if closed {
			c.mgr.Detached()
		} else {
			c.log.Debug("monitor: dropping %s, a newer attach replaced it", h.Endpoint())
		}
		return
	}
	c.active = r
	c.mu.Unlock()

	c.send(attachedMsg{gen: gen, endpoint: h.Endpoint()})
	r.Start(c.ctx)
}

// AttachFailed implements attach.Owner.
func (c *Controller) AttachFailed(err error) {
	c.send(attachFailedMsg{err: err})
}

// ownsManager reports whether the manager's Attached state still belongs
// to generation gen, or the controller is closed.
func (c *Controller) ownsManager(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == gen || c.closed
}

func (c *Controller) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == gen
}

// send never holds c.mu while delivering: Send blocks until the program
// takes the message, and Update may call back into the controller.
func (c *Controller) send(msg tea.Msg) {
	c.mu.Lock()
	s := c.sender
	c.mu.Unlock()
	if s != nil {
		s.Send(msg)
	}
}

// bridge forwards one refresher's events to the controller's sender.
type bridge struct {
	c   *Controller
	gen uint64
}

func (b *bridge) OnSnapshot(s *terrain.Snapshot) {
	b.c.send(snapshotMsg{gen: b.gen, snap: s})
}

func (b *bridge) OnDisconnected() {
	if b.c.current(b.gen) {
		b.c.mgr.Detached()
	}
	b.c.send(disconnectedMsg{gen: b.gen})
}
