package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rileyhilliard/hfwatch/internal/attach"
	"github.com/rileyhilliard/hfwatch/internal/config"
	"github.com/rileyhilliard/hfwatch/internal/discovery"
	"github.com/rileyhilliard/hfwatch/internal/errors"
	"github.com/rileyhilliard/hfwatch/internal/logger"
	"github.com/rileyhilliard/hfwatch/internal/monitor"
	"github.com/rileyhilliard/hfwatch/internal/refresher"
	"github.com/rileyhilliard/hfwatch/internal/terrain"
)

func watchCommand(ctx context.Context, out io.Writer, endpoint string, plain bool) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	log, closer := setupLogger(cfg, !plain)
	defer closer.Close()

	connector, err := newConnector(cfg, log)
	if err != nil {
		return err
	}
	pub, err := newPublisher(cfg, log)
	if err != nil {
		return err
	}
	if pub != nil {
		defer pub.Close()
	}

	interval := watchIntervalFlag.Or(cfg.Poll.Interval)
	source := newSource(cfg)

	if plain {
		if endpoint == "" {
			endpoint, err = firstCandidate(source, cfg.Discovery.Pattern, log)
			if err != nil {
				return err
			}
		}
		return runLines(ctx, out, connector, terrain.EndpointID(endpoint), lineOptions{
			Interval:  interval,
			Listeners: publisherListeners(pub),
			Log:       log,
		})
	}

	return runDashboard(ctx, cfg, source, connector, endpoint, interval, publisherListeners(pub), log)
}

// runDashboard runs the Bubble Tea dashboard until the user quits.
func runDashboard(ctx context.Context, cfg *config.Config, source discovery.Source, connector attach.Connector,
	endpoint string, interval time.Duration, listeners []refresher.Listener, log logger.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ctl := monitor.NewController(ctx, source, connector,
		monitor.WithPollInterval(interval),
		monitor.WithDiscovery(
			discovery.WithPattern(cfg.Discovery.Pattern),
			discovery.WithInterval(cfg.Discovery.Interval),
		),
		monitor.WithListeners(listeners...),
		monitor.WithLogger(log),
	)

	model := monitor.NewModel(ctl, cfg.Discovery.Pattern, nil)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	ctl.SetSender(p)

	if endpoint != "" {
		ctl.Attach(terrain.EndpointID(endpoint))
	}

	_, err := p.Run()

	// Sends after this point return immediately, so Close cannot block on
	// the finished program.
	cancel()
	ctl.Close()

	if err != nil && !stderrors.Is(err, tea.ErrProgramKilled) {
		return errors.WrapWithCode(err, errors.ErrInternal,
			"The dashboard stopped unexpectedly",
			"Try 'hfwatch watch --plain' to see raw output.")
	}
	return nil
}

// discoverOnce runs discovery once. Finding nothing is an error.
func discoverOnce(source discovery.Source, pattern string, log logger.Logger) ([]terrain.EndpointID, error) {
	dir := discovery.NewDirectory(source, discovery.WithPattern(pattern), discovery.WithLogger(log))
	if err := dir.Refresh(); err != nil {
		return nil, err
	}
	ids := dir.Candidates()
	if len(ids) == 0 {
		return nil, errors.New(errors.ErrDiscovery,
			fmt.Sprintf("No endpoints match %q", pattern),
			"Pass an endpoint explicitly, or add one with 'hfwatch endpoints add'.")
	}
	return ids, nil
}

// firstCandidate returns the first endpoint discovery finds.
func firstCandidate(source discovery.Source, pattern string, log logger.Logger) (string, error) {
	ids, err := discoverOnce(source, pattern, log)
	if err != nil {
		return "", err
	}
	return string(ids[0]), nil
}

type lineOptions struct {
	Interval  time.Duration
	Listeners []refresher.Listener
	Log       logger.Logger
}

// lineOwner is the attach owner for line mode. It starts a refresher that
// prints through a LineWriter.
type lineOwner struct {
	ctx   context.Context
	opts  lineOptions
	lines *monitor.LineWriter

	failed chan error

	mu sync.Mutex
	r  *refresher.Refresher
}

func (o *lineOwner) BackgroundOperationChanged(active bool) {
	if active {
		o.opts.Log.Debug("watch: attach in progress")
	}
}

func (o *lineOwner) Attached(h terrain.Handle) {
	listeners := append([]refresher.Listener{o.lines}, o.opts.Listeners...)
	r, err := refresher.New(h,
		refresher.WithInterval(o.opts.Interval),
		refresher.WithLogger(o.opts.Log),
		refresher.WithListeners(listeners...),
	)
	if err != nil {
		o.failed <- err
		return
	}
	o.mu.Lock()
	o.r = r
	o.mu.Unlock()
	r.Start(o.ctx)
}

func (o *lineOwner) AttachFailed(err error) {
	o.failed <- err
}

func (o *lineOwner) refresher() *refresher.Refresher {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.r
}

// runLines attaches to id and prints one line per snapshot until ctx is
// done or the endpoint goes away.
func runLines(ctx context.Context, out io.Writer, connector attach.Connector, id terrain.EndpointID, opts lineOptions) error {
	opts.Log = logger.OrDefault(opts.Log)
	owner := &lineOwner{
		ctx:    ctx,
		opts:   opts,
		lines:  monitor.NewLineWriter(out),
		failed: make(chan error, 1),
	}
	mgr := attach.NewManager(connector, owner, attach.WithLogger(opts.Log))
	defer mgr.Wait()

	mgr.Attach(ctx, id)

	select {
	case err := <-owner.failed:
		return err
	case <-owner.lines.Done():
		mgr.Detached()
		if r := owner.refresher(); r != nil {
			r.Wait()
		}
		return nil
	}
}
