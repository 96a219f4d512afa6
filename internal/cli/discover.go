package cli

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rileyhilliard/hfwatch/internal/discovery"
	"github.com/rileyhilliard/hfwatch/internal/logger"
	"github.com/rileyhilliard/hfwatch/internal/terrain"
	"github.com/rileyhilliard/hfwatch/internal/ui"
	"github.com/rileyhilliard/hfwatch/internal/util"
)

type discoverOptions struct {
	Pattern  string
	Interval time.Duration
	Watch    bool
	Log      logger.Logger
}

func discoverCommand(ctx context.Context, out io.Writer, pattern string, watch bool) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	log, closer := setupLogger(cfg, false)
	defer closer.Close()

	if pattern == "" {
		pattern = cfg.Discovery.Pattern
	}
	if err := discovery.ValidatePattern(pattern); err != nil {
		return err
	}

	return runDiscover(ctx, out, newSource(cfg), discoverOptions{
		Pattern:  pattern,
		Interval: cfg.Discovery.Interval,
		Watch:    watch,
		Log:      log,
	})
}

// runDiscover prints the candidates once, or on every change until ctx
// is done.
func runDiscover(ctx context.Context, out io.Writer, source discovery.Source, opts discoverOptions) error {
	if !opts.Watch {
		dir := discovery.NewDirectory(source,
			discovery.WithPattern(opts.Pattern),
			discovery.WithLogger(opts.Log))
		if err := dir.Refresh(); err != nil {
			return err
		}
		printCandidates(out, opts.Pattern, dir.Candidates())
		return nil
	}

	var mu sync.Mutex
	dir := discovery.NewDirectory(source,
		discovery.WithPattern(opts.Pattern),
		discovery.WithInterval(opts.Interval),
		discovery.WithLogger(opts.Log),
		discovery.WithOnChange(func(ids []terrain.EndpointID) {
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintln(out, ui.MutedStyle.Render(time.Now().Format("15:04:05")))
			printCandidates(out, opts.Pattern, ids)
		}))

	fmt.Fprintf(out, "Watching endpoints matching %q (Ctrl+C to stop)\n", opts.Pattern)
	dir.Start()
	<-ctx.Done()
	dir.Stop()
	return nil
}

func printCandidates(out io.Writer, pattern string, ids []terrain.EndpointID) {
	if len(ids) == 0 {
		fmt.Fprintf(out, "No endpoints match %q\n", pattern)
		fmt.Fprintln(out, ui.MutedStyle.Render("  Add one with 'hfwatch endpoints add <destination>' or a Host entry in your ssh config."))
		return
	}
	for _, id := range ids {
		fmt.Fprintf(out, "  %s\n", id)
	}
	fmt.Fprintln(out, ui.MutedStyle.Render(util.Count(len(ids), "endpoint", "endpoints")))
}
