package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/rileyhilliard/hfwatch/internal/attach"
	"github.com/rileyhilliard/hfwatch/internal/discovery"
	"github.com/rileyhilliard/hfwatch/internal/errors"
	"github.com/rileyhilliard/hfwatch/internal/heightmap"
	"github.com/rileyhilliard/hfwatch/internal/logger"
	"github.com/rileyhilliard/hfwatch/internal/monitor"
	"github.com/rileyhilliard/hfwatch/internal/terrain"
	"github.com/rileyhilliard/hfwatch/internal/ui"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// snapshotOutputs selects what snapshot writes. With nothing selected the
// grid is drawn on the terminal.
type snapshotOutputs struct {
	PNG     string
	Save    string
	YAML    bool
	Scale   int
	Checker bool

	// Cols bounds the terminal drawing. Zero means the terminal width.
	Cols int
}

func (o snapshotOutputs) any() bool {
	return o.PNG != "" || o.Save != "" || o.YAML
}

func snapshotCommand(ctx context.Context, out io.Writer, endpoint string, outs snapshotOutputs) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	log, closer := setupLogger(cfg, false)
	defer closer.Close()

	connector, err := newConnector(cfg, log)
	if err != nil {
		return err
	}

	if endpoint == "" {
		endpoint, err = pickEndpoint(newSource(cfg), cfg.Discovery.Pattern, log)
		if err != nil {
			return err
		}
	}

	var spinner *ui.Spinner
	if isTerminal(os.Stderr) {
		spinner = ui.NewSpinner(os.Stderr, "Attaching to "+endpoint)
	}

	snap, err := fetchOnce(ctx, connector, terrain.EndpointID(endpoint), spinner, log)
	if err != nil {
		return err
	}

	pub, err := newPublisher(cfg, log)
	if err != nil {
		log.Warn("snapshot: not publishing: %s", errors.Summary(err))
	} else if pub != nil {
		pub.OnSnapshot(snap)
		pub.OnDisconnected()
		pub.Close()
	}

	if outs.Cols == 0 {
		outs.Cols = terminalWidth()
	}
	return writeSnapshot(out, snap, outs)
}

// pickEndpoint asks the user to choose a candidate, or takes the first one
// when there is no terminal to ask on.
func pickEndpoint(source discovery.Source, pattern string, log logger.Logger) (string, error) {
	if !isTerminal(os.Stdin) || !isTerminal(os.Stdout) {
		return firstCandidate(source, pattern, log)
	}

	ids, err := discoverOnce(source, pattern, log)
	if err != nil {
		return "", err
	}
	if len(ids) == 1 {
		return string(ids[0]), nil
	}

	options := make([]huh.Option[string], len(ids))
	for i, id := range ids {
		options[i] = huh.NewOption(string(id), string(id))
	}

	var choice string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Which endpoint?").
				Options(options...).
				Value(&choice),
		),
	)
	if err := form.Run(); err != nil {
		if stderrors.Is(err, huh.ErrUserAborted) {
			return "", errors.New(errors.ErrDiscovery, "Cancelled", "Pass an endpoint to skip the picker.")
		}
		return "", errors.WrapWithCode(err, errors.ErrDiscovery,
			"Failed to get user input",
			"Pass an endpoint to skip the picker.")
	}
	return choice, nil
}

type attachResult struct {
	h   terrain.Handle
	err error
}

// oneShotOwner hands the attach outcome to fetchOnce and drives the
// optional spinner.
type oneShotOwner struct {
	spinner *ui.Spinner
	result  chan attachResult
}

func (o *oneShotOwner) BackgroundOperationChanged(active bool) {
	if active && o.spinner != nil {
		o.spinner.Start()
	}
}

func (o *oneShotOwner) Attached(h terrain.Handle) {
	if o.spinner != nil {
		o.spinner.Success()
	}
	o.result <- attachResult{h: h}
}

func (o *oneShotOwner) AttachFailed(err error) {
	if o.spinner != nil {
		o.spinner.Fail()
	}
	o.result <- attachResult{err: err}
}

// fetchOnce attaches to id, fetches one snapshot and closes the handle.
func fetchOnce(ctx context.Context, connector attach.Connector, id terrain.EndpointID, spinner *ui.Spinner, log logger.Logger) (*terrain.Snapshot, error) {
	owner := &oneShotOwner{spinner: spinner, result: make(chan attachResult, 1)}
	mgr := attach.NewManager(connector, owner, attach.WithLogger(log))

	mgr.Attach(ctx, id)
	res := <-owner.result
	mgr.Wait()
	if res.err != nil {
		return nil, res.err
	}
	defer func() {
		_ = res.h.Close()
		mgr.Detached()
	}()

	snap, err := res.h.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, errors.New(errors.ErrFetch,
			fmt.Sprintf("%s returned no data", id),
			"The inspector printed nothing. The grid may not be initialized yet; try again.")
	}
	return snap, nil
}

// snapshotYAML is the --yaml summary.
type snapshotYAML struct {
	Endpoint  string    `yaml:"endpoint"`
	FetchedAt time.Time `yaml:"fetched_at"`
	Size      int       `yaml:"size"`
	Min       *float32  `yaml:"min,omitempty"`
	Max       *float32  `yaml:"max,omitempty"`
	Finite    int       `yaml:"finite"`
	NoData    int       `yaml:"no_data"`
	Digest    string    `yaml:"digest"`
}

func summarizeYAML(s *terrain.Snapshot) snapshotYAML {
	st := s.Stats()
	out := snapshotYAML{
		Endpoint:  string(s.Endpoint),
		FetchedAt: s.FetchedAt,
		Size:      s.Size,
		Finite:    st.Finite,
		NoData:    st.NoData,
		Digest:    fmt.Sprintf("%016x", s.Digest()),
	}
	if st.Finite > 0 {
		out.Min, out.Max = &st.Min, &st.Max
	}
	return out
}

func writeSnapshot(out io.Writer, s *terrain.Snapshot, outs snapshotOutputs) error {
	if outs.PNG != "" {
		if err := writePNGFile(outs.PNG, s, outs); err != nil {
			return err
		}
		fmt.Fprintln(out, ui.Success("Wrote "+outs.PNG))
	}

	if outs.Save != "" {
		data, err := terrain.Codec{Format: terrain.FormatCBOR}.Encode(s)
		if err != nil {
			return err
		}
		if err := os.WriteFile(outs.Save, data, 0644); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Couldn't write "+outs.Save,
				"Check the directory exists and is writable.")
		}
		fmt.Fprintln(out, ui.Success("Saved "+outs.Save))
	}

	if outs.YAML {
		data, err := yaml.Marshal(summarizeYAML(s))
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrInternal, "Couldn't encode the summary", "")
		}
		_, _ = out.Write(data)
	}

	if !outs.any() {
		if grid := heightmap.Terminal(s, max(outs.Cols, 1)); grid != "" {
			fmt.Fprintln(out, grid)
		}
		fmt.Fprintln(out, monitor.FormatLine(s, false))
	}
	return nil
}

func writePNGFile(path string, s *terrain.Snapshot, outs snapshotOutputs) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't create "+path,
			"Check the directory exists and is writable.")
	}

	opts := heightmap.Options{Scale: outs.Scale}
	if outs.Checker {
		opts.Checker = heightmap.DefaultTile
	}
	if err := heightmap.WritePNG(f, s, opts); err != nil {
		f.Close()
		return errors.WrapWithCode(err, errors.ErrInternal, "Couldn't encode the PNG", "")
	}
	if err := f.Close(); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, "Couldn't write "+path, "")
	}
	return nil
}

func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 64
}
