// Package remote attaches to endpoints over SSH and reads snapshots by
// running the inspector command on the remote host.
package remote

import (
	"context"
	"fmt"
	"strings"

	"github.com/rileyhilliard/hfwatch/internal/errors"
	"github.com/rileyhilliard/hfwatch/internal/logger"
	"github.com/rileyhilliard/hfwatch/internal/terrain"
	"github.com/rileyhilliard/hfwatch/internal/util"
	"github.com/rileyhilliard/hfwatch/pkg/sshutil"
)

// Dialer opens an SSH client to host.
type Dialer func(ctx context.Context, host string, opts sshutil.DialOptions) (sshutil.SSHClient, error)

// DialSSH is the production Dialer.
func DialSSH(ctx context.Context, host string, opts sshutil.DialOptions) (sshutil.SSHClient, error) {
	c, err := sshutil.DialContext(ctx, host, opts)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Options describes what to run on an endpoint and how to read it.
type Options struct {
	// Command is the inspector command line, e.g. "terrain-inspector dump".
	Command string

	// Object is the inspector object to query. It is passed shell-quoted.
	Object string

	Codec terrain.Codec
	Dial  sshutil.DialOptions
}

// Connector implements attach.Connector over SSH.
type Connector struct {
	opts Options
	dial Dialer
	log  logger.Logger
}

// Option configures a Connector.
type Option func(*Connector)

// WithDialer replaces the SSH dialer, mainly for tests.
func WithDialer(d Dialer) Option {
	return func(c *Connector) { c.dial = d }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Connector) { c.log = l }
}

// NewConnector creates a connector.
func NewConnector(opts Options, options ...Option) *Connector {
	c := &Connector{opts: opts, dial: DialSSH}
	for _, o := range options {
		o(c)
	}
	c.log = logger.OrDefault(c.log)
	if c.opts.Dial.Logger == nil {
		c.opts.Dial.Logger = c.log
	}
	return c
}

// FetchCommand is the remote command line each fetch runs.
func (c *Connector) FetchCommand() string {
	return util.ShellCommand(c.opts.Command, c.opts.Object)
}

// Connect dials id, checks the inspector is installed, and returns a
// handle ready to fetch.
func (c *Connector) Connect(ctx context.Context, id terrain.EndpointID) (terrain.Handle, error) {
	client, err := c.dial(ctx, string(id), c.opts.Dial)
	if err != nil {
		reason := categorize(err)
		return nil, errors.WrapWithCode(err, errors.ErrConnect,
			fmt.Sprintf("Couldn't connect to %s: %s", id, reason),
			suggestionFor(reason))
	}

	if err := c.probe(ctx, client, id); err != nil {
		client.Close()
		return nil, err
	}

	c.log.Debug("remote: %s ready, fetch command %q", id, c.FetchCommand())
	return &Handle{
		id:     id,
		client: client,
		cmd:    c.FetchCommand(),
		codec:  c.opts.Codec,
	}, nil
}

// probe makes sure the inspector binary is on the remote PATH.
func (c *Connector) probe(ctx context.Context, client sshutil.SSHClient, id terrain.EndpointID) error {
	bin := util.CommandName(c.opts.Command)
	if bin == "" {
		return errors.New(errors.ErrConnect,
			"No inspector command configured",
			"Set inspector.command in .hfwatch.yaml.")
	}

	stdout, _, code, err := client.ExecContext(ctx, "command -v "+util.ShellQuote(bin))
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConnect,
			fmt.Sprintf("Couldn't check for %s on %s", bin, id),
			"The connection dropped right after login. Try again.")
	}
	if code != 0 || strings.TrimSpace(string(stdout)) == "" {
		return errors.New(errors.ErrConnect,
			fmt.Sprintf("Couldn't connect to %s: %s (%s not found)", id, FailInspectorMissing, bin),
			suggestionFor(FailInspectorMissing))
	}
	return nil
}

func suggestionFor(r FailReason) string {
	switch r {
	case FailTimeout:
		return "The host didn't answer in time. Check it's up, or raise connect.timeout."
	case FailRefused:
		return "Is SSH running on the endpoint? Check the port."
	case FailUnreachable:
		return "Check the hostname and your network or VPN."
	case FailAuth:
		return "Check your SSH key is loaded (ssh-add -l) and authorized on the endpoint."
	case FailHostKey:
		return "The host key doesn't match known_hosts. Verify the host, then update known_hosts."
	case FailInspectorMissing:
		return "Install the terrain inspector on the endpoint, or point inspector.command at it."
	default:
		return "Try connecting manually: ssh <endpoint>"
	}
}
