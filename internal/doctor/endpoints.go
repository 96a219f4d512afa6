package doctor

import (
	"context"
	"fmt"
	"time"

	"github.com/rileyhilliard/hfwatch/internal/attach"
	"github.com/rileyhilliard/hfwatch/internal/discovery"
	"github.com/rileyhilliard/hfwatch/internal/errors"
	"github.com/rileyhilliard/hfwatch/internal/terrain"
	"github.com/rileyhilliard/hfwatch/internal/util"
)

// DefaultEndpointTimeout bounds one endpoint check: connect, probe and a
// single fetch.
const DefaultEndpointTimeout = 15 * time.Second

// DiscoveryCheck runs discovery once. Candidates found are kept for the
// endpoint checks.
type DiscoveryCheck struct {
	Source  discovery.Source
	Pattern string

	Candidates []terrain.EndpointID // Populated after Run()
}

func (c *DiscoveryCheck) Name() string     { return "discovery" }
func (c *DiscoveryCheck) Category() string { return CategoryDiscovery }

func (c *DiscoveryCheck) Run(context.Context) CheckResult {
	ids, err := c.Source.Query(c.Pattern)
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    errors.Summary(err),
			Suggestion: suggestionOf(err, "Check discovery.pattern and discovery.ssh_config"),
		}
	}
	c.Candidates = ids

	if len(ids) == 0 {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    fmt.Sprintf("No endpoints match %q", c.Pattern),
			Suggestion: "Add one with 'hfwatch endpoints add <destination>' or a Host entry in your SSH config",
		}
	}
	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("%s match %q", util.Count(len(ids), "endpoint", "endpoints"), c.Pattern),
	}
}

// EndpointCheck attaches to one endpoint and fetches a single snapshot.
type EndpointCheck struct {
	ID        terrain.EndpointID
	Connector attach.Connector
	Timeout   time.Duration

	Snapshot *terrain.Snapshot // Populated after a successful Run()
}

func (c *EndpointCheck) Name() string     { return "endpoint_" + string(c.ID) }
func (c *EndpointCheck) Category() string { return CategoryEndpoints }

func (c *EndpointCheck) Run(ctx context.Context) CheckResult {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultEndpointTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	h, err := c.Connector.Connect(ctx, c.ID)
	if err != nil {
		return c.failed(err, "Check the endpoint is reachable: ssh "+string(c.ID))
	}
	defer h.Close()

	snap, err := h.Fetch(ctx)
	if err != nil {
		return c.failed(err, "Run the inspector command on the endpoint by hand to see what's wrong")
	}
	if snap.Empty() {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    fmt.Sprintf("%s: attached, but the inspector returned no data", c.ID),
			Suggestion: "The grid may not be initialized yet",
		}
	}
	c.Snapshot = snap

	st := snap.Stats()
	msg := fmt.Sprintf("%s: %dx%d grid", c.ID, snap.Size, snap.Size)
	if st.NoData > 0 {
		msg += fmt.Sprintf(", %s", util.Count(st.NoData, "no-data cell", "no-data cells"))
	}
	return CheckResult{Name: c.Name(), Status: StatusPass, Message: msg}
}

func (c *EndpointCheck) failed(err error, fallback string) CheckResult {
	return CheckResult{
		Name:       c.Name(),
		Status:     StatusFail,
		Message:    fmt.Sprintf("%s: %s", c.ID, errors.Summary(err)),
		Suggestion: suggestionOf(err, fallback),
	}
}

// NewEndpointChecks creates one check per endpoint.
func NewEndpointChecks(ids []terrain.EndpointID, connector attach.Connector, timeout time.Duration) []Check {
	checks := make([]Check, 0, len(ids))
	for _, id := range ids {
		checks = append(checks, &EndpointCheck{ID: id, Connector: connector, Timeout: timeout})
	}
	return checks
}
