package remote

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rileyhilliard/hfwatch/internal/errors"
	"github.com/rileyhilliard/hfwatch/internal/terrain"
	"github.com/rileyhilliard/hfwatch/pkg/sshutil"
)

// maxStderr bounds how much remote stderr ends up in an error message.
const maxStderr = 200

// Handle is a live SSH session to one endpoint.
type Handle struct {
	id     terrain.EndpointID
	client sshutil.SSHClient
	cmd    string
	codec  terrain.Codec

	mu     sync.Mutex
	closed bool
}

var _ terrain.Handle = (*Handle)(nil)

// Endpoint implements terrain.Handle.
func (h *Handle) Endpoint() terrain.EndpointID { return h.id }

// Fetch runs the inspector once and decodes its output. Empty output is
// an empty snapshot, returned as (nil, nil).
func (h *Handle) Fetch(ctx context.Context) (*terrain.Snapshot, error) {
	if h.isClosed() {
		return nil, errors.New(errors.ErrFetch,
			fmt.Sprintf("Connection to %s is closed", h.id),
			"Attach again to resume monitoring.")
	}

	stdout, stderr, code, err := h.client.ExecContext(ctx, h.cmd)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrFetch,
			fmt.Sprintf("Lost connection to %s", h.id),
			"Attach again to resume monitoring.")
	}
	if code != 0 {
		msg := fmt.Sprintf("Inspector on %s exited with status %d", h.id, code)
		if s := trimStderr(stderr); s != "" {
			msg += ": " + s
		}
		return nil, errors.New(errors.ErrFetch, msg,
			"Run the inspector command on the endpoint by hand to see what's wrong.")
	}
	if len(bytes.TrimSpace(stdout)) == 0 {
		return nil, nil
	}

	snap, err := h.codec.Decode(stdout)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrFetch,
			fmt.Sprintf("Couldn't read snapshot from %s", h.id),
			fmt.Sprintf("Check inspector.format and inspector.compression match what the endpoint sends (expecting %s).", h.codec))
	}
	snap.Endpoint = h.id
	snap.FetchedAt = time.Now()
	return snap, nil
}

// Close closes the SSH client. Calling it again does nothing.
func (h *Handle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	return h.client.Close()
}

func (h *Handle) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func trimStderr(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxStderr {
		s = s[:maxStderr] + "..."
	}
	return s
}
