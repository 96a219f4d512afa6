// Package discovery finds the endpoints hfwatch can attach to and keeps
// the candidate list fresh on a timer.
package discovery

import (
	stderrors "errors"
	"fmt"
	"path"
	"sort"

	"github.com/rileyhilliard/hfwatch/internal/errors"
	"github.com/rileyhilliard/hfwatch/internal/terrain"
	"github.com/rileyhilliard/hfwatch/pkg/sshutil"
)

// Source answers "which endpoints match this pattern right now".
type Source interface {
	Query(pattern string) ([]terrain.EndpointID, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(pattern string) ([]terrain.EndpointID, error)

// Query calls f.
func (f SourceFunc) Query(pattern string) ([]terrain.EndpointID, error) { return f(pattern) }

// ValidatePattern reports whether pattern is usable with path.Match.
// A malformed pattern yields a DISCOVERY error wrapping path.ErrBadPattern.
func ValidatePattern(pattern string) error {
	if _, err := path.Match(pattern, ""); err != nil {
		return errors.WrapWithCode(err, errors.ErrDiscovery,
			fmt.Sprintf("Invalid discovery pattern %q", pattern),
			"Patterns use shell glob syntax: * ? [a-z]. Check for an unclosed '['.")
	}
	return nil
}

// IsBadPattern reports whether err came from a malformed pattern.
func IsBadPattern(err error) bool {
	return stderrors.Is(err, path.ErrBadPattern)
}

// Filter returns the names matching pattern, deduplicated and sorted.
func Filter(pattern string, names []string) ([]terrain.EndpointID, error) {
	if err := ValidatePattern(pattern); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(names))
	out := make([]terrain.EndpointID, 0, len(names))
	for _, name := range names {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		if ok, _ := path.Match(pattern, name); ok {
			out = append(out, terrain.EndpointID(name))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// SSHSource lists endpoints from config and the concrete Host aliases of
// an OpenSSH client config file.
type SSHSource struct {
	// Endpoints are listed in hfwatch config and always offered.
	Endpoints []string

	// SSHConfigPath is the ssh_config file to read. Empty skips it.
	SSHConfigPath string
}

// Query implements Source.
func (s *SSHSource) Query(pattern string) ([]terrain.EndpointID, error) {
	if err := ValidatePattern(pattern); err != nil {
		return nil, err
	}

	names := append([]string(nil), s.Endpoints...)
	if s.SSHConfigPath != "" {
		hosts, err := sshutil.ParseSSHConfigFile(s.SSHConfigPath)
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrDiscovery,
				fmt.Sprintf("Couldn't read SSH config %s", s.SSHConfigPath),
				"Check the file's permissions and syntax, or point discovery.ssh_config elsewhere.")
		}
		names = append(names, sshutil.Aliases(hosts)...)
	}

	return Filter(pattern, names)
}

// StaticSource always returns the same list, filtered by pattern.
type StaticSource []string

// Query implements Source.
func (s StaticSource) Query(pattern string) ([]terrain.EndpointID, error) {
	return Filter(pattern, s)
}
