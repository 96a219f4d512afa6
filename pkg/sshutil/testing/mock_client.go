// Package testing provides an in-memory SSHClient for tests that exercise
// code paths normally requiring a live SSH connection.
package testing

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"

	"github.com/rileyhilliard/hfwatch/pkg/sshutil"
)

var _ sshutil.SSHClient = (*MockClient)(nil)

// CommandResponse defines a canned response for a specific command pattern.
type CommandResponse struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Error    error

	// Block, when set, holds the command until it is closed or the
	// caller's context is done.
	Block <-chan struct{}
}

// MockClient simulates an SSH connection for testing.
// Commands are answered from canned responses (exact match first, then
// regex), then from a small set of built-in shell commands.
type MockClient struct {
	mu        sync.Mutex
	host      string
	address   string
	closed    bool
	commands  map[string]CommandResponse   // pattern -> response
	sequences map[string][]CommandResponse // pattern -> responses, consumed in order
	binaries  map[string]string            // name -> path, for command -v / which
	calls     []string
}

// NewMockClient creates a new mock SSH client.
func NewMockClient(host string) *MockClient {
	return &MockClient{
		host:      host,
		address:   host + ":22",
		commands:  make(map[string]CommandResponse),
		sequences: make(map[string][]CommandResponse),
		binaries: map[string]string{
			"sh":  "/bin/sh",
			"cat": "/bin/cat",
		},
	}
}

// Exec runs a command against the canned responses.
func (m *MockClient) Exec(cmd string) (stdout, stderr []byte, exitCode int, err error) {
	return m.ExecContext(context.Background(), cmd)
}

// ExecContext is Exec that honours ctx while a response is blocked.
func (m *MockClient) ExecContext(ctx context.Context, cmd string) (stdout, stderr []byte, exitCode int, err error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, nil, -1, errors.New("connection closed")
	}
	m.calls = append(m.calls, cmd)
	resp, ok := m.lookup(cmd)
	m.mu.Unlock()

	if !ok {
		return m.parseAndExecute(cmd)
	}

	if resp.Block != nil {
		select {
		case <-resp.Block:
		case <-ctx.Done():
			return nil, nil, -1, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, -1, err
	}

	return resp.Stdout, resp.Stderr, resp.ExitCode, resp.Error
}

// lookup finds the response for cmd. Sequences win over single responses;
// exact matches win over regex matches. Caller holds m.mu.
func (m *MockClient) lookup(cmd string) (CommandResponse, bool) {
	if resp, ok := m.pop(cmd); ok {
		return resp, true
	}
	if resp, ok := m.commands[cmd]; ok {
		return resp, true
	}
	for pattern := range m.sequences {
		if matched, _ := regexp.MatchString(pattern, cmd); matched {
			return m.pop(pattern)
		}
	}
	for pattern, resp := range m.commands {
		if matched, _ := regexp.MatchString(pattern, cmd); matched {
			return resp, true
		}
	}
	return CommandResponse{}, false
}

// pop takes the next response of a sequence. The last one repeats.
func (m *MockClient) pop(pattern string) (CommandResponse, bool) {
	seq, ok := m.sequences[pattern]
	if !ok || len(seq) == 0 {
		return CommandResponse{}, false
	}
	resp := seq[0]
	if len(seq) > 1 {
		m.sequences[pattern] = seq[1:]
	}
	return resp, true
}

// Close marks the connection as closed.
func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (m *MockClient) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// GetHost returns the host name.
func (m *MockClient) GetHost() string {
	return m.host
}

// GetAddress returns the host:port address.
func (m *MockClient) GetAddress() string {
	return m.address
}

// SetCommandResponse registers a canned response for a command pattern.
// The pattern can be an exact string or a regex pattern.
func (m *MockClient) SetCommandResponse(pattern string, resp CommandResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands[pattern] = resp
}

// SetCommandSequence registers responses returned one per call, in order.
// Once exhausted, the last response repeats.
func (m *MockClient) SetCommandSequence(pattern string, resps ...CommandResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequences[pattern] = append([]CommandResponse(nil), resps...)
}

// AddBinary makes name resolvable through command -v and which.
func (m *MockClient) AddBinary(name, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.binaries[name] = path
}

// Calls returns every command executed so far.
func (m *MockClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// parseAndExecute handles the shell commands hfwatch issues outside the inspector.
func (m *MockClient) parseAndExecute(cmd string) (stdout, stderr []byte, exitCode int, err error) {
	// Strip common redirects
	cmd = strings.TrimSuffix(cmd, " 2>/dev/null")
	cmd = strings.TrimSuffix(cmd, " 2>&1")
	cmd = strings.TrimSpace(cmd)

	switch {
	case strings.HasPrefix(cmd, "command -v "):
		return m.handleLookup(strings.TrimPrefix(cmd, "command -v "))
	case strings.HasPrefix(cmd, "which "):
		return m.handleLookup(strings.TrimPrefix(cmd, "which "))
	case strings.HasPrefix(cmd, "echo "):
		return []byte(extractArg(strings.TrimPrefix(cmd, "echo ")) + "\n"), nil, 0, nil
	case strings.HasPrefix(cmd, "uname"):
		return []byte("Linux\n"), nil, 0, nil
	}

	return nil, []byte("sh: " + firstField(cmd) + ": command not found\n"), 127, nil
}

// handleLookup answers command -v / which from the binaries table.
func (m *MockClient) handleLookup(arg string) ([]byte, []byte, int, error) {
	name := extractArg(arg)

	m.mu.Lock()
	path, ok := m.binaries[name]
	m.mu.Unlock()

	if !ok {
		return nil, nil, 1, nil
	}
	return []byte(path + "\n"), nil, 0, nil
}

// extractArg extracts the first argument, unquoting single or double quotes.
func extractArg(arg string) string {
	arg = strings.TrimSpace(arg)

	if strings.HasPrefix(arg, "\"") {
		if end := strings.Index(arg[1:], "\""); end != -1 {
			return arg[1 : end+1]
		}
	}
	if strings.HasPrefix(arg, "'") {
		if end := strings.Index(arg[1:], "'"); end != -1 {
			return arg[1 : end+1]
		}
	}

	return firstField(arg)
}

func firstField(s string) string {
	parts := strings.Fields(s)
	if len(parts) > 0 {
		return parts[0]
	}
	return ""
}
