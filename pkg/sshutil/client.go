package sshutil

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/rileyhilliard/hfwatch/internal/errors"
	"github.com/rileyhilliard/hfwatch/internal/logger"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Client wraps an SSH connection with additional metadata.
type Client struct {
	*ssh.Client
	Host    string // The original host/alias used to connect
	Address string // The resolved address (host:port)
}

// matchWarningOnce ensures the SSH config Match directive warning is only shown once per process.
var matchWarningOnce sync.Once

// DialOptions controls how Dial connects and authenticates.
type DialOptions struct {
	// Timeout bounds the TCP connect and the SSH handshake.
	Timeout time.Duration

	// StrictHostKeyChecking verifies host keys against known_hosts.
	// When false, host key verification is skipped (insecure, for lab setups).
	StrictHostKeyChecking bool

	// SSHConfigPath overrides ~/.ssh/config.
	SSHConfigPath string

	// KnownHostsPath overrides ~/.ssh/known_hosts.
	KnownHostsPath string

	// Logger receives warnings about the SSH config. Defaults to logger.Default().
	Logger logger.Logger
}

// DefaultDialOptions returns strict host key checking with a 10s timeout.
func DefaultDialOptions() DialOptions {
	return DialOptions{
		Timeout:               10 * time.Second,
		StrictHostKeyChecking: true,
	}
}

func (o DialOptions) sshConfigPath() string {
	if o.SSHConfigPath != "" {
		return o.SSHConfigPath
	}
	return filepath.Join(homeDir(), ".ssh", "config")
}

func (o DialOptions) knownHostsPath() string {
	if o.KnownHostsPath != "" {
		return o.KnownHostsPath
	}
	return filepath.Join(homeDir(), ".ssh", "known_hosts")
}

// Dial establishes an SSH connection to the specified host.
// The host can be:
//   - An SSH config alias (e.g., "myserver")
//   - A hostname (e.g., "192.168.1.100")
//   - A user@hostname (e.g., "user@192.168.1.100")
//   - A hostname:port (e.g., "192.168.1.100:2222")
//
// Connection settings are resolved from ~/.ssh/config when available.
func Dial(host string, opts DialOptions) (*Client, error) {
	return DialContext(context.Background(), host, opts)
}

// DialContext is Dial with a context governing the TCP connect and handshake.
func DialContext(ctx context.Context, host string, opts DialOptions) (*Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultDialOptions().Timeout
	}
	log := logger.OrDefault(opts.Logger)

	settings := resolveSSHSettings(host, opts.sshConfigPath(), log)

	config, err := buildSSHConfig(settings, opts)
	if err != nil {
		// If buildSSHConfig already returned a structured error, pass it through
		var hfErr *errors.Error
		if stderrors.As(err, &hfErr) {
			return nil, err
		}
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Couldn't set up SSH for '%s'", host),
			"Check your keys are loaded: ssh-add -l")
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	address := settings.address()
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Can't reach '%s' at %s", host, address),
			suggestionForDialError(err))
	}

	// The handshake has no context of its own; a deadline on the conn
	// bounds it and closing the conn aborts it on cancellation.
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, config)
	if !stop() || err != nil {
		conn.Close()
		if err == nil {
			err = ctx.Err()
		}

		var hostKeyErr *HostKeyMismatchError
		if stderrors.As(err, &hostKeyErr) {
			return nil, errors.New(errors.ErrSSH,
				hostKeyErr.Error(),
				hostKeyErr.Suggestion())
		}

		suggestion := suggestionForHandshakeError(err, settings.encryptedKeys)

		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("SSH handshake with '%s' didn't go through", host),
			suggestion)
	}
	_ = conn.SetDeadline(time.Time{})

	client := ssh.NewClient(sshConn, chans, reqs)
	return &Client{
		Client:  client,
		Host:    host,
		Address: address,
	}, nil
}

// Close closes the SSH connection.
func (c *Client) Close() error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Close()
}

// GetHost returns the original host/alias used to connect.
func (c *Client) GetHost() string {
	return c.Host
}

// GetAddress returns the resolved host:port address.
func (c *Client) GetAddress() string {
	return c.Address
}

// newSSHSession creates a new *ssh.Session for internal use by exec methods.
func (c *Client) newSSHSession() (*ssh.Session, error) {
	return c.Client.NewSession()
}

// sshSettings is where and as whom to connect, after applying the SSH
// config.
type sshSettings struct {
	hostname      string
	port          string
	user          string
	identityFile  string
	encryptedKeys []string // passphrase-protected keys skipped during auth
}

func (s *sshSettings) address() string {
	return net.JoinHostPort(s.hostname, s.port)
}

// splitDestination splits [user@]host[:port]. A suffix that isn't all
// digits stays part of the host.
func splitDestination(dest string) (user, host, port string) {
	host = dest
	if at := strings.Index(host, "@"); at != -1 {
		user, host = host[:at], host[at+1:]
	}
	if colon := strings.LastIndex(host, ":"); colon != -1 && isDigits(host[colon+1:]) {
		host, port = host[:colon], host[colon+1:]
	}
	return user, host, port
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// resolveSSHSettings works out the connection settings for dest. Values
// in dest win over the SSH config, which wins over HFWATCH_SSH_USER and
// the local user name.
func resolveSSHSettings(dest, sshConfigPath string, log logger.Logger) *sshSettings {
	user, host, port := splitDestination(dest)

	s := &sshSettings{hostname: host, port: "22", user: currentUser()}
	if env := os.Getenv("HFWATCH_SSH_USER"); env != "" {
		s.user = env
	}

	cfg, matchLine, err := loadSSHConfig(sshConfigPath)
	if err == nil {
		entry, found := lookupHost(cfg, host)
		if entry.Hostname != "" {
			s.hostname = entry.Hostname
		}
		if entry.Port != "" {
			s.port = entry.Port
		}
		if entry.User != "" {
			s.user = entry.User
		}
		s.identityFile = entry.IdentityFile

		if matchLine > 0 && !found {
			matchWarningOnce.Do(func() {
				log.Warn("Host '%s' not found in %s. Lines from the Match block at line %d on are ignored; "+
					"move the Host entry above it if that's where it lives.", host, sshConfigPath, matchLine)
			})
		}
	}

	if user != "" {
		s.user = user
	}
	if port != "" {
		s.port = port
	}
	return s
}

// defaultKeyFiles are tried after the agent, HFWATCH_SSH_KEY and any
// IdentityFile.
func defaultKeyFiles() []string {
	dir := filepath.Join(homeDir(), ".ssh")
	return []string{
		filepath.Join(dir, "id_ed25519"),
		filepath.Join(dir, "id_ecdsa"),
		filepath.Join(dir, "id_rsa"),
	}
}

// authMethods collects every usable auth method, recording encrypted keys
// in settings so failures can point at them.
func authMethods(settings *sshSettings) []ssh.AuthMethod {
	var methods []ssh.AuthMethod
	if a := sshAgentAuth(); a != nil {
		methods = append(methods, a)
	}

	candidates := []string{}
	if env := os.Getenv("HFWATCH_SSH_KEY"); env != "" {
		candidates = append(candidates, expandPath(env))
	}
	if settings.identityFile != "" {
		candidates = append(candidates, settings.identityFile)
	}
	candidates = append(candidates, defaultKeyFiles()...)

	tried := make(map[string]bool)
	for _, path := range candidates {
		if tried[path] {
			continue
		}
		tried[path] = true

		m, err := keyFileAuth(path)
		var encErr *EncryptedKeyError
		switch {
		case err == nil:
			methods = append(methods, m)
		case stderrors.As(err, &encErr):
			settings.encryptedKeys = append(settings.encryptedKeys, path)
		}
	}
	return methods
}

// buildSSHConfig assembles auth and host key checking for one dial.
func buildSSHConfig(settings *sshSettings, opts DialOptions) (*ssh.ClientConfig, error) {
	methods := authMethods(settings)
	if len(methods) == 0 {
		if len(settings.encryptedKeys) > 0 {
			return nil, errors.New(errors.ErrSSH,
				"Found SSH key(s) but they're encrypted: "+strings.Join(settings.encryptedKeys, ", "),
				addKeysHint("Add your key(s) to the agent:", settings.encryptedKeys))
		}
		return nil, errors.New(errors.ErrSSH,
			"No SSH auth methods available",
			"Load a key into the agent (ssh-add), or point HFWATCH_SSH_KEY at one")
	}

	hostKeys := ssh.InsecureIgnoreHostKey() //nolint:gosec // opted out via connect.strict_host_key_checking
	if opts.StrictHostKeyChecking {
		cb, err := createHostKeyCallback(opts.knownHostsPath())
		if err != nil {
			return nil, fmt.Errorf("failed to load known_hosts: %w", err)
		}
		hostKeys = cb
	}

	return &ssh.ClientConfig{
		User:            settings.user,
		Auth:            methods,
		HostKeyCallback: hostKeys,
		Timeout:         opts.Timeout,
	}, nil
}

// addKeysHint lists the ssh-add commands for keys, under lead.
func addKeysHint(lead string, keys []string) string {
	addCmd := "ssh-add"
	if runtime.GOOS == "darwin" {
		addCmd = "ssh-add --apple-use-keychain"
	}

	var sb strings.Builder
	sb.WriteString(lead + "\n")
	for _, key := range keys {
		fmt.Fprintf(&sb, "  %s %s\n", addCmd, key)
	}
	sb.WriteString("\nNot sure which key? Check with: ssh -v <host>")
	return sb.String()
}

// The agent connection is opened once and shared by every dial.
var (
	agentConn     net.Conn
	agentClient   agent.ExtendedAgent
	agentConnOnce sync.Once
)

// sshAgentAuth returns agent auth, or nil without an agent or when it holds
// no keys. An empty agent listed first makes servers reject the login
// before the key files are tried.
func sshAgentAuth() ssh.AuthMethod {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil
	}

	agentConnOnce.Do(func() {
		if conn, err := net.Dial("unix", socket); err == nil {
			agentConn = conn
			agentClient = agent.NewClient(conn)
		}
	})
	if agentClient == nil {
		return nil
	}

	if signers, err := agentClient.Signers(); err != nil || len(signers) == 0 {
		return nil
	}
	return ssh.PublicKeysCallback(agentClient.Signers)
}

// CloseAgent closes the shared agent connection, if any.
func CloseAgent() {
	if agentConn != nil {
		agentConn.Close()
	}
}

// keyFileAuth loads a private key. Keys needing a passphrase give an
// *EncryptedKeyError; hfwatch never prompts for one.
func keyFileAuth(path string) (ssh.AuthMethod, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if stderrors.As(err, &missing) || isEncryptedPEM(data) {
			return nil, &EncryptedKeyError{Path: path}
		}
		return nil, err
	}
	return ssh.PublicKeys(signer), nil
}

func isEncryptedPEM(data []byte) bool {
	return bytes.Contains(data, []byte("ENCRYPTED"))
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return os.Getenv("HOME")
}

func currentUser() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "root"
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

func suggestionForDialError(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"):
		return "Is SSH running on that endpoint? Try: ssh <host>"
	case strings.Contains(msg, "no route to host"), strings.Contains(msg, "network is unreachable"):
		return "Can't route to the host. Check your network connection."
	case strings.Contains(msg, "timeout"):
		return "Connection timed out. The endpoint may be down or firewalled."
	}
	return "Make sure the host is reachable: ping <host>"
}

func suggestionForHandshakeError(err error, encryptedKeys []string) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "unable to authenticate"), strings.Contains(msg, "no supported methods"):
		if len(encryptedKeys) > 0 {
			return addKeysHint("Your key(s) are encrypted. Add them to the agent:", encryptedKeys)
		}
		return "Auth failed. Check your keys are loaded: ssh-add -l"
	case strings.Contains(msg, "host key"):
		return "Host key issue. Try connecting manually first: ssh <host>"
	}
	return "Something went wrong during SSH setup. Try: ssh <host>"
}

// EncryptedKeyError is returned for a key that needs a passphrase.
type EncryptedKeyError struct {
	Path string
}

func (e *EncryptedKeyError) Error() string {
	return fmt.Sprintf("SSH key at %s is encrypted (passphrase protected)", e.Path)
}

// HostKeyMismatchError is a known_hosts verification failure for a host
// whose key is on file under a different value or type.
type HostKeyMismatchError struct {
	Hostname     string
	ReceivedType string
	KnownHosts   string
	Want         []knownhosts.KnownKey
}

func (e *HostKeyMismatchError) Error() string {
	return fmt.Sprintf("host key mismatch for %s: server sent %s key", e.Hostname, e.ReceivedType)
}

// Suggestion explains how to refresh the known_hosts entry.
func (e *HostKeyMismatchError) Suggestion() string {
	host := e.Hostname
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	known := "unknown"
	if len(e.Want) > 0 {
		types := make([]string, len(e.Want))
		for i, k := range e.Want {
			types[i] = k.Key.Type()
		}
		known = strings.Join(types, ", ")
	}

	return fmt.Sprintf("The endpoint's host key doesn't match known_hosts (on file: %s, received: %s).\n"+
		"  If the endpoint was reinstalled, drop the old entry:\n"+
		"    ssh-keygen -R %s\n"+
		"  and record the new keys:\n"+
		"    ssh-keyscan -t rsa,ecdsa,ed25519 %s >> %s",
		known, e.ReceivedType, host, host, e.KnownHosts)
}

// createHostKeyCallback verifies against knownHostsPath, creating an empty
// file first so a fresh machine doesn't fail outright. Mismatches come
// back as *HostKeyMismatchError.
func createHostKeyCallback(knownHostsPath string) (ssh.HostKeyCallback, error) {
	if _, err := os.Stat(knownHostsPath); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(knownHostsPath), 0700); err != nil {
			return nil, fmt.Errorf("failed to create .ssh directory: %w", err)
		}
		if err := os.WriteFile(knownHostsPath, nil, 0600); err != nil {
			return nil, fmt.Errorf("failed to create known_hosts: %w", err)
		}
	}

	verify, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, err
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := verify(hostname, remote, key)
		var keyErr *knownhosts.KeyError
		if stderrors.As(err, &keyErr) && len(keyErr.Want) > 0 {
			return &HostKeyMismatchError{
				Hostname:     hostname,
				ReceivedType: key.Type(),
				KnownHosts:   knownHostsPath,
				Want:         keyErr.Want,
			}
		}
		return err
	}, nil
}
