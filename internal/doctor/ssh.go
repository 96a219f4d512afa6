package doctor

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/rileyhilliard/hfwatch/internal/config"
	"github.com/rileyhilliard/hfwatch/internal/util"
	"github.com/rileyhilliard/hfwatch/pkg/sshutil"
	"golang.org/x/crypto/ssh/agent"
)

// keyNames are the default identity files, in order of preference.
var keyNames = []string{"id_ed25519", "id_ecdsa", "id_rsa"}

// sshDir returns dir, or ~/.ssh when dir is empty.
func sshDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".ssh"), nil
}

// SSHKeyCheck verifies an SSH key exists.
type SSHKeyCheck struct {
	Dir string // Defaults to ~/.ssh
}

func (c *SSHKeyCheck) Name() string     { return "ssh_key" }
func (c *SSHKeyCheck) Category() string { return CategorySSH }

func (c *SSHKeyCheck) Run(context.Context) CheckResult {
	dir, err := sshDir(c.Dir)
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    "Cannot determine home directory",
			Suggestion: "Check HOME environment variable",
		}
	}

	if key := os.Getenv("HFWATCH_SSH_KEY"); key != "" {
		if _, err := os.Stat(config.ExpandTilde(key)); err == nil {
			return CheckResult{Name: c.Name(), Status: StatusPass, Message: "SSH key from HFWATCH_SSH_KEY: " + key}
		}
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    "HFWATCH_SSH_KEY points at a missing file: " + key,
			Suggestion: "Fix the path or unset HFWATCH_SSH_KEY",
		}
	}

	for _, name := range keyNames {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return CheckResult{
				Name:    c.Name(),
				Status:  StatusPass,
				Message: fmt.Sprintf("SSH key found: %s", filepath.Join(dir, name)),
			}
		}
	}

	return CheckResult{
		Name:       c.Name(),
		Status:     StatusWarn,
		Message:    "No default SSH key found",
		Suggestion: "Generate a key with: ssh-keygen -t ed25519\nOr rely on IdentityFile entries in your SSH config",
	}
}

// SSHAgentCheck verifies the SSH agent is reachable and has keys.
type SSHAgentCheck struct{}

func (c *SSHAgentCheck) Name() string     { return "ssh_agent" }
func (c *SSHAgentCheck) Category() string { return CategorySSH }

func (c *SSHAgentCheck) Run(context.Context) CheckResult {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    "SSH agent not running",
			Suggestion: "Key files are used directly. Start one with: eval $(ssh-agent) && ssh-add",
		}
	}

	conn, err := net.Dial("unix", socket)
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    "SSH agent socket not accessible",
			Suggestion: "Fix: eval $(ssh-agent) && ssh-add",
		}
	}
	defer conn.Close()

	keys, err := agent.NewClient(conn).List()
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    "Cannot query SSH agent",
			Suggestion: "Check SSH agent: ssh-add -l",
		}
	}
	if len(keys) == 0 {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    "SSH agent running but no keys loaded",
			Suggestion: "Add a key with: ssh-add",
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("SSH agent running with %s loaded", util.Count(len(keys), "key", "keys")),
	}
}

// SSHKeyPermissionsCheck verifies SSH private keys aren't readable by others.
type SSHKeyPermissionsCheck struct {
	Dir string // Defaults to ~/.ssh
}

func (c *SSHKeyPermissionsCheck) Name() string     { return "ssh_key_permissions" }
func (c *SSHKeyPermissionsCheck) Category() string { return CategorySSH }

func (c *SSHKeyPermissionsCheck) Run(context.Context) CheckResult {
	dir, err := sshDir(c.Dir)
	if err != nil {
		return CheckResult{Name: c.Name(), Status: StatusPass, Message: "No private keys to check"}
	}

	var badPerms []string
	var foundKey bool
	for _, name := range keyNames {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		foundKey = true
		if info.Mode().Perm()&0077 != 0 {
			badPerms = append(badPerms, name)
		}
	}

	if !foundKey {
		return CheckResult{Name: c.Name(), Status: StatusPass, Message: "No private keys to check"}
	}
	if len(badPerms) > 0 {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    fmt.Sprintf("Insecure permissions on: %v", badPerms),
			Suggestion: "Fix: chmod 600 ~/.ssh/<keyfile>",
		}
	}
	return CheckResult{Name: c.Name(), Status: StatusPass, Message: "SSH key permissions OK"}
}

// SSHConfigCheck parses the SSH config discovery reads Host aliases from.
type SSHConfigCheck struct {
	Path string // discovery.ssh_config
}

func (c *SSHConfigCheck) Name() string     { return "ssh_config" }
func (c *SSHConfigCheck) Category() string { return CategorySSH }

func (c *SSHConfigCheck) Run(context.Context) CheckResult {
	if c.Path == "" {
		return CheckResult{Name: c.Name(), Status: StatusPass, Message: "SSH config discovery disabled"}
	}

	path := config.ExpandTilde(c.Path)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusPass,
			Message: fmt.Sprintf("%s does not exist, only discovery.endpoints are offered", c.Path),
		}
	}

	hosts, err := sshutil.ParseSSHConfigFile(path)
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    fmt.Sprintf("Cannot read %s: %v", c.Path, err),
			Suggestion: "Check the file's syntax and permissions, or change discovery.ssh_config",
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("%s: %s", c.Path, util.Count(len(hosts), "Host alias", "Host aliases")),
	}
}

// NewSSHChecks creates the local SSH checks.
func NewSSHChecks(sshConfigPath string) []Check {
	return []Check{
		&SSHKeyCheck{},
		&SSHAgentCheck{},
		&SSHKeyPermissionsCheck{},
		&SSHConfigCheck{Path: sshConfigPath},
	}
}
