package integration

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/rileyhilliard/hfwatch/internal/logger"
	"github.com/rileyhilliard/hfwatch/pkg/sshutil"
)

// RequireSSH skips the test unless a test SSH server is configured.
func RequireSSH(t *testing.T) {
	t.Helper()
	if os.Getenv("HFWATCH_TEST_SSH_HOST") == "" {
		t.Skip("Skipping: HFWATCH_TEST_SSH_HOST not set (SSH test server not available)")
	}
	if os.Getenv("HFWATCH_TEST_SSH_KEY") == "" {
		t.Skip("Skipping: HFWATCH_TEST_SSH_KEY not set (SSH test key not available)")
	}
}

// GetTestSSHHost returns the destination of the test server.
func GetTestSSHHost() string {
	return os.Getenv("HFWATCH_TEST_SSH_HOST")
}

// testDialOptions returns dial options for the test server. Host keys
// aren't checked and the test key is used for auth.
func testDialOptions(t *testing.T) sshutil.DialOptions {
	t.Helper()
	t.Setenv("HFWATCH_SSH_KEY", os.Getenv("HFWATCH_TEST_SSH_KEY"))
	return sshutil.DialOptions{
		Timeout:               10 * time.Second,
		StrictHostKeyChecking: false,
		SSHConfigPath:         os.DevNull,
		Logger:                logger.Noop(),
	}
}

// GetSSHClient establishes a real SSH connection. It is closed when the
// test ends.
func GetSSHClient(t *testing.T) *sshutil.Client {
	t.Helper()
	RequireSSH(t)

	client, err := sshutil.Dial(GetTestSSHHost(), testDialOptions(t))
	if err != nil {
		t.Fatalf("Failed to connect to test SSH server: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// RemoteTempDir creates a scratch directory on the server, removed when the
// test ends.
func RemoteTempDir(t *testing.T, client sshutil.SSHClient) string {
	t.Helper()
	dir := fmt.Sprintf("/tmp/hfwatch-test-%d", time.Now().UnixNano())
	run(t, client, fmt.Sprintf("mkdir -p %q", dir))
	t.Cleanup(func() {
		_, _, _, _ = client.Exec(fmt.Sprintf("rm -rf %q", dir))
	})
	return dir
}

// CreateRemoteFile writes content to path on the server.
func CreateRemoteFile(t *testing.T, client sshutil.SSHClient, path, content string, mode os.FileMode) {
	t.Helper()
	run(t, client, fmt.Sprintf("cat > %q << 'EOF'\n%s\nEOF\nchmod %o %q", path, content, mode, path))
}

// InstallInspector writes a stand-in inspector that prints payloadFile,
// so tests can change what the next fetch returns.
func InstallInspector(t *testing.T, client sshutil.SSHClient, dir string) (inspector, payloadFile string) {
	t.Helper()
	inspector = dir + "/terrain-inspector"
	payloadFile = dir + "/payload.json"
	CreateRemoteFile(t, client, inspector, fmt.Sprintf("#!/bin/sh\n[ \"$1\" = dump ] || exit 64\ncat %q", payloadFile), 0755)
	return inspector, payloadFile
}

func run(t *testing.T, client sshutil.SSHClient, cmd string) {
	t.Helper()
	_, stderr, exitCode, err := client.Exec(cmd)
	if err != nil {
		t.Fatalf("remote command failed: %v", err)
	}
	if exitCode != 0 {
		t.Fatalf("remote command exited %d: %s", exitCode, string(stderr))
	}
}
