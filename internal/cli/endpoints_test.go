package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rileyhilliard/hfwatch/internal/config"
	"github.com/rileyhilliard/hfwatch/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), config.ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestEndpointsAddAndList(t *testing.T) {
	path := writeConfig(t, "# my endpoints\ndiscovery:\n  pattern: \"*\"\n")

	var out bytes.Buffer
	require.NoError(t, endpointsAdd(&out, path, []string{"terrain-a", "admin@10.0.0.7:2222", "terrain-a"}))
	assert.Contains(t, out.String(), "Added terrain-a")
	assert.Contains(t, out.String(), "Added admin@10.0.0.7:2222")
	assert.Contains(t, out.String(), "terrain-a is already listed")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# my endpoints", "comments survive the edit")

	out.Reset()
	require.NoError(t, endpointsList(&out, path))
	assert.Equal(t, "terrain-a\nadmin@10.0.0.7:2222\n", out.String())
}

func TestEndpointsAddRejectsWhitespace(t *testing.T) {
	path := writeConfig(t, "discovery:\n  endpoints: []\n")

	err := endpointsAdd(&bytes.Buffer{}, path, []string{"terrain a"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestEndpointsRemove(t *testing.T) {
	path := writeConfig(t, "discovery:\n  endpoints:\n    - terrain-a\n    - terrain-b\n")

	var out bytes.Buffer
	require.NoError(t, endpointsRemove(&out, path, []string{"terrain-a"}))
	assert.Contains(t, out.String(), "Removed terrain-a")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"terrain-b"}, cfg.Discovery.Endpoints)
}

func TestEndpointsRemoveUnknownSuggests(t *testing.T) {
	path := writeConfig(t, "discovery:\n  endpoints:\n    - terrain-a\n")

	err := endpointsRemove(&bytes.Buffer{}, path, []string{"terain-a"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
	assert.Contains(t, err.Error(), "Did you mean: terrain-a?")
}

func TestEndpointsListEmpty(t *testing.T) {
	path := writeConfig(t, "discovery:\n  pattern: \"*\"\n")

	var out bytes.Buffer
	require.NoError(t, endpointsList(&out, path))
	assert.Contains(t, out.String(), "No endpoints configured")
}

func TestEndpointsMissingConfig(t *testing.T) {
	err := endpointsList(&bytes.Buffer{}, filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestEndpointsCommandRegistered(t *testing.T) {
	cmd, _, err := rootCmd.Find([]string{"endpoints", "rm"})
	require.NoError(t, err)
	assert.Equal(t, "remove", cmd.Name())
}
