package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddEndpoint(t *testing.T) {
	tests := []struct {
		name          string
		initialYAML   string
		endpoint      string
		wantAdded     bool
		wantContains  []string
		wantEndpoints []string
	}{
		{
			name: "add to existing list",
			initialYAML: `version: 1
# where to look
discovery:
  pattern: "*"
  endpoints:
    - terrain-a
`,
			endpoint:      "terrain-b",
			wantAdded:     true,
			wantContains:  []string{"# where to look"},
			wantEndpoints: []string{"terrain-a", "terrain-b"},
		},
		{
			name: "already listed",
			initialYAML: `discovery:
  endpoints:
    - terrain-a
`,
			endpoint:      "terrain-a",
			wantAdded:     false,
			wantEndpoints: []string{"terrain-a"},
		},
		{
			name: "discovery without endpoints",
			initialYAML: `discovery:
  pattern: "terrain-*" # only terrain hosts
`,
			endpoint:      "terrain-c",
			wantAdded:     true,
			wantContains:  []string{"# only terrain hosts"},
			wantEndpoints: []string{"terrain-c"},
		},
		{
			name:          "no discovery section",
			initialYAML:   "version: 1\n",
			endpoint:      "ops@grid:2222",
			wantAdded:     true,
			wantEndpoints: []string{"ops@grid:2222"},
		},
		{
			name:          "empty flow list",
			initialYAML:   "discovery:\n  endpoints: []\n",
			endpoint:      "terrain-a",
			wantAdded:     true,
			wantEndpoints: []string{"terrain-a"},
		},
		{
			name:          "empty file",
			initialYAML:   "",
			endpoint:      "terrain-a",
			wantAdded:     true,
			wantEndpoints: []string{"terrain-a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), ".hfwatch.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.initialYAML), 0644))

			added, err := AddEndpoint(path, tt.endpoint)
			require.NoError(t, err)
			assert.Equal(t, tt.wantAdded, added)

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			for _, want := range tt.wantContains {
				assert.Contains(t, string(data), want)
			}

			cfg, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, tt.wantEndpoints, cfg.Discovery.Endpoints)
		})
	}
}

func TestRemoveEndpoint(t *testing.T) {
	initial := `discovery:
  endpoints:
    - terrain-a # primary
    - terrain-b
`
	path := filepath.Join(t.TempDir(), ".hfwatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(initial), 0644))

	removed, err := RemoveEndpoint(path, "terrain-b")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = RemoveEndpoint(path, "terrain-z")
	require.NoError(t, err)
	assert.False(t, removed)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# primary")
	assert.NotContains(t, string(data), "terrain-b")
}

func TestEditEndpoints_Errors(t *testing.T) {
	tests := []struct {
		name        string
		yaml        string
		errContains string
	}{
		{name: "not a mapping", yaml: "- a\n- b\n", errContains: "expected mapping"},
		{name: "discovery is a list", yaml: "discovery: [a]\n", errContains: "'discovery' must be a mapping"},
		{name: "endpoints is a string", yaml: "discovery:\n  endpoints: a\n", errContains: "must be a list"},
		{name: "invalid yaml", yaml: "discovery: [", errContains: "failed to parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), ".hfwatch.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0644))

			_, err := AddEndpoint(path, "x")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestAddEndpoint_MissingFile(t *testing.T) {
	_, err := AddEndpoint(filepath.Join(t.TempDir(), "missing.yaml"), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestMarshal(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Poll.Interval = 750 * time.Millisecond

	data, err := Marshal(cfg)
	require.NoError(t, err)

	out := string(data)
	assert.Contains(t, out, "interval: 750ms")
	assert.Contains(t, out, "timeout: 10s")
	assert.Contains(t, out, "timeout: 2s")
	assert.False(t, strings.Contains(out, "500000000"), "durations must not be nanoseconds")

	// Round trip through the loader.
	path := filepath.Join(t.TempDir(), ".hfwatch.yaml")
	require.NoError(t, os.WriteFile(path, data, 0644))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 750*time.Millisecond, loaded.Poll.Interval)
	assert.Equal(t, cfg.Inspector, loaded.Inspector)
}
