package cli

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rileyhilliard/hfwatch/internal/config"
	"github.com/rileyhilliard/hfwatch/internal/errors"
	"github.com/rileyhilliard/hfwatch/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsUnknownCommandError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "unknown command error",
			err:  stderrors.New(`unknown command "foo" for "hfwatch"`),
			want: true,
		},
		{
			name: "unknown flag error",
			err:  stderrors.New(`unknown flag: --foo`),
			want: true,
		},
		{
			name: "other error",
			err:  stderrors.New("connection failed"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUnknownCommandError(tt.err))
		})
	}
}

func TestExtractUnknownCommand(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "standard cobra format",
			err:  stderrors.New(`unknown command "foo" for "hfwatch"`),
			want: "foo",
		},
		{
			name: "command with hyphen",
			err:  stderrors.New(`unknown command "snap-shot" for "hfwatch"`),
			want: "snap-shot",
		},
		{
			name: "no quotes returns empty",
			err:  stderrors.New("unknown command foo"),
			want: "",
		},
		{
			name: "single quote returns empty",
			err:  stderrors.New(`unknown command "foo`),
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractUnknownCommand(tt.err))
		})
	}
}

func TestFormatError(t *testing.T) {
	t.Run("unknown command suggests a close match", func(t *testing.T) {
		msg := formatError(stderrors.New(`unknown command "wathc" for "hfwatch"`))
		assert.Contains(t, msg, "Did you mean")
		assert.Contains(t, msg, "watch")
	})

	t.Run("coded error keeps its suggestion", func(t *testing.T) {
		err := errors.New(errors.ErrConfig, "Config file not found", "Run 'hfwatch init'")
		msg := formatError(err)
		assert.Contains(t, msg, "Config file not found")
		assert.Contains(t, msg, "hfwatch init")
		assert.False(t, strings.HasSuffix(msg, "\n"))
	})

	t.Run("plain error", func(t *testing.T) {
		assert.Contains(t, formatError(stderrors.New("boom")), "boom")
	})
}

func TestCommandNames(t *testing.T) {
	names := commandNames(rootCmd)
	for _, want := range []string{"discover", "watch", "snapshot", "init", "endpoints", "doctor", "version", "completion"} {
		assert.Contains(t, names, want)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, config.ConfigFileName)

	orig := cfgFile
	t.Cleanup(func() { cfgFile = orig })

	t.Run("valid file", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("discovery:\n  pattern: terrain-*\npoll:\n  interval: 2s\n"), 0644))
		cfgFile = path

		cfg, got, err := loadConfig()
		require.NoError(t, err)
		assert.Equal(t, path, got)
		assert.Equal(t, "terrain-*", cfg.Discovery.Pattern)
		assert.Equal(t, "2s", cfg.Poll.Interval.String())
	})

	t.Run("invalid file fails validation", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("poll:\n  interval: 1ms\n"), 0644))
		cfgFile = path

		_, _, err := loadConfig()
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrConfig))
	})
}

func TestSetupLoggerFile(t *testing.T) {
	orig, origLog := logFileFlag, logger.Default()
	t.Cleanup(func() {
		logFileFlag = orig
		logger.SetDefault(origLog)
	})

	logFileFlag = filepath.Join(t.TempDir(), "hfwatch.log")
	log, closer := setupLogger(config.DefaultConfig(), false)
	require.NotNil(t, closer)
	log.Info("hello %s", "file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(logFileFlag)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello file")
}

func TestApplyColorMode(t *testing.T) {
	// Unknown and auto leave the profile alone; this only checks no panic.
	for _, mode := range []string{"auto", "always", "never"} {
		applyColorMode(mode)
	}
}
