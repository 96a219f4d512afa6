package cli

import (
	"testing"
	"time"

	"github.com/rileyhilliard/hfwatch/internal/errors"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDurationFlag(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{name: "milliseconds", input: "500ms", want: 500 * time.Millisecond},
		{name: "seconds", input: "2s", want: 2 * time.Second},
		{name: "complex", input: "1m30s", want: 90 * time.Second},
		{name: "at the minimum", input: "100ms", want: 100 * time.Millisecond},
		{name: "below the minimum", input: "50ms", wantErr: true},
		{name: "not a duration", input: "fast", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDurationFlag(100 * time.Millisecond)
			err := f.Set(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, errors.ErrConfig))
				assert.Equal(t, time.Second, f.Or(time.Second), "failed Set leaves the flag unset")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Or(time.Hour))
			assert.Equal(t, tt.want.String(), f.String())
		})
	}
}

func TestDurationFlag_Unset(t *testing.T) {
	f := newDurationFlag(0)
	assert.Equal(t, "", f.String())
	assert.Equal(t, 3*time.Second, f.Or(3*time.Second))
	assert.Equal(t, "duration", f.Type())
}

func TestChoiceFlag(t *testing.T) {
	f := newChoiceFlag("auto", "auto", "always", "never")
	assert.Equal(t, "auto", f.String())
	assert.Equal(t, "auto|always|never", f.Choices())

	require.NoError(t, f.Set("never"))
	assert.Equal(t, "never", f.String())

	err := f.Set("sometimes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auto|always|never")
	assert.Equal(t, "never", f.String())
}

func TestChoiceFlag_OnFlagSet(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f := newChoiceFlag("auto", "auto", "always", "never")
	fs.Var(f, "color", "")

	require.NoError(t, fs.Parse([]string{"--color", "always"}))
	assert.Equal(t, "always", f.String())

	assert.Error(t, fs.Parse([]string{"--color=rainbow"}))
}

func TestRootPersistentFlags(t *testing.T) {
	for _, name := range []string{"config", "debug", "log-file", "color"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), name)
	}
}
