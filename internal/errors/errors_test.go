package errors

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCodes(t *testing.T) {
	codes := []string{
		ErrConfig,
		ErrSSH,
		ErrDiscovery,
		ErrConnect,
		ErrFetch,
		ErrDecode,
		ErrInternal,
	}

	for _, code := range codes {
		assert.NotEmpty(t, code, "error code should not be empty")
	}

	seen := make(map[string]bool)
	for _, code := range codes {
		assert.False(t, seen[code], "error code %q should be unique", code)
		seen[code] = true
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		code       string
		message    string
		suggestion string
	}{
		{
			name:       "config error",
			code:       ErrConfig,
			message:    "Invalid configuration in .hfwatch.yaml",
			suggestion: "Check your configuration file syntax",
		},
		{
			name:       "discovery error",
			code:       ErrDiscovery,
			message:    "Malformed endpoint pattern '['",
			suggestion: "Use shell glob syntax like 'terrain-*'",
		},
		{
			name:       "connect error",
			code:       ErrConnect,
			message:    "Couldn't attach to 'gpu-box'",
			suggestion: "Check the host is reachable: ssh gpu-box",
		},
		{
			name:       "fetch error",
			code:       ErrFetch,
			message:    "Inspector exited with status 2",
			suggestion: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, tt.suggestion)

			require.NotNil(t, err)
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.message, err.Message)
			assert.Equal(t, tt.suggestion, err.Suggestion)
			assert.Nil(t, err.Cause)
		})
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, "SSH connection failed")

	require.NotNil(t, err)
	assert.Equal(t, ErrSSH, err.Code)
	assert.Equal(t, "SSH connection failed", err.Message)
	assert.Equal(t, cause, err.Cause)
}

func TestWrapWithCode(t *testing.T) {
	cause := errors.New("unexpected EOF")
	err := WrapWithCode(cause, ErrDecode, "Snapshot payload is truncated", "Check the inspector output format")

	assert.Equal(t, ErrDecode, err.Code)
	assert.Equal(t, cause, err.Cause)
	assert.True(t, errors.Is(err, cause))
}

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
		absent   []string
	}{
		{
			name:     "message only",
			err:      New(ErrConfig, "Bad config", ""),
			contains: []string{"✗ Bad config"},
		},
		{
			name:     "message with suggestion",
			err:      New(ErrConnect, "Couldn't attach", "Try again"),
			contains: []string{"✗ Couldn't attach", "Try again"},
		},
		{
			name:     "message with cause and suggestion",
			err:      WrapWithCode(errors.New("i/o timeout"), ErrFetch, "Fetch failed", "Check the network"),
			contains: []string{"✗ Fetch failed", "i/o timeout", "Check the network"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.err.Error()
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
			assert.True(t, strings.HasPrefix(out, "✗ "))
		})
	}
}

func TestSummary(t *testing.T) {
	inner := WrapWithCode(errors.New("connection refused"), ErrSSH, "Can't reach 'a' at a:22", "")
	outer := WrapWithCode(inner, ErrConnect, "Couldn't attach to 'a'", "ignored in summary")

	assert.Equal(t, "Couldn't attach to 'a': Can't reach 'a' at a:22: connection refused", outer.Summary())
	assert.Equal(t, "plain", Summary(errors.New("plain")))
	assert.Equal(t, "", Summary(nil))
	assert.NotContains(t, Summary(outer), "\n")
}

func TestIsCode(t *testing.T) {
	err := New(ErrFetch, "boom", "")

	assert.True(t, IsCode(err, ErrFetch))
	assert.False(t, IsCode(err, ErrConnect))
	assert.False(t, IsCode(nil, ErrFetch))
	assert.False(t, IsCode(errors.New("plain"), ErrFetch))

	wrapped := WrapWithCode(err, ErrConnect, "outer", "")
	assert.True(t, IsCode(wrapped, ErrConnect), "outermost code wins")
}
