package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/rileyhilliard/hfwatch/internal/errors"
	"github.com/spf13/pflag"
)

var (
	_ pflag.Value = (*choiceFlag)(nil)
	_ pflag.Value = (*durationFlag)(nil)
)

// choiceFlag is a string flag restricted to a fixed set of values.
type choiceFlag struct {
	value   string
	choices []string
}

func newChoiceFlag(def string, choices ...string) *choiceFlag {
	return &choiceFlag{value: def, choices: choices}
}

func (f *choiceFlag) String() string { return f.value }
func (f *choiceFlag) Type() string   { return "string" }

// Choices lists the accepted values, e.g. "auto|always|never".
func (f *choiceFlag) Choices() string { return strings.Join(f.choices, "|") }

func (f *choiceFlag) Set(v string) error {
	for _, c := range f.choices {
		if v == c {
			f.value = v
			return nil
		}
	}
	return fmt.Errorf("must be one of %s", f.Choices())
}

// durationFlag is a duration flag with a lower bound. Zero means unset.
type durationFlag struct {
	value time.Duration
	min   time.Duration
}

func newDurationFlag(min time.Duration) *durationFlag {
	return &durationFlag{min: min}
}

func (f *durationFlag) String() string {
	if f.value == 0 {
		return ""
	}
	return f.value.String()
}

func (f *durationFlag) Type() string { return "duration" }

func (f *durationFlag) Set(v string) error {
	d, err := time.ParseDuration(v)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("'%s' doesn't look like a valid duration", v),
			"Try something like 500ms, 2s, or 1m.")
	}
	if d < f.min {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("%v is too short - the minimum is %v", d, f.min),
			"Pick a longer interval so the endpoint isn't hammered.")
	}
	f.value = d
	return nil
}

// Or returns the flag value, or def when the flag was not given.
func (f *durationFlag) Or(def time.Duration) time.Duration {
	if f.value == 0 {
		return def
	}
	return f.value
}
