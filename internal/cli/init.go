package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/rileyhilliard/hfwatch/internal/config"
	"github.com/rileyhilliard/hfwatch/internal/discovery"
	"github.com/rileyhilliard/hfwatch/internal/errors"
	"github.com/rileyhilliard/hfwatch/internal/ui"
)

// InitOptions holds options for the init command.
type InitOptions struct {
	Path           string   // Where to write the config
	Endpoints      []string // Pre-specified discovery.endpoints
	Overwrite      bool     // Overwrite existing config without asking
	NonInteractive bool     // Skip prompts, use defaults
}

const initHeader = `# hfwatch configuration
# Run 'hfwatch discover' to list endpoints and 'hfwatch watch' to attach.

`

// Init writes a new config file with the default settings.
func Init(out io.Writer, opts InitOptions) error {
	path := opts.Path
	if path == "" {
		path = config.ConfigFileName
	}

	if _, err := os.Stat(path); err == nil && !opts.Overwrite {
		if opts.NonInteractive {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Config file already exists: %s", path),
				"Use --force to overwrite")
		}

		var overwrite bool
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title(fmt.Sprintf("Config file '%s' already exists. Overwrite?", path)).
					Value(&overwrite),
			),
		)
		if err := form.Run(); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to get user input",
				"Try running with --force to overwrite")
		}
		if !overwrite {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
	}

	cfg := config.DefaultConfig()
	cfg.Discovery.Endpoints = append(cfg.Discovery.Endpoints, opts.Endpoints...)

	if !opts.NonInteractive && len(opts.Endpoints) == 0 {
		if err := promptInit(cfg); err != nil {
			return err
		}
	}

	if err := config.Validate(cfg); err != nil {
		return err
	}

	data, err := config.Marshal(cfg)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to generate config",
			"This shouldn't happen - please report this bug")
	}

	if err := os.WriteFile(path, []byte(initHeader+string(data)), 0644); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Failed to write config file: %s", path),
			"Check directory permissions")
	}

	fmt.Fprintf(out, "%s Created %s\n\n", ui.SymbolSuccess, path)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintln(out, "  hfwatch discover        - List candidate endpoints")
	fmt.Fprintln(out, "  hfwatch watch           - Open the dashboard")
	fmt.Fprintln(out, "  hfwatch endpoints add   - Add an SSH destination")
	return nil
}

// promptInit asks for the discovery settings.
func promptInit(cfg *config.Config) error {
	var endpoints string
	pattern := cfg.Discovery.Pattern

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Endpoints (optional)").
				Description("SSH destinations to offer besides your ~/.ssh/config hosts, separated by spaces").
				Placeholder("terrain-a admin@10.0.0.7:2222").
				Value(&endpoints),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Discovery pattern").
				Description("Glob matched against endpoint names").
				Placeholder("*").
				Value(&pattern).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("pattern is required")
					}
					return discovery.ValidatePattern(s)
				}),
		),
	)
	if err := form.Run(); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to get user input",
			"Check terminal compatibility, or pass --endpoint to skip the prompts")
	}

	cfg.Discovery.Endpoints = append(cfg.Discovery.Endpoints, strings.Fields(endpoints)...)
	cfg.Discovery.Pattern = strings.TrimSpace(pattern)
	return nil
}
