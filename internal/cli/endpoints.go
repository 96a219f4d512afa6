package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/rileyhilliard/hfwatch/internal/config"
	"github.com/rileyhilliard/hfwatch/internal/errors"
	"github.com/rileyhilliard/hfwatch/internal/ui"
	"github.com/rileyhilliard/hfwatch/internal/util"
	"github.com/spf13/cobra"
)

// endpointsCmd manages discovery.endpoints
var endpointsCmd = &cobra.Command{
	Use:   "endpoints",
	Short: "Manage the endpoints listed in the config",
	Long: `Manage discovery.endpoints, the SSH destinations offered alongside
the Host aliases from your SSH config.

Edits keep the rest of the file, comments included, as it was.

Examples:
  hfwatch endpoints list
  hfwatch endpoints add terrain-a admin@10.0.0.7:2222
  hfwatch endpoints remove terrain-a`,
}

var endpointsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured endpoints",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return endpointsList(cmd.OutOrStdout(), cfgFile)
	},
}

var endpointsAddCmd = &cobra.Command{
	Use:   "add <endpoint>...",
	Short: "Add endpoints",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return endpointsAdd(cmd.OutOrStdout(), cfgFile, args)
	},
}

var endpointsRemoveCmd = &cobra.Command{
	Use:     "remove <endpoint>...",
	Aliases: []string{"rm"},
	Short:   "Remove endpoints",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return endpointsRemove(cmd.OutOrStdout(), cfgFile, args)
	},
}

// requireConfigFile finds the config file to edit. Editing needs a real
// file, so the defaults are not enough here.
func requireConfigFile(explicit string) (string, error) {
	path, err := config.Find(explicit)
	if err != nil {
		return "", err
	}
	if path == "" {
		return "", errors.New(errors.ErrConfig,
			"No config file found",
			"Run 'hfwatch init' to create one")
	}
	return path, nil
}

func endpointsList(out io.Writer, explicit string) error {
	path, err := requireConfigFile(explicit)
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	if len(cfg.Discovery.Endpoints) == 0 {
		fmt.Fprintln(out, ui.MutedStyle.Render("No endpoints configured in "+path))
		return nil
	}
	for _, ep := range cfg.Discovery.Endpoints {
		fmt.Fprintln(out, ep)
	}
	return nil
}

func endpointsAdd(out io.Writer, explicit string, endpoints []string) error {
	path, err := requireConfigFile(explicit)
	if err != nil {
		return err
	}

	for _, ep := range endpoints {
		ep = strings.TrimSpace(ep)
		if ep == "" || strings.ContainsAny(ep, " \t\n") {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Invalid endpoint %q", ep),
				"Endpoints look like host, user@host or user@host:port")
		}

		added, err := config.AddEndpoint(path, ep)
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Couldn't update "+path,
				"Check the file is valid YAML and writable")
		}
		if added {
			fmt.Fprintln(out, ui.Success("Added "+ep))
		} else {
			fmt.Fprintln(out, ui.MutedStyle.Render(ep+" is already listed"))
		}
	}
	return nil
}

func endpointsRemove(out io.Writer, explicit string, endpoints []string) error {
	path, err := requireConfigFile(explicit)
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	for _, ep := range endpoints {
		removed, err := config.RemoveEndpoint(path, ep)
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Couldn't update "+path,
				"Check the file is valid YAML and writable")
		}
		if !removed {
			suggestion := "Run 'hfwatch endpoints list' to see what is configured"
			if similar := util.SuggestSimilar(ep, cfg.Discovery.Endpoints, 3); len(similar) > 0 {
				suggestion = "Did you mean: " + strings.Join(similar, ", ") + "?"
			}
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("%s is not listed in %s", ep, path),
				suggestion)
		}
		fmt.Fprintln(out, ui.Success("Removed "+ep))
	}
	return nil
}

func init() {
	endpointsCmd.AddCommand(endpointsListCmd)
	endpointsCmd.AddCommand(endpointsAddCmd)
	endpointsCmd.AddCommand(endpointsRemoveCmd)
	rootCmd.AddCommand(endpointsCmd)
}
