package cli

import (
	"os"

	"github.com/rileyhilliard/hfwatch/internal/config"
	"github.com/rileyhilliard/hfwatch/internal/errors"
	"github.com/spf13/cobra"
)

// Command-specific flags
var (
	discoverPatternFlag string
	discoverWatchFlag   bool

	watchPlainFlag    bool
	watchIntervalFlag = newDurationFlag(config.MinInterval)

	snapshotPNGFlag     string
	snapshotSaveFlag    string
	snapshotYAMLFlag    bool
	snapshotScaleFlag   int
	snapshotCheckerFlag bool

	initForce     bool
	initEndpoints []string
)

// discoverCmd lists candidate endpoints
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List candidate endpoints",
	Long: `List the endpoints hfwatch can attach to.

Candidates come from discovery.endpoints in the config and the concrete
Host aliases in discovery.ssh_config, filtered by a glob pattern.

Examples:
  hfwatch discover
  hfwatch discover --pattern 'terrain-*'
  hfwatch discover --watch`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return discoverCommand(cmd.Context(), cmd.OutOrStdout(), discoverPatternFlag, discoverWatchFlag)
	},
}

// watchCmd attaches and polls an endpoint
var watchCmd = &cobra.Command{
	Use:   "watch [endpoint]",
	Short: "Attach to an endpoint and watch its heightfield",
	Long: `Attach to an endpoint and poll its heightfield until interrupted.

On a terminal this opens the dashboard: pick an endpoint, press enter to
attach, and the heightfield is redrawn as it changes. With --plain, or
when stdout is not a terminal, one line is printed per snapshot.

Keyboard shortcuts:
  enter       Attach to the selected endpoint
  d           Disconnect
  r           Refresh the endpoint list
  up/k        Select previous endpoint
  down/j      Select next endpoint
  ?           Show help
  q / Ctrl+C  Quit

Examples:
  hfwatch watch
  hfwatch watch terrain-a
  hfwatch watch terrain-a --plain --interval 2s`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var endpoint string
		if len(args) > 0 {
			endpoint = args[0]
		}
		return watchCommand(cmd.Context(), cmd.OutOrStdout(), endpoint, watchPlainFlag || !isTerminal(os.Stdout))
	},
}

// snapshotCmd fetches one snapshot
var snapshotCmd = &cobra.Command{
	Use:   "snapshot [endpoint]",
	Short: "Fetch a single snapshot",
	Long: `Attach to an endpoint, fetch one snapshot, and disconnect.

Without output flags the heightfield is drawn in the terminal. With no
endpoint argument you pick one from the discovered candidates.

Examples:
  hfwatch snapshot terrain-a
  hfwatch snapshot terrain-a --png grid.png --scale 4 --checker
  hfwatch snapshot terrain-a --save grid.cbor
  hfwatch snapshot terrain-a --yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var endpoint string
		if len(args) > 0 {
			endpoint = args[0]
		}
		return snapshotCommand(cmd.Context(), cmd.OutOrStdout(), endpoint, snapshotOutputs{
			PNG:     snapshotPNGFlag,
			Save:    snapshotSaveFlag,
			YAML:    snapshotYAMLFlag,
			Scale:   snapshotScaleFlag,
			Checker: snapshotCheckerFlag,
		})
	},
}

// initCmd creates a new .hfwatch.yaml configuration
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create .hfwatch.yaml configuration",
	Long: `Write a .hfwatch.yaml with the default settings in the current directory.

Examples:
  hfwatch init
  hfwatch init --endpoint terrain-a --endpoint admin@10.0.0.7:2222
  hfwatch init --force`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return Init(cmd.OutOrStdout(), InitOptions{
			Path:           config.ConfigFileName,
			Endpoints:      initEndpoints,
			Overwrite:      initForce,
			NonInteractive: !isTerminal(os.Stdin),
		})
	},
}

// completionCmd generates shell completion scripts
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion scripts for hfwatch.

Examples:
  # Bash
  hfwatch completion bash > /etc/bash_completion.d/hfwatch

  # Zsh
  hfwatch completion zsh > "${fpath[1]}/_hfwatch"

  # Fish
  hfwatch completion fish > ~/.config/fish/completions/hfwatch.fish`,
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(out)
		case "zsh":
			return rootCmd.GenZshCompletion(out)
		case "fish":
			return rootCmd.GenFishCompletion(out, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletion(out)
		default:
			return errors.New(errors.ErrConfig,
				"Unknown shell: "+args[0],
				"Supported shells: bash, zsh, fish, powershell")
		}
	},
}

func init() {
	discoverCmd.Flags().StringVar(&discoverPatternFlag, "pattern", "", "glob pattern for endpoint names (default: discovery.pattern)")
	discoverCmd.Flags().BoolVar(&discoverWatchFlag, "watch", false, "keep refreshing and print the list whenever it changes")

	watchCmd.Flags().BoolVar(&watchPlainFlag, "plain", false, "print one line per snapshot instead of the dashboard")
	watchCmd.Flags().Var(watchIntervalFlag, "interval", "poll interval (default: poll.interval)")

	snapshotCmd.Flags().StringVar(&snapshotPNGFlag, "png", "", "write a grayscale PNG to this file")
	snapshotCmd.Flags().StringVar(&snapshotSaveFlag, "save", "", "write the raw snapshot as CBOR to this file")
	snapshotCmd.Flags().BoolVar(&snapshotYAMLFlag, "yaml", false, "print a YAML summary")
	snapshotCmd.Flags().IntVar(&snapshotScaleFlag, "scale", 1, "PNG pixels per sample")
	snapshotCmd.Flags().BoolVar(&snapshotCheckerFlag, "checker", false, "draw no-data cells in the PNG as a red/yellow checkerboard")

	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config")
	initCmd.Flags().StringArrayVar(&initEndpoints, "endpoint", nil, "endpoint to list under discovery.endpoints (repeatable)")

	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(completionCmd)
}
