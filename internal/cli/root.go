package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/rileyhilliard/hfwatch/internal/config"
	"github.com/rileyhilliard/hfwatch/internal/errors"
	"github.com/rileyhilliard/hfwatch/internal/logger"
	"github.com/rileyhilliard/hfwatch/internal/ui"
	"github.com/rileyhilliard/hfwatch/internal/util"
	"github.com/rileyhilliard/hfwatch/pkg/sshutil"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// Global flags
var (
	cfgFile     string
	debugFlag   bool
	logFileFlag string
	colorFlag   = newChoiceFlag("auto", "auto", "always", "never")
)

var rootCmd = &cobra.Command{
	Use:   "hfwatch",
	Short: "Watch a remote terrain heightfield over SSH",
	Long: `hfwatch discovers endpoints that run a terrain inspector, attaches to one
over SSH, and polls its heightfield at a fixed interval.

Snapshots are drawn in the terminal, printed one line each, or published
to an MQTT broker.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		applyColorMode(colorFlag.String())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .hfwatch.yaml, then ~/.config/hfwatch/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFileFlag, "log-file", "", "write logs to this file (rotated)")
	rootCmd.PersistentFlags().Var(colorFlag, "color", "color output: "+colorFlag.Choices())
}

// Execute runs the root command and exits non-zero on error. SIGINT and
// SIGTERM cancel the command's context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	sshutil.CloseAgent()
	if err != nil {
		fmt.Fprintln(os.Stderr, formatError(err))
		os.Exit(1)
	}
}

// formatError renders err for the terminal, adding command suggestions for
// unknown commands.
func formatError(err error) string {
	if isUnknownCommandError(err) {
		msg := ui.Failure(err.Error())
		if name := extractUnknownCommand(err); name != "" {
			if similar := util.SuggestSimilar(name, commandNames(rootCmd), 3); len(similar) > 0 {
				msg += "\n\n  Did you mean: " + strings.Join(similar, ", ") + "?"
			}
		}
		return msg
	}

	var hfErr *errors.Error
	if stderrors.As(err, &hfErr) {
		return strings.TrimRight(hfErr.Error(), "\n")
	}
	return ui.Failure(err.Error())
}

func isUnknownCommandError(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") || strings.HasPrefix(msg, "unknown flag")
}

// extractUnknownCommand pulls "foo" out of `unknown command "foo" for "hfwatch"`.
func extractUnknownCommand(err error) string {
	msg := err.Error()
	start := strings.Index(msg, `"`)
	if start == -1 {
		return ""
	}
	end := strings.Index(msg[start+1:], `"`)
	if end == -1 {
		return ""
	}
	return msg[start+1 : start+1+end]
}

func commandNames(cmd *cobra.Command) []string {
	var names []string
	for _, c := range cmd.Commands() {
		if c.Hidden || !c.IsAvailableCommand() {
			continue
		}
		names = append(names, c.Name())
		names = append(names, c.Aliases...)
	}
	return names
}

// applyColorMode sets the lipgloss color profile from --color.
func applyColorMode(mode string) {
	switch mode {
	case "always":
		lipgloss.SetColorProfile(termenv.TrueColor)
	case "never":
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// loadConfig finds, loads and validates the config. With no file, the
// defaults (plus HFWATCH_* environment overrides) are used.
func loadConfig() (*config.Config, string, error) {
	cfg, path, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return nil, "", err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// setupLogger installs the process logger. While a full-screen program
// owns the terminal, logs go to a rotated file; otherwise to stderr.
// The returned closer is never nil.
func setupLogger(cfg *config.Config, fullscreen bool) (logger.Logger, io.Closer) {
	debug := debugFlag || cfg.Log.Debug

	path := logFileFlag
	if path == "" {
		path = cfg.Log.File
	}
	if path == "" && fullscreen {
		path = filepath.Join(os.TempDir(), "hfwatch.log")
	}

	var (
		log    logger.Logger
		closer io.Closer = nopCloser{}
	)
	if path != "" {
		log, closer = logger.NewFileLogger(logger.FileConfig{
			Path:       config.ExpandTilde(path),
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			Debug:      debug,
		})
	} else {
		log = logger.NewWriterLogger(os.Stderr, "", debug)
	}

	logger.SetDefault(log)
	return log, closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
