package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	jsoniter "github.com/json-iterator/go"
	"github.com/rileyhilliard/hfwatch/internal/attach"
	"github.com/rileyhilliard/hfwatch/internal/config"
	"github.com/rileyhilliard/hfwatch/internal/discovery"
	"github.com/rileyhilliard/hfwatch/internal/doctor"
	"github.com/rileyhilliard/hfwatch/internal/terrain"
	"github.com/rileyhilliard/hfwatch/internal/ui"
	"github.com/rileyhilliard/hfwatch/internal/util"
	"github.com/spf13/cobra"
)

var (
	doctorJSON    bool
	doctorTimeout time.Duration
)

var doctorJSONAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// doctorCmd diagnoses the local setup and the endpoints.
var doctorCmd = &cobra.Command{
	Use:   "doctor [endpoint...]",
	Short: "Diagnose config, SSH and endpoint problems",
	Long: `Check the config file, the local SSH setup, discovery, and that each
endpoint can be attached to and returns a snapshot.

With no arguments every discovered endpoint is checked.

Examples:
  hfwatch doctor
  hfwatch doctor terrain-a
  hfwatch doctor --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return doctorCommand(cmd.Context(), cmd.OutOrStdout(), args)
	},
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "output in JSON format")
	doctorCmd.Flags().DurationVar(&doctorTimeout, "timeout", doctor.DefaultEndpointTimeout, "time allowed per endpoint")
	rootCmd.AddCommand(doctorCmd)
}

// DoctorOutput represents the JSON output for the doctor command.
type DoctorOutput struct {
	Categories []CategoryOutput `json:"categories"`
	Summary    SummaryOutput    `json:"summary"`
}

// CategoryOutput represents a category of check results.
type CategoryOutput struct {
	Name    string               `json:"name"`
	Results []doctor.CheckResult `json:"results"`
}

// SummaryOutput summarizes the check results.
type SummaryOutput struct {
	Pass     int  `json:"pass"`
	Warn     int  `json:"warn"`
	Fail     int  `json:"fail"`
	AllClear bool `json:"all_clear"`
}

type doctorOptions struct {
	ConfigPath string
	SSHConfig  string
	Pattern    string
	Endpoints  []string // Explicit endpoints; discovered candidates otherwise
	Timeout    time.Duration
	JSON       bool
}

func doctorCommand(ctx context.Context, out io.Writer, args []string) error {
	// A broken config is reported by the config checks, so fall back to
	// the defaults for everything else.
	cfg, _, err := config.LoadOrDefault(cfgFile)
	if err != nil || config.Validate(cfg) != nil {
		cfg = config.DefaultConfig()
	}

	log, closer := setupLogger(cfg, false)
	defer closer.Close()

	var connector attach.Connector
	if c, err := newConnector(cfg, log); err == nil {
		connector = c
	}

	return runDoctor(ctx, out, newSource(cfg), connector, doctorOptions{
		ConfigPath: cfgFile,
		SSHConfig:  cfg.Discovery.SSHConfig,
		Pattern:    cfg.Discovery.Pattern,
		Endpoints:  args,
		Timeout:    doctorTimeout,
		JSON:       doctorJSON,
	})
}

// runDoctor runs the local checks, then one endpoint check per explicit
// or discovered endpoint. It returns an error when any check failed.
func runDoctor(ctx context.Context, out io.Writer, source discovery.Source, connector attach.Connector, opts doctorOptions) error {
	disc := &doctor.DiscoveryCheck{Source: source, Pattern: opts.Pattern}

	checks := doctor.NewConfigChecks(opts.ConfigPath)
	checks = append(checks, doctor.NewSSHChecks(opts.SSHConfig)...)
	checks = append(checks, disc)
	results := doctor.RunAll(ctx, checks)

	ids := disc.Candidates
	if len(opts.Endpoints) > 0 {
		ids = make([]terrain.EndpointID, len(opts.Endpoints))
		for i, e := range opts.Endpoints {
			ids[i] = terrain.EndpointID(e)
		}
	}
	if connector != nil && len(ids) > 0 {
		endpointChecks := doctor.NewEndpointChecks(ids, connector, opts.Timeout)
		checks = append(checks, endpointChecks...)
		results = append(results, doctor.RunAll(ctx, endpointChecks)...)
	}

	var err error
	if opts.JSON {
		err = outputDoctorJSON(out, checks, results)
	} else {
		outputDoctorText(out, checks, results)
	}
	if err != nil {
		return err
	}

	if doctor.HasFailures(results) {
		failed := doctor.CountByStatus(results)[doctor.StatusFail]
		return fmt.Errorf("%s failed", util.Count(failed, "check", "checks"))
	}
	return nil
}

// groupByCategory returns result indices per category, in CategoryOrder.
func groupByCategory(checks []doctor.Check) ([]string, map[string][]int) {
	grouped := make(map[string][]int)
	for i, check := range checks {
		grouped[check.Category()] = append(grouped[check.Category()], i)
	}

	var order []string
	for _, cat := range doctor.CategoryOrder {
		if len(grouped[cat]) > 0 {
			order = append(order, cat)
		}
	}
	return order, grouped
}

func outputDoctorJSON(out io.Writer, checks []doctor.Check, results []doctor.CheckResult) error {
	order, grouped := groupByCategory(checks)

	output := DoctorOutput{Categories: make([]CategoryOutput, 0, len(order))}
	for _, cat := range order {
		category := CategoryOutput{Name: cat}
		for _, idx := range grouped[cat] {
			category.Results = append(category.Results, results[idx])
		}
		output.Categories = append(output.Categories, category)
	}

	counts := doctor.CountByStatus(results)
	output.Summary = SummaryOutput{
		Pass:     counts[doctor.StatusPass],
		Warn:     counts[doctor.StatusWarn],
		Fail:     counts[doctor.StatusFail],
		AllClear: !doctor.HasIssues(results),
	}

	enc := doctorJSONAPI.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

func outputDoctorText(out io.Writer, checks []doctor.Check, results []doctor.CheckResult) {
	headerStyle := lipgloss.NewStyle().Bold(true)

	fmt.Fprintln(out)
	fmt.Fprintln(out, headerStyle.Render("hfwatch diagnostic report"))
	fmt.Fprintln(out)

	order, grouped := groupByCategory(checks)
	for _, cat := range order {
		fmt.Fprintln(out, headerStyle.Render(cat))
		for _, idx := range grouped[cat] {
			renderCheckResult(out, results[idx])
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintln(out, strings.Repeat("━", 60))
	fmt.Fprintln(out)

	if doctor.HasIssues(results) {
		fmt.Fprintln(out, ui.Failure(doctor.Summary(results)))
	} else {
		fmt.Fprintln(out, ui.Success(doctor.Summary(results)))
	}
	fmt.Fprintln(out)
}

func renderCheckResult(out io.Writer, result doctor.CheckResult) {
	var symbol string
	var style lipgloss.Style

	switch result.Status {
	case doctor.StatusPass:
		symbol, style = ui.SymbolSuccess, ui.SuccessStyle
	case doctor.StatusWarn:
		symbol, style = ui.SymbolSuccess, ui.WarningStyle // usable, but worth a look
	default:
		symbol, style = ui.SymbolFail, ui.ErrorStyle
	}

	fmt.Fprintf(out, "  %s %s\n", style.Render(symbol), result.Message)

	if result.Suggestion != "" && result.Status != doctor.StatusPass {
		for _, line := range strings.Split(result.Suggestion, "\n") {
			fmt.Fprintf(out, "    %s\n", ui.MutedStyle.Render(line))
		}
	}
}
