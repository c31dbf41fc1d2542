// Package cmd - optimize command
package cmd

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"housecost/adapters/hcl"
	"housecost/adapters/storage"
	"housecost/core/catalogue"
	"housecost/core/engine"
	"housecost/core/output"
	"housecost/core/request"
	"housecost/core/ui"
	"housecost/internal/errors"
	"housecost/internal/logging"
)

var (
	optimizeBudget string
	optimizePolicy string
	optimizeSave   bool
)

// optimizeCmd represents the optimize command
var optimizeCmd = &cobra.Command{
	Use:   "optimize <request-file>",
	Short: "Choose quality levels for a request file",
	Long: `Optimize a request against the rate catalogue.

The request file is HCL (or JSON in the HTTP request body shape):

  budget = 250000

  constituent "Flooring" {
    quantity = 1200
    ceiling  = 3
    priority = 2
  }

Every catalogue constituent must appear exactly once.

Examples:
  housecost optimize house.hcl
  housecost optimize --budget 180000 house.hcl
  housecost optimize --format yaml --save request.json`,
	Args: cobra.ExactArgs(1),
	RunE: runOptimize,
}

func init() {
	rootCmd.AddCommand(optimizeCmd)

	optimizeCmd.Flags().StringVarP(&optimizeBudget, "budget", "b", "", "override the request budget")
	optimizeCmd.Flags().StringVar(&optimizePolicy, "policy", "", "preference policy (priority, fixed)")
	optimizeCmd.Flags().BoolVar(&optimizeSave, "save", false, "record the run in the configured history")
}

func runOptimize(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	f, err := format()
	if err != nil {
		return err
	}
	stderr := ui.NewWriter(cmd.ErrOrStderr(), noColor)
	if verbose {
		stderr.SetVerbosity(2)
	}
	runner := ui.NewRunner(stderr, f == output.FormatTable && ui.IsTerminal(os.Stderr))

	var cat *catalogue.Catalogue
	if err := runner.Step("Loading catalogue", func() (err error) {
		cat, err = loadCatalogue(stderr)
		return err
	}); err != nil {
		return err
	}

	var req *request.Request
	if err := runner.Step("Reading request", func() error {
		raw, err := hcl.NewParser().ParseFile(args[0])
		if err != nil {
			return err
		}
		if optimizeBudget != "" {
			budget, err := decimal.NewFromString(optimizeBudget)
			if err != nil {
				return errors.InvalidRequest(fmt.Sprintf("invalid --budget %q", optimizeBudget))
			}
			raw.TargetBudget = decimal.NewNullDecimal(budget)
		}
		req, err = request.Normalize(cat, raw)
		return err
	}); err != nil {
		return err
	}

	cfg := *appConfig
	if optimizePolicy != "" {
		cfg.Preference.Policy = optimizePolicy
	}

	opts := []engine.Option{engine.WithLogger(logging.Named("engine"))}
	if optimizeSave {
		history, err := openHistory()
		if err != nil {
			return err
		}
		defer history.Close()
		opts = append(opts, engine.WithHistory(storage.Recorder{Store: history}))
	}

	eng, err := engine.FromConfig(&cfg, opts...)
	if err != nil {
		return err
	}

	var result *engine.Result
	if err := runner.Step("Optimizing", func() (err error) {
		result, err = eng.Optimize(ctx, cat, req)
		return err
	}); err != nil {
		if e, ok := errors.As(err); ok && e.Type == errors.TypeInfeasible {
			stderr.Error("%s", e.Message)
		}
		return err
	}

	formatter, ok := output.NewRegistry(noColor).Get(f)
	if !ok {
		return fmt.Errorf("no formatter for %s", f)
	}
	if err := formatter.Render(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	if optimizeSave && f == output.FormatTable {
		ui.NewWriter(cmd.OutOrStdout(), noColor).Success("saved run %s", result.ID)
	}
	return nil
}

// loadCatalogue reads the configured catalogue, reporting skipped rows
func loadCatalogue(w *ui.Writer) (*catalogue.Catalogue, error) {
	cat, report, err := catalogue.LoadFile(appConfig.Catalogue.Path)
	if err != nil {
		return nil, err
	}
	if n := len(report.Skipped) + len(report.Duplicates); n > 0 {
		w.Warning("%d catalogue rows skipped (run 'housecost catalogue validate' for details)", n)
	}
	for _, r := range report.Rejected {
		w.Warning("constituent %s left out of the catalogue: %s", r.Name, r.Reason)
	}
	for _, warning := range report.Warnings {
		w.Debug("%s", warning)
	}
	return cat, nil
}

// openHistory opens the configured run history
func openHistory() (storage.Store, error) {
	store, err := storage.StoreFactory(storage.Backend(appConfig.History.Backend), appConfig.History.Path)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.Config("run history is disabled (history.backend = none)", nil)
	}
	if appConfig.History.Backend == string(storage.BackendMemory) {
		fmt.Fprintln(os.Stderr, "note: the memory history backend does not persist between CLI invocations")
	}
	return store, nil
}
