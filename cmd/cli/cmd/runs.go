// Package cmd - run history commands
package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"housecost/adapters/storage"
	"housecost/core/diff"
	"housecost/core/engine"
	"housecost/core/output"
	"housecost/core/ui"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect recorded optimization runs",
	Long: `Inspect runs recorded by the server or by 'housecost optimize --save'.
Runs are read from the configured history backend (file or sqlite).`,
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one recorded run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

var runsDiffCmd = &cobra.Command{
	Use:   "diff <before-id> <after-id>",
	Short: "Compare the assignments of two runs",
	Args:  cobra.ExactArgs(2),
	RunE:  runRunsDiff,
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a recorded run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsDelete,
}

var (
	runsLimit       int
	runsFingerprint string
	runsSince       time.Duration
)

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsDiffCmd)
	runsCmd.AddCommand(runsDeleteCmd)

	runsListCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "maximum runs to list")
	runsListCmd.Flags().StringVar(&runsFingerprint, "fingerprint", "", "only runs of this request fingerprint")
	runsListCmd.Flags().DurationVar(&runsSince, "since", 0, "only runs newer than this (e.g. 24h)")
}

func runRunsList(cmd *cobra.Command, args []string) error {
	f, err := format()
	if err != nil {
		return err
	}
	history, err := openHistory()
	if err != nil {
		return err
	}
	defer history.Close()

	filter := &storage.ListFilter{Fingerprint: runsFingerprint, Limit: runsLimit}
	if runsSince > 0 {
		filter.Since = time.Now().Add(-runsSince)
	}
	runs, err := history.List(cmd.Context(), filter)
	if err != nil {
		return err
	}
	for _, run := range runs {
		run.RawResult = nil
	}
	if f != output.FormatTable {
		return output.Encode(cmd.OutOrStdout(), f, runs)
	}

	w := ui.NewWriter(cmd.OutOrStdout(), noColor)
	if len(runs) == 0 {
		w.Info("no recorded runs")
		return nil
	}
	table := w.NewTable("ID", "Created", "Budget", "Total Cost", "Preference", "Catalogue", "Policy").AlignRight(2, 3, 4)
	for _, run := range runs {
		cost := run.TotalCost.StringFixed(2)
		if run.Approximate {
			cost += "~"
		}
		table.AddRow(
			run.ID,
			run.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			run.Budget.StringFixed(2),
			cost,
			fmt.Sprintf("%.6g", run.TotalPreference),
			run.CatalogueHash,
			run.Policy,
		)
	}
	table.Render()
	return nil
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	f, err := format()
	if err != nil {
		return err
	}
	history, err := openHistory()
	if err != nil {
		return err
	}
	defer history.Close()

	run, err := history.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	var result engine.Result
	if err := json.Unmarshal(run.RawResult, &result); err != nil || result.Solution == nil {
		// runs without a stored result still carry their summary
		return output.Encode(cmd.OutOrStdout(), orJSON(f), run)
	}
	formatter, _ := output.NewRegistry(noColor).Get(f)
	return formatter.Render(cmd.OutOrStdout(), &result)
}

func runRunsDiff(cmd *cobra.Command, args []string) error {
	f, err := format()
	if err != nil {
		return err
	}
	history, err := openHistory()
	if err != nil {
		return err
	}
	defer history.Close()

	before, err := history.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	after, err := history.Get(cmd.Context(), args[1])
	if err != nil {
		return err
	}

	result := diff.Compare(before.Outcome(), after.Outcome())
	if f != output.FormatTable {
		return output.Encode(cmd.OutOrStdout(), f, result)
	}

	view := ui.NewWriter(cmd.OutOrStdout(), noColor).NewAssignmentDiff()
	for _, c := range result.Added {
		view.Added = append(view.Added, ui.DiffItem{Constituent: c.Constituent, NewLevel: c.NewLevel})
	}
	for _, c := range result.Removed {
		view.Removed = append(view.Removed, ui.DiffItem{Constituent: c.Constituent, OldLevel: c.OldLevel})
	}
	for _, c := range result.Changed {
		view.Changed = append(view.Changed, ui.DiffItem{Constituent: c.Constituent, OldLevel: c.OldLevel, NewLevel: c.NewLevel})
	}
	view.TotalChange = fmt.Sprintf("%s (%.1f%%)", result.CostDelta.StringFixed(2), result.DeltaPercent)
	view.IsIncrease = result.IsIncrease()
	view.Render()
	return nil
}

func runRunsDelete(cmd *cobra.Command, args []string) error {
	history, err := openHistory()
	if err != nil {
		return err
	}
	defer history.Close()

	if err := history.Delete(cmd.Context(), args[0]); err != nil {
		return err
	}
	ui.NewWriter(cmd.OutOrStdout(), noColor).Success("deleted run %s", args[0])
	return nil
}

func orJSON(f output.Format) output.Format {
	if f == output.FormatTable {
		return output.FormatJSON
	}
	return f
}
