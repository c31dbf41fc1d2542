// Package cmd - catalogue commands
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"housecost/core/catalogue"
	"housecost/core/output"
	"housecost/core/ui"
)

var catalogueCmd = &cobra.Command{
	Use:   "catalogue",
	Short: "Inspect the rate catalogue",
}

var catalogueShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the catalogue levels and rates",
	Args:  cobra.NoArgs,
	RunE:  runCatalogueShow,
}

var catalogueValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Check a catalogue CSV and report skipped rows",
	Long: `Load a catalogue CSV the way the server does and report every row it
would skip. Exits non-zero when the file cannot be used at all.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCatalogueValidate,
}

func init() {
	rootCmd.AddCommand(catalogueCmd)
	catalogueCmd.AddCommand(catalogueShowCmd)
	catalogueCmd.AddCommand(catalogueValidateCmd)
}

func runCatalogueShow(cmd *cobra.Command, args []string) error {
	f, err := format()
	if err != nil {
		return err
	}
	w := ui.NewWriter(cmd.OutOrStdout(), noColor)

	cat, err := loadCatalogue(ui.NewWriter(cmd.ErrOrStderr(), noColor))
	if err != nil {
		return err
	}
	if f != output.FormatTable {
		return output.Encode(cmd.OutOrStdout(), f, cat.Template())
	}

	table := w.NewTable("Constituent", "Level", "Rate", "Inclusion", "Specification").AlignRight(1, 2)
	for _, con := range cat.Constituents() {
		for _, lvl := range con.Levels {
			table.AddRow(
				con.Name,
				fmt.Sprintf("%d", lvl.Level),
				lvl.Rate.String(),
				truncate(strings.Join(lvl.Inclusion, "; "), 40),
				truncate(strings.Join(lvl.Specification, "; "), 40),
			)
		}
	}
	w.Header(fmt.Sprintf("Catalogue %s", cat.Hash.Short()))
	table.Render()
	w.Println("")
	w.Info("%d constituents from %s", cat.Len(), cat.Source)
	return nil
}

func runCatalogueValidate(cmd *cobra.Command, args []string) error {
	f, err := format()
	if err != nil {
		return err
	}
	path := appConfig.Catalogue.Path
	if len(args) > 0 {
		path = args[0]
	}
	w := ui.NewWriter(cmd.OutOrStdout(), noColor)

	cat, report, err := catalogue.LoadFile(path)
	if err != nil {
		w.Error("%s: %v", path, err)
		return err
	}
	if f != output.FormatTable {
		return output.Encode(cmd.OutOrStdout(), f, report)
	}

	w.Success("%s: %d constituents, %d of %d rows accepted (hash %s)",
		path, cat.Len(), report.Accepted, report.Rows, cat.Hash.Short())

	if len(report.Skipped) > 0 {
		w.SubHeader(fmt.Sprintf("Skipped (%d)", len(report.Skipped)))
		for _, row := range report.Skipped {
			w.Warning("line %d: %s", row.Line, row.Reason)
		}
	}
	if len(report.Duplicates) > 0 {
		w.SubHeader(fmt.Sprintf("Duplicates (%d)", len(report.Duplicates)))
		for _, row := range report.Duplicates {
			w.Warning("line %d: %s", row.Line, row.Reason)
		}
	}
	if len(report.Rejected) > 0 {
		w.SubHeader(fmt.Sprintf("Rejected constituents (%d)", len(report.Rejected)))
		for _, r := range report.Rejected {
			w.Warning("%s: %s", r.Name, r.Reason)
		}
	}
	for _, warning := range report.Warnings {
		w.Warning("%s", warning)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
