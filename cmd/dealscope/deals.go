package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/seenimoa/dealscope/internal/loader"
	"github.com/seenimoa/dealscope/pkg/utils"
)

// --- Deals Command (repository) ---

var dealsCmd = &cobra.Command{
	Use:   "deals",
	Short: "Manage saved deals",
}

var dealsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved deals",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		entries, err := svc.List()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No saved deals.")
			return nil
		}
		fmt.Printf("%-38s %-30s %s\n", "ID", "Name", "Saved")
		for _, e := range entries {
			fmt.Printf("%-38s %-30s %s\n", e.ID, e.Name, e.SavedAt.Local().Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var dealsSaveCmd = &cobra.Command{
	Use:   "save [deal file...]",
	Short: "Validate deal files and save them",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		for _, path := range args {
			doc, err := loader.ReadFile(path)
			if err != nil {
				return err
			}
			d, err := svc.Save(doc)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			fmt.Printf("✅ %s saved as %s\n", d.Name(), d.ID())
		}
		return nil
	},
}

var dealsShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Print a saved deal document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		doc, err := svc.Document(args[0])
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, doc)
	},
}

var dealsDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a saved deal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		if err := svc.Delete(args[0]); err != nil {
			return err
		}
		fmt.Printf("🗑️  %s deleted\n", args[0])
		return nil
	},
}

func init() {
	dealsCmd.AddCommand(dealsListCmd, dealsSaveCmd, dealsShowCmd, dealsDeleteCmd)
}

// --- Batch Command ---

var batchCmd = &cobra.Command{
	Use:   "batch [deal file or glob...]",
	Short: "Analyze many deal files concurrently and rank them",
	Long: `Analyze every deal file given (globs are expanded) with the configured
concurrency. A file that fails to load is reported and does not stop the
others. Results are ranked by deal score.

Example:
  dealscope batch 'deals/*.yaml' --profile cash_flow`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		var paths []string
		for _, arg := range args {
			matches, err := filepath.Glob(arg)
			if err != nil {
				return err
			}
			if len(matches) == 0 {
				matches = []string{arg}
			}
			paths = append(paths, matches...)
		}

		results := svc.Batch(cmd.Context(), paths, loader.Load, overridesFromFlags(cmd))
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(os.Stdout, results)
		}

		sort.SliceStable(results, func(i, j int) bool {
			ai, aj := results[i].Analysis, results[j].Analysis
			if ai == nil || aj == nil {
				return ai != nil
			}
			return ai.Metrics.DealScore.Value > aj.Metrics.DealScore.Value
		})
		fmt.Printf("%-28s %7s %9s %9s %8s %12s\n", "Deal", "Score", "IRR", "CoC", "DSCR", "Cash flow")
		failed := 0
		for _, r := range results {
			if r.Err != nil {
				failed++
				fmt.Printf("%-28s ❌ %s\n", filepath.Base(r.Source), r.Error)
				continue
			}
			m := r.Analysis.Metrics
			fmt.Printf("%-28s %7.1f %9s %9s %8s %12s\n", r.Analysis.Summary.Name,
				m.DealScore.Value, utils.FormatPercent(m.IRR.Value, 2), utils.FormatPercent(m.CashOnCash.Value, 2),
				m.DSCR.Formatted, utils.FormatMoney(m.CashFlow.Value, 0))
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d deals failed", failed, len(results))
		}
		return nil
	},
}

func init() {
	addAnalysisFlags(batchCmd)
	batchCmd.Flags().Bool("json", false, "print JSON")
}
