package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"duplo/internal/app/common"
	"duplo/internal/app/manager"
	"duplo/internal/domain/model"
)

var (
	deleteMode   string
	deletePairs  string
	deleteBackup bool
	deleteSafe   bool
)

var deleteCmd = &cobra.Command{
	Use:   "delete [dir]",
	Short: "Delete the second file of each duplicate pair",
	Long:  "Delete scans dir and marks every pair that keeps one file per cluster, or loads the marked pairs of a saved scan result with --pairs. The second file of each pair is removed, quarantined with --safe, and optionally backed up first.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := common.FromCommand(cmd)
		if err != nil {
			return err
		}

		started := time.Now()
		pairs, err := deletionPairs(cmd, app, args)
		if err != nil {
			return err
		}
		if err := common.RequireConfirmationOrDryRun(app.Options, "delete"); err != nil {
			return err
		}

		var report model.DeletionReport
		if app.Options.DryRun {
			plan := model.DeletionPlan{
				Pairs:         common.MarkedPairs(pairs),
				PerformBackup: deleteBackup,
				UseSafeDelete: deleteSafe,
				DryRun:        true,
			}
			res := app.Manager.Apply(cmd.Context(), plan)
			report = manager.Report(res, len(plan.Pairs), deleteSafe)
		} else {
			report = app.Manager.PerformDeletion(cmd.Context(), pairs, deleteBackup, deleteSafe)
		}

		result := newResult("delete", started)
		result.Deletion = &report
		result.Summary = summarize(pairs, len(report.Failures))
		if err := printResult(deletionText{result}); err != nil {
			return err
		}
		if report.Status == model.StatusFailure {
			return fmt.Errorf("DELETE_FAILED: %s", report.Message)
		}
		return nil
	},
}

func init() {
	deleteCmd.Flags().StringVar(&deleteMode, "mode", string(model.CompareHash), "Comparison mode used when scanning dir")
	deleteCmd.Flags().StringVar(&deletePairs, "pairs", "", "Saved scan result; only pairs with \"marked\": true are deleted")
	deleteCmd.Flags().BoolVar(&deleteBackup, "backup", false, "Copy each file to the backup store before removing it")
	deleteCmd.Flags().BoolVar(&deleteSafe, "safe", true, "Move files to quarantine instead of unlinking them")
}

func deletionPairs(cmd *cobra.Command, app *common.AppContext, args []string) ([]model.DuplicatePair, error) {
	if deletePairs != "" {
		if len(args) > 0 {
			return nil, errors.New("ARGS_INVALID: pass either a directory or --pairs, not both")
		}
		return loadPairs(deletePairs)
	}
	if len(args) == 0 {
		return nil, errors.New("ARGS_INVALID: a directory or --pairs is required")
	}
	mode, err := model.ParseComparisonType(deleteMode)
	if err != nil {
		return nil, err
	}
	report, err := runScan(cmd.Context(), app.Manager, args[0], mode)
	if err != nil {
		return nil, err
	}
	common.MarkAll(report.Pairs)
	return report.Pairs, nil
}
