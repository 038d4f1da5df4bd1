package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"duplo/internal/app/common"
	"duplo/internal/domain/model"
)

var undoCmd = &cobra.Command{
	Use:   "undo",
	Short: "Revert the last deletion",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := common.FromCommand(cmd)
		if err != nil {
			return err
		}
		started := time.Now()

		if app.Options.DryRun {
			return printResult(pendingText{Pending: app.Manager.PendingUndo()})
		}

		report := app.Manager.Undo(cmd.Context())
		result := newResult("undo", started)
		result.Undo = &report
		result.Summary = model.Summary{
			ItemsTotal:    len(report.Reverted) + len(report.Failed),
			ItemsSelected: len(report.Reverted),
			Errors:        len(report.Failed),
		}
		if err := printResult(undoText{result}); err != nil {
			return err
		}
		if !report.OK {
			return undoError(report)
		}
		return nil
	},
}

func undoError(report model.UndoReport) error {
	if report.OperationID == "" && len(report.Failed) == 1 {
		return errors.New(report.Failed[0].Reason)
	}
	return fmt.Errorf("UNDO_FAILED: %d of %d entries not reverted", len(report.Failed), len(report.Failed)+len(report.Reverted))
}
