package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"duplo/internal/app/common"
	"duplo/internal/app/manager"
	"duplo/internal/domain/model"
)

var (
	scanMode      string
	scanThreshold float64
	scanOut       string
	scanMarkAll   bool
)

var scanCmd = &cobra.Command{
	Use:   "scan <dir>",
	Short: "Find duplicate pairs under a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := common.FromCommand(cmd)
		if err != nil {
			return err
		}
		mode, err := model.ParseComparisonType(scanMode)
		if err != nil {
			return err
		}
		mgr, err := managerFor(app, cmd.Flags().Changed("threshold"), scanThreshold)
		if err != nil {
			return err
		}

		started := time.Now()
		report, err := runScan(cmd.Context(), mgr, args[0], mode)
		if err != nil {
			return err
		}
		if scanMarkAll {
			common.MarkAll(report.Pairs)
		}

		result := newResult("scan", started)
		result.Scan = &report
		result.Summary = summarize(report.Pairs, len(report.Warnings))

		if scanOut != "" {
			if err := writeResultFile(scanOut, result); err != nil {
				return err
			}
		}
		return printResult(scanText{result})
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanMode, "mode", string(model.CompareHash), "Comparison mode: hash, image_visual, code, document, music, empty_file")
	scanCmd.Flags().Float64Var(&scanThreshold, "threshold", 0, "Similarity threshold for fuzzy modes, in (0,1] (default from config)")
	scanCmd.Flags().StringVar(&scanOut, "out", "", "Also write the JSON result to this file, for delete --pairs")
	scanCmd.Flags().BoolVar(&scanMarkAll, "mark-all", false, "Mark pairs for deletion in the result, keeping one file per cluster")
}

func runScan(ctx context.Context, mgr *manager.Manager, root string, mode model.ComparisonType) (model.ScanReport, error) {
	if err := common.ValidateScanRoot(root); err != nil {
		return model.ScanReport{}, err
	}
	return mgr.Scan(ctx, root, mode)
}

// managerFor returns the context's manager, or a fresh one when the threshold
// is overridden on the command line.
func managerFor(app *common.AppContext, override bool, threshold float64) (*manager.Manager, error) {
	if !override {
		return app.Manager, nil
	}
	if threshold <= 0 || threshold > 1 {
		return nil, fmt.Errorf("THRESHOLD_INVALID: %v is outside (0,1]", threshold)
	}
	settings := app.Settings
	settings.Scan.Threshold = threshold
	return manager.New(settings, app.Whitelist, app.Logger), nil
}

// summarize counts distinct victims and the bytes freeing the marked ones
// would reclaim.
func summarize(pairs []model.DuplicatePair, errs int) model.Summary {
	sum := model.Summary{ItemsTotal: len(pairs), Errors: errs}
	seen := make(map[string]struct{})
	for _, p := range pairs {
		if !p.Marked {
			continue
		}
		sum.ItemsSelected++
		if _, ok := seen[p.File2]; ok {
			continue
		}
		seen[p.File2] = struct{}{}
		if st, err := os.Lstat(p.File2); err == nil && st.Mode().IsRegular() {
			sum.ReclaimBytes += st.Size()
		}
	}
	return sum
}

func writeResultFile(path string, result model.CommandResult) error {
	b, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return &model.IOError{Path: path, Op: "write", Err: err}
	}
	return nil
}

// loadPairs reads the pairs of a result written by scan --json or --out.
func loadPairs(path string) ([]model.DuplicatePair, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &model.IOError{Path: path, Op: "read", Err: err}
	}
	var result model.CommandResult
	if err := json.Unmarshal(b, &result); err != nil {
		return nil, &model.IOError{Path: path, Op: "decode", Err: err}
	}
	if result.Scan == nil {
		return nil, &model.IOError{Path: path, Op: "decode", Err: fmt.Errorf("no scan section")}
	}
	return result.Scan.Pairs, nil
}
