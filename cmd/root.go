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
	"duplo/internal/infra/config"
	"duplo/internal/infra/logging"
)

var (
	opts    common.GlobalOptions
	// current is the context built for this run, closed after Execute.
	current *common.AppContext
)

var rootCmd = &cobra.Command{
	Use:           "duplo",
	Short:         "Duplo finds duplicate files and removes them reversibly",
	Long:          "Duplo scans a directory for exact or similar duplicates (hash, image, code, document, music, empty files), deletes or quarantines the copies you mark, and can undo the last deletion.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if shouldUseInteractive(fileMode(os.Stdin), fileMode(os.Stdout), os.Getenv("TERM")) {
			return runInteractiveMenu()
		}
		return cmd.Help()
	},
}

func Execute() error {
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		appCtx, err := buildAppContext(ctx)
		if err != nil {
			return err
		}
		current = appCtx
		cmd.SetContext(context.WithValue(ctx, common.ContextKeyApp, appCtx))
		return nil
	}

	err := rootCmd.Execute()
	closeAppContext()
	return err
}

// closeAppContext releases the operation log and diagnostic log files.
// Close errors are reported on stderr and never mask the command's error.
func closeAppContext() {
	if current != nil && current.Logger != nil {
		if err := current.Logger.Close(); err != nil {
			fmt.Fprintln(os.Stderr, "close operation log:", err)
		}
		current = nil
	}
	if err := logging.Close(); err != nil {
		fmt.Fprintln(os.Stderr, "close log file:", err)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&opts.DryRun, "dry-run", false, "Preview actions without modifying files")
	rootCmd.PersistentFlags().BoolVar(&opts.Debug, "debug", false, "Enable debug output")
	rootCmd.PersistentFlags().BoolVar(&opts.Yes, "yes", false, "Auto-confirm actions in non-interactive mode")
	rootCmd.PersistentFlags().BoolVar(&opts.JSON, "json", false, "Output as JSON")
	rootCmd.PersistentFlags().BoolVar(&opts.NoOpLog, "no-oplog", false, "Disable operation log")
	rootCmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "Config file (default $XDG_CONFIG_HOME/duplo/config.yaml)")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(undoCmd)
	rootCmd.AddCommand(reviewCmd)
}

func printResult(v any) error {
	if opts.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	if line, ok := v.(fmt.Stringer); ok {
		fmt.Println(line.String())
		return nil
	}

	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func newResult(command string, started time.Time) model.CommandResult {
	return model.CommandResult{
		SchemaVersion: "1.0",
		Command:       command,
		Timestamp:     started.UTC(),
		DurationMS:    time.Since(started).Milliseconds(),
		DryRun:        opts.DryRun,
	}
}

func buildAppContext(ctx context.Context) (*common.AppContext, error) {
	settings, err := config.Load(opts.ConfigFile)
	if err != nil {
		return nil, err
	}

	level := settings.Logging.Level
	if opts.Debug {
		level = "debug"
	}
	if err := logging.Init(level, settings.Logging.File); err != nil {
		return nil, fmt.Errorf("CONFIG_INVALID: logging.file: %w", err)
	}

	store := config.NewStore()
	whitelist, err := store.LoadWhitelist(ctx)
	if err != nil {
		return nil, err
	}

	oplogDisabled := opts.NoOpLog || os.Getenv("DUPLO_NO_OPLOG") == "1"
	oplog, err := logging.NewOperationLogger(ctx, "", oplogDisabled)
	if err != nil {
		logging.Get().Warn().Err(err).Msg("operation log unavailable")
		oplog = logging.NewNoopLogger()
	}

	logging.Get().Debug().
		Str("data_dir", settings.Storage.DataDir).
		Float64("threshold", settings.Scan.Threshold).
		Int("workers", settings.Scan.Workers).
		Msg("settings loaded")

	return &common.AppContext{
		Options:   opts,
		Settings:  settings,
		Whitelist: whitelist,
		Logger:    oplog,
		Manager:   manager.New(settings, whitelist, oplog),
	}, nil
}
