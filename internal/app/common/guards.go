package common

import (
	"fmt"
	"os"
	"strings"

	"duplo/internal/domain/model"
)

func RequireConfirmationOrDryRun(opts GlobalOptions, action string) error {
	if opts.DryRun || opts.Yes {
		return nil
	}
	return fmt.Errorf("confirmation required for %s: use --yes or --dry-run", action)
}

// ValidateScanRoot rejects roots that cannot be walked before a scan starts.
func ValidateScanRoot(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("PATH_INVALID: empty scan root")
	}
	st, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("PATH_INVALID: %w", err)
	}
	if !st.IsDir() {
		return fmt.Errorf("PATH_INVALID: %s is not a directory", path)
	}
	return nil
}

// MarkedPairs returns the pairs selected for deletion.
func MarkedPairs(pairs []model.DuplicatePair) []model.DuplicatePair {
	out := make([]model.DuplicatePair, 0, len(pairs))
	for _, p := range pairs {
		if p.Marked {
			out = append(out, p)
		}
	}
	return out
}

// MarkAll marks every pair that can still be applied after the pairs marked
// before it. A file already chosen for removal is never a keeper or a victim
// again, and a keeper is never removed, so each similarity cluster keeps its
// first file. Exact-mode stars are marked in full. Pairs must be sorted.
func MarkAll(pairs []model.DuplicatePair) {
	removed := make(map[string]struct{})
	keepers := make(map[string]struct{})
	for i := range pairs {
		p := &pairs[i]
		_, keeperGone := removed[p.File1]
		_, victimGone := removed[p.File2]
		_, victimKept := keepers[p.File2]
		p.Marked = !keeperGone && !victimGone && !victimKept
		if p.Marked {
			removed[p.File2] = struct{}{}
			keepers[p.File1] = struct{}{}
		}
	}
}
