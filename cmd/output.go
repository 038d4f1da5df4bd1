package cmd

import (
	"fmt"
	"strings"

	"duplo/internal/domain/model"
)

// Text renderings used when --json is not set. JSON output encodes the
// embedded result unchanged.

type scanText struct{ model.CommandResult }

func (r scanText) String() string {
	s := r.Scan
	var b strings.Builder
	fmt.Fprintf(&b, "%s scan of %s: %d pair(s) from %d file(s) (%d compared)\n", s.Mode, s.Root, len(s.Pairs), s.FilesSeen, s.FilesCompared)
	for _, p := range s.Pairs {
		fmt.Fprintf(&b, "  %s %s\n", markBox(p.Marked), pairLine(p))
	}
	if r.Summary.ItemsSelected > 0 {
		fmt.Fprintf(&b, "marked %d, reclaimable %s\n", r.Summary.ItemsSelected, formatBytes(r.Summary.ReclaimBytes))
	}
	for _, w := range s.Warnings {
		fmt.Fprintf(&b, "warning: %s: %s\n", w.Path, w.Error)
	}
	return strings.TrimRight(b.String(), "\n")
}

type deletionText struct{ model.CommandResult }

func (r deletionText) String() string {
	d := r.Deletion
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", d.Status, d.Message)
	if d.OperationID != "" {
		fmt.Fprintf(&b, " (operation %s, run `duplo undo` to revert)", d.OperationID)
	}
	for _, f := range d.Failures {
		fmt.Fprintf(&b, "\n  failed %s: %s", f.Path, f.Reason)
	}
	return b.String()
}

type undoText struct{ model.CommandResult }

func (r undoText) String() string {
	u := r.Undo
	var b strings.Builder
	if u.OK {
		fmt.Fprintf(&b, "restored %d file(s) from operation %s", len(u.Reverted), u.OperationID)
	} else {
		fmt.Fprintf(&b, "undo incomplete: %d restored, %d failed", len(u.Reverted), len(u.Failed))
	}
	for _, p := range u.Reverted {
		fmt.Fprintf(&b, "\n  restored %s", p)
	}
	for _, f := range u.Failed {
		if f.Path == "" {
			fmt.Fprintf(&b, "\n  %s", f.Reason)
			continue
		}
		fmt.Fprintf(&b, "\n  failed %s: %s", f.Path, f.Reason)
	}
	return b.String()
}

type pendingText struct {
	Pending *model.Operation `json:"pending"`
}

func (r pendingText) String() string {
	op := r.Pending
	if op == nil {
		return "nothing to undo"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "undo would restore %d file(s) from operation %s (%s)", len(op.Entries), op.ID, op.Timestamp.Local().Format("2006-01-02 15:04:05"))
	for _, e := range op.Entries {
		fmt.Fprintf(&b, "\n  %s %s", e.Action, e.OriginalPath)
	}
	return b.String()
}

func markBox(marked bool) string {
	if marked {
		return "[x]"
	}
	return "[ ]"
}

func pairLine(p model.DuplicatePair) string {
	if p.ComparisonType.Exact() {
		return fmt.Sprintf("%s == %s", p.File1, p.File2)
	}
	return fmt.Sprintf("%s ~ %s (%.0f%%)", p.File1, p.File2, p.Similarity*100)
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
