package model

import (
	"fmt"
	"strings"
	"time"
)

type ComparisonType string

const (
	CompareHash        ComparisonType = "hash"
	CompareImageVisual ComparisonType = "image_visual"
	CompareCode        ComparisonType = "code"
	CompareDocument    ComparisonType = "document"
	CompareMusic       ComparisonType = "music"
	CompareEmptyFile   ComparisonType = "empty_file"
)

var AllComparisonTypes = []ComparisonType{
	CompareHash,
	CompareImageVisual,
	CompareCode,
	CompareDocument,
	CompareMusic,
	CompareEmptyFile,
}

func ParseComparisonType(s string) (ComparisonType, error) {
	v := ComparisonType(strings.ToLower(strings.TrimSpace(s)))
	for _, c := range AllComparisonTypes {
		if v == c {
			return c, nil
		}
	}
	return "", fmt.Errorf("MODE_INVALID: %q is not one of hash, image_visual, code, document, music, empty_file", s)
}

// Exact reports whether pairs of this type always carry similarity 1.0.
func (c ComparisonType) Exact() bool {
	return c == CompareHash || c == CompareEmptyFile
}

type FileRecord struct {
	Path         string    `json:"path"`
	SizeBytes    int64     `json:"size_bytes"`
	LastModified time.Time `json:"last_modified"`
	Dev          uint64    `json:"-"`
	Ino          uint64    `json:"-"`
}

// Signature is the mode-dependent identity of a file. Only the fields relevant
// to Mode are populated.
type Signature struct {
	Mode    ComparisonType
	Digest  string
	Bits    uint64
	Set     []uint64
	MinHash []uint64
	Empty   bool
}

type DuplicatePair struct {
	File1          string         `json:"file1"`
	File2          string         `json:"file2"`
	Similarity     float64        `json:"similarity"`
	ComparisonType ComparisonType `json:"comparison_type"`
	Marked         bool           `json:"marked"`
}

type ScanWarning struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

type ScanReport struct {
	Root          string          `json:"root"`
	Mode          ComparisonType  `json:"mode"`
	FilesSeen     int             `json:"files_seen"`
	FilesCompared int             `json:"files_compared"`
	Pairs         []DuplicatePair `json:"pairs"`
	Warnings      []ScanWarning   `json:"warnings,omitempty"`
}

type DeletionPlan struct {
	Pairs         []DuplicatePair
	PerformBackup bool
	UseSafeDelete bool
	DryRun        bool
}

type EntryAction string

const (
	ActionDeleted     EntryAction = "deleted"
	ActionQuarantined EntryAction = "quarantined"
)

type OperationEntry struct {
	OriginalPath   string      `json:"original_path"`
	BackupPath     string      `json:"backup_path,omitempty"`
	QuarantinePath string      `json:"quarantine_path,omitempty"`
	Action         EntryAction `json:"action"`
	SizeBytes      int64       `json:"size_bytes"`
	Digest         string      `json:"digest,omitempty"`
}

type Operation struct {
	ID        string           `json:"id"`
	Timestamp time.Time        `json:"timestamp"`
	Entries   []OperationEntry `json:"entries"`
	Outcome   DeletionStatus   `json:"outcome"`
}

type DeletionStatus string

const (
	StatusSuccess DeletionStatus = "success"
	StatusPartial DeletionStatus = "partial"
	StatusFailure DeletionStatus = "failure"
)

type Failure struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

type DeletionResult struct {
	OperationID string         `json:"operation_id,omitempty"`
	Status      DeletionStatus `json:"status"`
	Succeeded   []string       `json:"succeeded"`
	Failed      []Failure      `json:"failed"`
	DryRun      bool           `json:"dry_run,omitempty"`
}

type DeletionReport struct {
	Status       DeletionStatus `json:"status"`
	Message      string         `json:"message"`
	SuccessCount int            `json:"success_count"`
	Failures     []Failure      `json:"failures"`
	OperationID  string         `json:"operation_id,omitempty"`
}

type UndoReport struct {
	OperationID string    `json:"operation_id,omitempty"`
	OK          bool      `json:"ok"`
	Reverted    []string  `json:"reverted"`
	Failed      []Failure `json:"failed"`
}

type Summary struct {
	ItemsTotal    int   `json:"items_total"`
	ItemsSelected int   `json:"items_selected"`
	ReclaimBytes  int64 `json:"reclaim_bytes"`
	Errors        int   `json:"errors"`
}

type CommandResult struct {
	SchemaVersion string          `json:"schema_version"`
	Command       string          `json:"command"`
	Timestamp     time.Time       `json:"timestamp"`
	DurationMS    int64           `json:"duration_ms"`
	DryRun        bool            `json:"dry_run,omitempty"`
	Summary       Summary         `json:"summary,omitempty"`
	Scan          *ScanReport     `json:"scan,omitempty"`
	Deletion      *DeletionReport `json:"deletion,omitempty"`
	Undo          *UndoReport     `json:"undo,omitempty"`
}

type OperationLogEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	PlanID     string    `json:"plan_id"`
	Command    string    `json:"command"`
	Action     string    `json:"action"`
	Path       string    `json:"path"`
	Target     string    `json:"target,omitempty"`
	SizeBytes  int64     `json:"size_bytes"`
	Result     string    `json:"result"`
	Error      string    `json:"error"`
	DurationMS int64     `json:"duration_ms"`
	DryRun     bool      `json:"dry_run"`
	UserID     int       `json:"user_id"`
}
