package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"duplo/internal/domain/model"
)

type WalkOptions struct {
	Excludes      []string
	IncludeHidden bool
	MinSizeBytes  int64
	SkipNetworkFS bool
}

type WalkResult struct {
	Root     string
	Files    []model.FileRecord
	Warnings []model.ScanWarning
}

var readMountPointsFunc = readMountPoints

// Walk enumerates regular files under root. Symlinks are never followed and
// unreadable entries become warnings rather than errors. Only a bad root or
// a canceled context fails the walk.
func Walk(ctx context.Context, root string, opts WalkOptions) (WalkResult, error) {
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return WalkResult{}, &model.ScanError{Root: root, Err: err}
	}
	if resolved, err := filepath.EvalSymlinks(rootAbs); err == nil {
		rootAbs = resolved
	}
	st, err := os.Stat(rootAbs)
	if err != nil {
		return WalkResult{}, &model.ScanError{Root: rootAbs, Err: &model.IOError{Path: rootAbs, Op: "stat", Err: err}}
	}
	if !st.IsDir() {
		return WalkResult{}, &model.ScanError{Root: rootAbs, Err: fmt.Errorf("PATH_INVALID: not a directory")}
	}

	var mounts map[string]string
	if opts.SkipNetworkFS {
		mounts, err = readMountPointsFunc()
		if err != nil {
			return WalkResult{}, &model.ScanError{Root: rootAbs, Err: fmt.Errorf("mount metadata unavailable: %w", err)}
		}
	}

	excludes := make([]string, 0, len(opts.Excludes))
	for _, ex := range opts.Excludes {
		if ex == "" {
			continue
		}
		abs, err := filepath.Abs(ex)
		if err != nil {
			continue
		}
		if resolved, err := filepath.EvalSymlinks(abs); err == nil {
			abs = resolved
		}
		excludes = append(excludes, abs)
	}

	res := WalkResult{Root: rootAbs}
	err = filepath.WalkDir(rootAbs, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			if path == rootAbs {
				return walkErr
			}
			res.Warnings = append(res.Warnings, model.ScanWarning{Path: path, Error: walkErr.Error()})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if path != rootAbs && shouldSkip(path, excludes) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path != rootAbs && !opts.IncludeHidden && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != rootAbs && shouldSkipMount(path, rootAbs, opts, mounts) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			res.Warnings = append(res.Warnings, model.ScanWarning{Path: path, Error: err.Error()})
			return nil
		}
		if info.Size() < opts.MinSizeBytes {
			return nil
		}
		dev, ino := statIdentity(info)
		res.Files = append(res.Files, model.FileRecord{
			Path:         path,
			SizeBytes:    info.Size(),
			LastModified: info.ModTime().UTC(),
			Dev:          dev,
			Ino:          ino,
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return WalkResult{}, &model.ScanError{Root: rootAbs, Err: fmt.Errorf("%w: %v", model.ErrCanceled, err)}
		}
		return WalkResult{}, &model.ScanError{Root: rootAbs, Err: &model.IOError{Path: rootAbs, Op: "walk", Err: err}}
	}
	return res, nil
}

func shouldSkip(path string, excludes []string) bool {
	for _, ex := range excludes {
		if withinRoot(path, ex) {
			return true
		}
	}
	return false
}

func shouldSkipMount(path, root string, opts WalkOptions, mounts map[string]string) bool {
	if len(mounts) == 0 {
		return false
	}
	fsType, ok := mounts[filepath.Clean(path)]
	if !ok || !withinRoot(path, root) {
		return false
	}
	return opts.SkipNetworkFS && isNetworkFS(fsType)
}

func withinRoot(path, root string) bool {
	path = filepath.Clean(path)
	root = filepath.Clean(root)
	return path == root || strings.HasPrefix(path, root+string(filepath.Separator))
}

func isNetworkFS(fsType string) bool {
	switch strings.ToLower(fsType) {
	case "nfs", "nfs4", "cifs", "smbfs", "smb3", "sshfs", "fuse.sshfs", "9p", "afs", "ceph", "glusterfs", "fuse.rclone":
		return true
	}
	return false
}

// parseMountInfo maps mount point to filesystem type from /proc/self/mountinfo.
func parseMountInfo(raw string) map[string]string {
	out := map[string]string{}
	for _, line := range strings.Split(raw, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 7 {
			continue
		}
		sep := -1
		for i := 6; i < len(fields); i++ {
			if fields[i] == "-" {
				sep = i
				break
			}
		}
		if sep < 0 || sep+1 >= len(fields) {
			continue
		}
		out[filepath.Clean(decodeMountInfoPath(fields[4]))] = fields[sep+1]
	}
	return out
}

func decodeMountInfoPath(raw string) string {
	r := strings.ReplaceAll(raw, "\\040", " ")
	r = strings.ReplaceAll(r, "\\011", "\t")
	r = strings.ReplaceAll(r, "\\012", "\n")
	r = strings.ReplaceAll(r, "\\134", "\\")
	return r
}
