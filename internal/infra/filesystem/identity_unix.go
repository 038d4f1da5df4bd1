//go:build unix
// +build unix

package filesystem

import (
	"os"
	"syscall"
)

// statIdentity extracts device and inode so later removals can confirm the
// path still names the scanned file.
func statIdentity(fi os.FileInfo) (dev uint64, ino uint64) {
	if fi == nil {
		return 0, 0
	}
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok || st == nil {
		return 0, 0
	}
	return uint64(st.Dev), uint64(st.Ino)
}
