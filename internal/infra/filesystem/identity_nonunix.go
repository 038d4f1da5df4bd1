//go:build !unix
// +build !unix

package filesystem

import "os"

// statIdentity has no inode notion off unix; identity checks are skipped.
func statIdentity(os.FileInfo) (uint64, uint64) { return 0, 0 }
