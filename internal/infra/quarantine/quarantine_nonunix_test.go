//go:build !unix
// +build !unix

package quarantine

import "duplo/internal/domain/safety"

func zeroIdentity() safety.Identity { return safety.Identity{} }
