package engine

import (
	"judgecore/internal/sandbox/security"
	"judgecore/internal/sandbox/spec"
)

// InitRequest is the JSON payload piped to the sandbox-init helper over its
// stdin. It is exported so cmd/sandbox-init can decode it directly rather
// than keeping a second, hand-duplicated copy of the same shape in sync.
type InitRequest struct {
	RunSpec       spec.RunSpec
	Isolation     security.IsolationProfile
	EnableSeccomp bool
	EnableNs      bool
	WorkdirTmpfsMB int64
}
