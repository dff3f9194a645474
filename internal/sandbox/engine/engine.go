// Package engine drives one sandboxed process invocation: namespace and
// cgroup setup, a re-exec'd init helper, wall-clock enforcement, and
// resource accounting. It is the sole component that talks to the kernel's
// isolation primitives; everything above it deals only in spec.RunSpec and
// result.RunResult.
package engine

import (
	"context"

	"judgecore/internal/sandbox/result"
	"judgecore/internal/sandbox/security"
	"judgecore/internal/sandbox/spec"
)

// Engine executes a RunSpec inside an isolated sandbox and reports the raw
// outcome. A helper that fails to start or dies with its own diagnostic is
// reported in RunResult.InfraError with a nil error. Run returns a Go error
// for a malformed RunSpec, an unresolvable profile, or a cgroup setup
// failure; the executor maps both paths to RE.
type Engine interface {
	Run(ctx context.Context, runSpec spec.RunSpec) (result.RunResult, error)
	KillSubmission(ctx context.Context, submissionID string) error
}

// ProfileResolver resolves a profile name into an isolation profile.
type ProfileResolver interface {
	Resolve(profile string) (security.IsolationProfile, error)
}
