//go:build !linux

package engine

import (
	"context"
	"fmt"

	"judgecore/internal/sandbox/result"
	"judgecore/internal/sandbox/spec"
)

type stubEngine struct{}

// NewEngine on non-Linux platforms refuses to run rather than silently
// degrading isolation. The namespace/cgroup/seccomp backend is Linux-only.
func NewEngine(cfg Config, resolver ProfileResolver) (Engine, error) {
	return stubEngine{}, nil
}

func (stubEngine) Run(ctx context.Context, runSpec spec.RunSpec) (result.RunResult, error) {
	return result.RunResult{}, fmt.Errorf("sandbox engine: only supported on linux")
}

func (stubEngine) KillSubmission(ctx context.Context, submissionID string) error {
	return fmt.Errorf("sandbox engine: only supported on linux")
}
