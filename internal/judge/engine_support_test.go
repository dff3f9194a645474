package judge

import (
	"context"

	"judgecore/internal/profile"
	"judgecore/internal/sandbox/result"
	"judgecore/internal/sandbox/spec"
)

// stubEngine always returns a zero-exit run with the given stdout, enough
// to drive the judge pipeline through the executor/checker without a real
// sandbox.
type stubEngine struct {
	stdout string
}

func (e *stubEngine) Run(ctx context.Context, runSpec spec.RunSpec) (result.RunResult, error) {
	return result.RunResult{ExitCode: 0, Stdout: e.stdout}, nil
}

func (e *stubEngine) KillSubmission(ctx context.Context, submissionID string) error { return nil }

func testRegistry() *profile.Registry {
	return profile.NewRegistry()
}
