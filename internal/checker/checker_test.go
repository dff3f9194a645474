package checker

import (
	"context"
	"testing"

	"judgecore/internal/executor"
	"judgecore/internal/profile"
	"judgecore/internal/sandbox/result"
	"judgecore/internal/sandbox/security"
	"judgecore/internal/sandbox/spec"
)

type fakeEngine struct {
	stdout   string
	exitCode int
}

func (f *fakeEngine) Run(ctx context.Context, runSpec spec.RunSpec) (result.RunResult, error) {
	return result.RunResult{ExitCode: f.exitCode, Stdout: f.stdout}, nil
}

func (f *fakeEngine) KillSubmission(ctx context.Context, submissionID string) error { return nil }

type fakeResolver struct{}

func (fakeResolver) Resolve(tag string) (security.IsolationProfile, error) {
	return security.IsolationProfile{}, nil
}

func TestCheck_Accept(t *testing.T) {
	eng := &fakeEngine{stdout: "ACCEPT\n"}
	reg := profile.NewRegistry()
	exec := executor.New(eng, reg, t.TempDir())
	c := New(exec)

	accepted, msg := c.Check(context.Background(), "sub1", "t0", "checker code", "python", "in", "7", " 7 ")
	if !accepted {
		t.Fatalf("expected accepted, got rejected with message %q", msg)
	}
}

func TestCheck_RejectOnNonAcceptToken(t *testing.T) {
	eng := &fakeEngine{stdout: "REJECT close but not equal\n"}
	reg := profile.NewRegistry()
	exec := executor.New(eng, reg, t.TempDir())
	c := New(exec)

	accepted, _ := c.Check(context.Background(), "sub1", "t0", "checker code", "python", "in", "7", "8")
	if accepted {
		t.Fatal("expected rejected")
	}
}

func TestCheck_ExecutionFailure(t *testing.T) {
	eng := &fakeEngine{exitCode: 1, stdout: ""}
	reg := profile.NewRegistry()
	exec := executor.New(eng, reg, t.TempDir())
	c := New(exec)

	accepted, msg := c.Check(context.Background(), "sub1", "t0", "checker code", "python", "in", "7", "7")
	if accepted {
		t.Fatal("expected rejected on checker crash")
	}
	if msg != "Checker execution failed" {
		t.Fatalf("unexpected message: %q", msg)
	}
}
