package executor

import (
	"context"
	"testing"

	"judgecore/internal/profile"
	"judgecore/internal/sandbox/result"
	"judgecore/internal/sandbox/security"
	"judgecore/internal/sandbox/spec"
)

type fakeEngine struct {
	results []result.RunResult
	errs    []error
	calls   int
}

func (f *fakeEngine) Run(ctx context.Context, runSpec spec.RunSpec) (result.RunResult, error) {
	i := f.calls
	f.calls++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if i < len(f.results) {
		return f.results[i], err
	}
	return result.RunResult{}, err
}

func (f *fakeEngine) KillSubmission(ctx context.Context, submissionID string) error { return nil }

type fakeResolver struct{}

func (fakeResolver) Resolve(tag string) (security.IsolationProfile, error) {
	return security.IsolationProfile{}, nil
}

func TestExecute_UnsupportedLanguage(t *testing.T) {
	reg := profile.NewRegistry()
	x := New(&fakeEngine{}, reg, t.TempDir())

	res := x.Execute(context.Background(), "sub1", "t0", "rust", "fn main() {}", "", 1000, 64)
	if res.Verdict != CE {
		t.Fatalf("expected CE, got %s", res.Verdict)
	}
	if res.Error != "Unsupported language" {
		t.Fatalf("unexpected message: %q", res.Error)
	}
}

func TestExecute_Success(t *testing.T) {
	reg := profile.NewRegistry()
	eng := &fakeEngine{results: []result.RunResult{
		{ExitCode: 0, Stdout: "Hello\n", TimeMs: 10, MemoryKB: 1024},
	}}
	x := New(eng, reg, t.TempDir())

	res := x.Execute(context.Background(), "sub1", "t0", "python", "print('Hello')", "", 1000, 64)
	if res.Verdict != Success {
		t.Fatalf("expected SUCCESS, got %s: %s", res.Verdict, res.Error)
	}
	if res.Output != "Hello" {
		t.Fatalf("expected trimmed output 'Hello', got %q", res.Output)
	}
}

func TestExecute_TimedOut(t *testing.T) {
	reg := profile.NewRegistry()
	eng := &fakeEngine{results: []result.RunResult{
		{TimedOut: true, MemoryKB: 512},
	}}
	x := New(eng, reg, t.TempDir())

	res := x.Execute(context.Background(), "sub1", "t0", "python", "while True: pass", "", 500, 64)
	if res.Verdict != TLE {
		t.Fatalf("expected TLE, got %s", res.Verdict)
	}
	if res.ExecutionTime != 500 {
		t.Fatalf("expected execution time to equal the limit, got %d", res.ExecutionTime)
	}
}

func TestExecute_MemoryLimitExceeded(t *testing.T) {
	reg := profile.NewRegistry()
	eng := &fakeEngine{results: []result.RunResult{
		{ExitCode: 0, MemoryKB: 64*1024 + 1},
	}}
	x := New(eng, reg, t.TempDir())

	res := x.Execute(context.Background(), "sub1", "t0", "python", "x = []\nwhile True: x.append(1)", "", 1000, 64)
	if res.Verdict != MLE {
		t.Fatalf("expected MLE, got %s", res.Verdict)
	}
}

func TestExecute_RuntimeErrorPrefersMLEWhenNearCap(t *testing.T) {
	reg := profile.NewRegistry()
	eng := &fakeEngine{results: []result.RunResult{
		{ExitCode: 1, MemoryKB: int64(float64(64*1024) * 0.97), Stderr: "killed"},
	}}
	x := New(eng, reg, t.TempDir())

	res := x.Execute(context.Background(), "sub1", "t0", "c", "int main(){}", "", 1000, 64)
	if res.Verdict != MLE {
		t.Fatalf("expected MLE preferred over RE at near-cap memory, got %s", res.Verdict)
	}
}

func TestExecute_CompileFailure(t *testing.T) {
	reg := profile.NewRegistry()
	eng := &fakeEngine{results: []result.RunResult{
		{ExitCode: 1, Stderr: "syntax error"},
	}}
	x := New(eng, reg, t.TempDir())

	res := x.Execute(context.Background(), "sub1", "t0", "c", "int main(", "", 1000, 64)
	if res.Verdict != CE {
		t.Fatalf("expected CE, got %s", res.Verdict)
	}
	if res.Error != "syntax error" {
		t.Fatalf("expected compiler stderr, got %q", res.Error)
	}
}
