package judge

import (
	"context"
	"testing"

	"judgecore/internal/checker"
	"judgecore/internal/executor"
	"judgecore/internal/store"
)

type fakeSubmissions struct {
	submission store.Submission
	claimed    bool
	finishArgs struct {
		verdict store.Verdict
		passed  int
		total   int
		output  []store.TestResult
	}
}

func (f *fakeSubmissions) ClaimForJudging(ctx context.Context, submissionID string) (store.Submission, bool, error) {
	return f.submission, f.claimed, nil
}

func (f *fakeSubmissions) Finish(ctx context.Context, submissionID string, verdict store.Verdict, execTimeMs, memKB int64, passed, total int, output []store.TestResult) error {
	f.finishArgs.verdict = verdict
	f.finishArgs.passed = passed
	f.finishArgs.total = total
	f.finishArgs.output = output
	return nil
}

type fakeProblems struct {
	problem store.Problem
	found   bool
}

func (f *fakeProblems) GetByID(ctx context.Context, problemID string) (store.Problem, bool, error) {
	return f.problem, f.found, nil
}

func TestJudge_AllTestsPass_AC(t *testing.T) {
	submissions := &fakeSubmissions{
		submission: store.Submission{ID: "s1", ProblemID: "p1", Language: "python", Code: "print('Hello')"},
		claimed:    true,
	}
	problems := &fakeProblems{
		problem: store.Problem{
			ID:            "p1",
			TimeLimitMs:   1000,
			MemoryLimitMB: 64,
			TestCases: []store.TestCase{
				{Input: "", ExpectedOutput: "Hello"},
			},
		},
		found: true,
	}

	eng := &stubEngine{stdout: "Hello\n"}
	reg := testRegistry()
	exec := executor.New(eng, reg, t.TempDir())
	check := checker.New(exec)

	p := New(submissions, problems, exec, check)
	if err := p.Judge(context.Background(), "s1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if submissions.finishArgs.verdict != store.AC {
		t.Fatalf("expected AC, got %s", submissions.finishArgs.verdict)
	}
	if submissions.finishArgs.passed != 1 || submissions.finishArgs.total != 1 {
		t.Fatalf("expected 1/1 passed, got %d/%d", submissions.finishArgs.passed, submissions.finishArgs.total)
	}
}

func TestJudge_WrongAnswer_StopsEarly(t *testing.T) {
	submissions := &fakeSubmissions{
		submission: store.Submission{ID: "s1", ProblemID: "p1", Language: "python", Code: "print('43')"},
		claimed:    true,
	}
	problems := &fakeProblems{
		problem: store.Problem{
			ID:            "p1",
			TimeLimitMs:   1000,
			MemoryLimitMB: 64,
			TestCases: []store.TestCase{
				{Input: "", ExpectedOutput: "42"},
				{Input: "", ExpectedOutput: "99"},
			},
		},
		found: true,
	}

	eng := &stubEngine{stdout: "43\n"}
	reg := testRegistry()
	exec := executor.New(eng, reg, t.TempDir())
	check := checker.New(exec)

	p := New(submissions, problems, exec, check)
	if err := p.Judge(context.Background(), "s1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if submissions.finishArgs.verdict != store.WA {
		t.Fatalf("expected WA, got %s", submissions.finishArgs.verdict)
	}
	if len(submissions.finishArgs.output) != 1 {
		t.Fatalf("expected early stop after 1 test, got %d records", len(submissions.finishArgs.output))
	}
}

func TestJudge_NotClaimed_DropsSilently(t *testing.T) {
	submissions := &fakeSubmissions{claimed: false}
	problems := &fakeProblems{}
	reg := testRegistry()
	exec := executor.New(&stubEngine{}, reg, t.TempDir())
	check := checker.New(exec)

	p := New(submissions, problems, exec, check)
	if err := p.Judge(context.Background(), "s1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if submissions.finishArgs.verdict != "" {
		t.Fatalf("expected no Finish call on redelivered job, got verdict %s", submissions.finishArgs.verdict)
	}
}

func TestJudge_ProblemNotFound_RecordsRE(t *testing.T) {
	submissions := &fakeSubmissions{
		submission: store.Submission{ID: "s1", ProblemID: "missing"},
		claimed:    true,
	}
	problems := &fakeProblems{found: false}
	reg := testRegistry()
	exec := executor.New(&stubEngine{}, reg, t.TempDir())
	check := checker.New(exec)

	p := New(submissions, problems, exec, check)
	if err := p.Judge(context.Background(), "s1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if submissions.finishArgs.verdict != store.RE {
		t.Fatalf("expected RE, got %s", submissions.finishArgs.verdict)
	}
}

func TestAggregate_PriorityOrder(t *testing.T) {
	results := []store.TestResult{
		{Verdict: store.WA},
		{Verdict: store.TLE},
		{Verdict: store.RE},
	}
	if got := aggregate(0, 3, results); got != store.TLE {
		t.Fatalf("expected TLE to win priority over WA/RE, got %s", got)
	}
}
