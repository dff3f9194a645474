// Package executor orchestrates a single compile-then-run cycle through the
// sandbox engine, turning a raw RunResult into a typed, judge-facing verdict.
package executor

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"judgecore/internal/profile"
	"judgecore/internal/sandbox/engine"
	"judgecore/internal/sandbox/result"
	"judgecore/internal/sandbox/spec"
	apperrors "judgecore/pkg/errors"
)

// Verdict is the outcome of one execute() call, distinct from the
// submission-level verdict alphabet: it never includes AC/WA, since
// correctness is decided by the caller after comparing output.
type Verdict string

const (
	Success Verdict = "SUCCESS"
	CE      Verdict = "CE"
	RE      Verdict = "RE"
	TLE     Verdict = "TLE"
	MLE     Verdict = "MLE"
)

// Result is the typed outcome C3 hands back to the judge pipeline.
type Result struct {
	Verdict       Verdict
	Output        string
	Error         string
	ExecutionTime int64 // ms
	MemoryUsed    int64 // kb
}

const (
	compileTimeoutMs    = 30000
	stdoutHardCapBytes  = 1 << 20 // 1 MiB
	stderrTruncateBytes = 64 << 10
	mleExitThreshold    = 0.95
)

// Executor runs compile+run cycles via a sandbox Engine using profiles from
// a language Registry.
type Executor struct {
	engine   engine.Engine
	registry *profile.Registry
	baseDir  string
}

func New(eng engine.Engine, registry *profile.Registry, baseDir string) *Executor {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &Executor{engine: eng, registry: registry, baseDir: baseDir}
}

// Execute implements the C3 algorithm: resolve profile, materialize a
// working directory, optionally compile, run, then classify the outcome.
func (x *Executor) Execute(ctx context.Context, submissionID, testID, language, code, stdin string, timeLimitMs, memoryLimitMB int64) Result {
	p, ok := x.registry.Resolve(language)
	if !ok {
		return Result{Verdict: CE, Error: apperrors.New(apperrors.LanguageNotSupported).Error()}
	}

	workDir, err := os.MkdirTemp(x.baseDir, "run-*")
	if err != nil {
		return Result{Verdict: RE, Error: apperrors.Internal(err).Error()}
	}
	defer os.RemoveAll(workDir)

	sourcePath := filepath.Join(workDir, p.SourceFile)
	if err := os.WriteFile(sourcePath, []byte(code), 0644); err != nil {
		return Result{Verdict: RE, Error: apperrors.Internal(err).Error()}
	}
	inputPath := filepath.Join(workDir, "input.txt")
	if err := os.WriteFile(inputPath, []byte(stdin), 0644); err != nil {
		return Result{Verdict: RE, Error: apperrors.Internal(err).Error()}
	}

	if len(p.CompileCmd) > 0 {
		compileLimits := spec.ResourceLimit{
			CPUTimeMs:  compileTimeoutMs,
			WallTimeMs: compileTimeoutMs,
			MemoryMB:   memoryLimitMB,
			OutputMB:   16,
			PIDs:       50,
		}
		compileRun := spec.RunSpec{
			SubmissionID: submissionID,
			TestID:       testID + "-compile",
			WorkDir:      workDir,
			Cmd:          p.CompileCmd,
			Profile:      p.Tag,
			BindMounts:   []spec.MountSpec{{Source: workDir, Target: workDir}},
			Limits:       compileLimits,
		}
		compileResult, err := x.engine.Run(ctx, compileRun)
		if err != nil {
			return Result{Verdict: RE, Error: apperrors.Wrap(err, apperrors.SandboxStartFailed).Error()}
		}
		if compileResult.InfraError != "" {
			return Result{Verdict: RE, Error: apperrors.Infra(apperrors.SandboxInfraError, compileResult.InfraError).Error()}
		}
		if compileResult.ExitCode != 0 {
			return Result{Verdict: CE, Error: apperrors.Newf(apperrors.CompilationFailed, "%s", truncate(compileResult.Stderr, stderrTruncateBytes)).Error()}
		}
	}

	runSpec := spec.RunSpec{
		SubmissionID: submissionID,
		TestID:       testID,
		WorkDir:      workDir,
		Cmd:          p.RunCmd,
		Profile:      p.Tag,
		StdinPath:    inputPath,
		StdoutPath:   filepath.Join(workDir, "stdout.txt"),
		StderrPath:   filepath.Join(workDir, "stderr.txt"),
		BindMounts:   []spec.MountSpec{{Source: workDir, Target: workDir}},
		Limits: spec.ResourceLimit{
			CPUTimeMs:  timeLimitMs,
			WallTimeMs: timeLimitMs,
			MemoryMB:   memoryLimitMB,
			StackMB:    memoryLimitMB,
			OutputMB:   16,
			PIDs:       50,
		},
	}

	runResult, err := x.engine.Run(ctx, runSpec)
	if err != nil {
		return Result{Verdict: RE, Error: apperrors.Wrap(err, apperrors.SandboxStartFailed).Error()}
	}
	return classify(runResult, timeLimitMs, memoryLimitMB)
}

// classify turns a raw sandbox RunResult into a typed Result, implementing
// the C3 step 5 decision tree (timeout → TLE, OOM-adjacent non-zero exit →
// MLE preferred over RE, zero exit → SUCCESS, else RE).
func classify(r result.RunResult, timeLimitMs, memoryLimitMB int64) Result {
	if r.InfraError != "" {
		return Result{Verdict: RE, Error: apperrors.Infra(apperrors.SandboxInfraError, r.InfraError).Error(), ExecutionTime: r.TimeMs, MemoryUsed: r.MemoryKB}
	}
	if r.TimedOut {
		return Result{Verdict: TLE, ExecutionTime: timeLimitMs, MemoryUsed: r.MemoryKB}
	}

	memoryLimitKB := memoryLimitMB * 1024
	overLimit := memoryLimitKB > 0 && r.MemoryKB > memoryLimitKB
	nearLimit := memoryLimitKB > 0 && float64(r.MemoryKB) >= float64(memoryLimitKB)*mleExitThreshold

	if r.ExitCode == 0 {
		if overLimit {
			return Result{Verdict: MLE, ExecutionTime: r.TimeMs, MemoryUsed: r.MemoryKB}
		}
		return Result{Verdict: Success, Output: trimOutput(r.Stdout, stdoutHardCapBytes), ExecutionTime: r.TimeMs, MemoryUsed: r.MemoryKB}
	}

	if r.OomKilled || overLimit || nearLimit {
		return Result{Verdict: MLE, ExecutionTime: r.TimeMs, MemoryUsed: r.MemoryKB}
	}
	return Result{Verdict: RE, Error: truncate(r.Stderr, stderrTruncateBytes), ExecutionTime: r.TimeMs, MemoryUsed: r.MemoryKB}
}

func trimOutput(output string, capBytes int) string {
	if len(output) > capBytes {
		output = output[:capBytes]
	}
	return strings.TrimRight(strings.TrimLeft(output, " \t\r\n"), " \t\r\n")
}

func truncate(s string, capBytes int) string {
	if len(s) > capBytes {
		return s[:capBytes]
	}
	return s
}
