// Package judge implements the per-submission judging pipeline: pull
// problem + test cases, run each through the executor and (optionally) the
// checker, maintain the aggregate verdict, stop early on the first non-AC,
// and persist the final result.
package judge

import (
	"context"
	"strconv"
	"strings"

	"judgecore/internal/checker"
	"judgecore/internal/executor"
	"judgecore/internal/store"
	apperrors "judgecore/pkg/errors"
	"judgecore/pkg/logger"

	"go.uber.org/zap"
)

// verdictPriority ranks non-AC outcomes worst-first, matching CE > TLE >
// MLE > RE > WA. Lower number wins a tie when aggregating across tests.
var verdictPriority = map[store.Verdict]int{
	store.CE:  0,
	store.TLE: 1,
	store.MLE: 2,
	store.RE:  3,
	store.WA:  4,
}

// Pipeline runs C5 for each dispatched job.
type Pipeline struct {
	submissions store.SubmissionRepository
	problems    store.ProblemRepository
	executor    *executor.Executor
	checker     *checker.Checker
}

func New(submissions store.SubmissionRepository, problems store.ProblemRepository, exec *executor.Executor, check *checker.Checker) *Pipeline {
	return &Pipeline{submissions: submissions, problems: problems, executor: exec, checker: check}
}

// Judge runs the full per-submission algorithm for submissionID. It never
// returns an error for a judgement outcome (CE/RE/TLE/MLE/WA are recorded on
// the submission, not surfaced as Go errors); it returns an error only for
// an unrecoverable problem with claiming or persisting the row, which the
// caller logs and treats as a dropped job.
func (p *Pipeline) Judge(ctx context.Context, submissionID string) error {
	submission, claimed, err := p.submissions.ClaimForJudging(ctx, submissionID)
	if err != nil {
		return apperrors.Wrap(err, apperrors.DatabaseError)
	}
	if !claimed {
		logger.Info(ctx, "submission missing or already terminal, dropping redelivered job", zap.String("submission_id", submissionID))
		return nil
	}

	problem, found, err := p.problems.GetByID(ctx, submission.ProblemID)
	if err != nil {
		notFoundErr := apperrors.Wrap(err, apperrors.ProblemNotFound)
		logger.Error(ctx, "load problem failed", zap.String("submission_id", submissionID), zap.Error(notFoundErr), zap.Int("error_code", int(apperrors.GetCode(notFoundErr))))
		return p.submissions.Finish(ctx, submissionID, store.RE, 0, 0, 0, 0, []store.TestResult{{Verdict: store.RE, Message: apperrors.NotFoundErr("problem").Error()}})
	}
	if !found {
		return p.submissions.Finish(ctx, submissionID, store.RE, 0, 0, 0, 0, []store.TestResult{{Verdict: store.RE, Message: apperrors.NotFoundErr("problem").Error()}})
	}

	var (
		maxTime   int64
		maxMemory int64
		results   []store.TestResult
		passed    int
	)

	total := len(problem.TestCases)
	for i, tc := range problem.TestCases {
		testID := submissionID + "-" + strconv.Itoa(i)

		execResult := p.executor.Execute(ctx, submissionID, testID, submission.Language, submission.Code, tc.Input, problem.TimeLimitMs, problem.MemoryLimitMB)
		if execResult.ExecutionTime > maxTime {
			maxTime = execResult.ExecutionTime
		}
		if execResult.MemoryUsed > maxMemory {
			maxMemory = execResult.MemoryUsed
		}

		if execResult.Verdict != executor.Success {
			results = append(results, store.TestResult{
				Verdict:  store.Verdict(execResult.Verdict),
				TimeMs:   execResult.ExecutionTime,
				MemoryKB: execResult.MemoryUsed,
				Message:  execResult.Error,
			})
			break
		}

		accepted, checkerMsg := p.compare(ctx, submission, testID, problem, tc, execResult.Output)
		if accepted {
			passed++
			results = append(results, store.TestResult{
				Verdict:  store.AC,
				TimeMs:   execResult.ExecutionTime,
				MemoryKB: execResult.MemoryUsed,
			})
			continue
		}

		results = append(results, store.TestResult{
			Verdict:    store.WA,
			TimeMs:     execResult.ExecutionTime,
			MemoryKB:   execResult.MemoryUsed,
			CheckerMsg: checkerMsg,
		})
		break
	}

	verdict := aggregate(passed, total, results)
	return p.submissions.Finish(ctx, submissionID, verdict, maxTime, maxMemory, passed, total, results)
}

func (p *Pipeline) compare(ctx context.Context, submission store.Submission, testID string, problem store.Problem, tc store.TestCase, actual string) (bool, string) {
	if problem.CheckerCode == "" {
		return strings.Trim(actual, " \t\r\n") == strings.Trim(tc.ExpectedOutput, " \t\r\n"), ""
	}
	accepted, message := p.checker.Check(ctx, submission.ID, testID, problem.CheckerCode, problem.CheckerLanguage, tc.Input, tc.ExpectedOutput, actual)
	return accepted, message
}

// aggregate picks AC when every test passed, otherwise the worst verdict
// among recorded results by the CE > TLE > MLE > RE > WA priority order.
func aggregate(passed, total int, results []store.TestResult) store.Verdict {
	if passed == total {
		return store.AC
	}
	worst := results[len(results)-1].Verdict
	worstRank := verdictPriority[worst]
	for _, r := range results {
		if rank, ok := verdictPriority[r.Verdict]; ok && rank < worstRank {
			worst = r.Verdict
			worstRank = rank
		}
	}
	return worst
}
