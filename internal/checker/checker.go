// Package checker runs a problem-supplied checker program to adjudicate
// output equivalence beyond literal string comparison.
package checker

import (
	"context"
	"encoding/json"
	"strings"

	"judgecore/internal/executor"
	apperrors "judgecore/pkg/errors"
)

const (
	timeLimitMs   = 5000
	memoryLimitMB = 64
)

// payload is the canonical {input, expected, actual} object piped to the
// checker program's stdin.
type payload struct {
	Input    string `json:"input"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// Checker runs checker programs via an Executor.
type Checker struct {
	executor *executor.Executor
}

func New(exec *executor.Executor) *Checker {
	return &Checker{executor: exec}
}

// Check runs checkerCode against (input, expected, actual) and decides
// acceptance from the first non-whitespace token of its stdout.
func (c *Checker) Check(ctx context.Context, submissionID, testID, checkerCode, checkerLang, testInput, expected, actual string) (bool, string) {
	body, err := json.Marshal(payload{Input: testInput, Expected: expected, Actual: actual})
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.CheckerExecutionFailed).Error()
	}

	res := c.executor.Execute(ctx, submissionID, testID+"-checker", checkerLang, checkerCode, string(body), timeLimitMs, memoryLimitMB)
	if res.Verdict != executor.Success {
		return false, apperrors.New(apperrors.CheckerExecutionFailed).Error()
	}

	return decodeVerdict(res.Output), res.Output
}

func decodeVerdict(stdout string) bool {
	fields := strings.Fields(stdout)
	if len(fields) == 0 {
		return false
	}
	return strings.ToUpper(fields[0]) == "ACCEPT"
}
