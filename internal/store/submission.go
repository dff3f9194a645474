// Package store implements the submission and problem repositories the
// judge pipeline reads from and writes to.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"judgecore/internal/db"
)

// Verdict is the submission-level verdict alphabet.
type Verdict string

const (
	Pending Verdict = "PENDING"
	Judging Verdict = "JUDGING"
	AC      Verdict = "AC"
	WA      Verdict = "WA"
	TLE     Verdict = "TLE"
	MLE     Verdict = "MLE"
	RE      Verdict = "RE"
	CE      Verdict = "CE"
)

// TestResult is one entry in a submission's judge_output.
type TestResult struct {
	Verdict    Verdict `json:"verdict"`
	TimeMs     int64   `json:"time_ms"`
	MemoryKB   int64   `json:"memory_kb"`
	Message    string  `json:"message,omitempty"`
	CheckerMsg string  `json:"checker_message,omitempty"`
}

// Submission is the persistent judge-facing record.
type Submission struct {
	ID               string
	ProblemID        string
	UserID           string
	Language         string
	Code             string
	Verdict          Verdict
	ExecutionTimeMs  int64
	MemoryUsedKB     int64
	TestCasesPassed  int
	TotalTestCases   int
	JudgeOutput      []TestResult
	SubmittedAt      time.Time
	JudgedAt         *time.Time
}

// SubmissionRepository reads and mutates submission rows.
type SubmissionRepository interface {
	// ClaimForJudging atomically transitions a row from PENDING to JUDGING,
	// or reclaims a row already in JUDGING, returning ok=false if the row is
	// missing or terminal (redelivery of an already-judged job).
	ClaimForJudging(ctx context.Context, submissionID string) (Submission, bool, error)
	Finish(ctx context.Context, submissionID string, verdict Verdict, execTimeMs, memKB int64, passed, total int, output []TestResult) error
}

type mysqlSubmissionRepository struct {
	database db.Database
}

func NewSubmissionRepository(database db.Database) SubmissionRepository {
	return &mysqlSubmissionRepository{database: database}
}

func (r *mysqlSubmissionRepository) ClaimForJudging(ctx context.Context, submissionID string) (Submission, bool, error) {
	var s Submission
	claimed := false

	err := r.database.Transaction(ctx, func(tx db.Transaction) error {
		row := tx.QueryRow(ctx, `
			SELECT id, problem_id, user_id, language, code, verdict, submitted_at
			FROM submissions WHERE id = ? FOR UPDATE`, submissionID)

		var verdict string
		if err := row.Scan(&s.ID, &s.ProblemID, &s.UserID, &s.Language, &s.Code, &verdict, &s.SubmittedAt); err != nil {
			if db.IsNoRows(err) {
				return nil
			}
			return fmt.Errorf("load submission: %w", err)
		}
		s.Verdict = Verdict(verdict)

		if s.Verdict == Judging {
			// Left in JUDGING by a worker that died mid-run: reclaim it, and
			// Finish overwrites the row (last writer wins).
			claimed = true
			return nil
		}
		if s.Verdict != Pending {
			// Terminal: redelivery of an already-judged job, drop silently.
			return nil
		}

		res, err := tx.Exec(ctx, `UPDATE submissions SET verdict = ? WHERE id = ? AND verdict = ?`, string(Judging), submissionID, string(Pending))
		if err != nil {
			return fmt.Errorf("claim submission: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("claim submission rows affected: %w", err)
		}
		if affected == 1 {
			s.Verdict = Judging
			claimed = true
		}
		return nil
	})
	if err != nil {
		return Submission{}, false, err
	}
	return s, claimed, nil
}

func (r *mysqlSubmissionRepository) Finish(ctx context.Context, submissionID string, verdict Verdict, execTimeMs, memKB int64, passed, total int, output []TestResult) error {
	encoded, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("encode judge output: %w", err)
	}
	_, err = r.database.Exec(ctx, `
		UPDATE submissions
		SET verdict = ?, execution_time = ?, memory_used = ?, test_cases_passed = ?, total_test_cases = ?, judge_output = ?, judged_at = ?
		WHERE id = ?`,
		string(verdict), execTimeMs, memKB, passed, total, string(encoded), time.Now().UTC(), submissionID)
	if err != nil {
		return fmt.Errorf("persist judge result: %w", err)
	}
	return nil
}
