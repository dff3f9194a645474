package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"judgecore/internal/cache"
	"judgecore/internal/datapack"
	"judgecore/internal/db"
)

// TestCase is one input/expected-output pair. Hidden is carried through for
// API parity but never consumed by the judge.
type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	Hidden         bool   `json:"hidden"`
}

// Problem is the read-only-to-the-judge problem definition. DataPackKey, when
// set, points at a zstd-compressed tar archive in object storage holding the
// problem's test cases as numbered <n>.in/<n>.out file pairs; it takes
// precedence over inline TestCases for problems too large to store as rows.
type Problem struct {
	ID              string     `json:"id"`
	TimeLimitMs     int64      `json:"time_limit_ms"`
	MemoryLimitMB   int64      `json:"memory_limit_mb"`
	CheckerCode     string     `json:"checker_code,omitempty"`
	CheckerLanguage string     `json:"checker_language,omitempty"`
	DataPackKey     string     `json:"data_pack_key,omitempty"`
	DataPackSHA256  string     `json:"data_pack_sha256,omitempty"`
	TestCases       []TestCase `json:"test_cases"`
}

// ProblemRepository loads problem definitions, cached to absorb repeated
// lookups across submissions for the same problem.
type ProblemRepository interface {
	GetByID(ctx context.Context, problemID string) (Problem, bool, error)
}

const problemCacheTTL = 10 * time.Minute

type cachedProblemRepository struct {
	database db.Database
	cache    cache.Cache
	packs    *datapack.Cache
	bucket   string
}

// NewProblemRepository builds a problem repository. packs may be nil, in
// which case problems with a DataPackKey fail to resolve their test cases —
// callers that never set JUDGE_STORAGE_ENDPOINT can pass nil and rely purely
// on the problem_test_cases table.
func NewProblemRepository(database db.Database, c cache.Cache, packs *datapack.Cache, bucket string) ProblemRepository {
	return &cachedProblemRepository{database: database, cache: c, packs: packs, bucket: bucket}
}

func (r *cachedProblemRepository) GetByID(ctx context.Context, problemID string) (Problem, bool, error) {
	key := "problem:" + problemID
	return cache.GetWithCached(ctx, r.cache, key, problemCacheTTL, func(ctx context.Context) (Problem, bool, error) {
		return r.load(ctx, problemID)
	})
}

func (r *cachedProblemRepository) load(ctx context.Context, problemID string) (Problem, bool, error) {
	p, ok, err := r.loadFromDB(ctx, problemID)
	if err != nil || !ok {
		return p, ok, err
	}
	if p.DataPackKey != "" {
		cases, err := r.loadFromDataPack(ctx, p.DataPackKey, p.DataPackSHA256)
		if err != nil {
			return Problem{}, false, fmt.Errorf("load data pack test cases: %w", err)
		}
		p.TestCases = cases
	}
	return p, true, nil
}

func (r *cachedProblemRepository) loadFromDB(ctx context.Context, problemID string) (Problem, bool, error) {
	var p Problem
	var checkerCode, checkerLanguage, dataPackKey, dataPackSHA256 *string
	row := r.database.QueryRow(ctx, `
		SELECT id, time_limit_ms, memory_limit_mb, checker_code, checker_language,
		       data_pack_key, data_pack_sha256
		FROM problems WHERE id = ?`, problemID)
	if err := row.Scan(&p.ID, &p.TimeLimitMs, &p.MemoryLimitMB, &checkerCode, &checkerLanguage,
		&dataPackKey, &dataPackSHA256); err != nil {
		if db.IsNoRows(err) {
			return Problem{}, false, nil
		}
		return Problem{}, false, fmt.Errorf("load problem: %w", err)
	}
	if checkerCode != nil {
		p.CheckerCode = *checkerCode
	}
	if checkerLanguage != nil {
		p.CheckerLanguage = *checkerLanguage
	}
	if dataPackKey != nil {
		p.DataPackKey = *dataPackKey
	}
	if dataPackSHA256 != nil {
		p.DataPackSHA256 = *dataPackSHA256
	}
	if p.DataPackKey != "" {
		return p, true, nil
	}

	rows, err := r.database.Query(ctx, `
		SELECT input, expected_output, hidden FROM problem_test_cases
		WHERE problem_id = ? ORDER BY seq ASC`, problemID)
	if err != nil {
		return Problem{}, false, fmt.Errorf("load test cases: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tc TestCase
		if err := rows.Scan(&tc.Input, &tc.ExpectedOutput, &tc.Hidden); err != nil {
			return Problem{}, false, fmt.Errorf("scan test case: %w", err)
		}
		p.TestCases = append(p.TestCases, tc)
	}
	if err := rows.Err(); err != nil {
		return Problem{}, false, fmt.Errorf("iterate test cases: %w", err)
	}

	return p, true, nil
}

// dataPackManifest describes the ordered test cases inside an extracted
// archive; manifest.json sits alongside the <n>.in/<n>.out pairs it indexes.
type dataPackManifest struct {
	Cases []struct {
		Input  string `json:"input"`
		Output string `json:"output"`
		Hidden bool   `json:"hidden"`
	} `json:"cases"`
}

func (r *cachedProblemRepository) loadFromDataPack(ctx context.Context, key, sha256 string) ([]TestCase, error) {
	if r.packs == nil {
		return nil, fmt.Errorf("data pack cache not configured")
	}
	dir, err := r.packs.Ensure(ctx, key, sha256)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var manifest dataPackManifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	cases := make([]TestCase, 0, len(manifest.Cases))
	for _, c := range manifest.Cases {
		input, err := os.ReadFile(filepath.Join(dir, c.Input))
		if err != nil {
			return nil, fmt.Errorf("read test input %q: %w", c.Input, err)
		}
		output, err := os.ReadFile(filepath.Join(dir, c.Output))
		if err != nil {
			return nil, fmt.Errorf("read test output %q: %w", c.Output, err)
		}
		cases = append(cases, TestCase{Input: string(input), ExpectedOutput: string(output), Hidden: c.Hidden})
	}
	return cases, nil
}
