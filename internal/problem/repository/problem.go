package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"codearena/internal/common/db"
	"codearena/internal/problem/model"
	pkgerrors "codearena/pkg/errors"
)

var ErrProblemNotFound = errors.New("problem not found")

// ProblemRepository loads problem definitions. Problems are read fresh on every call.
type ProblemRepository interface {
	GetByID(ctx context.Context, problemID string) (*model.Problem, error)
}

const selectProblemSQL = `SELECT problem_id, title, entry_point, test_cases, harnesses FROM problems WHERE problem_id = ?`

// MySQLProblemRepository reads the problems table. Test cases and harnesses are JSON columns.
type MySQLProblemRepository struct {
	db db.Database
}

func NewMySQLProblemRepository(database db.Database) *MySQLProblemRepository {
	return &MySQLProblemRepository{db: database}
}

func (r *MySQLProblemRepository) GetByID(ctx context.Context, problemID string) (*model.Problem, error) {
	var (
		p         model.Problem
		cases     []byte
		harnesses []byte
	)
	err := r.db.QueryRow(ctx, selectProblemSQL, problemID).Scan(&p.ID, &p.Title, &p.EntryPoint, &cases, &harnesses)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrProblemNotFound
		}
		return nil, fmt.Errorf("get problem failed: %w", err)
	}
	if err := decodeProblemColumns(&p, cases, harnesses); err != nil {
		return nil, err
	}
	return &p, nil
}

func decodeProblemColumns(p *model.Problem, cases, harnesses []byte) error {
	if len(cases) > 0 {
		if err := json.Unmarshal(cases, &p.TestCases); err != nil {
			return fmt.Errorf("decode test cases of %s: %w", p.ID, err)
		}
	}
	if len(harnesses) > 0 {
		if err := json.Unmarshal(harnesses, &p.Harnesses); err != nil {
			return fmt.Errorf("decode harnesses of %s: %w", p.ID, err)
		}
	}
	return nil
}

// FallbackRepository consults the primary store and then the built-in problem set.
type FallbackRepository struct {
	primary  ProblemRepository
	defaults map[string]*model.Problem
}

// NewFallbackRepository wraps primary. A nil primary serves only the built-in problems.
func NewFallbackRepository(primary ProblemRepository, defaults []*model.Problem) *FallbackRepository {
	byID := make(map[string]*model.Problem, len(defaults))
	for _, p := range defaults {
		byID[p.ID] = p
	}
	return &FallbackRepository{primary: primary, defaults: byID}
}

// GetByID returns a copy the caller may keep for the lifetime of one job.
func (r *FallbackRepository) GetByID(ctx context.Context, problemID string) (*model.Problem, error) {
	if problemID == "" {
		return nil, pkgerrors.ValidationError("problemId", "is required")
	}
	if r.primary != nil {
		p, err := r.primary.GetByID(ctx, problemID)
		switch {
		case err == nil:
			return p, nil
		case !errors.Is(err, ErrProblemNotFound):
			return nil, pkgerrors.Wrapf(err, pkgerrors.DatabaseError, "load problem %s failed", problemID)
		}
	}
	if p, ok := r.defaults[problemID]; ok {
		return cloneProblem(p), nil
	}
	return nil, pkgerrors.Newf(pkgerrors.ProblemNotFound, "problem %s not found", problemID)
}

func cloneProblem(p *model.Problem) *model.Problem {
	out := *p
	out.TestCases = append([]model.TestCase(nil), p.TestCases...)
	if p.Harnesses != nil {
		out.Harnesses = make(map[string]string, len(p.Harnesses))
		for k, v := range p.Harnesses {
			out.Harnesses[k] = v
		}
	}
	return &out
}
