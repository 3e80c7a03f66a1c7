package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"codearena/internal/common/cache"
	"codearena/internal/common/db"
	"codearena/internal/judge/model"
	pkgerrors "codearena/pkg/errors"
)

const (
	jobKeyPrefix       = "judge:job:"
	defaultJobCacheTTL = 10 * time.Minute
	jobEmptyTTL        = 5 * time.Second
)

// JobRepository persists job records. Writes go through Transition so concurrent
// writers for one job cannot both succeed from the same state.
type JobRepository interface {
	Create(ctx context.Context, job *model.Job) error
	GetByID(ctx context.Context, jobID string) (*model.Job, error)
	// Transition writes job's mutable fields if the stored state still equals from.
	// It fails with JobStateConflict otherwise.
	Transition(ctx context.Context, job *model.Job, from model.JobState) error
	// ListByState returns up to limit jobs in state last updated before updatedBefore, oldest first.
	ListByState(ctx context.Context, state model.JobState, updatedBefore time.Time, limit int) ([]*model.Job, error)
	// BestScores returns the best completed submission score per problem for a user in round.
	BestScores(ctx context.Context, userID, round string) (map[string]float64, error)
}

const jobColumns = `job_id, user_id, team_name, problem_id, language, code, is_submission, round, state,
	stdout, stderr, error_detail, score, passed, total, results, backend_token, backend_endpoint, artifact_key,
	created_at, updated_at`

// MySQLJobRepository stores jobs in the judge_jobs table with a Redis read-through cache.
type MySQLJobRepository struct {
	db       db.Database
	cache    cache.BasicOps
	cacheTTL time.Duration
}

// NewMySQLJobRepository creates a repository. cacheClient may be nil.
func NewMySQLJobRepository(database db.Database, cacheClient cache.BasicOps, cacheTTL time.Duration) *MySQLJobRepository {
	if cacheTTL <= 0 {
		cacheTTL = defaultJobCacheTTL
	}
	return &MySQLJobRepository{db: database, cache: cacheClient, cacheTTL: cacheTTL}
}

func (r *MySQLJobRepository) Create(ctx context.Context, job *model.Job) error {
	if job == nil || job.ID == "" {
		return pkgerrors.ValidationError("job_id", "required")
	}
	results, err := encodeResults(job.Results)
	if err != nil {
		return err
	}
	query := `INSERT INTO judge_jobs (` + jobColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.Exec(ctx, query,
		job.ID, nullString(job.UserID), job.TeamName, job.ProblemID, job.Language, job.Code, job.IsSubmission, job.Round, string(job.State),
		job.Stdout, job.Stderr, job.ErrorDetail, job.Score, job.Passed, job.Total, results,
		job.BackendToken, job.BackendEndpoint, job.ArtifactKey, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return pkgerrors.Wrapf(err, pkgerrors.JobCreateFailed, "insert job %s failed", job.ID)
	}
	r.invalidate(ctx, job.ID)
	return nil
}

func (r *MySQLJobRepository) GetByID(ctx context.Context, jobID string) (*model.Job, error) {
	if jobID == "" {
		return nil, pkgerrors.ValidationError("job_id", "required")
	}
	load := func(ctx context.Context) (*model.Job, error) {
		row := r.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM judge_jobs WHERE job_id = ?`, jobID)
		job, err := scanJob(row)
		if err != nil {
			if db.IsNoRows(err) {
				return nil, nil
			}
			return nil, pkgerrors.Wrapf(err, pkgerrors.DatabaseError, "get job %s failed", jobID)
		}
		return job, nil
	}

	var (
		job *model.Job
		err error
	)
	if r.cache != nil {
		job, err = cache.GetWithCached(ctx, r.cache, jobKeyPrefix+jobID, r.cacheTTL, jobEmptyTTL,
			func(j *model.Job) bool { return j == nil },
			marshalJob, unmarshalJob, load)
	} else {
		job, err = load(ctx)
	}
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, pkgerrors.Newf(pkgerrors.JobNotFound, "job %s not found", jobID)
	}
	return job, nil
}

func (r *MySQLJobRepository) Transition(ctx context.Context, job *model.Job, from model.JobState) error {
	if job == nil || job.ID == "" {
		return pkgerrors.ValidationError("job_id", "required")
	}
	if !from.CanTransition(job.State) {
		return pkgerrors.Newf(pkgerrors.JobStateConflict, "transition %s -> %s is not allowed", from, job.State)
	}
	results, err := encodeResults(job.Results)
	if err != nil {
		return err
	}
	job.UpdatedAt = time.Now().UTC()
	query := `UPDATE judge_jobs SET state = ?, stdout = ?, stderr = ?, error_detail = ?, score = ?, passed = ?, total = ?,
		results = ?, backend_token = ?, backend_endpoint = ?, artifact_key = ?, updated_at = ?
		WHERE job_id = ? AND state = ?`
	write := func(ctx context.Context) error {
		res, err := r.db.Exec(ctx, query,
			string(job.State), job.Stdout, job.Stderr, job.ErrorDetail, job.Score, job.Passed, job.Total,
			results, job.BackendToken, job.BackendEndpoint, job.ArtifactKey, job.UpdatedAt,
			job.ID, string(from),
		)
		if err != nil {
			return pkgerrors.Wrapf(err, pkgerrors.DatabaseError, "update job %s failed", job.ID)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return pkgerrors.Wrapf(err, pkgerrors.DatabaseError, "update job %s failed", job.ID)
		}
		if affected == 0 {
			return pkgerrors.Newf(pkgerrors.JobStateConflict, "job %s is no longer %s", job.ID, from)
		}
		return nil
	}
	if r.cache == nil {
		return write(ctx)
	}
	return cache.UpdateCached(ctx, r.cache, jobKeyPrefix+job.ID, write)
}

func (r *MySQLJobRepository) ListByState(ctx context.Context, state model.JobState, updatedBefore time.Time, limit int) ([]*model.Job, error) {
	if !state.Valid() {
		return nil, pkgerrors.ValidationError("state", "unknown")
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, `SELECT `+jobColumns+` FROM judge_jobs WHERE state = ? AND updated_at <= ? ORDER BY updated_at ASC LIMIT ?`,
		string(state), updatedBefore, limit)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, pkgerrors.DatabaseError, "list %s jobs failed", state)
	}
	defer rows.Close()

	var jobs []*model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, pkgerrors.DatabaseError, "scan job failed")
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.Wrapf(err, pkgerrors.DatabaseError, "list %s jobs failed", state)
	}
	return jobs, nil
}

func (r *MySQLJobRepository) BestScores(ctx context.Context, userID, round string) (map[string]float64, error) {
	if userID == "" {
		return nil, pkgerrors.ValidationError("user_id", "required")
	}
	rows, err := r.db.Query(ctx, `SELECT problem_id, MAX(score) FROM judge_jobs
		WHERE user_id = ? AND round = ? AND state = ? AND is_submission = 1 GROUP BY problem_id`,
		userID, round, string(model.StateCompleted))
	if err != nil {
		return nil, pkgerrors.Wrapf(err, pkgerrors.DatabaseError, "load scores of %s failed", userID)
	}
	defer rows.Close()

	scores := make(map[string]float64)
	for rows.Next() {
		var (
			problemID string
			score     float64
		)
		if err := rows.Scan(&problemID, &score); err != nil {
			return nil, pkgerrors.Wrapf(err, pkgerrors.DatabaseError, "scan score failed")
		}
		scores[problemID] = score
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.Wrapf(err, pkgerrors.DatabaseError, "load scores of %s failed", userID)
	}
	return scores, nil
}

func (r *MySQLJobRepository) invalidate(ctx context.Context, jobID string) {
	if r.cache != nil {
		_ = r.cache.Del(ctx, jobKeyPrefix+jobID)
	}
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row scanner) (*model.Job, error) {
	var (
		job     model.Job
		userID  sql.NullString
		state   string
		results []byte
	)
	err := row.Scan(&job.ID, &userID, &job.TeamName, &job.ProblemID, &job.Language, &job.Code, &job.IsSubmission, &job.Round, &state,
		&job.Stdout, &job.Stderr, &job.ErrorDetail, &job.Score, &job.Passed, &job.Total, &results,
		&job.BackendToken, &job.BackendEndpoint, &job.ArtifactKey, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, err
	}
	job.UserID = userID.String
	job.State = model.JobState(state)
	if len(results) > 0 {
		if err := json.Unmarshal(results, &job.Results); err != nil {
			return nil, fmt.Errorf("decode results of %s: %w", job.ID, err)
		}
	}
	return &job, nil
}

func encodeResults(results []model.CaseResult) (interface{}, error) {
	if len(results) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(results)
	if err != nil {
		return nil, fmt.Errorf("encode results failed: %w", err)
	}
	return data, nil
}

func nullString(s string) interface{} {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

// cachedJob carries the fields the public JSON form hides.
type cachedJob struct {
	model.Job
	Code            string `json:"code"`
	BackendToken    string `json:"backendToken"`
	BackendEndpoint string `json:"backendEndpoint"`
}

func marshalJob(job *model.Job) (string, error) {
	data, err := json.Marshal(cachedJob{Job: *job, Code: job.Code, BackendToken: job.BackendToken, BackendEndpoint: job.BackendEndpoint})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalJob(s string) (*model.Job, error) {
	var c cachedJob
	if err := json.Unmarshal([]byte(s), &c); err != nil {
		return nil, err
	}
	job := c.Job
	job.Code = c.Code
	job.BackendToken = c.BackendToken
	job.BackendEndpoint = c.BackendEndpoint
	return &job, nil
}
