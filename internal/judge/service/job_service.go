package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"codearena/internal/common/metrics"
	"codearena/internal/common/mq"
	"codearena/internal/judge/backend"
	"codearena/internal/judge/grader"
	"codearena/internal/judge/harness"
	"codearena/internal/judge/model"
	"codearena/internal/judge/repository"
	problemrepo "codearena/internal/problem/repository"
	pkgerrors "codearena/pkg/errors"
	"codearena/pkg/utils/contextkey"
	"codearena/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Dispatcher is the execution backend surface the state machine drives.
type Dispatcher interface {
	Submit(ctx context.Context, program string, languageID int) (backend.Handle, error)
	Poll(ctx context.Context, handle backend.Handle) (backend.Status, error)
	LanguageID(lang harness.Language) int
}

// ArtifactStore saves submitted source.
type ArtifactStore interface {
	Save(ctx context.Context, key, code string, metadata map[string]string) error
}

// PollLocker serializes polls of one job across instances.
type PollLocker interface {
	Acquire(ctx context.Context, jobID string) (release func(), ok bool, err error)
}

// SubmitInput is a validated-on-entry submission request.
type SubmitInput struct {
	Code         string
	Language     string
	ProblemID    string
	UserID       string
	TeamName     string
	IsSubmission bool
}

// SubmitOutput acknowledges a submission.
type SubmitOutput struct {
	JobID  string         `json:"jobId"`
	Status model.JobState `json:"status"`
}

// Config holds service dependencies and settings.
type Config struct {
	Jobs       repository.JobRepository
	Problems   problemrepo.ProblemRepository
	Wrapper    *harness.Wrapper
	Dispatcher Dispatcher
	Publisher  repository.EventPublisher
	Artifacts  ArtifactStore
	PollLock   PollLocker
	Queue      mq.Producer
	Metrics    *metrics.Metrics

	Round          string
	StoreTimeout   time.Duration
	RunningTimeout time.Duration
	PoolSize       int
	AcquireTimeout time.Duration
	Retry          RetryPolicy
}

// JobService owns the job lifecycle: queued, dispatching, running, then completed or error.
type JobService struct {
	jobs       repository.JobRepository
	problems   problemrepo.ProblemRepository
	wrapper    *harness.Wrapper
	dispatcher Dispatcher
	publisher  repository.EventPublisher
	artifacts  ArtifactStore
	pollLock   PollLocker
	queue      mq.Producer
	metrics    *metrics.Metrics

	round          string
	storeTimeout   time.Duration
	runningTimeout time.Duration
	pool           *workerPool
	retry          RetryPolicy
	now            func() time.Time
}

// NewJobService creates a job service.
func NewJobService(cfg Config) (*JobService, error) {
	if cfg.Jobs == nil {
		return nil, fmt.Errorf("job repository is required")
	}
	if cfg.Problems == nil {
		return nil, fmt.Errorf("problem repository is required")
	}
	if cfg.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if cfg.Publisher == nil {
		return nil, fmt.Errorf("event publisher is required")
	}
	wrapper := cfg.Wrapper
	if wrapper == nil {
		wrapper = harness.NewWrapper(nil, 0)
	}
	storeTimeout := cfg.StoreTimeout
	if storeTimeout <= 0 {
		storeTimeout = 3 * time.Second
	}
	return &JobService{
		jobs:           cfg.Jobs,
		problems:       cfg.Problems,
		wrapper:        wrapper,
		dispatcher:     cfg.Dispatcher,
		publisher:      cfg.Publisher,
		artifacts:      cfg.Artifacts,
		pollLock:       cfg.PollLock,
		queue:          cfg.Queue,
		metrics:        cfg.Metrics,
		round:          cfg.Round,
		storeTimeout:   storeTimeout,
		runningTimeout: cfg.RunningTimeout,
		pool:           newWorkerPool(cfg.PoolSize, cfg.AcquireTimeout),
		retry:          cfg.Retry,
		now:            func() time.Time { return time.Now().UTC() },
	}, nil
}

// Submit validates the request, records a queued job and places it on the dispatch
// queue. It returns before any backend is contacted.
func (s *JobService) Submit(ctx context.Context, in SubmitInput) (SubmitOutput, error) {
	lang, err := harness.ParseLanguage(in.Language)
	if err != nil {
		return SubmitOutput{}, err
	}
	if err := s.wrapper.Check(in.Code); err != nil {
		return SubmitOutput{}, err
	}
	problem, err := s.problems.GetByID(ctx, in.ProblemID)
	if err != nil {
		return SubmitOutput{}, err
	}

	now := s.now()
	job := &model.Job{
		ID:           uuid.NewString(),
		UserID:       in.UserID,
		TeamName:     in.TeamName,
		ProblemID:    problem.ID,
		Language:     lang.String(),
		Code:         in.Code,
		IsSubmission: in.IsSubmission,
		Round:        s.round,
		State:        model.StateQueued,
		Total:        len(problem.TestCases),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.withStoreTimeout(ctx, func(ctx context.Context) error { return s.jobs.Create(ctx, job) }); err != nil {
		return SubmitOutput{}, err
	}
	s.metrics.IncTransition(string(model.StateQueued))

	ctx = context.WithValue(ctx, contextkey.JobID, job.ID)
	if err := s.publisher.PublishDispatch(ctx, job.ID); err != nil {
		logger.Error(ctx, "publish dispatch failed", zap.Error(err))
		s.fail(ctx, job, model.StateQueued, err)
		return SubmitOutput{JobID: job.ID, Status: job.State}, nil
	}
	logger.Info(ctx, "job queued", zap.String("problem_id", job.ProblemID), zap.String("language", job.Language))
	return SubmitOutput{JobID: job.ID, Status: model.StateQueued}, nil
}

// GetJob returns the current job record.
func (s *JobService) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	return s.jobs.GetByID(ctx, jobID)
}

// HandleDispatch consumes one dispatch message. A full pool requeues the message
// instead of blocking the consumer indefinitely.
func (s *JobService) HandleDispatch(ctx context.Context, msg *mq.Message) error {
	if msg == nil {
		return pkgerrors.New(pkgerrors.InvalidParams).WithMessage("message is nil")
	}
	var payload model.DispatchMessage
	if err := json.Unmarshal(msg.Body, &payload); err != nil || payload.JobID == "" {
		// Malformed payloads can never succeed; drop them.
		logger.Error(ctx, "invalid dispatch message", zap.String("message_id", msg.ID), zap.Error(err))
		return nil
	}
	ctx = context.WithValue(ctx, contextkey.JobID, payload.JobID)

	if err := s.pool.acquire(ctx); err != nil {
		if pkgerrors.Is(err, pkgerrors.DispatchQueueFull) && s.queue != nil && s.retry.Topic != "" {
			return RequeueForPoolFull(ctx, s.queue, s.retry, msg)
		}
		return err
	}
	s.metrics.SetPoolBusy(s.pool.busy())
	defer func() {
		s.pool.release()
		s.metrics.SetPoolBusy(s.pool.busy())
	}()
	return s.Dispatch(ctx, payload.JobID)
}

// Dispatch moves a queued job to running or error. Jobs that are no longer queued are
// left alone, so duplicate deliveries are harmless.
func (s *JobService) Dispatch(ctx context.Context, jobID string) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.JobNotFound) {
			logger.Warn(ctx, "dispatch for unknown job dropped")
			return nil
		}
		return err
	}
	if job.State != model.StateQueued {
		logger.Debug(ctx, "job already dispatched", zap.String("state", string(job.State)))
		return nil
	}

	job.State = model.StateDispatching
	if err := s.transition(ctx, job, model.StateQueued); err != nil {
		if pkgerrors.Is(err, pkgerrors.JobStateConflict) {
			return nil
		}
		return err
	}

	handle, err := s.submitToBackend(ctx, job)
	if err != nil {
		logger.Warn(ctx, "dispatch failed", zap.Error(err))
		s.fail(ctx, job, model.StateDispatching, err)
		return nil
	}

	job.State = model.StateRunning
	job.BackendToken = handle.Token
	job.BackendEndpoint = handle.Endpoint
	if err := s.transition(ctx, job, model.StateDispatching); err != nil {
		logger.Error(ctx, "record backend handle failed", zap.String("endpoint", handle.Endpoint), zap.String("token", handle.Token), zap.Error(err))
		return nil
	}
	logger.Info(ctx, "job running", zap.String("endpoint", handle.Endpoint))
	return nil
}

func (s *JobService) submitToBackend(ctx context.Context, job *model.Job) (backend.Handle, error) {
	lang, err := harness.ParseLanguage(job.Language)
	if err != nil {
		return backend.Handle{}, err
	}
	problem, err := s.problems.GetByID(ctx, job.ProblemID)
	if err != nil {
		return backend.Handle{}, err
	}
	program, err := s.wrapper.Wrap(job.Code, lang, problem)
	if err != nil {
		return backend.Handle{}, err
	}
	if job.IsSubmission && s.artifacts != nil {
		key := repository.ArtifactKey(job.ProblemID, job.ID, lang.FileExtension())
		meta := map[string]string{"job-id": job.ID, "problem-id": job.ProblemID, "language": job.Language}
		if err := s.artifacts.Save(ctx, key, job.Code, meta); err != nil {
			logger.Warn(ctx, "save artifact failed", zap.String("key", key), zap.Error(err))
		} else {
			job.ArtifactKey = key
		}
	}
	return s.dispatcher.Submit(ctx, program, s.dispatcher.LanguageID(lang))
}

// Poll checks a running job's backend status once and applies the resulting transition.
func (s *JobService) Poll(ctx context.Context, jobID string) error {
	ctx = context.WithValue(ctx, contextkey.JobID, jobID)
	if s.pollLock != nil {
		release, ok, err := s.pollLock.Acquire(ctx, jobID)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		defer release()
	}

	start := time.Now()
	outcome, err := s.poll(ctx, jobID)
	if err != nil {
		outcome = "failed"
	}
	s.metrics.ObservePoll(outcome, time.Since(start))
	return err
}

func (s *JobService) poll(ctx context.Context, jobID string) (string, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return "", err
	}
	if job.State != model.StateRunning || !job.HasHandle() {
		return "skipped", nil
	}

	status, err := s.dispatcher.Poll(ctx, backend.Handle{Token: job.BackendToken, Endpoint: job.BackendEndpoint})
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.BackendBadResponse) {
			s.fail(ctx, job, model.StateRunning, err)
			return "lost", nil
		}
		return "", err
	}

	switch status.Phase() {
	case backend.PhaseRunning:
		if s.runningTimeout > 0 && s.now().Sub(job.UpdatedAt) > s.runningTimeout {
			s.fail(ctx, job, model.StateRunning, pkgerrors.Newf(pkgerrors.Timeout, "backend did not finish within %s", s.runningTimeout))
			return "timeout", nil
		}
		return "running", nil

	case backend.PhaseCompileError:
		detail := status.CompileOutput
		if detail == "" {
			detail = status.Message
		}
		if detail == "" {
			detail = status.Description
		}
		job.Stdout = status.Stdout
		job.Stderr = status.Stderr
		s.fail(ctx, job, model.StateRunning, pkgerrors.New(pkgerrors.CompilationError).WithMessage(detail))
		return "compile_error", nil

	default:
		if err := s.complete(ctx, job, status); err != nil {
			return "", err
		}
		return "completed", nil
	}
}

func (s *JobService) complete(ctx context.Context, job *model.Job, status backend.Status) error {
	problem, err := s.problems.GetByID(ctx, job.ProblemID)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.ProblemNotFound) {
			s.fail(ctx, job, model.StateRunning, err)
			return nil
		}
		return err
	}
	results, passed := grader.Parse(status.Stdout, problem, s.wrapper.Templates().Marker())

	job.State = model.StateCompleted
	job.Stdout = status.Stdout
	job.Stderr = status.Stderr
	job.Results = results
	job.Passed = passed
	job.Total = len(problem.TestCases)
	job.Score = grader.Score(passed, job.Total)
	if err := s.transition(ctx, job, model.StateRunning); err != nil {
		if pkgerrors.Is(err, pkgerrors.JobStateConflict) {
			return nil
		}
		return err
	}
	logger.Info(ctx, "job completed", zap.Float64("score", job.Score), zap.Int("passed", passed), zap.Int("total", job.Total))

	if job.Anonymous() || !job.IsSubmission {
		return nil
	}
	event := model.LeaderboardEvent{
		JobID:       job.ID,
		UserID:      job.UserID,
		TeamName:    job.TeamName,
		ProblemID:   job.ProblemID,
		Round:       job.Round,
		Score:       job.Score,
		CompletedAt: job.UpdatedAt.Unix(),
	}
	if err := s.publisher.PublishLeaderboard(ctx, event); err != nil {
		logger.Error(ctx, "publish leaderboard event failed", zap.Error(err))
	}
	return nil
}

// Redispatch republishes a job stuck in queued.
func (s *JobService) Redispatch(ctx context.Context, jobID string) error {
	return s.publisher.PublishDispatch(ctx, jobID)
}

// Abandon moves a job left in dispatching by a crashed worker to error.
func (s *JobService) Abandon(ctx context.Context, job *model.Job, reason string) {
	if job.State != model.StateDispatching {
		return
	}
	s.fail(ctx, job.Clone(), model.StateDispatching, errors.New(reason))
}

// fail records cause on the job and moves it to error. A failed write is logged and the
// job keeps its previous state for the sweep to pick up.
func (s *JobService) fail(ctx context.Context, job *model.Job, from model.JobState, cause error) {
	job.State = model.StateError
	job.ErrorDetail = cause.Error()
	if err := s.transition(ctx, job, from); err != nil {
		if !pkgerrors.Is(err, pkgerrors.JobStateConflict) {
			logger.Error(ctx, "record job error failed", zap.NamedError("cause", cause), zap.Error(err))
		}
		return
	}
	logger.Info(ctx, "job failed", zap.String("from", string(from)), zap.Int("code", int(pkgerrors.GetCode(cause))), zap.String("detail", job.ErrorDetail))
}

func (s *JobService) transition(ctx context.Context, job *model.Job, from model.JobState) error {
	err := s.withStoreTimeout(ctx, func(ctx context.Context) error { return s.jobs.Transition(ctx, job, from) })
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.JobStateConflict) {
			logger.Warn(ctx, "job transition lost", zap.String("from", string(from)), zap.String("to", string(job.State)))
		}
		return err
	}
	s.metrics.IncTransition(string(job.State))
	return nil
}

func (s *JobService) getJob(ctx context.Context, jobID string) (*model.Job, error) {
	var job *model.Job
	err := s.withStoreTimeout(ctx, func(ctx context.Context) error {
		var err error
		job, err = s.jobs.GetByID(ctx, jobID)
		return err
	})
	return job, err
}

func (s *JobService) withStoreTimeout(ctx context.Context, fn func(context.Context) error) error {
	ctxStore, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return fn(ctxStore)
}
