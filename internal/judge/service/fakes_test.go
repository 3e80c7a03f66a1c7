package service_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"codearena/internal/judge/backend"
	"codearena/internal/judge/harness"
	"codearena/internal/judge/model"
	pkgerrors "codearena/pkg/errors"
)

type memoryJobs struct {
	mu   sync.Mutex
	jobs map[string]*model.Job
}

func newMemoryJobs() *memoryJobs {
	return &memoryJobs{jobs: map[string]*model.Job{}}
}

func (m *memoryJobs) Create(_ context.Context, job *model.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job.Clone()
	return nil
}

func (m *memoryJobs) GetByID(_ context.Context, id string) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.JobNotFound)
	}
	return job.Clone(), nil
}

func (m *memoryJobs) Transition(_ context.Context, job *model.Job, from model.JobState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.jobs[job.ID]
	if !ok || stored.State != from || !from.CanTransition(job.State) {
		return pkgerrors.New(pkgerrors.JobStateConflict)
	}
	job.UpdatedAt = time.Now().UTC()
	m.jobs[job.ID] = job.Clone()
	return nil
}

func (m *memoryJobs) ListByState(_ context.Context, state model.JobState, before time.Time, limit int) ([]*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Job
	for _, job := range m.jobs {
		if job.State == state && !job.UpdatedAt.After(before) {
			out = append(out, job.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryJobs) BestScores(_ context.Context, userID, round string) (map[string]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	scores := map[string]float64{}
	for _, job := range m.jobs {
		if job.UserID == userID && job.Round == round && job.State == model.StateCompleted && job.IsSubmission {
			if job.Score > scores[job.ProblemID] {
				scores[job.ProblemID] = job.Score
			}
		}
	}
	return scores, nil
}

func (m *memoryJobs) get(id string) *model.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobs[id].Clone()
}

func (m *memoryJobs) set(job *model.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job.Clone()
}

type fakeDispatcher struct {
	mu        sync.Mutex
	submitErr error
	programs  []string
	status    backend.Status
	pollErr   error
	polls     int
	// block holds every Poll until closed; started receives one value per held Poll.
	block   chan struct{}
	started chan struct{}
}

func (d *fakeDispatcher) Submit(_ context.Context, program string, languageID int) (backend.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.submitErr != nil {
		return backend.Handle{}, d.submitErr
	}
	d.programs = append(d.programs, program)
	return backend.Handle{Token: "tok-1", Endpoint: "http://judge0-primary"}, nil
}

func (d *fakeDispatcher) Poll(ctx context.Context, _ backend.Handle) (backend.Status, error) {
	d.mu.Lock()
	d.polls++
	status, err, block, started := d.status, d.pollErr, d.block, d.started
	d.mu.Unlock()
	if block != nil {
		if started != nil {
			started <- struct{}{}
		}
		select {
		case <-block:
		case <-ctx.Done():
			return backend.Status{}, ctx.Err()
		}
	}
	return status, err
}

func (d *fakeDispatcher) pollCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.polls
}

func (d *fakeDispatcher) LanguageID(lang harness.Language) int {
	return lang.DefaultBackendID()
}

func (d *fakeDispatcher) setStatus(status backend.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status = status
}

type recordingPublisher struct {
	mu          sync.Mutex
	dispatched  []string
	leaderboard []model.LeaderboardEvent
	err         error
}

func (p *recordingPublisher) PublishDispatch(_ context.Context, jobID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.dispatched = append(p.dispatched, jobID)
	return nil
}

func (p *recordingPublisher) PublishLeaderboard(_ context.Context, event model.LeaderboardEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.leaderboard = append(p.leaderboard, event)
	return nil
}

type recordingArtifacts struct {
	mu   sync.Mutex
	keys []string
}

func (a *recordingArtifacts) Save(_ context.Context, key, _ string, _ map[string]string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keys = append(a.keys, key)
	return nil
}
