package service

import (
	"context"
	"sync"
	"time"

	"codearena/internal/judge/model"
	"codearena/internal/judge/repository"
	"codearena/pkg/utils/contextkey"
	"codearena/pkg/utils/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// PollerConfig controls the background sweep.
type PollerConfig struct {
	Interval    time.Duration `yaml:"interval"`
	PollTimeout time.Duration `yaml:"pollTimeout"`
	BatchSize   int           `yaml:"batchSize"`
	Concurrency int           `yaml:"concurrency"`
	// StaleQueued is how long a job may sit in queued before its dispatch message is republished.
	StaleQueued time.Duration `yaml:"staleQueued"`
	// StaleDispatching is how long a job may sit in dispatching before it is moved to error.
	StaleDispatching time.Duration `yaml:"staleDispatching"`
}

func (c *PollerConfig) setDefaults() {
	if c.Interval <= 0 {
		c.Interval = 3 * time.Second
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = 10 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 200
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 16
	}
}

// Poller periodically polls running jobs. Each tick starts a new sweep without waiting
// for earlier ones; a job still being polled is skipped until its poll returns.
type Poller struct {
	svc  *JobService
	jobs repository.JobRepository
	cfg  PollerConfig

	mu       sync.Mutex
	inflight map[string]struct{}
	wg       sync.WaitGroup
}

func NewPoller(svc *JobService, jobs repository.JobRepository, cfg PollerConfig) *Poller {
	cfg.setDefaults()
	return &Poller{svc: svc, jobs: jobs, cfg: cfg, inflight: make(map[string]struct{})}
}

// Run sweeps on every tick until ctx is canceled, then waits for running sweeps.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	logger.Info(ctx, "poller started", zap.Duration("interval", p.cfg.Interval))
	for {
		select {
		case <-ctx.Done():
			p.wg.Wait()
			logger.Info(context.Background(), "poller stopped")
			return
		case <-ticker.C:
			p.wg.Add(1)
			go func() {
				defer p.wg.Done()
				p.Sweep(ctx)
			}()
		}
	}
}

// Sweep runs one cycle: polls running jobs and recovers stale queued and dispatching jobs.
func (p *Poller) Sweep(ctx context.Context) {
	now := time.Now().UTC()
	p.recoverStale(ctx, now)

	running, err := p.jobs.ListByState(ctx, model.StateRunning, now, p.cfg.BatchSize)
	if err != nil {
		logger.Warn(ctx, "list running jobs failed", zap.Error(err))
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for _, job := range running {
		jobID := job.ID
		if !p.claim(jobID) {
			continue
		}
		g.Go(func() error {
			defer p.unclaim(jobID)
			pollCtx, cancel := context.WithTimeout(gctx, p.cfg.PollTimeout)
			defer cancel()
			if err := p.svc.Poll(pollCtx, jobID); err != nil {
				logger.Warn(context.WithValue(ctx, contextkey.JobID, jobID), "poll failed", zap.Error(err))
			}
			// Poll errors are per job and must not cancel the sibling polls.
			return nil
		})
	}
	_ = g.Wait()
}

func (p *Poller) recoverStale(ctx context.Context, now time.Time) {
	if p.cfg.StaleQueued > 0 {
		queued, err := p.jobs.ListByState(ctx, model.StateQueued, now.Add(-p.cfg.StaleQueued), p.cfg.BatchSize)
		if err != nil {
			logger.Warn(ctx, "list stale queued jobs failed", zap.Error(err))
		}
		for _, job := range queued {
			jobCtx := context.WithValue(ctx, contextkey.JobID, job.ID)
			if err := p.svc.Redispatch(jobCtx, job.ID); err != nil {
				logger.Warn(jobCtx, "republish stale job failed", zap.Error(err))
			}
		}
	}
	if p.cfg.StaleDispatching > 0 {
		stuck, err := p.jobs.ListByState(ctx, model.StateDispatching, now.Add(-p.cfg.StaleDispatching), p.cfg.BatchSize)
		if err != nil {
			logger.Warn(ctx, "list stale dispatching jobs failed", zap.Error(err))
		}
		for _, job := range stuck {
			p.svc.Abandon(context.WithValue(ctx, contextkey.JobID, job.ID), job, "dispatch was interrupted before a backend accepted the job")
		}
	}
}

func (p *Poller) claim(jobID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inflight[jobID]; busy {
		return false
	}
	p.inflight[jobID] = struct{}{}
	return true
}

func (p *Poller) unclaim(jobID string) {
	p.mu.Lock()
	delete(p.inflight, jobID)
	p.mu.Unlock()
}
