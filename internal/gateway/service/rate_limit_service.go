package service

import (
	"context"
	"math"
	"time"

	"codearena/internal/common/cache"
	pkgerrors "codearena/pkg/errors"
)

const (
	rateKeyPrefix = "arena:rate:"

	ScopeIP   = "ip"
	ScopeUser = "user"
)

// SubmitQuota bounds job submissions per client address and per identified user.
type SubmitQuota struct {
	Window  time.Duration `yaml:"window"`
	IPMax   int           `yaml:"ipMax"`
	UserMax int           `yaml:"userMax"`
}

// Enabled reports whether any limit is set.
func (q SubmitQuota) Enabled() bool {
	return q.IPMax > 0 || q.UserMax > 0
}

// Submitter is the caller a submission is counted against. UserID is empty for
// anonymous callers, who are limited by address only.
type Submitter struct {
	Route    string
	ClientIP string
	UserID   string
}

// RateLimitService counts submissions in fixed windows kept in Redis.
type RateLimitService struct {
	counters     cache.BasicOps
	window       time.Duration
	redisTimeout time.Duration
}

func NewRateLimitService(counters cache.BasicOps, window time.Duration, redisTimeout time.Duration) *RateLimitService {
	if window <= 0 {
		window = time.Minute
	}
	if redisTimeout <= 0 {
		redisTimeout = 200 * time.Millisecond
	}
	return &RateLimitService{counters: counters, window: window, redisTimeout: redisTimeout}
}

// AdmitSubmission counts one submission for who. The first exhausted scope rejects it
// with TooManyRequests; the error details carry the scope and retry_after in seconds.
func (s *RateLimitService) AdmitSubmission(ctx context.Context, who Submitter, quota SubmitQuota) error {
	if s.counters == nil {
		return pkgerrors.New(pkgerrors.ServiceUnavailable).WithMessage("rate limit cache is unavailable")
	}
	window := quota.Window
	if window <= 0 {
		window = s.window
	}

	ctx, cancel := context.WithTimeout(ctx, s.redisTimeout)
	defer cancel()

	if quota.IPMax > 0 && who.ClientIP != "" {
		if err := s.count(ctx, RateKey(ScopeIP, who.ClientIP, who.Route), ScopeIP, quota.IPMax, window); err != nil {
			return err
		}
	}
	if quota.UserMax > 0 && who.UserID != "" {
		if err := s.count(ctx, RateKey(ScopeUser, who.UserID, who.Route), ScopeUser, quota.UserMax, window); err != nil {
			return err
		}
	}
	return nil
}

// RateKey is the Redis key of one counter, e.g. arena:rate:user:alice:jobs.submit.
func RateKey(scope, subject, route string) string {
	return rateKeyPrefix + scope + ":" + subject + ":" + route
}

func (s *RateLimitService) count(ctx context.Context, key, scope string, max int, window time.Duration) error {
	n, err := s.counters.Incr(ctx, key)
	if err != nil {
		return pkgerrors.Wrapf(err, pkgerrors.CacheError, "count %s submissions failed", scope)
	}

	// The first hit opens the window. A counter left without expiry is reopened.
	ttl := window
	if n > 1 {
		if ttl, err = s.counters.TTL(ctx, key); err != nil {
			return pkgerrors.Wrapf(err, pkgerrors.CacheError, "read %s window failed", scope)
		}
	}
	if n == 1 || ttl <= 0 {
		if err := s.counters.Expire(ctx, key, window); err != nil {
			return pkgerrors.Wrapf(err, pkgerrors.CacheError, "open %s window failed", scope)
		}
		ttl = window
	}

	if n > int64(max) {
		return pkgerrors.Newf(pkgerrors.TooManyRequests, "%s submission limit of %d per %s reached", scope, max, window).
			WithDetail("scope", scope).
			WithDetail("retry_after", retryAfterSeconds(ttl))
	}
	return nil
}

func retryAfterSeconds(ttl time.Duration) int {
	secs := int(math.Ceil(ttl.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
