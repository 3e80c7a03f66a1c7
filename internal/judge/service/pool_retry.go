package service

import (
	"context"
	"strconv"
	"time"

	"codearena/internal/common/mq"
	pkgerrors "codearena/pkg/errors"
	"codearena/pkg/utils/logger"

	"go.uber.org/zap"
)

const poolRetryHeader = "x-pool-retry"

// workerPool bounds concurrent dispatches. Messages that cannot get a slot within
// acquireTimeout are requeued with exponential backoff.
type workerPool struct {
	sem            chan struct{}
	acquireTimeout time.Duration
}

func newWorkerPool(size int, acquireTimeout time.Duration) *workerPool {
	if size <= 0 {
		size = 1
	}
	if acquireTimeout <= 0 {
		acquireTimeout = 2 * time.Second
	}
	return &workerPool{sem: make(chan struct{}, size), acquireTimeout: acquireTimeout}
}

func (p *workerPool) acquire(ctx context.Context) error {
	timer := time.NewTimer(p.acquireTimeout)
	defer timer.Stop()
	select {
	case p.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return pkgerrors.New(pkgerrors.DispatchQueueFull).WithMessage("dispatch pool is full")
	}
}

func (p *workerPool) release() {
	select {
	case <-p.sem:
	default:
	}
}

func (p *workerPool) busy() int {
	return len(p.sem)
}

// RetryPolicy controls requeueing when the dispatch pool is full.
type RetryPolicy struct {
	Topic      string
	DeadLetter string
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

func ParsePoolRetryCount(headers map[string]string) int {
	if headers == nil {
		return 0
	}
	raw, ok := headers[poolRetryHeader]
	if !ok {
		return 0
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < 0 {
		return 0
	}
	return val
}

func CloneMessageForRetry(msg *mq.Message, retryCount int) *mq.Message {
	if msg == nil {
		return mq.NewMessage(nil)
	}
	out := msg.Clone()
	out.Timestamp = time.Now()
	out.RetryCount = 0
	out.SetHeader(poolRetryHeader, strconv.Itoa(retryCount))
	return out
}

func ComputePoolBackoff(retryCount int, base, max time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	delay := base
	for i := 0; i < retryCount; i++ {
		if max > 0 && delay > max/2 {
			return max
		}
		delay *= 2
	}
	if max > 0 && delay > max {
		return max
	}
	return delay
}

// RequeueForPoolFull republishes msg after a backoff, or moves it to the dead letter
// topic once retries are exhausted.
func RequeueForPoolFull(ctx context.Context, queue mq.Producer, policy RetryPolicy, msg *mq.Message) error {
	if queue == nil || policy.Topic == "" {
		return pkgerrors.New(pkgerrors.ServiceUnavailable).WithMessage("retry queue is not configured")
	}
	if msg == nil {
		return pkgerrors.New(pkgerrors.InvalidParams).WithMessage("message is nil")
	}
	retryCount := ParsePoolRetryCount(msg.Headers)
	if policy.MaxRetries > 0 && retryCount >= policy.MaxRetries {
		if policy.DeadLetter == "" {
			logger.Warn(ctx, "dispatch pool retry exhausted without dead letter", zap.Int("retry_count", retryCount), zap.String("message_id", msg.ID))
			return pkgerrors.New(pkgerrors.DispatchQueueFull).WithMessage("dispatch pool is full")
		}
		logger.Warn(ctx, "dispatch pool retry exhausted, sending to dead letter", zap.Int("retry_count", retryCount), zap.String("message_id", msg.ID), zap.String("topic", policy.DeadLetter))
		return queue.Publish(ctx, policy.DeadLetter, CloneMessageForRetry(msg, retryCount))
	}
	delay := ComputePoolBackoff(retryCount, policy.BaseDelay, policy.MaxDelay)
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			logger.Warn(ctx, "dispatch pool retry canceled during backoff", zap.Int("retry_count", retryCount), zap.String("message_id", msg.ID), zap.Duration("delay", delay))
			return ctx.Err()
		case <-timer.C:
		}
	}
	logger.Info(ctx, "dispatch pool requeue", zap.Int("retry_count", retryCount+1), zap.String("message_id", msg.ID), zap.Duration("delay", delay), zap.String("topic", policy.Topic))
	return queue.Publish(ctx, policy.Topic, CloneMessageForRetry(msg, retryCount+1))
}
