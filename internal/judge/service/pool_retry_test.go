package service

import (
	"context"
	"testing"
	"time"

	"codearena/internal/common/mq"
	pkgerrors "codearena/pkg/errors"
)

func TestComputePoolBackoff(t *testing.T) {
	tests := []struct {
		retry int
		want  time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{5, time.Second},
	}
	for _, tt := range tests {
		if got := ComputePoolBackoff(tt.retry, 100*time.Millisecond, time.Second); got != tt.want {
			t.Fatalf("retry %d: expected %s, got %s", tt.retry, tt.want, got)
		}
	}
}

func TestWorkerPoolFull(t *testing.T) {
	pool := newWorkerPool(1, 10*time.Millisecond)
	ctx := context.Background()
	if err := pool.acquire(ctx); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if err := pool.acquire(ctx); !pkgerrors.Is(err, pkgerrors.DispatchQueueFull) {
		t.Fatalf("expected DispatchQueueFull, got %v", err)
	}
	pool.release()
	if err := pool.acquire(ctx); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
}

func TestRequeueForPoolFull(t *testing.T) {
	q := mq.NewMemoryQueue(4)
	t.Cleanup(func() { _ = q.Close() })
	got := make(chan *mq.Message, 2)
	collect := func(_ context.Context, m *mq.Message) error {
		got <- m
		return nil
	}
	ctx := context.Background()
	_ = q.SubscribeWithOptions(ctx, "dispatch", collect, nil)
	_ = q.SubscribeWithOptions(ctx, "dispatch.dlq", collect, nil)
	if err := q.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	policy := RetryPolicy{Topic: "dispatch", DeadLetter: "dispatch.dlq", MaxRetries: 2, BaseDelay: time.Millisecond}

	msg := mq.NewMessage([]byte(`{"job_id":"j1"}`))
	msg.ID, msg.Key = "j1", "j1"
	if err := RequeueForPoolFull(ctx, q, policy, msg); err != nil {
		t.Fatalf("requeue: %v", err)
	}
	requeued := <-got
	if ParsePoolRetryCount(requeued.Headers) != 1 || requeued.Key != "j1" {
		t.Fatalf("unexpected requeued message %+v", requeued)
	}

	requeued.SetHeader(poolRetryHeader, "2")
	if err := RequeueForPoolFull(ctx, q, policy, requeued); err != nil {
		t.Fatalf("dead letter: %v", err)
	}
	select {
	case dead := <-got:
		if ParsePoolRetryCount(dead.Headers) != 2 {
			t.Fatalf("unexpected dead letter %+v", dead)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for dead letter")
	}
}
