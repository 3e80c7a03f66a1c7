package repository_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"codearena/internal/common/cache"
	"codearena/internal/common/mq"
	"codearena/internal/common/storage"
	"codearena/internal/judge/model"
	"codearena/internal/judge/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type memoryObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
}

func (m *memoryObjects) PutObject(_ context.Context, bucket, key string, reader io.Reader, _ int64, _ storage.PutOptions) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[bucket+"/"+key] = data
	m.puts++
	return nil
}

func (m *memoryObjects) GetObject(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[bucket+"/"+key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryObjects) StatObject(_ context.Context, bucket, key string) (storage.ObjectStat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[bucket+"/"+key]
	if !ok {
		return storage.ObjectStat{}, storage.ErrObjectNotFound
	}
	return storage.ObjectStat{SizeBytes: int64(len(data))}, nil
}

func (m *memoryObjects) EnsureBucket(context.Context, string) error { return nil }

func TestArtifactStoreRoundTrip(t *testing.T) {
	objects := &memoryObjects{}
	store, err := repository.NewArtifactStore(objects, "artifacts")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	key := repository.ArtifactKey("Two Sum", "job-1", "py")
	if key != "submissions/two-sum/job-1.py.zst" {
		t.Fatalf("unexpected key %s", key)
	}
	code := strings.Repeat("def twoSum(nums, target):\n    return [0, 1]\n", 20)
	if err := store.Save(ctx, key, code, map[string]string{"job": "job-1"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(objects.objects["artifacts/"+key]) >= len(code) {
		t.Fatalf("artifact was not compressed")
	}
	if err := store.Save(ctx, key, "overwritten", nil); err != nil {
		t.Fatalf("second save: %v", err)
	}
	if objects.puts != 1 {
		t.Fatalf("artifact keys are write-once, got %d puts", objects.puts)
	}
	got, err := store.Load(ctx, key)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != code {
		t.Fatalf("round trip mismatch")
	}
}

func TestPollLockExclusive(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	c, err := cache.NewRedisCacheWithClient(client)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	lock := repository.NewPollLock(c, time.Minute)
	ctx := context.Background()

	release, ok, err := lock.Acquire(ctx, "job-1")
	if err != nil || !ok {
		t.Fatalf("expected first acquire, got ok=%v err=%v", ok, err)
	}
	if _, ok, _ := lock.Acquire(ctx, "job-1"); ok {
		t.Fatalf("second acquire must fail while held")
	}
	if _, ok, _ := lock.Acquire(ctx, "job-2"); !ok {
		t.Fatalf("other jobs must not be blocked")
	}
	release()
	if _, ok, _ := lock.Acquire(ctx, "job-1"); !ok {
		t.Fatalf("expected acquire after release")
	}
}

func TestEventPublisherKeys(t *testing.T) {
	q := mq.NewMemoryQueue(8)
	t.Cleanup(func() { _ = q.Close() })
	got := make(chan *mq.Message, 2)
	handler := func(_ context.Context, m *mq.Message) error {
		got <- m
		return nil
	}
	ctx := context.Background()
	for _, topic := range []string{"dispatch", "leaderboard"} {
		if err := q.SubscribeWithOptions(ctx, topic, handler, nil); err != nil {
			t.Fatalf("subscribe: %v", err)
		}
	}
	if err := q.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	pub := repository.NewMQEventPublisher(q, "dispatch", "leaderboard")
	if err := pub.PublishDispatch(ctx, "job-1"); err != nil {
		t.Fatalf("publish dispatch: %v", err)
	}
	if err := pub.PublishLeaderboard(ctx, model.LeaderboardEvent{JobID: "job-2", UserID: "alice", ProblemID: "p1", Score: 50}); err != nil {
		t.Fatalf("publish leaderboard: %v", err)
	}
	if err := pub.PublishLeaderboard(ctx, model.LeaderboardEvent{JobID: "job-3"}); err == nil {
		t.Fatalf("anonymous leaderboard events must be rejected")
	}

	keys := map[string]string{}
	for i := 0; i < 2; i++ {
		select {
		case m := <-got:
			keys[m.ID] = m.Key
			if m.ID == "job-1" {
				var payload model.DispatchMessage
				if err := json.Unmarshal(m.Body, &payload); err != nil || payload.JobID != "job-1" {
					t.Fatalf("bad dispatch payload %s", m.Body)
				}
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for message %d", i+1)
		}
	}
	if keys["job-1"] != "job-1" || keys["job-2"] != "alice" {
		t.Fatalf("unexpected message keys %v", keys)
	}
}
