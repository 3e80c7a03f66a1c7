package mq

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
)

// MemoryQueue is an in-process MessageQueue for single-node deployments.
// Each subscription owns Concurrency bounded lanes; a message is routed to a lane
// by hashing its key, so equal keys are handled in publish order. Publish blocks
// while the target lane is full.
type MemoryQueue struct {
	bufferSize int

	mu      sync.RWMutex
	subs    map[string][]*memorySubscription
	started bool
	closed  bool
}

type memorySubscription struct {
	handler HandlerFunc
	opts    SubscribeOptions
	baseCtx context.Context
	lanes   []chan *Message

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMemoryQueue creates an in-process queue whose lanes hold bufferSize messages each.
func NewMemoryQueue(bufferSize int) *MemoryQueue {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &MemoryQueue{bufferSize: bufferSize, subs: make(map[string][]*memorySubscription)}
}

// Publish routes message to every subscription of topic.
func (q *MemoryQueue) Publish(ctx context.Context, topic string, message *Message) error {
	if message == nil {
		return errors.New("message is nil")
	}
	q.mu.RLock()
	closed := q.closed
	subs := q.subs[topic]
	q.mu.RUnlock()
	if closed {
		return errors.New("message queue is closed")
	}
	if len(subs) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}
	for _, sub := range subs {
		lane := sub.lanes[laneFor(message, len(sub.lanes))]
		select {
		case lane <- message.Clone():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// SubscribeWithOptions registers handler for topic.
func (q *MemoryQueue) SubscribeWithOptions(ctx context.Context, topic string, handler HandlerFunc, opts *SubscribeOptions) error {
	if topic == "" {
		return errors.New("topic is required")
	}
	if handler == nil {
		return errors.New("handler is required")
	}
	var options SubscribeOptions
	if opts != nil {
		options = *opts
	}
	options.SetDefaults()
	if ctx == nil {
		ctx = context.Background()
	}

	sub := &memorySubscription{handler: handler, opts: options, baseCtx: ctx}
	sub.lanes = make([]chan *Message, options.Concurrency)
	for i := range sub.lanes {
		sub.lanes[i] = make(chan *Message, q.bufferSize)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return errors.New("message queue is closed")
	}
	q.subs[topic] = append(q.subs[topic], sub)
	if q.started {
		q.startSubscription(sub)
	}
	return nil
}

// Start launches the lane workers.
func (q *MemoryQueue) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return errors.New("message queue is closed")
	}
	if q.started {
		return nil
	}
	for _, subs := range q.subs {
		for _, sub := range subs {
			q.startSubscription(sub)
		}
	}
	q.started = true
	return nil
}

// Stop cancels workers and waits for in-flight handlers. Buffered messages are kept.
func (q *MemoryQueue) Stop() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, subs := range q.subs {
		for _, sub := range subs {
			if sub.cancel != nil {
				sub.cancel()
			}
		}
	}
	for _, subs := range q.subs {
		for _, sub := range subs {
			sub.wg.Wait()
		}
	}
	q.started = false
	return nil
}

func (q *MemoryQueue) Ping(context.Context) error {
	return nil
}

func (q *MemoryQueue) Close() error {
	_ = q.Stop()
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	return nil
}

func (q *MemoryQueue) startSubscription(sub *memorySubscription) {
	sub.ctx, sub.cancel = context.WithCancel(sub.baseCtx)
	for _, lane := range sub.lanes {
		sub.wg.Add(1)
		go func(lane chan *Message) {
			defer sub.wg.Done()
			for {
				select {
				case <-sub.ctx.Done():
					return
				case m := <-lane:
					if deliver(sub.ctx, sub.handler, m, sub.opts) == outcomeDeadLetter && sub.opts.DeadLetterTopic != "" {
						_ = q.Publish(sub.ctx, sub.opts.DeadLetterTopic, m)
					}
				}
			}
		}(lane)
	}
}

func laneFor(m *Message, lanes int) int {
	if lanes <= 1 {
		return 0
	}
	key := m.Key
	if key == "" {
		key = m.ID
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(lanes))
}
