package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"codearena/internal/common/mq"
	"codearena/internal/judge/model"
	pkgerrors "codearena/pkg/errors"
)

// EventPublisher places job work and completion events on the message queue.
type EventPublisher interface {
	PublishDispatch(ctx context.Context, jobID string) error
	PublishLeaderboard(ctx context.Context, event model.LeaderboardEvent) error
}

// MQEventPublisher publishes to Kafka or the in-process queue.
type MQEventPublisher struct {
	queue            mq.Producer
	dispatchTopic    string
	leaderboardTopic string
}

func NewMQEventPublisher(queue mq.Producer, dispatchTopic, leaderboardTopic string) *MQEventPublisher {
	return &MQEventPublisher{queue: queue, dispatchTopic: dispatchTopic, leaderboardTopic: leaderboardTopic}
}

// PublishDispatch keys the message by job id.
func (p *MQEventPublisher) PublishDispatch(ctx context.Context, jobID string) error {
	if jobID == "" {
		return pkgerrors.ValidationError("job_id", "required")
	}
	return p.publish(ctx, p.dispatchTopic, jobID, jobID, model.DispatchMessage{JobID: jobID})
}

// PublishLeaderboard keys the message by user id so one consumer sees a user's events in order.
func (p *MQEventPublisher) PublishLeaderboard(ctx context.Context, event model.LeaderboardEvent) error {
	if event.UserID == "" {
		return pkgerrors.ValidationError("user_id", "required")
	}
	return p.publish(ctx, p.leaderboardTopic, event.UserID, event.JobID, event)
}

func (p *MQEventPublisher) publish(ctx context.Context, topic, key, id string, payload interface{}) error {
	if p == nil || p.queue == nil {
		return pkgerrors.New(pkgerrors.ServiceUnavailable).WithMessage("event publisher is not configured")
	}
	if topic == "" {
		return pkgerrors.New(pkgerrors.InvalidParams).WithMessage("topic is required")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event failed: %w", err)
	}
	message := mq.NewMessage(body)
	message.ID = id
	message.Key = key
	if err := p.queue.Publish(ctx, topic, message); err != nil {
		return pkgerrors.Wrapf(err, pkgerrors.QueueError, "publish to %s failed", topic)
	}
	return nil
}
