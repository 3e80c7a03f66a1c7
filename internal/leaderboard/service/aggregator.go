package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"codearena/internal/common/metrics"
	"codearena/internal/common/mq"
	judgemodel "codearena/internal/judge/model"
	"codearena/internal/leaderboard/model"
	"codearena/internal/leaderboard/repository"
	pkgerrors "codearena/pkg/errors"
	"codearena/pkg/utils/contextkey"
	"codearena/pkg/utils/logger"

	"go.uber.org/zap"
)

// ScoreSource returns a user's best completed score per problem in a round.
type ScoreSource interface {
	BestScores(ctx context.Context, userID, round string) (map[string]float64, error)
}

// RankingWriter mirrors totals into the ranking index.
type RankingWriter interface {
	Update(ctx context.Context, userID string, overallTotal float64) error
}

// Aggregator folds a user's best score per problem into round and overall totals.
// It reads then writes without a lock; callers serialize updates per user.
type Aggregator struct {
	scores  ScoreSource
	entries repository.EntryRepository
	ranking RankingWriter
	round   string
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewAggregator(scores ScoreSource, entries repository.EntryRepository, ranking RankingWriter, round string, m *metrics.Metrics) *Aggregator {
	return &Aggregator{
		scores:  scores,
		entries: entries,
		ranking: ranking,
		round:   round,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// UpdateLeaderboard recomputes the user's entry with newScore counted for problemID.
// Anonymous users are skipped and a nil entry is returned.
func (a *Aggregator) UpdateLeaderboard(ctx context.Context, userID, teamName, problemID string, newScore float64) (*model.Entry, error) {
	if userID == "" {
		return nil, nil
	}
	if problemID == "" {
		return nil, pkgerrors.ValidationError("problemId", "is required")
	}
	best, err := a.scores.BestScores(ctx, userID, a.round)
	if err != nil {
		a.metrics.IncLeaderboardWrite("failed")
		return nil, err
	}
	if best == nil {
		best = make(map[string]float64)
	}
	if newScore > best[problemID] {
		best[problemID] = newScore
	}

	existing, err := a.entries.Get(ctx, userID)
	if err != nil {
		a.metrics.IncLeaderboardWrite("failed")
		return nil, err
	}
	prior := make(map[string]float64)
	if existing != nil {
		for round, total := range existing.PriorRounds {
			prior[round] = total
		}
		if existing.Round != "" && existing.Round != a.round {
			if _, ok := prior[existing.Round]; !ok {
				prior[existing.Round] = existing.RoundTotal
			}
		}
		if teamName == "" {
			teamName = existing.TeamName
		}
	}

	roundTotal := sum(best)
	entry := &model.Entry{
		UserID:       userID,
		TeamName:     teamName,
		Round:        a.round,
		RoundScores:  best,
		RoundTotal:   roundTotal,
		PriorRounds:  prior,
		OverallTotal: round2(roundTotal + sum(prior)),
		UpdatedAt:    a.now(),
	}
	if err := a.entries.Upsert(ctx, entry); err != nil {
		a.metrics.IncLeaderboardWrite("failed")
		return nil, err
	}
	if a.ranking != nil {
		if err := a.ranking.Update(ctx, userID, entry.OverallTotal); err != nil {
			logger.Warn(ctx, "update ranking failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	a.metrics.IncLeaderboardWrite("ok")
	return entry, nil
}

// HandleEvent consumes one leaderboard event from the queue.
func (a *Aggregator) HandleEvent(ctx context.Context, msg *mq.Message) error {
	if msg == nil {
		return pkgerrors.New(pkgerrors.InvalidParams).WithMessage("message is nil")
	}
	var event judgemodel.LeaderboardEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		logger.Error(ctx, "invalid leaderboard event", zap.String("message_id", msg.ID), zap.Error(err))
		return nil
	}
	ctx = context.WithValue(ctx, contextkey.JobID, event.JobID)
	ctx = context.WithValue(ctx, contextkey.UserID, event.UserID)
	if event.Round != "" && event.Round != a.round {
		logger.Info(ctx, "leaderboard event from another round ignored", zap.String("round", event.Round))
		return nil
	}
	entry, err := a.UpdateLeaderboard(ctx, event.UserID, event.TeamName, event.ProblemID, event.Score)
	if err != nil {
		return fmt.Errorf("update leaderboard for %s: %w", event.UserID, err)
	}
	if entry != nil {
		logger.Info(ctx, "leaderboard updated", zap.Float64("round_total", entry.RoundTotal), zap.Float64("overall_total", entry.OverallTotal))
	}
	return nil
}

func sum(scores map[string]float64) float64 {
	var total float64
	for _, s := range scores {
		total += s
	}
	return round2(total)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
