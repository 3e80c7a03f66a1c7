package repository

import (
	"context"

	"codearena/internal/common/cache"
	"codearena/internal/leaderboard/model"
	pkgerrors "codearena/pkg/errors"
)

// Ranking mirrors overall totals into a Redis sorted set.
type Ranking struct {
	zset cache.ZSetOps
	key  string
}

func NewRanking(zset cache.ZSetOps, key string) *Ranking {
	if key == "" {
		key = "leaderboard:overall"
	}
	return &Ranking{zset: zset, key: key}
}

func (r *Ranking) Update(ctx context.Context, userID string, overallTotal float64) error {
	if err := r.zset.ZAdd(ctx, r.key, cache.ZMember{Member: userID, Score: overallTotal}); err != nil {
		return pkgerrors.Wrapf(err, pkgerrors.CacheError, "update ranking for %s failed", userID)
	}
	return nil
}

// Top returns the first limit users by overall total. Ranks start at 1.
func (r *Ranking) Top(ctx context.Context, limit int) ([]model.Ranked, error) {
	if limit <= 0 {
		limit = 50
	}
	members, err := r.zset.ZRevRangeWithScores(ctx, r.key, 0, int64(limit-1))
	if err != nil {
		return nil, pkgerrors.Wrapf(err, pkgerrors.CacheError, "read ranking failed")
	}
	out := make([]model.Ranked, len(members))
	for i, m := range members {
		out[i] = model.Ranked{Rank: int64(i + 1), UserID: m.Member, OverallTotal: m.Score}
	}
	return out, nil
}

// Rank returns the 1-based rank of userID, or 0 when the user is not ranked.
func (r *Ranking) Rank(ctx context.Context, userID string) (int64, error) {
	rank, err := r.zset.ZRevRank(ctx, r.key, userID)
	if err != nil {
		return 0, pkgerrors.Wrapf(err, pkgerrors.CacheError, "read rank of %s failed", userID)
	}
	return rank + 1, nil
}
