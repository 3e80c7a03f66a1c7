package service

import (
	"context"

	"codearena/internal/leaderboard/model"
	"codearena/internal/leaderboard/repository"
	pkgerrors "codearena/pkg/errors"
)

const (
	defaultTopLimit = 50
	maxTopLimit     = 500
)

// RankingReader reads positions from the ranking index.
type RankingReader interface {
	Top(ctx context.Context, limit int) ([]model.Ranked, error)
	Rank(ctx context.Context, userID string) (int64, error)
}

// Standing is an entry together with its overall rank. Rank is 0 when the ranking
// index has not seen the user yet.
type Standing struct {
	*model.Entry
	Rank int64 `json:"rank"`
}

// Board serves leaderboard reads.
type Board struct {
	entries repository.EntryRepository
	ranking RankingReader
}

func NewBoard(entries repository.EntryRepository, ranking RankingReader) *Board {
	return &Board{entries: entries, ranking: ranking}
}

// Top returns the highest overall totals. limit is clamped to [1, 500] with 50 as default.
func (b *Board) Top(ctx context.Context, limit int) ([]model.Ranked, error) {
	if limit <= 0 {
		limit = defaultTopLimit
	}
	if limit > maxTopLimit {
		limit = maxTopLimit
	}
	return b.ranking.Top(ctx, limit)
}

// Standing returns one user's entry and rank.
func (b *Board) Standing(ctx context.Context, userID string) (*Standing, error) {
	if userID == "" {
		return nil, pkgerrors.ValidationError("userId", "is required")
	}
	entry, err := b.entries.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, pkgerrors.New(pkgerrors.LeaderboardEntryNotFound).WithMessage("no leaderboard entry for " + userID)
	}
	rank, err := b.ranking.Rank(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Standing{Entry: entry, Rank: rank}, nil
}
