package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"codearena/internal/common/db"
	"codearena/internal/leaderboard/model"
	pkgerrors "codearena/pkg/errors"
)

// EntryRepository stores leaderboard entries keyed by user id.
type EntryRepository interface {
	// Get returns nil and no error when the user has no entry.
	Get(ctx context.Context, userID string) (*model.Entry, error)
	Upsert(ctx context.Context, entry *model.Entry) error
}

// MySQLEntryRepository keeps entries in leaderboard_entries.
type MySQLEntryRepository struct {
	db db.Database
}

func NewMySQLEntryRepository(database db.Database) *MySQLEntryRepository {
	return &MySQLEntryRepository{db: database}
}

func (r *MySQLEntryRepository) Get(ctx context.Context, userID string) (*model.Entry, error) {
	var (
		entry  model.Entry
		scores []byte
		prior  []byte
	)
	err := r.db.QueryRow(ctx, `SELECT user_id, team_name, round, round_scores, round_total, prior_rounds, overall_total, updated_at
		FROM leaderboard_entries WHERE user_id = ?`, userID).
		Scan(&entry.UserID, &entry.TeamName, &entry.Round, &scores, &entry.RoundTotal, &prior, &entry.OverallTotal, &entry.UpdatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, pkgerrors.Wrapf(err, pkgerrors.DatabaseError, "get leaderboard entry %s failed", userID)
	}
	if err := decodeScores(scores, &entry.RoundScores); err != nil {
		return nil, err
	}
	if err := decodeScores(prior, &entry.PriorRounds); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Upsert overwrites the user's entry in a single statement.
func (r *MySQLEntryRepository) Upsert(ctx context.Context, entry *model.Entry) error {
	scores, err := json.Marshal(entry.RoundScores)
	if err != nil {
		return fmt.Errorf("encode round scores failed: %w", err)
	}
	prior, err := json.Marshal(entry.PriorRounds)
	if err != nil {
		return fmt.Errorf("encode prior rounds failed: %w", err)
	}
	_, err = r.db.Exec(ctx, `INSERT INTO leaderboard_entries
		(user_id, team_name, round, round_scores, round_total, prior_rounds, overall_total, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE team_name = VALUES(team_name), round = VALUES(round), round_scores = VALUES(round_scores),
			round_total = VALUES(round_total), prior_rounds = VALUES(prior_rounds), overall_total = VALUES(overall_total),
			updated_at = VALUES(updated_at)`,
		entry.UserID, entry.TeamName, entry.Round, scores, entry.RoundTotal, prior, entry.OverallTotal, entry.UpdatedAt)
	if err != nil {
		return pkgerrors.Wrapf(err, pkgerrors.LeaderboardUpdateFailed, "upsert leaderboard entry %s failed", entry.UserID)
	}
	return nil
}

func decodeScores(data []byte, dst *map[string]float64) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode leaderboard scores failed: %w", err)
	}
	return nil
}
