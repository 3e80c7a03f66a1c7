package model

import "time"

// Entry is one user's leaderboard record.
type Entry struct {
	UserID   string `json:"userId"`
	TeamName string `json:"teamName,omitempty"`
	Round    string `json:"round"`
	// RoundScores holds the best score per problem in the current round.
	RoundScores map[string]float64 `json:"roundScores"`
	RoundTotal  float64            `json:"roundTotal"`
	// PriorRounds holds the final round total of every earlier round.
	PriorRounds  map[string]float64 `json:"priorRounds,omitempty"`
	OverallTotal float64            `json:"overallTotal"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

// Ranked is a position in the overall ranking.
type Ranked struct {
	Rank         int64   `json:"rank"`
	UserID       string  `json:"userId"`
	OverallTotal float64 `json:"overallTotal"`
}
