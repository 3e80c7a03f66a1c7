package model

// DispatchMessage is the work-queue payload that drives a queued job to a backend.
type DispatchMessage struct {
	JobID string `json:"job_id"`
}

// LeaderboardEvent is published when a scored submission completes for an identified user.
type LeaderboardEvent struct {
	JobID       string  `json:"job_id"`
	UserID      string  `json:"user_id"`
	TeamName    string  `json:"team_name"`
	ProblemID   string  `json:"problem_id"`
	Round       string  `json:"round"`
	Score       float64 `json:"score"`
	CompletedAt int64   `json:"completed_at"`
}
