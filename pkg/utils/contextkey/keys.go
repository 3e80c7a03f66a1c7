// Package contextkey holds the typed keys that request and job handling put into a
// context.Context for log correlation.
package contextkey

// key is a private type to avoid context key collisions across packages.
type key string

const (
	TraceID   key = "trace_id"
	RequestID key = "request_id"
	// UserID is the submitting user, set from a verified token or a trusted proxy header.
	UserID key = "user_id"
	// JobID is set by the job service, the poller and the leaderboard consumer so every
	// log line about one job can be found by its id.
	JobID key = "job_id"
)
