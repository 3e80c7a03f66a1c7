package model

import (
	"time"

	problemmodel "codearena/internal/problem/model"
)

// JobState is the lifecycle state of a job.
type JobState string

const (
	StateQueued      JobState = "queued"
	StateDispatching JobState = "dispatching"
	StateRunning     JobState = "running"
	StateCompleted   JobState = "completed"
	StateError       JobState = "error"
)

var allowedTransitions = map[JobState][]JobState{
	StateQueued:      {StateDispatching, StateError},
	StateDispatching: {StateRunning, StateError},
	StateRunning:     {StateRunning, StateCompleted, StateError},
}

// IsTerminal reports whether no further transition is possible.
func (s JobState) IsTerminal() bool {
	return s == StateCompleted || s == StateError
}

// CanTransition reports whether s may move to next.
func (s JobState) CanTransition(next JobState) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known state.
func (s JobState) Valid() bool {
	switch s {
	case StateQueued, StateDispatching, StateRunning, StateCompleted, StateError:
		return true
	}
	return false
}

// Job is one submitted execution request and its lifecycle record.
type Job struct {
	ID           string   `json:"jobId"`
	UserID       string   `json:"userId,omitempty"`
	TeamName     string   `json:"teamName,omitempty"`
	ProblemID    string   `json:"problemId"`
	Language     string   `json:"language"`
	Code         string   `json:"-"`
	IsSubmission bool     `json:"isSubmission"`
	Round        string   `json:"round,omitempty"`
	State        JobState `json:"status"`

	Stdout      string       `json:"stdout,omitempty"`
	Stderr      string       `json:"stderr,omitempty"`
	ErrorDetail string       `json:"error,omitempty"`
	Score       float64      `json:"score"`
	Passed      int          `json:"passed"`
	Total       int          `json:"total"`
	Results     []CaseResult `json:"results,omitempty"`

	BackendToken    string `json:"-"`
	BackendEndpoint string `json:"-"`
	ArtifactKey     string `json:"artifactKey,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Anonymous reports whether the job has no owner.
func (j *Job) Anonymous() bool {
	return j.UserID == ""
}

// HasHandle reports whether the backend handle needed for polling is recorded.
func (j *Job) HasHandle() bool {
	return j.BackendToken != "" && j.BackendEndpoint != ""
}

// Clone returns a copy that shares no slices with j.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	out := *j
	if j.Results != nil {
		out.Results = make([]CaseResult, len(j.Results))
		copy(out.Results, j.Results)
	}
	return &out
}

// CaseStatus is the grading verdict of one test case.
type CaseStatus string

const (
	CaseAccepted     CaseStatus = "Accepted"
	CaseWrongAnswer  CaseStatus = "Wrong Answer"
	CaseRuntimeError CaseStatus = "Runtime Error"
)

// HiddenPlaceholder replaces the input of hidden test cases in returned results.
const HiddenPlaceholder = "Hidden"

// CaseResult is the graded outcome of one test case.
type CaseResult struct {
	Ordinal  int                  `json:"testCase"`
	Status   CaseStatus           `json:"status"`
	Input    string               `json:"input"`
	Params   []problemmodel.Param `json:"params,omitempty"`
	Expected string               `json:"expected"`
	Actual   string               `json:"actual"`
	Hidden   bool                 `json:"hidden"`
}
