package errors

import "net/http"

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges:
// 10000-10999: common errors
// 12000-12999: problem errors
// 13000-13999: job and execution backend errors
// 14000-14999: leaderboard errors
const (
	Success ErrorCode = 10000

	// Generic (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	Unauthorized        ErrorCode = 10004
	Forbidden           ErrorCode = 10005
	TooManyRequests     ErrorCode = 10006
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008

	// Storage (10100-10299)
	DatabaseError  ErrorCode = 10100
	RecordNotFound ErrorCode = 10101
	CacheError     ErrorCode = 10200
	LockFailed     ErrorCode = 10203
	StorageError   ErrorCode = 10250
	QueueError     ErrorCode = 10260

	// Validation (10300-10399)
	ValidationFailed ErrorCode = 10300
	InvalidFormat    ErrorCode = 10301

	// Auth (11000-11099)
	TokenExpired ErrorCode = 11003
	TokenInvalid ErrorCode = 11004

	// Problem (12000-12099)
	ProblemNotFound ErrorCode = 12000
	ProblemInvalid  ErrorCode = 12001

	// Job (13000-13099)
	JobNotFound          ErrorCode = 13000
	JobCreateFailed      ErrorCode = 13001
	CodeTooLarge         ErrorCode = 13002
	LanguageNotSupported ErrorCode = 13003
	CodeRejected         ErrorCode = 13004
	JobStateConflict     ErrorCode = 13005

	// Execution (13100-13199)
	DispatchQueueFull  ErrorCode = 13100
	BackendUnavailable ErrorCode = 13101
	CompilationError   ErrorCode = 13102
	BackendRejected    ErrorCode = 13103
	BackendBadResponse ErrorCode = 13104
	HarnessBuildFailed ErrorCode = 13105

	// Leaderboard (14000-14099)
	LeaderboardEntryNotFound ErrorCode = 14000
	LeaderboardUpdateFailed  ErrorCode = 14001
)

var errorMessages = map[ErrorCode]string{
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	Unauthorized:        "Unauthorized access",
	Forbidden:           "Access forbidden",
	TooManyRequests:     "Too many requests, please try again later",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	DatabaseError:  "Database operation failed",
	RecordNotFound: "Record not found in database",
	CacheError:     "Cache operation failed",
	LockFailed:     "Failed to acquire lock",
	StorageError:   "Object storage operation failed",
	QueueError:     "Message queue operation failed",

	ValidationFailed: "Validation failed",
	InvalidFormat:    "Invalid format",

	TokenExpired: "Token has expired",
	TokenInvalid: "Invalid token",

	ProblemNotFound: "Problem not found",
	ProblemInvalid:  "Problem definition is invalid",

	JobNotFound:          "Job not found",
	JobCreateFailed:      "Failed to create job",
	CodeTooLarge:         "Code is too large",
	LanguageNotSupported: "Programming language not supported",
	CodeRejected:         "Code contains forbidden content",
	JobStateConflict:     "Job state changed concurrently",

	DispatchQueueFull:  "Dispatch queue is full, please try again later",
	BackendUnavailable: "All execution backends are unavailable",
	CompilationError:   "Compilation error",
	BackendRejected:    "Execution backend rejected the submission",
	BackendBadResponse: "Execution backend returned an unexpected response",
	HarnessBuildFailed: "Failed to build the test harness",

	LeaderboardEntryNotFound: "Leaderboard entry not found",
	LeaderboardUpdateFailed:  "Failed to update leaderboard",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return http.StatusOK
	case c == Unauthorized, c == TokenExpired, c == TokenInvalid:
		return http.StatusUnauthorized
	case c == Forbidden:
		return http.StatusForbidden
	case c == NotFound, c == RecordNotFound, c == ProblemNotFound, c == JobNotFound, c == LeaderboardEntryNotFound:
		return http.StatusNotFound
	case c == JobStateConflict:
		return http.StatusConflict
	case c == TooManyRequests, c == DispatchQueueFull:
		return http.StatusTooManyRequests
	case c == ServiceUnavailable, c == BackendUnavailable:
		return http.StatusServiceUnavailable
	case c == Timeout:
		return http.StatusGatewayTimeout
	case c >= 10300 && c < 10400, c == InvalidParams:
		return http.StatusBadRequest
	case c == CodeTooLarge:
		return http.StatusRequestEntityTooLarge
	case c == LanguageNotSupported, c == CodeRejected, c == ProblemInvalid:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
