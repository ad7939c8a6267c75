package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid executor context")
	ErrRateLimited        = errors.New("rate limited")

	// Job scheduler taxonomy
	ErrAuth            = errors.New("caller not authenticated")
	ErrValidation      = errors.New("validation failed")
	ErrStorage         = errors.New("storage failure")
	ErrLockMismatch    = errors.New("job not found or lock mismatch")
	ErrInvalidJobState = errors.New("invalid job state")
)

// Wire codes returned to callers of the job API.
const (
	CodeAuth             = "AUTH_ERROR"
	CodeValidation       = "VALIDATION_ERROR"
	CodeStorage          = "DB_ERROR"
	CodeLockMismatch     = "NOT_FOUND_OR_LOCK_MISMATCH"
	CodeInvalidJobState  = "INVALID_STATE"
	CodeGenerationFailed = "GENERATION_FAILED"
	CodeRateLimited      = "RATE_LIMITED"
	CodeInternal         = "INTERNAL_ERROR"
)

// Code maps an error chain to its wire code. Unknown errors map to CodeInternal.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuth):
		return CodeAuth
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidArgument):
		return CodeValidation
	case errors.Is(err, ErrLockMismatch):
		return CodeLockMismatch
	case errors.Is(err, ErrInvalidJobState):
		return CodeInvalidJobState
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimited
	case errors.Is(err, ErrStorage):
		return CodeStorage
	default:
		return CodeInternal
	}
}
