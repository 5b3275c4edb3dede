package apperrors

import (
	"fmt"
	"net/http"
	"time"
)

// Category is the classification every failure is folded into at the
// boundary. Internal code branches on categories, never on raw provider
// error shapes.
type Category string

const (
	CatRateLimited         Category = "rate_limited"
	CatTransientNetwork    Category = "transient_network"
	CatServerUnavailable   Category = "server_unavailable"
	CatValidation          Category = "validation"
	CatInsufficientBalance Category = "insufficient_balance"
	CatQuoteStale          Category = "quote_stale"
	CatOnChainFailure      Category = "on_chain_failure"
	CatNotFound            Category = "not_found"
	CatInternal            Category = "internal"
)

// Retryable reports whether a failure of this category may succeed on a
// later attempt against the same or another endpoint.
func (c Category) Retryable() bool {
	switch c {
	case CatRateLimited, CatTransientNetwork, CatServerUnavailable:
		return true
	}
	return false
}

// AppError is the standard error struct for the application. Its JSON
// form is the error payload contract served to clients.
type AppError struct {
	Message    string    `json:"error"`
	Code       string    `json:"error_code"`
	Category   Category  `json:"error_category"`
	Suggestion string    `json:"suggestion,omitempty"`
	Details    any       `json:"details,omitempty"`
	Timestamp  time.Time `json:"timestamp"`

	HTTPStatus int           `json:"-"`
	RetryAfter time.Duration `json:"-"`
	Cause      error         `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

func New(code string, cat Category, msg string, cause error) *AppError {
	return &AppError{
		Message:    msg,
		Code:       code,
		Category:   cat,
		Cause:      cause,
		Timestamp:  time.Now().UTC(),
		HTTPStatus: mapCategoryToStatus(cat),
		Suggestion: mapCategoryToSuggestion(cat),
	}
}

func NewValidation(msg string) *AppError {
	return New("INVALID_REQUEST", CatValidation, msg, nil)
}

func NewInsufficientBalance(msg string) *AppError {
	return New("INSUFFICIENT_BALANCE", CatInsufficientBalance, msg, nil)
}

// NewRateLimited carries the fixed retry-after hint surfaced when every
// attempt against an upstream ended rate limited.
func NewRateLimited(msg string, retryAfter time.Duration, cause error) *AppError {
	e := New("RATE_LIMITED", CatRateLimited, msg, cause)
	e.RetryAfter = retryAfter
	return e
}

// Wrap promotes any error to an AppError, preserving an existing one.
func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return New("INTERNAL_ERROR", CatInternal, err.Error(), err)
}

func mapCategoryToStatus(c Category) int {
	switch c {
	case CatValidation, CatInsufficientBalance:
		return http.StatusBadRequest
	case CatNotFound:
		return http.StatusNotFound
	case CatQuoteStale:
		return http.StatusConflict
	case CatRateLimited:
		return http.StatusTooManyRequests
	case CatTransientNetwork, CatServerUnavailable:
		return http.StatusBadGateway
	case CatOnChainFailure:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func mapCategoryToSuggestion(c Category) string {
	switch c {
	case CatRateLimited:
		return "Too many requests upstream. Wait before retrying."
	case CatTransientNetwork:
		return "Temporary network issue. Retry the request."
	case CatServerUnavailable:
		return "Upstream service is unavailable. Retry shortly."
	case CatInsufficientBalance:
		return "Reduce the swap amount or top up the wallet."
	case CatQuoteStale:
		return "The quote expired. Fetch a fresh quote and retry."
	case CatOnChainFailure:
		return "The transaction failed on-chain. Check the details and retry."
	case CatValidation:
		return "Check the request parameters."
	default:
		return ""
	}
}
