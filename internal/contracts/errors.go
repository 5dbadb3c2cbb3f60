package contracts

import (
	"errors"
	"fmt"
)

// Error taxonomy of the valuation saga
// ⭐ SSOT: 상태 코드 분류는 errors.Is 로만 수행
var (
	// ErrInvalidTicker - ticker not on the whitelist (terminal, user input)
	ErrInvalidTicker = errors.New("invalid ticker")

	// ErrDBStructuralAnomaly - schema/invariant violation, never serve the data
	ErrDBStructuralAnomaly = errors.New("database structural anomaly")

	// ErrDBTransient - ordinary query failure, the saga falls through to the next tier
	ErrDBTransient = errors.New("database transient failure")

	// ErrAPICredential - missing or rejected API key
	ErrAPICredential = errors.New("api credential error")

	// ErrAPIInsufficientPrivilege - key is valid but the plan lacks the endpoint
	ErrAPIInsufficientPrivilege = fmt.Errorf("insufficient privilege: %w", ErrAPICredential)

	// ErrAPIRateLimited - daily quota exhausted
	ErrAPIRateLimited = errors.New("api rate limited")

	// ErrAPIUnknown - any other API failure
	ErrAPIUnknown = errors.New("api unknown failure")

	// ErrPersist - background persistence failure, logged only
	ErrPersist = errors.New("persist failure")
)

// APIError carries the upstream message next to a classifying sentinel
type APIError struct {
	Kind       error
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.Error()
}

func (e *APIError) Unwrap() error {
	return e.Kind
}

// NewAPIError builds an APIError of the given kind
func NewAPIError(kind error, statusCode int, message string) *APIError {
	return &APIError{Kind: kind, StatusCode: statusCode, Message: message}
}

// ErrorMessage returns the user-facing message of err.
// APIError exposes the upstream message only, everything else its full text.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Error()
	}
	return err.Error()
}
