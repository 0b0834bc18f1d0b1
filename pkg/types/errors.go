package types

import "fmt"

// APIError is a failure reported by the backend envelope or HTTP status.
type APIError struct {
	Status  int    // HTTP status code
	Code    string // Backend error code, if provided
	Message string // Human-readable message, surfaced verbatim to the user
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error (status %d, %s): %s", e.Status, e.Code, e.Message)
	}

	return fmt.Sprintf("api error (status %d): %s", e.Status, e.Message)
}

// Known backend error codes
const (
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeInsufficientFunds = "INSUFFICIENT_BALANCE"
	ErrCodeMarketClosed      = "MARKET_CLOSED"
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
)

// DefaultErrorMessage is used when the backend gives no message.
const DefaultErrorMessage = "An error occurred"
