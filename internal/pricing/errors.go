package pricing

import "net/http"

type ErrorCode string

const (
	ErrInvalidPricingInput ErrorCode = "INVALID_PRICING_INPUT"
	ErrIncompleteSelection ErrorCode = "INCOMPLETE_SELECTION"
)

type Error struct {
	Code       ErrorCode
	Message    string
	StatusCode int
	Details    map[string]any
}

func (e *Error) Error() string {
	return e.Message
}

func newError(code ErrorCode, message string, status int, details map[string]any) *Error {
	return &Error{Code: code, Message: message, StatusCode: status, Details: details}
}

func ValidationError(code ErrorCode, message string, details map[string]any) *Error {
	return newError(code, message, http.StatusBadRequest, details)
}
