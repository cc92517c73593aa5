package reservation

import "net/http"

type ErrorCode string

const (
	ErrDropNotFound          ErrorCode = "DROP_NOT_FOUND"
	ErrDropNotApproved       ErrorCode = "DROP_NOT_APPROVED"
	ErrDropNotLive           ErrorCode = "DROP_NOT_LIVE"
	ErrInsufficientInventory ErrorCode = "INSUFFICIENT_INVENTORY"
	ErrPersistence           ErrorCode = "PERSISTENCE_ERROR"
)

type Error struct {
	Code       ErrorCode
	Message    string
	StatusCode int
	Details    map[string]any
	cause      error
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Retryable reports whether the caller may retry the whole operation.
// Only transient persistence failures qualify; business rejections are final.
func (e *Error) Retryable() bool {
	return e.Code == ErrPersistence
}

func newError(code ErrorCode, message string, statusCode int, details map[string]any) *Error {
	return &Error{Code: code, Message: message, StatusCode: statusCode, Details: details}
}

func persistenceError(message string, cause error) *Error {
	return &Error{Code: ErrPersistence, Message: message, StatusCode: http.StatusInternalServerError, cause: cause}
}
