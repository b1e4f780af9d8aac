package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden    ErrorType = "FORBIDDEN"
	ErrorTypeConflict     ErrorType = "CONFLICT"
	ErrorTypeInternal     ErrorType = "INTERNAL_ERROR"
	ErrorTypeExternal     ErrorType = "EXTERNAL_ERROR"
	ErrorTypeMethod       ErrorType = "METHOD_NOT_ALLOWED"
	ErrorTypeRateLimit    ErrorType = "RATE_LIMITED"
)

type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidGrant     ErrorCode = "INVALID_GRANT"
	ErrCodeInvalidEmail     ErrorCode = "INVALID_EMAIL"
	ErrCodeInvalidBody      ErrorCode = "INVALID_BODY"
	ErrCodeInvalidPath      ErrorCode = "INVALID_PATH"
	ErrCodeBodyTooLarge     ErrorCode = "BODY_TOO_LARGE"

	ErrCodeUserNotFound            ErrorCode = "USER_NOT_FOUND"
	ErrCodePLWDNotFound            ErrorCode = "PLWD_NOT_FOUND"
	ErrCodeMemberNotFound          ErrorCode = "MEMBER_NOT_FOUND"
	ErrCodeNotInCarecircle         ErrorCode = "NOT_IN_CARECIRCLE"
	ErrCodeInsufficientPermissions ErrorCode = "INSUFFICIENT_PERMISSIONS"
	ErrCodeCaretakerNotMember      ErrorCode = "CARETAKER_NOT_MEMBER"
	ErrCodeMethodNotAllowed        ErrorCode = "METHOD_NOT_ALLOWED"

	ErrCodeMissingToken ErrorCode = "MISSING_TOKEN"
	ErrCodeInvalidToken ErrorCode = "INVALID_TOKEN"
	ErrCodeTokenExpired ErrorCode = "TOKEN_EXPIRED"

	ErrCodeUpstreamError ErrorCode = "UPSTREAM_ERROR"
	ErrCodeRateLimited   ErrorCode = "RATE_LIMITED"
	ErrCodeInternal      ErrorCode = "INTERNAL_ERROR"
)

// AppError is the error every handler renders as {"error": {...}}.
// Cause and StatusCode never reach the client.
type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func newAppError(status int, typ ErrorType, code ErrorCode, message string) *AppError {
	return &AppError{Type: typ, Code: code, Message: message, StatusCode: status}
}

func (e *AppError) fieldMessages() []string {
	details, ok := e.Details.(ValidationErrors)
	if !ok {
		return nil
	}
	out := make([]string, len(details.Errors))
	for i, fe := range details.Errors {
		out[i] = fe.Message
	}
	return out
}

func (e *AppError) Error() string {
	if msgs := e.fieldMessages(); len(msgs) > 0 {
		return msgs[0]
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// GetDetailedMessage joins every field message, or falls back to Message.
func (e *AppError) GetDetailedMessage() string {
	if msgs := e.fieldMessages(); len(msgs) > 0 {
		return strings.Join(msgs, "; ")
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCause and WithDetails return a copy, so the package level errors below
// can be decorated without being mutated.
func (e *AppError) WithCause(cause error) *AppError {
	c := *e
	c.Cause = cause
	return &c
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	c := *e
	c.Details = details
	return &c
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return newAppError(http.StatusBadRequest, ErrorTypeValidation, code, message)
}

// NewValidationFieldError reports one bad field. The top level code stays
// VALIDATION_FAILED; code goes on the field entry.
func NewValidationFieldError(field, message string, code ErrorCode) *AppError {
	e := newAppError(http.StatusBadRequest, ErrorTypeValidation, ErrCodeValidationFailed, "Validation failed")
	e.Details = ValidationErrors{Errors: []ValidationError{{Field: field, Message: message, Code: string(code)}}}
	return e
}

func NewPayloadTooLargeError(message string) *AppError {
	return newAppError(http.StatusRequestEntityTooLarge, ErrorTypeValidation, ErrCodeBodyTooLarge, message)
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return newAppError(http.StatusNotFound, ErrorTypeNotFound, code, message)
}

func NewUnauthorizedError(message string, code ErrorCode) *AppError {
	return newAppError(http.StatusUnauthorized, ErrorTypeUnauthorized, code, message)
}

func NewForbiddenError(message string, code ErrorCode) *AppError {
	return newAppError(http.StatusForbidden, ErrorTypeForbidden, code, message)
}

func NewConflictError(message string, code ErrorCode) *AppError {
	return newAppError(http.StatusConflict, ErrorTypeConflict, code, message)
}

func NewInternalError(message string, cause error) *AppError {
	e := newAppError(http.StatusInternalServerError, ErrorTypeInternal, ErrCodeInternal, message)
	e.Cause = cause
	return e
}

func NewMethodNotAllowedError(method string) *AppError {
	return newAppError(http.StatusMethodNotAllowed, ErrorTypeMethod, ErrCodeMethodNotAllowed,
		fmt.Sprintf("Method %s not allowed", method))
}

// NewExternalError reports a failed upstream call. Upstream 4xx statuses are
// passed through, everything else becomes 502.
func NewExternalError(message string, upstreamStatus int, cause error) *AppError {
	status := http.StatusBadGateway
	if upstreamStatus >= 400 && upstreamStatus < 500 {
		status = upstreamStatus
	}
	e := newAppError(status, ErrorTypeExternal, ErrCodeUpstreamError, message)
	e.Cause = cause
	return e
}

var (
	ErrUserNotFound            = NewUnauthorizedError("User is not onboarded", ErrCodeUserNotFound)
	ErrPLWDNotFound            = NewNotFoundError("PLWD not found", ErrCodePLWDNotFound)
	ErrMemberNotFound          = NewNotFoundError("Carecircle member not found", ErrCodeMemberNotFound)
	ErrNotInCarecircle         = NewForbiddenError("User is not part of this carecircle", ErrCodeNotInCarecircle)
	ErrInsufficientPermissions = NewForbiddenError("Insufficient permissions", ErrCodeInsufficientPermissions)
	ErrCaretakerNotMember      = NewValidationError("The primary caretaker cannot be added to the carecircle", ErrCodeCaretakerNotMember)

	ErrMissingToken = NewUnauthorizedError("Missing authorization token", ErrCodeMissingToken)
	ErrInvalidToken = NewUnauthorizedError("Invalid token", ErrCodeInvalidToken)
	ErrTokenExpired = NewUnauthorizedError("Token has expired", ErrCodeTokenExpired)

	ErrRateLimited = newAppError(http.StatusTooManyRequests, ErrorTypeRateLimit, ErrCodeRateLimited, "Too many requests")
)

func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

type Response struct {
	Error *AppError `json:"error"`
}

func (e *AppError) ToHTTPResponse() (int, interface{}) {
	return e.StatusCode, Response{Error: e}
}

type appErrorBody struct {
	Type    ErrorType   `json:"type"`
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(appErrorBody{Type: e.Type, Code: e.Code, Message: e.Message, Details: e.Details})
}
