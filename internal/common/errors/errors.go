package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode is a stable, machine-readable error identifier returned to API clients.
type ErrorCode string

const (
	// Generic
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation         ErrorCode = "VALIDATION_ERROR"
	ErrCodeBadRequest         ErrorCode = "BAD_REQUEST"
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden          ErrorCode = "FORBIDDEN"
	ErrCodeConflict           ErrorCode = "CONFLICT"
	ErrCodeRateLimit          ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"

	// Auth
	ErrCodeUnauthenticated         ErrorCode = "UNAUTHENTICATED"
	ErrCodeInvalidToken            ErrorCode = "INVALID_TOKEN"
	ErrCodeExpiredToken            ErrorCode = "EXPIRED_TOKEN"
	ErrCodeInvalidRefreshToken     ErrorCode = "INVALID_REFRESH_TOKEN"
	ErrCodeInvalidSignature        ErrorCode = "INVALID_SIGNATURE"
	ErrCodeNonceNotFound           ErrorCode = "NONCE_NOT_FOUND"
	ErrCodeNonceExpired            ErrorCode = "NONCE_EXPIRED"
	ErrCodeNonceMismatch           ErrorCode = "NONCE_MISMATCH"
	ErrCodeMissingRegistrationData ErrorCode = "MISSING_REGISTRATION_DATA"

	// Users
	ErrCodeUserNotFound  ErrorCode = "USER_NOT_FOUND"
	ErrCodeUserBanned    ErrorCode = "USER_BANNED"
	ErrCodeUsernameTaken ErrorCode = "USERNAME_TAKEN"

	// Posts and votes
	ErrCodePostNotFound            ErrorCode = "POST_NOT_FOUND"
	ErrCodeNotOwner                ErrorCode = "NOT_OWNER"
	ErrCodeAlreadyVoted            ErrorCode = "ALREADY_VOTED"
	ErrCodeInsufficientTokens      ErrorCode = "INSUFFICIENT_TOKENS"
	ErrCodeInvalidStatusTransition ErrorCode = "INVALID_STATUS_TRANSITION"
	ErrCodeMintAlreadyRequested    ErrorCode = "MINT_ALREADY_REQUESTED"

	// Infrastructure
	ErrCodeDatabaseError ErrorCode = "DATABASE_ERROR"
	ErrCodeCacheError    ErrorCode = "CACHE_ERROR"
)

// AppError is a typed application error. Cause and Stack are kept for logs only.
type AppError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Context   map[string]string      `json:"-"`
	Stack     []string               `json:"-"`
	Timestamp time.Time              `json:"-"`
	RequestID string                 `json:"-"`
	UserID    string                 `json:"-"`
	Cause     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// IsNotFound reports whether the error is one of the "not found" codes.
func (e *AppError) IsNotFound() bool {
	switch e.Code {
	case ErrCodeNotFound, ErrCodeUserNotFound, ErrCodePostNotFound, ErrCodeNonceNotFound:
		return true
	}
	return false
}

// IsValidation reports whether the error was caused by malformed client input.
func (e *AppError) IsValidation() bool {
	switch e.Code {
	case ErrCodeValidation, ErrCodeBadRequest, ErrCodeMissingRegistrationData,
		ErrCodeNonceExpired, ErrCodeNonceMismatch, ErrCodeInsufficientTokens:
		return true
	}
	return false
}

// IsUnauthorized reports whether the error is an authentication or authorization failure.
func (e *AppError) IsUnauthorized() bool {
	switch e.Code {
	case ErrCodeUnauthorized, ErrCodeUnauthenticated, ErrCodeForbidden, ErrCodeUserBanned,
		ErrCodeInvalidToken, ErrCodeExpiredToken, ErrCodeInvalidRefreshToken,
		ErrCodeInvalidSignature, ErrCodeNotOwner:
		return true
	}
	return false
}

// IsInternal reports whether the error must be hidden from API clients.
func (e *AppError) IsInternal() bool {
	switch e.Code {
	case ErrCodeInternal, ErrCodeDatabaseError, ErrCodeCacheError:
		return true
	}
	return false
}

func (e *AppError) WithContext(key, value string) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func (e *AppError) WithRequestID(requestID string) *AppError {
	e.RequestID = requestID
	return e
}

func (e *AppError) WithUserID(userID string) *AppError {
	e.UserID = userID
	return e
}

// New creates an application error with a captured stack.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Stack:     getStackTrace(),
	}
}

// Wrap attaches a cause to a new application error.
func Wrap(err error, code ErrorCode, message string) *AppError {
	appErr := New(code, message)
	appErr.Cause = err
	return appErr
}

func getStackTrace() []string {
	var stack []string
	for i := 2; ; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}
		if strings.Contains(fn.Name(), "internal/common/errors") {
			continue
		}
		stack = append(stack, fmt.Sprintf("%s:%d %s", file, line, fn.Name()))
		if len(stack) >= 10 {
			break
		}
	}
	return stack
}

// NewValidationError reports a single invalid field.
func NewValidationError(field, reason string) *AppError {
	return New(ErrCodeValidation, fmt.Sprintf("Validation failed for field '%s': %s", field, reason)).
		WithDetail("field", field).
		WithDetail("reason", reason)
}

func NewPostNotFoundError(postID string) *AppError {
	return New(ErrCodePostNotFound, "Post not found").
		WithDetail("post_id", postID)
}

func NewUserNotFoundError(userID string) *AppError {
	return New(ErrCodeUserNotFound, "User not found").
		WithDetail("user_id", userID)
}

func NewUnauthenticatedError(reason string) *AppError {
	return New(ErrCodeUnauthenticated, "Authentication required").
		WithDetail("reason", reason)
}

func NewForbiddenError(reason string) *AppError {
	return New(ErrCodeForbidden, fmt.Sprintf("Forbidden: %s", reason)).
		WithDetail("reason", reason)
}

func NewConflictError(resource, reason string) *AppError {
	return New(ErrCodeConflict, fmt.Sprintf("Conflict with %s: %s", resource, reason)).
		WithDetail("resource", resource).
		WithDetail("reason", reason)
}

func NewDatabaseError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeDatabaseError, fmt.Sprintf("Database operation failed: %s", operation)).
		WithDetail("operation", operation)
}

func NewRateLimitError(retryAfter time.Duration) *AppError {
	return New(ErrCodeRateLimit, "Rate limit exceeded").
		WithDetail("retry_after", retryAfter.String())
}

func NewServiceUnavailableError(component string) *AppError {
	return New(ErrCodeServiceUnavailable, "Service temporarily unavailable").
		WithDetail("component", component)
}

// AsAppError finds the first AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if err == nil {
		return nil, false
	}
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf returns the code of the AppError in err's chain, or "" when there is none.
func CodeOf(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ""
}
