package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"viralsafe-backend/internal/common/errors"
)

const (
	RequestIDKey    = "request_id"
	RequestIDHeader = "X-Request-ID"
)

// RequestID middleware для добавления ID запроса
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(RequestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)
		c.Next()
	}
}

// Recovery turns panics into an INTERNAL_ERROR response.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		requestID := GetRequestID(c)

		log.Error().
			Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Interface("panic", recovered).
			Str("stack", string(debug.Stack())).
			Msg("Panic recovered")

		appErr := errors.New(errors.ErrCodeInternal, "Internal server error").
			WithDetail("panic", fmt.Sprintf("%v", recovered))

		sendErrorResponse(c, appErr)
		c.Abort()
	})
}

// ErrorHandler renders the last error pushed with c.Error once the handler chain returns.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		appErr, ok := errors.AsAppError(err)
		if !ok {
			appErr = errors.Wrap(err, errors.ErrCodeInternal, "Handler error occurred")
		}
		if uid := GetUserID(c); uid != "" && appErr.UserID == "" {
			appErr.WithUserID(uid)
		}
		sendErrorResponse(c, appErr)
	}
}

// ErrorBody is the client-visible part of an error.
type ErrorBody struct {
	Code    errors.ErrorCode       `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Success   bool       `json:"success"`
	Error     *ErrorBody `json:"error"`
	Timestamp time.Time  `json:"timestamp"`
	RequestID string     `json:"request_id"`
	Path      string     `json:"path,omitempty"`
	Method    string     `json:"method,omitempty"`
}

func sendErrorResponse(c *gin.Context, appErr *errors.AppError) {
	requestID := GetRequestID(c)

	appErr.WithRequestID(requestID).
		WithContext("path", c.Request.URL.Path).
		WithContext("method", c.Request.Method)

	logError(c, appErr)

	body := &ErrorBody{Code: appErr.Code, Message: appErr.Message, Details: appErr.Details}
	if appErr.IsInternal() || StatusCode(appErr.Code) == http.StatusInternalServerError {
		body = &ErrorBody{Code: errors.ErrCodeInternal, Message: "Internal server error"}
	}

	c.JSON(StatusCode(appErr.Code), ErrorResponse{
		Success:   false,
		Error:     body,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
		Path:      c.Request.URL.Path,
		Method:    c.Request.Method,
	})
}

// StatusCode maps an error code to its HTTP status.
func StatusCode(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeValidation, errors.ErrCodeBadRequest, errors.ErrCodeNonceExpired,
		errors.ErrCodeNonceMismatch, errors.ErrCodeMissingRegistrationData, errors.ErrCodeInsufficientTokens:
		return http.StatusBadRequest
	case errors.ErrCodeUnauthenticated, errors.ErrCodeUnauthorized, errors.ErrCodeInvalidSignature,
		errors.ErrCodeInvalidToken, errors.ErrCodeExpiredToken, errors.ErrCodeInvalidRefreshToken:
		return http.StatusUnauthorized
	case errors.ErrCodeForbidden, errors.ErrCodeUserBanned, errors.ErrCodeNotOwner:
		return http.StatusForbidden
	case errors.ErrCodeNotFound, errors.ErrCodeNonceNotFound, errors.ErrCodeUserNotFound, errors.ErrCodePostNotFound:
		return http.StatusNotFound
	case errors.ErrCodeConflict, errors.ErrCodeUsernameTaken, errors.ErrCodeAlreadyVoted,
		errors.ErrCodeInvalidStatusTransition, errors.ErrCodeMintAlreadyRequested:
		return http.StatusConflict
	case errors.ErrCodeRateLimit:
		return http.StatusTooManyRequests
	case errors.ErrCodeServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func logError(c *gin.Context, appErr *errors.AppError) {
	var event *zerolog.Event
	msg := "Application error occurred"
	switch {
	case appErr.IsInternal():
		event, msg = log.Error(), "Internal error occurred"
	case appErr.IsUnauthorized():
		event, msg = log.Warn(), "Unauthorized access attempt"
	case appErr.IsValidation():
		event, msg = log.Info(), "Validation error"
	case appErr.IsNotFound():
		event, msg = log.Info(), "Resource not found"
	case StatusCode(appErr.Code) >= http.StatusInternalServerError:
		event = log.Error()
	default:
		event = log.Info()
	}

	event = event.
		Str("request_id", appErr.RequestID).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Str("error_code", string(appErr.Code)).
		Str("error_message", appErr.Message)

	if appErr.UserID != "" {
		event = event.Str("user_id", appErr.UserID)
	}
	if len(appErr.Details) > 0 {
		event = event.Interface("details", appErr.Details)
	}
	if appErr.Cause != nil {
		event = event.Err(appErr.Cause)
	}
	if appErr.IsInternal() && len(appErr.Stack) > 0 {
		event = event.Strs("stack", appErr.Stack)
	}
	event.Msg(msg)
}

// GetRequestID получает ID запроса из контекста
func GetRequestID(c *gin.Context) string {
	if requestID, exists := c.Get(RequestIDKey); exists {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return "unknown"
}
