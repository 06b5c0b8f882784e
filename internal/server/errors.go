package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	apikeydomain "github.com/smallbiznis/featureflags/internal/apikey/domain"
	auditdomain "github.com/smallbiznis/featureflags/internal/audit/domain"
	authdomain "github.com/smallbiznis/featureflags/internal/auth/domain"
	"github.com/smallbiznis/featureflags/internal/authorization"
	flagdomain "github.com/smallbiznis/featureflags/internal/flag/domain"
	"github.com/smallbiznis/featureflags/internal/observability/logger"
	"go.uber.org/zap"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrRateLimited    = errors.New("rate_limited")
)

// messageError replaces the public message of the error it wraps.
type messageError struct {
	err     error
	message string
}

func (e *messageError) Error() string { return e.err.Error() }
func (e *messageError) Unwrap() error { return e.err }

func withMessage(err error, message string) error {
	return &messageError{err: err, message: message}
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		if status >= http.StatusInternalServerError {
			logger.FromContext(c.Request.Context()).Error("request failed", zap.Error(lastErr.Err))
		}
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	status, payload := classify(err)

	var msgErr *messageError
	if errors.As(err, &msgErr) && strings.TrimSpace(msgErr.message) != "" {
		payload.Message = msgErr.message
	}
	return status, payload
}

func classify(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_request",
			Message: "invalid request",
			Errors:  vErr.Errors,
		}
	}

	if code, ok := validationErrorCode(err); ok {
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_request",
			Message: "invalid request",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authdomain.ErrInvalidCredentials),
		errors.Is(err, authorization.ErrInvalidActor):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, ErrNotFound),
		errors.Is(err, flagdomain.ErrNotFound),
		errors.Is(err, apikeydomain.ErrNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, flagdomain.ErrAlreadyExists),
		errors.Is(err, flagdomain.ErrTargetAlreadyExists):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "rate limit exceeded",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

var validationErrors = []error{
	ErrInvalidRequest,
	flagdomain.ErrInvalidFeatureKey,
	flagdomain.ErrInvalidEnvironment,
	flagdomain.ErrInvalidRolloutPercent,
	flagdomain.ErrInvalidUserID,
	apikeydomain.ErrInvalidName,
	apikeydomain.ErrInvalidEnvironment,
	apikeydomain.ErrInvalidID,
	auditdomain.ErrInvalidPageToken,
}

func validationErrorCode(err error) (string, bool) {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return target.Error(), true
		}
	}
	return "", false
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	return strings.TrimPrefix(code, "invalid_")
}

func validationErrorMessage(code string) string {
	switch code {
	case flagdomain.ErrInvalidFeatureKey.Error():
		return "featureKey must be 1-255 characters with no '/' or whitespace"
	case flagdomain.ErrInvalidEnvironment.Error():
		return "environment must be one of DEV, STAGING, PROD"
	case flagdomain.ErrInvalidRolloutPercent.Error():
		return "rolloutPercent must be between 0 and 100"
	case flagdomain.ErrInvalidUserID.Error():
		return "userId must be 1-255 characters"
	case auditdomain.ErrInvalidPageToken.Error():
		return "page_token is not valid"
	case "invalid_request":
		return "invalid request"
	default:
		return "invalid value"
	}
}

func conflictMessage(err error) string {
	if errors.Is(err, flagdomain.ErrTargetAlreadyExists) {
		return "user is already targeted"
	}
	return "flag already exists"
}

// classifyErrorForLog returns the envelope type and a stable code for the
// request log line.
func classifyErrorForLog(err error) (string, string) {
	status, payload := classify(err)
	if status >= http.StatusInternalServerError {
		return payload.Type, "internal"
	}
	if code, ok := validationErrorCode(err); ok {
		return payload.Type, code
	}
	return payload.Type, payload.Type
}
