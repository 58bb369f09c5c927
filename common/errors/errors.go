package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Error represents an application error
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind (status code), so callers can test
// errors.Is(err, ErrInvalidTransition) regardless of the message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New creates a new Error
func New(code int, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Kinds surfaced by the refund and notification services.
var (
	ErrValidation        = New(http.StatusBadRequest, "Validation error", nil)
	ErrUnauthorized      = New(http.StatusUnauthorized, "Unauthorized", nil)
	ErrNotFound          = New(http.StatusNotFound, "Not found", nil)
	ErrInvalidTransition = New(http.StatusConflict, "Invalid transition", nil)
	ErrStorageFailure    = New(http.StatusInternalServerError, "Storage failure", nil)
)

func Validation(format string, args ...interface{}) *Error {
	return New(http.StatusBadRequest, fmt.Sprintf(format, args...), nil)
}

func NotFound(format string, args ...interface{}) *Error {
	return New(http.StatusNotFound, fmt.Sprintf(format, args...), nil)
}

func InvalidTransition(format string, args ...interface{}) *Error {
	return New(http.StatusConflict, fmt.Sprintf(format, args...), nil)
}

// Storage wraps a persistence failure. The cause is logged, never rendered.
func Storage(message string, err error) *Error {
	return New(http.StatusInternalServerError, message, err)
}

// ErrorMiddleware renders the last error attached with c.Error as
// {"code": ..., "message": ...}. Anything that is not an *Error becomes a 500.
func ErrorMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		var appErr *Error
		if !stderrors.As(err, &appErr) {
			appErr = New(http.StatusInternalServerError, "Internal server error", err)
		}

		if appErr.Code >= http.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
		}

		c.AbortWithStatusJSON(appErr.Code, appErr)
	}
}
