package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/raghavpatnecha/mnemosyne/pkg/errors"
)

// HTTPError captures the metadata required to serialize an error response consistently.
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Err     error
	Details map[string]any
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// NewHTTPError is a helper to build an HTTPError instance.
func NewHTTPError(status int, code, message string, err error) *HTTPError {
	return &HTTPError{Status: status, Code: code, Message: message, Err: err}
}

// errorClassToStatus maps an apperrors.AppError code to the HTTP status and
// wire code it should produce, in one table shared by every route instead of
// a per-handler switch.
func errorClassToStatus(code string) (int, string) {
	switch code {
	case "validation":
		return http.StatusBadRequest, "validation"
	case "authentication":
		return http.StatusUnauthorized, "authentication"
	case "permission":
		return http.StatusForbidden, "permission"
	case "not_found":
		return http.StatusNotFound, "not_found"
	case "duplicate":
		return http.StatusBadRequest, "duplicate"
	case "duplicate_document":
		return http.StatusBadRequest, "duplicate_document"
	case "dimension_mismatch":
		return http.StatusBadRequest, "dimension_mismatch"
	case "rate_limited":
		return http.StatusTooManyRequests, "rate_limited"
	case "transient_upstream":
		return http.StatusBadGateway, "transient_upstream"
	case "permanent_upstream":
		return http.StatusBadGateway, "permanent_upstream"
	case "cancelled":
		return 499, "cancelled"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func asHTTPError(err error) *HTTPError {
	if err == nil {
		return nil
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		status, code := errorClassToStatus(appErr.Code)
		return &HTTPError{Status: status, Code: code, Message: appErr.Message, Err: appErr.Err, Details: appErr.Details}
	}
	return &HTTPError{
		Status:  http.StatusInternalServerError,
		Code:    "internal",
		Message: "something went wrong",
		Err:     err,
	}
}

func abortWithError(c *gin.Context, err *HTTPError) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
