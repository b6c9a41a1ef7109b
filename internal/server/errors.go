package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/joseph-ayodele/brd-breakdown/internal/common"
)

// APIError is the JSON error envelope of every non-2xx response.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewBadRequestError(code, message string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Code: code, Message: message}
}

func NewInternalError(message string) *APIError {
	return &APIError{Status: http.StatusInternalServerError, Code: common.CodeInternal, Message: message}
}

// toAPIError maps application errors onto HTTP statuses. Internal causes are
// never echoed to the client.
func toAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		code := "HTTP_ERROR"
		msg := fmt.Sprintf("%v", httpErr.Message)
		if httpErr.Code == http.StatusRequestEntityTooLarge {
			code = common.CodeFileTooLarge
			msg = "File too large"
		}
		return &APIError{Status: httpErr.Code, Code: code, Message: msg}
	}

	var appErr *common.AppError
	if errors.As(err, &appErr) {
		out := &APIError{Code: appErr.Code, Message: appErr.Message}
		switch {
		case appErr.Code == common.CodeFileTooLarge:
			out.Status = http.StatusRequestEntityTooLarge
		case errors.Is(err, common.ErrNotFound):
			out.Status = http.StatusNotFound
		case errors.Is(err, common.ErrConflict):
			out.Status = http.StatusConflict
		case errors.Is(err, common.ErrValidation), errors.Is(err, common.ErrInvalidInput):
			out.Status = http.StatusBadRequest
		default:
			out.Status = http.StatusInternalServerError
			out.Code = common.CodeInternal
			out.Message = "An unexpected error occurred"
		}
		return out
	}

	return NewInternalError("An unexpected error occurred")
}

// errorHandler is installed as echo's HTTPErrorHandler.
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	apiErr := toAPIError(err)
	log := common.LoggerFromContext(c.Request().Context(), s.logger)
	if apiErr.Status >= http.StatusInternalServerError {
		log.Error("http.request.failed", "method", c.Request().Method, "path", c.Path(), "status", apiErr.Status, "error", err)
	} else {
		log.Info("http.request.rejected", "method", c.Request().Method, "path", c.Path(), "status", apiErr.Status, "code", apiErr.Code)
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(apiErr.Status)
		return
	}
	_ = c.JSON(apiErr.Status, apiErr)
}
