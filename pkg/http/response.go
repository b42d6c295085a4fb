package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// APIResponse is the envelope every endpoint answers with.
type APIResponse struct {
	Status    int         `json:"status" example:"200"`
	Message   string      `json:"message" example:"OK"`
	RequestID string      `json:"request_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// ValidationError describes one rejected request field.
type ValidationError struct {
	Code    string                 `json:"code,omitempty" example:"ERR_REQUIRED"`
	Field   string                 `json:"field,omitempty" example:"body"`
	Message string                 `json:"message,omitempty" example:"body is required"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

func respond(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, APIResponse{
		Status:    status,
		Message:   http.StatusText(status),
		RequestID: c.Response().Header().Get(echo.HeaderXRequestID),
		Data:      data,
	})
}

func SuccessResponse(c echo.Context, data interface{}) error {
	return respond(c, http.StatusOK, data)
}

func BadRequestResponse(c echo.Context, data interface{}) error {
	return respond(c, http.StatusBadRequest, data)
}

// AppErrorResponse answers with the status carried by an *AppError, or a
// generic 500 for anything else.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return respond(c, appErr.Status, []*AppError{appErr})
	}
	return respond(c, http.StatusInternalServerError, "Something went wrong")
}
