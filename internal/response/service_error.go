package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shopcore/admin-guard/internal/service"
)

// FromError maps a service error onto status, code and body.
// Anything that is not a *service.AuthError is an internal error.
func FromError(err error) (int, *ErrorBody) {
	var authErr *service.AuthError
	if !errors.As(err, &authErr) {
		return http.StatusInternalServerError, &ErrorBody{Code: ErrInternal, Message: GetMessage(ErrInternal)}
	}

	code := ErrCode(authErr.Code)
	body := &ErrorBody{Code: code, Message: GetMessage(code)}
	if authErr.Code == service.CodeAccountLocked {
		body.LockoutMinutes = authErr.LockoutMinutes()
	}
	return statusFor(authErr), body
}

func statusFor(e *service.AuthError) int {
	switch e.Kind {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindAuthentication:
		return http.StatusUnauthorized
	case service.KindAuthorization:
		return http.StatusForbidden
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict, service.KindTransient:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// Error writes err as an error response.
func Error(c *gin.Context, err error) {
	status, body := FromError(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	FailWithBody(c, status, body)
}

// AbortError aborts the chain with err as an error response.
func AbortError(c *gin.Context, err error) {
	status, body := FromError(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	AbortWithBody(c, status, body)
}
