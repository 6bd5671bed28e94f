package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"resumedesk/internal/errcode"
)

func Error(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

func AbortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}

func BadRequest(c *gin.Context, msg string) { Error(c, http.StatusBadRequest, msg) }
func NotFound(c *gin.Context, msg string)   { Error(c, http.StatusNotFound, msg) }
func Internal(c *gin.Context, msg string)   { Error(c, http.StatusInternalServerError, msg) }

// Fail 按错误分类写出响应体 {"error", "code"}。
func Fail(c *gin.Context, err error) {
	code := errcode.Code(err)
	msg := err.Error()
	if code == errcode.SystemError {
		msg = "internal error"
	}
	c.JSON(httpStatus(err), gin.H{"error": msg, "code": code})
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, errcode.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, errcode.ErrOverrideRequired):
		return http.StatusConflict
	case errors.Is(err, errcode.ErrNotPermitted):
		return http.StatusForbidden
	case errors.Is(err, errcode.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errcode.ErrResourceLimit):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errcode.ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
