package handlers

import (
	"errors"
	"net/http"

	"github.com/chromatech/advisor/internal/utils"
	"github.com/gin-gonic/gin"
)

type APIError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

func writeError(c *gin.Context, err error) {
	c.JSON(utils.HTTPStatus(err), toAPIError(err))
}

func toAPIError(err error) APIError {
	var ae *utils.AppError
	if errors.As(err, &ae) {
		return APIError{Code: ae.Code, Message: ae.Message}
	}
	return APIError{
		Code:    utils.CodeInternal,
		Message: http.StatusText(utils.HTTPStatus(err)),
	}
}

func requireUserID(c *gin.Context) (string, bool) {
	if s := c.GetString("user_id"); s != "" {
		return s, true
	}

	writeError(c, utils.E(utils.CodeUnauthorized, "Auth", "unauthorized", nil))
	return "", false
}

// optionalUserID returns "" for anonymous callers.
func optionalUserID(c *gin.Context) string {
	return c.GetString("user_id")
}
