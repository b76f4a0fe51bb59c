package rest

import (
	"log"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/gridbase/gridbase/internal/interfaces/middleware"
	"github.com/gridbase/gridbase/pkg/apperr"
	"github.com/gridbase/gridbase/pkg/auth"
)

// GetUserFromContext extracts the authenticated user from gin.Context
func GetUserFromContext(c *gin.Context) *auth.UserSession {
	v, exists := c.Get(middleware.ContextKeyUser)
	if !exists {
		return nil
	}
	session := v.(auth.UserSession)
	return &session
}

// RespondAppError sends a standardised JSON error response using pkg/apperr.
// Validation failures carry the complete per-field violation list.
func RespondAppError(c *gin.Context, err error) {
	code := apperr.GetHTTPStatus(err)
	message := err.Error()

	if code >= 500 {
		log.Printf("❌ ERROR [%d] %s %s: %s", code, c.Request.Method, c.Request.URL.Path, message)
	}

	body := gin.H{
		"error":   message,
		"message": message,
		"code":    apperr.GetErrorCode(err),
		"data":    nil,
	}
	if details := apperr.Details(err); len(details) > 0 {
		body["details"] = details
	}
	c.JSON(code, body)
}

// BindJSON binds JSON and returns true if successful. If failed, it sends bad request error.
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		RespondAppError(c, apperr.NewValidationError("body", err.Error()))
		return false
	}
	return true
}

// PathID parses a numeric path parameter, responding with a validation error
// when it is not a positive integer.
func PathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		RespondAppError(c, apperr.NewValidationError(name, "must be a positive integer"))
		return 0, false
	}
	return id, true
}
