package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gridbase/gridbase/internal/application/services"
)

// ContextKeyUser is where RequireAuth stores the authenticated session
const ContextKeyUser = "user"

// RequireAuth validates the Bearer token and stores the session in context
func RequireAuth(authSvc *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			unauthorized(c, "no authorization token provided")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			unauthorized(c, "invalid authorization header format")
			return
		}

		session, err := authSvc.Authenticate(parts[1])
		if err != nil {
			unauthorized(c, err.Error())
			return
		}

		c.Set(ContextKeyUser, *session)
		c.Next()
	}
}

func unauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"error":   message,
		"message": message,
		"code":    "UNAUTHORIZED",
		"data":    nil,
	})
	c.Abort()
}
