package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gridbase/gridbase/internal/application/services"
)

type AuthHandler struct {
	svcMgr *services.ServiceManager
}

func NewAuthHandler(svcMgr *services.ServiceManager) *AuthHandler {
	return &AuthHandler{svcMgr: svcMgr}
}

// CredentialsRequest carries a name/password pair
type CredentialsRequest struct {
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req CredentialsRequest
	if !BindJSON(c, &req) {
		return
	}

	user, err := h.svcMgr.Auth.Register(c.Request.Context(), req.Name, req.Password)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req CredentialsRequest
	if !BindJSON(c, &req) {
		return
	}

	token, user, err := h.svcMgr.Auth.Login(c.Request.Context(), req.Name, req.Password)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": GetUserFromContext(c)})
}
