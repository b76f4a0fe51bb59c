package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gridbase/gridbase/internal/application/services"
)

// EnumHandler exposes enum and enum value management
type EnumHandler struct {
	svcMgr *services.ServiceManager
}

func NewEnumHandler(svcMgr *services.ServiceManager) *EnumHandler {
	return &EnumHandler{svcMgr: svcMgr}
}

// EnumRequest is the create body for enums
type EnumRequest struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// CreateEnum handles POST /api/enums
func (h *EnumHandler) CreateEnum(c *gin.Context) {
	var req EnumRequest
	if !BindJSON(c, &req) {
		return
	}
	e, err := h.svcMgr.Enum.CreateEnum(c.Request.Context(), req.Name, req.Values)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"enum": e})
}

// ListEnums handles GET /api/enums
func (h *EnumHandler) ListEnums(c *gin.Context) {
	enums, err := h.svcMgr.Enum.ListEnums(c.Request.Context())
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enums": enums})
}

// GetEnum handles GET /api/enums/:id
func (h *EnumHandler) GetEnum(c *gin.Context) {
	id, ok := PathID(c, "id")
	if !ok {
		return
	}
	e, err := h.svcMgr.Enum.GetEnum(c.Request.Context(), id)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enum": e})
}

// UpdateEnum handles PUT /api/enums/:id
func (h *EnumHandler) UpdateEnum(c *gin.Context) {
	id, ok := PathID(c, "id")
	if !ok {
		return
	}
	var req EnumRequest
	if !BindJSON(c, &req) {
		return
	}
	e, err := h.svcMgr.Enum.UpdateEnum(c.Request.Context(), id, req.Name)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enum": e})
}

// DeleteEnum handles DELETE /api/enums/:id
func (h *EnumHandler) DeleteEnum(c *gin.Context) {
	id, ok := PathID(c, "id")
	if !ok {
		return
	}
	if err := h.svcMgr.Enum.DeleteEnum(c.Request.Context(), id); err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// AddValue handles POST /api/enums/:id/values
func (h *EnumHandler) AddValue(c *gin.Context) {
	id, ok := PathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Value string `json:"value"`
	}
	if !BindJSON(c, &req) {
		return
	}
	v, err := h.svcMgr.Enum.AddValue(c.Request.Context(), id, req.Value)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"value": v})
}

// DeleteValue handles DELETE /api/enums/:id/values/:valueId
func (h *EnumHandler) DeleteValue(c *gin.Context) {
	id, ok := PathID(c, "id")
	if !ok {
		return
	}
	valueID, ok := PathID(c, "valueId")
	if !ok {
		return
	}
	if err := h.svcMgr.Enum.DeleteValue(c.Request.Context(), id, valueID); err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": valueID})
}
