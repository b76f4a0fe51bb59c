package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/gridbase/gridbase/internal/application/services"
	"github.com/gridbase/gridbase/pkg/apperr"
)

// RecordHandler exposes record CRUD and search, addressed by table name
type RecordHandler struct {
	svcMgr *services.ServiceManager
}

func NewRecordHandler(svcMgr *services.ServiceManager) *RecordHandler {
	return &RecordHandler{svcMgr: svcMgr}
}

// Create handles POST /api/records/:table
func (h *RecordHandler) Create(c *gin.Context) {
	var payload map[string]interface{}
	if !BindJSON(c, &payload) {
		return
	}
	view, err := h.svcMgr.Record.Create(c.Request.Context(), c.Param("table"), payload)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"record": view})
}

// List handles GET /api/records/:table
func (h *RecordHandler) List(c *gin.Context) {
	views, err := h.svcMgr.Record.List(c.Request.Context(), c.Param("table"))
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": views})
}

// Get handles GET /api/records/:table/:id
func (h *RecordHandler) Get(c *gin.Context) {
	id, ok := PathID(c, "id")
	if !ok {
		return
	}
	view, err := h.svcMgr.Record.Get(c.Request.Context(), c.Param("table"), id)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"record": view})
}

// Update handles PUT /api/records/:table/:id
func (h *RecordHandler) Update(c *gin.Context) {
	id, ok := PathID(c, "id")
	if !ok {
		return
	}
	var payload map[string]interface{}
	if !BindJSON(c, &payload) {
		return
	}
	view, err := h.svcMgr.Record.Update(c.Request.Context(), c.Param("table"), id, payload)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"record": view})
}

// Delete handles DELETE /api/records/:table/:id
func (h *RecordHandler) Delete(c *gin.Context) {
	id, ok := PathID(c, "id")
	if !ok {
		return
	}
	if err := h.svcMgr.Record.Delete(c.Request.Context(), c.Param("table"), id); err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// Search handles GET /api/search/:table?q=...&limit=...
func (h *RecordHandler) Search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		RespondAppError(c, apperr.NewValidationError("q", "is required"))
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			RespondAppError(c, apperr.NewValidationError("limit", "must be a positive integer"))
			return
		}
		limit = parsed
	}

	views, err := h.svcMgr.Search.Search(c.Request.Context(), c.Param("table"), query, limit)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": views, "count": len(views)})
}
