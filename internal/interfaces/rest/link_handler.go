package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gridbase/gridbase/internal/application/services"
	"github.com/gridbase/gridbase/internal/domain/models"
)

// LinkHandler exposes link tables, their columns, and their edges
type LinkHandler struct {
	svcMgr *services.ServiceManager
}

func NewLinkHandler(svcMgr *services.ServiceManager) *LinkHandler {
	return &LinkHandler{svcMgr: svcMgr}
}

// LinkTableRequest is the create/update body for link tables
type LinkTableRequest struct {
	Name        string `json:"name"`
	FromTableID int64  `json:"from_table_id"`
	ToTableID   int64  `json:"to_table_id"`
}

// LinkColumnRequest is the create/update body for edge attribute columns
type LinkColumnRequest struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
	EnumID   *int64 `json:"enum_id"`
	Required bool   `json:"required"`
	Unique   bool   `json:"unique"`
}

// LinkRecordRequest is the create body for edges
type LinkRecordRequest struct {
	FromRecordID int64                  `json:"from_record_id"`
	ToRecordID   int64                  `json:"to_record_id"`
	Data         map[string]interface{} `json:"data"`
}

// CreateLinkTable handles POST /api/link-tables
func (h *LinkHandler) CreateLinkTable(c *gin.Context) {
	var req LinkTableRequest
	if !BindJSON(c, &req) {
		return
	}
	lt, err := h.svcMgr.Link.CreateLinkTable(c.Request.Context(), req.Name, req.FromTableID, req.ToTableID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"link_table": lt})
}

// ListLinkTables handles GET /api/link-tables
func (h *LinkHandler) ListLinkTables(c *gin.Context) {
	lts, err := h.svcMgr.Link.ListLinkTables(c.Request.Context())
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"link_tables": lts})
}

// GetLinkTable handles GET /api/link-tables/:id
func (h *LinkHandler) GetLinkTable(c *gin.Context) {
	id, ok := PathID(c, "id")
	if !ok {
		return
	}
	lt, err := h.svcMgr.Link.GetLinkTable(c.Request.Context(), id)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"link_table": lt})
}

// UpdateLinkTable handles PUT /api/link-tables/:id
func (h *LinkHandler) UpdateLinkTable(c *gin.Context) {
	id, ok := PathID(c, "id")
	if !ok {
		return
	}
	var req LinkTableRequest
	if !BindJSON(c, &req) {
		return
	}
	lt, err := h.svcMgr.Link.UpdateLinkTable(c.Request.Context(), id, req.Name)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"link_table": lt})
}

// DeleteLinkTable handles DELETE /api/link-tables/:id
func (h *LinkHandler) DeleteLinkTable(c *gin.Context) {
	id, ok := PathID(c, "id")
	if !ok {
		return
	}
	if err := h.svcMgr.Link.DeleteLinkTable(c.Request.Context(), id); err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// CreateLinkColumn handles POST /api/link-tables/:id/columns
func (h *LinkHandler) CreateLinkColumn(c *gin.Context) {
	linkTableID, ok := PathID(c, "id")
	if !ok {
		return
	}
	var req LinkColumnRequest
	if !BindJSON(c, &req) {
		return
	}
	col, err := h.svcMgr.Link.CreateLinkColumn(c.Request.Context(), linkTableID, &models.LinkColumn{
		Name:     req.Name,
		DataType: models.DataType(req.DataType),
		EnumID:   req.EnumID,
		Required: req.Required,
		Unique:   req.Unique,
	})
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"column": col})
}

// UpdateLinkColumn handles PUT /api/link-columns/:id
func (h *LinkHandler) UpdateLinkColumn(c *gin.Context) {
	id, ok := PathID(c, "id")
	if !ok {
		return
	}
	var req LinkColumnRequest
	if !BindJSON(c, &req) {
		return
	}
	col, err := h.svcMgr.Link.UpdateLinkColumn(c.Request.Context(), id, &models.LinkColumn{
		Name:     req.Name,
		DataType: models.DataType(req.DataType),
		EnumID:   req.EnumID,
		Required: req.Required,
		Unique:   req.Unique,
	})
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"column": col})
}

// DeleteLinkColumn handles DELETE /api/link-columns/:id
func (h *LinkHandler) DeleteLinkColumn(c *gin.Context) {
	id, ok := PathID(c, "id")
	if !ok {
		return
	}
	if err := h.svcMgr.Link.DeleteLinkColumn(c.Request.Context(), id); err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// CreateLinkRecord handles POST /api/link-tables/:id/records
func (h *LinkHandler) CreateLinkRecord(c *gin.Context) {
	linkTableID, ok := PathID(c, "id")
	if !ok {
		return
	}
	var req LinkRecordRequest
	if !BindJSON(c, &req) {
		return
	}
	lr, err := h.svcMgr.Link.CreateLinkRecord(c.Request.Context(), linkTableID, req.FromRecordID, req.ToRecordID, req.Data)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"link_record": lr})
}

// ListLinkRecords handles GET /api/link-tables/:id/records
func (h *LinkHandler) ListLinkRecords(c *gin.Context) {
	linkTableID, ok := PathID(c, "id")
	if !ok {
		return
	}
	lrs, err := h.svcMgr.Link.ListLinkRecords(c.Request.Context(), linkTableID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"link_records": lrs})
}

// UpdateLinkRecord handles PUT /api/link-records/:id
func (h *LinkHandler) UpdateLinkRecord(c *gin.Context) {
	id, ok := PathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Data map[string]interface{} `json:"data"`
	}
	if !BindJSON(c, &req) {
		return
	}
	lr, err := h.svcMgr.Link.UpdateLinkRecord(c.Request.Context(), id, req.Data)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"link_record": lr})
}

// DeleteLinkRecord handles DELETE /api/link-records/:id
func (h *LinkHandler) DeleteLinkRecord(c *gin.Context) {
	id, ok := PathID(c, "id")
	if !ok {
		return
	}
	if err := h.svcMgr.Link.DeleteLinkRecord(c.Request.Context(), id); err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}
