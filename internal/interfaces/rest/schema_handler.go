package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gridbase/gridbase/internal/application/services"
	"github.com/gridbase/gridbase/internal/domain/models"
)

// SchemaHandler exposes the table and column registry
type SchemaHandler struct {
	svcMgr *services.ServiceManager
}

func NewSchemaHandler(svcMgr *services.ServiceManager) *SchemaHandler {
	return &SchemaHandler{svcMgr: svcMgr}
}

// TableRequest is the create/update body for tables
type TableRequest struct {
	Name                   string `json:"name"`
	DisplayFormat          string `json:"display_format"`
	DisplayFormatSecondary string `json:"display_format_secondary"`
}

// ColumnRequest is the create/update body for columns
type ColumnRequest struct {
	Name                 string `json:"name"`
	DataType             string `json:"data_type"`
	IsList               bool   `json:"is_list"`
	EnumID               *int64 `json:"enum_id"`
	ReferenceTableID     *int64 `json:"reference_table_id"`
	ReferenceLinkTableID *int64 `json:"reference_link_table_id"`
	Required             bool   `json:"required"`
	Unique               bool   `json:"unique"`
	Searchable           bool   `json:"searchable"`
}

func (r *ColumnRequest) toModel() *models.Column {
	return &models.Column{
		Name:                 r.Name,
		DataType:             models.DataType(r.DataType),
		IsList:               r.IsList,
		EnumID:               r.EnumID,
		ReferenceTableID:     r.ReferenceTableID,
		ReferenceLinkTableID: r.ReferenceLinkTableID,
		Required:             r.Required,
		Unique:               r.Unique,
		Searchable:           r.Searchable,
	}
}

// CreateTable handles POST /api/tables
func (h *SchemaHandler) CreateTable(c *gin.Context) {
	var req TableRequest
	if !BindJSON(c, &req) {
		return
	}
	t, err := h.svcMgr.Schema.CreateTable(c.Request.Context(), &models.Table{
		Name:                   req.Name,
		DisplayFormat:          req.DisplayFormat,
		DisplayFormatSecondary: req.DisplayFormatSecondary,
	})
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"table": t})
}

// ListTables handles GET /api/tables
func (h *SchemaHandler) ListTables(c *gin.Context) {
	tables, err := h.svcMgr.Schema.ListTables(c.Request.Context())
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tables": tables})
}

// GetTable handles GET /api/tables/:id
func (h *SchemaHandler) GetTable(c *gin.Context) {
	id, ok := PathID(c, "id")
	if !ok {
		return
	}
	t, err := h.svcMgr.Schema.GetTable(c.Request.Context(), id)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"table": t})
}

// UpdateTable handles PUT /api/tables/:id
func (h *SchemaHandler) UpdateTable(c *gin.Context) {
	id, ok := PathID(c, "id")
	if !ok {
		return
	}
	var req TableRequest
	if !BindJSON(c, &req) {
		return
	}
	t, err := h.svcMgr.Schema.UpdateTable(c.Request.Context(), id, &models.Table{
		Name:                   req.Name,
		DisplayFormat:          req.DisplayFormat,
		DisplayFormatSecondary: req.DisplayFormatSecondary,
	})
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"table": t})
}

// DeleteTable handles DELETE /api/tables/:id
func (h *SchemaHandler) DeleteTable(c *gin.Context) {
	id, ok := PathID(c, "id")
	if !ok {
		return
	}
	if err := h.svcMgr.Schema.DeleteTable(c.Request.Context(), id); err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// CreateColumn handles POST /api/tables/:id/columns
func (h *SchemaHandler) CreateColumn(c *gin.Context) {
	tableID, ok := PathID(c, "id")
	if !ok {
		return
	}
	var req ColumnRequest
	if !BindJSON(c, &req) {
		return
	}
	col, err := h.svcMgr.Schema.CreateColumn(c.Request.Context(), tableID, req.toModel())
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"column": col})
}

// UpdateColumn handles PUT /api/columns/:id
func (h *SchemaHandler) UpdateColumn(c *gin.Context) {
	id, ok := PathID(c, "id")
	if !ok {
		return
	}
	var req ColumnRequest
	if !BindJSON(c, &req) {
		return
	}
	col, err := h.svcMgr.Schema.UpdateColumn(c.Request.Context(), id, req.toModel())
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"column": col})
}

// DeleteColumn handles DELETE /api/columns/:id
func (h *SchemaHandler) DeleteColumn(c *gin.Context) {
	id, ok := PathID(c, "id")
	if !ok {
		return
	}
	if err := h.svcMgr.Schema.DeleteColumn(c.Request.Context(), id); err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}
