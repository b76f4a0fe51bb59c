package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/gridbase/gridbase/internal/application/services"
	"github.com/gridbase/gridbase/internal/interfaces/middleware"
	"github.com/gridbase/gridbase/internal/interfaces/ws"
)

// NewRouter assembles the HTTP surface: public auth and websocket endpoints,
// and the authenticated API group.
func NewRouter(svcMgr *services.ServiceManager, hub *ws.Hub) *gin.Engine {
	router := gin.Default()
	router.Use(middleware.Cors())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "server": "golang"})
	})

	authHandler := NewAuthHandler(svcMgr)
	schemaHandler := NewSchemaHandler(svcMgr)
	enumHandler := NewEnumHandler(svcMgr)
	linkHandler := NewLinkHandler(svcMgr)
	recordHandler := NewRecordHandler(svcMgr)

	router.POST("/api/auth/register", authHandler.Register)
	router.POST("/api/auth/login", authHandler.Login)

	// Token rides a query parameter on the websocket dial
	router.GET("/ws", hub.Handle)

	api := router.Group("/api")
	api.Use(middleware.RequireAuth(svcMgr.Auth))
	{
		api.GET("/auth/me", authHandler.Me)

		api.POST("/tables", schemaHandler.CreateTable)
		api.GET("/tables", schemaHandler.ListTables)
		api.GET("/tables/:id", schemaHandler.GetTable)
		api.PUT("/tables/:id", schemaHandler.UpdateTable)
		api.DELETE("/tables/:id", schemaHandler.DeleteTable)
		api.POST("/tables/:id/columns", schemaHandler.CreateColumn)
		api.PUT("/columns/:id", schemaHandler.UpdateColumn)
		api.DELETE("/columns/:id", schemaHandler.DeleteColumn)

		api.POST("/enums", enumHandler.CreateEnum)
		api.GET("/enums", enumHandler.ListEnums)
		api.GET("/enums/:id", enumHandler.GetEnum)
		api.PUT("/enums/:id", enumHandler.UpdateEnum)
		api.DELETE("/enums/:id", enumHandler.DeleteEnum)
		api.POST("/enums/:id/values", enumHandler.AddValue)
		api.DELETE("/enums/:id/values/:valueId", enumHandler.DeleteValue)

		api.POST("/link-tables", linkHandler.CreateLinkTable)
		api.GET("/link-tables", linkHandler.ListLinkTables)
		api.GET("/link-tables/:id", linkHandler.GetLinkTable)
		api.PUT("/link-tables/:id", linkHandler.UpdateLinkTable)
		api.DELETE("/link-tables/:id", linkHandler.DeleteLinkTable)
		api.POST("/link-tables/:id/columns", linkHandler.CreateLinkColumn)
		api.PUT("/link-columns/:id", linkHandler.UpdateLinkColumn)
		api.DELETE("/link-columns/:id", linkHandler.DeleteLinkColumn)
		api.POST("/link-tables/:id/records", linkHandler.CreateLinkRecord)
		api.GET("/link-tables/:id/records", linkHandler.ListLinkRecords)
		api.PUT("/link-records/:id", linkHandler.UpdateLinkRecord)
		api.DELETE("/link-records/:id", linkHandler.DeleteLinkRecord)

		api.POST("/records/:table", recordHandler.Create)
		api.GET("/records/:table", recordHandler.List)
		api.GET("/records/:table/:id", recordHandler.Get)
		api.PUT("/records/:table/:id", recordHandler.Update)
		api.DELETE("/records/:table/:id", recordHandler.Delete)

		api.GET("/search/:table", recordHandler.Search)
	}

	return router
}
