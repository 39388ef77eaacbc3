package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/sqlnb/internal/middleware"
)

type RouterDeps struct {
	Notebooks       *NotebookHandler
	Transfer        *TransferHandler
	Maintenance     *MaintenanceHandler
	Attachments     *AttachmentHandler
	JWTSecret       []byte
	ImportRateLimit time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))

	authGroup.GET("/files", deps.Notebooks.List)
	authGroup.POST("/files", deps.Notebooks.Create)
	authGroup.GET("/files/:name", deps.Notebooks.Get)
	authGroup.PUT("/files/:name", deps.Notebooks.Save)
	authGroup.DELETE("/files/:name", deps.Notebooks.Delete)
	authGroup.POST("/files/:name/flush", deps.Notebooks.Flush)
	authGroup.PUT("/files/:name/title", deps.Notebooks.SetTitle)
	authGroup.PUT("/files/:name/order", deps.Notebooks.Reorder)

	authGroup.POST("/files/:name/cells", deps.Notebooks.AddCell)
	authGroup.PUT("/files/:name/cells/:cell", deps.Notebooks.UpdateCell)
	authGroup.DELETE("/files/:name/cells/:cell", deps.Notebooks.DeleteCell)
	authGroup.PUT("/files/:name/cells/:cell/result", deps.Notebooks.RecordResult)

	authGroup.GET("/files/:name/export", deps.Transfer.Export)
	authGroup.GET("/files/:name/yaml", deps.Transfer.GetText)
	authGroup.PUT("/files/:name/yaml", deps.Transfer.ApplyText)
	authGroup.POST("/validate", deps.Transfer.Validate)
	authGroup.POST("/import", middleware.RateLimit(deps.ImportRateLimit), deps.Transfer.Import)

	if deps.Attachments != nil {
		api.GET("/attachments/:key", deps.Attachments.Get)
		authGroup.POST("/attachments", deps.Attachments.Upload)
		authGroup.POST("/files/:name/attachments", deps.Attachments.UploadCell)
	}
	if deps.Maintenance != nil {
		authGroup.GET("/maintenance/jobs", deps.Maintenance.Jobs)
		authGroup.GET("/maintenance/integrity", deps.Maintenance.Integrity)
	}
}
