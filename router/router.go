package router

import (
	"DedupVault/internal/handler"
	"DedupVault/utils"

	"github.com/gin-gonic/gin"
)

// InitRouter builds API routes.
func InitRouter() *gin.Engine {
	r := gin.Default()
	r.Use(utils.CORSMiddleware())

	api := r.Group("/api")
	{
		file := api.Group("/file")
		{
			file.POST("/upload", handler.UploadFile)
			file.GET("/list", handler.ListFiles)
			file.POST("/delete", handler.DeleteBinding)
			file.GET("/download/:bindingID", handler.DownloadBinding)
		}

		api.GET("/content/:fingerprint", handler.FetchContent)
		api.GET("/events", handler.ListEvents)
		api.GET("/savings", handler.GetSavings)

		admin := api.Group("/admin")
		{
			admin.POST("/reclaim", handler.ReclaimOrphans)
		}
	}
	return r
}
