package transport

import (
	"github.com/gin-gonic/gin"
)

func InitRoutes(handler *AnvilHandler) *gin.Engine {
	router := gin.Default()

	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	router.POST("/process", handler.ProcessPreview)
	router.POST("/advanced", handler.ProcessAdvanced)
	router.GET("/status/:id", handler.JobStatus)
	router.DELETE("/job/:id", handler.CancelJob)

	router.GET("/download/:uid/:style", handler.DownloadStyle)
	router.GET("/download_all/:uid", handler.DownloadAll)
	router.GET("/download_layers/:uid", handler.DownloadLayers)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "anvilizer",
		})
	})
	router.GET("/stats", handler.Stats)

	return router
}
