// Package router wires the 6 HTTP endpoints onto a gin.Engine, following
// an InitRouter(routerCfg) shape.
package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/rowantree/go-chunkvault/internal/pkg/xerr"
	"github.com/rowantree/go-chunkvault/internal/server/handlers"
	"github.com/rowantree/go-chunkvault/internal/server/uploadservice"
)

var startedAt = time.Now()

// InitRouter builds the gin.Engine exposing upload/create, upload/verify,
// upload/chunk, upload/merge, files/{fileId} and health.
func InitRouter(svc uploadservice.Service) *gin.Engine {
	engine := gin.Default()

	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	engine.GET("/health", healthHandler)

	h := handlers.NewUploadHandler(svc)

	upload := engine.Group("/upload")
	{
		upload.POST("/create", h.CreateFile)
		upload.POST("/verify", h.VerifyHash)
		upload.POST("/chunk", h.UploadChunk)
		upload.POST("/merge", h.MergeFile)
	}

	files := engine.Group("/files")
	{
		files.GET("/:fileId", h.GetFile)
	}

	engine.NoRoute(func(c *gin.Context) {
		xerr.Error(c, http.StatusNotFound, http.StatusNotFound, "Route not found")
	})

	return engine
}

// healthHandler answers GET /health with a liveness payload.
func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"uptime":    time.Since(startedAt).Seconds(),
	})
}
