package api

import (
	"github.com/gin-gonic/gin"

	"github.com/davidrys/gatepass/internal/handlers"
)

func registerScannerRoutes(api *gin.RouterGroup, handler *handlers.ScannerHandler) {
	scanner := api.Group("/scanner")
	{
		scanner.POST("/start", handler.Start)
		scanner.POST("/stop", handler.Stop)
		scanner.GET("/status", handler.Status)
		scanner.POST("/frames", handler.SubmitFrame)
		scanner.GET("/events", handler.Events)
	}
}
