package api

import (
	"github.com/gin-gonic/gin"

	"github.com/davidrys/gatepass/internal/handlers"
)

func registerCheckInRoutes(api *gin.RouterGroup, handler *handlers.CheckInHandler) {
	api.POST("/checkins", handler.Create)
}
