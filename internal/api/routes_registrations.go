package api

import (
	"github.com/gin-gonic/gin"

	"github.com/davidrys/gatepass/internal/handlers"
)

func registerRegistrationRoutes(api *gin.RouterGroup, handler *handlers.RegistrationHandler) {
	registrations := api.Group("/registrations")
	{
		registrations.POST("", handler.Create)
		registrations.GET("", handler.List)
		registrations.GET("/:token", handler.Get)
		registrations.GET("/:token/code", handler.Artifact)
	}
}
