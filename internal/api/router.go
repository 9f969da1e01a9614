package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/davidrys/gatepass/internal/app"
	"github.com/davidrys/gatepass/internal/handlers"
	"github.com/davidrys/gatepass/internal/middleware"
	"github.com/davidrys/gatepass/internal/realtime"
	"github.com/davidrys/gatepass/internal/scanner"
	"github.com/davidrys/gatepass/internal/services"
	"github.com/davidrys/gatepass/internal/store"
)

// Deps bundles the long-lived services the router exposes.
type Deps struct {
	Registrations *services.RegistrationService
	CheckIns      *services.CheckInService
	Loop          *scanner.Loop
	Camera        *scanner.KioskCamera
	ScanEvents    *store.ScanEvents
	Hub           *realtime.Hub
}

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(cfg *app.Config, deps Deps) (*gin.Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if deps.Registrations == nil {
		return nil, fmt.Errorf("registration service must be provided")
	}
	if deps.CheckIns == nil {
		return nil, fmt.Errorf("check-in service must be provided")
	}
	if deps.Loop == nil || deps.Camera == nil {
		return nil, fmt.Errorf("scanner loop and camera must be provided")
	}
	if deps.ScanEvents == nil {
		return nil, fmt.Errorf("scan event store must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	if cfg.Monitoring.Health.Enabled {
		r.GET("/health", handlers.Health())
	}

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	api := r.Group("/api")

	registerRegistrationRoutes(api, handlers.NewRegistrationHandler(deps.Registrations))
	registerCheckInRoutes(api, handlers.NewCheckInHandler(deps.CheckIns))
	registerScannerRoutes(api, handlers.NewScannerHandler(deps.Loop, deps.Camera, deps.ScanEvents))

	if deps.Hub != nil {
		registerRealtimeRoutes(api, handlers.NewRealtimeHandler(deps.Hub))
	}

	return r, nil
}
