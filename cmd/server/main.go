package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/davidrys/gatepass/internal/api"
	"github.com/davidrys/gatepass/internal/app"
	"github.com/davidrys/gatepass/internal/app/maintenance"
	"github.com/davidrys/gatepass/internal/database"
	"github.com/davidrys/gatepass/internal/realtime"
	"github.com/davidrys/gatepass/internal/scanner"
	"github.com/davidrys/gatepass/internal/services"
	"github.com/davidrys/gatepass/internal/store"
	"github.com/davidrys/gatepass/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("gatepass-server", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")

	db, err := initialiseDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db, log)

	registrants, err := store.NewRegistrants(db)
	if err != nil {
		return fmt.Errorf("initialise registrant store: %w", err)
	}

	scanEvents, err := store.NewScanEvents(db)
	if err != nil {
		return fmt.Errorf("initialise scan event store: %w", err)
	}

	registrations, err := services.NewRegistrationService(registrants,
		services.WithTokenLength(cfg.Tokens.Length),
		services.WithEncodeOptions(cfg.EncodeOptions()),
	)
	if err != nil {
		return fmt.Errorf("initialise registration service: %w", err)
	}

	checkins, err := services.NewCheckInService(registrants,
		services.WithCheckInTimeout(cfg.CheckIn.Timeout),
	)
	if err != nil {
		return fmt.Errorf("initialise check-in service: %w", err)
	}

	hub := realtime.NewHub()

	camera := scanner.NewKioskCamera(cfg.Scanner.FrameBuffer)
	loop, err := scanner.New(camera, checkins,
		scanner.WithCooldown(cfg.Scanner.Cooldown),
		scanner.WithScanEvents(scanEvents),
		scanner.WithNotifier(hub),
	)
	if err != nil {
		return fmt.Errorf("initialise scan loop: %w", err)
	}
	defer func() {
		if err := loop.Stop(); err != nil && !errors.Is(err, scanner.ErrNotRunning) {
			log.Warn("scan loop shutdown failed", zap.Error(err))
		}
	}()

	if cfg.Maintenance.Enabled {
		reporter, err := maintenance.NewReporter(registrants, scanEvents,
			maintenance.WithSchedule(cfg.Maintenance.Schedule),
			maintenance.WithEventRetention(cfg.Maintenance.EventRetention),
		)
		if err != nil {
			return fmt.Errorf("initialise maintenance reporter: %w", err)
		}
		if err := reporter.Start(); err != nil {
			return fmt.Errorf("start maintenance reporter: %w", err)
		}
		defer reporter.Stop()
	}

	router, err := api.NewRouter(cfg, api.Deps{
		Registrations: registrations,
		CheckIns:      checkins,
		Loop:          loop,
		Camera:        camera,
		ScanEvents:    scanEvents,
		Hub:           hub,
	})
	if err != nil {
		return fmt.Errorf("build api router: %w", err)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	if err, ok := <-serverErr; ok && err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfig(filepath.Dir(path))
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.DatabaseSettings()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
