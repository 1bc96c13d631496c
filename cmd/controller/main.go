package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/haptic-link/controller/domain/diagnostic"
	"github.com/haptic-link/controller/domain/haptics"
	"github.com/haptic-link/controller/pkg/api"
	"github.com/haptic-link/controller/pkg/config"
	"github.com/haptic-link/controller/pkg/device"
	customlog "github.com/haptic-link/controller/pkg/log"
	"github.com/haptic-link/controller/pkg/processing"
	"github.com/haptic-link/controller/pkg/zeromq"
	"github.com/haptic-link/controller/services"
)

func main() {
	configDir := flag.String("config-dir", "./config", "directory containing controller_config.yaml")
	flag.Parse()

	// Bootstrap config first; everything else hangs off it
	bootstrapCfg, err := config.LoadBootstrapConfig(*configDir)
	if err != nil {
		log.Fatalf("Failed to load bootstrap config: %v", err)
	}

	appLogger, err := customlog.NewLogrusLogger(bootstrapCfg.Logging.Level, bootstrapCfg.Logging.LogPath)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	operationalConfigPath := filepath.Join(bootstrapCfg.Data.Directory, bootstrapCfg.Data.HapticConfigFilename)
	configService, err := services.NewHapticConfigService(operationalConfigPath, appLogger)
	if err != nil {
		appLogger.Fatalf("Failed to load operational config: %v", err)
	}
	cfg := configService.GetCurrentConfig()

	// Device server side: registry + websocket client
	registry := device.NewRegistry()
	deviceClient := device.NewClient(cfg.DeviceServer, cfg.ClientName, registry, appLogger)

	diagnosticService := diagnostic.NewDiagnosticService(deviceClient, registry, nil)

	bridge := haptics.NewBridgeService(cfg, deviceClient, registry, diagnosticService, appLogger)
	configService.SetListener(bridge.Reconfigure)

	// Frame pipeline: per-actor serial workers feeding the bridge
	framePool := processing.NewFramePool(bootstrapCfg.Pipeline.QueueSize, appLogger)
	framePool.SetHandler(bridge.HandleFrame)
	frameDirector := processing.NewFrameDirector(framePool, appLogger)
	frameDirector.Start()
	diagnosticService.SetPipeline(frameDirector)

	// Connect to the device server in the background; frames arriving
	// before the connection is up are skipped, not queued
	go func() {
		if err := deviceClient.ConnectWithRetry(); err != nil {
			appLogger.Errorf("Device server connection abandoned: %v", err)
		}
	}()

	// Optional ZeroMQ tick transport
	var motionListener *zeromq.MotionListener
	if addr := bootstrapCfg.ZeroMQ.MotionSubscribeAddress; addr != "" {
		motionListener, err = zeromq.NewMotionListener(frameDirector, appLogger)
		if err != nil {
			appLogger.Fatalf("Failed to create ZeroMQ motion listener: %v", err)
		}
		if err := motionListener.Start(addr); err != nil {
			appLogger.Fatalf("Failed to start ZeroMQ motion listener: %v", err)
		}
	}

	app := fiber.New(fiber.Config{
		AppName:      "Haptic-Link Controller",
		ErrorHandler: customErrorHandler,
	})
	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "online",
			"service": "haptic-link controller",
		})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	// Motion ingest over WebSocket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/motion", websocket.New(func(conn *websocket.Conn) {
		api.MotionWebSocketHandler(conn, appLogger, frameDirector)
	}))

	apiGroup := app.Group("/api")
	apiGroup.Get("/diagnostics", diagnosticService.GetMetricsHandler)
	api.RegisterConfigRoutes(app, configService, appLogger)

	go func() {
		addr := fmt.Sprintf(":%d", bootstrapCfg.Server.HTTPPort)
		appLogger.Infof("Server starting on port %d", bootstrapCfg.Server.HTTPPort)
		if err := app.Listen(addr); err != nil {
			appLogger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Infof("Shutting down...")

	// Order matters: stop ingest, zero out devices, then drop the link
	if motionListener != nil {
		motionListener.Stop()
	}
	frameDirector.Stop()
	bridge.Shutdown()
	deviceClient.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		appLogger.Fatalf("Server forced to shutdown: %v", err)
	}

	appLogger.Infof("Server exited properly")
}

// customErrorHandler renders fiber errors as JSON
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
