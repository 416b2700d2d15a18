package main

import (
	"flag"
	stdlog "log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/open-handtrack/pipeline/domain/scene"
	"github.com/open-handtrack/pipeline/domain/tracker"
	"github.com/open-handtrack/pipeline/pkg/api"
	"github.com/open-handtrack/pipeline/pkg/config"
	customlog "github.com/open-handtrack/pipeline/pkg/log"
	"github.com/open-handtrack/pipeline/services"
)

// viewerd is the consumer-side daemon: it runs the tracking pipeline into an
// in-memory scene and serves the live pose to browser monitors over
// websocket, alongside a status API for diagnostics.
func main() {
	configPath := flag.String("config", "", "path to pipeline config yaml")
	flag.Parse()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			stdlog.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}

	logger, err := customlog.NewLogrusLogger(cfg.Logging.Level, cfg.Logging.LogPath)
	if err != nil {
		stdlog.Fatalf("Failed to create logger: %v", err)
	}

	sc := scene.NewMemoryScene()
	pipeline := tracker.New(cfg, sc, logger)
	if err := pipeline.Start(); err != nil {
		logger.Fatalf("Failed to start pipeline: %v", err)
	}

	app := fiber.New(fiber.Config{
		AppName:      "Hand Viewer Daemon",
		ErrorHandler: api.ErrorHandler,
	})
	app.Use(recover.New())
	api.RegisterStatusRoutes(app, "viewerd", func() interface{} {
		return pipeline.Status()
	})
	api.RegisterMonitorRoute(app, logger, func() interface{} {
		return sc.Snapshot()
	}, 33*time.Millisecond)
	if *configPath != "" {
		cfgService, err := services.NewConfigService(*configPath, logger)
		if err != nil {
			logger.Fatalf("Failed to create config service: %v", err)
		}
		cfgService.SetOnUpdate(func(*config.Config) {
			logger.Warnf("Configuration updated; pipeline settings take effect on restart")
		})
		api.RegisterConfigRoutes(app, cfgService, logger)
	}

	go func() {
		addr := ":" + strconv.Itoa(cfg.Client.HTTPPort)
		logger.Infof("Viewer API listening on %s", addr)
		if err := app.Listen(addr); err != nil {
			logger.Fatalf("Failed to start viewer API: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Infof("Shutting down...")

	pipeline.Stop()
	if err := app.Shutdown(); err != nil {
		logger.Errorf("Viewer API shutdown: %v", err)
	}
	logger.Infof("viewerd exited")
}
