package main

import (
	"flag"
	stdlog "log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/open-handtrack/pipeline/pkg/api"
	"github.com/open-handtrack/pipeline/pkg/config"
	customlog "github.com/open-handtrack/pipeline/pkg/log"
	"github.com/open-handtrack/pipeline/pkg/sim"
	"github.com/open-handtrack/pipeline/pkg/stream"
	"github.com/open-handtrack/pipeline/services"
)

// trackerd is the producer-side daemon: it pulls hand frames from a frame
// source and streams them to every connected consumer. Without an attached
// vision-tracking process it falls back to the synthetic source.
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

	source := sim.New()
	source.AbsentPeriod = 120

	server := stream.NewServer(cfg.Server, source, logger)
	if err := server.Start(); err != nil {
		logger.Fatalf("Failed to start stream server: %v", err)
	}

	app := fiber.New(fiber.Config{
		AppName:      "Hand Tracker Daemon",
		ErrorHandler: api.ErrorHandler,
	})
	app.Use(recover.New())
	api.RegisterStatusRoutes(app, "trackerd", func() interface{} {
		return server.Stats()
	})
	if *configPath != "" {
		cfgService, err := services.NewConfigService(*configPath, logger)
		if err != nil {
			logger.Fatalf("Failed to create config service: %v", err)
		}
		cfgService.SetOnUpdate(func(*config.Config) {
			logger.Warnf("Configuration updated; transport settings take effect on restart")
		})
		api.RegisterConfigRoutes(app, cfgService, logger)
	}

	go func() {
		addr := ":" + strconv.Itoa(cfg.Server.HTTPPort)
		logger.Infof("Status API listening on %s", addr)
		if err := app.Listen(addr); err != nil {
			logger.Fatalf("Failed to start status API: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Infof("Shutting down...")

	server.Stop()
	if err := app.Shutdown(); err != nil {
		logger.Errorf("Status API shutdown: %v", err)
	}
	logger.Infof("trackerd exited")
}
