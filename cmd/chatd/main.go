package main

import (
	"flag"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wetalk-app/wetalk-sync.git/internal/config"
	"github.com/wetalk-app/wetalk-sync.git/internal/hub"
	"github.com/wetalk-app/wetalk-sync.git/internal/logger"
)

func main() {
	configPath := flag.String("config", "", "path to yaml config")
	flag.Parse()

	_ = godotenv.Load()
	logger.Init()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Log.Error("load config", "err", err)
		return
	}

	h := hub.New()
	go h.Run()

	app := fiber.New()
	h.RegisterRoutes(app)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	logger.Log.Info("chatd listening", "addr", cfg.Server.Listen)
	if err := app.Listen(cfg.Server.Listen); err != nil {
		logger.Log.Error("listen", "err", err)
	}
}
