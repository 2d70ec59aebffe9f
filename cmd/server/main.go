// Package main is the entry point for the Autotrader API
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/labstack/echo/v4"
	"github.com/nsvirk/autotraderapi/internal/api"
	"github.com/nsvirk/autotraderapi/internal/api/middleware"
	"github.com/nsvirk/autotraderapi/internal/config"
	"github.com/nsvirk/autotraderapi/internal/kiteapi"
	"github.com/nsvirk/autotraderapi/internal/repository"
	"github.com/nsvirk/autotraderapi/internal/service"
	"github.com/nsvirk/autotraderapi/pkg/utils/zaplogger"
)

func main() {
	// Load configuration
	cfg, err := config.Get()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Print the configuration
	fmt.Println(cfg.String())

	// Connect to Postgres
	db, err := repository.ConnectPostgres(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}

	// Connect Redis
	redisClient, err := repository.ConnectRedis(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	// Init logger
	err = zaplogger.InitLogger(db)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// Setup logger
	defer zaplogger.Sync()
	zaplogger.SetLogLevel(cfg.ServerLogLevel)

	// startUpMessage
	zaplogger.Info(cfg.APIName + " - " + cfg.APIVersion + " initialized")
	zaplogger.Info("Postgres initialized")
	zaplogger.Info("Redis initialized")

	// Notification sink: events table -> pg_notify -> Redis -> SSE
	publishService := service.NewPublishService(db, redisClient, cfg.PostgresDsn)
	go publishService.PublishEventsToRedisChannel()

	// Wire the trading pipeline
	kiteClient := kiteapi.New(cfg.KiteBaseURL)
	sessionService := service.NewSessionService(db, cfg)
	instrumentService := service.NewInstrumentService(db)
	positionService := service.NewPositionService(db, publishService, cfg)
	tickerService := service.NewTickerService(positionService, publishService)
	registryService := service.NewRegistryService(tickerService, instrumentService, publishService)
	tickerService.SetSource(registryService)
	orderService := service.NewOrderService(kiteClient, publishService)

	// Periodic indicator refresh loop
	monitorService := service.NewMonitorService(registryService, kiteClient, positionService, publishService, cfg)
	go monitorService.Run(context.Background())

	// Create a new Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Setup middleware
	middleware.SetupLoggerMiddleware(e)

	// Setup routes
	api.SetupRoutes(e, api.Deps{
		Cfg:         cfg,
		RedisClient: redisClient,
		Session:     sessionService,
		Registry:    registryService,
		Orders:      orderService,
		Positions:   positionService,
		Ticker:      tickerService,
		Instruments: instrumentService,
		KiteClient:  kiteClient,
	})

	// Setup and start cron jobs
	cronService := service.NewCronService(cfg, sessionService, instrumentService, tickerService, kiteClient)
	cronService.Start()

	// Start the server
	startServer(e, cfg)

}

// startServer starts the Echo server on the specified port
func startServer(e *echo.Echo, cfg *config.Config) {
	port := cfg.ServerPort
	if port == "" {
		port = "3009"
	}
	startupMessage := fmt.Sprintf("%s %s Server [:%s] started", cfg.APIName, cfg.APIVersion, port)

	zaplogger.Info(config.SingleLine)
	zaplogger.Info(startupMessage)
	zaplogger.Info(config.SingleLine)
	e.Logger.Infof(startupMessage)
	e.Logger.Fatal(e.Start(":" + port))
}
