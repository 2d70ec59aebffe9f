// Package api contains the API routes for the Autotrader API
package api

import (
	"fmt"

	"github.com/labstack/echo/v4"

	"github.com/nsvirk/autotraderapi/internal/api/handlers"
	"github.com/nsvirk/autotraderapi/internal/api/middleware"
	"github.com/nsvirk/autotraderapi/internal/config"
	"github.com/nsvirk/autotraderapi/internal/kiteapi"
	"github.com/nsvirk/autotraderapi/internal/service"
	"github.com/nsvirk/autotraderapi/pkg/utils/response"
	"github.com/redis/go-redis/v9"
)

// Deps are the wired services the routes dispatch into
type Deps struct {
	Cfg         *config.Config
	RedisClient *redis.Client
	Session     *service.SessionService
	Registry    *service.RegistryService
	Orders      *service.OrderService
	Positions   *service.PositionService
	Ticker      *service.TickerService
	Instruments *service.InstrumentService
	KiteClient  *kiteapi.Client
}

// SetupRoutes configures the routes for the API
func SetupRoutes(e *echo.Echo, deps Deps) {

	// Create a group for all API routes
	api := e.Group("/api")

	// Index route
	api.GET("/", indexRoute(deps.Cfg))

	// Session routes (unprotected)
	sessionHandler := handlers.NewSessionHandler(deps.Session)
	sessionGroup := api.Group("/session")
	sessionGroup.GET("/login", sessionHandler.GenerateSession)
	sessionGroup.GET("/totp", sessionHandler.GenerateTOTP)
	sessionGroup.GET("/valid", sessionHandler.CheckSessionValid)
	sessionGroup.DELETE("/delete", sessionHandler.DeleteSession)

	// Command routes (protected)
	commandHandler := handlers.NewCommandHandler(deps.Cfg, deps.Registry, deps.Orders, deps.Session, deps.Instruments, deps.Positions, deps.KiteClient)
	commandGroup := api.Group("/command")
	commandGroup.Use(middleware.AuthMiddleware(deps.Session))
	commandGroup.POST("", commandHandler.Dispatch)

	// Position routes (protected)
	positionHandler := handlers.NewPositionHandler(deps.Positions)
	positionGroup := api.Group("/positions")
	positionGroup.Use(middleware.AuthMiddleware(deps.Session))
	positionGroup.GET("", positionHandler.GetPositions)

	// Ticker routes (protected)
	tickerHandler := handlers.NewTickerHandler(deps.Session, deps.Ticker)
	tickerGroup := api.Group("/ticker")
	tickerGroup.Use(middleware.AuthMiddleware(deps.Session))
	tickerGroup.GET("/start", tickerHandler.TickerStart)
	tickerGroup.GET("/stop", tickerHandler.TickerStop)
	tickerGroup.GET("/status", tickerHandler.TickerStatus)

	// Stream routes (protected)
	streamHandler := handlers.NewStreamHandler(deps.RedisClient)
	streamGroup := api.Group("/stream")
	streamGroup.Use(middleware.AuthMiddleware(deps.Session))
	streamGroup.GET("/events", streamHandler.StreamEvents)
}

// indexRoute sets up the index route for the API
func indexRoute(cfg *config.Config) echo.HandlerFunc {
	return func(c echo.Context) error {
		message := fmt.Sprintf("%s %s", cfg.APIName, cfg.APIVersion)
		return response.SuccessResponse(c, message)
	}
}
