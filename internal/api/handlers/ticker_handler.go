package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nsvirk/autotraderapi/internal/service"
	"github.com/nsvirk/autotraderapi/pkg/utils/response"
)

// TickerHandler is the handler for the ticker API
type TickerHandler struct {
	sessionService *service.SessionService
	tickerService  *service.TickerService
}

// NewTickerHandler creates a new handler for the ticker API
func NewTickerHandler(sessionService *service.SessionService, tickerService *service.TickerService) *TickerHandler {
	return &TickerHandler{sessionService: sessionService, tickerService: tickerService}
}

// TickerStart starts the tick stream with the configured credentials
func (h *TickerHandler) TickerStart(c echo.Context) error {
	sessionData, err := h.sessionService.LoginFromConfig(false)
	if err != nil {
		return response.ErrorResponse(c, http.StatusUnauthorized, "AuthenticationException", err.Error())
	}

	if err := h.tickerService.Start(sessionData.UserId, sessionData.Enctoken); err != nil {
		return response.ErrorResponse(c, http.StatusInternalServerError, "ServerException", err.Error())
	}

	return response.SuccessResponse(c, map[string]bool{"running": true})
}

// TickerStop stops the tick stream
func (h *TickerHandler) TickerStop(c echo.Context) error {
	if err := h.tickerService.Stop(); err != nil {
		return response.ErrorResponse(c, http.StatusInternalServerError, "ServerException", err.Error())
	}
	return response.SuccessResponse(c, map[string]bool{"running": false})
}

// TickerStatus returns whether the tick stream is connected
func (h *TickerHandler) TickerStatus(c echo.Context) error {
	return response.SuccessResponse(c, map[string]bool{"running": h.tickerService.Status()})
}
