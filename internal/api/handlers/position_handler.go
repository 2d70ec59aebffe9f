package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/nsvirk/autotraderapi/internal/models"
	"github.com/nsvirk/autotraderapi/internal/service"
	"github.com/nsvirk/autotraderapi/pkg/utils/response"
)

// PositionHandler is the handler for the positions API
type PositionHandler struct {
	service *service.PositionService
}

// NewPositionHandler creates a new handler for the positions API
func NewPositionHandler(service *service.PositionService) *PositionHandler {
	return &PositionHandler{service: service}
}

// GetPositions returns positions, optionally filtered by status
func (h *PositionHandler) GetPositions(c echo.Context) error {
	status := strings.ToUpper(c.QueryParam("status"))
	if status != "" && status != models.PositionStatusOpen && status != models.PositionStatusClosed {
		return response.ErrorResponse(c, http.StatusBadRequest, "InputException", "`status` must be OPEN or CLOSED")
	}

	positions, err := h.service.ListPositions(status)
	if err != nil {
		return response.ErrorResponse(c, http.StatusInternalServerError, "ServerException", err.Error())
	}

	return response.SuccessResponse(c, positions)
}
