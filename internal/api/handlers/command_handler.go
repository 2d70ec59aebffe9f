package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/nsvirk/autotraderapi/internal/config"
	"github.com/nsvirk/autotraderapi/internal/indicator"
	"github.com/nsvirk/autotraderapi/internal/kiteapi"
	"github.com/nsvirk/autotraderapi/internal/models"
	"github.com/nsvirk/autotraderapi/internal/service"
	"github.com/nsvirk/autotraderapi/internal/strategy"
	"github.com/nsvirk/autotraderapi/pkg/utils/response"
)

// CommandRequest is the envelope for all control commands
type CommandRequest struct {
	Action         string            `json:"action"`
	Tradingsymbols []string          `json:"tradingsymbols,omitempty"`
	Tradingsymbol  string            `json:"tradingsymbol,omitempty"`
	Segment        string            `json:"segment,omitempty"`
	Variety        string            `json:"variety,omitempty"`
	OrderID        string            `json:"order_id,omitempty"`
	Params         map[string]string `json:"params,omitempty"`
	Interval       string            `json:"interval,omitempty"`
	Days           int               `json:"days,omitempty"`
}

// CommandHandler dispatches control commands by action tag. An unknown
// action is a reported error, never a dropped message.
type CommandHandler struct {
	cfg         *config.Config
	registry    *service.RegistryService
	orders      *service.OrderService
	session     *service.SessionService
	instruments *service.InstrumentService
	positions   *service.PositionService
	kiteClient  *kiteapi.Client
}

// NewCommandHandler creates a new handler for the command API
func NewCommandHandler(cfg *config.Config, registry *service.RegistryService, orders *service.OrderService, session *service.SessionService, instruments *service.InstrumentService, positions *service.PositionService, kiteClient *kiteapi.Client) *CommandHandler {
	return &CommandHandler{
		cfg:         cfg,
		registry:    registry,
		orders:      orders,
		session:     session,
		instruments: instruments,
		positions:   positions,
		kiteClient:  kiteClient,
	}
}

// Dispatch routes one control command to its action handler
func (h *CommandHandler) Dispatch(c echo.Context) error {
	var req CommandRequest
	if err := c.Bind(&req); err != nil {
		return response.ErrorResponse(c, http.StatusBadRequest, "InputException", "Invalid request body")
	}

	switch req.Action {
	case "subscribe":
		return h.subscribe(c, req)
	case "unsubscribe":
		return h.unsubscribe(c, req)
	case "place_order":
		return h.placeOrder(c, req)
	case "modify_order":
		return h.modifyOrder(c, req)
	case "cancel_order":
		return h.cancelOrder(c, req)
	case "get_order":
		return h.getOrder(c, req)
	case "get_historical":
		return h.getHistorical(c, req)
	case "relogin":
		return h.relogin(c)
	default:
		return response.ErrorResponse(c, http.StatusBadRequest, "InputException", fmt.Sprintf("unknown action `%s`", req.Action))
	}
}

func (h *CommandHandler) subscribe(c echo.Context, req CommandRequest) error {
	if len(req.Tradingsymbols) == 0 {
		return response.ErrorResponse(c, http.StatusBadRequest, "InputException", "`tradingsymbols` is required")
	}
	segment, err := models.ParseSegment(req.Segment)
	if err != nil {
		return response.ErrorResponse(c, http.StatusBadRequest, "InputException", err.Error())
	}

	result, err := h.registry.Subscribe(req.Tradingsymbols, segment)
	if err != nil {
		return response.ErrorResponse(c, http.StatusInternalServerError, "ServerException", err.Error())
	}
	return response.SuccessResponse(c, result)
}

func (h *CommandHandler) unsubscribe(c echo.Context, req CommandRequest) error {
	if len(req.Tradingsymbols) == 0 {
		return response.ErrorResponse(c, http.StatusBadRequest, "InputException", "`tradingsymbols` is required")
	}
	segment, err := models.ParseSegment(req.Segment)
	if err != nil {
		return response.ErrorResponse(c, http.StatusBadRequest, "InputException", err.Error())
	}

	tokens, err := h.registry.Unsubscribe(req.Tradingsymbols, segment)
	if err != nil {
		return response.ErrorResponse(c, http.StatusInternalServerError, "ServerException", err.Error())
	}
	return response.SuccessResponse(c, map[string]interface{}{"unsubscribed": tokens})
}

func (h *CommandHandler) placeOrder(c echo.Context, req CommandRequest) error {
	if req.Variety == "" {
		return response.ErrorResponse(c, http.StatusBadRequest, "InputException", "`variety` is required")
	}
	if len(req.Params) == 0 {
		return response.ErrorResponse(c, http.StatusBadRequest, "InputException", "`params` is required")
	}

	result, err := h.orders.PlaceOrder(req.Variety, req.Params)
	if err != nil {
		return response.ErrorResponse(c, http.StatusInternalServerError, "ServerException", err.Error())
	}
	return response.SuccessResponse(c, result)
}

func (h *CommandHandler) modifyOrder(c echo.Context, req CommandRequest) error {
	if req.Variety == "" || req.OrderID == "" {
		return response.ErrorResponse(c, http.StatusBadRequest, "InputException", "`variety` and `order_id` are required")
	}

	result, err := h.orders.ModifyOrder(req.Variety, req.OrderID, req.Params)
	if err != nil {
		return response.ErrorResponse(c, http.StatusInternalServerError, "ServerException", err.Error())
	}
	return response.SuccessResponse(c, result)
}

func (h *CommandHandler) cancelOrder(c echo.Context, req CommandRequest) error {
	if req.Variety == "" || req.OrderID == "" {
		return response.ErrorResponse(c, http.StatusBadRequest, "InputException", "`variety` and `order_id` are required")
	}

	result, err := h.orders.CancelOrder(req.Variety, req.OrderID)
	if err != nil {
		return response.ErrorResponse(c, http.StatusInternalServerError, "ServerException", err.Error())
	}
	return response.SuccessResponse(c, result)
}

func (h *CommandHandler) getOrder(c echo.Context, req CommandRequest) error {
	if req.OrderID == "" {
		return response.ErrorResponse(c, http.StatusBadRequest, "InputException", "`order_id` is required")
	}

	result, err := h.orders.GetOrder(req.OrderID)
	if err != nil {
		return response.ErrorResponse(c, http.StatusInternalServerError, "ServerException", err.Error())
	}
	return response.SuccessResponse(c, result)
}

// getHistorical fetches candles for one symbol and computes the
// indicator snapshot over them
func (h *CommandHandler) getHistorical(c echo.Context, req CommandRequest) error {
	if req.Tradingsymbol == "" {
		return response.ErrorResponse(c, http.StatusBadRequest, "InputException", "`tradingsymbol` is required")
	}
	segment, err := models.ParseSegment(req.Segment)
	if err != nil {
		return response.ErrorResponse(c, http.StatusBadRequest, "InputException", err.Error())
	}

	instrument, err := h.instruments.FindBySymbol(req.Tradingsymbol, segment)
	if err != nil {
		return response.ErrorResponse(c, http.StatusInternalServerError, "ServerException", err.Error())
	}
	if instrument == nil {
		return response.ErrorResponse(c, http.StatusBadRequest, "InputException", fmt.Sprintf("symbol not found: %s", req.Tradingsymbol))
	}

	interval := req.Interval
	if interval == "" {
		interval = h.cfg.CandleInterval
	}
	days := req.Days
	if days <= 0 {
		days = h.cfg.CandleLookbackDays
	}

	to := time.Now()
	from := to.AddDate(0, 0, -days)
	token := fmt.Sprintf("%d", instrument.InstrumentToken)
	candles, err := h.kiteClient.Candles(token, segment, interval, from, to)
	if err != nil {
		return response.ErrorResponse(c, http.StatusInternalServerError, "ServerException", err.Error())
	}

	snapshot := indicator.Compute(candles)

	side, err := h.positions.CurrentSide(token)
	if err != nil {
		return response.ErrorResponse(c, http.StatusInternalServerError, "ServerException", err.Error())
	}
	signals := strategy.Evaluate(snapshot, side)

	return response.SuccessResponse(c, map[string]interface{}{
		"tradingsymbol": req.Tradingsymbol,
		"token":         token,
		"interval":      interval,
		"candles":       candles,
		"indicators":    snapshot,
		"signals":       signals,
	})
}

// relogin forces a fresh upstream login and rebinds the shared session
func (h *CommandHandler) relogin(c echo.Context) error {
	sessionData, err := h.session.LoginFromConfig(true)
	if err != nil {
		return response.ErrorResponse(c, http.StatusUnauthorized, "AuthenticationException", err.Error())
	}

	h.kiteClient.SetSession(sessionData.UserId, sessionData.Enctoken)

	return response.SuccessResponse(c, map[string]string{
		"user_id":    sessionData.UserId,
		"login_time": sessionData.LoginTime,
	})
}
