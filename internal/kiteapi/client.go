// Package kiteapi is a minimal REST client for the Kite OMS endpoints
// used by the Autotrader API: historical candles and order pass-through.
// Broker rejections are modeled as tagged results, not Go errors, so
// call sites handle every response shape explicitly.
package kiteapi

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/nsvirk/autotraderapi/internal/models"
)

const (
	requestTimeout   = 10 * time.Second
	candleTimeLayout = "2006-01-02T15:04:05-0700"
	queryTimeLayout  = "2006-01-02 15:04:05"
)

// Client calls the Kite OMS API with an enctoken session
type Client struct {
	rc *resty.Client

	mu       sync.RWMutex
	userID   string
	enctoken string
}

// New creates a new Kite API client
func New(baseURL string) *Client {
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(requestTimeout).
		SetHeader("X-Kite-Version", "3")
	return &Client{rc: rc}
}

// SetSession swaps the credentials used for subsequent calls. Called on
// login and relogin.
func (c *Client) SetSession(userID, enctoken string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = userID
	c.enctoken = enctoken
}

func (c *Client) authHeader() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return "enctoken " + c.enctoken
}

// envelope is the common Kite response wrapper
type envelope struct {
	Status    string          `json:"status"`
	Message   string          `json:"message"`
	ErrorType string          `json:"error_type"`
	Data      json.RawMessage `json:"data"`
}

// Candles fetches the historical candle window for an instrument token.
// Candles are returned oldest-first.
func (c *Client) Candles(token string, segment models.Segment, interval string, from, to time.Time) ([]models.Candle, error) {
	resp, err := c.rc.R().
		SetHeader("Authorization", c.authHeader()).
		SetPathParams(map[string]string{
			"token":    token,
			"interval": interval,
		}).
		SetQueryParams(map[string]string{
			"from": from.Format(queryTimeLayout),
			"to":   to.Format(queryTimeLayout),
		}).
		Get("/oms/instruments/historical/{token}/{interval}")
	if err != nil {
		return nil, fmt.Errorf("candle fetch failed for token %s: %v", token, err)
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return nil, fmt.Errorf("candle response malformed for token %s: %v", token, err)
	}
	if env.Status != "success" {
		return nil, fmt.Errorf("candle fetch rejected for token %s: %s", token, env.Message)
	}

	var data struct {
		Candles [][]interface{} `json:"candles"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("candle data malformed for token %s: %v", token, err)
	}

	candles := make([]models.Candle, 0, len(data.Candles))
	for _, row := range data.Candles {
		candle, err := parseCandleRow(row)
		if err != nil {
			return nil, fmt.Errorf("candle row malformed for token %s: %v", token, err)
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// parseCandleRow decodes one [timestamp, o, h, l, c, volume] row
func parseCandleRow(row []interface{}) (models.Candle, error) {
	var candle models.Candle
	if len(row) < 6 {
		return candle, fmt.Errorf("expected 6 fields, got %d", len(row))
	}

	ts, ok := row[0].(string)
	if !ok {
		return candle, fmt.Errorf("timestamp is not a string")
	}
	timestamp, err := time.Parse(candleTimeLayout, ts)
	if err != nil {
		return candle, err
	}

	values := make([]float64, 5)
	for i := 1; i < 6; i++ {
		v, ok := row[i].(float64)
		if !ok {
			return candle, fmt.Errorf("field %d is not a number", i)
		}
		values[i-1] = v
	}

	candle.Timestamp = timestamp
	candle.Open = values[0]
	candle.High = values[1]
	candle.Low = values[2]
	candle.Close = values[3]
	candle.Volume = int64(values[4])
	return candle, nil
}

// OrderOutcome tags an order call result
type OrderOutcome string

const (
	OrderSuccess   OrderOutcome = "success"
	OrderRejected  OrderOutcome = "rejected"
	OrderMalformed OrderOutcome = "malformed"
)

// OrderResult is the tagged outcome of an order-management call. A
// transport failure is a Go error; a broker rejection or an unparseable
// body is carried here so every call site handles each case.
type OrderResult struct {
	Outcome   OrderOutcome           `json:"outcome"`
	OrderID   string                 `json:"order_id,omitempty"`
	Message   string                 `json:"message,omitempty"`
	ErrorType string                 `json:"error_type,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// PlaceOrder places an order with the broker, passing params through verbatim
func (c *Client) PlaceOrder(variety string, params map[string]string) (OrderResult, error) {
	resp, err := c.rc.R().
		SetHeader("Authorization", c.authHeader()).
		SetFormData(params).
		SetPathParam("variety", variety).
		Post("/oms/orders/{variety}")
	if err != nil {
		return OrderResult{}, fmt.Errorf("place order failed: %v", err)
	}
	return parseOrderResponse(resp.Body()), nil
}

// ModifyOrder modifies an open order
func (c *Client) ModifyOrder(variety, orderID string, params map[string]string) (OrderResult, error) {
	resp, err := c.rc.R().
		SetHeader("Authorization", c.authHeader()).
		SetFormData(params).
		SetPathParams(map[string]string{"variety": variety, "order_id": orderID}).
		Put("/oms/orders/{variety}/{order_id}")
	if err != nil {
		return OrderResult{}, fmt.Errorf("modify order failed: %v", err)
	}
	return parseOrderResponse(resp.Body()), nil
}

// CancelOrder cancels an open order
func (c *Client) CancelOrder(variety, orderID string) (OrderResult, error) {
	resp, err := c.rc.R().
		SetHeader("Authorization", c.authHeader()).
		SetPathParams(map[string]string{"variety": variety, "order_id": orderID}).
		Delete("/oms/orders/{variety}/{order_id}")
	if err != nil {
		return OrderResult{}, fmt.Errorf("cancel order failed: %v", err)
	}
	return parseOrderResponse(resp.Body()), nil
}

// GetOrder looks an order up in the order book by order id
func (c *Client) GetOrder(orderID string) (OrderResult, error) {
	resp, err := c.rc.R().
		SetHeader("Authorization", c.authHeader()).
		Get("/oms/orders")
	if err != nil {
		return OrderResult{}, fmt.Errorf("order book fetch failed: %v", err)
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return OrderResult{Outcome: OrderMalformed, Message: err.Error()}, nil
	}
	if env.Status != "success" {
		return OrderResult{Outcome: OrderRejected, Message: env.Message, ErrorType: env.ErrorType}, nil
	}

	var orders []map[string]interface{}
	if err := json.Unmarshal(env.Data, &orders); err != nil {
		return OrderResult{Outcome: OrderMalformed, Message: err.Error()}, nil
	}

	for _, order := range orders {
		if id, ok := order["order_id"].(string); ok && id == orderID {
			return OrderResult{Outcome: OrderSuccess, OrderID: orderID, Data: order}, nil
		}
	}
	return OrderResult{
		Outcome:   OrderRejected,
		OrderID:   orderID,
		Message:   fmt.Sprintf("order %s not found in recent orders", orderID),
		ErrorType: "OrderNotFound",
	}, nil
}

// parseOrderResponse maps a broker response body to a tagged result
func parseOrderResponse(body []byte) OrderResult {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return OrderResult{Outcome: OrderMalformed, Message: err.Error()}
	}

	if env.Status != "success" {
		return OrderResult{Outcome: OrderRejected, Message: env.Message, ErrorType: env.ErrorType}
	}

	var data map[string]interface{}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return OrderResult{Outcome: OrderMalformed, Message: err.Error()}
	}

	orderID, _ := data["order_id"].(string)
	if orderID == "" {
		return OrderResult{
			Outcome: OrderMalformed,
			Message: "order accepted but no order_id returned",
			Data:    data,
		}
	}
	return OrderResult{Outcome: OrderSuccess, OrderID: orderID, Data: data}
}
