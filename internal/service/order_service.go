package service

import (
	"fmt"

	"github.com/nsvirk/autotraderapi/internal/kiteapi"
	"github.com/nsvirk/autotraderapi/internal/models"
	"github.com/nsvirk/autotraderapi/pkg/utils/zaplogger"
)

// OrderService relays order-management calls to the broker and raises
// warning events for rejected and malformed outcomes. A rejection is a
// normal reported outcome, never an internal failure.
type OrderService struct {
	client   *kiteapi.Client
	notifier Notifier
}

// NewOrderService creates a new OrderService
func NewOrderService(client *kiteapi.Client, notifier Notifier) *OrderService {
	return &OrderService{client: client, notifier: notifier}
}

// PlaceOrder places an order with the broker
func (s *OrderService) PlaceOrder(variety string, params map[string]string) (kiteapi.OrderResult, error) {
	result, err := s.client.PlaceOrder(variety, params)
	if err != nil {
		return result, err
	}
	s.reportOutcome("place_order", params["tradingsymbol"], result)
	return result, nil
}

// ModifyOrder modifies a pending order
func (s *OrderService) ModifyOrder(variety, orderID string, params map[string]string) (kiteapi.OrderResult, error) {
	result, err := s.client.ModifyOrder(variety, orderID, params)
	if err != nil {
		return result, err
	}
	s.reportOutcome("modify_order", orderID, result)
	return result, nil
}

// CancelOrder cancels a pending order
func (s *OrderService) CancelOrder(variety, orderID string) (kiteapi.OrderResult, error) {
	result, err := s.client.CancelOrder(variety, orderID)
	if err != nil {
		return result, err
	}
	s.reportOutcome("cancel_order", orderID, result)
	return result, nil
}

// GetOrder fetches one order from the order book
func (s *OrderService) GetOrder(orderID string) (kiteapi.OrderResult, error) {
	return s.client.GetOrder(orderID)
}

// reportOutcome raises a warning event for non-success outcomes
func (s *OrderService) reportOutcome(operation, subject string, result kiteapi.OrderResult) {
	if result.Outcome == kiteapi.OrderSuccess {
		zaplogger.Info("Order call succeeded", zaplogger.Fields{
			"operation": operation,
			"order_id":  result.OrderID,
		})
		return
	}
	zaplogger.Warn("Order call did not succeed", zaplogger.Fields{
		"operation": operation,
		"outcome":   string(result.Outcome),
		"message":   result.Message,
	})
	s.notifier.Notify(models.Event{
		Type:   models.EventWarning,
		Symbol: subject,
		Payload: map[string]interface{}{
			"message": fmt.Sprintf("%s %s: %s", operation, result.Outcome, result.Message),
		},
	})
}
