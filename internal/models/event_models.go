// Package models contains the models for the Autotrader API
package models

import (
	"time"

	"gorm.io/datatypes"
)

// TableName is the name of the table for notification events
var EventsTableName = "events"

// EventType tags a notification event
type EventType string

const (
	EventPriceUpdate     EventType = "price_update"
	EventIndicatorUpdate EventType = "indicator_update"
	EventPositionOpened  EventType = "position_opened"
	EventPositionClosed  EventType = "position_closed"
	EventSubscriptionAck EventType = "subscription_ack"
	EventWarning         EventType = "warning"
	EventError           EventType = "error"
)

// Event is a tagged notification record delivered to the sink. The core
// never depends on delivery of an event.
type Event struct {
	Type    EventType              `json:"type"`
	Token   string                 `json:"token,omitempty"`
	Symbol  string                 `json:"symbol,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// EventModel persists a notification event before fan-out
type EventModel struct {
	ID        uint           `gorm:"primaryKey;autoIncrement" json:"-"`
	Type      string         `gorm:"index" json:"type"`
	Token     string         `gorm:"index" json:"token"`
	Symbol    string         `json:"symbol"`
	Payload   datatypes.JSON `json:"payload"`
	CreatedAt time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
}

// TableName specifies the table name for the Event model
func (EventModel) TableName() string {
	return EventsTableName
}
