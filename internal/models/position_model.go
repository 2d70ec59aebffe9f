// Package models contains the models for the Autotrader API
package models

import "time"

// TableName is the name of the table for positions
var PositionsTableName = "positions"

// Position status values. CLOSED is terminal, a new OPEN is a new record.
const (
	PositionStatusOpen   = "OPEN"
	PositionStatusClosed = "CLOSED"
)

// Position side values
const (
	SideLong  = "LONG"
	SideShort = "SHORT"
)

// PositionModel represents a tracked trading position. At most one OPEN
// position exists per token at any time.
type PositionModel struct {
	ID         uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Token      string     `gorm:"index:idx_token_status,priority:1" json:"token"`
	Symbol     string     `json:"symbol"`
	Exchange   string     `json:"exchange"`
	Side       string     `json:"side"`
	EntryPrice float64    `json:"entry_price"`
	EntryTime  time.Time  `gorm:"autoCreateTime" json:"entry_time"`
	ExitPrice  *float64   `json:"exit_price"`
	ExitTime   *time.Time `json:"exit_time"`
	ExitReason string     `json:"exit_reason"`
	Target     float64    `json:"target"`
	Stoploss   float64    `json:"stoploss"`
	MTM        float64    `gorm:"default:0" json:"mtm"`
	Status     string     `gorm:"index:idx_token_status,priority:2" json:"status"`
	Lots       int        `json:"lots"`
	Quantity   int        `json:"quantity"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"-"`
}

// TableName specifies the table name for the Position model
func (PositionModel) TableName() string {
	return PositionsTableName
}

// IsOpen reports whether the position is still open
func (p *PositionModel) IsOpen() bool {
	return p.Status == PositionStatusOpen
}
