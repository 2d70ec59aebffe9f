// Package models contains the models for the Autotrader API
package models

import "time"

// TableName is the name of the table for instruments
var InstrumentsTableName = "instruments"

// InstrumentModel represents a tradable instrument from the directory
// snapshot fetched once per session
type InstrumentModel struct {
	InstrumentToken uint32    `gorm:"primaryKey;uniqueIndex;index" csv:"instrument_token" json:"instrument_token"`
	ExchangeToken   uint32    `csv:"exchange_token" json:"exchange_token"`
	Tradingsymbol   string    `gorm:"index:idx_exchange_tradingsymbol,priority:2" csv:"tradingsymbol" json:"tradingsymbol"`
	Name            string    `csv:"name" json:"name"`
	LastPrice       float64   `csv:"last_price" json:"last_price"`
	Expiry          string    `csv:"expiry" json:"expiry"`
	Strike          float64   `csv:"strike" json:"strike"`
	TickSize        float64   `csv:"tick_size" json:"tick_size"`
	LotSize         uint      `csv:"lot_size" json:"lot_size"`
	InstrumentType  string    `csv:"instrument_type" json:"instrument_type"`
	Segment         string    `csv:"segment" json:"segment"`
	Exchange        string    `gorm:"index:idx_exchange_tradingsymbol,priority:1" csv:"exchange" json:"exchange"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"-"`
}

// TableName specifies the table name for the Instrument model
func (InstrumentModel) TableName() string {
	return InstrumentsTableName
}
