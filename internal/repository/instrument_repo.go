// Package repository contains the repository layer for the Autotrader API
package repository

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nsvirk/autotraderapi/internal/models"
	"gorm.io/gorm"
)

// InstrumentRepository is the database repository for instruments
type InstrumentRepository struct {
	DB *gorm.DB
}

// NewInstrumentRepository creates a new instrument repository
func NewInstrumentRepository(db *gorm.DB) *InstrumentRepository {
	return &InstrumentRepository{DB: db}
}

// TruncateInstruments truncates the instruments table
func (r *InstrumentRepository) TruncateInstruments() error {
	return r.DB.Exec(fmt.Sprintf("TRUNCATE TABLE %s", models.InstrumentsTableName)).Error
}

// InsertInstruments inserts a batch of instrument CSV records into the database
func (r *InstrumentRepository) InsertInstruments(records [][]string) (int64, error) {
	valueStrings := make([]string, 0, len(records))
	valueArgs := make([]interface{}, 0, len(records)*13)

	now := time.Now().Format("2006-01-02 15:04:05")

	for _, record := range records {
		valueStrings = append(valueStrings, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")

		instrumentToken, _ := strconv.ParseUint(record[0], 10, 32)
		exchangeToken, _ := strconv.ParseUint(record[1], 10, 32)
		lastPrice, _ := strconv.ParseFloat(record[4], 64)
		strike, _ := strconv.ParseFloat(record[6], 64)
		tickSize, _ := strconv.ParseFloat(record[7], 64)
		lotSize, _ := strconv.ParseUint(record[8], 10, 32)

		valueArgs = append(valueArgs,
			uint(instrumentToken),
			uint(exchangeToken),
			record[2],
			record[3],
			lastPrice,
			record[5],
			strike,
			tickSize,
			uint(lotSize),
			record[9],
			record[10],
			record[11],
			now,
		)
	}

	stmt := fmt.Sprintf("INSERT INTO %s (instrument_token, exchange_token, tradingsymbol, name, last_price, expiry, strike, tick_size, lot_size, instrument_type, segment, exchange, updated_at) VALUES %s",
		models.InstrumentsTableName,
		strings.Join(valueStrings, ","),
	)

	result := r.DB.Exec(stmt, valueArgs...)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to insert batch into %s: %v", models.InstrumentsTableName, result.Error)
	}

	return result.RowsAffected, nil
}

// GetInstrumentsRecordCount returns the number of records in the instruments table
func (r *InstrumentRepository) GetInstrumentsRecordCount() (int64, error) {
	var count int64
	err := r.DB.Table(models.InstrumentsTableName).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to get instruments record count: %v", err)
	}
	return count, nil
}

// GetInstrumentBySymbol returns the instrument for a tradingsymbol on an
// exchange segment, or nil if the directory has no such symbol
func (r *InstrumentRepository) GetInstrumentBySymbol(tradingsymbol, exchange string) (*models.InstrumentModel, error) {
	var instrument models.InstrumentModel
	err := r.DB.Where("tradingsymbol = ? AND exchange = ?", tradingsymbol, exchange).
		First(&instrument).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &instrument, nil
}

// GetInstrumentByToken returns the instrument for a token, or nil if unknown
func (r *InstrumentRepository) GetInstrumentByToken(token uint32) (*models.InstrumentModel, error) {
	var instrument models.InstrumentModel
	err := r.DB.Where("instrument_token = ?", token).First(&instrument).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &instrument, nil
}
