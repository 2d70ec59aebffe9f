package service

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nsvirk/autotraderapi/internal/models"
	"github.com/nsvirk/autotraderapi/internal/repository"
	"github.com/nsvirk/autotraderapi/pkg/utils/state"
	"github.com/nsvirk/autotraderapi/pkg/utils/zaplogger"
	"gorm.io/gorm"
)

var instrumentsUpdatedAtKey = "INSTRUMENTS_UPDATED_AT"

const instrumentsURL = "https://api.kite.trade/instruments"

// InstrumentService maintains the instrument directory: the daily dump
// of tradable instruments, refreshed once per trading day
type InstrumentService struct {
	repo  *repository.InstrumentRepository
	state *state.State
}

// NewInstrumentService creates a new instrument service
func NewInstrumentService(db *gorm.DB) *InstrumentService {
	stateManager, err := state.NewState(db)
	if err != nil {
		zaplogger.Fatal("failed to create state manager", zaplogger.Fields{"error": err})
	}
	return &InstrumentService{
		repo:  repository.NewInstrumentRepository(db),
		state: stateManager,
	}
}

// UpdateInstruments refreshes the instrument directory from the daily
// CSV dump. Skipped when the directory was already refreshed today
// after the dump is published.
func (s *InstrumentService) UpdateInstruments() (int64, error) {
	instrumentsUpdatedAtValue, err := s.state.Get(instrumentsUpdatedAtKey)
	if err == nil {
		if !s.isUpdateInstrumentsRequired(instrumentsUpdatedAtValue) {
			zaplogger.Info("Instruments update not required", zaplogger.Fields{
				instrumentsUpdatedAtKey: instrumentsUpdatedAtValue,
			})
			return 0, nil
		}
	}

	zaplogger.Info("Instruments update required", zaplogger.Fields{
		instrumentsUpdatedAtKey: instrumentsUpdatedAtValue,
	})

	resp, err := http.Get(instrumentsURL)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch instruments: %v", err)
	}
	defer resp.Body.Close()

	records, err := readInstrumentDump(resp.Body)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		zaplogger.Warn("Instruments dump was empty, keeping existing directory")
		return 0, nil
	}

	if err := s.repo.TruncateInstruments(); err != nil {
		return 0, fmt.Errorf("failed to truncate table: %v", err)
	}

	batchSize := 500
	var totalInserted int64 = 0
	for i := 0; i < len(records); i += batchSize {
		end := i + batchSize
		if end > len(records) {
			end = len(records)
		}

		inserted, err := s.repo.InsertInstruments(records[i:end])
		if err != nil {
			return totalInserted, fmt.Errorf("failed to insert batch starting at index %d: %v", i, err)
		}
		totalInserted += inserted
	}

	if err := s.state.Set(instrumentsUpdatedAtKey, time.Now().Format("2006-01-02 15:04:05")); err != nil {
		return 0, fmt.Errorf("failed to update state: %v", err)
	}

	zaplogger.Info("Instruments updated", zaplogger.Fields{
		"totalInserted": totalInserted,
	})

	recordCount, err := s.repo.GetInstrumentsRecordCount()
	if err != nil {
		return 0, fmt.Errorf("failed to get instruments record count: %v", err)
	}

	return recordCount, nil
}

// readInstrumentDump parses the CSV dump body and strips the header
// row. An empty dump yields zero records, not an error.
func readInstrumentDump(body io.Reader) ([][]string, error) {
	records, err := csv.NewReader(body).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %v", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[1:], nil
}

// isUpdateInstrumentsRequired checks if the instruments need to be updated
func (s *InstrumentService) isUpdateInstrumentsRequired(lastUpdatedAt string) bool {

	lastUpdatedAtTime, err := time.Parse("2006-01-02 15:04:05", lastUpdatedAt)
	if err != nil {
		return true // If we can't parse the time, assume update is needed
	}

	// false only if last update is today and after 08:15am
	if lastUpdatedAtTime.Day() == time.Now().Day() {
		if lastUpdatedAtTime.Hour() == 8 && lastUpdatedAtTime.Minute() >= 15 {
			return false
		}

		if lastUpdatedAtTime.Hour() > 8 {
			return false
		}
	}

	return true
}

// FindBySymbol looks up one instrument by tradingsymbol and segment.
// A missing symbol returns nil, nil: the registry treats it as a
// per-symbol warning, not a failure.
func (s *InstrumentService) FindBySymbol(tradingsymbol string, segment models.Segment) (*models.InstrumentModel, error) {
	return s.repo.GetInstrumentBySymbol(tradingsymbol, string(segment))
}

// FindByToken looks up one instrument by its token
func (s *InstrumentService) FindByToken(token uint32) (*models.InstrumentModel, error) {
	return s.repo.GetInstrumentByToken(token)
}
