// Package repository contains the repository layer for the Autotrader API
package repository

import (
	"errors"
	"fmt"

	"github.com/nsvirk/autotraderapi/internal/models"
	"gorm.io/gorm"
)

// PositionRepository is the database repository for positions
type PositionRepository struct {
	DB *gorm.DB
}

// NewPositionRepository creates a new position repository
func NewPositionRepository(db *gorm.DB) *PositionRepository {
	return &PositionRepository{DB: db}
}

// FindOpen returns the OPEN position for a token, or nil if none exists
func (r *PositionRepository) FindOpen(token string) (*models.PositionModel, error) {
	var position models.PositionModel
	err := r.DB.Where("token = ? AND status = ?", token, models.PositionStatusOpen).
		Order("entry_time DESC").
		First(&position).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find open position for token %s: %v", token, err)
	}
	return &position, nil
}

// Create persists a new position
func (r *PositionRepository) Create(position *models.PositionModel) error {
	if err := r.DB.Create(position).Error; err != nil {
		return fmt.Errorf("failed to create position for token %s: %v", position.Token, err)
	}
	return nil
}

// Save persists changes to an existing position
func (r *PositionRepository) Save(position *models.PositionModel) error {
	if err := r.DB.Save(position).Error; err != nil {
		return fmt.Errorf("failed to save position %d: %v", position.ID, err)
	}
	return nil
}

// FindAll returns positions filtered by status; an empty status returns all
func (r *PositionRepository) FindAll(status string) ([]models.PositionModel, error) {
	var positions []models.PositionModel
	query := r.DB.Order("entry_time DESC")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.Find(&positions).Error
	return positions, err
}
