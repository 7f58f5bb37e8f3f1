package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wayfarerhq/payment-service/internal/domain/entity"
	domainErrors "github.com/wayfarerhq/payment-service/internal/domain/errors"
	"github.com/wayfarerhq/payment-service/internal/domain/repository"
)

// deliveryRequestRow maps the request service's table. This service only
// reads it; ownership stays with the request service.
type deliveryRequestRow struct {
	ID          uuid.UUID       `gorm:"primaryKey;type:uuid"`
	RequesterID uuid.UUID       `gorm:"type:uuid"`
	TravelerID  *uuid.UUID      `gorm:"type:uuid"`
	Currency    string          `gorm:"size:3"`
	DeliveryFee decimal.Decimal `gorm:"type:numeric"`
	Items       []byte          `gorm:"type:jsonb"`
}

func (deliveryRequestRow) TableName() string {
	return "delivery_requests"
}

type userRow struct {
	ID              uuid.UUID `gorm:"primaryKey;type:uuid"`
	Email           string
	Name            string
	CustomerID      *string `gorm:"column:provider_customer_id"`
	PayoutAccountID *string `gorm:"column:provider_payout_account_id"`
}

func (userRow) TableName() string {
	return "users"
}

// GormLookupRepository serves the engine's read-only views of delivery
// requests and users from the shared platform database.
type GormLookupRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewGormLookupRepository(db *gorm.DB, logger *zap.Logger) *GormLookupRepository {
	return &GormLookupRepository{
		db:     db,
		logger: logger,
	}
}

func (r *GormLookupRepository) GetDeliveryRequest(ctx context.Context, id uuid.UUID) (*entity.DeliveryRequest, error) {
	var row deliveryRequestRow
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.ErrRequestNotFound
		}
		r.logger.Error("Failed to get delivery request",
			zap.String("request_id", id.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get delivery request: %w", err)
	}

	var items []entity.RequestItem
	if len(row.Items) > 0 {
		if err := json.Unmarshal(row.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to decode request items: %w", err)
		}
	}

	return &entity.DeliveryRequest{
		ID:          row.ID,
		RequesterID: row.RequesterID,
		TravelerID:  row.TravelerID,
		Currency:    row.Currency,
		DeliveryFee: row.DeliveryFee,
		Items:       items,
	}, nil
}

func (r *GormLookupRepository) GetUser(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	var row userRow
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.ErrUserNotFound
		}
		r.logger.Error("Failed to get user",
			zap.String("user_id", id.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &entity.User{
		ID:              row.ID,
		Email:           row.Email,
		Name:            row.Name,
		CustomerID:      row.CustomerID,
		PayoutAccountID: row.PayoutAccountID,
	}, nil
}

var (
	_ repository.RequestReader = (*GormLookupRepository)(nil)
	_ repository.UserReader    = (*GormLookupRepository)(nil)
)
