package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	domainErrors "github.com/wayfarerhq/payment-service/internal/domain/errors"
	"github.com/wayfarerhq/payment-service/internal/domain/model"
	"github.com/wayfarerhq/payment-service/internal/domain/repository"
)

type paymentRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewPaymentRepository creates the Postgres-backed ledger store. Requires
// a connection opened with TranslateError so duplicate-key violations map
// onto gorm.ErrDuplicatedKey.
func NewPaymentRepository(db *gorm.DB, logger *zap.Logger) repository.PaymentRepository {
	return &paymentRepository{db: db, logger: logger}
}

func (r *paymentRepository) Create(ctx context.Context, payment *model.Payment) error {
	err := r.db.WithContext(ctx).Create(payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domainErrors.ErrDuplicateIntent
		}
		r.logger.Error("Failed to create payment",
			zap.String("payment_id", payment.ID.String()),
			zap.Error(err))
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (r *paymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	var payment model.Payment

	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&payment).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.ErrPaymentNotFound
		}
		r.logger.Error("Failed to get payment by ID",
			zap.String("payment_id", id.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	return &payment, nil
}

func (r *paymentRepository) GetByRequestID(ctx context.Context, requestID uuid.UUID) ([]*model.Payment, error) {
	var payments []*model.Payment

	err := r.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("created_at ASC").
		Find(&payments).Error

	if err != nil {
		r.logger.Error("Failed to get payments by request ID",
			zap.String("request_id", requestID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get payments: %w", err)
	}

	return payments, nil
}

func (r *paymentRepository) GetByProviderIntentID(ctx context.Context, intentID string) (*model.Payment, error) {
	var payment model.Payment

	err := r.db.WithContext(ctx).
		Where("provider_intent_id = ?", intentID).
		First(&payment).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.ErrPaymentNotFound
		}
		r.logger.Error("Failed to get payment by intent ID",
			zap.String("intent_id", intentID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	return &payment, nil
}

func (r *paymentRepository) GetByCustomerID(ctx context.Context, customerID string) ([]*model.Payment, error) {
	var payments []*model.Payment

	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Find(&payments).Error

	if err != nil {
		r.logger.Error("Failed to get payments by customer ID",
			zap.String("customer_id", customerID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get payments: %w", err)
	}

	return payments, nil
}

func (r *paymentRepository) GetByStatus(ctx context.Context, status model.PaymentStatus) ([]*model.Payment, error) {
	var payments []*model.Payment

	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Find(&payments).Error

	if err != nil {
		r.logger.Error("Failed to get payments by status",
			zap.String("status", string(status)),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get payments: %w", err)
	}

	return payments, nil
}

func (r *paymentRepository) MarkAuthorized(ctx context.Context, id uuid.UUID) error {
	return r.transition(ctx, id, map[string]interface{}{
		"status": model.PaymentStatusAuthorized,
	}, model.PaymentStatusPending)
}

func (r *paymentRepository) MarkCaptured(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	return r.transition(ctx, id, map[string]interface{}{
		"status":      model.PaymentStatusCaptured,
		"captured_at": &now,
	}, model.PaymentStatusAuthorized)
}

func (r *paymentRepository) MarkTransferred(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	return r.transition(ctx, id, map[string]interface{}{
		"status":         model.PaymentStatusTransferred,
		"transferred_at": &now,
	}, model.PaymentStatusCaptured)
}

func (r *paymentRepository) MarkRefunded(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	return r.transition(ctx, id, map[string]interface{}{
		"status":      model.PaymentStatusRefunded,
		"refunded_at": &now,
	}, model.PaymentStatusCaptured, model.PaymentStatusTransferred)
}

func (r *paymentRepository) MarkCancelled(ctx context.Context, id uuid.UUID) error {
	return r.transition(ctx, id, map[string]interface{}{
		"status": model.PaymentStatusCancelled,
	}, model.PaymentStatusAuthorized)
}

func (r *paymentRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	now := time.Now()
	return r.transition(ctx, id, map[string]interface{}{
		"status":         model.PaymentStatusFailed,
		"failed_at":      &now,
		"failure_reason": &reason,
	}, model.PaymentStatusPending, model.PaymentStatusAuthorized)
}

// transition performs the compare-and-set write: the row is updated only
// when its current status is one of from, so concurrent writers cannot
// interleave. Zero affected rows with an existing row is a status
// conflict.
func (r *paymentRepository) transition(ctx context.Context, id uuid.UUID, updates map[string]interface{}, from ...model.PaymentStatus) error {
	updates["updated_at"] = time.Now()

	result := r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)

	if result.Error != nil {
		r.logger.Error("Failed to update payment status",
			zap.String("payment_id", id.String()),
			zap.Error(result.Error))
		return fmt.Errorf("failed to update payment status: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).
			Model(&model.Payment{}).
			Where("id = ?", id).
			Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check payment existence: %w", err)
		}
		if count == 0 {
			return domainErrors.ErrPaymentNotFound
		}
		return domainErrors.ErrStatusConflict
	}

	return nil
}
