package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/wayfarerhq/payment-service/internal/domain/entity"
)

// RequestReader is the read-only view of the delivery-request service the
// payment engine depends on. Its storage lives outside this repo.
type RequestReader interface {
	GetDeliveryRequest(ctx context.Context, id uuid.UUID) (*entity.DeliveryRequest, error)
}

// UserReader is the read-only view of the user service.
type UserReader interface {
	GetUser(ctx context.Context, id uuid.UUID) (*entity.User, error)
}
