package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/wayfarerhq/payment-service/internal/domain/model"
)

// PaymentRepository is the persistence boundary of the ledger. Each Mark*
// call is a single atomic conditional mutation: the row is updated only
// when its current status matches the transition's starting state, and
// errors.ErrStatusConflict is returned otherwise. The legality of a
// transition is decided by the engine; the store's conditional writes keep
// concurrent writers from interleaving.
type PaymentRepository interface {
	Create(ctx context.Context, payment *model.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Payment, error)
	GetByRequestID(ctx context.Context, requestID uuid.UUID) ([]*model.Payment, error)
	GetByProviderIntentID(ctx context.Context, intentID string) (*model.Payment, error)
	GetByCustomerID(ctx context.Context, customerID string) ([]*model.Payment, error)
	GetByStatus(ctx context.Context, status model.PaymentStatus) ([]*model.Payment, error)

	// MarkAuthorized moves pending -> authorized.
	MarkAuthorized(ctx context.Context, id uuid.UUID) error
	// MarkCaptured moves authorized -> captured and stamps captured_at.
	MarkCaptured(ctx context.Context, id uuid.UUID) error
	// MarkTransferred moves captured -> transferred and stamps transferred_at.
	MarkTransferred(ctx context.Context, id uuid.UUID) error
	// MarkRefunded moves captured|transferred -> refunded and stamps refunded_at.
	MarkRefunded(ctx context.Context, id uuid.UUID) error
	// MarkCancelled moves authorized -> cancelled.
	MarkCancelled(ctx context.Context, id uuid.UUID) error
	// MarkFailed moves pending|authorized -> failed, stamping failed_at and
	// the failure reason.
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}
