package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	domainErrors "github.com/wayfarerhq/payment-service/internal/domain/errors"
	"github.com/wayfarerhq/payment-service/internal/domain/model"
	"github.com/wayfarerhq/payment-service/internal/domain/repository"
)

// PaymentRepository is an in-memory ledger store with the same conditional
// transition semantics as the Postgres implementation. Used by tests and
// single-node development setups.
type PaymentRepository struct {
	mu       sync.RWMutex
	payments map[uuid.UUID]*model.Payment
}

// NewPaymentRepository creates an empty in-memory store.
func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{payments: make(map[uuid.UUID]*model.Payment)}
}

var _ repository.PaymentRepository = (*PaymentRepository)(nil)

func (r *PaymentRepository) Create(ctx context.Context, payment *model.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if payment.ProviderIntentID != nil {
		for _, p := range r.payments {
			if p.ProviderIntentID != nil && *p.ProviderIntentID == *payment.ProviderIntentID {
				return domainErrors.ErrDuplicateIntent
			}
		}
	}

	now := time.Now()
	stored := clone(payment)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = now
	}
	r.payments[payment.ID] = stored

	payment.CreatedAt = stored.CreatedAt
	payment.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.payments[id]
	if !ok {
		return nil, domainErrors.ErrPaymentNotFound
	}
	return clone(p), nil
}

func (r *PaymentRepository) GetByRequestID(ctx context.Context, requestID uuid.UUID) ([]*model.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*model.Payment
	for _, p := range r.payments {
		if p.RequestID == requestID {
			out = append(out, clone(p))
		}
	}
	sortByCreatedAt(out)
	return out, nil
}

func (r *PaymentRepository) GetByProviderIntentID(ctx context.Context, intentID string) (*model.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.payments {
		if p.ProviderIntentID != nil && *p.ProviderIntentID == intentID {
			return clone(p), nil
		}
	}
	return nil, domainErrors.ErrPaymentNotFound
}

func (r *PaymentRepository) GetByCustomerID(ctx context.Context, customerID string) ([]*model.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*model.Payment
	for _, p := range r.payments {
		if p.CustomerID == customerID {
			out = append(out, clone(p))
		}
	}
	sortByCreatedAt(out)
	return out, nil
}

func (r *PaymentRepository) GetByStatus(ctx context.Context, status model.PaymentStatus) ([]*model.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*model.Payment
	for _, p := range r.payments {
		if p.Status == status {
			out = append(out, clone(p))
		}
	}
	sortByCreatedAt(out)
	return out, nil
}

func (r *PaymentRepository) MarkAuthorized(ctx context.Context, id uuid.UUID) error {
	return r.transition(id, func(p *model.Payment) {
		p.Status = model.PaymentStatusAuthorized
	}, model.PaymentStatusPending)
}

func (r *PaymentRepository) MarkCaptured(ctx context.Context, id uuid.UUID) error {
	return r.transition(id, func(p *model.Payment) {
		now := time.Now()
		p.Status = model.PaymentStatusCaptured
		p.CapturedAt = &now
	}, model.PaymentStatusAuthorized)
}

func (r *PaymentRepository) MarkTransferred(ctx context.Context, id uuid.UUID) error {
	return r.transition(id, func(p *model.Payment) {
		now := time.Now()
		p.Status = model.PaymentStatusTransferred
		p.TransferredAt = &now
	}, model.PaymentStatusCaptured)
}

func (r *PaymentRepository) MarkRefunded(ctx context.Context, id uuid.UUID) error {
	return r.transition(id, func(p *model.Payment) {
		now := time.Now()
		p.Status = model.PaymentStatusRefunded
		p.RefundedAt = &now
	}, model.PaymentStatusCaptured, model.PaymentStatusTransferred)
}

func (r *PaymentRepository) MarkCancelled(ctx context.Context, id uuid.UUID) error {
	return r.transition(id, func(p *model.Payment) {
		p.Status = model.PaymentStatusCancelled
	}, model.PaymentStatusAuthorized)
}

func (r *PaymentRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return r.transition(id, func(p *model.Payment) {
		now := time.Now()
		p.Status = model.PaymentStatusFailed
		p.FailedAt = &now
		p.FailureReason = &reason
	}, model.PaymentStatusPending, model.PaymentStatusAuthorized)
}

// transition applies mutate only when the row's current status is one of
// from, mirroring the conditional UPDATE of the SQL store.
func (r *PaymentRepository) transition(id uuid.UUID, mutate func(*model.Payment), from ...model.PaymentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.payments[id]
	if !ok {
		return domainErrors.ErrPaymentNotFound
	}

	allowed := false
	for _, status := range from {
		if p.Status == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return domainErrors.ErrStatusConflict
	}

	mutate(p)
	p.UpdatedAt = time.Now()
	return nil
}

func sortByCreatedAt(payments []*model.Payment) {
	sort.Slice(payments, func(i, j int) bool {
		return payments[i].CreatedAt.Before(payments[j].CreatedAt)
	})
}

func clone(p *model.Payment) *model.Payment {
	cp := *p
	if p.Metadata != nil {
		cp.Metadata = make(model.JSONB, len(p.Metadata))
		for k, v := range p.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
