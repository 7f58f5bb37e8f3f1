package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	domainErrors "github.com/wayfarerhq/payment-service/internal/domain/errors"
	"github.com/wayfarerhq/payment-service/internal/domain/model"
)

func seed(t *testing.T, r *PaymentRepository, status model.PaymentStatus) *model.Payment {
	t.Helper()
	intentID := "fpi_" + uuid.NewString()
	payment := &model.Payment{
		ID:               uuid.New(),
		RequestID:        uuid.New(),
		ProviderIntentID: &intentID,
		CustomerID:       "cus_1",
		AmountCents:      2898,
		Currency:         "USD",
		Status:           status,
		Type:             model.PaymentTypeDelivery,
	}
	assert.NoError(t, r.Create(context.Background(), payment))
	return payment
}

func TestCreateRejectsDuplicateIntent(t *testing.T) {
	r := NewPaymentRepository()
	first := seed(t, r, model.PaymentStatusPending)

	dup := &model.Payment{
		ID:               uuid.New(),
		RequestID:        uuid.New(),
		ProviderIntentID: first.ProviderIntentID,
		CustomerID:       "cus_1",
		AmountCents:      100,
		Currency:         "USD",
		Status:           model.PaymentStatusPending,
		Type:             model.PaymentTypeDelivery,
	}

	err := r.Create(context.Background(), dup)
	assert.ErrorIs(t, err, domainErrors.ErrDuplicateIntent)
}

func TestTransitionGuards(t *testing.T) {
	t.Run("capture requires authorized", func(t *testing.T) {
		r := NewPaymentRepository()
		payment := seed(t, r, model.PaymentStatusPending)

		err := r.MarkCaptured(context.Background(), payment.ID)
		assert.ErrorIs(t, err, domainErrors.ErrStatusConflict)

		row, getErr := r.GetByID(context.Background(), payment.ID)
		assert.NoError(t, getErr)
		assert.Equal(t, model.PaymentStatusPending, row.Status)
	})

	t.Run("refund accepts captured or transferred", func(t *testing.T) {
		r := NewPaymentRepository()
		captured := seed(t, r, model.PaymentStatusCaptured)
		transferred := seed(t, r, model.PaymentStatusTransferred)
		pending := seed(t, r, model.PaymentStatusPending)

		assert.NoError(t, r.MarkRefunded(context.Background(), captured.ID))
		assert.NoError(t, r.MarkRefunded(context.Background(), transferred.ID))
		assert.ErrorIs(t, r.MarkRefunded(context.Background(), pending.ID), domainErrors.ErrStatusConflict)
	})

	t.Run("unknown id reports not found", func(t *testing.T) {
		r := NewPaymentRepository()

		err := r.MarkAuthorized(context.Background(), uuid.New())
		assert.ErrorIs(t, err, domainErrors.ErrPaymentNotFound)
	})

	t.Run("failed stamps the reason", func(t *testing.T) {
		r := NewPaymentRepository()
		payment := seed(t, r, model.PaymentStatusAuthorized)

		assert.NoError(t, r.MarkFailed(context.Background(), payment.ID, "card declined"))

		row, err := r.GetByID(context.Background(), payment.ID)
		assert.NoError(t, err)
		assert.Equal(t, model.PaymentStatusFailed, row.Status)
		assert.Equal(t, "card declined", *row.FailureReason)
		assert.NotNil(t, row.FailedAt)
	})
}

func TestConcurrentTransitionsApplyOnce(t *testing.T) {
	r := NewPaymentRepository()
	payment := seed(t, r, model.PaymentStatusAuthorized)

	const callers = 16
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = r.MarkCaptured(context.Background(), payment.ID)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, domainErrors.ErrStatusConflict)
		}
	}
	assert.Equal(t, 1, succeeded)
}

func TestReadsReturnCopies(t *testing.T) {
	r := NewPaymentRepository()
	payment := seed(t, r, model.PaymentStatusPending)

	row, err := r.GetByID(context.Background(), payment.ID)
	assert.NoError(t, err)
	row.Status = model.PaymentStatusCaptured

	fresh, err := r.GetByID(context.Background(), payment.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPending, fresh.Status)
}

func TestGetByRequestIDOrdersAndFilters(t *testing.T) {
	r := NewPaymentRepository()
	payment := seed(t, r, model.PaymentStatusCaptured)
	seed(t, r, model.PaymentStatusPending) // different request

	refundRow := &model.Payment{
		ID:          uuid.New(),
		RequestID:   payment.RequestID,
		CustomerID:  payment.CustomerID,
		AmountCents: 500,
		Currency:    "USD",
		Status:      model.PaymentStatusRefunded,
		Type:        model.PaymentTypeRefund,
		Metadata: model.JSONB{
			model.MetadataKeyOriginalPayment: payment.ID.String(),
		},
	}
	assert.NoError(t, r.Create(context.Background(), refundRow))

	rows, err := r.GetByRequestID(context.Background(), payment.RequestID)
	assert.NoError(t, err)
	assert.Len(t, rows, 2)
}
