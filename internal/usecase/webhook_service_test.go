package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/wayfarerhq/payment-service/internal/adapter/repository/memory"
	"github.com/wayfarerhq/payment-service/internal/domain/model"
	"github.com/wayfarerhq/payment-service/internal/domain/provider"
	"github.com/wayfarerhq/payment-service/internal/infrastructure/provider/fake"
)

const webhookSecret = "whsec_test"

type memoryEventRepository struct {
	mu     sync.Mutex
	events map[string]*model.ProviderWebhookEvent
	saves  int
}

func newMemoryEventRepository() *memoryEventRepository {
	return &memoryEventRepository{events: make(map[string]*model.ProviderWebhookEvent)}
}

func (r *memoryEventRepository) SaveEvent(_ context.Context, eventID, eventType string, data json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	if _, ok := r.events[eventID]; ok {
		return nil
	}
	var payload model.JSONB
	_ = json.Unmarshal(data, &payload)
	r.events[eventID] = &model.ProviderWebhookEvent{
		ProviderEventID: eventID,
		EventType:       eventType,
		Status:          model.WebhookStatusPending,
		Data:            payload,
	}
	return nil
}

func (r *memoryEventRepository) GetEvent(_ context.Context, eventID string) (*model.ProviderWebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[eventID]
	if !ok {
		return nil, nil
	}
	cp := *event
	return &cp, nil
}

func (r *memoryEventRepository) MarkProcessed(_ context.Context, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if event, ok := r.events[eventID]; ok {
		event.Status = model.WebhookStatusCompleted
	}
	return nil
}

func (r *memoryEventRepository) MarkFailed(_ context.Context, eventID string, cause error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if event, ok := r.events[eventID]; ok {
		event.Status = model.WebhookStatusFailed
		msg := cause.Error()
		event.LastError = &msg
		event.ProcessingAttempts++
	}
	return nil
}

func (r *memoryEventRepository) GetPendingEvents(_ context.Context, limit int) ([]*model.ProviderWebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.ProviderWebhookEvent
	for _, event := range r.events {
		if event.Status == model.WebhookStatusPending || event.Status == model.WebhookStatusFailed {
			cp := *event
			out = append(out, &cp)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

type webhookFixture struct {
	service *WebhookService
	store   *memory.PaymentRepository
	events  *memoryEventRepository
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	store := memory.NewPaymentRepository()
	events := newMemoryEventRepository()
	fakeProvider := fake.NewFakeProvider()
	service := NewWebhookService(store, events, fakeProvider, webhookSecret, zap.NewNop())
	return &webhookFixture{service: service, store: store, events: events}
}

func (f *webhookFixture) seedPayment(t *testing.T, intentID string, status model.PaymentStatus) *model.Payment {
	t.Helper()
	payment := &model.Payment{
		ID:               uuid.New(),
		RequestID:        uuid.New(),
		ProviderIntentID: &intentID,
		CustomerID:       "cus_requester",
		AmountCents:      2898,
		Currency:         "USD",
		Status:           status,
		Type:             model.PaymentTypeDelivery,
	}
	assert.NoError(t, f.store.Create(context.Background(), payment))
	return payment
}

func signedPayload(t *testing.T, event provider.WebhookEvent) ([]byte, string) {
	t.Helper()
	payload, err := json.Marshal(event)
	assert.NoError(t, err)
	return payload, fake.Sign(payload, webhookSecret)
}

func TestHandleProviderEvent(t *testing.T) {
	t.Run("applies a captured event to the ledger", func(t *testing.T) {
		f := newWebhookFixture(t)
		payment := f.seedPayment(t, "fpi_1", model.PaymentStatusAuthorized)

		payload, sig := signedPayload(t, provider.WebhookEvent{
			EventID:   "evt_1",
			EventType: provider.EventIntentCaptured,
			IntentID:  "fpi_1",
		})

		assert.NoError(t, f.service.HandleProviderEvent(context.Background(), payload, sig))

		row, err := f.store.GetByID(context.Background(), payment.ID)
		assert.NoError(t, err)
		assert.Equal(t, model.PaymentStatusCaptured, row.Status)

		event, err := f.events.GetEvent(context.Background(), "evt_1")
		assert.NoError(t, err)
		assert.Equal(t, model.WebhookStatusCompleted, event.Status)
	})

	t.Run("rejects a forged signature without recording anything", func(t *testing.T) {
		f := newWebhookFixture(t)
		f.seedPayment(t, "fpi_1", model.PaymentStatusAuthorized)

		payload, _ := signedPayload(t, provider.WebhookEvent{
			EventID:   "evt_1",
			EventType: provider.EventIntentCaptured,
			IntentID:  "fpi_1",
		})

		err := f.service.HandleProviderEvent(context.Background(), payload, "deadbeef")

		assert.Error(t, err)
		event, getErr := f.events.GetEvent(context.Background(), "evt_1")
		assert.NoError(t, getErr)
		assert.Nil(t, event)
	})

	t.Run("redelivery of a completed event is acknowledged without re-applying", func(t *testing.T) {
		f := newWebhookFixture(t)
		f.seedPayment(t, "fpi_1", model.PaymentStatusAuthorized)

		payload, sig := signedPayload(t, provider.WebhookEvent{
			EventID:   "evt_1",
			EventType: provider.EventIntentCaptured,
			IntentID:  "fpi_1",
		})

		assert.NoError(t, f.service.HandleProviderEvent(context.Background(), payload, sig))
		savesAfterFirst := f.events.saves

		assert.NoError(t, f.service.HandleProviderEvent(context.Background(), payload, sig))
		assert.Equal(t, savesAfterFirst, f.events.saves)
	})

	t.Run("an already-applied transition counts as success", func(t *testing.T) {
		f := newWebhookFixture(t)
		f.seedPayment(t, "fpi_1", model.PaymentStatusCaptured)

		payload, sig := signedPayload(t, provider.WebhookEvent{
			EventID:   "evt_2",
			EventType: provider.EventIntentCaptured,
			IntentID:  "fpi_1",
		})

		assert.NoError(t, f.service.HandleProviderEvent(context.Background(), payload, sig))

		event, err := f.events.GetEvent(context.Background(), "evt_2")
		assert.NoError(t, err)
		assert.Equal(t, model.WebhookStatusCompleted, event.Status)
	})

	t.Run("a failed event records the provider reason", func(t *testing.T) {
		f := newWebhookFixture(t)
		payment := f.seedPayment(t, "fpi_1", model.PaymentStatusPending)

		payload, sig := signedPayload(t, provider.WebhookEvent{
			EventID:   "evt_3",
			EventType: provider.EventIntentFailed,
			IntentID:  "fpi_1",
			Reason:    "card declined",
		})

		assert.NoError(t, f.service.HandleProviderEvent(context.Background(), payload, sig))

		row, err := f.store.GetByID(context.Background(), payment.ID)
		assert.NoError(t, err)
		assert.Equal(t, model.PaymentStatusFailed, row.Status)
		assert.Equal(t, "card declined", *row.FailureReason)
	})

	t.Run("unknown event types are recorded and ignored", func(t *testing.T) {
		f := newWebhookFixture(t)
		payment := f.seedPayment(t, "fpi_1", model.PaymentStatusAuthorized)

		payload, sig := signedPayload(t, provider.WebhookEvent{
			EventID:   "evt_4",
			EventType: provider.EventUnknown,
			IntentID:  "fpi_1",
		})

		assert.NoError(t, f.service.HandleProviderEvent(context.Background(), payload, sig))

		row, err := f.store.GetByID(context.Background(), payment.ID)
		assert.NoError(t, err)
		assert.Equal(t, model.PaymentStatusAuthorized, row.Status)
	})

	t.Run("event for an unknown intent is acknowledged without looping", func(t *testing.T) {
		f := newWebhookFixture(t)

		payload, sig := signedPayload(t, provider.WebhookEvent{
			EventID:   "evt_5",
			EventType: provider.EventIntentCaptured,
			IntentID:  "fpi_missing",
		})

		assert.NoError(t, f.service.HandleProviderEvent(context.Background(), payload, sig))

		event, err := f.events.GetEvent(context.Background(), "evt_5")
		assert.NoError(t, err)
		assert.Equal(t, model.WebhookStatusCompleted, event.Status)
		assert.Nil(t, event.LastError)
	})
}
