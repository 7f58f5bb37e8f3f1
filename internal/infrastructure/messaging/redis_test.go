package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/wayfarerhq/payment-service/internal/domain/model"
	"github.com/wayfarerhq/payment-service/internal/usecase"
)

type stubRedisClient struct {
	channel string
	message interface{}
	err     error
}

func (s *stubRedisClient) Publish(_ context.Context, channel string, message interface{}) error {
	if s.err != nil {
		return s.err
	}
	s.channel = channel
	s.message = message
	return nil
}

func (s *stubRedisClient) Close() error { return nil }

func TestRedisNotifier(t *testing.T) {
	payment := &model.Payment{
		ID:          uuid.New(),
		RequestID:   uuid.New(),
		CustomerID:  "cus_requester",
		AmountCents: 2898,
		Currency:    "USD",
		Status:      model.PaymentStatusCaptured,
	}

	t.Run("publishes the lifecycle event on the configured channel", func(t *testing.T) {
		client := &stubRedisClient{}
		notifier := NewRedisNotifier(client, "payment.events", zap.NewNop())

		err := notifier.NotifyPaymentEvent(context.Background(), usecase.EventPaymentCaptured, payment)

		assert.NoError(t, err)
		assert.Equal(t, "payment.events", client.channel)
		msg, ok := client.message.(PaymentEventMessage)
		assert.True(t, ok)
		assert.Equal(t, string(usecase.EventPaymentCaptured), msg.Event)
		assert.Equal(t, payment.ID.String(), msg.PaymentID)
		assert.Equal(t, int64(2898), msg.AmountCents)
	})

	t.Run("surfaces a publish failure", func(t *testing.T) {
		client := &stubRedisClient{err: errors.New("connection refused")}
		notifier := NewRedisNotifier(client, "payment.events", zap.NewNop())

		err := notifier.NotifyPaymentEvent(context.Background(), usecase.EventPaymentCaptured, payment)

		assert.Error(t, err)
	})
}
