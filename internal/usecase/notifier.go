package usecase

import (
	"context"

	"github.com/wayfarerhq/payment-service/internal/domain/model"
)

// PaymentEventName identifies a lifecycle event published to the
// notification sink.
type PaymentEventName string

const (
	EventPaymentAuthorized  PaymentEventName = "payment.authorized"
	EventPaymentCaptured    PaymentEventName = "payment.captured"
	EventPaymentCancelled   PaymentEventName = "payment.cancelled"
	EventPaymentRefunded    PaymentEventName = "payment.refunded"
	EventPaymentTransferred PaymentEventName = "payment.transferred"
	EventPaymentFailed      PaymentEventName = "payment.failed"
)

// PaymentNotifier is the sink the engine publishes lifecycle events into.
// The fan-out behind it is not this service's concern; a failed publish
// never fails the payment operation.
type PaymentNotifier interface {
	NotifyPaymentEvent(ctx context.Context, event PaymentEventName, payment *model.Payment) error
}

// NopNotifier discards every event.
type NopNotifier struct{}

func (NopNotifier) NotifyPaymentEvent(ctx context.Context, event PaymentEventName, payment *model.Payment) error {
	return nil
}
