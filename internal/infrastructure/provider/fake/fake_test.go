package fake

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wayfarerhq/payment-service/internal/domain/provider"
)

func createIntent(t *testing.T, f *FakeProvider, key string) *provider.Intent {
	t.Helper()
	intent, err := f.CreateIntent(context.Background(), &provider.CreateIntentRequest{
		AmountCents:    2898,
		Currency:       "USD",
		CustomerID:     "cus_1",
		IdempotencyKey: key,
	})
	assert.NoError(t, err)
	return intent
}

func TestCreateIntentIdempotency(t *testing.T) {
	f := NewFakeProvider()

	first := createIntent(t, f, "authorize:req:cus_1:2898")
	second := createIntent(t, f, "authorize:req:cus_1:2898")

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, f.CreateCalls)

	third := createIntent(t, f, "authorize:req:cus_1:other")
	assert.NotEqual(t, first.ID, third.ID)
}

func TestCaptureFlow(t *testing.T) {
	f := NewFakeProvider()
	intent := createIntent(t, f, "k1")

	result, err := f.CaptureIntent(context.Background(), &provider.CaptureRequest{
		IntentID:       intent.ID,
		IdempotencyKey: "capture:1",
	})
	assert.NoError(t, err)
	assert.Equal(t, int64(2898), result.AmountCents)
	assert.NotEmpty(t, result.ChargeID)

	retrieved, err := f.RetrieveIntent(context.Background(), intent.ID)
	assert.NoError(t, err)
	assert.Equal(t, provider.IntentStatusCaptured, retrieved.Status)

	// Capturing again replays rather than failing.
	again, err := f.CaptureIntent(context.Background(), &provider.CaptureRequest{
		IntentID:       intent.ID,
		IdempotencyKey: "capture:1",
	})
	assert.NoError(t, err)
	assert.Equal(t, result.ChargeID, again.ChargeID)
}

func TestCancelCapturedIntent(t *testing.T) {
	f := NewFakeProvider()
	intent := createIntent(t, f, "k1")
	_, err := f.CaptureIntent(context.Background(), &provider.CaptureRequest{IntentID: intent.ID})
	assert.NoError(t, err)

	err = f.CancelIntent(context.Background(), &provider.CancelIntentRequest{IntentID: intent.ID})

	var providerErr *provider.ProviderError
	assert.ErrorAs(t, err, &providerErr)
	assert.Equal(t, "INTENT_NOT_CANCELLABLE", providerErr.Code)
}

func TestRefundIdempotency(t *testing.T) {
	f := NewFakeProvider()
	intent := createIntent(t, f, "k1")
	_, err := f.CaptureIntent(context.Background(), &provider.CaptureRequest{IntentID: intent.ID})
	assert.NoError(t, err)

	first, err := f.Refund(context.Background(), &provider.RefundRequest{
		IntentID:       intent.ID,
		AmountCents:    500,
		IdempotencyKey: "refund:1",
	})
	assert.NoError(t, err)

	second, err := f.Refund(context.Background(), &provider.RefundRequest{
		IntentID:       intent.ID,
		AmountCents:    500,
		IdempotencyKey: "refund:1",
	})
	assert.NoError(t, err)
	assert.Equal(t, first.RefundID, second.RefundID)
	assert.Equal(t, 2, f.RefundCalls)
}

func TestRefundRequiresCapture(t *testing.T) {
	f := NewFakeProvider()
	intent := createIntent(t, f, "k1")

	_, err := f.Refund(context.Background(), &provider.RefundRequest{IntentID: intent.ID})

	var providerErr *provider.ProviderError
	assert.ErrorAs(t, err, &providerErr)
	assert.Equal(t, "CHARGE_NOT_REFUNDABLE", providerErr.Code)
}

func TestFailureInjection(t *testing.T) {
	f := NewFakeProvider()
	f.FailNextCreate = &provider.ProviderError{Code: "CARD_DECLINED", Message: "card declined"}

	_, err := f.CreateIntent(context.Background(), &provider.CreateIntentRequest{
		AmountCents: 100, Currency: "USD", CustomerID: "cus_1",
	})
	assert.Error(t, err)

	// Only the next call fails.
	_, err = f.CreateIntent(context.Background(), &provider.CreateIntentRequest{
		AmountCents: 100, Currency: "USD", CustomerID: "cus_1",
	})
	assert.NoError(t, err)
}

func TestVerifyWebhook(t *testing.T) {
	f := NewFakeProvider()
	payload, err := json.Marshal(provider.WebhookEvent{
		EventID:   "evt_1",
		EventType: provider.EventIntentCaptured,
		IntentID:  "fpi_1",
	})
	assert.NoError(t, err)

	t.Run("valid signature decodes the event", func(t *testing.T) {
		event, err := f.VerifyWebhook(payload, Sign(payload, "secret"), "secret")
		assert.NoError(t, err)
		assert.Equal(t, "evt_1", event.EventID)
		assert.Equal(t, provider.EventIntentCaptured, event.EventType)
	})

	t.Run("wrong secret is rejected", func(t *testing.T) {
		_, err := f.VerifyWebhook(payload, Sign(payload, "other"), "secret")
		var providerErr *provider.ProviderError
		assert.ErrorAs(t, err, &providerErr)
		assert.Equal(t, "SIGNATURE_VERIFICATION_FAILED", providerErr.Code)
	})

	t.Run("tampered payload is rejected", func(t *testing.T) {
		sig := Sign(payload, "secret")
		tampered := append([]byte{}, payload...)
		tampered[0] ^= 0xff
		_, err := f.VerifyWebhook(tampered, sig, "secret")
		assert.Error(t, err)
	})
}

func TestCreateCustomerIdempotency(t *testing.T) {
	f := NewFakeProvider()

	first, err := f.CreateCustomer(context.Background(), &provider.CreateCustomerRequest{
		Email:          "user@example.com",
		IdempotencyKey: "customer:u1",
	})
	assert.NoError(t, err)

	second, err := f.CreateCustomer(context.Background(), &provider.CreateCustomerRequest{
		Email:          "user@example.com",
		IdempotencyKey: "customer:u1",
	})
	assert.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}
