package fake

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wayfarerhq/payment-service/internal/domain/provider"
)

// FakeProvider is a deterministic in-memory PaymentProvider used in tests
// and local development. It honours idempotency keys the way a real
// processor does: a repeated key replays the recorded result instead of
// producing a new side effect. Call counters and injectable failures let
// tests assert how many times the engine actually reached the provider.
type FakeProvider struct {
	mu sync.Mutex

	intents   map[string]*provider.Intent
	replays   map[string]string // idempotency key -> intent/refund/transfer/customer id
	customers map[string]*provider.Customer

	// FailNext* make the next matching call fail once.
	FailNextCreate   error
	FailNextCapture  error
	FailNextRefund   error
	FailNextTransfer error

	CreateCalls   int
	RetrieveCalls int
	CancelCalls   int
	CaptureCalls  int
	RefundCalls   int
	TransferCalls int
	CustomerCalls int
}

// NewFakeProvider creates an empty fake provider.
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		intents:   make(map[string]*provider.Intent),
		replays:   make(map[string]string),
		customers: make(map[string]*provider.Customer),
	}
}

// ProviderName returns the provider name
func (f *FakeProvider) ProviderName() string {
	return string(provider.ProviderTypeFake)
}

func (f *FakeProvider) CreateIntent(_ context.Context, req *provider.CreateIntentRequest) (*provider.Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CreateCalls++

	if err := f.FailNextCreate; err != nil {
		f.FailNextCreate = nil
		return nil, err
	}
	if id, ok := f.replays[req.IdempotencyKey]; ok {
		return cloneIntent(f.intents[id]), nil
	}

	intent := &provider.Intent{
		ID:           "fpi_" + uuid.NewString(),
		ClientSecret: "fpi_secret_" + uuid.NewString(),
		Status:       provider.IntentStatusAuthorized,
		AmountCents:  req.AmountCents,
		Currency:     req.Currency,
	}
	f.intents[intent.ID] = intent
	if req.IdempotencyKey != "" {
		f.replays[req.IdempotencyKey] = intent.ID
	}
	return cloneIntent(intent), nil
}

func (f *FakeProvider) RetrieveIntent(_ context.Context, intentID string) (*provider.Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RetrieveCalls++

	intent, ok := f.intents[intentID]
	if !ok {
		return nil, &provider.ProviderError{Code: "RESOURCE_MISSING", Message: "no such intent", Details: intentID}
	}
	return cloneIntent(intent), nil
}

func (f *FakeProvider) CancelIntent(_ context.Context, req *provider.CancelIntentRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CancelCalls++

	intent, ok := f.intents[req.IntentID]
	if !ok {
		return &provider.ProviderError{Code: "RESOURCE_MISSING", Message: "no such intent", Details: req.IntentID}
	}
	if intent.Status == provider.IntentStatusCaptured {
		return &provider.ProviderError{Code: "INTENT_NOT_CANCELLABLE", Message: "intent already captured"}
	}
	intent.Status = provider.IntentStatusCancelled
	return nil
}

func (f *FakeProvider) CaptureIntent(_ context.Context, req *provider.CaptureRequest) (*provider.CaptureResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CaptureCalls++

	if err := f.FailNextCapture; err != nil {
		f.FailNextCapture = nil
		return nil, err
	}

	intent, ok := f.intents[req.IntentID]
	if !ok {
		return nil, &provider.ProviderError{Code: "RESOURCE_MISSING", Message: "no such intent", Details: req.IntentID}
	}

	now := time.Now()
	if intent.Status != provider.IntentStatusCaptured {
		if intent.Status != provider.IntentStatusAuthorized {
			return nil, &provider.ProviderError{
				Code:    "INTENT_NOT_CAPTURABLE",
				Message: fmt.Sprintf("intent is %s, not authorized", intent.Status),
			}
		}
		intent.Status = provider.IntentStatusCaptured
		intent.ChargeID = "fch_" + uuid.NewString()
	}

	amount := intent.AmountCents
	if req.AmountCents > 0 {
		amount = req.AmountCents
	}
	return &provider.CaptureResult{
		IntentID:    intent.ID,
		ChargeID:    intent.ChargeID,
		AmountCents: amount,
		CapturedAt:  &now,
	}, nil
}

func (f *FakeProvider) Refund(_ context.Context, req *provider.RefundRequest) (*provider.RefundResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RefundCalls++

	if err := f.FailNextRefund; err != nil {
		f.FailNextRefund = nil
		return nil, err
	}
	if id, ok := f.replays[req.IdempotencyKey]; ok {
		intent := f.intents[req.IntentID]
		amount := req.AmountCents
		if amount == 0 && intent != nil {
			amount = intent.AmountCents
		}
		return &provider.RefundResult{RefundID: id, IntentID: req.IntentID, AmountCents: amount, Status: "succeeded"}, nil
	}

	intent, ok := f.intents[req.IntentID]
	if !ok {
		return nil, &provider.ProviderError{Code: "RESOURCE_MISSING", Message: "no such intent", Details: req.IntentID}
	}
	if intent.Status != provider.IntentStatusCaptured {
		return nil, &provider.ProviderError{Code: "CHARGE_NOT_REFUNDABLE", Message: "intent has no captured charge"}
	}

	amount := req.AmountCents
	if amount == 0 {
		amount = intent.AmountCents
	}
	result := &provider.RefundResult{
		RefundID:    "fre_" + uuid.NewString(),
		IntentID:    req.IntentID,
		AmountCents: amount,
		Status:      "succeeded",
	}
	if req.IdempotencyKey != "" {
		f.replays[req.IdempotencyKey] = result.RefundID
	}
	return result, nil
}

func (f *FakeProvider) Transfer(_ context.Context, req *provider.TransferRequest) (*provider.TransferResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.TransferCalls++

	if err := f.FailNextTransfer; err != nil {
		f.FailNextTransfer = nil
		return nil, err
	}
	if id, ok := f.replays[req.IdempotencyKey]; ok {
		return &provider.TransferResult{TransferID: id, DestinationID: req.DestinationID, AmountCents: req.AmountCents}, nil
	}

	result := &provider.TransferResult{
		TransferID:    "ftr_" + uuid.NewString(),
		DestinationID: req.DestinationID,
		AmountCents:   req.AmountCents,
	}
	if req.IdempotencyKey != "" {
		f.replays[req.IdempotencyKey] = result.TransferID
	}
	return result, nil
}

func (f *FakeProvider) CreateCustomer(_ context.Context, req *provider.CreateCustomerRequest) (*provider.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CustomerCalls++

	if id, ok := f.replays[req.IdempotencyKey]; ok {
		return f.customers[id], nil
	}

	cust := &provider.Customer{ID: "fcus_" + uuid.NewString(), Email: req.Email}
	f.customers[cust.ID] = cust
	if req.IdempotencyKey != "" {
		f.replays[req.IdempotencyKey] = cust.ID
	}
	return cust, nil
}

func (f *FakeProvider) AttachPaymentMethod(_ context.Context, customerID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.customers[customerID]; !ok {
		return &provider.ProviderError{Code: "RESOURCE_MISSING", Message: "no such customer", Details: customerID}
	}
	return nil
}

func (f *FakeProvider) DetachPaymentMethod(_ context.Context, _ string) error {
	return nil
}

func (f *FakeProvider) SetDefaultPaymentMethod(_ context.Context, customerID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.customers[customerID]; !ok {
		return &provider.ProviderError{Code: "RESOURCE_MISSING", Message: "no such customer", Details: customerID}
	}
	return nil
}

// VerifyWebhook checks an HMAC-SHA256 hex signature over the raw payload.
func (f *FakeProvider) VerifyWebhook(payload []byte, signature, secret string) (*provider.WebhookEvent, error) {
	if !hmac.Equal([]byte(signature), []byte(Sign(payload, secret))) {
		return nil, &provider.ProviderError{
			Code:    "SIGNATURE_VERIFICATION_FAILED",
			Message: "webhook signature verification failed",
		}
	}

	var event provider.WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, &provider.ProviderError{
			Code:    "INVALID_PAYLOAD",
			Message: "webhook payload is not valid JSON",
			Details: err.Error(),
		}
	}
	if event.EventType == "" {
		event.EventType = provider.EventUnknown
	}
	return &event, nil
}

// Sign computes the signature VerifyWebhook expects. Tests use it to
// produce valid webhook deliveries.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// SetIntentStatus overrides an intent's state, simulating out-of-band
// provider activity such as a customer-confirmed authorization.
func (f *FakeProvider) SetIntentStatus(intentID string, status provider.IntentStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if intent, ok := f.intents[intentID]; ok {
		intent.Status = status
	}
}

func cloneIntent(in *provider.Intent) *provider.Intent {
	if in == nil {
		return nil
	}
	out := *in
	return &out
}

var _ provider.PaymentProvider = (*FakeProvider)(nil)
