package provider

import (
	"context"
	"time"
)

// PaymentProvider defines the capability surface of an external payment
// processor (Stripe, fake, etc.). No business logic lives behind this
// interface; adapters only translate to provider wire formats.
//
// Every mutating call carries an idempotency key. Supplying the same key
// for a logically identical retry must yield the original result rather
// than a duplicate side effect.
type PaymentProvider interface {
	// CreateIntent places an authorization hold on the customer's funds.
	CreateIntent(ctx context.Context, req *CreateIntentRequest) (*Intent, error)

	// RetrieveIntent fetches the current provider-side state of a hold.
	RetrieveIntent(ctx context.Context, intentID string) (*Intent, error)

	// CancelIntent releases an uncaptured hold.
	CancelIntent(ctx context.Context, req *CancelIntentRequest) error

	// CaptureIntent converts an authorization into an actual charge,
	// fully or partially.
	CaptureIntent(ctx context.Context, req *CaptureRequest) (*CaptureResult, error)

	// Refund returns captured funds to the customer, fully or partially.
	Refund(ctx context.Context, req *RefundRequest) (*RefundResult, error)

	// Transfer moves captured funds to a destination payout account,
	// tagged by the source transaction.
	Transfer(ctx context.Context, req *TransferRequest) (*TransferResult, error)

	// CreateCustomer provisions a payer identity.
	CreateCustomer(ctx context.Context, req *CreateCustomerRequest) (*Customer, error)

	// AttachPaymentMethod stores a payment instrument on a customer.
	AttachPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error

	// DetachPaymentMethod removes a stored payment instrument.
	DetachPaymentMethod(ctx context.Context, paymentMethodID string) error

	// SetDefaultPaymentMethod marks an attached instrument as the default.
	SetDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error

	// VerifyWebhook checks the signature of an asynchronous provider
	// notification against the shared secret and decodes the payload.
	VerifyWebhook(payload []byte, signature, secret string) (*WebhookEvent, error)

	// ProviderName returns the provider name
	ProviderName() string
}

// IntentStatus is the provider-neutral state of an authorization.
type IntentStatus string

const (
	IntentStatusPending    IntentStatus = "pending"
	IntentStatusAuthorized IntentStatus = "authorized"
	IntentStatusCaptured   IntentStatus = "captured"
	IntentStatusCancelled  IntentStatus = "cancelled"
	IntentStatusFailed     IntentStatus = "failed"
)

// CreateIntentRequest asks the provider for an authorization hold.
type CreateIntentRequest struct {
	AmountCents    int64             `json:"amount_cents"`
	Currency       string            `json:"currency"`
	CustomerID     string            `json:"customer_id"`
	Description    string            `json:"description,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	IdempotencyKey string            `json:"idempotency_key"`
}

// Intent is the provider's handle for an authorization.
type Intent struct {
	ID           string       `json:"id"`
	ClientSecret string       `json:"client_secret,omitempty"`
	Status       IntentStatus `json:"status"`
	AmountCents  int64        `json:"amount_cents"`
	Currency     string       `json:"currency"`
	ChargeID     string       `json:"charge_id,omitempty"`
}

// CancelIntentRequest releases an uncaptured authorization.
type CancelIntentRequest struct {
	IntentID       string `json:"intent_id"`
	Reason         string `json:"reason,omitempty"`
	IdempotencyKey string `json:"idempotency_key"`
}

// CaptureRequest converts a hold into a charge. AmountCents of zero means
// capture the full authorized amount.
type CaptureRequest struct {
	IntentID       string `json:"intent_id"`
	AmountCents    int64  `json:"amount_cents,omitempty"`
	IdempotencyKey string `json:"idempotency_key"`
}

// CaptureResult reports the outcome of a capture.
type CaptureResult struct {
	IntentID    string     `json:"intent_id"`
	ChargeID    string     `json:"charge_id,omitempty"`
	AmountCents int64      `json:"amount_cents"`
	CapturedAt  *time.Time `json:"captured_at,omitempty"`
}

// RefundRequest returns captured funds. AmountCents of zero means a full
// refund.
type RefundRequest struct {
	IntentID       string `json:"intent_id"`
	AmountCents    int64  `json:"amount_cents,omitempty"`
	Reason         string `json:"reason,omitempty"`
	IdempotencyKey string `json:"idempotency_key"`
}

// RefundResult reports the outcome of a refund.
type RefundResult struct {
	RefundID    string `json:"refund_id"`
	IntentID    string `json:"intent_id"`
	AmountCents int64  `json:"amount_cents"`
	Status      string `json:"status"`
}

// TransferRequest moves captured funds to a payout account.
type TransferRequest struct {
	AmountCents       int64             `json:"amount_cents"`
	Currency          string            `json:"currency"`
	DestinationID     string            `json:"destination_id"`
	SourceTransaction string            `json:"source_transaction,omitempty"`
	Description       string            `json:"description,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	IdempotencyKey    string            `json:"idempotency_key"`
}

// TransferResult reports the outcome of a transfer.
type TransferResult struct {
	TransferID    string `json:"transfer_id"`
	DestinationID string `json:"destination_id"`
	AmountCents   int64  `json:"amount_cents"`
}

// CreateCustomerRequest provisions a payer identity with the provider.
type CreateCustomerRequest struct {
	Email          string            `json:"email"`
	Name           string            `json:"name,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	IdempotencyKey string            `json:"idempotency_key"`
}

// Customer is the provider's payer identity.
type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// WebhookEvent is a verified, decoded provider notification.
type WebhookEvent struct {
	EventID     string                 `json:"event_id"`
	EventType   EventType              `json:"event_type"`
	IntentID    string                 `json:"intent_id,omitempty"`
	AmountCents int64                  `json:"amount_cents,omitempty"`
	Reason      string                 `json:"reason,omitempty"`
	Data        map[string]interface{} `json:"data,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// EventType is the provider-neutral classification of a webhook event.
type EventType string

const (
	EventIntentAuthorized EventType = "intent.authorized"
	EventIntentCaptured   EventType = "intent.captured"
	EventIntentFailed     EventType = "intent.failed"
	EventIntentCancelled  EventType = "intent.cancelled"
	EventChargeRefunded   EventType = "charge.refunded"
	EventUnknown          EventType = "unknown"
)

// ProviderType represents the type of payment provider
type ProviderType string

const (
	ProviderTypeStripe ProviderType = "stripe"
	ProviderTypeFake   ProviderType = "fake"
)

// ProviderError is the error currency of the port.
type ProviderError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *ProviderError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}
