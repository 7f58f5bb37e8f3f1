package stripe

import (
	"context"
	"errors"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/customer"
	"github.com/stripe/stripe-go/v79/paymentintent"
	"github.com/stripe/stripe-go/v79/paymentmethod"
	"github.com/stripe/stripe-go/v79/refund"
	"github.com/stripe/stripe-go/v79/transfer"
	"github.com/stripe/stripe-go/v79/webhook"
	"go.uber.org/zap"

	"github.com/wayfarerhq/payment-service/internal/domain/provider"
)

// StripeProvider implements the PaymentProvider interface for Stripe.
// Authorizations are PaymentIntents with manual capture; payouts are
// Transfers to connected accounts. Idempotency keys are forwarded on
// every mutating call so Stripe collapses retries onto the original
// request.
type StripeProvider struct {
	logger *zap.Logger
}

// NewStripeProvider creates a new Stripe provider. The secret key is
// installed process-wide, matching the stripe-go client model.
func NewStripeProvider(secretKey string, logger *zap.Logger) *StripeProvider {
	stripe.Key = secretKey
	return &StripeProvider{logger: logger}
}

// ProviderName returns the provider name
func (s *StripeProvider) ProviderName() string {
	return string(provider.ProviderTypeStripe)
}

// CreateIntent creates a manual-capture PaymentIntent: the charge is held
// until CaptureIntent converts it.
func (s *StripeProvider) CreateIntent(ctx context.Context, req *provider.CreateIntentRequest) (*provider.Intent, error) {
	params := &stripe.PaymentIntentParams{
		Params:        stripe.Params{Context: ctx},
		Amount:        stripe.Int64(req.AmountCents),
		Currency:      stripe.String(req.Currency),
		Customer:      stripe.String(req.CustomerID),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.SetIdempotencyKey(req.IdempotencyKey)

	pi, err := paymentintent.New(params)
	if err != nil {
		s.logger.Error("Stripe intent creation failed",
			zap.String("customer_id", req.CustomerID),
			zap.Int64("amount_cents", req.AmountCents),
			zap.Error(err))
		return nil, wrapStripeErr(err, "failed to create payment intent")
	}

	return intentFromStripe(pi), nil
}

// RetrieveIntent fetches the current state of a PaymentIntent.
func (s *StripeProvider) RetrieveIntent(ctx context.Context, intentID string) (*provider.Intent, error) {
	params := &stripe.PaymentIntentParams{Params: stripe.Params{Context: ctx}}
	params.AddExpand("latest_charge")

	pi, err := paymentintent.Get(intentID, params)
	if err != nil {
		return nil, wrapStripeErr(err, "failed to retrieve payment intent")
	}
	return intentFromStripe(pi), nil
}

// CancelIntent releases an uncaptured hold.
func (s *StripeProvider) CancelIntent(ctx context.Context, req *provider.CancelIntentRequest) error {
	params := &stripe.PaymentIntentCancelParams{Params: stripe.Params{Context: ctx}}
	if req.Reason != "" {
		params.CancellationReason = stripe.String(req.Reason)
	}
	params.SetIdempotencyKey(req.IdempotencyKey)

	if _, err := paymentintent.Cancel(req.IntentID, params); err != nil {
		s.logger.Error("Stripe intent cancellation failed",
			zap.String("intent_id", req.IntentID),
			zap.Error(err))
		return wrapStripeErr(err, "failed to cancel payment intent")
	}
	return nil
}

// CaptureIntent converts an authorization into a charge.
func (s *StripeProvider) CaptureIntent(ctx context.Context, req *provider.CaptureRequest) (*provider.CaptureResult, error) {
	params := &stripe.PaymentIntentCaptureParams{Params: stripe.Params{Context: ctx}}
	if req.AmountCents > 0 {
		params.AmountToCapture = stripe.Int64(req.AmountCents)
	}
	params.SetIdempotencyKey(req.IdempotencyKey)

	pi, err := paymentintent.Capture(req.IntentID, params)
	if err != nil {
		s.logger.Error("Stripe capture failed",
			zap.String("intent_id", req.IntentID),
			zap.Error(err))
		return nil, wrapStripeErr(err, "failed to capture payment intent")
	}

	now := time.Now()
	result := &provider.CaptureResult{
		IntentID:    pi.ID,
		AmountCents: pi.AmountReceived,
		CapturedAt:  &now,
	}
	if pi.LatestCharge != nil {
		result.ChargeID = pi.LatestCharge.ID
	}
	return result, nil
}

// Refund returns captured funds, fully or partially.
func (s *StripeProvider) Refund(ctx context.Context, req *provider.RefundRequest) (*provider.RefundResult, error) {
	params := &stripe.RefundParams{
		Params:        stripe.Params{Context: ctx},
		PaymentIntent: stripe.String(req.IntentID),
	}
	if req.AmountCents > 0 {
		params.Amount = stripe.Int64(req.AmountCents)
	}
	if req.Reason != "" {
		params.Reason = stripe.String(req.Reason)
	}
	params.SetIdempotencyKey(req.IdempotencyKey)

	ref, err := refund.New(params)
	if err != nil {
		s.logger.Error("Stripe refund failed",
			zap.String("intent_id", req.IntentID),
			zap.Int64("amount_cents", req.AmountCents),
			zap.Error(err))
		return nil, wrapStripeErr(err, "failed to create refund")
	}

	return &provider.RefundResult{
		RefundID:    ref.ID,
		IntentID:    req.IntentID,
		AmountCents: ref.Amount,
		Status:      string(ref.Status),
	}, nil
}

// Transfer moves captured funds to a connected payout account.
func (s *StripeProvider) Transfer(ctx context.Context, req *provider.TransferRequest) (*provider.TransferResult, error) {
	params := &stripe.TransferParams{
		Params:      stripe.Params{Context: ctx},
		Amount:      stripe.Int64(req.AmountCents),
		Currency:    stripe.String(req.Currency),
		Destination: stripe.String(req.DestinationID),
	}
	if req.SourceTransaction != "" {
		params.SourceTransaction = stripe.String(req.SourceTransaction)
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.SetIdempotencyKey(req.IdempotencyKey)

	tr, err := transfer.New(params)
	if err != nil {
		s.logger.Error("Stripe transfer failed",
			zap.String("destination_id", req.DestinationID),
			zap.Int64("amount_cents", req.AmountCents),
			zap.Error(err))
		return nil, wrapStripeErr(err, "failed to create transfer")
	}

	return &provider.TransferResult{
		TransferID:    tr.ID,
		DestinationID: req.DestinationID,
		AmountCents:   tr.Amount,
	}, nil
}

// CreateCustomer provisions a Stripe customer.
func (s *StripeProvider) CreateCustomer(ctx context.Context, req *provider.CreateCustomerRequest) (*provider.Customer, error) {
	params := &stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
		Email:  stripe.String(req.Email),
	}
	if req.Name != "" {
		params.Name = stripe.String(req.Name)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.SetIdempotencyKey(req.IdempotencyKey)

	cust, err := customer.New(params)
	if err != nil {
		return nil, wrapStripeErr(err, "failed to create customer")
	}

	return &provider.Customer{ID: cust.ID, Email: cust.Email}, nil
}

// AttachPaymentMethod stores a payment instrument on a customer.
func (s *StripeProvider) AttachPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error {
	params := &stripe.PaymentMethodAttachParams{
		Params:   stripe.Params{Context: ctx},
		Customer: stripe.String(customerID),
	}
	if _, err := paymentmethod.Attach(paymentMethodID, params); err != nil {
		return wrapStripeErr(err, "failed to attach payment method")
	}
	return nil
}

// DetachPaymentMethod removes a stored payment instrument.
func (s *StripeProvider) DetachPaymentMethod(ctx context.Context, paymentMethodID string) error {
	params := &stripe.PaymentMethodDetachParams{Params: stripe.Params{Context: ctx}}
	if _, err := paymentmethod.Detach(paymentMethodID, params); err != nil {
		return wrapStripeErr(err, "failed to detach payment method")
	}
	return nil
}

// SetDefaultPaymentMethod marks an attached instrument as the customer's
// default.
func (s *StripeProvider) SetDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error {
	params := &stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
		InvoiceSettings: &stripe.CustomerInvoiceSettingsParams{
			DefaultPaymentMethod: stripe.String(paymentMethodID),
		},
	}
	if _, err := customer.Update(customerID, params); err != nil {
		return wrapStripeErr(err, "failed to set default payment method")
	}
	return nil
}

// VerifyWebhook checks the Stripe-Signature header against the endpoint
// secret and decodes the event into the provider-neutral shape.
func (s *StripeProvider) VerifyWebhook(payload []byte, signature, secret string) (*provider.WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		s.logger.Warn("Stripe webhook signature verification failed", zap.Error(err))
		return nil, &provider.ProviderError{
			Code:    "SIGNATURE_VERIFICATION_FAILED",
			Message: "webhook signature verification failed",
			Details: err.Error(),
		}
	}

	decoded := &provider.WebhookEvent{
		EventID:   event.ID,
		EventType: normalizeEventType(string(event.Type)),
		CreatedAt: time.Unix(event.Created, 0),
		Data:      event.Data.Object,
	}
	if id, ok := event.Data.Object["id"].(string); ok {
		decoded.IntentID = id
	}
	if amount, ok := event.Data.Object["amount"].(float64); ok {
		decoded.AmountCents = int64(amount)
	}
	if reason, ok := event.Data.Object["last_payment_error"].(map[string]interface{}); ok {
		if msg, ok := reason["message"].(string); ok {
			decoded.Reason = msg
		}
	}
	if decoded.EventType == provider.EventChargeRefunded {
		// Refund events reference the charge; the intent id sits on the
		// charge object.
		if intentID, ok := event.Data.Object["payment_intent"].(string); ok {
			decoded.IntentID = intentID
		}
	}
	return decoded, nil
}

func normalizeEventType(stripeType string) provider.EventType {
	switch stripeType {
	case "payment_intent.amount_capturable_updated":
		return provider.EventIntentAuthorized
	case "payment_intent.succeeded":
		return provider.EventIntentCaptured
	case "payment_intent.payment_failed":
		return provider.EventIntentFailed
	case "payment_intent.canceled":
		return provider.EventIntentCancelled
	case "charge.refunded":
		return provider.EventChargeRefunded
	default:
		return provider.EventUnknown
	}
}

func intentFromStripe(pi *stripe.PaymentIntent) *provider.Intent {
	intent := &provider.Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       normalizeIntentStatus(pi.Status),
		AmountCents:  pi.Amount,
		Currency:     string(pi.Currency),
	}
	if pi.LatestCharge != nil {
		intent.ChargeID = pi.LatestCharge.ID
	}
	return intent
}

func normalizeIntentStatus(status stripe.PaymentIntentStatus) provider.IntentStatus {
	switch status {
	case stripe.PaymentIntentStatusRequiresCapture:
		return provider.IntentStatusAuthorized
	case stripe.PaymentIntentStatusSucceeded:
		return provider.IntentStatusCaptured
	case stripe.PaymentIntentStatusCanceled:
		return provider.IntentStatusCancelled
	case stripe.PaymentIntentStatusRequiresPaymentMethod,
		stripe.PaymentIntentStatusRequiresConfirmation,
		stripe.PaymentIntentStatusRequiresAction,
		stripe.PaymentIntentStatusProcessing:
		return provider.IntentStatusPending
	default:
		return provider.IntentStatusFailed
	}
}

func wrapStripeErr(err error, message string) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return &provider.ProviderError{
			Code:    string(stripeErr.Code),
			Message: message,
			Details: stripeErr.Msg,
		}
	}
	return &provider.ProviderError{
		Code:    "API_ERROR",
		Message: message,
		Details: err.Error(),
	}
}
