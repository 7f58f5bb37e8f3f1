package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	domainErrors "github.com/wayfarerhq/payment-service/internal/domain/errors"
	"github.com/wayfarerhq/payment-service/internal/domain/model"
	"github.com/wayfarerhq/payment-service/internal/domain/provider"
	"github.com/wayfarerhq/payment-service/internal/domain/repository"
)

const defaultProviderTimeout = 30 * time.Second

// PaymentService orchestrates the payment lifecycle: it validates
// preconditions, calls the provider, and advances the ledger row through
// its state machine. Each operation performs exactly one forward
// transition. Rows are only ever mutated here.
type PaymentService struct {
	payments        repository.PaymentRepository
	provider        provider.PaymentProvider
	requests        repository.RequestReader
	users           repository.UserReader
	notifier        PaymentNotifier
	logger          *zap.Logger
	providerTimeout time.Duration
	locks           *paymentLocks
}

// NewPaymentService wires the engine. All collaborators are injected; the
// engine keeps no ambient globals.
func NewPaymentService(
	payments repository.PaymentRepository,
	paymentProvider provider.PaymentProvider,
	requests repository.RequestReader,
	users repository.UserReader,
	notifier PaymentNotifier,
	logger *zap.Logger,
	providerTimeout time.Duration,
) *PaymentService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if providerTimeout <= 0 {
		providerTimeout = defaultProviderTimeout
	}
	return &PaymentService{
		payments:        payments,
		provider:        paymentProvider,
		requests:        requests,
		users:           users,
		notifier:        notifier,
		logger:          logger,
		providerTimeout: providerTimeout,
		locks:           newPaymentLocks(),
	}
}

// AuthorizePaymentInput carries everything needed to place a hold for a
// delivery request. IdempotencyKey is optional; when empty a deterministic
// key is derived from (customer, amount, request) so a client retry after
// a timeout cannot create a second authorization.
type AuthorizePaymentInput struct {
	RequestID      uuid.UUID
	CustomerID     string
	AmountCents    int64
	Description    string
	IdempotencyKey string
}

// AuthorizePayment asks the provider for an authorization hold and records
// the resulting ledger row. The row is not persisted until the provider
// call succeeds, so a provider failure leaves no orphan row behind. A
// replayed call with the same idempotency key resolves to the same
// provider intent and returns the existing row.
func (s *PaymentService) AuthorizePayment(ctx context.Context, in AuthorizePaymentInput) (*model.Payment, error) {
	if in.AmountCents <= 0 {
		return nil, domainErrors.ErrInvalidAmount
	}
	if in.CustomerID == "" {
		return nil, domainErrors.ErrCustomerRequired
	}

	req, err := s.requests.GetDeliveryRequest(ctx, in.RequestID)
	if err != nil {
		return nil, fmt.Errorf("resolve delivery request: %w", err)
	}

	idemKey := in.IdempotencyKey
	if idemKey == "" {
		idemKey = fmt.Sprintf("authorize:%s:%s:%d", in.RequestID, in.CustomerID, in.AmountCents)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	defer cancel()

	intent, err := s.provider.CreateIntent(callCtx, &provider.CreateIntentRequest{
		AmountCents: in.AmountCents,
		Currency:    req.Currency,
		CustomerID:  in.CustomerID,
		Description: in.Description,
		Metadata: map[string]string{
			"request_id": in.RequestID.String(),
		},
		IdempotencyKey: idemKey,
	})
	if err != nil {
		s.logger.Error("provider authorization failed",
			zap.String("request_id", in.RequestID.String()),
			zap.String("customer_id", in.CustomerID),
			zap.Error(err))
		return nil, fmt.Errorf("provider authorization failed: %w", err)
	}

	// An idempotent replay returns the intent of the original call; the
	// unique index on provider_intent_id keeps the ledger at one row.
	existing, err := s.payments.GetByProviderIntentID(ctx, intent.ID)
	if err != nil && !errors.Is(err, domainErrors.ErrPaymentNotFound) {
		return nil, fmt.Errorf("lookup intent %s: %w", intent.ID, err)
	}
	if existing != nil {
		s.logger.Info("idempotent authorization replay",
			zap.String("payment_id", existing.ID.String()),
			zap.String("intent_id", intent.ID))
		return existing, nil
	}

	intentID := intent.ID
	payment := &model.Payment{
		ID:               uuid.New(),
		RequestID:        in.RequestID,
		ProviderIntentID: &intentID,
		CustomerID:       in.CustomerID,
		AmountCents:      in.AmountCents,
		Currency:         req.Currency,
		Status:           model.PaymentStatusPending,
		Type:             model.PaymentTypeDelivery,
		Description:      in.Description,
		Metadata: model.JSONB{
			"idempotency_key": idemKey,
		},
	}

	if err := s.payments.Create(ctx, payment); err != nil {
		if errors.Is(err, domainErrors.ErrDuplicateIntent) {
			// Lost a race against a concurrent replay of the same key.
			replay, lookupErr := s.payments.GetByProviderIntentID(ctx, intent.ID)
			if lookupErr != nil {
				return nil, fmt.Errorf("resolve duplicate intent %s: %w", intent.ID, lookupErr)
			}
			return replay, nil
		}
		return nil, fmt.Errorf("persist payment: %w", err)
	}

	s.logger.Info("payment authorized with provider",
		zap.String("payment_id", payment.ID.String()),
		zap.String("request_id", in.RequestID.String()),
		zap.String("intent_id", intent.ID),
		zap.Int64("amount_cents", in.AmountCents))

	return payment, nil
}

// ConfirmAuthorization moves a pending payment to authorized once the
// provider reports the hold as placed (typically driven by a webhook, but
// callable directly after client-side confirmation).
func (s *PaymentService) ConfirmAuthorization(ctx context.Context, paymentID uuid.UUID) (*model.Payment, error) {
	unlock := s.locks.Lock(paymentID)
	defer unlock()

	payment, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != model.PaymentStatusPending {
		return nil, domainErrors.NewStatusConflictError(paymentID, payment.Status, model.PaymentStatusPending)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	defer cancel()

	intent, err := s.provider.RetrieveIntent(callCtx, *payment.ProviderIntentID)
	if err != nil {
		return nil, fmt.Errorf("retrieve intent %s: %w", *payment.ProviderIntentID, err)
	}
	if intent.Status != provider.IntentStatusAuthorized {
		return nil, fmt.Errorf("intent %s not authorized by provider (status %s)", intent.ID, intent.Status)
	}

	if err := s.payments.MarkAuthorized(ctx, paymentID); err != nil {
		return nil, err
	}

	payment, err = s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, EventPaymentAuthorized, payment)
	return payment, nil
}

// CapturePayment converts an authorized hold into an actual charge. On
// provider failure a failed status is still written locally, so the row
// never lies about reality as best known, and the provider error is
// surfaced alongside the consistent ledger state.
func (s *PaymentService) CapturePayment(ctx context.Context, paymentID uuid.UUID) (*model.Payment, error) {
	unlock := s.locks.Lock(paymentID)
	defer unlock()

	payment, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != model.PaymentStatusAuthorized {
		return nil, domainErrors.NewStatusConflictError(paymentID, payment.Status, model.PaymentStatusAuthorized)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	defer cancel()

	_, err = s.provider.CaptureIntent(callCtx, &provider.CaptureRequest{
		IntentID:       *payment.ProviderIntentID,
		AmountCents:    payment.AmountCents,
		IdempotencyKey: "capture:" + paymentID.String(),
	})
	if err != nil {
		reason := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			// A timeout is an unknown outcome, not a confirmed failure.
			// Reconciliation against the idempotency key has to resolve it.
			reason = "provider timeout (outcome unknown): " + reason
		}
		if markErr := s.payments.MarkFailed(ctx, paymentID, reason); markErr != nil {
			s.logger.Error("failed to record capture failure",
				zap.String("payment_id", paymentID.String()),
				zap.Error(markErr))
		}
		s.logger.Error("provider capture failed",
			zap.String("payment_id", paymentID.String()),
			zap.String("intent_id", *payment.ProviderIntentID),
			zap.Error(err))
		if failed, getErr := s.payments.GetByID(ctx, paymentID); getErr == nil {
			s.notify(ctx, EventPaymentFailed, failed)
		}
		return nil, fmt.Errorf("provider capture failed: %w", err)
	}

	if err := s.payments.MarkCaptured(ctx, paymentID); err != nil {
		return nil, err
	}

	payment, err = s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment captured",
		zap.String("payment_id", paymentID.String()),
		zap.Int64("amount_cents", payment.AmountCents))
	s.notify(ctx, EventPaymentCaptured, payment)
	return payment, nil
}

// CancelPayment releases an authorized hold without charging it.
func (s *PaymentService) CancelPayment(ctx context.Context, paymentID uuid.UUID, reason string) (*model.Payment, error) {
	unlock := s.locks.Lock(paymentID)
	defer unlock()

	payment, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != model.PaymentStatusAuthorized {
		return nil, domainErrors.NewStatusConflictError(paymentID, payment.Status, model.PaymentStatusAuthorized)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	defer cancel()

	err = s.provider.CancelIntent(callCtx, &provider.CancelIntentRequest{
		IntentID:       *payment.ProviderIntentID,
		Reason:         reason,
		IdempotencyKey: "cancel:" + paymentID.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("provider cancel failed: %w", err)
	}

	if err := s.payments.MarkCancelled(ctx, paymentID); err != nil {
		return nil, err
	}

	payment, err = s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, EventPaymentCancelled, payment)
	return payment, nil
}

// RefundPayment returns captured funds to the requester. A nil amount
// refunds the full payment. A partial refund flips the original row to
// refunded and appends a refund-type row carrying the partial amount; the
// original amount is never altered retroactively.
func (s *PaymentService) RefundPayment(ctx context.Context, paymentID uuid.UUID, amountCents *int64, reason string) (*model.Payment, error) {
	unlock := s.locks.Lock(paymentID)
	defer unlock()

	payment, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != model.PaymentStatusCaptured && payment.Status != model.PaymentStatusTransferred {
		return nil, domainErrors.NewStatusConflictError(paymentID, payment.Status,
			model.PaymentStatusCaptured, model.PaymentStatusTransferred)
	}

	refundCents := payment.AmountCents
	if amountCents != nil {
		refundCents = *amountCents
	}
	if refundCents <= 0 {
		return nil, domainErrors.ErrInvalidAmount
	}
	if refundCents > payment.AmountCents {
		return nil, domainErrors.ErrAmountExceedsRefund
	}

	callCtx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	defer cancel()

	result, err := s.provider.Refund(callCtx, &provider.RefundRequest{
		IntentID:       *payment.ProviderIntentID,
		AmountCents:    refundCents,
		Reason:         reason,
		IdempotencyKey: "refund:" + paymentID.String(),
	})
	if err != nil {
		s.logger.Error("provider refund failed",
			zap.String("payment_id", paymentID.String()),
			zap.Int64("refund_cents", refundCents),
			zap.Error(err))
		return nil, fmt.Errorf("provider refund failed: %w", err)
	}

	if err := s.payments.MarkRefunded(ctx, paymentID); err != nil {
		return nil, err
	}

	if refundCents < payment.AmountCents {
		now := time.Now()
		refundRow := &model.Payment{
			ID:          uuid.New(),
			RequestID:   payment.RequestID,
			CustomerID:  payment.CustomerID,
			AmountCents: refundCents,
			Currency:    payment.Currency,
			Status:      model.PaymentStatusRefunded,
			Type:        model.PaymentTypeRefund,
			Description: "partial refund",
			Metadata: model.JSONB{
				model.MetadataKeyOriginalPayment: payment.ID.String(),
				"provider_refund_id":             result.RefundID,
				"reason":                         reason,
			},
			RefundedAt: &now,
		}
		if err := s.payments.Create(ctx, refundRow); err != nil {
			// The provider refund went through and the original row is
			// already refunded; surface the bookkeeping failure loudly.
			s.logger.Error("failed to append refund row",
				zap.String("payment_id", paymentID.String()),
				zap.Error(err))
			return nil, fmt.Errorf("append refund row: %w", err)
		}
	}

	payment, err = s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment refunded",
		zap.String("payment_id", paymentID.String()),
		zap.Int64("refund_cents", refundCents),
		zap.String("refund_id", result.RefundID))
	s.notify(ctx, EventPaymentRefunded, payment)
	return payment, nil
}

// TransferToTraveler pays the traveler their share of a captured payment:
// the delivery fee only, never the item cost (the platform is not a
// reseller of the goods). Requires the traveler to have a payout account;
// this is validated before any provider call.
func (s *PaymentService) TransferToTraveler(ctx context.Context, paymentID, travelerID uuid.UUID) (*model.Payment, error) {
	unlock := s.locks.Lock(paymentID)
	defer unlock()

	payment, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != model.PaymentStatusCaptured {
		return nil, domainErrors.NewStatusConflictError(paymentID, payment.Status, model.PaymentStatusCaptured)
	}

	traveler, err := s.users.GetUser(ctx, travelerID)
	if err != nil {
		return nil, fmt.Errorf("resolve traveler: %w", err)
	}
	if !traveler.HasPayoutAccount() {
		return nil, domainErrors.ErrNoPayoutAccount
	}

	req, err := s.requests.GetDeliveryRequest(ctx, payment.RequestID)
	if err != nil {
		return nil, fmt.Errorf("resolve delivery request: %w", err)
	}

	feeCents := req.DeliveryFee.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	if feeCents <= 0 {
		return nil, domainErrors.ErrInvalidAmount
	}

	callCtx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	defer cancel()

	// Tag the transfer with the charge behind the original intent so the
	// provider books it against the captured funds.
	sourceTransaction := ""
	if intent, retrieveErr := s.provider.RetrieveIntent(callCtx, *payment.ProviderIntentID); retrieveErr == nil {
		sourceTransaction = intent.ChargeID
	}

	result, err := s.provider.Transfer(callCtx, &provider.TransferRequest{
		AmountCents:       feeCents,
		Currency:          payment.Currency,
		DestinationID:     *traveler.PayoutAccountID,
		SourceTransaction: sourceTransaction,
		Description:       "delivery fee payout",
		Metadata: map[string]string{
			"payment_id": payment.ID.String(),
			"request_id": payment.RequestID.String(),
		},
		IdempotencyKey: "transfer:" + paymentID.String(),
	})
	if err != nil {
		s.logger.Error("provider transfer failed",
			zap.String("payment_id", paymentID.String()),
			zap.String("traveler_id", travelerID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("provider transfer failed: %w", err)
	}

	if err := s.payments.MarkTransferred(ctx, paymentID); err != nil {
		return nil, err
	}

	now := time.Now()
	payoutRow := &model.Payment{
		ID:          uuid.New(),
		RequestID:   payment.RequestID,
		CustomerID:  *traveler.PayoutAccountID,
		AmountCents: feeCents,
		Currency:    payment.Currency,
		Status:      model.PaymentStatusTransferred,
		Type:        model.PaymentTypePayout,
		Description: "delivery fee payout",
		Metadata: model.JSONB{
			model.MetadataKeyOriginalPayment: payment.ID.String(),
			"provider_transfer_id":           result.TransferID,
			"traveler_id":                    travelerID.String(),
		},
		TransferredAt: &now,
	}
	if err := s.payments.Create(ctx, payoutRow); err != nil {
		s.logger.Error("failed to append payout row",
			zap.String("payment_id", paymentID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("append payout row: %w", err)
	}

	payment, err = s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment transferred to traveler",
		zap.String("payment_id", paymentID.String()),
		zap.String("traveler_id", travelerID.String()),
		zap.Int64("fee_cents", feeCents),
		zap.String("transfer_id", result.TransferID))
	s.notify(ctx, EventPaymentTransferred, payment)
	return payment, nil
}

// EnsureCustomer provisions a provider-side payer identity for a user that
// does not have one yet, and returns the customer id either way. Storing
// the id back on the user record belongs to the user service.
func (s *PaymentService) EnsureCustomer(ctx context.Context, userID uuid.UUID) (string, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("resolve user: %w", err)
	}
	if user.CustomerID != nil && *user.CustomerID != "" {
		return *user.CustomerID, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	defer cancel()

	customer, err := s.provider.CreateCustomer(callCtx, &provider.CreateCustomerRequest{
		Email: user.Email,
		Name:  user.Name,
		Metadata: map[string]string{
			"user_id": userID.String(),
		},
		IdempotencyKey: "customer:" + userID.String(),
	})
	if err != nil {
		return "", fmt.Errorf("provider customer creation failed: %w", err)
	}
	return customer.ID, nil
}

// CalculateTotalCost resolves the request and computes its cost breakdown.
func (s *PaymentService) CalculateTotalCost(ctx context.Context, requestID uuid.UUID, tip decimal.Decimal) (CostBreakdown, error) {
	req, err := s.requests.GetDeliveryRequest(ctx, requestID)
	if err != nil {
		return CostBreakdown{}, fmt.Errorf("resolve delivery request: %w", err)
	}
	return RequestCost(req, tip), nil
}

// GetPaymentByID returns one ledger row.
func (s *PaymentService) GetPaymentByID(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	return s.payments.GetByID(ctx, id)
}

// GetPaymentsByRequestID returns every ledger row of a delivery request:
// the original charge plus any refund and payout rows.
func (s *PaymentService) GetPaymentsByRequestID(ctx context.Context, requestID uuid.UUID) ([]*model.Payment, error) {
	return s.payments.GetByRequestID(ctx, requestID)
}

// GetPaymentsByCustomerID returns the ledger rows of a customer.
func (s *PaymentService) GetPaymentsByCustomerID(ctx context.Context, customerID string) ([]*model.Payment, error) {
	if customerID == "" {
		return nil, domainErrors.ErrCustomerRequired
	}
	return s.payments.GetByCustomerID(ctx, customerID)
}

// GetPaymentsByStatus returns the ledger rows in a given state.
func (s *PaymentService) GetPaymentsByStatus(ctx context.Context, status model.PaymentStatus) ([]*model.Payment, error) {
	return s.payments.GetByStatus(ctx, status)
}

func (s *PaymentService) notify(ctx context.Context, event PaymentEventName, payment *model.Payment) {
	if err := s.notifier.NotifyPaymentEvent(ctx, event, payment); err != nil {
		s.logger.Warn("payment event publish failed",
			zap.String("event", string(event)),
			zap.String("payment_id", payment.ID.String()),
			zap.Error(err))
	}
}
