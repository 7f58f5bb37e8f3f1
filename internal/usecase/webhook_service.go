package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	domainErrors "github.com/wayfarerhq/payment-service/internal/domain/errors"
	"github.com/wayfarerhq/payment-service/internal/domain/model"
	"github.com/wayfarerhq/payment-service/internal/domain/provider"
	"github.com/wayfarerhq/payment-service/internal/domain/repository"
)

// WebhookService applies asynchronous provider notifications to the
// ledger. Signatures are verified through the Provider Port; every event
// id is recorded and applied at most once.
type WebhookService struct {
	payments repository.PaymentRepository
	events   repository.WebhookEventRepository
	provider provider.PaymentProvider
	secret   string
	logger   *zap.Logger
}

// NewWebhookService creates a webhook processor.
func NewWebhookService(
	payments repository.PaymentRepository,
	events repository.WebhookEventRepository,
	paymentProvider provider.PaymentProvider,
	secret string,
	logger *zap.Logger,
) *WebhookService {
	return &WebhookService{
		payments: payments,
		events:   events,
		provider: paymentProvider,
		secret:   secret,
		logger:   logger,
	}
}

// HandleProviderEvent verifies, records and applies one notification.
// Replayed deliveries of an already-completed event id return nil without
// touching the ledger.
func (s *WebhookService) HandleProviderEvent(ctx context.Context, payload []byte, signature string) error {
	event, err := s.provider.VerifyWebhook(payload, signature, s.secret)
	if err != nil {
		s.logger.Warn("webhook signature verification failed", zap.Error(err))
		return fmt.Errorf("verify webhook: %w", err)
	}

	existing, err := s.events.GetEvent(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("lookup webhook event %s: %w", event.EventID, err)
	}
	if existing != nil && existing.Status == model.WebhookStatusCompleted {
		s.logger.Debug("webhook event already processed",
			zap.String("event_id", event.EventID),
			zap.String("event_type", string(event.EventType)))
		return nil
	}

	if err := s.events.SaveEvent(ctx, event.EventID, string(event.EventType), json.RawMessage(payload)); err != nil {
		return fmt.Errorf("record webhook event %s: %w", event.EventID, err)
	}

	if err := s.applyEvent(ctx, event); err != nil {
		if markErr := s.events.MarkFailed(ctx, event.EventID, err); markErr != nil {
			s.logger.Error("failed to mark webhook event as failed",
				zap.String("event_id", event.EventID),
				zap.Error(markErr))
		}
		return err
	}

	if err := s.events.MarkProcessed(ctx, event.EventID); err != nil {
		return fmt.Errorf("mark webhook event processed: %w", err)
	}

	s.logger.Info("webhook event applied",
		zap.String("event_id", event.EventID),
		zap.String("event_type", string(event.EventType)))
	return nil
}

// applyEvent advances the referenced payment. A status conflict means the
// transition was already applied through another path (an engine call or
// an earlier delivery) and counts as success.
func (s *WebhookService) applyEvent(ctx context.Context, event *provider.WebhookEvent) error {
	if event.IntentID == "" {
		s.logger.Debug("webhook event carries no intent",
			zap.String("event_id", event.EventID),
			zap.String("event_type", string(event.EventType)))
		return nil
	}

	payment, err := s.payments.GetByProviderIntentID(ctx, event.IntentID)
	if errors.Is(err, domainErrors.ErrPaymentNotFound) {
		// No ledger row for this intent: the event belongs to another
		// system sharing the provider account. Acknowledge it so the
		// provider stops redelivering; the recorded event remains
		// available for inspection.
		s.logger.Warn("webhook event references an unknown intent",
			zap.String("event_id", event.EventID),
			zap.String("intent_id", event.IntentID),
			zap.String("event_type", string(event.EventType)))
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup payment for intent %s: %w", event.IntentID, err)
	}

	switch event.EventType {
	case provider.EventIntentAuthorized:
		err = s.payments.MarkAuthorized(ctx, payment.ID)
	case provider.EventIntentCaptured:
		err = s.payments.MarkCaptured(ctx, payment.ID)
	case provider.EventIntentCancelled:
		err = s.payments.MarkCancelled(ctx, payment.ID)
	case provider.EventIntentFailed:
		reason := event.Reason
		if reason == "" {
			reason = "provider reported failure"
		}
		err = s.payments.MarkFailed(ctx, payment.ID, reason)
	case provider.EventChargeRefunded:
		err = s.payments.MarkRefunded(ctx, payment.ID)
	default:
		s.logger.Debug("ignoring webhook event type",
			zap.String("event_type", string(event.EventType)))
		return nil
	}

	if err != nil && domainErrors.IsStatusConflict(err) {
		s.logger.Debug("webhook transition already applied",
			zap.String("payment_id", payment.ID.String()),
			zap.String("event_type", string(event.EventType)))
		return nil
	}
	return err
}
