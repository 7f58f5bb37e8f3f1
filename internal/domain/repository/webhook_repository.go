package repository

import (
	"context"
	"encoding/json"

	"github.com/wayfarerhq/payment-service/internal/domain/model"
)

// WebhookEventRepository stores provider notifications so each event id is
// applied at most once. SaveEvent is a no-op for an already-known event id.
type WebhookEventRepository interface {
	SaveEvent(ctx context.Context, eventID, eventType string, data json.RawMessage) error
	GetEvent(ctx context.Context, eventID string) (*model.ProviderWebhookEvent, error)
	MarkProcessed(ctx context.Context, eventID string) error
	MarkFailed(ctx context.Context, eventID string, cause error) error
	GetPendingEvents(ctx context.Context, limit int) ([]*model.ProviderWebhookEvent, error)
}
