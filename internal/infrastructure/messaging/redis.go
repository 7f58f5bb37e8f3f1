package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/wayfarerhq/payment-service/internal/domain/model"
	"github.com/wayfarerhq/payment-service/internal/usecase"
)

// RedisClient is the publish-only surface this service needs from Redis.
// Consumers of payment events subscribe with their own clients.
type RedisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Close() error
}

type redisClient struct {
	client *redis.Client
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(addr, password string, db int) (RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &redisClient{
		client: client,
	}, nil
}

// Publish marshals the message to JSON and publishes it on the channel.
func (r *redisClient) Publish(ctx context.Context, channel string, message interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	return r.client.Publish(ctx, channel, payload).Err()
}

// Close shuts down the Redis client.
func (r *redisClient) Close() error {
	return r.client.Close()
}

// PaymentEventMessage is the wire shape published for each lifecycle event.
type PaymentEventMessage struct {
	Event       string    `json:"event"`
	PaymentID   string    `json:"payment_id"`
	RequestID   string    `json:"request_id"`
	CustomerID  string    `json:"customer_id"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	Status      string    `json:"status"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// RedisNotifier publishes payment lifecycle events to a Redis channel.
// Downstream consumers (push, email, analytics) subscribe on their own.
type RedisNotifier struct {
	client  RedisClient
	channel string
	logger  *zap.Logger
}

// NewRedisNotifier creates a notifier publishing on the given channel.
func NewRedisNotifier(client RedisClient, channel string, logger *zap.Logger) *RedisNotifier {
	return &RedisNotifier{
		client:  client,
		channel: channel,
		logger:  logger,
	}
}

// NotifyPaymentEvent publishes one lifecycle event.
func (n *RedisNotifier) NotifyPaymentEvent(ctx context.Context, event usecase.PaymentEventName, payment *model.Payment) error {
	msg := PaymentEventMessage{
		Event:       string(event),
		PaymentID:   payment.ID.String(),
		RequestID:   payment.RequestID.String(),
		CustomerID:  payment.CustomerID,
		AmountCents: payment.AmountCents,
		Currency:    payment.Currency,
		Status:      string(payment.Status),
		OccurredAt:  time.Now(),
	}

	if err := n.client.Publish(ctx, n.channel, msg); err != nil {
		n.logger.Warn("Failed to publish payment event",
			zap.String("event", string(event)),
			zap.String("payment_id", payment.ID.String()),
			zap.Error(err))
		return err
	}
	return nil
}

var _ usecase.PaymentNotifier = (*RedisNotifier)(nil)
