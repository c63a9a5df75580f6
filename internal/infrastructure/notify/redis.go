// Package notify publishes payment lifecycle events for the
// notification collaborator over Redis pub/sub.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/rideloop/payments/internal/application"
	"github.com/rideloop/payments/internal/config"
)

// RedisDispatcher publishes notifications as JSON on a single channel.
// Rendering and delivery to riders and drivers happen downstream.
type RedisDispatcher struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

func NewRedisDispatcher(cfg config.RedisConfig, logger *slog.Logger) (*RedisDispatcher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisDispatcher{
		client:  client,
		channel: cfg.Channel,
		logger:  logger,
	}, nil
}

func (d *RedisDispatcher) Dispatch(ctx context.Context, n application.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	if err := d.client.Publish(ctx, d.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}

	d.logger.Debug("notification published",
		"channel", d.channel,
		"kind", n.Kind,
		"payment_intent_id", n.PaymentIntentID,
	)
	return nil
}

func (d *RedisDispatcher) Close() error {
	return d.client.Close()
}
