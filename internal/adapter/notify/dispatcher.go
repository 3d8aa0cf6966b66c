package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// Channel carries withdrawal outcome events for the notification bot.
const Channel = "withdrawal_events"

// Event types published on Channel.
const (
	EventSettled  = "withdrawal.settled"
	EventRejected = "withdrawal.rejected"
)

// publisher is the subset of *redis.Client used by the dispatcher.
type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Event is the JSON payload consumed by the delivery side.
type Event struct {
	EventType  string          `json:"event_type"`
	TelegramID int64           `json:"telegram_id"`
	Amount     decimal.Decimal `json:"amount"`
	TxHash     string          `json:"tx_hash,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// RedisDispatcher publishes withdrawal outcomes to Redis pub/sub.
type RedisDispatcher struct {
	rdb    publisher
	logger *slog.Logger
	now    func() time.Time
}

// NewRedisDispatcher creates a dispatcher on top of a redis client.
func NewRedisDispatcher(rdb publisher, logger *slog.Logger) *RedisDispatcher {
	return &RedisDispatcher{rdb: rdb, logger: logger, now: time.Now}
}

// NotifySettled announces a paid withdrawal with its transaction hash.
func (d *RedisDispatcher) NotifySettled(ctx context.Context, telegramID int64, amount decimal.Decimal, txHash string) error {
	return d.publish(ctx, Event{EventType: EventSettled, TelegramID: telegramID, Amount: amount, TxHash: txHash})
}

// NotifyRejected announces a rejected withdrawal and the refunded amount.
func (d *RedisDispatcher) NotifyRejected(ctx context.Context, telegramID int64, amount decimal.Decimal) error {
	return d.publish(ctx, Event{EventType: EventRejected, TelegramID: telegramID, Amount: amount})
}

func (d *RedisDispatcher) publish(ctx context.Context, event Event) error {
	event.Timestamp = d.now().UTC()

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := d.rdb.Publish(ctx, Channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", event.EventType, err)
	}

	d.logger.DebugContext(ctx, "withdrawal event published",
		slog.String("event_type", event.EventType),
		slog.Int64("telegram_id", event.TelegramID),
	)
	return nil
}
