package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

type publishedMessage struct {
	channel string
	payload []byte
}

type publisherStub struct {
	messages []publishedMessage
	err      error
}

func (p *publisherStub) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	if p.err != nil {
		return redis.NewIntResult(0, p.err)
	}
	p.messages = append(p.messages, publishedMessage{channel: channel, payload: message.([]byte)})
	return redis.NewIntResult(1, nil)
}

func newTestDispatcher(pub publisher) *RedisDispatcher {
	d := NewRedisDispatcher(pub, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	d.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return d
}

func TestNotifySettledPublishesEvent(t *testing.T) {
	pub := &publisherStub{}
	d := newTestDispatcher(pub)

	if err := d.NotifySettled(context.Background(), 4242, decimal.RequireFromString("198"), "0xabc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.messages) != 1 || pub.messages[0].channel != Channel {
		t.Fatalf("unexpected messages: %+v", pub.messages)
	}

	var event Event
	if err := json.Unmarshal(pub.messages[0].payload, &event); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if event.EventType != EventSettled || event.TelegramID != 4242 || event.TxHash != "0xabc" {
		t.Fatalf("unexpected event: %+v", event)
	}
	if !event.Amount.Equal(decimal.NewFromInt(198)) {
		t.Fatalf("unexpected amount %s", event.Amount)
	}
}

func TestNotifyRejectedPublishesEvent(t *testing.T) {
	pub := &publisherStub{}
	d := newTestDispatcher(pub)

	if err := d.NotifyRejected(context.Background(), 7, decimal.RequireFromString("100")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(pub.messages[0].payload, &raw); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if raw["event_type"] != EventRejected || raw["amount"] != "100" {
		t.Fatalf("unexpected payload: %v", raw)
	}
	if _, ok := raw["tx_hash"]; ok {
		t.Fatal("rejected event must not carry a tx hash")
	}
	if raw["timestamp"] != "2026-03-01T12:00:00Z" {
		t.Fatalf("unexpected timestamp %v", raw["timestamp"])
	}
}

func TestPublishError(t *testing.T) {
	d := newTestDispatcher(&publisherStub{err: errors.New("connection refused")})

	if err := d.NotifyRejected(context.Background(), 7, decimal.NewFromInt(1)); err == nil {
		t.Fatal("expected publish error")
	}
}
