// Package notifier consumes order events and keeps the hot order-status
// cache current. It is where push notifications would hang off; today it
// records the latest status the API folds into its status polls.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/uzbk/farmmarket/internal/events"
	kafkax "github.com/uzbk/farmmarket/internal/kafka"
	"github.com/uzbk/farmmarket/internal/redisx"
)

type Service struct {
	Redis       *redis.Client
	ServiceName string
}

type statusEntry struct {
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HandleOrderPlaced seeds the status cache when an order is created.
func (s *Service) HandleOrderPlaced(ctx context.Context, m kafkago.Message) error {
	var env events.Envelope
	if err := kafkax.UnmarshalEnvelope(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != events.EventOrderPlaced {
		return nil
	}

	first, err := s.markProcessed(ctx, env.EventID)
	if err != nil {
		return err
	}
	if !first {
		return nil
	}

	p, err := kafkax.UnwrapPayload[events.OrderPlacedPayload](env.Payload)
	if err != nil {
		return err
	}

	log.Printf("order placed: order=%s listing=%s qty=%d remaining=%d",
		p.OrderID, p.ListingID, p.Quantity, p.RemainingStock)
	return s.cacheStatus(ctx, p.OrderID, "PAYMENT_COMPLETED", env.OccurredAt)
}

// HandleStatusChanged refreshes the cache as the order moves forward.
func (s *Service) HandleStatusChanged(ctx context.Context, m kafkago.Message) error {
	var env events.Envelope
	if err := kafkax.UnmarshalEnvelope(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != events.EventOrderStatusChanged {
		return nil
	}

	first, err := s.markProcessed(ctx, env.EventID)
	if err != nil {
		return err
	}
	if !first {
		return nil
	}

	p, err := kafkax.UnwrapPayload[events.OrderStatusChangedPayload](env.Payload)
	if err != nil {
		return err
	}

	log.Printf("order status changed: order=%s %s -> %s", p.OrderID, p.FromStatus, p.ToStatus)
	return s.cacheStatus(ctx, p.OrderID, p.ToStatus, env.OccurredAt)
}

func (s *Service) markProcessed(ctx context.Context, eventID string) (bool, error) {
	key := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, eventID)
	first, err := redisx.MarkOnce(ctx, s.Redis, key, redisx.TTLDedup)
	if err != nil {
		return false, fmt.Errorf("dedup check: %w", err)
	}
	return first, nil
}

// nextCacheEntry decides whether an event should replace the cached value.
// The two order topics are consumed independently, so partition ordering
// does not hold across them; an event older than what is cached never wins.
func nextCacheEntry(existing []byte, status string, at time.Time) ([]byte, bool) {
	if len(existing) > 0 {
		var cur statusEntry
		if err := json.Unmarshal(existing, &cur); err == nil && cur.UpdatedAt.After(at) {
			return nil, false
		}
	}
	entry, err := json.Marshal(statusEntry{Status: status, UpdatedAt: at})
	if err != nil {
		return nil, false
	}
	return entry, true
}

func (s *Service) cacheStatus(ctx context.Context, orderID, status string, at time.Time) error {
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)

	existing, err := s.Redis.Get(ctx, key).Bytes()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("read status cache: %w", err)
	}
	entry, ok := nextCacheEntry(existing, status, at)
	if !ok {
		return nil
	}
	if err := s.Redis.Set(ctx, key, entry, redisx.TTLStatusCache).Err(); err != nil {
		return fmt.Errorf("cache status: %w", err)
	}
	return nil
}

// CachedStatus returns the cached status for an order, or "" on miss.
func CachedStatus(ctx context.Context, rdb *redis.Client, orderID string) (string, error) {
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	raw, err := rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read status cache: %w", err)
	}
	var entry statusEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return "", fmt.Errorf("decode status cache: %w", err)
	}
	return entry.Status, nil
}
