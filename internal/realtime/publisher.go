// Package realtime fans out chat messages to connected clients over Redis
// pub/sub. Delivery is best effort; the database row is the durable copy.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/uzbk/farmmarket/internal/models"
	"github.com/uzbk/farmmarket/internal/redisx"
)

type Publisher struct {
	rdb *redis.Client
}

func NewPublisher(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

func (p *Publisher) PublishMessage(ctx context.Context, msg *models.ChatMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	channel := fmt.Sprintf(redisx.ChannelChatRoom, msg.RoomID)
	if err := p.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// Subscribe streams messages for one room until ctx is done. The returned
// channel closes when the subscription ends.
func (p *Publisher) Subscribe(ctx context.Context, roomID string) (<-chan models.ChatMessage, error) {
	channel := fmt.Sprintf(redisx.ChannelChatRoom, roomID)
	sub := p.rdb.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe room: %w", err)
	}

	out := make(chan models.ChatMessage)
	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-sub.Channel():
				if !ok {
					return
				}
				var msg models.ChatMessage
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					continue
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
