// Package notify publishes room activity to the external chat channel.
// The channel is best-effort by contract: room presence and signaling
// must never block or fail because this collaborator is down, so every
// publish error is logged, counted and swallowed.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Aklilu27/audiorooms/pkg/metrics"

	"github.com/redis/go-redis/v9"
)

const publishTimeout = 2 * time.Second

type ChannelMessage struct {
	RoomID   string    `json:"roomId"`
	Kind     string    `json:"kind"` // system|user
	UserID   string    `json:"userId,omitempty"`
	Username string    `json:"username,omitempty"`
	Text     string    `json:"text"`
	SentAt   time.Time `json:"sentAt"`
}

type Publisher struct {
	rdb *redis.Client
}

// NewPublisher connects to redis and verifies connectivity.
func NewPublisher(ctx context.Context, addr string, db int) (*Publisher, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Publisher{rdb: rdb}, nil
}

// SystemMessage announces room activity ("alice joined the room").
func (p *Publisher) SystemMessage(ctx context.Context, roomID, text string) {
	p.publish(ctx, ChannelMessage{
		RoomID: roomID,
		Kind:   "system",
		Text:   text,
		SentAt: time.Now(),
	})
}

// UserMessage forwards a chat message from a participant.
func (p *Publisher) UserMessage(ctx context.Context, roomID, userID, username, text string) {
	p.publish(ctx, ChannelMessage{
		RoomID:   roomID,
		Kind:     "user",
		UserID:   userID,
		Username: username,
		Text:     text,
		SentAt:   time.Now(),
	})
}

func (p *Publisher) publish(ctx context.Context, m ChannelMessage) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	raw, _ := json.Marshal(m)
	if err := p.rdb.Publish(ctx, channel(m.RoomID), raw).Err(); err != nil {
		metrics.NotifyFailures.Inc()
		slog.Warn("notify publish failed", "room", m.RoomID, "kind", m.Kind, "err", err)
	}
}

func (p *Publisher) Close() {
	_ = p.rdb.Close()
}

func channel(roomID string) string { return "room:" + roomID }
