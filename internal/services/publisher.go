package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"waitwhat-backend/internal/models"
)

// SessionChannel is the Redis pub/sub channel carrying a session's events.
func SessionChannel(sessionID uuid.UUID) string {
	return fmt.Sprintf("session_updates:%s", sessionID.String())
}

// RedisPublisher sends session events through Redis so every server
// instance can forward them to its websocket clients.
type RedisPublisher struct {
	redis *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{redis: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, sessionID uuid.UUID, msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("failed to encode %s event: %v", msg.Type, err)
		return
	}
	if err := p.redis.Publish(context.WithoutCancel(ctx), SessionChannel(sessionID), string(data)).Err(); err != nil {
		log.Printf("failed to publish %s event for session %s: %v", msg.Type, sessionID, err)
	}
}
