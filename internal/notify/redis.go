package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lazypower/companion/internal/persona"
)

// recentLimit caps the per-user list of recently published messages.
const recentLimit = 100

// RedisConfig holds configuration for the Redis connection.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string // prefix; the user ID is appended
}

// Event is the payload published for each proactive message.
type Event struct {
	UserID  string                   `json:"user_id"`
	Message persona.ProactiveMessage `json:"message"`
}

// RedisPublisher publishes proactive messages to a per-user channel and
// keeps a short per-user list of recent ones.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
}

// NewRedisPublisher connects to Redis and verifies the connection.
func NewRedisPublisher(cfg RedisConfig) (*RedisPublisher, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	channel := cfg.Channel
	if channel == "" {
		channel = "companion:proactive"
	}
	return &RedisPublisher{rdb: rdb, channel: channel}, nil
}

// Channel returns the pub/sub channel for userID.
func (p *RedisPublisher) Channel(userID string) string {
	return p.channel + ":" + userID
}

func (p *RedisPublisher) recentKey(userID string) string {
	return p.Channel(userID) + ":recent"
}

// Publish sends each message to the user's channel and records it in the
// user's recent list.
func (p *RedisPublisher) Publish(ctx context.Context, userID string, msgs []persona.ProactiveMessage) error {
	pipe := p.rdb.Pipeline()
	for _, m := range msgs {
		payload, err := json.Marshal(Event{UserID: userID, Message: m})
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		pipe.Publish(ctx, p.Channel(userID), payload)
		pipe.RPush(ctx, p.recentKey(userID), payload)
	}
	pipe.LTrim(ctx, p.recentKey(userID), -recentLimit, -1)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish to %s: %w", p.Channel(userID), err)
	}
	return nil
}

// Recent returns up to the last recentLimit published events for userID,
// oldest first.
func (p *RedisPublisher) Recent(ctx context.Context, userID string) ([]Event, error) {
	raw, err := p.rdb.LRange(ctx, p.recentKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange %s: %w", p.recentKey(userID), err)
	}
	events := make([]Event, 0, len(raw))
	for _, r := range raw {
		var ev Event
		if err := json.Unmarshal([]byte(r), &ev); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// Ping checks if Redis is reachable.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (p *RedisPublisher) Close() error {
	return p.rdb.Close()
}
