package redis_repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	eventKeyPrefix = "chat:events:"
	// maxEvents caps the replay window per chat; older events fall off.
	maxEvents = 512
	eventTTL  = 24 * time.Hour
)

// TurnEvent is one streamed event cached for replay.
type TurnEvent struct {
	TurnID  string          `json:"turnId"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	At      time.Time       `json:"at"`
}

type redisEventRepository struct {
	client *redis.Client
}

func NewRedisEventRepository(client *redis.Client) *redisEventRepository {
	return &redisEventRepository{client: client}
}

func (r *redisEventRepository) AppendTurnEvent(ctx context.Context, chatID string, event TurnEvent) error {
	key := eventKeyPrefix + chatID

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, -maxEvents, -1)
	pipe.Expire(ctx, key, eventTTL)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *redisEventRepository) ListTurnEvents(ctx context.Context, chatID string) ([]TurnEvent, error) {
	key := eventKeyPrefix + chatID

	vals, err := r.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	events := make([]TurnEvent, 0, len(vals))
	for _, v := range vals {
		var e TurnEvent
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}
