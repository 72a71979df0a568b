package repository

import (
	"context"
	"fmt"

	"github.com/sense-app/sense-ai-chat/config"
	"github.com/sense-app/sense-ai-chat/repository/redis_repository"
)

// TurnEvent is one streamed event (annotation, data payload or text
// chunk) cached for replay after the live stream has ended.
type TurnEvent = redis_repository.TurnEvent

// EventRepository caches the events of a chat's most recent turns so a
// reconnecting client can replay them.
type EventRepository interface {
	AppendTurnEvent(ctx context.Context, chatID string, event TurnEvent) error
	ListTurnEvents(ctx context.Context, chatID string) ([]TurnEvent, error)
}

type RepoType string

const (
	RepoTypeRedis RepoType = "redis"
)

func NewEventRepository(ctx context.Context, t RepoType, cfg config.RedisConfig) (EventRepository, error) {
	switch t {
	case RepoTypeRedis:
		c, err := redis_repository.Conn(ctx, cfg.Host, cfg.Port, cfg.Password, cfg.DB, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		return redis_repository.NewRedisEventRepository(c), nil
	}
	return nil, fmt.Errorf("invalid repository type: %s", t)
}
