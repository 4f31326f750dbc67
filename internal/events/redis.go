package events

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"veoqueue/internal/domain"
)

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// RedisPublisher sends events over Redis pub/sub.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
}

func NewRedisPublisher(opts RedisOptions) (*RedisPublisher, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return &RedisPublisher{rdb: rdb, channel: opts.Channel}, nil
}

func (p *RedisPublisher) Publish(ctx context.Context, event domain.JobEvent) error {
	b, err := encode(event)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, p.channel, b).Err()
}

func (p *RedisPublisher) Close() error {
	return p.rdb.Close()
}
