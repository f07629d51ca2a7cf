package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultRedisKey = "kanban:rule-tasks"
	popTimeout      = time.Second
)

// RedisOptions configures the Redis list backend
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// RedisQueue keeps tasks in a Redis list: LPUSH to enqueue, BRPOP to consume.
// Several service instances can share one list.
type RedisQueue struct {
	client *redis.Client
	key    string
	logger *zap.Logger
}

// NewRedisQueue connects and pings the server, waiting for it to come up
func NewRedisQueue(ctx context.Context, opts RedisOptions, logger *zap.Logger) (*RedisQueue, error) {
	if opts.Addr == "" {
		return nil, errors.New("redis address is required for the redis queue backend")
	}
	var client *redis.Client
	if parsed, err := redis.ParseURL(opts.Addr); err == nil {
		client = redis.NewClient(parsed)
	} else {
		client = redis.NewClient(&redis.Options{Addr: opts.Addr, Password: opts.Password, DB: opts.DB})
	}
	return newRedisQueue(ctx, client, opts.Key, logger)
}

func newRedisQueue(ctx context.Context, client *redis.Client, key string, logger *zap.Logger) (*RedisQueue, error) {
	if key == "" {
		key = defaultRedisKey
	}
	var err error
	for i := 0; i < 10; i++ {
		if err = client.Ping(ctx).Err(); err == nil {
			break
		}
		logger.Warn("redis is not ready, retrying", zap.Int("attempt", i+1), zap.Error(err))
		select {
		case <-ctx.Done():
			_ = client.Close()
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Info("redis queue connected", zap.String("key", key))
	return &RedisQueue{client: client, key: key, logger: logger}, nil
}

func (q *RedisQueue) Push(ctx context.Context, t Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	if err := q.client.LPush(ctx, q.key, data).Err(); err != nil {
		if errors.Is(err, redis.ErrClosed) {
			return ErrClosed
		}
		return fmt.Errorf("failed to push task: %w", err)
	}
	return nil
}

func (q *RedisQueue) Pop(ctx context.Context) (Task, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Task{}, err
		}
		res, err := q.client.BRPop(ctx, popTimeout, q.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.ErrClosed) {
				return Task{}, ErrClosed
			}
			if ctx.Err() != nil {
				return Task{}, ctx.Err()
			}
			return Task{}, fmt.Errorf("failed to pop task: %w", err)
		}
		// res is [key, value]
		var t Task
		if err := json.Unmarshal([]byte(res[1]), &t); err != nil {
			q.logger.Error("dropping malformed task", zap.String("payload", res[1]), zap.Error(err))
			continue
		}
		return t, nil
	}
}

func (q *RedisQueue) Len(ctx context.Context) (int, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	return int(n), err
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
