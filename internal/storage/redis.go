package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	logx "tubebot/pkg/logx"
)

// redisStore keeps the seen set in one redis SET.
type redisStore struct {
	client *redis.Client
	key    string
	log    logx.Logger
}

func openRedis(cfg Config, log logx.Logger) (SeenStore, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, errors.New("storage.url is required for redis driver")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	key := strings.TrimSpace(cfg.Key)
	if key == "" {
		key = defaultRedisKey
	}
	log.Info("redis store ready", logx.String("addr", opts.Addr), logx.String("key", key))
	return &redisStore{client: client, key: key, log: log}, nil
}

func (s *redisStore) Exists(ctx context.Context, id string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, s.key, id).Result()
	if err != nil {
		return false, wrap("exists", id, err)
	}
	return ok, nil
}

func (s *redisStore) Insert(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return wrap("insert", id, ErrEmptyID)
	}
	return wrap("insert", id, s.client.SAdd(ctx, s.key, id).Err())
}

func (s *redisStore) Count(ctx context.Context) (int64, error) {
	n, err := s.client.SCard(ctx, s.key).Result()
	if err != nil {
		return 0, wrap("count", "", err)
	}
	return n, nil
}

func (s *redisStore) Close() error { return s.client.Close() }
