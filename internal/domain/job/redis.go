package job

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"voiceweave-server-go/internal/platform/config"
	"voiceweave-server-go/internal/platform/errors"
)

type redisStore struct {
	client    *redis.Client
	retention time.Duration
	prefix    string
}

// NewRedis builds a redis-backed job store. Expiry is delegated to
// redis key TTLs, refreshed on every write.
func NewRedis(cfg config.JobConfig) (Store, error) {
	const op = "job.redis.new"

	if cfg.Redis.Addr == "" {
		return nil, errors.New(errors.KindConfig, op, "redis address required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, errors.Wrap(errors.KindJob, op, "redis ping failed", err)
	}

	prefix := cfg.Redis.Prefix
	if prefix == "" {
		prefix = "job:progress:"
	}
	retention := cfg.Retention
	if retention <= 0 {
		retention = time.Hour
	}

	return &redisStore{
		client:    client,
		retention: retention,
		prefix:    prefix,
	}, nil
}

func (s *redisStore) key(id string) string {
	return s.prefix + id
}

func (s *redisStore) put(ctx context.Context, id string, rec Record) error {
	rec.UpdatedAt = time.Now()
	if rec.Complete() && rec.CompletedAt.IsZero() {
		rec.CompletedAt = rec.UpdatedAt
	}
	data, err := sonic.Marshal(rec)
	if err != nil {
		return errors.Wrap(errors.KindJob, "job.redis.put", "failed to marshal record", err)
	}
	return s.client.Set(ctx, s.key(id), data, s.retention).Err()
}

func (s *redisStore) Create(ctx context.Context, id string, rec Record) error {
	return s.put(ctx, id, rec)
}

func (s *redisStore) Update(ctx context.Context, id string, rec Record) error {
	exists, err := s.client.Exists(ctx, s.key(id)).Result()
	if err != nil {
		return errors.Wrap(errors.KindJob, "job.redis.update", "failed to check key", err)
	}
	if exists == 0 {
		return ErrNotFound
	}
	return s.put(ctx, id, rec)
}

func (s *redisStore) Get(ctx context.Context, id string) (Record, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return Record{}, ErrNotFound
		}
		return Record{}, errors.Wrap(errors.KindJob, "job.redis.get", "failed to read record", err)
	}
	var rec Record
	if err := sonic.Unmarshal(raw, &rec); err != nil {
		return Record{}, errors.Wrap(errors.KindJob, "job.redis.get", "failed to unmarshal record", err)
	}
	return rec, nil
}

func (s *redisStore) Close(context.Context) error {
	return s.client.Close()
}
