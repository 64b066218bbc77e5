package storage

import (
	"bytes"
	"context"

	"github.com/go-redis/redis"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"stagnant-channel-notifier-bot/mutex"
)

// RedisRecord keeps a record under a single redis key. Updates hold a
// redsync mutex for the key.
type RedisRecord struct {
	client *redis.Client
	mb     *mutex.Builder
	key    string
	log    zerolog.Logger
}

func NewRedisRecord(client *redis.Client, mb *mutex.Builder, key string, log zerolog.Logger) *RedisRecord {
	return &RedisRecord{client: client, mb: mb, key: key, log: log}
}

func (r *RedisRecord) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.get()
}

func (r *RedisRecord) Update(ctx context.Context, fn func(data []byte) ([]byte, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	lock := r.mb.Record(r.key)
	err := lock.Lock()
	if err != nil {
		return errors.Wrapf(ErrLocked, "%v: %v", r.key, err)
	}
	defer func() {
		_, err := lock.Unlock()
		if err != nil {
			r.log.Error().Err(err).Str("key", r.key).Msg("unable to release record lock")
		}
	}()
	current, err := r.get()
	if err != nil {
		return err
	}
	updated, err := fn(current)
	if err != nil {
		return err
	}
	if bytes.Equal(current, updated) {
		return nil
	}
	err = r.client.Set(r.key, updated, 0).Err()
	if err != nil {
		return errors.Wrapf(err, "unable to write redis key %v", r.key)
	}
	return nil
}

func (r *RedisRecord) get() ([]byte, error) {
	data, err := r.client.Get(r.key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read redis key %v", r.key)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return data, nil
}
