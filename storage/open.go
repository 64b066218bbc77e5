package storage

import (
	"context"
	"path/filepath"

	"github.com/go-redis/redis"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"stagnant-channel-notifier-bot/config"
	"stagnant-channel-notifier-bot/db"
	"stagnant-channel-notifier-bot/mutex"
)

const fileExtension = ".json"

// Records is the pair of durable records shared by the command service and
// the checker.
type Records struct {
	Backend   string
	Watchlist Record
	Cache     Record
	close     func() error
}

func (r *Records) Close() error {
	if r.close == nil {
		return nil
	}
	return r.close()
}

func Open(ctx context.Context, c config.StorageConfig, debug bool, log zerolog.Logger) (*Records, error) {
	switch c.Backend {
	case config.BackendFile:
		return openFiles(c.Dir)
	case config.BackendRedis:
		return openRedis(c.RedisURL, log)
	case config.BackendPostgres:
		return openPostgres(ctx, c.PostgresDSN, debug)
	}
	return nil, errors.Errorf("unknown storage backend %q", c.Backend)
}

func openFiles(dir string) (*Records, error) {
	watchlist, err := NewFileRecord(filepath.Join(dir, WatchlistKey+fileExtension))
	if err != nil {
		return nil, err
	}
	cache, err := NewFileRecord(filepath.Join(dir, CacheKey+fileExtension))
	if err != nil {
		return nil, err
	}
	return &Records{Backend: config.BackendFile, Watchlist: watchlist, Cache: cache}, nil
}

func openRedis(url string, log zerolog.Logger) (*Records, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "unable to parse redis url")
	}
	client := redis.NewClient(options)
	err = client.Ping().Err()
	if err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "unable to reach redis")
	}
	mb := mutex.NewBuilder(client)
	return &Records{
		Backend:   config.BackendRedis,
		Watchlist: NewRedisRecord(client, mb, WatchlistKey, log),
		Cache:     NewRedisRecord(client, mb, CacheKey, log),
		close:     client.Close,
	}, nil
}

func openPostgres(ctx context.Context, dsn string, debug bool) (*Records, error) {
	database := db.New(dsn)
	if debug {
		database.EnableDebug()
	}
	err := database.Init(ctx)
	if err != nil {
		_ = database.Close()
		return nil, err
	}
	return &Records{
		Backend:   config.BackendPostgres,
		Watchlist: database.Record(WatchlistKey),
		Cache:     database.Record(CacheKey),
		close:     database.Close,
	}, nil
}
