package mutex

import (
	"fmt"
	"time"

	"github.com/go-redis/redis"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis"
)

const (
	recordLockExpiration = time.Second * 30
	recordLockTries      = 64
	recordLockRetryDelay = time.Millisecond * 50
	recordKeyPattern     = "lock:record:%v"
)

type Builder struct {
	rs *redsync.Redsync
}

func NewBuilder(client *redis.Client) *Builder {
	pool := goredis.NewPool(client)
	rs := redsync.New(pool)
	return &Builder{rs: rs}
}

// Record returns the mutex serialising read-modify-write cycles on key.
// Expiry bounds how long a crashed holder can keep others out.
func (b *Builder) Record(key string) *redsync.Mutex {
	name := fmt.Sprintf(recordKeyPattern, key)
	return b.rs.NewMutex(
		name,
		redsync.WithExpiry(recordLockExpiration),
		redsync.WithTries(recordLockTries),
		redsync.WithRetryDelay(recordLockRetryDelay),
	)
}
