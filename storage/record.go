package storage

import (
	"context"

	"github.com/pkg/errors"
)

const (
	WatchlistKey = "user_data"
	CacheKey     = "channel_cache"
)

var (
	ErrCorrupted = errors.New("storage record is corrupted")
	ErrLocked    = errors.New("storage record is locked")
)

// Record is one durable blob shared between processes.
//
// Load returns the current contents, nil if the record was never written.
// Update runs fn inside an exclusive critical section over the whole record
// and persists what it returns. Nothing is written when fn fails or returns
// the bytes it was given.
type Record interface {
	Load(ctx context.Context) ([]byte, error)
	Update(ctx context.Context, fn func(data []byte) ([]byte, error)) error
}

// Corrupted marks err as a decoding failure of the named record.
func Corrupted(name string, err error) error {
	return errors.Wrapf(ErrCorrupted, "%v: %v", name, err)
}
