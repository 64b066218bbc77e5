package db

import (
	"time"

	"github.com/uptrace/bun"
)

// Record is one named blob; the store keeps the watchlist and the channel
// cache as two rows.
type Record struct {
	bun.BaseModel `bun:"table:records"`

	Key       string `bun:",pk"`
	Data      []byte `bun:"type:bytea"`
	UpdatedAt time.Time
}
