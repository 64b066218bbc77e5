package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"stagnant-channel-notifier-bot/storage"
)

const DefaultTTL = time.Hour * 24

var (
	ErrNotFound = errors.New("channel not found")
)

// Directory is the live source of channel ids. ListChannels returns every
// channel name the platform knows with its id; an error means the call
// failed.
type Directory interface {
	ListChannels(ctx context.Context) (map[string]string, error)
}

type Entry struct {
	Id        string    `json:"id"`
	FetchedAt time.Time `json:"fetched_at"`
}

type document struct {
	Channels map[string]Entry `json:"channels"`
}

// Cache resolves channel names to ids, keeping what it learns in a durable
// record for ttl. The record is disposable: a broken one is logged and
// rebuilt. A miss refreshes the whole mapping from one listing, and
// concurrent misses share that listing.
type Cache struct {
	record storage.Record
	dir    Directory
	ttl    time.Duration
	now    func() time.Time
	log    zerolog.Logger

	mu      sync.Mutex
	scans   uint64
	listing map[string]string
	scanErr error
}

func New(record storage.Record, dir Directory, ttl time.Duration, log zerolog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		record: record,
		dir:    dir,
		ttl:    ttl,
		now:    time.Now,
		log:    log.With().Str("component", "cache").Logger(),
	}
}

// SetClock replaces the time source.
func (c *Cache) SetClock(now func() time.Time) {
	c.now = now
}

func (c *Cache) fresh(e Entry) bool {
	return c.now().Sub(e.FetchedAt) < c.ttl
}

func (c *Cache) Resolve(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	seen := c.scans
	c.mu.Unlock()

	cached, ok := c.lookup(ctx, name)
	if ok && c.fresh(cached) {
		return cached.Id, nil
	}
	listing, err := c.refresh(ctx, seen)
	if err != nil {
		if ok {
			c.log.Warn().Err(err).Str("channel", name).Time("fetched_at", cached.FetchedAt).
				Msg("live lookup failed, using stale cache entry")
			return cached.Id, nil
		}
		return "", errors.Wrapf(ErrNotFound, "%v: lookup failed: %v", name, err)
	}
	id, found := listing[name]
	if !found {
		return "", errors.Wrap(ErrNotFound, name)
	}
	return id, nil
}

// refresh lists every channel once and saves the whole mapping. A caller
// that started before another refresh finished gets that refresh's result
// instead of listing again.
func (c *Cache) refresh(ctx context.Context, seen uint64) (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.scans != seen {
		return c.listing, c.scanErr
	}
	listing, err := c.dir.ListChannels(ctx)
	c.scans++
	c.listing, c.scanErr = listing, err
	if err != nil {
		return nil, err
	}
	c.store(ctx, listing, c.now())
	return listing, nil
}

func (c *Cache) lookup(ctx context.Context, name string) (Entry, bool) {
	data, err := c.record.Load(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("unable to load channel cache")
		return Entry{}, false
	}
	doc, err := decode(data)
	if err != nil {
		c.log.Warn().Err(err).Msg("ignoring unreadable channel cache")
		return Entry{}, false
	}
	e, ok := doc.Channels[name]
	return e, ok
}

// store replaces the saved mapping with listing, every entry fetched at.
func (c *Cache) store(ctx context.Context, listing map[string]string, at time.Time) {
	doc := document{Channels: make(map[string]Entry, len(listing))}
	for name, id := range listing {
		doc.Channels[name] = Entry{Id: id, FetchedAt: at}
	}
	err := c.record.Update(ctx, func([]byte) ([]byte, error) {
		return json.MarshalIndent(doc, "", "  ")
	})
	if err != nil {
		c.log.Warn().Err(err).Int("channels", len(listing)).Msg("unable to save channel cache")
	}
}

func decode(data []byte) (document, error) {
	doc := document{}
	if data != nil {
		err := json.Unmarshal(data, &doc)
		if err != nil {
			return document{}, storage.Corrupted(storage.CacheKey, err)
		}
	}
	if doc.Channels == nil {
		doc.Channels = map[string]Entry{}
	}
	return doc, nil
}
