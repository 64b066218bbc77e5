package watchlist

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"stagnant-channel-notifier-bot/channel"
	"stagnant-channel-notifier-bot/storage"
)

const DefaultMaxChannels = 50

var ErrLimitReached = errors.New("watchlist limit reached")

type Outcome int

const (
	Added Outcome = iota
	AlreadyPresent
	Removed
	NotPresent
)

func (o Outcome) String() string {
	switch o {
	case Added:
		return "added"
	case AlreadyPresent:
		return "already present"
	case Removed:
		return "removed"
	case NotPresent:
		return "not present"
	}
	return "unknown"
}

// userEntry mirrors the on-disk layout {"<user>": {"channels": [...]}}.
type userEntry struct {
	Channels []string `json:"channels"`
}

type document map[string]*userEntry

// Store maps users to ordered sets of channel names kept in one durable
// record. Every mutation is a single locked read-modify-write of the whole
// record.
type Store struct {
	record      storage.Record
	rule        channel.Rule
	maxChannels int
}

func NewStore(record storage.Record, rule channel.Rule, maxChannels int) *Store {
	if maxChannels <= 0 {
		maxChannels = DefaultMaxChannels
	}
	return &Store{record: record, rule: rule, maxChannels: maxChannels}
}

func (s *Store) Add(ctx context.Context, userId, name string) (Outcome, error) {
	err := s.rule.Validate(name)
	if err != nil {
		return 0, err
	}
	outcome := AlreadyPresent
	err = s.record.Update(ctx, func(data []byte) ([]byte, error) {
		doc, err := decode(data)
		if err != nil {
			return nil, err
		}
		entry := doc[userId]
		if entry == nil {
			entry = &userEntry{}
			doc[userId] = entry
		}
		if contains(entry.Channels, name) {
			return data, nil
		}
		if len(entry.Channels) >= s.maxChannels {
			return nil, errors.Wrapf(ErrLimitReached, "%v channels", s.maxChannels)
		}
		entry.Channels = append(entry.Channels, name)
		outcome = Added
		return encode(doc)
	})
	if err != nil {
		return 0, err
	}
	return outcome, nil
}

func (s *Store) Remove(ctx context.Context, userId, name string) (Outcome, error) {
	outcome := NotPresent
	err := s.record.Update(ctx, func(data []byte) ([]byte, error) {
		doc, err := decode(data)
		if err != nil {
			return nil, err
		}
		entry := doc[userId]
		if entry == nil || !contains(entry.Channels, name) {
			return data, nil
		}
		channels := make([]string, 0, len(entry.Channels)-1)
		for _, c := range entry.Channels {
			if c != name {
				channels = append(channels, c)
			}
		}
		entry.Channels = channels
		outcome = Removed
		return encode(doc)
	})
	if err != nil {
		return 0, err
	}
	return outcome, nil
}

// List returns the user's channels in insertion order, empty for an unknown
// user.
func (s *Store) List(ctx context.Context, userId string) ([]string, error) {
	doc, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	entry := doc[userId]
	if entry == nil {
		return []string{}, nil
	}
	return append([]string{}, entry.Channels...), nil
}

// All returns a snapshot of every user's watchlist.
func (s *Store) All(ctx context.Context) (map[string][]string, error) {
	doc, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	all := make(map[string][]string, len(doc))
	for userId, entry := range doc {
		if entry == nil {
			continue
		}
		all[userId] = append([]string{}, entry.Channels...)
	}
	return all, nil
}

func (s *Store) load(ctx context.Context) (document, error) {
	data, err := s.record.Load(ctx)
	if err != nil {
		return nil, err
	}
	return decode(data)
}

func decode(data []byte) (document, error) {
	doc := document{}
	if data == nil {
		return doc, nil
	}
	err := json.Unmarshal(data, &doc)
	if err != nil {
		return nil, storage.Corrupted(storage.WatchlistKey, err)
	}
	if doc == nil {
		// the record held a JSON null
		return nil, storage.Corrupted(storage.WatchlistKey, errors.New("null document"))
	}
	return doc, nil
}

func encode(doc document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "unable to encode watchlist")
	}
	return data, nil
}

func contains(channels []string, name string) bool {
	for _, c := range channels {
		if c == name {
			return true
		}
	}
	return false
}
