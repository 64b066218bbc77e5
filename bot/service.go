package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"stagnant-channel-notifier-bot/channel"
	"stagnant-channel-notifier-bot/templates"
	"stagnant-channel-notifier-bot/watchlist"
)

const (
	CommandWatch   = "/watch"
	CommandUnwatch = "/unwatch"
	CommandList    = "/list"
)

type Watchlist interface {
	Add(ctx context.Context, userId, name string) (watchlist.Outcome, error)
	Remove(ctx context.Context, userId, name string) (watchlist.Outcome, error)
	List(ctx context.Context, userId string) ([]string, error)
}

// Command is one slash command invocation.
type Command struct {
	Name   string
	UserId string
	Text   string
}

// Service turns commands into watchlist changes and a reply text. Every
// command gets a reply, failures included.
type Service struct {
	watchlist   Watchlist
	rule        channel.Rule
	maxChannels int
	log         zerolog.Logger
}

func NewService(w Watchlist, rule channel.Rule, maxChannels int, log zerolog.Logger) *Service {
	return &Service{
		watchlist:   w,
		rule:        rule,
		maxChannels: maxChannels,
		log:         log.With().Str("component", "commands").Logger(),
	}
}

func (s *Service) Handle(ctx context.Context, cmd Command) string {
	s.log.Info().Str("command", cmd.Name).Str("user", cmd.UserId).Str("text", cmd.Text).Msg("command received")
	switch cmd.Name {
	case CommandWatch:
		return s.Watch(ctx, cmd.UserId, cmd.Text)
	case CommandUnwatch:
		return s.Unwatch(ctx, cmd.UserId, cmd.Text)
	case CommandList:
		return s.List(ctx, cmd.UserId)
	}
	return fmt.Sprintf(templates.UnknownCommand, cmd.Name)
}

func (s *Service) Watch(ctx context.Context, userId, text string) string {
	name := channel.Normalize(text)
	if len(name) == 0 {
		return templates.WatchUsage
	}
	if !s.rule.Valid(name) {
		return s.invalidName(name)
	}
	outcome, err := s.watchlist.Add(ctx, userId, name)
	if err != nil && errors.Is(err, watchlist.ErrLimitReached) {
		return fmt.Sprintf(templates.LimitReached, s.maxChannels)
	}
	if err != nil && errors.Is(err, channel.ErrInvalidName) {
		return s.invalidName(name)
	}
	if err != nil {
		return s.unexpected(err, CommandWatch, userId)
	}
	if outcome == watchlist.AlreadyPresent {
		return fmt.Sprintf(templates.AlreadyWatched, name)
	}
	s.log.Info().Str("user", userId).Str("channel", name).Msg("channel added to watchlist")
	return fmt.Sprintf(templates.AddSuccess, name)
}

func (s *Service) Unwatch(ctx context.Context, userId, text string) string {
	name := channel.Normalize(text)
	if len(name) == 0 {
		return templates.UnwatchUsage
	}
	if !s.rule.Valid(name) {
		return s.invalidName(name)
	}
	outcome, err := s.watchlist.Remove(ctx, userId, name)
	if err != nil {
		return s.unexpected(err, CommandUnwatch, userId)
	}
	if outcome == watchlist.NotPresent {
		return fmt.Sprintf(templates.NotWatched, name)
	}
	s.log.Info().Str("user", userId).Str("channel", name).Msg("channel removed from watchlist")
	return fmt.Sprintf(templates.RemoveSuccess, name)
}

func (s *Service) List(ctx context.Context, userId string) string {
	channels, err := s.watchlist.List(ctx, userId)
	if err != nil {
		return s.unexpected(err, CommandList, userId)
	}
	if len(channels) == 0 {
		return templates.NoChannels
	}
	items := make([]string, 0, len(channels))
	for _, c := range channels {
		items = append(items, fmt.Sprintf(templates.ChannelListItem, c))
	}
	return fmt.Sprintf(templates.ChannelList, strings.Join(items, "\n"))
}

func (s *Service) invalidName(name string) string {
	return fmt.Sprintf(templates.InvalidName, name, s.rule.MaxLength)
}

func (s *Service) unexpected(err error, command, userId string) string {
	s.log.Error().Err(err).Str("command", command).Str("user", userId).Msg("command failed")
	return templates.UnexpectedError
}
