package checker

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"stagnant-channel-notifier-bot/templates"
)

const (
	DefaultThresholdDays = 2
	DefaultWorkers       = 4
	day                  = time.Hour * 24
)

type Watchlists interface {
	All(ctx context.Context) (map[string][]string, error)
}

type Resolver interface {
	Resolve(ctx context.Context, name string) (string, error)
}

type History interface {
	LastActivity(ctx context.Context, channelId string) (time.Time, error)
}

type Messenger interface {
	SendDirectMessage(ctx context.Context, userId, text string) error
}

type Options struct {
	ThresholdDays int
	Workers       int
}

type StaleChannel struct {
	Name string
	Days int
}

// Report is what one user is told after a run.
type Report struct {
	UserId  string
	Stale   []StaleChannel
	Skipped []string
}

type Summary struct {
	Users    int
	Channels int
	Flagged  int
	Skipped  int
	Sent     int
	Failed   int
}

type Checker struct {
	watchlists Watchlists
	resolver   Resolver
	history    History
	messenger  Messenger
	threshold  int
	workers    int
	now        func() time.Time
	log        zerolog.Logger
}

func New(
	watchlists Watchlists,
	resolver Resolver,
	history History,
	messenger Messenger,
	options Options,
	log zerolog.Logger,
) *Checker {
	if options.ThresholdDays <= 0 {
		options.ThresholdDays = DefaultThresholdDays
	}
	if options.Workers <= 0 {
		options.Workers = DefaultWorkers
	}
	return &Checker{
		watchlists: watchlists,
		resolver:   resolver,
		history:    history,
		messenger:  messenger,
		threshold:  options.ThresholdDays,
		workers:    options.Workers,
		now:        time.Now,
		log:        log.With().Str("component", "checker").Logger(),
	}
}

func (c *Checker) SetClock(now func() time.Time) {
	c.now = now
}

// DaysSince counts whole days between last and now, rounding down.
func DaysSince(now, last time.Time) int {
	elapsed := now.Sub(last)
	if elapsed < 0 {
		return 0
	}
	return int(elapsed / day)
}

// Run performs one check cycle over a snapshot of every watchlist. Only a
// failure to read the watchlists aborts the run; per-channel and per-user
// failures are logged and counted.
func (c *Checker) Run(ctx context.Context) (Summary, error) {
	started := c.now()
	all, err := c.watchlists.All(ctx)
	if err != nil {
		c.log.Error().Err(err).Msg("unable to read watchlists, aborting run")
		return Summary{}, errors.Wrap(err, "unable to read watchlists")
	}
	users := make([]string, 0, len(all))
	for userId := range all {
		users = append(users, userId)
	}
	sort.Strings(users)

	var mu sync.Mutex
	summary := Summary{Users: len(users)}
	p := pool.New().WithMaxGoroutines(c.workers)
	for _, userId := range users {
		channels := all[userId]
		p.Go(func() {
			report := c.Inspect(ctx, userId, channels)
			sent, err := c.Notify(ctx, report)
			if err != nil {
				c.log.Error().Err(err).Str("user", userId).Msg("unable to send stale channel report")
			}
			mu.Lock()
			defer mu.Unlock()
			summary.Channels += len(channels)
			summary.Flagged += len(report.Stale)
			summary.Skipped += len(report.Skipped)
			if sent {
				summary.Sent++
			}
			if err != nil {
				summary.Failed++
			}
		})
	}
	p.Wait()

	c.log.Info().
		Int("users", summary.Users).
		Int("channels", summary.Channels).
		Int("flagged", summary.Flagged).
		Int("skipped", summary.Skipped).
		Int("sent", summary.Sent).
		Int("failed", summary.Failed).
		Dur("took", c.now().Sub(started)).
		Msg("check finished")
	return summary, nil
}

// Inspect checks the user's channels in watchlist order. Channels that
// cannot be resolved or whose activity cannot be read are skipped.
func (c *Checker) Inspect(ctx context.Context, userId string, channels []string) Report {
	report := Report{UserId: userId}
	for _, name := range channels {
		log := c.log.With().Str("user", userId).Str("channel", name).Logger()
		id, err := c.resolver.Resolve(ctx, name)
		if err != nil {
			log.Warn().Err(err).Msg("skipping channel, unable to resolve")
			report.Skipped = append(report.Skipped, name)
			continue
		}
		last, err := c.history.LastActivity(ctx, id)
		if err != nil {
			log.Warn().Err(err).Str("channel_id", id).Msg("skipping channel, unable to read activity")
			report.Skipped = append(report.Skipped, name)
			continue
		}
		days := DaysSince(c.now(), last)
		if days >= c.threshold {
			report.Stale = append(report.Stale, StaleChannel{Name: name, Days: days})
		}
	}
	return report
}

// Notify sends the report as a single direct message. Nothing is sent for a
// report without stale channels.
func (c *Checker) Notify(ctx context.Context, report Report) (bool, error) {
	if len(report.Stale) == 0 {
		return false, nil
	}
	err := c.messenger.SendDirectMessage(ctx, report.UserId, Format(report))
	if err != nil {
		return false, err
	}
	return true, nil
}

func Format(report Report) string {
	lines := make([]string, 0, len(report.Stale))
	for _, s := range report.Stale {
		lines = append(lines, fmt.Sprintf(templates.StaleReportItem, s.Name, s.Days))
	}
	return fmt.Sprintf(templates.StaleReport, strings.Join(lines, "\n"))
}
