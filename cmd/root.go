package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"stagnant-channel-notifier-bot/cache"
	"stagnant-channel-notifier-bot/channel"
	"stagnant-channel-notifier-bot/config"
	"stagnant-channel-notifier-bot/logger"
	"stagnant-channel-notifier-bot/slackapi"
	"stagnant-channel-notifier-bot/storage"
	"stagnant-channel-notifier-bot/watchlist"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "stagnant",
	Short:         "Reminds Slack users about channels that went quiet.",
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a config file (default ./config.{json,yaml})")
	rootCmd.AddCommand(serveCmd, checkCmd)
}

func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
	}
	return err
}

// app holds what both processes build from the configuration.
type app struct {
	config    *config.Config
	log       zerolog.Logger
	records   *storage.Records
	rule      channel.Rule
	watchlist *watchlist.Store
}

func setup(ctx context.Context) (*app, error) {
	c, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log := logger.New(c.Log)
	records, err := storage.Open(ctx, c.Storage, c.Debug, log)
	if err != nil {
		return nil, err
	}
	rule := channel.NewRule(c.Check.MaxNameLength)
	return &app{
		config:    c,
		log:       log,
		records:   records,
		rule:      rule,
		watchlist: watchlist.NewStore(records.Watchlist, rule, c.Check.MaxChannels),
	}, nil
}

func (a *app) slack() *slackapi.Client {
	return slackapi.New(a.config.Slack.BotToken, a.config.Slack.Timeout)
}

func (a *app) cache(dir cache.Directory) *cache.Cache {
	return cache.New(a.records.Cache, dir, a.config.Check.CacheTTL, a.log)
}

func (a *app) close() {
	err := a.records.Close()
	if err != nil {
		a.log.Error().Err(err).Msg("unable to close storage")
	}
}
