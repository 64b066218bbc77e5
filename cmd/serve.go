package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"stagnant-channel-notifier-bot/bot"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the slash command service.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := setup(ctx)
		if err != nil {
			return err
		}
		defer a.close()
		err = a.config.RequireSlack(true)
		if err != nil {
			return err
		}

		service := bot.NewService(a.watchlist, a.rule, a.config.Check.MaxChannels, a.log)
		handler := bot.NewHandler(service, a.config.Slack.SigningSecret, a.records.Backend, a.log)
		return bot.Serve(ctx, a.config.Server.Addr, bot.NewRouter(handler), a.log)
	},
}
