package cmd

import (
	"github.com/spf13/cobra"

	"stagnant-channel-notifier-bot/checker"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one staleness check and message users about quiet channels.",
	Long: `Run one staleness check and message users about quiet channels.

Meant to be triggered once a day by an external scheduler such as cron.
Exits non-zero only when the watchlists cannot be read.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := setup(ctx)
		if err != nil {
			return err
		}
		defer a.close()
		err = a.config.RequireSlack(false)
		if err != nil {
			return err
		}

		client := a.slack()
		c := checker.New(
			a.watchlist,
			a.cache(client),
			client,
			client,
			checker.Options{
				ThresholdDays: a.config.Check.ThresholdDays,
				Workers:       a.config.Check.Workers,
			},
			a.log,
		)
		_, err = c.Run(ctx)
		return err
	},
}
