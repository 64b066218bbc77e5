package main

import (
	"os"

	"stagnant-channel-notifier-bot/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
