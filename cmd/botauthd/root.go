package main

import (
	"github.com/spf13/cobra"
)

const defaultConfigPath = "bots.json"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "botauthd",
		Short: "Verify Telegram mini-app init data against registered bots",
		Long: `botauthd holds the tokens of several Telegram bots and tells callers which
bot signed a mini-app init data payload, without the caller naming the bot.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("env-file", ".env", "File of KEY=VALUE pairs loaded before resolving token_env")

	root.AddCommand(
		newServeCmd(),
		newVerifyCmd(),
		newSignCmd(),
		newTokenCmd(),
	)
	return root
}
