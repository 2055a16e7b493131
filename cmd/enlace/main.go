package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "enlace",
		Short: "Two-channel assistant relay (Telegram + WhatsApp)",
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bot, the webhook server, and the turn pipeline",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
	root.AddCommand(serveCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
