package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/andrebq/doorman/cmd/doorman/client"
	"github.com/andrebq/doorman/cmd/doorman/keys"
	"github.com/andrebq/doorman/cmd/doorman/serve"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "doorman",
		Usage: "Accounts, sessions and password resets for your web app",
		Commands: []*cli.Command{
			serve.Cmd(),
			client.Cmd(),
			keys.Cmd(),
		},
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	err := app.RunContext(ctx, os.Args)
	if err != nil {
		log.Error().Err(err).Msg("Application failed")
		os.Exit(1)
	}
}
