package serve

import (
	"os"

	"github.com/andrebq/doorman/account"
	"github.com/andrebq/doorman/api"
	"github.com/andrebq/doorman/credential"
	"github.com/andrebq/doorman/internal/cmdflags"
	"github.com/andrebq/doorman/internal/config"
	"github.com/andrebq/doorman/internal/devproxy"
	"github.com/andrebq/doorman/internal/httpserver"
	"github.com/andrebq/doorman/internal/logutil"
	"github.com/andrebq/doorman/notify"
	"github.com/andrebq/doorman/notify/luarender"
	"github.com/andrebq/doorman/token"
	"github.com/urfave/cli/v2"
)

func Cmd() *cli.Command {
	var envFile string
	var secretEnvVar string
	bindAddr := ""
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the account api",
		Flags: []cli.Flag{
			cmdflags.EnvFile(&envFile),
			cmdflags.SecretEnvVar(&secretEnvVar),
			&cli.StringFlag{
				Name:        "bind",
				Usage:       "Address to bind the api (overrides DOORMAN_BIND)",
				Value:       bindAddr,
				Destination: &bindAddr,
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			if bindAddr != "" {
				cfg.Bind = bindAddr
			}
			log, err := logutil.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			appCtx := logutil.WithLogger(ctx.Context, log)

			hasher, err := credential.New(cfg.HashAlgorithm, cfg.BcryptCost)
			if err != nil {
				return err
			}
			store, err := account.NewMemStore(hasher,
				account.WithCodeTTL(cfg.CodeTTL),
				account.WithResetTTL(cfg.ResetTTL))
			if err != nil {
				return err
			}
			defer store.Close()

			secret := token.SecretFromEnv(log, secretEnvVar, os.Getenv, os.Setenv)
			codec, err := token.NewCodec(secret, token.WithTTL(cfg.TokenTTL))
			if err != nil {
				return err
			}

			var renderer notify.Renderer = notify.Builtin{FrontendURL: cfg.FrontendURL}
			if cfg.MessageScript != "" {
				lr, err := luarender.Load(cfg.MessageScript, cfg.FrontendURL)
				if err != nil {
					return err
				}
				defer lr.Close()
				renderer = lr
			}
			var delivery notify.Notifier = notify.Console{Renderer: renderer}
			if cfg.Notifier == config.NotifierSMTP {
				delivery = notify.NewSMTP(notify.SMTPConfig{
					Host:     cfg.SMTP.Host,
					Port:     cfg.SMTP.Port,
					Username: cfg.SMTP.Username,
					Password: cfg.SMTP.Password,
					From:     cfg.SMTP.From,
				}, renderer)
			}
			async := notify.NewAsync(delivery)
			defer async.Close()

			opts := api.Options{
				Prefix:      cfg.Prefix,
				CORSOrigins: cfg.CORSOrigins,
			}
			var notifier notify.Notifier = async
			if cfg.DevOutbox {
				log.Warn().Msg("Development outbox enabled, codes and reset tokens are exposed at /dev/outbox")
				opts.Outbox = notify.NewOutbox(async)
				notifier = opts.Outbox
			}
			if cfg.FrontendProxy != "" {
				opts.Fallback, err = devproxy.Frontend(appCtx, cfg.FrontendProxy)
				if err != nil {
					return err
				}
			}

			svc := api.NewService(store, hasher, codec, notifier)
			realm := api.NewRealm(store, codec, cfg.RevokeOnCredentialChange)
			log.Info().
				Str("prefix", cfg.Prefix).
				Str("notifier", cfg.Notifier).
				Str("hash", cfg.HashAlgorithm).
				Bool("revoke", cfg.RevokeOnCredentialChange).
				Msg("Account api configured")
			return httpserver.Serve(appCtx, cfg.Bind, api.AsHandler(appCtx, svc, realm, opts))
		},
	}
}
