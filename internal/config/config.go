// Package config loads the server configuration from .env files and the
// process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type (
	Config struct {
		Bind   string `env:"BIND" envDefault:"localhost:4000"`
		Prefix string `env:"PREFIX" envDefault:"/auth"`

		TokenTTL time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
		CodeTTL  time.Duration `env:"CODE_TTL" envDefault:"10m"`
		ResetTTL time.Duration `env:"RESET_TTL" envDefault:"60m"`
		// RevokeOnCredentialChange rejects tokens issued before the last
		// password or email change
		RevokeOnCredentialChange bool `env:"REVOKE_ON_CREDENTIAL_CHANGE" envDefault:"false"`

		HashAlgorithm string `env:"HASH_ALGORITHM" envDefault:"bcrypt"`
		BcryptCost    int    `env:"BCRYPT_COST" envDefault:"10"`

		Notifier      string `env:"NOTIFIER" envDefault:"console"`
		MessageScript string `env:"MESSAGE_SCRIPT"`
		FrontendURL   string `env:"FRONTEND_URL" envDefault:"http://localhost:5173"`
		SMTP          SMTP   `envPrefix:"SMTP_"`
		DevOutbox     bool   `env:"DEV_OUTBOX" envDefault:"false"`

		CORSOrigins   []string `env:"CORS_ORIGINS" envSeparator:","`
		FrontendProxy string   `env:"FRONTEND_PROXY"`

		LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
		LogFormat string `env:"LOG_FORMAT" envDefault:"console"`
	}

	SMTP struct {
		Host     string `env:"HOST"`
		Port     int    `env:"PORT" envDefault:"587"`
		Username string `env:"USERNAME"`
		Password string `env:"PASSWORD,unset"`
		From     string `env:"FROM"`
	}

	Invalid struct {
		Key    string
		Reason string
	}
)

const (
	EnvPrefix = "DOORMAN_"

	NotifierConsole = "console"
	NotifierSMTP    = "smtp"
)

func (i Invalid) Error() string {
	return fmt.Sprintf("config: invalid %v%v: %v", EnvPrefix, i.Key, i.Reason)
}

// Load reads the given .env files (missing files are ignored) into the
// environment and parses it. Variables already present in the
// environment win over the ones in the files.
func Load(files ...string) (Config, error) {
	for _, f := range files {
		err := godotenv.Load(f)
		if errors.Is(err, os.ErrNotExist) {
			continue
		} else if err != nil {
			return Config{}, fmt.Errorf("config: unable to load %v, cause %w", f, err)
		}
	}
	return Parse(nil)
}

// Parse reads the configuration from environ, or from the process
// environment when environ is nil.
func Parse(environ map[string]string) (Config, error) {
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return Config{}, fmt.Errorf("config: unable to parse environment, cause %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.Notifier {
	case NotifierConsole:
	case NotifierSMTP:
		if c.SMTP.Host == "" {
			return Invalid{Key: "SMTP_HOST", Reason: "required by the smtp notifier"}
		}
		if c.SMTP.From == "" {
			return Invalid{Key: "SMTP_FROM", Reason: "required by the smtp notifier"}
		}
	default:
		return Invalid{Key: "NOTIFIER", Reason: fmt.Sprintf("unknown notifier %q", c.Notifier)}
	}
	if c.TokenTTL <= 0 {
		return Invalid{Key: "TOKEN_TTL", Reason: "must be positive"}
	}
	if c.CodeTTL <= 0 {
		return Invalid{Key: "CODE_TTL", Reason: "must be positive"}
	}
	if c.ResetTTL <= 0 {
		return Invalid{Key: "RESET_TTL", Reason: "must be positive"}
	}
	return nil
}
