package cmdflags

import (
	"os"
	"path/filepath"

	"github.com/andrebq/doorman/token"
	"github.com/urfave/cli/v2"
)

func EnvFile(out *string) cli.Flag {
	if len(*out) == 0 {
		*out = ".env"
	}
	return &cli.StringFlag{
		Name:        "env-file",
		Usage:       "Path to a .env file loaded before reading the environment (ignored when missing)",
		Destination: out,
		Value:       *out,
	}
}

func SecretEnvVar(out *string) cli.Flag {
	if len(*out) == 0 {
		*out = token.SecretEnvVar
	}
	return &cli.StringFlag{
		Name:        "secret-envvar-name",
		Usage:       "Name of the environment variable that holds the token signing secret. The secret itself should not be passed as an argument",
		Value:       *out,
		Destination: out,
	}
}

func BaseURL(out *string) cli.Flag {
	if len(*out) == 0 {
		*out = "http://localhost:4000/auth"
	}
	return &cli.StringFlag{
		Name:        "base-url",
		Aliases:     []string{"u"},
		Usage:       "Address of the account api, including the route prefix",
		EnvVars:     []string{"DOORMAN_BASE_URL"},
		Value:       *out,
		Destination: out,
	}
}

func SessionDB(out *string) cli.Flag {
	if len(*out) == 0 {
		*out = defaultSessionDB()
	}
	return &cli.StringFlag{
		Name:        "session",
		Usage:       "Path to the sqlite database where the client session is kept",
		EnvVars:     []string{"DOORMAN_SESSION"},
		Value:       *out,
		Destination: out,
	}
}

func defaultSessionDB() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "doorman", "session.db")
}
