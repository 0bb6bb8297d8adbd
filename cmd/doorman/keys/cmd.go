package keys

import (
	"crypto/rand"
	"fmt"

	"github.com/andrebq/doorman/token"
	"github.com/urfave/cli/v2"
)

func Cmd() *cli.Command {
	return &cli.Command{
		Name:  "keys",
		Usage: "Manage token signing secrets",
		Subcommands: []*cli.Command{
			generateCmd(),
		},
	}
}

func generateCmd() *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: fmt.Sprintf("Print a new random signing secret, export it as %v before starting the server", token.SecretEnvVar),
		Action: func(ctx *cli.Context) error {
			secret, err := token.GenerateSecret(rand.Reader)
			if err != nil {
				return err
			}
			fmt.Fprintln(ctx.App.Writer, secret)
			return nil
		},
	}
}
