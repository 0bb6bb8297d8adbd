package client

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	sessionclient "github.com/andrebq/doorman/client"
	"github.com/andrebq/doorman/client/sqlitestore"
	"github.com/andrebq/doorman/internal/cmdflags"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

type (
	action func(ctx *cli.Context, m *sessionclient.Manager, in *prompter) error

	prompter struct {
		ctx   *cli.Context
		lines *bufio.Reader
	}
)

func Cmd() *cli.Command {
	var baseURL string
	var sessionDB string
	withManager := func(fn action) cli.ActionFunc {
		return func(ctx *cli.Context) error {
			store, err := sqlitestore.Open(ctx.Context, sessionDB)
			if err != nil {
				return err
			}
			defer store.Close()
			tr := sessionclient.NewTransport(baseURL, store)
			tr.OnUnauthorized = func() {
				fmt.Fprintln(ctx.App.ErrWriter, "Session expired, please login again")
			}
			m := sessionclient.NewManager(tr)
			if err := m.Start(ctx.Context); err != nil {
				return err
			}
			return fn(ctx, m, &prompter{ctx: ctx, lines: bufio.NewReader(ctx.App.Reader)})
		}
	}
	return &cli.Command{
		Name:  "client",
		Usage: "Talk to a doorman server, the session is kept between calls",
		Flags: []cli.Flag{
			cmdflags.BaseURL(&baseURL),
			cmdflags.SessionDB(&sessionDB),
		},
		Subcommands: []*cli.Command{
			{
				Name:      "register",
				Usage:     "Create a new account, the password is read from the terminal",
				ArgsUsage: "<email>",
				Action: withManager(func(ctx *cli.Context, m *sessionclient.Manager, in *prompter) error {
					email, err := arg(ctx, "email")
					if err != nil {
						return err
					}
					password, err := in.password("Password: ")
					if err != nil {
						return err
					}
					msg, err := m.Register(ctx.Context, email, password)
					if err != nil {
						return err
					}
					fmt.Fprintln(ctx.App.Writer, msg)
					return nil
				}),
			},
			{
				Name:      "login",
				Usage:     "Login, the password is read from the terminal",
				ArgsUsage: "<email>",
				Action: withManager(func(ctx *cli.Context, m *sessionclient.Manager, in *prompter) error {
					email, err := arg(ctx, "email")
					if err != nil {
						return err
					}
					password, err := in.password("Password: ")
					if err != nil {
						return err
					}
					if err := m.Login(ctx.Context, email, password); err != nil {
						return err
					}
					return printUser(ctx, m)
				}),
			},
			{
				Name:      "verify",
				Usage:     "Verify the email address with the code received by email",
				ArgsUsage: "<code>",
				Action: withManager(func(ctx *cli.Context, m *sessionclient.Manager, in *prompter) error {
					code, err := arg(ctx, "code")
					if err != nil {
						return err
					}
					if err := m.VerifyEmail(ctx.Context, code); err != nil {
						return err
					}
					return printUser(ctx, m)
				}),
			},
			{
				Name:      "forgot",
				Usage:     "Request a password reset link",
				ArgsUsage: "<email>",
				Action: withManager(func(ctx *cli.Context, m *sessionclient.Manager, in *prompter) error {
					email, err := arg(ctx, "email")
					if err != nil {
						return err
					}
					msg, err := m.ForgotPassword(ctx.Context, email)
					if err != nil {
						return err
					}
					fmt.Fprintln(ctx.App.Writer, msg)
					return nil
				}),
			},
			{
				Name:      "reset",
				Usage:     "Choose a new password using the token from the reset link",
				ArgsUsage: "<token>",
				Action: withManager(func(ctx *cli.Context, m *sessionclient.Manager, in *prompter) error {
					tk, err := arg(ctx, "token")
					if err != nil {
						return err
					}
					password, err := in.password("New password: ")
					if err != nil {
						return err
					}
					confirm, err := in.password("Confirm password: ")
					if err != nil {
						return err
					}
					if password != confirm {
						return errors.New("passwords do not match")
					}
					msg, err := m.ResetPassword(ctx.Context, tk, password)
					if err != nil {
						return err
					}
					fmt.Fprintln(ctx.App.Writer, msg)
					return nil
				}),
			},
			{
				Name:  "me",
				Usage: "Show the current account",
				Action: withManager(func(ctx *cli.Context, m *sessionclient.Manager, in *prompter) error {
					return printUser(ctx, m)
				}),
			},
			{
				Name:      "update-email",
				Usage:     "Change the email address of the current account",
				ArgsUsage: "<new-email>",
				Action: withManager(func(ctx *cli.Context, m *sessionclient.Manager, in *prompter) error {
					email, err := arg(ctx, "new-email")
					if err != nil {
						return err
					}
					if err := m.UpdateEmail(ctx.Context, email); err != nil {
						return err
					}
					return printUser(ctx, m)
				}),
			},
			{
				Name:  "logout",
				Usage: "Forget the current session",
				Action: withManager(func(ctx *cli.Context, m *sessionclient.Manager, in *prompter) error {
					return m.Logout(ctx.Context)
				}),
			},
		},
	}
}

func arg(ctx *cli.Context, name string) (string, error) {
	v := strings.TrimSpace(ctx.Args().First())
	if v == "" {
		return "", fmt.Errorf("missing argument <%v>", name)
	}
	return v, nil
}

func printUser(ctx *cli.Context, m *sessionclient.Manager) error {
	user, found := m.User()
	if !found {
		return sessionclient.ErrNotAuthenticated
	}
	enc := json.NewEncoder(ctx.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(user)
}

// password prompts on the terminal without echo, or reads a single
// line when stdin is not a terminal.
func (p *prompter) password(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(p.ctx.App.ErrWriter, label)
		buf, err := term.ReadPassword(fd)
		fmt.Fprintln(p.ctx.App.ErrWriter)
		if err != nil {
			return "", fmt.Errorf("unable to read password, cause %w", err)
		}
		return string(buf), nil
	}
	line, err := p.lines.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("unable to read password, cause %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
