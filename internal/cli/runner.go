package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/Makepad-fr/smartboard/internal/api"
	"github.com/Makepad-fr/smartboard/internal/board"
	"github.com/Makepad-fr/smartboard/internal/config"
	"github.com/Makepad-fr/smartboard/internal/session"
	"github.com/Makepad-fr/smartboard/internal/store/credstore"
	"github.com/Makepad-fr/smartboard/internal/ui"
)

// App holds what the subcommands need. cmd/smartboard wires it.
type App struct {
	Config  config.Config
	Store   credstore.Store
	Session *session.Manager
	Auth    *api.Auth
	Boards  *api.Boards
	Lists   *api.Lists
	Cards   *api.Cards
	Logger  *log.Logger

	// In is read for prompts; ReadPassword reads a secret without echo.
	In           io.Reader
	ReadPassword func() (string, error)

	// TUI runs the interactive interface, on a board when boardID is set.
	TUI func(ctx context.Context, boardID string) error

	in *bufio.Reader
}

var errUsage = errors.New("usage")

// Run dispatches subcommands and returns an exit code (0 ok, 1 error, 2 usage).
func (a *App) Run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		PrintHelp()
		return 2
	}
	cmd, rest := args[0], args[1:]
	sub := ""
	if len(rest) > 0 {
		sub = rest[0]
	}

	var err error
	switch cmd {
	case "help", "-h", "--help":
		PrintHelp()
		return 0

	case "auth":
		switch sub {
		case "login":
			err = a.authLogin(ctx)
		case "register":
			err = a.authRegister(ctx)
		case "logout":
			err = a.authLogout()
		case "status":
			err = a.authStatus(ctx)
		case "whoami":
			err = a.authWhoAmI(ctx)
		default:
			return usage("smartboard auth <login|register|logout|status|whoami>")
		}

	case "boards":
		switch sub {
		case "":
			err = a.interactive(ctx, "")
		case "ls":
			err = a.boardsList(ctx)
		case "create":
			err = a.boardsCreate(ctx, rest[1:])
		case "rm":
			if len(rest) != 2 {
				return usage("smartboard boards rm <id>")
			}
			err = a.boardsRemove(ctx, rest[1])
		default:
			return usage("smartboard boards [ls|create <title> [--bg COLOR]|rm <id>]")
		}

	case "board":
		if len(rest) != 1 {
			return usage("smartboard board <id>")
		}
		err = a.interactive(ctx, rest[0])

	case "list":
		if sub != "add" || len(rest) < 3 {
			return usage("smartboard list add <boardId> <title...>")
		}
		err = a.listAdd(ctx, rest[1], strings.Join(rest[2:], " "))

	case "card":
		switch {
		case sub == "add" && len(rest) >= 4:
			err = a.cardAdd(ctx, rest[1], rest[2], strings.Join(rest[3:], " "))
		case sub == "mv" && len(rest) == 5:
			err = a.cardMove(ctx, rest[1], rest[2], rest[3], rest[4])
		case sub == "rm" && len(rest) == 2:
			err = a.cardRemove(ctx, rest[1])
		default:
			return usage("smartboard card <add <boardId> <listId> <title...>|mv <boardId> <cardId> <listId> <index>|rm <cardId>>")
		}

	case "recommend":
		if len(rest) != 2 {
			return usage("smartboard recommend <boardId> <cardId>")
		}
		err = a.recommend(ctx, rest[0], rest[1])

	case "invite":
		if len(rest) != 2 {
			return usage("smartboard invite <boardId> <email>")
		}
		err = a.invite(ctx, rest[0], rest[1])

	case "share":
		err = a.share(ctx, rest)

	case "export":
		err = a.export(ctx, rest)

	default:
		ui.Fail("unknown subcommand: " + cmd)
		fmt.Fprintln(ui.Stderr)
		PrintHelp()
		return 2
	}
	return a.exit(err)
}

func (a *App) exit(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		ui.Fail(strings.TrimPrefix(err.Error(), "usage: "))
		return 2
	case errors.Is(err, errNotLoggedIn):
		ui.Fail("not logged in. Run: smartboard auth login")
		return 2
	case errors.Is(err, api.ErrUnauthorized):
		ui.Fail(api.Message(err))
		fmt.Fprintln(ui.Stderr, ui.C(ui.Current().Muted, "Hint: your session expired, run `smartboard auth login`"))
		return 1
	case errors.Is(err, board.ErrValidation), errors.Is(err, session.ErrMissingFields):
		ui.Fail(userMessage(err))
		return 2
	}
	a.Logger.Debug("command failed", "err", err)
	ui.Fail(userMessage(err))
	return 1
}

func usage(text string) int {
	ui.Fail("usage: " + text)
	return 2
}

func usageErr(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{errUsage}, args...)...)
}

// userMessage is the text printed for err.
func userMessage(err error) string {
	var ve *board.ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	if errors.Is(err, session.ErrMissingFields) {
		return session.ErrMissingFields.Error()
	}
	return api.Message(err)
}

// parseInterleaved parses fs while allowing flags after positional
// arguments, e.g. `share b1 --png out.png`.
func parseInterleaved(fs *flag.FlagSet, args []string) ([]string, error) {
	var pos []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if fs.NArg() == 0 {
			return pos, nil
		}
		pos = append(pos, fs.Arg(0))
		args = fs.Args()[1:]
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func (a *App) prompt(label string) (string, error) {
	if a.in == nil {
		in := a.In
		if in == nil {
			in = os.Stdin
		}
		a.in = bufio.NewReader(in)
	}
	fmt.Fprint(ui.Stdout, label)
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(strings.ToLower(label), ": "), err)
	}
	return strings.TrimSpace(line), nil
}

func (a *App) password() (string, error) {
	fmt.Fprint(ui.Stdout, "Password: ")
	if a.ReadPassword == nil {
		return a.prompt("")
	}
	pw, err := a.ReadPassword()
	fmt.Fprintln(ui.Stdout)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return pw, nil
}

func PrintHelp() {
	fmt.Fprint(ui.Stdout, `smartboard - collaborative boards in your terminal

Usage:
  smartboard [--api URL] [--config PATH] [--theme NAME] <subcommand> [args]

Subcommands:
  auth login|register|logout|status|whoami
  boards                          Browse your boards (interactive)
  boards ls                       List your boards
  boards create <title> [--bg C]  Create a board
  boards rm <id>                  Delete a board
  board <id>                      Open a board (interactive)
  list add <boardId> <title...>   Add a list at the end of a board
  card add <boardId> <listId> <title...>
  card mv <boardId> <cardId> <listId> <index>
  card rm <cardId>
  recommend <boardId> <cardId>    Show suggestions for a card
  invite <boardId> <email>        Add a member by email
  share <boardId> [--png FILE]    Share link, QR code and channels
  export <boardId> [--s3] [--out FILE]

Environment:
  SMARTBOARD_TOKEN     use this token instead of the stored credentials
  SMARTBOARD_API_URL   backend base URL

Examples:
  smartboard auth login
  smartboard boards create "Sprint 12"
  smartboard card mv b1 c7 l2 0
`)
}
