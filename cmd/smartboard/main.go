package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/log"
	"golang.org/x/term"

	"github.com/Makepad-fr/smartboard/internal/api"
	"github.com/Makepad-fr/smartboard/internal/cli"
	"github.com/Makepad-fr/smartboard/internal/config"
	"github.com/Makepad-fr/smartboard/internal/session"
	"github.com/Makepad-fr/smartboard/internal/store/credstore"
	"github.com/Makepad-fr/smartboard/internal/tui"
	"github.com/Makepad-fr/smartboard/internal/ui"
)

func main() {
	// Root flags (apply to every subcommand)
	apiURL := flag.String("api", "", "backend base URL")
	cfgPath := flag.String("config", "", "config file (default ~/.smartboard/config.yml)")
	theme := flag.String("theme", "", "color theme: classic, neon or mono")
	flag.Usage = cli.PrintHelp
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		cli.PrintHelp()
		os.Exit(2)
	}

	dir, err := credstore.DefaultDir()
	if err != nil {
		ui.Fail(err.Error())
		os.Exit(1)
	}
	cfg, err := config.Load(*cfgPath, dir)
	if err != nil {
		ui.Fail(err.Error())
		os.Exit(2)
	}
	if err := cfg.Override(*apiURL, *theme); err != nil {
		ui.Fail(err.Error())
		os.Exit(2)
	}
	if err := ui.SetTheme(cfg.Theme); err != nil {
		ui.Fail(err.Error())
		os.Exit(2)
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "smartboard"})
	if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	} else {
		logger.Warn("unknown log level, using info", "level", cfg.LogLevel)
	}

	store := &credstore.File{Dir: cfg.Dir}
	g := api.NewGateway(store, api.Options{
		BaseURL:   cfg.APIURL,
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		RateBurst: cfg.RateBurst,
		Logger:    logger,
	})
	auth := api.NewAuth(g)
	sess := session.NewManager(auth, store, logger)
	g.SetUnauthorizedHook(sess.Expire)

	app := &cli.App{
		Config:  cfg,
		Store:   store,
		Session: sess,
		Auth:    auth,
		Boards:  api.NewBoards(g),
		Lists:   api.NewLists(g),
		Cards:   api.NewCards(g),
		Logger:  logger,
		In:      os.Stdin,
		ReadPassword: func() (string, error) {
			fd := int(os.Stdin.Fd())
			if !term.IsTerminal(fd) {
				return "", fmt.Errorf("stdin is not a terminal")
			}
			b, err := term.ReadPassword(fd)
			return string(b), err
		},
	}
	app.TUI = func(ctx context.Context, boardID string) error {
		// the alt screen owns the terminal, so logs go to a file meanwhile
		if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
			return err
		}
		f, err := os.OpenFile(filepath.Join(cfg.Dir, "smartboard.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("open log: %w", err)
		}
		defer f.Close()
		logger.SetOutput(f)
		defer logger.SetOutput(os.Stderr)

		return tui.Run(ctx, tui.Deps{
			Session: sess,
			Boards:  app.Boards,
			Lists:   app.Lists,
			Cards:   app.Cards,
			Config:  cfg,
			Logger:  logger,
		}, boardID)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := app.Run(ctx, args)
	stop()
	if code != 0 {
		fmt.Fprintln(os.Stderr)
	}
	os.Exit(code)
}
