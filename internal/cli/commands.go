package cli

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Makepad-fr/smartboard/internal/api"
	"github.com/Makepad-fr/smartboard/internal/board"
	"github.com/Makepad-fr/smartboard/internal/export"
	"github.com/Makepad-fr/smartboard/internal/model"
	"github.com/Makepad-fr/smartboard/internal/recommend"
	"github.com/Makepad-fr/smartboard/internal/share"
	"github.com/Makepad-fr/smartboard/internal/ui"
)

func (a *App) interactive(ctx context.Context, boardID string) error {
	if a.TUI == nil {
		return fmt.Errorf("interactive mode is not available")
	}
	// the TUI shows its own login form, so only restore here
	a.Session.Restore(ctx)
	return a.TUI(ctx, boardID)
}

// openBoard loads a board for a one-shot command. Orders are always written
// back: a command has no view to keep them in.
func (a *App) openBoard(ctx context.Context, boardID string) (*board.Synchronizer, error) {
	if _, err := a.ensureAuth(ctx); err != nil {
		return nil, err
	}
	s := board.Open(ctx, a.Boards, a.Lists, a.Cards, board.Options{PersistOrder: true, Logger: a.Logger})
	if err := s.Load(ctx, boardID); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// -------------- boards ----------------

func (a *App) boardsList(ctx context.Context) error {
	me, err := a.ensureAuth(ctx)
	if err != nil {
		return err
	}
	boards, err := a.Boards.List(ctx)
	if err != nil {
		return err
	}
	t := ui.Current()
	lines := []string{
		fmt.Sprintf("%s  %s %d", ui.C(t.Title, "Boards"), ui.C(t.Accent, "Total"), len(boards)),
		"",
	}
	if len(boards) == 0 {
		lines = append(lines, ui.C(t.Muted, "no boards yet"))
	}
	for _, b := range boards {
		mark := " "
		if b.Owner.ID == me.ID {
			mark = ui.C(t.Accent, t.Owner)
		}
		lines = append(lines, fmt.Sprintf("%s %s  %s %s",
			mark, ui.C(t.Muted, b.ID), ui.Truncate(b.Title, 60),
			ui.C(t.Muted, fmt.Sprintf("(%d members)", len(b.Members)))))
	}
	lines = append(lines, "", ui.C(t.Muted, "Tip: open one with `smartboard board <id>`"))
	ui.Panel(lines)
	return nil
}

func (a *App) boardsCreate(ctx context.Context, args []string) error {
	fs := newFlagSet("boards create")
	bg := fs.String("bg", model.BoardColors[0], "background color")
	pos, err := parseInterleaved(fs, args)
	if err != nil || len(pos) == 0 {
		return usageErr("smartboard boards create <title> [--bg COLOR]")
	}
	title := strings.TrimSpace(strings.Join(pos, " "))
	if title == "" {
		return &board.ValidationError{Message: "Please enter a board title"}
	}
	if !slices.Contains(model.BoardColors, *bg) {
		return usageErr("unknown color %s (have %s)", *bg, strings.Join(model.BoardColors, " "))
	}
	if _, err := a.ensureAuth(ctx); err != nil {
		return err
	}
	b, err := a.Boards.Create(ctx, api.BoardInput{Title: title, Background: *bg})
	if err != nil {
		return err
	}
	ui.OK(fmt.Sprintf("created board %s (%s)", b.Title, b.ID))
	return nil
}

func (a *App) boardsRemove(ctx context.Context, boardID string) error {
	if _, err := a.ensureAuth(ctx); err != nil {
		return err
	}
	if err := a.Boards.Delete(ctx, boardID); err != nil {
		return err
	}
	ui.OK("removed")
	return nil
}

// -------------- lists and cards ----------------

func (a *App) listAdd(ctx context.Context, boardID, title string) error {
	s, err := a.openBoard(ctx, boardID)
	if err != nil {
		return err
	}
	defer s.Close()
	l, err := s.CreateList(ctx, title)
	if err != nil {
		return err
	}
	ui.OK(fmt.Sprintf("added list %s (%s)", l.Title, l.ID))
	return nil
}

func (a *App) cardAdd(ctx context.Context, boardID, listID, title string) error {
	s, err := a.openBoard(ctx, boardID)
	if err != nil {
		return err
	}
	defer s.Close()
	c, err := s.CreateCard(ctx, listID, title, "")
	if err != nil {
		return err
	}
	ui.OK(fmt.Sprintf("added card %s (%s)", c.Title, c.ID))
	return nil
}

func (a *App) cardMove(ctx context.Context, boardID, cardID, listID, index string) error {
	n, err := strconv.Atoi(index)
	if err != nil || n < 0 {
		return usageErr("card mv: not a position: %s", index)
	}
	s, err := a.openBoard(ctx, boardID)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.MoveToList(ctx, cardID, listID, n); err != nil {
		return err
	}
	c, _ := s.Card(cardID)
	ui.OK(fmt.Sprintf("moved to %s at position %d", listTitle(s, c.ListID), c.Position))
	return nil
}

func (a *App) cardRemove(ctx context.Context, cardID string) error {
	if _, err := a.ensureAuth(ctx); err != nil {
		return err
	}
	if err := a.Cards.Delete(ctx, cardID); err != nil {
		return err
	}
	ui.OK("removed")
	return nil
}

func listTitle(s *board.Synchronizer, listID string) string {
	for _, l := range s.Lists() {
		if l.ID == listID {
			return l.Title
		}
	}
	return listID
}

// -------------- recommendations ----------------

func (a *App) recommend(ctx context.Context, boardID, cardID string) error {
	s, err := a.openBoard(ctx, boardID)
	if err != nil {
		return err
	}
	defer s.Close()
	card, ok := s.Card(cardID)
	if !ok {
		return fmt.Errorf("card %s: %w", cardID, board.ErrNotFound)
	}
	items, err := recommend.Fetch(ctx, a.Cards, cardID)
	if err != nil {
		return err
	}

	t := ui.Current()
	lines := []string{ui.C(t.Title, "Suggestions for "+card.Title), ""}
	meter := func(f float64) string { return ui.Meter(f, 12) }
	for _, it := range items {
		title, body := recommend.Describe(it, meter)
		lines = append(lines, ui.C(t.Accent, title))
		for _, ln := range body {
			lines = append(lines, "  "+ln)
		}
		lines = append(lines, "")
	}
	if id, ok := recommend.SuggestedList(items, nil); ok {
		lines = append(lines, ui.C(t.Muted, fmt.Sprintf("Tip: smartboard card mv %s %s %s 0", boardID, cardID, id)))
	} else {
		lines = lines[:len(lines)-1]
	}
	ui.Panel(lines)
	return nil
}

// -------------- members and sharing ----------------

func (a *App) invite(ctx context.Context, boardID, email string) error {
	s, err := a.openBoard(ctx, boardID)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.Invite(ctx, email); err != nil {
		return err
	}
	ui.OK(fmt.Sprintf("invited %s (%d members)", strings.TrimSpace(email), len(s.Snapshot().Board.Members)))
	return nil
}

func (a *App) share(ctx context.Context, args []string) error {
	fs := newFlagSet("share")
	png := fs.String("png", "", "write the QR code to this PNG file")
	pos, err := parseInterleaved(fs, args)
	if err != nil || len(pos) != 1 {
		return usageErr("smartboard share <boardId> [--png FILE]")
	}
	if _, err := a.ensureAuth(ctx); err != nil {
		return err
	}
	b, err := a.Boards.Get(ctx, pos[0])
	if err != nil {
		return err
	}
	link := share.Link(a.Config.ShareBaseURL, b.ID)

	t := ui.Current()
	fmt.Fprintln(ui.Stdout, ui.C(t.Title, "Share "+b.Title))
	fmt.Fprintln(ui.Stdout, link)
	if qr, err := share.QR(link); err == nil {
		fmt.Fprint(ui.Stdout, qr)
	} else {
		a.Logger.Warn("qr code", "err", err)
	}
	for _, ch := range share.Channels(b.Title, link) {
		fmt.Fprintf(ui.Stdout, "%-9s %s\n", ch.Name, ui.C(t.Muted, ch.URL))
	}
	if *png != "" {
		if err := share.WriteQRPNG(link, *png, 512); err != nil {
			return err
		}
		ui.OK("QR code saved to " + *png)
	}
	return nil
}

// -------------- export ----------------

func (a *App) export(ctx context.Context, args []string) error {
	fs := newFlagSet("export")
	toS3 := fs.Bool("s3", false, "upload to the configured S3 bucket")
	out := fs.String("out", "", "output file")
	pos, err := parseInterleaved(fs, args)
	if err != nil || len(pos) != 1 {
		return usageErr("smartboard export <boardId> [--s3] [--out FILE]")
	}
	s, err := a.openBoard(ctx, pos[0])
	if err != nil {
		return err
	}
	defer s.Close()
	snap, err := export.FromView(s.Snapshot(), time.Now())
	if err != nil {
		return err
	}

	var exp export.Exporter = export.FileExporter{Dir: ".", Path: *out}
	if *toS3 {
		client, err := export.NewS3Client(ctx, a.Config.S3)
		if err != nil {
			return err
		}
		s3e := export.NewS3Exporter(client, a.Config.S3.Bucket)
		if err := s3e.EnsureBucket(ctx); err != nil {
			return err
		}
		exp = s3e
	}
	where, err := exp.Export(ctx, snap)
	if err != nil {
		return err
	}
	ui.OK(fmt.Sprintf("exported %d lists and %d cards to %s", len(snap.Lists), len(snap.Cards), where))
	return nil
}
