// Package board keeps the in-memory state of one open board.
//
// A Synchronizer is created when a board view opens and closed when it goes
// away. It loads the board, its lists and its cards together, applies
// reorders optimistically and writes every other change only after the
// server accepted it. Views read it through Snapshot and CardsByList.
package board

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/Makepad-fr/smartboard/internal/api"
	"github.com/Makepad-fr/smartboard/internal/model"
)

var (
	// ErrBusy means another operation on the same card or list is in flight.
	ErrBusy = errors.New("another change to this item is still in progress")
	// ErrClosed means the board view was closed before the operation finished.
	ErrClosed = errors.New("board view closed")
	// ErrNotLoaded means the operation needs a loaded board.
	ErrNotLoaded = errors.New("board is not loaded")
	// ErrIndex means a position is outside the list.
	ErrIndex = errors.New("position out of range")
	// ErrNotFound means the card or list is not on this board.
	ErrNotFound = errors.New("not found on this board")
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation failed")
)

// ValidationError is a form problem caught before any request.
type ValidationError struct{ Message string }

func (e *ValidationError) Error() string        { return e.Message }
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Status of the board load.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusReady
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// BoardsAPI, ListsAPI and CardsAPI are the endpoints a Synchronizer uses.
// *api.Boards, *api.Lists and *api.Cards implement them.
type BoardsAPI interface {
	Get(ctx context.Context, boardID string) (*model.Board, error)
	Invite(ctx context.Context, boardID, email string) error
}

type ListsAPI interface {
	ByBoard(ctx context.Context, boardID string) ([]model.List, error)
	Create(ctx context.Context, in api.ListInput) (*model.List, error)
	Update(ctx context.Context, listID string, p api.ListPatch) (*model.List, error)
	Delete(ctx context.Context, listID string) error
}

type CardsAPI interface {
	ByBoard(ctx context.Context, boardID string) ([]model.Card, error)
	Create(ctx context.Context, in api.CardInput) (*model.Card, error)
	Update(ctx context.Context, cardID string, p api.CardPatch) (*model.Card, error)
	Delete(ctx context.Context, cardID string) error
	Move(ctx context.Context, cardID string, req api.MoveRequest) error
}

type Options struct {
	// PersistOrder writes reordered positions back to the server. When false
	// reorders are view-only and a reload restores the server order.
	PersistOrder bool
	Logger       *log.Logger
}

type Synchronizer struct {
	boards BoardsAPI
	lists  ListsAPI
	cards  CardsAPI
	opt    Options
	logger *log.Logger

	life   context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	closed  bool
	boardID string
	status  Status
	loadErr error
	loadSeq uint64
	board   *model.Board
	lsts    []model.List // display order
	crds    []model.Card // collection order
	busy    map[string]struct{}
}

// Open starts a board view. Every request it makes is cancelled by Close
// or when parent is done.
func Open(parent context.Context, boards BoardsAPI, lists ListsAPI, cards CardsAPI, opt Options) *Synchronizer {
	life, cancel := context.WithCancel(parent)
	logger := opt.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Synchronizer{
		boards: boards,
		lists:  lists,
		cards:  cards,
		opt:    opt,
		logger: logger,
		life:   life,
		cancel: cancel,
		busy:   map[string]struct{}{},
	}
}

// Close cancels in-flight requests and drops the board state.
func (s *Synchronizer) Close() {
	s.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.board, s.lsts, s.crds = nil, nil, nil
}

// bind ties ctx to the view lifetime.
func (s *Synchronizer) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.life, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// Load fetches the board, its lists and its cards at the same time. If any
// of the three fails nothing is kept and the status becomes StatusError.
func (s *Synchronizer) Load(ctx context.Context, boardID string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.loadSeq++
	seq := s.loadSeq
	s.boardID = boardID
	s.status = StatusLoading
	s.loadErr = nil
	s.mu.Unlock()

	ctx, done := s.bind(ctx)
	defer done()

	var (
		b     *model.Board
		lists []model.List
		cards []model.Card
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		b, err = s.boards.Get(gctx, boardID)
		return err
	})
	g.Go(func() (err error) {
		lists, err = s.lists.ByBoard(gctx, boardID)
		return err
	})
	g.Go(func() (err error) {
		cards, err = s.cards.ByBoard(gctx, boardID)
		return err
	})
	err := g.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if seq != s.loadSeq {
		// a newer Load owns the state now
		return err
	}
	if err != nil {
		s.status = StatusError
		s.loadErr = err
		s.board, s.lsts, s.crds = nil, nil, nil
		s.logger.Warn("board load failed", "board", boardID, "err", err)
		return err
	}
	sort.SliceStable(lists, func(i, j int) bool { return lists[i].Position < lists[j].Position })
	if cards == nil {
		cards = []model.Card{}
	}
	s.board, s.lsts, s.crds = b, lists, cards
	s.status = StatusReady
	s.logger.Debug("board loaded", "board", boardID, "lists", len(lists), "cards", len(cards))
	return nil
}

// Retry loads the last requested board again.
func (s *Synchronizer) Retry(ctx context.Context) error {
	s.mu.Lock()
	id := s.boardID
	s.mu.Unlock()
	if id == "" {
		return ErrNotLoaded
	}
	return s.Load(ctx, id)
}

// View is a copy of the board state for rendering.
type View struct {
	Status Status
	Err    error
	Board  model.Board
	Lists  []model.List
	Cards  []model.Card
}

// Snapshot copies the current state.
func (s *Synchronizer) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{Status: s.status, Err: s.loadErr}
	if s.board != nil {
		v.Board = *s.board
		v.Board.Members = append([]model.Member(nil), s.board.Members...)
	}
	v.Lists = append([]model.List(nil), s.lsts...)
	v.Cards = make([]model.Card, len(s.crds))
	for i, c := range s.crds {
		v.Cards[i] = copyCard(c)
	}
	return v
}

func (s *Synchronizer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// BoardID is the board last passed to Load.
func (s *Synchronizer) BoardID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boardID
}

// Lists returns the lists in display order.
func (s *Synchronizer) Lists() []model.List {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.List(nil), s.lsts...)
}

// CardsByList returns the cards of listID sorted by position. Equal
// positions keep collection order.
func (s *Synchronizer) CardsByList(listID string) []model.Card {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.cardsOfLocked(listID)
	out := make([]model.Card, len(idx))
	for i, ci := range idx {
		out[i] = copyCard(s.crds[ci])
	}
	return out
}

// Card returns one card by id.
func (s *Synchronizer) Card(cardID string) (model.Card, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.cardIndexLocked(cardID); i >= 0 {
		return copyCard(s.crds[i]), true
	}
	return model.Card{}, false
}

// cardsOfLocked returns indexes into s.crds of the cards in listID,
// ordered by position.
func (s *Synchronizer) cardsOfLocked(listID string) []int {
	var idx []int
	for i, c := range s.crds {
		if c.ListID == listID {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool { return s.crds[idx[a]].Position < s.crds[idx[b]].Position })
	return idx
}

func (s *Synchronizer) cardIndexLocked(cardID string) int {
	for i, c := range s.crds {
		if c.ID == cardID {
			return i
		}
	}
	return -1
}

func (s *Synchronizer) listIndexLocked(listID string) int {
	for i, l := range s.lsts {
		if l.ID == listID {
			return i
		}
	}
	return -1
}

func (s *Synchronizer) readyLocked() error {
	if s.closed {
		return ErrClosed
	}
	if s.status != StatusReady {
		return ErrNotLoaded
	}
	return nil
}

// acquireLocked marks keys as in flight. It takes all or none.
func (s *Synchronizer) acquireLocked(keys ...string) error {
	for _, k := range keys {
		if _, held := s.busy[k]; held {
			return ErrBusy
		}
	}
	for _, k := range keys {
		s.busy[k] = struct{}{}
	}
	return nil
}

func (s *Synchronizer) release(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.busy, k)
	}
}

func cardKey(id string) string { return "card:" + id }
func listKey(id string) string { return "list:" + id }

const listsKey = "lists"

func copyCard(c model.Card) model.Card {
	c.Labels = append([]string(nil), c.Labels...)
	if c.DueDate != nil {
		d := *c.DueDate
		c.DueDate = &d
	}
	return c
}

func required(value, message string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Message: message}
	}
	return nil
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
