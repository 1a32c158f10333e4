package board

import (
	"context"
	"fmt"
	"strings"

	"github.com/Makepad-fr/smartboard/internal/api"
	"github.com/Makepad-fr/smartboard/internal/model"
)

// Form messages shown when a required field is empty.
const (
	MsgListTitle  = "Please enter a list title"
	MsgCardTitle  = "Please enter a card title"
	MsgInviteMail = "Please enter an email address"
)

// CreateList adds a list at the end of the board. The list appears locally
// only once the server has assigned it an id.
func (s *Synchronizer) CreateList(ctx context.Context, title string) (model.List, error) {
	if err := required(title, MsgListTitle); err != nil {
		return model.List{}, err
	}
	s.mu.Lock()
	if err := s.readyLocked(); err != nil {
		s.mu.Unlock()
		return model.List{}, err
	}
	const key = "create:list"
	if err := s.acquireLocked(key); err != nil {
		s.mu.Unlock()
		return model.List{}, err
	}
	in := api.ListInput{Title: strings.TrimSpace(title), Board: s.boardID, Position: len(s.lsts)}
	s.mu.Unlock()
	defer s.release(key)

	bctx, done := s.bind(ctx)
	created, err := s.lists.Create(bctx, in)
	done()
	if err != nil {
		return model.List{}, wrap("create list", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.List{}, ErrClosed
	}
	s.lsts = append(s.lsts, *created)
	return *created, nil
}

// CreateCard adds a card at the end of listID. An empty title fails with
// MsgCardTitle before any request.
func (s *Synchronizer) CreateCard(ctx context.Context, listID, title, description string) (model.Card, error) {
	if err := required(title, MsgCardTitle); err != nil {
		return model.Card{}, err
	}
	s.mu.Lock()
	if err := s.readyLocked(); err != nil {
		s.mu.Unlock()
		return model.Card{}, err
	}
	if s.listIndexLocked(listID) < 0 {
		s.mu.Unlock()
		return model.Card{}, fmt.Errorf("list %s: %w", listID, ErrNotFound)
	}
	key := "create:card:" + listID
	if err := s.acquireLocked(key); err != nil {
		s.mu.Unlock()
		return model.Card{}, err
	}
	in := api.CardInput{
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(description),
		List:        listID,
		Board:       s.boardID,
		Position:    len(s.cardsOfLocked(listID)),
	}
	s.mu.Unlock()
	defer s.release(key)

	bctx, done := s.bind(ctx)
	created, err := s.cards.Create(bctx, in)
	done()
	if err != nil {
		return model.Card{}, wrap("create card", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.Card{}, ErrClosed
	}
	c := *created
	if c.ListID == "" {
		c.ListID = listID
	}
	s.crds = append(s.crds, c)
	return copyCard(c), nil
}

// UpdateCard patches a card and stores what the server returned.
func (s *Synchronizer) UpdateCard(ctx context.Context, cardID string, p api.CardPatch) (model.Card, error) {
	if p.Title != nil {
		if err := required(*p.Title, MsgCardTitle); err != nil {
			return model.Card{}, err
		}
	}
	s.mu.Lock()
	if err := s.readyLocked(); err != nil {
		s.mu.Unlock()
		return model.Card{}, err
	}
	if s.cardIndexLocked(cardID) < 0 {
		s.mu.Unlock()
		return model.Card{}, fmt.Errorf("card %s: %w", cardID, ErrNotFound)
	}
	key := cardKey(cardID)
	if err := s.acquireLocked(key); err != nil {
		s.mu.Unlock()
		return model.Card{}, err
	}
	s.mu.Unlock()
	defer s.release(key)

	bctx, done := s.bind(ctx)
	updated, err := s.cards.Update(bctx, cardID, p)
	done()
	if err != nil {
		return model.Card{}, wrap("update card", err)
	}
	if err := s.ApplyCard(*updated); err != nil {
		return model.Card{}, err
	}
	return copyCard(*updated), nil
}

// ApplyCard replaces the local copy of a card with one the server returned.
func (s *Synchronizer) ApplyCard(c model.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	i := s.cardIndexLocked(c.ID)
	if i < 0 {
		return fmt.Errorf("card %s: %w", c.ID, ErrNotFound)
	}
	if c.ListID == "" {
		c.ListID = s.crds[i].ListID
	}
	if c.BoardID == "" {
		c.BoardID = s.crds[i].BoardID
	}
	s.crds[i] = copyCard(c)
	return nil
}

// DeleteCard removes a card once the server confirmed it.
func (s *Synchronizer) DeleteCard(ctx context.Context, cardID string) error {
	s.mu.Lock()
	if err := s.readyLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.cardIndexLocked(cardID) < 0 {
		s.mu.Unlock()
		return fmt.Errorf("card %s: %w", cardID, ErrNotFound)
	}
	key := cardKey(cardID)
	if err := s.acquireLocked(key); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()
	defer s.release(key)

	bctx, done := s.bind(ctx)
	err := s.cards.Delete(bctx, cardID)
	done()
	if err != nil {
		return wrap("delete card", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if i := s.cardIndexLocked(cardID); i >= 0 {
		s.crds = append(s.crds[:i], s.crds[i+1:]...)
	}
	return nil
}

// RenameList changes a list title.
func (s *Synchronizer) RenameList(ctx context.Context, listID, title string) (model.List, error) {
	if err := required(title, MsgListTitle); err != nil {
		return model.List{}, err
	}
	s.mu.Lock()
	if err := s.readyLocked(); err != nil {
		s.mu.Unlock()
		return model.List{}, err
	}
	if s.listIndexLocked(listID) < 0 {
		s.mu.Unlock()
		return model.List{}, fmt.Errorf("list %s: %w", listID, ErrNotFound)
	}
	key := listKey(listID)
	if err := s.acquireLocked(key); err != nil {
		s.mu.Unlock()
		return model.List{}, err
	}
	s.mu.Unlock()
	defer s.release(key)

	t := strings.TrimSpace(title)
	bctx, done := s.bind(ctx)
	updated, err := s.lists.Update(bctx, listID, api.ListPatch{Title: &t})
	done()
	if err != nil {
		return model.List{}, wrap("rename list", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.List{}, ErrClosed
	}
	i := s.listIndexLocked(listID)
	if i < 0 {
		return *updated, nil
	}
	// keep the local position: list order may have moved meanwhile
	s.lsts[i].Title = updated.Title
	return s.lsts[i], nil
}

// DeleteList removes a list and its cards once the server confirmed it.
func (s *Synchronizer) DeleteList(ctx context.Context, listID string) error {
	s.mu.Lock()
	if err := s.readyLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.listIndexLocked(listID) < 0 {
		s.mu.Unlock()
		return fmt.Errorf("list %s: %w", listID, ErrNotFound)
	}
	key := listKey(listID)
	if err := s.acquireLocked(key); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()
	defer s.release(key)

	bctx, done := s.bind(ctx)
	err := s.lists.Delete(bctx, listID)
	done()
	if err != nil {
		return wrap("delete list", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if i := s.listIndexLocked(listID); i >= 0 {
		s.lsts = append(s.lsts[:i], s.lsts[i+1:]...)
	}
	kept := s.crds[:0]
	for _, c := range s.crds {
		if c.ListID != listID {
			kept = append(kept, c)
		}
	}
	s.crds = kept
	return nil
}

// Invite adds a member by email, then reloads the board metadata so the
// member list is current. A failed reload is logged, not returned: the
// invitation itself went through.
func (s *Synchronizer) Invite(ctx context.Context, email string) error {
	if err := required(email, MsgInviteMail); err != nil {
		return err
	}
	s.mu.Lock()
	if err := s.readyLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	const key = "invite"
	if err := s.acquireLocked(key); err != nil {
		s.mu.Unlock()
		return err
	}
	boardID := s.boardID
	s.mu.Unlock()
	defer s.release(key)

	bctx, done := s.bind(ctx)
	defer done()
	if err := s.boards.Invite(bctx, boardID, strings.TrimSpace(email)); err != nil {
		return wrap("invite", err)
	}
	b, err := s.boards.Get(bctx, boardID)
	if err != nil {
		s.logger.Warn("refresh members after invite", "board", boardID, "err", err)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.board = b
	return nil
}
