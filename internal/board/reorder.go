package board

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/Makepad-fr/smartboard/internal/api"
	"github.com/Makepad-fr/smartboard/internal/model"
)

// HandleDrag applies a finished drag gesture. Drops outside any container
// and drops at the starting spot do nothing.
func (s *Synchronizer) HandleDrag(ctx context.Context, e model.DragEvent) error {
	if e.NoOp() {
		return nil
	}
	switch e.Type {
	case model.ItemList:
		return s.ReorderLists(ctx, e.Source.Index, e.Destination.Index)
	case model.ItemCard:
		if e.Source.ContainerID == e.Destination.ContainerID {
			return s.ReorderWithinList(ctx, e.Source.ContainerID, e.Source.Index, e.Destination.Index)
		}
		return s.MoveToList(ctx, e.ItemID, e.Destination.ContainerID, e.Destination.Index)
	}
	return fmt.Errorf("unknown drag item type %q", e.Type)
}

// ReorderWithinList moves the card at index from to index to among the
// cards of listID and renumbers them 0..n-1. The new order shows at once.
// With PersistOrder the changed positions are then written to the server;
// if that fails the previous order comes back and the error is returned.
func (s *Synchronizer) ReorderWithinList(ctx context.Context, listID string, from, to int) error {
	s.mu.Lock()
	if err := s.readyLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.listIndexLocked(listID) < 0 {
		s.mu.Unlock()
		return fmt.Errorf("list %s: %w", listID, ErrNotFound)
	}
	seq := s.cardsOfLocked(listID)
	if from < 0 || from >= len(seq) || to < 0 || to >= len(seq) {
		s.mu.Unlock()
		return fmt.Errorf("move %d to %d in a list of %d: %w", from, to, len(seq), ErrIndex)
	}
	if from == to {
		s.mu.Unlock()
		return nil
	}
	key := listKey(listID)
	if err := s.acquireLocked(key); err != nil {
		s.mu.Unlock()
		return err
	}
	defer s.release(key)

	moved := seq[from]
	seq = append(seq[:from], seq[from+1:]...)
	seq = append(seq[:to], append([]int{moved}, seq[to:]...)...)

	before := map[string]int{}
	var changed []model.Card
	for pos, ci := range seq {
		c := &s.crds[ci]
		if c.Position != pos {
			before[c.ID] = c.Position
			c.Position = pos
			changed = append(changed, *c)
		}
	}
	s.mu.Unlock()

	if !s.opt.PersistOrder || len(changed) == 0 {
		return nil
	}
	err := s.persistCardPositions(ctx, changed)
	if err == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	for id, pos := range before {
		if i := s.cardIndexLocked(id); i >= 0 {
			s.crds[i].Position = pos
		}
	}
	s.logger.Warn("card order not saved, reverted", "list", listID, "err", err)
	return wrap("save card order", err)
}

func (s *Synchronizer) persistCardPositions(ctx context.Context, cards []model.Card) error {
	ctx, done := s.bind(ctx)
	defer done()
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range cards {
		pos := c.Position
		id := c.ID
		g.Go(func() error {
			_, err := s.cards.Update(gctx, id, api.CardPatch{Position: &pos})
			return err
		})
	}
	return g.Wait()
}

// MoveToList moves a card to another list at destIndex. Local state changes
// only after the server accepted the move; then both lists are renumbered
// 0..n-1 so they match what the server stored.
func (s *Synchronizer) MoveToList(ctx context.Context, cardID, destListID string, destIndex int) error {
	s.mu.Lock()
	if err := s.readyLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	ci := s.cardIndexLocked(cardID)
	if ci < 0 {
		s.mu.Unlock()
		return fmt.Errorf("card %s: %w", cardID, ErrNotFound)
	}
	if s.listIndexLocked(destListID) < 0 {
		s.mu.Unlock()
		return fmt.Errorf("list %s: %w", destListID, ErrNotFound)
	}
	srcListID := s.crds[ci].ListID
	if srcListID == destListID {
		from := -1
		seq := s.cardsOfLocked(srcListID)
		for pos, i := range seq {
			if i == ci {
				from = pos
			}
		}
		if destIndex >= len(seq) {
			destIndex = len(seq) - 1
		}
		s.mu.Unlock()
		return s.ReorderWithinList(ctx, srcListID, from, max(destIndex, 0))
	}
	if destIndex < 0 {
		s.mu.Unlock()
		return fmt.Errorf("move to %d: %w", destIndex, ErrIndex)
	}
	if n := len(s.cardsOfLocked(destListID)); destIndex > n {
		destIndex = n
	}
	keys := []string{cardKey(cardID), listKey(srcListID), listKey(destListID)}
	if err := s.acquireLocked(keys...); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()
	defer s.release(keys...)

	bctx, done := s.bind(ctx)
	err := s.cards.Move(bctx, cardID, api.MoveRequest{ListID: destListID, Position: destIndex})
	done()
	if err != nil {
		s.logger.Warn("card move rejected", "card", cardID, "to", destListID, "err", err)
		return wrap("move card", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	ci = s.cardIndexLocked(cardID)
	if ci < 0 {
		// deleted while the move was in flight
		return nil
	}
	dest := s.cardsOfLocked(destListID)
	destIndex = min(destIndex, len(dest))
	s.crds[ci].ListID = destListID
	for pos, i := range s.cardsOfLocked(srcListID) {
		s.crds[i].Position = pos
	}
	dest = append(dest[:destIndex], append([]int{ci}, dest[destIndex:]...)...)
	for pos, i := range dest {
		s.crds[i].Position = pos
	}
	return nil
}

// ReorderLists moves the list at index from to index to. Like card
// reorders it shows at once and, with PersistOrder, is written back with
// a revert on failure.
func (s *Synchronizer) ReorderLists(ctx context.Context, from, to int) error {
	s.mu.Lock()
	if err := s.readyLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	n := len(s.lsts)
	if from < 0 || from >= n || to < 0 || to >= n {
		s.mu.Unlock()
		return fmt.Errorf("move list %d to %d of %d: %w", from, to, n, ErrIndex)
	}
	if from == to {
		s.mu.Unlock()
		return nil
	}
	if err := s.acquireLocked(listsKey); err != nil {
		s.mu.Unlock()
		return err
	}
	defer s.release(listsKey)

	before := make(map[string]int, n)
	for _, l := range s.lsts {
		before[l.ID] = l.Position
	}
	moved := s.lsts[from]
	next := append(append([]model.List(nil), s.lsts[:from]...), s.lsts[from+1:]...)
	next = append(next[:to], append([]model.List{moved}, next[to:]...)...)
	var changed []model.List
	for pos := range next {
		if next[pos].Position != pos {
			next[pos].Position = pos
			changed = append(changed, next[pos])
		}
	}
	s.lsts = next
	s.mu.Unlock()

	if !s.opt.PersistOrder || len(changed) == 0 {
		return nil
	}
	err := s.persistListPositions(ctx, changed)
	if err == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	// Revert by id: lists created or deleted meanwhile stay as they are.
	for i := range s.lsts {
		if pos, ok := before[s.lsts[i].ID]; ok {
			s.lsts[i].Position = pos
		}
	}
	slices.SortStableFunc(s.lsts, func(a, b model.List) int { return cmp.Compare(a.Position, b.Position) })
	s.logger.Warn("list order not saved, reverted", "err", err)
	return wrap("save list order", err)
}

func (s *Synchronizer) persistListPositions(ctx context.Context, lists []model.List) error {
	ctx, done := s.bind(ctx)
	defer done()
	g, gctx := errgroup.WithContext(ctx)
	for _, l := range lists {
		pos := l.Position
		id := l.ID
		g.Go(func() error {
			_, err := s.lists.Update(gctx, id, api.ListPatch{Position: &pos})
			return err
		})
	}
	return g.Wait()
}
