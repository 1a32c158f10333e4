// Package export writes a board with its lists and cards as one JSON
// document, either to disk or to an S3 compatible bucket.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Makepad-fr/smartboard/internal/board"
	"github.com/Makepad-fr/smartboard/internal/model"
)

// Snapshot is the exported document.
type Snapshot struct {
	Board      model.Board  `json:"board"`
	Lists      []model.List `json:"lists"`
	Cards      []model.Card `json:"cards"`
	ExportedAt time.Time    `json:"exportedAt"`
}

// Exporter stores a snapshot and returns where it went.
type Exporter interface {
	Export(ctx context.Context, s Snapshot) (string, error)
}

var ErrNotReady = errors.New("board is not loaded")

// FromView builds a snapshot from a loaded board. Lists keep display order;
// cards are grouped by list in that order, then by position.
func FromView(v board.View, now time.Time) (Snapshot, error) {
	if v.Status != board.StatusReady {
		return Snapshot{}, ErrNotReady
	}
	order := make(map[string]int, len(v.Lists))
	for i, l := range v.Lists {
		order[l.ID] = i
	}
	cards := append([]model.Card(nil), v.Cards...)
	sort.SliceStable(cards, func(i, j int) bool {
		li, lj := order[cards[i].ListID], order[cards[j].ListID]
		if li != lj {
			return li < lj
		}
		return cards[i].Position < cards[j].Position
	})
	if cards == nil {
		cards = []model.Card{}
	}
	lists := v.Lists
	if lists == nil {
		lists = []model.List{}
	}
	return Snapshot{Board: v.Board, Lists: lists, Cards: cards, ExportedAt: now.UTC()}, nil
}

// Key is the object key / file name used for a board.
func Key(boardID string) string { return "boards/" + boardID + ".json" }

// FileExporter writes snapshots under Dir, or to Path when set.
type FileExporter struct {
	Dir  string
	Path string
}

func (f FileExporter) Export(_ context.Context, s Snapshot) (string, error) {
	path := f.Path
	if path == "" {
		path = filepath.Join(f.Dir, filepath.FromSlash(Key(s.Board.ID)))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("mkdir: %w", err)
	}
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", fmt.Errorf("write: %w", err)
	}
	return path, nil
}
