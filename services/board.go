package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/CrowderSoup/kanban/database"
)

const maxTitleLen = 255

// BoardService owns boards and their cascade deletion.
type BoardService struct {
	store  *database.Store
	notify Notifier
}

func NewBoardService(store *database.Store, notify Notifier) *BoardService {
	if notify == nil {
		notify = nopNotifier{}
	}
	return &BoardService{store: store, notify: notify}
}

// List returns the user's boards with their columns attached.
func (s *BoardService) List(ctx context.Context, userID int64) ([]*database.Board, error) {
	boards, err := s.store.ListBoardsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, b := range boards {
		cols, err := s.store.ListColumnsByBoard(ctx, b.ID)
		if err != nil {
			return nil, err
		}
		b.Columns = cols
	}
	return boards, nil
}

func (s *BoardService) Create(ctx context.Context, userID int64, title string) (*database.Board, error) {
	title, err := requireTitle("title", title)
	if err != nil {
		return nil, err
	}
	board, err := s.store.CreateBoard(ctx, userID, title)
	if err != nil {
		return nil, err
	}

	s.notify.Publish(userID, WebSocketMessage{Type: EventBoardChanged, Data: BoardEvent{BoardID: board.ID}})
	return board, nil
}

func (s *BoardService) Rename(ctx context.Context, userID, boardID int64, title string) (*database.Board, error) {
	title, err := requireTitle("title", title)
	if err != nil {
		return nil, err
	}

	var board *database.Board
	err = s.store.InTx(ctx, func(q *database.Queries) error {
		if _, err := ownBoard(ctx, q, userID, boardID); err != nil {
			return err
		}
		board, err = q.UpdateBoardTitle(ctx, boardID, title)
		return translate(err)
	})
	if err != nil {
		return nil, err
	}

	s.notify.Publish(userID, WebSocketMessage{Type: EventBoardChanged, Data: BoardEvent{BoardID: boardID}})
	return board, nil
}

// Delete removes the board together with its columns, their cards and those
// cards' comments. Nothing is removed unless the whole cascade succeeds.
func (s *BoardService) Delete(ctx context.Context, userID, boardID int64) error {
	err := s.store.InTx(ctx, func(q *database.Queries) error {
		if _, err := ownBoard(ctx, q, userID, boardID); err != nil {
			return err
		}

		cards, err := q.DeleteCardsByBoard(ctx, boardID)
		if err != nil {
			return fmt.Errorf("deleting cards: %w", err)
		}
		cols, err := q.DeleteColumnsByBoard(ctx, boardID)
		if err != nil {
			return fmt.Errorf("deleting columns: %w", err)
		}
		if err := q.DeleteBoard(ctx, boardID); err != nil {
			return translate(err)
		}

		slog.Info("board deleted", "board", boardID, "user", userID, "columns", cols, "cards", cards)
		return nil
	})
	if err != nil {
		return err
	}

	s.notify.Publish(userID, WebSocketMessage{Type: EventBoardDeleted, Data: BoardEvent{BoardID: boardID}})
	return nil
}

// ownBoard loads the board and checks that userID owns it.
func ownBoard(ctx context.Context, q *database.Queries, userID, boardID int64) (*database.Board, error) {
	b, err := q.GetBoard(ctx, boardID)
	if err != nil {
		return nil, translate(err)
	}
	if b.UserID != userID {
		return nil, ErrForbidden
	}
	return b, nil
}

func requireTitle(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", invalid(field, "is required")
	}
	if len(value) > maxTitleLen {
		return "", invalid(field, fmt.Sprintf("must be at most %d characters", maxTitleLen))
	}
	return value, nil
}

func requireID(field string, id int64) error {
	if id <= 0 {
		return invalid(field, "must be a positive integer")
	}
	return nil
}
