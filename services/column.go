package services

import (
	"context"
	"fmt"

	"github.com/CrowderSoup/kanban/database"
)

// ColumnPlacement is one entry of a bulk column reorder.
type ColumnPlacement struct {
	ID    int64 `json:"id"`
	Order int   `json:"order"`
}

type ColumnService struct {
	store  *database.Store
	notify Notifier
}

func NewColumnService(store *database.Store, notify Notifier) *ColumnService {
	if notify == nil {
		notify = nopNotifier{}
	}
	return &ColumnService{store: store, notify: notify}
}

// List returns the board's columns in order, each with its cards.
func (s *ColumnService) List(ctx context.Context, userID, boardID int64) ([]*database.Column, error) {
	if _, err := ownBoard(ctx, s.store.Queries, userID, boardID); err != nil {
		return nil, err
	}

	cols, err := s.store.ListColumnsByBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	for _, c := range cols {
		cards, err := s.store.ListCardsByColumn(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		c.Cards = cards
	}
	return cols, nil
}

// Create appends a column to the board.
func (s *ColumnService) Create(ctx context.Context, userID, boardID int64, title string) (*database.Column, error) {
	title, err := requireTitle("title", title)
	if err != nil {
		return nil, err
	}
	if err := requireID("boardId", boardID); err != nil {
		return nil, err
	}

	var col *database.Column
	err = s.store.InTx(ctx, func(q *database.Queries) error {
		if _, err := ownBoard(ctx, q, userID, boardID); err != nil {
			return err
		}
		col, err = q.CreateColumn(ctx, boardID, title)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.changed(userID, boardID)
	return col, nil
}

func (s *ColumnService) Rename(ctx context.Context, userID, columnID int64, title string) (*database.Column, error) {
	title, err := requireTitle("title", title)
	if err != nil {
		return nil, err
	}

	var col *database.Column
	err = s.store.InTx(ctx, func(q *database.Queries) error {
		if _, err := ownColumn(ctx, q, userID, columnID); err != nil {
			return err
		}
		col, err = q.UpdateColumnTitle(ctx, columnID, title)
		return translate(err)
	})
	if err != nil {
		return nil, err
	}

	s.changed(userID, col.BoardID)
	return col, nil
}

// Delete removes the column with its cards and comments and closes the gap
// it leaves in the board.
func (s *ColumnService) Delete(ctx context.Context, userID, columnID int64) error {
	var boardID int64
	err := s.store.InTx(ctx, func(q *database.Queries) error {
		var err error
		boardID, err = ownColumn(ctx, q, userID, columnID)
		if err != nil {
			return err
		}
		if err := q.DeleteColumn(ctx, columnID); err != nil {
			return translate(err)
		}

		rest, err := q.ListColumnsByBoard(ctx, boardID)
		if err != nil {
			return err
		}
		return saveColumnOrder(ctx, q, Renumber(rest))
	})
	if err != nil {
		return err
	}

	s.changed(userID, boardID)
	return nil
}

// Reorder applies a bulk reorder. Every board touched by the submission is
// renumbered densely, and the whole batch commits or fails together. The
// returned columns carry their final order.
func (s *ColumnService) Reorder(ctx context.Context, userID int64, placements []ColumnPlacement) ([]*database.Column, error) {
	if err := validateColumnPlacements(placements); err != nil {
		return nil, err
	}

	var (
		updated []*database.Column
		boards  []int64
	)
	err := s.store.InTx(ctx, func(q *database.Queries) error {
		byBoard := map[int64][]*database.Column{}
		for _, p := range placements {
			col, err := q.GetColumn(ctx, p.ID)
			if err != nil {
				return translate(err)
			}
			if _, err := ownBoard(ctx, q, userID, col.BoardID); err != nil {
				return err
			}
			if _, seen := byBoard[col.BoardID]; !seen {
				boards = append(boards, col.BoardID)
			}
			col.Order = p.Order
			byBoard[col.BoardID] = append(byBoard[col.BoardID], col)
			updated = append(updated, col)
		}

		for _, boardID := range boards {
			current, err := q.ListColumnsByBoard(ctx, boardID)
			if err != nil {
				return err
			}
			if err := saveColumnOrder(ctx, q, Arrange(byBoard[boardID], current)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, boardID := range boards {
		s.changed(userID, boardID)
	}
	return updated, nil
}

// Move puts the column at index within its board and returns the board's
// columns in their new order.
func (s *ColumnService) Move(ctx context.Context, userID, columnID int64, index int) ([]*database.Column, error) {
	var (
		cols    []*database.Column
		boardID int64
	)
	err := s.store.InTx(ctx, func(q *database.Queries) error {
		var err error
		boardID, err = ownColumn(ctx, q, userID, columnID)
		if err != nil {
			return err
		}

		current, err := q.ListColumnsByBoard(ctx, boardID)
		if err != nil {
			return err
		}
		cols, err = MoveWithin(current, indexOf(current, columnID), index)
		if err != nil {
			return err
		}
		return saveColumnOrder(ctx, q, cols)
	})
	if err != nil {
		return nil, err
	}

	s.changed(userID, boardID)
	return cols, nil
}

func (s *ColumnService) changed(userID, boardID int64) {
	s.notify.Publish(userID, WebSocketMessage{Type: EventBoardChanged, Data: BoardEvent{BoardID: boardID}})
}

// ownColumn checks that userID owns the column's board and returns the board id.
func ownColumn(ctx context.Context, q *database.Queries, userID, columnID int64) (int64, error) {
	boardID, ownerID, err := q.ColumnOwner(ctx, columnID)
	if err := authorize(ownerID, userID, err); err != nil {
		return 0, err
	}
	return boardID, nil
}

// saveColumnOrder writes the position of every column.
func saveColumnOrder(ctx context.Context, q *database.Queries, cols []*database.Column) error {
	for _, c := range cols {
		if err := q.SetColumnPosition(ctx, c.ID, c.Order); err != nil {
			return fmt.Errorf("saving column %d position: %w", c.ID, translate(err))
		}
	}
	return nil
}

func validateColumnPlacements(placements []ColumnPlacement) error {
	if len(placements) == 0 {
		return invalid("columns", "must be a non-empty array")
	}
	seen := make(map[int64]struct{}, len(placements))
	for i, p := range placements {
		if p.ID <= 0 {
			return invalid(fmt.Sprintf("columns[%d].id", i), "must be a positive integer")
		}
		if p.Order < 0 {
			return invalid(fmt.Sprintf("columns[%d].order", i), "must not be negative")
		}
		if _, dup := seen[p.ID]; dup {
			return invalid("columns", fmt.Sprintf("contains id %d more than once", p.ID))
		}
		seen[p.ID] = struct{}{}
	}
	return nil
}
