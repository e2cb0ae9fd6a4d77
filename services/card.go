package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/CrowderSoup/kanban/database"
)

// CardPlacement is one entry of a bulk card reorder.
type CardPlacement struct {
	ID       int64 `json:"id"`
	Order    int   `json:"order"`
	ColumnID int64 `json:"columnId"`
}

// CardUpdate carries the fields of a partial card update. Nil fields are left
// alone. An empty Color clears the color.
type CardUpdate struct {
	Title    *string
	Color    *string
	ColumnID *int64
	Order    *int
}

type CardService struct {
	store  *database.Store
	notify Notifier
}

func NewCardService(store *database.Store, notify Notifier) *CardService {
	if notify == nil {
		notify = nopNotifier{}
	}
	return &CardService{store: store, notify: notify}
}

func (s *CardService) List(ctx context.Context, userID, columnID int64) ([]*database.Card, error) {
	if _, err := ownColumn(ctx, s.store.Queries, userID, columnID); err != nil {
		return nil, err
	}
	return s.store.ListCardsByColumn(ctx, columnID)
}

// Create appends a card to the column.
func (s *CardService) Create(ctx context.Context, userID, columnID int64, title string, color *string) (*database.Card, error) {
	title, err := requireTitle("title", title)
	if err != nil {
		return nil, err
	}
	if err := requireID("columnId", columnID); err != nil {
		return nil, err
	}

	var (
		card    *database.Card
		boardID int64
	)
	err = s.store.InTx(ctx, func(q *database.Queries) error {
		boardID, err = ownColumn(ctx, q, userID, columnID)
		if err != nil {
			return err
		}
		card, err = q.CreateCard(ctx, columnID, title, normalizeColor(color))
		return err
	})
	if err != nil {
		return nil, err
	}

	s.changed(userID, boardID)
	return card, nil
}

// Update applies a partial update. A new columnId or order moves the card,
// with the order clamped into the destination's range.
func (s *CardService) Update(ctx context.Context, userID, cardID int64, upd CardUpdate) (*database.Card, error) {
	if upd.Title == nil && upd.Color == nil && upd.ColumnID == nil && upd.Order == nil {
		return nil, invalid("", "no fields provided to update")
	}
	if upd.Title != nil {
		title, err := requireTitle("title", *upd.Title)
		if err != nil {
			return nil, err
		}
		upd.Title = &title
	}
	if upd.ColumnID != nil {
		if err := requireID("columnId", *upd.ColumnID); err != nil {
			return nil, err
		}
	}
	if upd.Order != nil && *upd.Order < 0 {
		return nil, invalid("order", "must not be negative")
	}

	var (
		card   *database.Card
		boards []int64
	)
	err := s.store.InTx(ctx, func(q *database.Queries) error {
		srcColumn, boardID, ownerID, err := q.CardOwner(ctx, cardID)
		if err := authorize(ownerID, userID, err); err != nil {
			return err
		}
		boards = append(boards, boardID)

		current, err := q.GetCard(ctx, cardID)
		if err != nil {
			return translate(err)
		}

		if upd.Title != nil || upd.Color != nil {
			title, color := current.Title, current.Color
			if upd.Title != nil {
				title = *upd.Title
			}
			if upd.Color != nil {
				color = normalizeColor(upd.Color)
			}
			if err := q.UpdateCardDetails(ctx, cardID, title, color); err != nil {
				return translate(err)
			}
		}

		if upd.ColumnID != nil || upd.Order != nil {
			dstColumn := srcColumn
			if upd.ColumnID != nil {
				dstColumn = *upd.ColumnID
			}
			index := current.Order
			if upd.Order != nil {
				index = *upd.Order
			}

			dstBoard, err := s.place(ctx, q, userID, cardID, srcColumn, dstColumn, index, true)
			if err != nil {
				return err
			}
			if dstBoard != boardID {
				boards = append(boards, dstBoard)
			}
		}

		card, err = q.GetCard(ctx, cardID)
		return translate(err)
	})
	if err != nil {
		return nil, err
	}

	for _, boardID := range boards {
		s.changed(userID, boardID)
	}
	return card, nil
}

// Delete removes the card and its comments and closes the gap in its column.
func (s *CardService) Delete(ctx context.Context, userID, cardID int64) error {
	var boardID int64
	err := s.store.InTx(ctx, func(q *database.Queries) error {
		columnID, b, ownerID, err := q.CardOwner(ctx, cardID)
		if err := authorize(ownerID, userID, err); err != nil {
			return err
		}
		boardID = b

		if err := q.DeleteCard(ctx, cardID); err != nil {
			return translate(err)
		}

		rest, err := q.ListCardsByColumn(ctx, columnID)
		if err != nil {
			return err
		}
		return saveCardPlacement(ctx, q, Renumber(rest))
	})
	if err != nil {
		return err
	}

	s.changed(userID, boardID)
	return nil
}

// Move puts the card at index in columnID, which may be its current column.
// An index outside the destination's range is rejected.
func (s *CardService) Move(ctx context.Context, userID, cardID, columnID int64, index int) (*database.Card, error) {
	if err := requireID("columnId", columnID); err != nil {
		return nil, err
	}
	if index < 0 {
		return nil, invalid("index", "must not be negative")
	}

	var (
		card   *database.Card
		boards []int64
	)
	err := s.store.InTx(ctx, func(q *database.Queries) error {
		srcColumn, boardID, ownerID, err := q.CardOwner(ctx, cardID)
		if err := authorize(ownerID, userID, err); err != nil {
			return err
		}
		boards = append(boards, boardID)

		dstBoard, err := s.place(ctx, q, userID, cardID, srcColumn, columnID, index, false)
		if err != nil {
			return err
		}
		if dstBoard != boardID {
			boards = append(boards, dstBoard)
		}

		card, err = q.GetCard(ctx, cardID)
		return translate(err)
	})
	if err != nil {
		return nil, err
	}

	for _, boardID := range boards {
		s.changed(userID, boardID)
	}
	return card, nil
}

// place moves a card inside a transaction and renumbers the lists involved.
// It returns the destination board.
func (s *CardService) place(ctx context.Context, q *database.Queries, userID, cardID, srcColumn, dstColumn int64, index int, clampIndex bool) (int64, error) {
	dstBoard, err := ownColumn(ctx, q, userID, dstColumn)
	if err != nil {
		return 0, fmt.Errorf("destination column: %w", err)
	}

	src, err := q.ListCardsByColumn(ctx, srcColumn)
	if err != nil {
		return 0, err
	}
	from := indexOf(src, cardID)

	if srcColumn == dstColumn {
		if clampIndex {
			index = clamp(index, 0, len(src)-1)
		}
		moved, err := MoveWithin(src, from, index)
		if err != nil {
			return 0, err
		}
		return dstBoard, saveCardPlacement(ctx, q, moved)
	}

	dst, err := q.ListCardsByColumn(ctx, dstColumn)
	if err != nil {
		return 0, err
	}
	if clampIndex {
		index = clamp(index, 0, len(dst))
	}

	newSrc, newDst, err := MoveAcross(src, dst, from, index)
	if err != nil {
		return 0, err
	}
	src[from].ColumnID = dstColumn

	if err := saveCardPlacement(ctx, q, newSrc); err != nil {
		return 0, err
	}
	return dstBoard, saveCardPlacement(ctx, q, newDst)
}

// Reorder applies a bulk reorder that may move cards between columns.
// Submitted cards land at their requested index in the destination column and
// the column's other cards fill the remaining slots. The columns the cards
// left are closed up. Everything
// commits or fails together. The returned cards carry their final placement.
func (s *CardService) Reorder(ctx context.Context, userID int64, placements []CardPlacement) ([]*database.Card, error) {
	if err := validateCardPlacements(placements); err != nil {
		return nil, err
	}

	var (
		updated []*database.Card
		boards  []int64
	)
	err := s.store.InTx(ctx, func(q *database.Queries) error {
		seenBoard := map[int64]bool{}
		touchBoard := func(id int64) {
			if !seenBoard[id] {
				seenBoard[id] = true
				boards = append(boards, id)
			}
		}

		byColumn := map[int64][]*database.Card{}
		var columns []int64
		touchColumn := func(id int64) {
			if _, ok := byColumn[id]; !ok {
				byColumn[id] = nil
				columns = append(columns, id)
			}
		}

		moved := map[int64]struct{}{}
		for _, p := range placements {
			_, srcBoard, ownerID, err := q.CardOwner(ctx, p.ID)
			if err := authorize(ownerID, userID, err); err != nil {
				return err
			}
			dstBoard, err := ownColumn(ctx, q, userID, p.ColumnID)
			if err != nil {
				return fmt.Errorf("destination column: %w", err)
			}

			card, err := q.GetCard(ctx, p.ID)
			if err != nil {
				return translate(err)
			}
			moved[card.ID] = struct{}{}

			touchColumn(card.ColumnID)
			touchColumn(p.ColumnID)
			touchBoard(srcBoard)
			touchBoard(dstBoard)

			card.ColumnID = p.ColumnID
			card.Order = p.Order
			byColumn[p.ColumnID] = append(byColumn[p.ColumnID], card)
			updated = append(updated, card)
		}

		for _, columnID := range columns {
			current, err := q.ListCardsByColumn(ctx, columnID)
			if err != nil {
				return err
			}
			rest := make([]*database.Card, 0, len(current))
			for _, c := range current {
				if _, ok := moved[c.ID]; ok {
					continue
				}
				rest = append(rest, c)
			}

			if err := saveCardPlacement(ctx, q, Arrange(byColumn[columnID], rest)); err != nil {
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

func (s *CardService) changed(userID, boardID int64) {
	s.notify.Publish(userID, WebSocketMessage{Type: EventBoardChanged, Data: BoardEvent{BoardID: boardID}})
}

// saveCardPlacement writes the column and position of every card, including
// those that kept their place.
func saveCardPlacement(ctx context.Context, q *database.Queries, cards []*database.Card) error {
	for _, c := range cards {
		if err := q.SetCardPlacement(ctx, c.ID, c.ColumnID, c.Order); err != nil {
			return fmt.Errorf("saving card %d placement: %w", c.ID, translate(err))
		}
	}
	return nil
}

func normalizeColor(color *string) *string {
	if color == nil {
		return nil
	}
	c := strings.TrimSpace(*color)
	if c == "" {
		return nil
	}
	return &c
}

func validateCardPlacements(placements []CardPlacement) error {
	if len(placements) == 0 {
		return invalid("cards", "must be a non-empty array")
	}
	seen := make(map[int64]struct{}, len(placements))
	for i, p := range placements {
		if p.ID <= 0 {
			return invalid(fmt.Sprintf("cards[%d].id", i), "must be a positive integer")
		}
		if p.ColumnID <= 0 {
			return invalid(fmt.Sprintf("cards[%d].columnId", i), "must be a positive integer")
		}
		if p.Order < 0 {
			return invalid(fmt.Sprintf("cards[%d].order", i), "must not be negative")
		}
		if _, dup := seen[p.ID]; dup {
			return invalid("cards", fmt.Sprintf("contains id %d more than once", p.ID))
		}
		seen[p.ID] = struct{}{}
	}
	return nil
}
