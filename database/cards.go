package database

import (
	"context"
	"fmt"
)

const cardColumns = `id, title, column_id, position, color, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (*Card, error) {
	c := &Card{}
	if err := row.Scan(&c.ID, &c.Title, &c.ColumnID, &c.Order, &c.Color, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return c, nil
}

// CreateCard appends a card to the end of the column.
func (q *Queries) CreateCard(ctx context.Context, columnID int64, title string, color *string) (*Card, error) {
	var id int64
	err := q.db.QueryRowContext(ctx,
		`INSERT INTO cards (title, column_id, position, color)
		 VALUES ($1, $2, (SELECT COALESCE(MAX(position), -1) + 1 FROM cards WHERE column_id = $2), $3)
		 RETURNING id`,
		title, columnID, color,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to insert card: %w", err)
	}
	return q.GetCard(ctx, id)
}

func (q *Queries) GetCard(ctx context.Context, id int64) (*Card, error) {
	c, err := scanCard(q.db.QueryRowContext(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

// CardOwner returns the column, board and owning user of a card.
func (q *Queries) CardOwner(ctx context.Context, cardID int64) (columnID, boardID, userID int64, err error) {
	err = q.db.QueryRowContext(ctx,
		`SELECT c.id, b.id, b.user_id
		 FROM cards k
		 JOIN columns c ON c.id = k.column_id
		 JOIN boards b ON b.id = c.board_id
		 WHERE k.id = $1`,
		cardID,
	).Scan(&columnID, &boardID, &userID)
	if err != nil {
		return 0, 0, 0, notFound(err)
	}
	return columnID, boardID, userID, nil
}

// ListCardsByColumn returns the column's cards ordered by position.
func (q *Queries) ListCardsByColumn(ctx context.Context, columnID int64) ([]*Card, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE column_id = $1 ORDER BY position, id`,
		columnID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying cards for column: %w", err)
	}
	defer rows.Close()

	cards := []*Card{}
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning card row: %w", err)
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating card rows: %w", err)
	}
	return cards, nil
}

// UpdateCardDetails writes the title and color of a card.
func (q *Queries) UpdateCardDetails(ctx context.Context, id int64, title string, color *string) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE cards SET title = $1, color = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $3`,
		title, color, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update card: %w", err)
	}
	return expectRows(res)
}

// SetCardPlacement moves a card to a column and position in one statement,
// so the two values never disagree.
func (q *Queries) SetCardPlacement(ctx context.Context, id, columnID int64, position int) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE cards SET column_id = $1, position = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $3`,
		columnID, position, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update card placement: %w", err)
	}
	return expectRows(res)
}

// DeleteCard removes the card; comments go with it through the cascade.
func (q *Queries) DeleteCard(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM cards WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete card: %w", err)
	}
	return expectRows(res)
}
