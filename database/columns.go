package database

import (
	"context"
	"fmt"
)

// CreateColumn appends a column to the end of the board. The position is
// computed here so concurrent appends cannot reuse a stale client count.
func (q *Queries) CreateColumn(ctx context.Context, boardID int64, title string) (*Column, error) {
	var id int64
	err := q.db.QueryRowContext(ctx,
		`INSERT INTO columns (title, board_id, position)
		 VALUES ($1, $2, (SELECT COALESCE(MAX(position), -1) + 1 FROM columns WHERE board_id = $2))
		 RETURNING id`,
		title, boardID,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to insert column: %w", err)
	}
	return q.GetColumn(ctx, id)
}

func (q *Queries) GetColumn(ctx context.Context, id int64) (*Column, error) {
	c := &Column{}
	err := q.db.QueryRowContext(ctx,
		`SELECT id, title, board_id, position FROM columns WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.Title, &c.BoardID, &c.Order)
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

// ColumnOwner returns the board and the owning user of a column.
func (q *Queries) ColumnOwner(ctx context.Context, columnID int64) (boardID, userID int64, err error) {
	err = q.db.QueryRowContext(ctx,
		`SELECT b.id, b.user_id
		 FROM columns c JOIN boards b ON b.id = c.board_id
		 WHERE c.id = $1`,
		columnID,
	).Scan(&boardID, &userID)
	if err != nil {
		return 0, 0, notFound(err)
	}
	return boardID, userID, nil
}

// ListColumnsByBoard returns the board's columns ordered by position.
func (q *Queries) ListColumnsByBoard(ctx context.Context, boardID int64) ([]*Column, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, title, board_id, position FROM columns WHERE board_id = $1 ORDER BY position, id`,
		boardID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying columns for board: %w", err)
	}
	defer rows.Close()

	columns := []*Column{}
	for rows.Next() {
		c := &Column{}
		if err := rows.Scan(&c.ID, &c.Title, &c.BoardID, &c.Order); err != nil {
			return nil, fmt.Errorf("scanning column row: %w", err)
		}
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating column rows: %w", err)
	}
	return columns, nil
}

func (q *Queries) UpdateColumnTitle(ctx context.Context, id int64, title string) (*Column, error) {
	res, err := q.db.ExecContext(ctx, `UPDATE columns SET title = $1 WHERE id = $2`, title, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update column: %w", err)
	}
	if err := expectRows(res); err != nil {
		return nil, err
	}
	return q.GetColumn(ctx, id)
}

func (q *Queries) SetColumnPosition(ctx context.Context, id int64, position int) error {
	res, err := q.db.ExecContext(ctx, `UPDATE columns SET position = $1 WHERE id = $2`, position, id)
	if err != nil {
		return fmt.Errorf("failed to update column position: %w", err)
	}
	return expectRows(res)
}

// DeleteColumn removes the column; its cards and their comments go with it
// through the foreign key cascade.
func (q *Queries) DeleteColumn(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM columns WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete column: %w", err)
	}
	return expectRows(res)
}
