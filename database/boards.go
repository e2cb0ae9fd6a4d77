package database

import (
	"context"
	"fmt"
)

func (q *Queries) CreateBoard(ctx context.Context, userID int64, title string) (*Board, error) {
	var id int64
	err := q.db.QueryRowContext(ctx,
		`INSERT INTO boards (title, user_id) VALUES ($1, $2) RETURNING id`,
		title, userID,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to insert board: %w", err)
	}
	return q.GetBoard(ctx, id)
}

func (q *Queries) GetBoard(ctx context.Context, id int64) (*Board, error) {
	b := &Board{}
	err := q.db.QueryRowContext(ctx,
		`SELECT id, title, user_id, created_at FROM boards WHERE id = $1`,
		id,
	).Scan(&b.ID, &b.Title, &b.UserID, &b.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return b, nil
}

// ListBoardsByUser returns the user's boards, oldest first.
func (q *Queries) ListBoardsByUser(ctx context.Context, userID int64) ([]*Board, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, title, user_id, created_at FROM boards WHERE user_id = $1 ORDER BY id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying boards: %w", err)
	}
	defer rows.Close()

	boards := []*Board{}
	for rows.Next() {
		b := &Board{}
		if err := rows.Scan(&b.ID, &b.Title, &b.UserID, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning board row: %w", err)
		}
		boards = append(boards, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating board rows: %w", err)
	}
	return boards, nil
}

func (q *Queries) UpdateBoardTitle(ctx context.Context, id int64, title string) (*Board, error) {
	res, err := q.db.ExecContext(ctx, `UPDATE boards SET title = $1 WHERE id = $2`, title, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update board: %w", err)
	}
	if err := expectRows(res); err != nil {
		return nil, err
	}
	return q.GetBoard(ctx, id)
}

// DeleteCardsByBoard removes every card whose column belongs to the board.
// Comments follow through the card foreign key cascade.
func (q *Queries) DeleteCardsByBoard(ctx context.Context, boardID int64) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM cards WHERE column_id IN (SELECT id FROM columns WHERE board_id = $1)`,
		boardID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete board cards: %w", err)
	}
	return res.RowsAffected()
}

func (q *Queries) DeleteColumnsByBoard(ctx context.Context, boardID int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM columns WHERE board_id = $1`, boardID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete board columns: %w", err)
	}
	return res.RowsAffected()
}

func (q *Queries) DeleteBoard(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM boards WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete board: %w", err)
	}
	return expectRows(res)
}
