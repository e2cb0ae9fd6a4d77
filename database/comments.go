package database

import (
	"context"
	"fmt"
)

func (q *Queries) CreateComment(ctx context.Context, cardID int64, text string) (*Comment, error) {
	var id int64
	err := q.db.QueryRowContext(ctx,
		`INSERT INTO comments (card_id, text) VALUES ($1, $2) RETURNING id`,
		cardID, text,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to insert comment: %w", err)
	}
	return q.GetComment(ctx, id)
}

func (q *Queries) GetComment(ctx context.Context, id int64) (*Comment, error) {
	c := &Comment{}
	err := q.db.QueryRowContext(ctx,
		`SELECT id, card_id, text, created_at, updated_at FROM comments WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.CardID, &c.Text, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

// CommentOwner returns the card and the user owning the board the comment
// lives on.
func (q *Queries) CommentOwner(ctx context.Context, commentID int64) (cardID, userID int64, err error) {
	err = q.db.QueryRowContext(ctx,
		`SELECT k.id, b.user_id
		 FROM comments m
		 JOIN cards k ON k.id = m.card_id
		 JOIN columns c ON c.id = k.column_id
		 JOIN boards b ON b.id = c.board_id
		 WHERE m.id = $1`,
		commentID,
	).Scan(&cardID, &userID)
	if err != nil {
		return 0, 0, notFound(err)
	}
	return cardID, userID, nil
}

// ListCommentsByCard returns the card's comments, oldest first.
func (q *Queries) ListCommentsByCard(ctx context.Context, cardID int64) ([]*Comment, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, card_id, text, created_at, updated_at FROM comments WHERE card_id = $1 ORDER BY created_at, id`,
		cardID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying comments for card: %w", err)
	}
	defer rows.Close()

	comments := []*Comment{}
	for rows.Next() {
		c := &Comment{}
		if err := rows.Scan(&c.ID, &c.CardID, &c.Text, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning comment row: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating comment rows: %w", err)
	}
	return comments, nil
}

func (q *Queries) UpdateCommentText(ctx context.Context, id int64, text string) (*Comment, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE comments SET text = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`,
		text, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update comment: %w", err)
	}
	if err := expectRows(res); err != nil {
		return nil, err
	}
	return q.GetComment(ctx, id)
}

func (q *Queries) DeleteComment(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	return expectRows(res)
}
