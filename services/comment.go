package services

import (
	"context"
	"strings"

	"github.com/CrowderSoup/kanban/database"
)

// CommentService scopes every comment operation through the card's board, so
// a user only ever sees comments on boards they own.
type CommentService struct {
	store  *database.Store
	notify Notifier
}

func NewCommentService(store *database.Store, notify Notifier) *CommentService {
	if notify == nil {
		notify = nopNotifier{}
	}
	return &CommentService{store: store, notify: notify}
}

func (s *CommentService) List(ctx context.Context, userID, cardID int64) ([]*database.Comment, error) {
	if _, err := ownCard(ctx, s.store.Queries, userID, cardID); err != nil {
		return nil, err
	}
	return s.store.ListCommentsByCard(ctx, cardID)
}

func (s *CommentService) Create(ctx context.Context, userID, cardID int64, text string) (*database.Comment, error) {
	text, err := requireText(text)
	if err != nil {
		return nil, err
	}
	if err := requireID("cardId", cardID); err != nil {
		return nil, err
	}

	boardID, err := ownCard(ctx, s.store.Queries, userID, cardID)
	if err != nil {
		return nil, err
	}
	comment, err := s.store.CreateComment(ctx, cardID, text)
	if err != nil {
		return nil, translate(err)
	}

	s.changed(userID, boardID)
	return comment, nil
}

func (s *CommentService) Update(ctx context.Context, userID, commentID int64, text string) (*database.Comment, error) {
	text, err := requireText(text)
	if err != nil {
		return nil, err
	}

	boardID, err := s.ownComment(ctx, userID, commentID)
	if err != nil {
		return nil, err
	}
	comment, err := s.store.UpdateCommentText(ctx, commentID, text)
	if err != nil {
		return nil, translate(err)
	}

	s.changed(userID, boardID)
	return comment, nil
}

func (s *CommentService) Delete(ctx context.Context, userID, commentID int64) error {
	boardID, err := s.ownComment(ctx, userID, commentID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteComment(ctx, commentID); err != nil {
		return translate(err)
	}

	s.changed(userID, boardID)
	return nil
}

func (s *CommentService) ownComment(ctx context.Context, userID, commentID int64) (int64, error) {
	cardID, ownerID, err := s.store.CommentOwner(ctx, commentID)
	if err := authorize(ownerID, userID, err); err != nil {
		return 0, err
	}
	return ownCard(ctx, s.store.Queries, userID, cardID)
}

func (s *CommentService) changed(userID, boardID int64) {
	s.notify.Publish(userID, WebSocketMessage{Type: EventBoardChanged, Data: BoardEvent{BoardID: boardID}})
}

// ownCard checks that userID owns the card's board and returns the board id.
func ownCard(ctx context.Context, q *database.Queries, userID, cardID int64) (int64, error) {
	_, boardID, ownerID, err := q.CardOwner(ctx, cardID)
	if err := authorize(ownerID, userID, err); err != nil {
		return 0, err
	}
	return boardID, nil
}

func requireText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", invalid("text", "is required")
	}
	return text, nil
}
