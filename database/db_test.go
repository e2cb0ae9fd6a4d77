package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore opens a migrated in-memory SQLite store.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	store, err := Open(ctx, DriverSQLite, "file::memory:?_foreign_keys=on")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate())
	return store
}

// seedBoard creates a user with one board and returns both ids.
func seedBoard(t *testing.T, q *Queries, email string) (userID, boardID int64) {
	t.Helper()
	ctx := context.Background()

	u, err := q.CreateUser(ctx, email, "hash", "")
	require.NoError(t, err)
	b, err := q.CreateBoard(ctx, u.ID, "Board")
	require.NoError(t, err)
	return u.ID, b.ID
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "whatever")
	assert.Error(t, err)
}

func TestMigrateIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.Migrate())
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	u, err := store.CreateUser(ctx, "a@example.com", "hash", "Ann")
	require.NoError(t, err)
	assert.Equal(t, "Ann", u.Name)
	assert.False(t, u.CreatedAt.IsZero())

	_, err = store.CreateUser(ctx, "a@example.com", "other", "")
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	got, err := store.GetUserByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "hash", got.PasswordHash)

	_, err = store.GetUserByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestColumnsAppendDensely(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, boardID := seedBoard(t, store.Queries, "a@example.com")

	for i, title := range []string{"To Do", "Doing", "Done"} {
		c, err := store.CreateColumn(ctx, boardID, title)
		require.NoError(t, err)
		assert.Equal(t, i, c.Order)
	}

	cols, err := store.ListColumnsByBoard(ctx, boardID)
	require.NoError(t, err)
	require.Len(t, cols, 3)
	assert.Equal(t, "Done", cols[2].Title)
}

func TestCardsAppendDenselyPerColumn(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, boardID := seedBoard(t, store.Queries, "a@example.com")

	todo, err := store.CreateColumn(ctx, boardID, "To Do")
	require.NoError(t, err)
	done, err := store.CreateColumn(ctx, boardID, "Done")
	require.NoError(t, err)

	red := "#fecaca"
	for i := 0; i < 5; i++ {
		c, err := store.CreateCard(ctx, todo.ID, "card", &red)
		require.NoError(t, err)
		assert.Equal(t, i, c.Order)
		require.NotNil(t, c.Color)
		assert.Equal(t, red, *c.Color)
	}

	c, err := store.CreateCard(ctx, done.ID, "first", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, c.Order)
	assert.Nil(t, c.Color)
}

func TestDeleteColumnCascadesToCardsAndComments(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, boardID := seedBoard(t, store.Queries, "a@example.com")

	col, err := store.CreateColumn(ctx, boardID, "To Do")
	require.NoError(t, err)
	card, err := store.CreateCard(ctx, col.ID, "X", nil)
	require.NoError(t, err)
	comment, err := store.CreateComment(ctx, card.ID, "hello")
	require.NoError(t, err)

	require.NoError(t, store.DeleteColumn(ctx, col.ID))

	_, err = store.GetCard(ctx, card.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.GetComment(ctx, comment.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteBoardRequiresChildrenFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, boardID := seedBoard(t, store.Queries, "a@example.com")

	col, err := store.CreateColumn(ctx, boardID, "To Do")
	require.NoError(t, err)
	_, err = store.CreateCard(ctx, col.ID, "X", nil)
	require.NoError(t, err)

	// columns.board_id has no cascade, so the board cannot go first
	assert.Error(t, store.DeleteBoard(ctx, boardID))

	n, err := store.DeleteCardsByBoard(ctx, boardID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	n, err = store.DeleteColumnsByBoard(ctx, boardID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	require.NoError(t, store.DeleteBoard(ctx, boardID))

	_, err = store.GetBoard(ctx, boardID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOwnershipLookups(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	userID, boardID := seedBoard(t, store.Queries, "a@example.com")

	col, err := store.CreateColumn(ctx, boardID, "To Do")
	require.NoError(t, err)
	card, err := store.CreateCard(ctx, col.ID, "X", nil)
	require.NoError(t, err)
	comment, err := store.CreateComment(ctx, card.ID, "hi")
	require.NoError(t, err)

	gotBoard, gotUser, err := store.ColumnOwner(ctx, col.ID)
	require.NoError(t, err)
	assert.Equal(t, boardID, gotBoard)
	assert.Equal(t, userID, gotUser)

	gotCol, gotBoard, gotUser, err := store.CardOwner(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, col.ID, gotCol)
	assert.Equal(t, boardID, gotBoard)
	assert.Equal(t, userID, gotUser)

	gotCard, gotUser, err := store.CommentOwner(ctx, comment.ID)
	require.NoError(t, err)
	assert.Equal(t, card.ID, gotCard)
	assert.Equal(t, userID, gotUser)

	_, _, _, err = store.CardOwner(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInTxRollsBackOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, boardID := seedBoard(t, store.Queries, "a@example.com")

	col, err := store.CreateColumn(ctx, boardID, "To Do")
	require.NoError(t, err)

	err = store.InTx(ctx, func(q *Queries) error {
		if err := q.SetColumnPosition(ctx, col.ID, 7); err != nil {
			return err
		}
		return q.SetColumnPosition(ctx, 9999, 0)
	})
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := store.GetColumn(ctx, col.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Order)
}

func TestUpdateTimestampsAndText(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, boardID := seedBoard(t, store.Queries, "a@example.com")

	col, err := store.CreateColumn(ctx, boardID, "To Do")
	require.NoError(t, err)
	card, err := store.CreateCard(ctx, col.ID, "X", nil)
	require.NoError(t, err)
	comment, err := store.CreateComment(ctx, card.ID, "first")
	require.NoError(t, err)

	updated, err := store.UpdateCommentText(ctx, comment.ID, "second")
	require.NoError(t, err)
	assert.Equal(t, "second", updated.Text)

	list, err := store.ListCommentsByCard(ctx, card.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "second", list[0].Text)

	_, err = store.UpdateColumnTitle(ctx, 9999, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}
