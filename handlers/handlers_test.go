package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CrowderSoup/kanban/database"
	"github.com/CrowderSoup/kanban/services"
)

type testServer struct {
	*httptest.Server
	store *database.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	store, err := database.Open(ctx, database.DriverSQLite, "file::memory:?_foreign_keys=on")
	require.NoError(t, err)
	require.NoError(t, store.Migrate())

	hub := services.NewHub()
	hubCtx, stopHub := context.WithCancel(ctx)
	go hub.Run(hubCtx)

	router := NewRouter(Dependencies{
		Auth:     services.NewAuthService(store, "test-secret", time.Hour),
		Boards:   services.NewBoardService(store, hub),
		Columns:  services.NewColumnService(store, hub),
		Cards:    services.NewCardService(store, hub),
		Comments: services.NewCommentService(store, hub),
		Hub:      hub,
		Store:    store,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		stopHub()
		_ = store.Close()
	})
	return &testServer{Server: srv, store: store}
}

// call sends a JSON request and decodes the JSON response into out when out
// is not nil.
func (s *testServer) call(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := s.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(res.Body).Decode(out))
	}
	return res.StatusCode
}

func (s *testServer) register(t *testing.T, email string) string {
	t.Helper()
	var resp map[string]string
	status := s.call(t, "POST", "/api/auth/register", "", map[string]string{
		"email":    email,
		"password": "secret123",
	}, &resp)
	require.Equal(t, http.StatusCreated, status)
	require.NotEmpty(t, resp["token"])
	return resp["token"]
}

func (s *testServer) createBoard(t *testing.T, token, title string) database.Board {
	t.Helper()
	var b database.Board
	require.Equal(t, http.StatusCreated, s.call(t, "POST", "/api/boards", token, map[string]string{"title": title}, &b))
	return b
}

func (s *testServer) createColumn(t *testing.T, token string, boardID int64, title string) database.Column {
	t.Helper()
	var c database.Column
	require.Equal(t, http.StatusCreated, s.call(t, "POST", "/api/columns", token, map[string]any{
		"title": title, "boardId": boardID, "order": 99,
	}, &c))
	return c
}

func (s *testServer) createCard(t *testing.T, token string, columnID int64, title string) database.Card {
	t.Helper()
	var c database.Card
	require.Equal(t, http.StatusCreated, s.call(t, "POST", "/api/cards", token, map[string]any{
		"title": title, "columnId": columnID, "order": 0,
	}, &c))
	return c
}

func TestAuthEndpoints(t *testing.T) {
	s := newTestServer(t)

	token := s.register(t, "ann@example.com")

	var me map[string]any
	require.Equal(t, http.StatusOK, s.call(t, "GET", "/api/auth/me", token, nil, &me))
	assert.Equal(t, "Authenticated", me["message"])
	assert.NotZero(t, me["userId"])

	var errBody map[string]string
	status := s.call(t, "POST", "/api/auth/register", "", map[string]string{
		"email": "ann@example.com", "password": "secret123",
	}, &errBody)
	assert.Equal(t, http.StatusConflict, status)
	assert.NotEmpty(t, errBody["error"])

	var login map[string]string
	require.Equal(t, http.StatusOK, s.call(t, "POST", "/api/auth/login", "", map[string]string{
		"email": "ann@example.com", "password": "secret123",
	}, &login))
	assert.NotEmpty(t, login["token"])

	assert.Equal(t, http.StatusUnauthorized, s.call(t, "POST", "/api/auth/login", "", map[string]string{
		"email": "ann@example.com", "password": "nope-nope",
	}, nil))
	assert.Equal(t, http.StatusBadRequest, s.call(t, "POST", "/api/auth/register", "", map[string]string{
		"email": "bad", "password": "secret123",
	}, nil))
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	var body map[string]string
	assert.Equal(t, http.StatusUnauthorized, s.call(t, "GET", "/api/boards", "", nil, &body))
	assert.Equal(t, "Missing or invalid token", body["error"])

	body = nil
	assert.Equal(t, http.StatusUnauthorized, s.call(t, "POST", "/api/boards", "garbage", map[string]string{"title": "B"}, &body))
	assert.Equal(t, "Invalid or expired token", body["error"])

	expired := services.NewAuthService(s.store, "test-secret", time.Nanosecond)
	token, err := expired.CreateJWT(1)
	require.NoError(t, err)
	time.Sleep(1100 * time.Millisecond)
	assert.Equal(t, http.StatusUnauthorized, s.call(t, "GET", "/api/auth/me", token, nil, nil))

	// nothing was created by the rejected request
	var count int
	require.NoError(t, s.store.DB().QueryRow(`SELECT COUNT(*) FROM boards`).Scan(&count))
	assert.Zero(t, count)
}

func TestBoardToDoneExample(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "ann@example.com")

	board := s.createBoard(t, token, "B1")
	todo := s.createColumn(t, token, board.ID, "To Do")
	done := s.createColumn(t, token, board.ID, "Done")
	assert.Equal(t, 0, todo.Order)
	assert.Equal(t, 1, done.Order)

	x := s.createCard(t, token, todo.ID, "X")

	var reordered struct {
		Message string          `json:"message"`
		Updated []database.Card `json:"updated"`
	}
	require.Equal(t, http.StatusOK, s.call(t, "PATCH", "/api/cards/reorder", token, map[string]any{
		"cards": []map[string]any{{"id": x.ID, "order": 0, "columnId": done.ID}},
	}, &reordered))
	assert.Equal(t, "Cards reordered", reordered.Message)
	require.Len(t, reordered.Updated, 1)
	assert.Equal(t, done.ID, reordered.Updated[0].ColumnID)

	var cols []database.Column
	require.Equal(t, http.StatusOK, s.call(t, "GET", fmt.Sprintf("/api/columns/%d", board.ID), token, nil, &cols))
	require.Len(t, cols, 2)
	assert.Equal(t, "To Do", cols[0].Title)
	assert.Empty(t, cols[0].Cards)
	assert.Equal(t, "Done", cols[1].Title)
	require.Len(t, cols[1].Cards, 1)
	assert.Equal(t, "X", cols[1].Cards[0].Title)
	assert.Equal(t, 0, cols[1].Cards[0].Order)

	var raw []map[string]any
	require.Equal(t, http.StatusOK, s.call(t, "GET", fmt.Sprintf("/api/columns/%d", board.ID), token, nil, &raw))
	require.Len(t, raw, 2)
	require.Contains(t, raw[0], "cards")
	assert.Equal(t, []any{}, raw[0]["cards"])

	var boards []database.Board
	require.Equal(t, http.StatusOK, s.call(t, "GET", "/api/boards", token, nil, &boards))
	require.Len(t, boards, 1)
	assert.Len(t, boards[0].Columns, 2)
}

func TestEmptyCollectionsAreArrays(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "ann@example.com")
	board := s.createBoard(t, token, "Empty")

	var boards []map[string]any
	require.Equal(t, http.StatusOK, s.call(t, "GET", "/api/boards", token, nil, &boards))
	require.Len(t, boards, 1)
	assert.Equal(t, []any{}, boards[0]["columns"])

	var created map[string]any
	require.Equal(t, http.StatusCreated, s.call(t, "POST", "/api/columns", token, map[string]any{"title": "To Do", "boardId": board.ID}, &created))
	assert.Equal(t, []any{}, created["cards"])
}

func TestColumnEndpoints(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "ann@example.com")
	board := s.createBoard(t, token, "B1")
	a := s.createColumn(t, token, board.ID, "A")
	b := s.createColumn(t, token, board.ID, "B")
	c := s.createColumn(t, token, board.ID, "C")

	var renamed database.Column
	require.Equal(t, http.StatusOK, s.call(t, "PUT", fmt.Sprintf("/api/columns/%d", a.ID), token, map[string]string{"title": "Backlog"}, &renamed))
	assert.Equal(t, "Backlog", renamed.Title)

	var reordered map[string]any
	require.Equal(t, http.StatusOK, s.call(t, "PATCH", "/api/columns/reorder", token, map[string]any{
		"columns": []map[string]any{{"id": c.ID, "order": 0}, {"id": a.ID, "order": 1}, {"id": b.ID, "order": 2}},
	}, &reordered))
	assert.Equal(t, "Columns reordered", reordered["message"])

	var moved []database.Column
	require.Equal(t, http.StatusOK, s.call(t, "POST", fmt.Sprintf("/api/columns/%d/move", c.ID), token, map[string]int{"index": 2}, &moved))
	require.Len(t, moved, 3)
	assert.Equal(t, []int64{a.ID, b.ID, c.ID}, []int64{moved[0].ID, moved[1].ID, moved[2].ID})

	assert.Equal(t, http.StatusBadRequest, s.call(t, "POST", fmt.Sprintf("/api/columns/%d/move", c.ID), token, map[string]int{"index": 3}, nil))
	assert.Equal(t, http.StatusBadRequest, s.call(t, "POST", fmt.Sprintf("/api/columns/%d/move", c.ID), token, map[string]string{}, nil))
	assert.Equal(t, http.StatusBadRequest, s.call(t, "PATCH", "/api/columns/reorder", token, map[string]any{
		"columns": []map[string]any{{"id": a.ID, "order": 0}, {"id": a.ID, "order": 1}},
	}, nil))

	assert.Equal(t, http.StatusNoContent, s.call(t, "DELETE", fmt.Sprintf("/api/columns/%d", a.ID), token, nil, nil))
	var cols []database.Column
	require.Equal(t, http.StatusOK, s.call(t, "GET", fmt.Sprintf("/api/columns/%d", board.ID), token, nil, &cols))
	require.Len(t, cols, 2)
	assert.Equal(t, 0, cols[0].Order)
	assert.Equal(t, 1, cols[1].Order)
}

func TestCardEndpoints(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "ann@example.com")
	board := s.createBoard(t, token, "B1")
	todo := s.createColumn(t, token, board.ID, "To Do")
	done := s.createColumn(t, token, board.ID, "Done")

	first := s.createCard(t, token, todo.ID, "first")
	second := s.createCard(t, token, todo.ID, "second")
	assert.Equal(t, 1, second.Order)

	var updated database.Card
	require.Equal(t, http.StatusOK, s.call(t, "PUT", fmt.Sprintf("/api/cards/%d", first.ID), token, map[string]any{
		"title": "renamed", "color": "#fde68a",
	}, &updated))
	assert.Equal(t, "renamed", updated.Title)
	require.NotNil(t, updated.Color)
	assert.Equal(t, "#fde68a", *updated.Color)

	var moved database.Card
	require.Equal(t, http.StatusOK, s.call(t, "POST", fmt.Sprintf("/api/cards/%d/move", first.ID), token, map[string]any{
		"columnId": done.ID, "index": 0,
	}, &moved))
	assert.Equal(t, done.ID, moved.ColumnID)
	assert.Equal(t, 0, moved.Order)

	var list []database.Card
	require.Equal(t, http.StatusOK, s.call(t, "GET", fmt.Sprintf("/api/cards/%d", todo.ID), token, nil, &list))
	require.Len(t, list, 1)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, 0, list[0].Order)

	assert.Equal(t, http.StatusBadRequest, s.call(t, "POST", "/api/cards", token, map[string]any{"columnId": todo.ID}, nil))
	assert.Equal(t, http.StatusNotFound, s.call(t, "PUT", "/api/cards/9999", token, map[string]string{"title": "x"}, nil))

	var noFields map[string]string
	require.Equal(t, http.StatusBadRequest, s.call(t, "PUT", fmt.Sprintf("/api/cards/%d", first.ID), token, map[string]any{}, &noFields))
	assert.Equal(t, "no fields provided to update", noFields["error"])

	assert.Equal(t, http.StatusNoContent, s.call(t, "DELETE", fmt.Sprintf("/api/cards/%d", first.ID), token, nil, nil))
	assert.Equal(t, http.StatusNotFound, s.call(t, "DELETE", fmt.Sprintf("/api/cards/%d", first.ID), token, nil, nil))
}

func TestCommentEndpoints(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "ann@example.com")
	board := s.createBoard(t, token, "B1")
	col := s.createColumn(t, token, board.ID, "To Do")
	card := s.createCard(t, token, col.ID, "X")

	var comment database.Comment
	require.Equal(t, http.StatusCreated, s.call(t, "POST", "/api/comments", token, map[string]any{
		"cardId": card.ID, "text": "looks good",
	}, &comment))
	assert.Equal(t, card.ID, comment.CardID)

	var edited database.Comment
	require.Equal(t, http.StatusOK, s.call(t, "PUT", fmt.Sprintf("/api/comments/%d", comment.ID), token, map[string]string{"text": "ship it"}, &edited))
	assert.Equal(t, "ship it", edited.Text)

	var list []database.Comment
	require.Equal(t, http.StatusOK, s.call(t, "GET", fmt.Sprintf("/api/comments/%d", card.ID), token, nil, &list))
	require.Len(t, list, 1)

	assert.Equal(t, http.StatusBadRequest, s.call(t, "POST", "/api/comments", token, map[string]any{"cardId": card.ID, "text": ""}, nil))
	assert.Equal(t, http.StatusNoContent, s.call(t, "DELETE", fmt.Sprintf("/api/comments/%d", comment.ID), token, nil, nil))
}

func TestBoardDeleteCascadesOverHTTP(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "ann@example.com")
	board := s.createBoard(t, token, "B1")
	col := s.createColumn(t, token, board.ID, "To Do")
	card := s.createCard(t, token, col.ID, "X")
	require.Equal(t, http.StatusCreated, s.call(t, "POST", "/api/comments", token, map[string]any{
		"cardId": card.ID, "text": "bye",
	}, nil))

	var renamed database.Board
	require.Equal(t, http.StatusOK, s.call(t, "PATCH", fmt.Sprintf("/api/boards/%d", board.ID), token, map[string]string{"title": "B2"}, &renamed))
	assert.Equal(t, "B2", renamed.Title)

	assert.Equal(t, http.StatusNoContent, s.call(t, "DELETE", fmt.Sprintf("/api/boards/%d", board.ID), token, nil, nil))
	assert.Equal(t, http.StatusNotFound, s.call(t, "GET", fmt.Sprintf("/api/columns/%d", board.ID), token, nil, nil))
	assert.Equal(t, http.StatusNotFound, s.call(t, "GET", fmt.Sprintf("/api/cards/%d", col.ID), token, nil, nil))
	assert.Equal(t, http.StatusNotFound, s.call(t, "GET", fmt.Sprintf("/api/comments/%d", card.ID), token, nil, nil))
}

func TestUsersAreIsolated(t *testing.T) {
	s := newTestServer(t)
	owner := s.register(t, "owner@example.com")
	intruder := s.register(t, "intruder@example.com")

	board := s.createBoard(t, owner, "Private")
	col := s.createColumn(t, owner, board.ID, "To Do")
	card := s.createCard(t, owner, col.ID, "secret")

	var errBody map[string]string
	assert.Equal(t, http.StatusForbidden, s.call(t, "GET", fmt.Sprintf("/api/columns/%d", board.ID), intruder, nil, &errBody))
	assert.Equal(t, "Access denied", errBody["error"])

	assert.Equal(t, http.StatusForbidden, s.call(t, "DELETE", fmt.Sprintf("/api/boards/%d", board.ID), intruder, nil, nil))
	assert.Equal(t, http.StatusForbidden, s.call(t, "PUT", fmt.Sprintf("/api/cards/%d", card.ID), intruder, map[string]string{"title": "mine"}, nil))
	assert.Equal(t, http.StatusForbidden, s.call(t, "POST", "/api/comments", intruder, map[string]any{"cardId": card.ID, "text": "hi"}, nil))
	assert.Equal(t, http.StatusForbidden, s.call(t, "POST", "/api/columns", intruder, map[string]any{"boardId": board.ID, "title": "x"}, nil))
	assert.Equal(t, http.StatusNotFound, s.call(t, "DELETE", "/api/boards/424242", intruder, nil, nil))

	var boards []database.Board
	require.Equal(t, http.StatusOK, s.call(t, "GET", "/api/boards", intruder, nil, &boards))
	assert.Empty(t, boards)

	var cards []database.Card
	require.Equal(t, http.StatusOK, s.call(t, "GET", fmt.Sprintf("/api/cards/%d", col.ID), owner, nil, &cards))
	require.Len(t, cards, 1)
	assert.Equal(t, "secret", cards[0].Title)
}

func TestMalformedRequests(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "ann@example.com")

	req, err := http.NewRequest("POST", s.URL+"/api/boards", strings.NewReader("{not json"))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	res, err := s.Client().Do(req)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	assert.Equal(t, http.StatusNotFound, s.call(t, "GET", "/api/columns/abc", token, nil, nil))
	assert.Equal(t, http.StatusBadRequest, s.call(t, "PATCH", "/api/cards/reorder", token, map[string]any{"cards": []any{}}, nil))
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	var health map[string]string
	require.Equal(t, http.StatusOK, s.call(t, "GET", "/healthz", "", nil, &health))
	assert.Equal(t, "ok", health["status"])

	res, err := s.Client().Get(s.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `kanban_http_requests_total{code="200",method="GET",route="/healthz"} 1`)
	assert.Contains(t, string(raw), "kanban_websocket_clients")
}

func TestWebSocketBoardEvents(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "ann@example.com")
	board := s.createBoard(t, token, "B1")

	wsURL := "ws" + strings.TrimPrefix(s.URL, "http") + "/api/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	// the pong proves the connection is registered with the hub
	require.NoError(t, conn.WriteJSON(services.WebSocketMessage{Type: services.EventPing}))
	var msg services.WebSocketMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, services.EventPong, msg.Type)

	s.createColumn(t, token, board.ID, "To Do")

	msg = services.WebSocketMessage{}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, services.EventBoardChanged, msg.Type)
	data, ok := msg.Data.(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, board.ID, data["boardId"])

	require.Equal(t, http.StatusNoContent, s.call(t, "DELETE", fmt.Sprintf("/api/boards/%d", board.ID), token, nil, nil))
	msg = services.WebSocketMessage{}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, services.EventBoardDeleted, msg.Type)
}

func TestWebSocketRejectsMissingToken(t *testing.T) {
	s := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(s.URL, "http") + "/api/ws"
	_, res, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}
