package handlers

import (
	"net/http"

	"github.com/CrowderSoup/kanban/services"
)

type ColumnHandler struct {
	columns *services.ColumnService
}

func NewColumnHandler(columns *services.ColumnService) *ColumnHandler {
	return &ColumnHandler{columns: columns}
}

// Order is accepted for compatibility but the server picks the position.
type createColumnRequest struct {
	Title   string `json:"title"`
	BoardID int64  `json:"boardId"`
	Order   *int   `json:"order"`
}

type reorderColumnsRequest struct {
	Columns []services.ColumnPlacement `json:"columns"`
}

type moveRequest struct {
	ColumnID int64 `json:"columnId"`
	Index    *int  `json:"index"`
}

// List returns the board's columns, each with its cards.
func (h *ColumnHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	boardID, err := pathID(r, "boardId")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	cols, err := h.columns.List(r.Context(), userID, boardID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cols)
}

func (h *ColumnHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	var req createColumnRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	col, err := h.columns.Create(r.Context(), userID, req.BoardID, req.Title)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, col)
}

func (h *ColumnHandler) Rename(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req boardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	col, err := h.columns.Rename(r.Context(), userID, id, req.Title)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, col)
}

func (h *ColumnHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	var req reorderColumnsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	updated, err := h.columns.Reorder(r.Context(), userID, req.Columns)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Columns reordered",
		"updated": updated,
	})
}

// Move places the column at index and returns the board's columns.
func (h *ColumnHandler) Move(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req moveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if req.Index == nil {
		writeError(w, http.StatusBadRequest, "index is required")
		return
	}

	cols, err := h.columns.Move(r.Context(), userID, id, *req.Index)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cols)
}

func (h *ColumnHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if err := h.columns.Delete(r.Context(), userID, id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
