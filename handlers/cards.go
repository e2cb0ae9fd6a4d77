package handlers

import (
	"net/http"

	"github.com/CrowderSoup/kanban/services"
)

type CardHandler struct {
	cards *services.CardService
}

func NewCardHandler(cards *services.CardService) *CardHandler {
	return &CardHandler{cards: cards}
}

type createCardRequest struct {
	Title    string  `json:"title"`
	ColumnID int64   `json:"columnId"`
	Order    *int    `json:"order"`
	Color    *string `json:"color"`
}

type updateCardRequest struct {
	Title    *string `json:"title"`
	ColumnID *int64  `json:"columnId"`
	Order    *int    `json:"order"`
	Color    *string `json:"color"`
}

type reorderCardsRequest struct {
	Cards []services.CardPlacement `json:"cards"`
}

func (h *CardHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	columnID, err := pathID(r, "columnId")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	cards, err := h.cards.List(r.Context(), userID, columnID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cards)
}

func (h *CardHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	var req createCardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	card, err := h.cards.Create(r.Context(), userID, req.ColumnID, req.Title, req.Color)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

// Update applies a partial update; columnId and order move the card.
func (h *CardHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req updateCardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	card, err := h.cards.Update(r.Context(), userID, id, services.CardUpdate{
		Title:    req.Title,
		Color:    req.Color,
		ColumnID: req.ColumnID,
		Order:    req.Order,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (h *CardHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	var req reorderCardsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	updated, err := h.cards.Reorder(r.Context(), userID, req.Cards)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Cards reordered",
		"updated": updated,
	})
}

func (h *CardHandler) Move(w http.ResponseWriter, r *http.Request) {
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

	card, err := h.cards.Move(r.Context(), userID, id, req.ColumnID, *req.Index)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (h *CardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if err := h.cards.Delete(r.Context(), userID, id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
