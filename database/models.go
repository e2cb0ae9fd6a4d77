package database

import (
	"encoding/json"
	"time"
)

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Board struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	UserID    int64     `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	Columns   []*Column `json:"columns"`
}

type Column struct {
	ID      int64   `json:"id"`
	Title   string  `json:"title"`
	BoardID int64   `json:"boardId"`
	Order   int     `json:"order"`
	Cards   []*Card `json:"cards"`
}

type Card struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	ColumnID  int64     `json:"columnId"`
	Order     int       `json:"order"`
	Color     *string   `json:"color"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Comment struct {
	ID        int64     `json:"id"`
	CardID    int64     `json:"cardId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MarshalJSON always emits columns as an array, empty when the board has none
// loaded.
func (b *Board) MarshalJSON() ([]byte, error) {
	type board Board
	out := board(*b)
	if out.Columns == nil {
		out.Columns = []*Column{}
	}
	return json.Marshal(out)
}

// MarshalJSON always emits cards as an array.
func (c *Column) MarshalJSON() ([]byte, error) {
	type column Column
	out := column(*c)
	if out.Cards == nil {
		out.Cards = []*Card{}
	}
	return json.Marshal(out)
}

// SetOrder and GetOrder let the ordering code renumber columns and cards alike.
func (c *Column) SetOrder(i int) { c.Order = i }
func (c *Column) GetOrder() int  { return c.Order }
func (c *Column) Key() int64     { return c.ID }

func (c *Card) SetOrder(i int) { c.Order = i }
func (c *Card) GetOrder() int  { return c.Order }
func (c *Card) Key() int64     { return c.ID }
