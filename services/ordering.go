package services

import (
	"cmp"
	"fmt"
	"slices"
)

// Ordered is a sibling with a dense zero based position inside its parent.
// *database.Column and *database.Card implement it.
type Ordered interface {
	Key() int64
	GetOrder() int
	SetOrder(int)
}

// Renumber assigns every item its index as order.
func Renumber[T Ordered](items []T) []T {
	for i, item := range items {
		item.SetOrder(i)
	}
	return items
}

// MoveWithin moves the item at from to index to inside one list and
// renumbers it.
func MoveWithin[T Ordered](items []T, from, to int) ([]T, error) {
	if from < 0 || from >= len(items) {
		return nil, invalid("index", fmt.Sprintf("%d is out of range", from))
	}
	if to < 0 || to >= len(items) {
		return nil, invalid("index", fmt.Sprintf("must be between 0 and %d", len(items)-1))
	}

	out := slices.Clone(items)
	item := out[from]
	out = slices.Delete(out, from, from+1)
	out = slices.Insert(out, to, item)
	return Renumber(out), nil
}

// MoveAcross removes the item at from in src and inserts it into dst at to.
// Both lists come back renumbered.
func MoveAcross[T Ordered](src, dst []T, from, to int) ([]T, []T, error) {
	if from < 0 || from >= len(src) {
		return nil, nil, invalid("index", fmt.Sprintf("%d is out of range", from))
	}
	if to < 0 || to > len(dst) {
		return nil, nil, invalid("index", fmt.Sprintf("must be between 0 and %d", len(dst)))
	}

	item := src[from]
	newSrc := slices.Delete(slices.Clone(src), from, from+1)
	newDst := slices.Insert(slices.Clone(dst), to, item)
	return Renumber(newSrc), Renumber(newDst), nil
}

// Arrange builds the final sibling list for a bulk reorder. Each submitted
// item carries the index the client asked for and lands there, clamped to the
// end of the list. Submitted items with equal orders keep submission order.
// The remaining current siblings fill the free slots in their existing order.
// The result is renumbered.
func Arrange[T Ordered](submitted, current []T) []T {
	named := make(map[int64]struct{}, len(submitted))
	for _, item := range submitted {
		named[item.Key()] = struct{}{}
	}

	placed := slices.Clone(submitted)
	slices.SortStableFunc(placed, func(a, b T) int {
		return cmp.Compare(a.GetOrder(), b.GetOrder())
	})
	rest := make([]T, 0, len(current))
	for _, item := range current {
		if _, ok := named[item.Key()]; !ok {
			rest = append(rest, item)
		}
	}

	out := make([]T, 0, len(placed)+len(rest))
	for len(placed) > 0 || len(rest) > 0 {
		if len(placed) > 0 && (len(rest) == 0 || placed[0].GetOrder() <= len(out)) {
			out = append(out, placed[0])
			placed = placed[1:]
			continue
		}
		out = append(out, rest[0])
		rest = rest[1:]
	}
	return Renumber(out)
}

// indexOf returns the position of the item with the given key, or -1.
func indexOf[T Ordered](items []T, key int64) int {
	return slices.IndexFunc(items, func(item T) bool { return item.Key() == key })
}

// clamp limits i to [lo, hi].
func clamp(i, lo, hi int) int {
	return max(lo, min(i, hi))
}
