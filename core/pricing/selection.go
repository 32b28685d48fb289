package pricing

import "github.com/shopspring/decimal"

// Selection is an ordered set of items (a cart, or a promoter's quote).
// Adding an item already present is a no-op. Totals are recomputed from the members on every call.
type Selection struct {
	items []Item
}

func NewSelection(items ...Item) *Selection {
	s := new(Selection)
	for _, it := range items {
		s.Add(it)
	}
	return s
}

func (s *Selection) indexOf(id string) int {
	for i, it := range s.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// Add appends it unless an item with the same ID is already selected; reports whether it was added.
func (s *Selection) Add(it Item) bool {
	if s.indexOf(it.ID) >= 0 {
		return false
	}
	s.items = append(s.items, it)
	return true
}

func (s *Selection) Remove(id string) bool {
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	return true
}

// Replace swaps in it for the selected item with the same ID, keeping its position;
// reports whether there was one.
func (s *Selection) Replace(it Item) bool {
	i := s.indexOf(it.ID)
	if i < 0 {
		return false
	}
	s.items[i] = it
	return true
}

func (s *Selection) Contains(id string) bool { return s.indexOf(id) >= 0 }
func (s *Selection) Len() int                { return len(s.items) }
func (s *Selection) IsEmpty() bool           { return len(s.items) == 0 }
func (s *Selection) Clear()                  { s.items = nil }

// Items returns a copy of the selected items in selection order.
func (s *Selection) Items() []Item {
	items := make([]Item, len(s.items))
	copy(items, s.items)
	return items
}

func (s *Selection) Total() decimal.Decimal      { return TotalPrice(s.items) }
func (s *Selection) Commission() decimal.Decimal { return TotalCommission(s.items) }
