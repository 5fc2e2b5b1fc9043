// Package cart keeps the per-user shopping cart. The mutation functions are
// pure; Store adds locking and writes the whole cart to client-local
// storage after every change.
package cart

import (
	"github.com/shopspring/decimal"

	"github.com/itsneelabh/storefront/catalog"
)

// Item is a cart line: a flower snapshot plus quantity and owner. There is
// at most one Item per flower id and Quantity is at least 1.
type Item struct {
	ID          int     `json:"Id"`
	Name        string  `json:"Name"`
	Description string  `json:"Description"`
	Price       float64 `json:"Price"`
	ImageURL    string  `json:"ImageUrl"`
	IsFavorite  int     `json:"IsFavorite"`
	Quantity    int     `json:"quantity"`
	UserID      string  `json:"userId"`
}

// LineTotal is Price × Quantity.
func (i Item) LineTotal() decimal.Decimal {
	return decimal.NewFromFloat(i.Price).Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Items is an ordered cart.
type Items []Item

// Add returns items with one more of flower. A new flower is appended with
// quantity 1.
func Add(items Items, flower catalog.Flower, userID string) Items {
	out := make(Items, 0, len(items)+1)
	found := false
	for _, it := range items {
		if it.ID == flower.ID {
			it.Quantity++
			found = true
		}
		out = append(out, it)
	}
	if !found {
		out = append(out, Item{
			ID:          flower.ID,
			Name:        flower.Name,
			Description: flower.Description,
			Price:       flower.Price,
			ImageURL:    flower.ImageURL,
			IsFavorite:  flower.IsFavorite,
			Quantity:    1,
			UserID:      userID,
		})
	}
	return out
}

// Remove returns items without the line for id.
func Remove(items Items, id int) Items {
	out := make(Items, 0, len(items))
	for _, it := range items {
		if it.ID != id {
			out = append(out, it)
		}
	}
	return out
}

// UpdateQuantity returns items with the line for id set to quantity.
// Quantities below 1 are ignored; use Remove to drop a line.
func UpdateQuantity(items Items, id, quantity int) Items {
	out := make(Items, len(items))
	copy(out, items)
	if quantity < 1 {
		return out
	}
	for i := range out {
		if out[i].ID == id {
			out[i].Quantity = quantity
		}
	}
	return out
}

// Find returns the line for id.
func (items Items) Find(id int) (Item, bool) {
	for _, it := range items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// Total is the sum of line totals rounded to cents.
func (items Items) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.LineTotal())
	}
	return total.Round(2)
}

// Count is the number of distinct lines.
func (items Items) Count() int {
	return len(items)
}

// Quantity is the number of units across all lines.
func (items Items) Quantity() int {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}
