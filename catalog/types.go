package catalog

import "github.com/itsneelabh/storefront/api"

// Flower is a sellable catalog item. JSON keys follow the backend.
type Flower struct {
	ID          int     `json:"Id"`
	ShopID      int     `json:"ShopId"`
	Name        string  `json:"Name"`
	Description string  `json:"Description"`
	Price       float64 `json:"Price"`
	DateAdded   string  `json:"DateAdded"`
	ImageURL    string  `json:"ImageUrl"`
	IsFavorite  int     `json:"IsFavorite"`
}

// Shop is a store location.
type Shop struct {
	ID   int    `json:"Id"`
	Name string `json:"Name"`
}

// SortField selects the listing order.
type SortField string

const (
	SortNone  SortField = ""
	SortPrice SortField = "price"
	SortDate  SortField = "date"
)

// SortOrder is the listing direction.
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// Sort pairs a field with a direction.
type Sort struct {
	Field SortField
	Order SortOrder
}

// NextSort is the sort after the user picks field: the active field flips
// direction, any other field starts ascending. Callers reset the page to 1.
func NextSort(current Sort, field SortField) Sort {
	if current.Field == field {
		if current.Order == Asc {
			return Sort{Field: field, Order: Desc}
		}
		return Sort{Field: field, Order: Asc}
	}
	return Sort{Field: field, Order: Asc}
}

// Query identifies one catalog page.
type Query struct {
	ShopID   int
	Sort     Sort
	Page     int
	PageSize int
}

// wire maps the query to backend parameters. No sort field lists by date.
func (q Query) wire() api.FlowerQuery {
	sortBy := "DateAdded"
	if q.Sort.Field == SortPrice {
		sortBy = "Price"
	}
	sortOrder := "ASC"
	if q.Sort.Order == Desc {
		sortOrder = "DESC"
	}
	return api.FlowerQuery{
		SortBy:    sortBy,
		SortOrder: sortOrder,
		Page:      q.Page,
		PageSize:  q.PageSize,
	}
}

// Result is one fetched page. A failed fetch is an empty page with Err set;
// it is never returned as an error.
type Result struct {
	// Seq orders fetches; see Fetcher.IsCurrent.
	Seq        uint64
	Query      Query
	Items      []Flower
	TotalPages int
	// Invalid lists items dropped by schema validation.
	Invalid []ValidationError
	Err     error
}
