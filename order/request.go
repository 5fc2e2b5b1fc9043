package order

import (
	"fmt"
	"os"
	"time"

	"github.com/itsneelabh/storefront/cart"
	"github.com/itsneelabh/storefront/core"
)

// LineItem is one ordered flower.
type LineItem struct {
	FlowerID int `json:"FlowerId"`
	Quantity int `json:"Quantity"`
}

// Request is the POST /orders/ payload.
type Request struct {
	Name              string     `json:"Name"`
	Email             string     `json:"Email"`
	Phone             string     `json:"Phone"`
	DeliveryAddress   string     `json:"DeliveryAddress"`
	DeliveryDateTime  string     `json:"DeliveryDateTime"`
	DeliveryLatitude  float64    `json:"DeliveryLatitude"`
	DeliveryLongitude float64    `json:"DeliveryLongitude"`
	ShopID            int        `json:"ShopId"`
	TotalPrice        float64    `json:"TotalPrice"`
	UserTimezone      string     `json:"UserTimezone"`
	CouponCode        string     `json:"CouponCode"`
	OrderItems        []LineItem `json:"OrderItems"`
}

// RequestOptions are the payload values the user does not type.
type RequestOptions struct {
	Latitude  float64
	Longitude float64
	// Location renders DeliveryDateTime; its name is sent as UserTimezone.
	Location *time.Location
}

// BuildRequest assembles the order payload. Form fields are sent as typed.
func BuildRequest(form Form, items cart.Items, shopID int, opts RequestOptions) Request {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	lines := make([]LineItem, 0, len(items))
	for _, it := range items {
		lines = append(lines, LineItem{FlowerID: it.ID, Quantity: it.Quantity})
	}

	return Request{
		Name:              form.Name,
		Email:             form.Email,
		Phone:             form.Phone,
		DeliveryAddress:   form.Address,
		DeliveryDateTime:  form.DeliveryDateTime.In(loc).Format(time.RFC3339),
		DeliveryLatitude:  opts.Latitude,
		DeliveryLongitude: opts.Longitude,
		ShopID:            shopID,
		TotalPrice:        items.Total().InexactFloat64(),
		UserTimezone:      loc.String(),
		CouponCode:        "",
		OrderItems:        lines,
	}
}

// ResolveLocation picks the client timezone: the configured IANA name,
// then $TZ, then UTC. time.Local has no IANA name to report, so it is not
// used.
func ResolveLocation(name string) (*time.Location, error) {
	if name == "" {
		name = os.Getenv(core.EnvTimezone)
	}
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", name, core.ErrInvalidConfiguration)
	}
	return loc, nil
}
