package order

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ID accepts a JSON string or number.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("order id must be a string or number: %w", err)
	}
	*id = ID(numberString(n))
	return nil
}

// ShopInfo is the shop snapshot stored with an order.
type ShopInfo struct {
	ID        int     `json:"Id"`
	Name      string  `json:"Name"`
	Address   string  `json:"Address"`
	Latitude  float64 `json:"Latitude"`
	Longitude float64 `json:"Longitude"`
}

// DetailsItem is an ordered line as the backend reports it.
type DetailsItem struct {
	ID          int     `json:"Id"`
	OrderID     ID      `json:"OrderId"`
	FlowerID    int     `json:"FlowerId"`
	Quantity    int     `json:"Quantity"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	ImageURL    string  `json:"imageUrl"`
	Description string  `json:"description"`
}

// Details is a stored order.
type Details struct {
	ID                ID            `json:"Id"`
	Name              string        `json:"Name"`
	Email             string        `json:"Email"`
	Phone             string        `json:"Phone"`
	DeliveryAddress   string        `json:"DeliveryAddress"`
	DeliveryLatitude  float64       `json:"DeliveryLatitude"`
	DeliveryLongitude float64       `json:"DeliveryLongitude"`
	ShopID            int           `json:"ShopId"`
	CouponCode        *string       `json:"CouponCode"`
	TotalPrice        float64       `json:"TotalPrice"`
	CreatedAt         string        `json:"CreatedAt"`
	DeliveryDateTime  string        `json:"DeliveryDateTime"`
	UserTimezone      string        `json:"UserTimezone"`
	Items             []DetailsItem `json:"items"`
	Shop              ShopInfo      `json:"shop"`
}

// Number is the short display form: the first 8 characters, upper-cased.
func (d *Details) Number() string {
	s := string(d.ID)
	if len(s) > 8 {
		s = s[:8]
	}
	return strings.ToUpper(s)
}

type detailsResponse struct {
	Success bool     `json:"success"`
	Data    *Details `json:"data"`
}
