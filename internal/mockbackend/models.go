package mockbackend

import "time"

// Shop is a flower shop.
type Shop struct {
	ID        int     `json:"Id"`
	Name      string  `json:"Name"`
	Address   string  `json:"Address"`
	Latitude  float64 `json:"Latitude"`
	Longitude float64 `json:"Longitude"`
}

// Flower is a catalog entry. IsFavorite is per requesting user.
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

// OrderLine is one line of an order request.
type OrderLine struct {
	FlowerID int `json:"FlowerId"`
	Quantity int `json:"Quantity"`
}

// OrderRequest is the POST /orders/ payload.
type OrderRequest struct {
	Name              string      `json:"Name"`
	Email             string      `json:"Email"`
	Phone             string      `json:"Phone"`
	DeliveryAddress   string      `json:"DeliveryAddress"`
	DeliveryDateTime  string      `json:"DeliveryDateTime"`
	DeliveryLatitude  float64     `json:"DeliveryLatitude"`
	DeliveryLongitude float64     `json:"DeliveryLongitude"`
	ShopID            int         `json:"ShopId"`
	TotalPrice        float64     `json:"TotalPrice"`
	UserTimezone      string      `json:"UserTimezone"`
	CouponCode        string      `json:"CouponCode"`
	OrderItems        []OrderLine `json:"OrderItems"`
}

// OrderItem is an order line joined with its flower.
type OrderItem struct {
	ID          int     `json:"Id"`
	OrderID     string  `json:"OrderId"`
	FlowerID    int     `json:"FlowerId"`
	Quantity    int     `json:"Quantity"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	ImageURL    string  `json:"imageUrl"`
	Description string  `json:"description"`
}

// Order is a placed order as GET /orders/{id} returns it.
type Order struct {
	ID                string      `json:"Id"`
	UserID            string      `json:"-"`
	Name              string      `json:"Name"`
	Email             string      `json:"Email"`
	Phone             string      `json:"Phone"`
	DeliveryAddress   string      `json:"DeliveryAddress"`
	DeliveryLatitude  float64     `json:"DeliveryLatitude"`
	DeliveryLongitude float64     `json:"DeliveryLongitude"`
	ShopID            int         `json:"ShopId"`
	CouponCode        *string     `json:"CouponCode"`
	TotalPrice        float64     `json:"TotalPrice"`
	CreatedAt         string      `json:"CreatedAt"`
	DeliveryDateTime  string      `json:"DeliveryDateTime"`
	UserTimezone      string      `json:"UserTimezone"`
	Items             []OrderItem `json:"items"`
	Shop              Shop        `json:"shop"`
}

// Session binds a cookie to an anonymous user.
type Session struct {
	ID      string
	UserID  string
	Created time.Time
}
