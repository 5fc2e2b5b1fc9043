package mockbackend

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidOrder = errors.New("invalid order")
)

// Store is the backend's in-memory data. It is safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	shops     []Shop
	flowers   map[int]Flower
	sessions  map[string]Session
	favorites map[string]map[int]bool
	orders    map[string]Order
	nextOrder int
	now       func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		flowers:   make(map[int]Flower),
		sessions:  make(map[string]Session),
		favorites: make(map[string]map[int]bool),
		orders:    make(map[string]Order),
		nextOrder: 1,
		now:       time.Now,
	}
}

var seedFlowers = []struct {
	name  string
	price float64
}{
	{"Red Rose", 4.5},
	{"White Lily", 6},
	{"Tulip", 2.75},
	{"Sunflower", 3.2},
	{"Orchid", 18.9},
	{"Peony", 7.4},
	{"Daisy", 1.5},
	{"Carnation", 2.1},
	{"Hydrangea", 9.99},
	{"Lavender", 5.25},
	{"Chrysanthemum", 3.8},
	{"Iris", 4.05},
}

// Seed loads three shops. Shop 1 has twelve flowers, shop 2 has six and
// shop 3 is empty.
func (s *Store) Seed() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.shops = []Shop{
		{ID: 1, Name: "Flowery Fragrant", Address: "1 Khreshchatyk St", Latitude: 50.4501, Longitude: 30.5234},
		{ID: 2, Name: "Bloom Room", Address: "12 Sahaidachnoho St", Latitude: 50.4634, Longitude: 30.5183},
		{ID: 3, Name: "Petal Post", Address: "7 Velyka Vasylkivska St", Latitude: 50.4388, Longitude: 30.5176},
	}

	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	id := 1
	for _, stock := range []struct{ shopID, count int }{{1, 12}, {2, 6}} {
		shopID, count := stock.shopID, stock.count
		for i := 0; i < count; i++ {
			seed := seedFlowers[i]
			// spread dates so date order differs from id and price order
			added := base.AddDate(0, 0, (i*7)%count)
			s.flowers[id] = Flower{
				ID:          id,
				ShopID:      shopID,
				Name:        seed.name,
				Description: fmt.Sprintf("Fresh %s from %s", strings.ToLower(seed.name), s.shops[shopID-1].Name),
				Price:       seed.price + float64(shopID-1),
				DateAdded:   added.Format("2006-01-02T15:04:05.000Z"),
				ImageURL:    fmt.Sprintf("/images/%s.jpg", strings.ReplaceAll(strings.ToLower(seed.name), " ", "-")),
			}
			id++
		}
	}
}

// Shops lists every shop.
func (s *Store) Shops() []Shop {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Shop(nil), s.shops...)
}

func (s *Store) shop(id int) (Shop, bool) {
	for _, shop := range s.shops {
		if shop.ID == id {
			return shop, true
		}
	}
	return Shop{}, false
}

// Listing selects one page of a shop's flowers.
type Listing struct {
	SortBy    string
	SortOrder string
	Page      int
	PageSize  int
}

// Flowers returns the requested page and the page count. IsFavorite is
// filled in for userID. An unknown shop is ErrNotFound.
func (s *Store) Flowers(shopID int, userID string, l Listing) ([]Flower, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.shop(shopID); !ok {
		return nil, 0, ErrNotFound
	}

	list := []Flower{}
	for _, f := range s.flowers {
		if f.ShopID != shopID {
			continue
		}
		if s.favorites[userID][f.ID] {
			f.IsFavorite = 1
		}
		list = append(list, f)
	}

	less := func(a, b Flower) bool { return a.ID < b.ID }
	switch l.SortBy {
	case "Price":
		less = func(a, b Flower) bool {
			if a.Price == b.Price {
				return a.ID < b.ID
			}
			return a.Price < b.Price
		}
	case "DateAdded":
		less = func(a, b Flower) bool {
			if a.DateAdded == b.DateAdded {
				return a.ID < b.ID
			}
			return a.DateAdded < b.DateAdded
		}
	}
	desc := strings.EqualFold(l.SortOrder, "DESC")
	sort.SliceStable(list, func(i, j int) bool {
		if desc {
			return less(list[j], list[i])
		}
		return less(list[i], list[j])
	})

	if l.PageSize < 1 {
		l.PageSize = len(list)
		if l.PageSize == 0 {
			l.PageSize = 1
		}
	}
	if l.Page < 1 {
		l.Page = 1
	}
	totalPages := (len(list) + l.PageSize - 1) / l.PageSize
	if totalPages < 1 {
		totalPages = 1
	}

	start := (l.Page - 1) * l.PageSize
	if start >= len(list) {
		return []Flower{}, totalPages, nil
	}
	end := start + l.PageSize
	if end > len(list) {
		end = len(list)
	}
	return list[start:end], totalPages, nil
}

// CreateSession starts a session for a new anonymous user.
func (s *Store) CreateSession() Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := Session{
		ID:      uuid.New().String(),
		UserID:  uuid.New().String(),
		Created: s.now(),
	}
	s.sessions[sess.ID] = sess
	return sess
}

// Session looks up a session by id.
func (s *Store) Session(id string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// EndSession forgets a session.
func (s *Store) EndSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// SetFavorite marks or unmarks a flower for userID.
func (s *Store) SetFavorite(userID string, flowerID int, favorite bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.flowers[flowerID]; !ok {
		return ErrNotFound
	}
	if !favorite {
		delete(s.favorites[userID], flowerID)
		return nil
	}
	if s.favorites[userID] == nil {
		s.favorites[userID] = make(map[int]bool)
	}
	s.favorites[userID][flowerID] = true
	return nil
}

// CreateOrder validates and stores an order. The total is recomputed from
// the catalog prices; the client's TotalPrice is not trusted.
func (s *Store) CreateOrder(userID string, req OrderRequest) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var missing []string
	for field, value := range map[string]string{
		"Name":             req.Name,
		"Email":            req.Email,
		"Phone":            req.Phone,
		"DeliveryAddress":  req.DeliveryAddress,
		"DeliveryDateTime": req.DeliveryDateTime,
	} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return Order{}, fmt.Errorf("%w: missing %s", ErrInvalidOrder, strings.Join(missing, ", "))
	}
	if len(req.OrderItems) == 0 {
		return Order{}, fmt.Errorf("%w: no items", ErrInvalidOrder)
	}
	if _, err := time.Parse(time.RFC3339, req.DeliveryDateTime); err != nil {
		return Order{}, fmt.Errorf("%w: DeliveryDateTime must be RFC 3339", ErrInvalidOrder)
	}
	shop, ok := s.shop(req.ShopID)
	if !ok {
		return Order{}, fmt.Errorf("%w: unknown shop %d", ErrInvalidOrder, req.ShopID)
	}

	id := strconv.Itoa(s.nextOrder)
	total := decimal.Zero
	items := make([]OrderItem, 0, len(req.OrderItems))
	for i, line := range req.OrderItems {
		flower, ok := s.flowers[line.FlowerID]
		if !ok || line.Quantity < 1 {
			return Order{}, fmt.Errorf("%w: bad line for flower %d", ErrInvalidOrder, line.FlowerID)
		}
		total = total.Add(decimal.NewFromFloat(flower.Price).Mul(decimal.NewFromInt(int64(line.Quantity))))
		items = append(items, OrderItem{
			ID:          i + 1,
			OrderID:     id,
			FlowerID:    flower.ID,
			Quantity:    line.Quantity,
			Name:        flower.Name,
			Price:       flower.Price,
			ImageURL:    flower.ImageURL,
			Description: flower.Description,
		})
	}

	var coupon *string
	if c := strings.TrimSpace(req.CouponCode); c != "" {
		coupon = &c
	}

	o := Order{
		ID:                id,
		UserID:            userID,
		Name:              req.Name,
		Email:             req.Email,
		Phone:             req.Phone,
		DeliveryAddress:   req.DeliveryAddress,
		DeliveryLatitude:  req.DeliveryLatitude,
		DeliveryLongitude: req.DeliveryLongitude,
		ShopID:            shop.ID,
		CouponCode:        coupon,
		TotalPrice:        total.Round(2).InexactFloat64(),
		CreatedAt:         s.now().UTC().Format(time.RFC3339),
		DeliveryDateTime:  req.DeliveryDateTime,
		UserTimezone:      req.UserTimezone,
		Items:             items,
		Shop:              shop,
	}
	s.orders[id] = o
	s.nextOrder++
	return o, nil
}

// Order looks up an order by id.
func (s *Store) Order(id string) (Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	return o, ok
}

// OrderCount is the number of placed orders.
func (s *Store) OrderCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}
