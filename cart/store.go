package cart

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/itsneelabh/storefront/catalog"
	"github.com/itsneelabh/storefront/core"
)

// MetricMutations counts cart changes by operation.
const MetricMutations = "storefront.cart.mutations"

// Store is the current user's cart. Every mutation persists the whole cart
// under cart_{userId}; with no user id mutations are ignored.
type Store struct {
	memory    core.Memory
	logger    core.Logger
	telemetry core.Telemetry

	mu     sync.RWMutex
	userID string
	items  Items
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger core.Logger) Option {
	return func(s *Store) {
		s.logger = core.ComponentLogger(logger, "storefront/cart")
	}
}

// WithTelemetry sets the telemetry provider.
func WithTelemetry(t core.Telemetry) Option {
	return func(s *Store) {
		if t != nil {
			s.telemetry = t
		}
	}
}

// NewStore creates an empty store with no user.
func NewStore(memory core.Memory, opts ...Option) *Store {
	s := &Store{
		memory:    memory,
		logger:    &core.NoOpLogger{},
		telemetry: &core.NoOpTelemetry{},
		items:     Items{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetUser switches to userID's cart, loading whatever is persisted for it.
// An empty id leaves an empty, unpersisted cart. A corrupt persisted cart
// loads as empty and is logged; only storage failures are returned.
func (s *Store) SetUser(ctx context.Context, userID string) error {
	items := Items{}
	var loadErr error

	if userID != "" {
		raw, err := s.memory.Get(ctx, core.CartKey(userID))
		if err != nil {
			loadErr = fmt.Errorf("load cart: %w", err)
			s.logger.Error("Failed to load cart", map[string]interface{}{
				"user_id": userID,
				"error":   err.Error(),
			})
		} else if decoded, err := Decode(raw); err != nil {
			s.logger.Warn("Discarding unreadable cart", map[string]interface{}{
				"user_id": userID,
				"error":   err.Error(),
			})
		} else {
			items = decoded
		}
	}

	s.mu.Lock()
	s.userID = userID
	s.items = items
	s.mu.Unlock()

	s.logger.Debug("Cart loaded", map[string]interface{}{
		"user_id": userID,
		"lines":   len(items),
	})
	return loadErr
}

// UserID is the owner of the current cart.
func (s *Store) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// Items returns a copy of the cart.
func (s *Store) Items() Items {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(Items, len(s.items))
	copy(out, s.items)
	return out
}

// Add puts one more of flower in the cart.
func (s *Store) Add(ctx context.Context, flower catalog.Flower) error {
	return s.mutate(ctx, "add", func(items Items, userID string) Items {
		return Add(items, flower, userID)
	})
}

// Remove drops the line for id.
func (s *Store) Remove(ctx context.Context, id int) error {
	return s.mutate(ctx, "remove", func(items Items, _ string) Items {
		return Remove(items, id)
	})
}

// UpdateQuantity sets the quantity of the line for id; values below 1 are
// ignored.
func (s *Store) UpdateQuantity(ctx context.Context, id, quantity int) error {
	if quantity < 1 {
		return nil
	}
	return s.mutate(ctx, "update", func(items Items, _ string) Items {
		return UpdateQuantity(items, id, quantity)
	})
}

// Clear empties the cart and deletes its storage key.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = Items{}
	s.record("clear")
	if s.userID == "" {
		return nil
	}
	if err := s.memory.Delete(ctx, core.CartKey(s.userID)); err != nil {
		s.logger.Error("Failed to delete cart", map[string]interface{}{
			"user_id": s.userID,
			"error":   err.Error(),
		})
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

// Total is the cart total rounded to cents.
func (s *Store) Total() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.items.Total()
}

// Count is the number of distinct lines.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.items.Count()
}

// mutate applies fn and persists the result while holding the lock, so the
// stored cart always matches the last mutation. The in-memory cart keeps
// the change even if persisting fails. Without a user it does nothing.
func (s *Store) mutate(ctx context.Context, op string, fn func(Items, string) Items) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.userID == "" {
		s.logger.Debug("Cart change ignored without user", map[string]interface{}{
			"op": op,
		})
		return nil
	}
	s.items = fn(s.items, s.userID)
	s.record(op)
	return s.persistLocked(ctx)
}

func (s *Store) persistLocked(ctx context.Context) error {
	if s.userID == "" {
		return nil
	}
	data, err := Encode(s.items)
	if err != nil {
		return err
	}
	if err := s.memory.Set(ctx, core.CartKey(s.userID), data, 0); err != nil {
		s.logger.Error("Failed to persist cart", map[string]interface{}{
			"user_id": s.userID,
			"error":   err.Error(),
		})
		return fmt.Errorf("persist cart: %w", err)
	}
	return nil
}

func (s *Store) record(op string) {
	s.telemetry.RecordMetric(MetricMutations, 1, map[string]string{"op": op})
}
