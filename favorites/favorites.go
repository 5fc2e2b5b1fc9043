// Package favorites toggles a flower's favorite flag on the backend. It is
// best effort: a failed call leaves the previous state and is only logged.
package favorites

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/itsneelabh/storefront/catalog"
	"github.com/itsneelabh/storefront/core"
)

var (
	// ErrLoginRequired is returned when adding a favorite without a session user.
	ErrLoginRequired = errors.New("please log in to add to favorites")

	// ErrBusy is returned while a toggle for the same flower is in flight.
	ErrBusy = errors.New("favorite update already in progress")
)

// Backend is the part of the API client the service needs.
type Backend interface {
	AddFavorite(ctx context.Context, flowerID int) error
	RemoveFavorite(ctx context.Context, flowerID int) error
}

// UserSource reports the current session user, "" when there is none.
type UserSource interface {
	UserID() string
}

// Service tracks favorite flags the user changed during this run. Flags
// not changed locally come from the catalog listing.
type Service struct {
	backend Backend
	users   UserSource
	logger  core.Logger

	mu      sync.Mutex
	state   map[int]bool
	pending map[int]bool
}

// NewService creates a service.
func NewService(backend Backend, users UserSource, logger core.Logger) *Service {
	return &Service{
		backend: backend,
		users:   users,
		logger:  core.ComponentLogger(logger, "storefront/favorites"),
		state:   make(map[int]bool),
		pending: make(map[int]bool),
	}
}

// IsFavorite is the effective flag for flower.
func (s *Service) IsFavorite(flower catalog.Flower) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isFavoriteLocked(flower)
}

func (s *Service) isFavoriteLocked(flower catalog.Flower) bool {
	if fav, ok := s.state[flower.ID]; ok {
		return fav
	}
	return flower.IsFavorite == 1
}

// Toggle flips the flag and returns the resulting state. Adding needs a
// session user; removing without one does nothing. A backend failure
// keeps the old state and is returned.
func (s *Service) Toggle(ctx context.Context, flower catalog.Flower) (bool, error) {
	s.mu.Lock()
	current := s.isFavoriteLocked(flower)
	if s.pending[flower.ID] {
		s.mu.Unlock()
		return current, ErrBusy
	}
	if s.users.UserID() == "" {
		s.mu.Unlock()
		if current {
			return current, nil
		}
		return current, ErrLoginRequired
	}
	s.pending[flower.ID] = true
	s.mu.Unlock()

	var err error
	if current {
		err = s.backend.RemoveFavorite(ctx, flower.ID)
	} else {
		err = s.backend.AddFavorite(ctx, flower.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, flower.ID)

	if err != nil {
		s.logger.Warn("Failed to update favorite", map[string]interface{}{
			"flower_id": flower.ID,
			"favorite":  !current,
			"error":     err.Error(),
		})
		s.state[flower.ID] = current
		return current, fmt.Errorf("update favorite %d: %w", flower.ID, err)
	}
	s.state[flower.ID] = !current
	return !current, nil
}
