// Package storefront wires the flower shop client: configuration, logging,
// telemetry, local storage, the backend client and the feature packages,
// assembled into an app.App. Front ends call Open and drive Runtime.App.
//
// Packages can also be used on their own:
//   - github.com/itsneelabh/storefront/api - the backend HTTP client
//   - github.com/itsneelabh/storefront/cart - the persisted cart
//   - github.com/itsneelabh/storefront/app - the UI state container
package storefront

import (
	"context"
	"errors"
	"fmt"

	"github.com/itsneelabh/storefront/api"
	"github.com/itsneelabh/storefront/app"
	"github.com/itsneelabh/storefront/cart"
	"github.com/itsneelabh/storefront/catalog"
	"github.com/itsneelabh/storefront/core"
	"github.com/itsneelabh/storefront/favorites"
	"github.com/itsneelabh/storefront/order"
	"github.com/itsneelabh/storefront/session"
	"github.com/itsneelabh/storefront/storage"
	"github.com/itsneelabh/storefront/telemetry"
)

// Re-export core types
type (
	Config    = core.Config
	Option    = core.Option
	Logger    = core.Logger
	Memory    = core.Memory
	Telemetry = core.Telemetry
)

// Re-export core functions
var (
	NewConfig     = core.NewConfig
	DefaultConfig = core.DefaultConfig

	WithBaseURL           = core.WithBaseURL
	WithTimeout           = core.WithTimeout
	WithStorage           = core.WithStorage
	WithSQLitePath        = core.WithSQLitePath
	WithRedisURL          = core.WithRedisURL
	WithPageSize          = core.WithPageSize
	WithSessionInterval   = core.WithSessionInterval
	WithTimezone          = core.WithTimezone
	WithLogLevel          = core.WithLogLevel
	WithLogFormat         = core.WithLogFormat
	WithTelemetry         = core.WithTelemetry
	WithCircuitBreaker    = core.WithCircuitBreaker
	WithoutCircuitBreaker = core.WithoutCircuitBreaker
	WithConfigFile        = core.WithConfigFile
	WithDevelopmentMode   = core.WithDevelopmentMode
)

// Runtime holds every wired component. App is the entry point; the others
// are exposed for front ends that act on one feature directly.
type Runtime struct {
	Config    *core.Config
	Logger    core.Logger
	Telemetry core.Telemetry
	Storage   storage.Store
	Client    *api.Client
	Session   *session.Manager
	Cart      *cart.Store
	Catalog   *catalog.Fetcher
	Orders    *order.Submitter
	Favorites *favorites.Service
	App       *app.App

	shutdown func(context.Context) error
}

// Open builds the runtime for cfg. A nil logger is replaced by the
// production logger cfg.Logging describes. Nothing talks to the backend
// until App.Start.
func Open(ctx context.Context, cfg *core.Config, logger core.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config: %w", core.ErrMissingConfiguration)
	}
	if logger == nil {
		logger = core.NewProductionLogger(cfg.Logging, cfg.Development, cfg.Name)
	}

	tel, shutdown, err := telemetry.New(ctx, cfg.Telemetry, telemetry.Options{
		Version: Version,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	store, err := storage.Open(ctx, cfg.Storage, logger)
	if err != nil {
		_ = shutdown(ctx)
		return nil, fmt.Errorf("storage: %w", err)
	}

	client, err := api.NewFromConfig(cfg, store, logger, tel)
	if err != nil {
		_ = store.Close()
		_ = shutdown(ctx)
		return nil, err
	}

	orders, err := order.NewSubmitter(client, cfg.Order, order.WithLogger(logger), order.WithTelemetry(tel))
	if err != nil {
		_ = store.Close()
		_ = shutdown(ctx)
		return nil, err
	}

	rt := &Runtime{
		Config:    cfg,
		Logger:    logger,
		Telemetry: tel,
		Storage:   store,
		Client:    client,
		Session:   session.NewManager(client, store, cfg.Session, session.WithLogger(logger), session.WithTelemetry(tel)),
		Cart:      cart.NewStore(store, cart.WithLogger(logger), cart.WithTelemetry(tel)),
		Catalog:   catalog.NewFetcher(client, cfg.Catalog, catalog.WithLogger(logger), catalog.WithTelemetry(tel)),
		Orders:    orders,
		shutdown:  shutdown,
	}
	rt.Favorites = favorites.NewService(client, rt.Session, logger)
	rt.App = app.New(app.Dependencies{
		Session:       rt.Session,
		Cart:          rt.Cart,
		Catalog:       rt.Catalog,
		Orders:        rt.Orders,
		Favorites:     rt.Favorites,
		DefaultShopID: cfg.Catalog.DefaultShopID,
		Logger:        logger,
		Telemetry:     tel,
	})

	logger.Info("Storefront runtime ready", map[string]interface{}{
		"base_url": client.BaseURL(),
		"storage":  cfg.Storage.Provider,
		"version":  Version,
	})
	return rt, nil
}

// Close stops the session re-check, closes storage and flushes telemetry.
func (r *Runtime) Close(ctx context.Context) error {
	return errors.Join(
		r.App.Close(),
		r.Storage.Close(),
		r.shutdown(ctx),
	)
}
