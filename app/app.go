// Package app is the client's state container: the current screen, the
// catalog view, the cart, the checkout form and the last order. Front ends
// (the terminal shell) drive it and render Snapshot.
package app

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/itsneelabh/storefront/cart"
	"github.com/itsneelabh/storefront/catalog"
	"github.com/itsneelabh/storefront/core"
	"github.com/itsneelabh/storefront/favorites"
	"github.com/itsneelabh/storefront/order"
	"github.com/itsneelabh/storefront/session"
)

// Screen is one of the three views.
type Screen string

const (
	ScreenShop         Screen = "shop"
	ScreenCart         Screen = "cart"
	ScreenOrderDetails Screen = "order-details"
)

// ErrNoOrder is returned by OrderDetails before any order was placed.
var ErrNoOrder = errors.New("no order to show")

// AlertPrefix starts every order failure alert.
const AlertPrefix = "Failed to submit order: "

// Session is what App needs from the session manager. OnUserChange
// listeners must run whenever the user id changes, including the first
// successful check.
type Session interface {
	Start(ctx context.Context) error
	Close() error
	UserID() string
	Status() session.Status
	Err() error
	OnUserChange(fn func(ctx context.Context, userID string))
}

// Dependencies are the components App coordinates.
type Dependencies struct {
	Session   Session
	Cart      *cart.Store
	Catalog   *catalog.Fetcher
	Orders    *order.Submitter
	Favorites *favorites.Service

	DefaultShopID int
	Logger        core.Logger
	Telemetry     core.Telemetry
}

// CatalogView is the catalog part of the UI state.
type CatalogView struct {
	Shops      []catalog.Shop
	ShopID     int
	Sort       catalog.Sort
	Page       int
	TotalPages int
	Items      []catalog.Flower
	Loading    bool
	// Err is the last fetch failure; the view shows an empty page.
	Err error
}

// State is a point-in-time copy of everything a front end renders.
type State struct {
	Screen        Screen
	SessionStatus session.Status
	SessionErr    error
	UserID        string
	Catalog       CatalogView
	Cart          cart.Items
	CartTotal     decimal.Decimal
	Form          order.Form
	CanSubmit     bool
	OrderID       string
	Alert         string
}

// App coordinates the client features. All methods are safe for
// concurrent use.
type App struct {
	deps      Dependencies
	logger    core.Logger
	telemetry core.Telemetry

	mu      sync.RWMutex
	screen  Screen
	catalog CatalogView
	form    order.Form
	orderID string
	alert   string
}

// New wires the components. The cart follows the session user from here on.
func New(deps Dependencies) *App {
	shopID := deps.DefaultShopID
	if shopID < 1 {
		shopID = core.DefaultShopID
	}
	a := &App{
		deps:      deps,
		logger:    core.ComponentLogger(deps.Logger, "storefront/app"),
		telemetry: deps.Telemetry,
		screen:    ScreenShop,
		catalog: CatalogView{
			Shops:      []catalog.Shop{},
			ShopID:     shopID,
			Page:       1,
			TotalPages: 1,
			Items:      []catalog.Flower{},
		},
		form: deps.Orders.NewForm(),
	}
	if a.telemetry == nil {
		a.telemetry = &core.NoOpTelemetry{}
	}
	deps.Session.OnUserChange(a.onUserChange)
	return a
}

// onUserChange follows the session user: the cart switches to the new
// user's cart, and a newly available user gets the shops and the current
// page. This is also how a session recovered by the periodic re-check
// brings the catalog back.
func (a *App) onUserChange(ctx context.Context, userID string) {
	if err := a.deps.Cart.SetUser(ctx, userID); err != nil {
		a.logger.Warn("Cart could not be restored", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
	}
	if userID == "" {
		return
	}
	if err := a.Reload(ctx); err != nil {
		a.logger.Warn("Catalog reload failed", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
	}
}

// Start establishes the session. The shops and the first page load from
// the user change that a successful session produces, so they are in
// place when Start returns. A session failure is returned and the app
// stays not ready; catalog failures only show as empty views.
func (a *App) Start(ctx context.Context) error {
	ctx, span := a.telemetry.StartSpan(ctx, "app.start")
	defer span.End()

	if err := a.deps.Session.Start(ctx); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// Reload refetches the shop list and the current catalog page.
func (a *App) Reload(ctx context.Context) error {
	if err := a.requireUser(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		shops, _ := a.deps.Catalog.ListShops(gctx)
		a.mu.Lock()
		a.catalog.Shops = shops
		a.mu.Unlock()
		return nil
	})
	g.Go(func() error {
		a.loadPage(gctx)
		return nil
	})
	return g.Wait()
}

// Close stops the session re-check.
func (a *App) Close() error {
	return a.deps.Session.Close()
}

func (a *App) requireUser() error {
	if a.deps.Session.UserID() == "" {
		return core.ErrNotReady
	}
	return nil
}

// Snapshot returns the current state.
func (a *App) Snapshot() State {
	items := a.deps.Cart.Items()

	a.mu.RLock()
	defer a.mu.RUnlock()

	view := a.catalog
	view.Shops = append([]catalog.Shop(nil), a.catalog.Shops...)
	view.Items = append([]catalog.Flower(nil), a.catalog.Items...)

	return State{
		Screen:        a.screen,
		SessionStatus: a.deps.Session.Status(),
		SessionErr:    a.deps.Session.Err(),
		UserID:        a.deps.Session.UserID(),
		Catalog:       view,
		Cart:          items,
		CartTotal:     items.Total(),
		Form:          a.form,
		CanSubmit:     order.CanSubmit(a.form, items),
		OrderID:       a.orderID,
		Alert:         a.alert,
	}
}

// ShowShop switches to the shop screen.
func (a *App) ShowShop() {
	a.setScreen(ScreenShop)
}

// ShowCart switches to the cart screen.
func (a *App) ShowCart() {
	a.setScreen(ScreenCart)
}

// BackToShop leaves the order details screen.
func (a *App) BackToShop() {
	a.setScreen(ScreenShop)
}

func (a *App) setScreen(s Screen) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.screen = s
}

// DismissAlert clears the alert.
func (a *App) DismissAlert() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alert = ""
}
