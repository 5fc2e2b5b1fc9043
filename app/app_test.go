package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsneelabh/storefront/api"
	"github.com/itsneelabh/storefront/cart"
	"github.com/itsneelabh/storefront/catalog"
	"github.com/itsneelabh/storefront/core"
	"github.com/itsneelabh/storefront/favorites"
	"github.com/itsneelabh/storefront/internal/mockbackend"
	"github.com/itsneelabh/storefront/order"
	"github.com/itsneelabh/storefront/session"
)

type harness struct {
	app     *App
	backend *mockbackend.Server
	memory  *core.MemoryStore
	session *session.Manager
}

func newHarness(t *testing.T, opts mockbackend.Options) *harness {
	t.Helper()

	store := mockbackend.NewStore()
	store.Seed()
	backend := mockbackend.New(store, opts)
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	client, err := api.NewClient(core.APIConfig{BaseURL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)

	mem := core.NewMemoryStore()
	sess := session.NewManager(client, mem, core.SessionConfig{CheckInterval: time.Hour})
	orders, err := order.NewSubmitter(client, core.OrderConfig{Timezone: "UTC"})
	require.NoError(t, err)

	a := New(Dependencies{
		Session:   sess,
		Cart:      cart.NewStore(mem),
		Catalog:   catalog.NewFetcher(client, core.CatalogConfig{PageSize: 8}),
		Orders:    orders,
		Favorites: favorites.NewService(client, sess, nil),
	})
	t.Cleanup(func() { _ = a.Close() })

	return &harness{app: a, backend: backend, memory: mem, session: sess}
}

func fillForm(f *order.Form) {
	f.Name = "Ann"
	f.Email = "ann@example.com"
	f.Phone = "+380501234567"
	f.Address = "1 Main St"
}

func TestStartLoadsShopsAndFirstPage(t *testing.T) {
	h := newHarness(t, mockbackend.Options{})
	require.NoError(t, h.app.Start(context.Background()))

	st := h.app.Snapshot()
	assert.Equal(t, ScreenShop, st.Screen)
	assert.Equal(t, session.StatusReady, st.SessionStatus)
	assert.NotEmpty(t, st.UserID)
	assert.Len(t, st.Catalog.Shops, 3)
	assert.Equal(t, 1, st.Catalog.ShopID)
	assert.Equal(t, 1, st.Catalog.Page)
	assert.Equal(t, 2, st.Catalog.TotalPages)
	assert.Len(t, st.Catalog.Items, 8)
	assert.False(t, st.Catalog.Loading)
	assert.NoError(t, st.Catalog.Err)
	assert.False(t, st.CanSubmit)

	userID, err := h.memory.Get(context.Background(), core.KeyUserID)
	require.NoError(t, err)
	assert.Equal(t, st.UserID, userID)
}

func TestActionsNeedSession(t *testing.T) {
	h := newHarness(t, mockbackend.Options{})
	ctx := context.Background()

	assert.ErrorIs(t, h.app.AddToCart(ctx, catalog.Flower{ID: 1}), core.ErrNotReady)
	assert.ErrorIs(t, h.app.SelectShop(ctx, 2), core.ErrNotReady)
	assert.ErrorIs(t, h.app.ToggleSort(ctx, catalog.SortPrice), core.ErrNotReady)
	_, err := h.app.SubmitOrder(ctx)
	assert.ErrorIs(t, err, core.ErrNotReady)
	assert.Equal(t, session.StatusLoading, h.app.Snapshot().SessionStatus)
}

func TestStartFailsWhenBackendDown(t *testing.T) {
	h := newHarness(t, mockbackend.Options{})
	require.NoError(t, h.backend.Injector().Set(mockbackend.FaultConfig{
		Mode:            mockbackend.ModeServerError,
		ServerErrorRate: 1,
	}))

	err := h.app.Start(context.Background())
	assert.ErrorIs(t, err, core.ErrSessionUnavailable)

	st := h.app.Snapshot()
	assert.Equal(t, session.StatusFailed, st.SessionStatus)
	assert.Error(t, st.SessionErr)
	assert.Empty(t, st.UserID)
	assert.ErrorIs(t, h.app.AddToCart(context.Background(), catalog.Flower{ID: 1}), core.ErrNotReady)
}

func TestSessionRecoveryLoadsCatalog(t *testing.T) {
	h := newHarness(t, mockbackend.Options{})
	ctx := context.Background()
	require.NoError(t, h.backend.Injector().Set(mockbackend.FaultConfig{
		Mode:            mockbackend.ModeServerError,
		ServerErrorRate: 1,
	}))

	require.Error(t, h.app.Start(ctx))
	st := h.app.Snapshot()
	assert.Empty(t, st.Catalog.Shops)
	assert.Empty(t, st.Catalog.Items)

	h.backend.Injector().Reset()
	require.NoError(t, h.session.Refresh(ctx))

	st = h.app.Snapshot()
	assert.Equal(t, session.StatusReady, st.SessionStatus)
	assert.NotEmpty(t, st.UserID)
	assert.Len(t, st.Catalog.Shops, 3)
	assert.Len(t, st.Catalog.Items, 8)
	assert.Equal(t, 2, st.Catalog.TotalPages)
}

func TestFailedFetchReturnsToFirstPage(t *testing.T) {
	h := newHarness(t, mockbackend.Options{})
	ctx := context.Background()
	require.NoError(t, h.app.Start(ctx))
	require.NoError(t, h.app.SetPage(ctx, 2))
	require.Equal(t, 2, h.app.Snapshot().Catalog.Page)

	require.NoError(t, h.backend.Injector().Set(mockbackend.FaultConfig{
		Mode:            mockbackend.ModeServerError,
		ServerErrorRate: 1,
	}))
	require.NoError(t, h.app.Reload(ctx))

	st := h.app.Snapshot()
	assert.Error(t, st.Catalog.Err)
	assert.Empty(t, st.Catalog.Items)
	assert.Equal(t, 1, st.Catalog.Page)
	assert.Equal(t, 1, st.Catalog.TotalPages)

	h.backend.Injector().Reset()
	require.NoError(t, h.app.Reload(ctx))
	require.NoError(t, h.app.SetPage(ctx, 2))

	st = h.app.Snapshot()
	assert.NoError(t, st.Catalog.Err)
	assert.Equal(t, 2, st.Catalog.Page)
	assert.Len(t, st.Catalog.Items, 4)
}

func TestSortPageAndShop(t *testing.T) {
	h := newHarness(t, mockbackend.Options{})
	ctx := context.Background()
	require.NoError(t, h.app.Start(ctx))

	require.NoError(t, h.app.ToggleSort(ctx, catalog.SortPrice))
	st := h.app.Snapshot()
	assert.Equal(t, catalog.Sort{Field: catalog.SortPrice, Order: catalog.Asc}, st.Catalog.Sort)
	assert.Equal(t, "Daisy", st.Catalog.Items[0].Name)

	require.NoError(t, h.app.SetPage(ctx, 2))
	assert.Equal(t, 2, h.app.Snapshot().Catalog.Page)
	assert.Len(t, h.app.Snapshot().Catalog.Items, 4)

	require.NoError(t, h.app.ToggleSort(ctx, catalog.SortPrice))
	st = h.app.Snapshot()
	assert.Equal(t, catalog.Desc, st.Catalog.Sort.Order)
	assert.Equal(t, 1, st.Catalog.Page, "sorting resets the page")
	assert.Equal(t, "Orchid", st.Catalog.Items[0].Name)

	require.NoError(t, h.app.SetPage(ctx, 3))
	assert.Equal(t, 1, h.app.Snapshot().Catalog.Page, "out of range page is ignored")
	require.NoError(t, h.app.SetPage(ctx, 0))
	assert.Equal(t, 1, h.app.Snapshot().Catalog.Page)

	require.NoError(t, h.app.SelectShop(ctx, 2))
	st = h.app.Snapshot()
	assert.Equal(t, 2, st.Catalog.ShopID)
	assert.Equal(t, 1, st.Catalog.TotalPages)
	assert.Len(t, st.Catalog.Items, 6)

	require.NoError(t, h.app.SelectShop(ctx, 99))
	st = h.app.Snapshot()
	assert.Error(t, st.Catalog.Err)
	assert.Empty(t, st.Catalog.Items)
	assert.Equal(t, 1, st.Catalog.TotalPages)
}

func TestSubmitOrder(t *testing.T) {
	h := newHarness(t, mockbackend.Options{OrderIDStyle: mockbackend.IDInLocation})
	ctx := context.Background()
	require.NoError(t, h.app.Start(ctx))

	first := h.app.Snapshot().Catalog.Items[0]
	require.NoError(t, h.app.AddToCart(ctx, first))
	require.NoError(t, h.app.AddToCart(ctx, first))
	h.app.ShowCart()
	h.app.UpdateForm(fillForm)

	st := h.app.Snapshot()
	require.True(t, st.CanSubmit)
	userID := st.UserID
	exists, err := h.memory.Exists(ctx, core.CartKey(userID))
	require.NoError(t, err)
	require.True(t, exists)

	id, err := h.app.SubmitOrder(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1", id)

	st = h.app.Snapshot()
	assert.Equal(t, ScreenOrderDetails, st.Screen)
	assert.Equal(t, "1", st.OrderID)
	assert.Empty(t, st.Cart)
	assert.Empty(t, st.Form.Name, "form is reset")
	assert.Empty(t, st.Alert)

	exists, err = h.memory.Exists(ctx, core.CartKey(userID))
	require.NoError(t, err)
	assert.False(t, exists)

	details, err := h.app.OrderDetails(ctx)
	require.NoError(t, err)
	assert.Equal(t, order.ID("1"), details.ID)
	require.Len(t, details.Items, 1)
	assert.Equal(t, 2, details.Items[0].Quantity)
	assert.Equal(t, first.ID, details.Items[0].FlowerID)

	h.app.BackToShop()
	assert.Equal(t, ScreenShop, h.app.Snapshot().Screen)
}

func TestSubmitOrderFailureKeepsCart(t *testing.T) {
	h := newHarness(t, mockbackend.Options{OrderIDStyle: mockbackend.IDNone})
	ctx := context.Background()
	require.NoError(t, h.app.Start(ctx))

	require.NoError(t, h.app.AddToCart(ctx, h.app.Snapshot().Catalog.Items[0]))

	_, err := h.app.SubmitOrder(ctx)
	assert.ErrorIs(t, err, order.ErrInvalidForm)
	assert.Empty(t, h.app.Snapshot().Alert, "incomplete form raises no alert")

	h.app.UpdateForm(fillForm)
	_, err = h.app.SubmitOrder(ctx)
	assert.ErrorIs(t, err, order.ErrNoOrderID)

	st := h.app.Snapshot()
	assert.Equal(t, AlertPrefix+err.Error(), st.Alert)
	assert.Len(t, st.Cart, 1)
	assert.Equal(t, "Ann", st.Form.Name)
	assert.Equal(t, ScreenShop, st.Screen)

	h.app.DismissAlert()
	assert.Empty(t, h.app.Snapshot().Alert)
}

func TestOrderDetailsWithoutOrder(t *testing.T) {
	h := newHarness(t, mockbackend.Options{})
	_, err := h.app.OrderDetails(context.Background())
	assert.ErrorIs(t, err, ErrNoOrder)
}

func TestFavoritesThroughApp(t *testing.T) {
	h := newHarness(t, mockbackend.Options{})
	ctx := context.Background()
	require.NoError(t, h.app.Start(ctx))

	rose := h.app.Snapshot().Catalog.Items[0]
	fav, err := h.app.ToggleFavorite(ctx, rose)
	require.NoError(t, err)
	assert.True(t, fav)

	require.NoError(t, h.app.Reload(ctx))
	for _, f := range h.app.Snapshot().Catalog.Items {
		if f.ID == rose.ID {
			assert.Equal(t, 1, f.IsFavorite)
		}
	}
}

// staticSession is always ready as u1.
type staticSession struct{}

func (staticSession) Start(ctx context.Context) error                          { return nil }
func (staticSession) Close() error                                             { return nil }
func (staticSession) UserID() string                                           { return "u1" }
func (staticSession) Status() session.Status                                   { return session.StatusReady }
func (staticSession) Err() error                                               { return nil }
func (staticSession) OnUserChange(fn func(ctx context.Context, userID string)) {}

// gatedCatalog holds listings for one shop until released.
type gatedCatalog struct {
	gatedShop int
	entered   chan struct{}
	release   chan struct{}
	once      sync.Once
}

func (g *gatedCatalog) ListShops(ctx context.Context) (json.RawMessage, error) {
	return json.RawMessage(`[]`), nil
}

func (g *gatedCatalog) ListFlowers(ctx context.Context, shopID int, q api.FlowerQuery) (json.RawMessage, error) {
	if shopID == g.gatedShop {
		g.once.Do(func() { close(g.entered) })
		<-g.release
	}
	body := fmt.Sprintf(`{"items":[{"Id":%d,"ShopId":%d,"Name":"from shop %d","Description":"","Price":1,"DateAdded":"","ImageUrl":""}],"totalPages":1}`,
		shopID*100, shopID, shopID)
	return json.RawMessage(body), nil
}

func TestStaleCatalogPageIsDiscarded(t *testing.T) {
	gate := &gatedCatalog{gatedShop: 2, entered: make(chan struct{}), release: make(chan struct{})}
	orders, err := order.NewSubmitter(nil, core.OrderConfig{Timezone: "UTC"})
	require.NoError(t, err)

	a := New(Dependencies{
		Session: staticSession{},
		Cart:    cart.NewStore(core.NewMemoryStore()),
		Catalog: catalog.NewFetcher(gate, core.CatalogConfig{PageSize: 8}),
		Orders:  orders,
	})
	ctx := context.Background()

	done := make(chan error)
	go func() { done <- a.SelectShop(ctx, 2) }()
	<-gate.entered

	require.NoError(t, a.SelectShop(ctx, 3))
	close(gate.release)
	require.NoError(t, <-done)

	st := a.Snapshot()
	assert.Equal(t, 3, st.Catalog.ShopID)
	require.Len(t, st.Catalog.Items, 1)
	assert.Equal(t, "from shop 3", st.Catalog.Items[0].Name)
	assert.False(t, st.Catalog.Loading)
}
