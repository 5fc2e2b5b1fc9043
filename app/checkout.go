package app

import (
	"context"
	"errors"

	"github.com/itsneelabh/storefront/catalog"
	"github.com/itsneelabh/storefront/order"
)

// AddToCart adds one of flower to the cart.
func (a *App) AddToCart(ctx context.Context, flower catalog.Flower) error {
	if err := a.requireUser(); err != nil {
		return err
	}
	return a.deps.Cart.Add(ctx, flower)
}

// RemoveFromCart drops a cart line.
func (a *App) RemoveFromCart(ctx context.Context, id int) error {
	if err := a.requireUser(); err != nil {
		return err
	}
	return a.deps.Cart.Remove(ctx, id)
}

// UpdateQuantity sets a cart line's quantity; values below 1 are ignored.
func (a *App) UpdateQuantity(ctx context.Context, id, quantity int) error {
	if err := a.requireUser(); err != nil {
		return err
	}
	return a.deps.Cart.UpdateQuantity(ctx, id, quantity)
}

// ToggleFavorite flips a flower's favorite flag.
func (a *App) ToggleFavorite(ctx context.Context, flower catalog.Flower) (bool, error) {
	if a.deps.Favorites == nil {
		return flower.IsFavorite == 1, nil
	}
	return a.deps.Favorites.Toggle(ctx, flower)
}

// UpdateForm edits the checkout form.
func (a *App) UpdateForm(fn func(*order.Form)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fn(&a.form)
}

// SubmitOrder places the order for the current cart and shop. On success
// the cart and form are cleared and the order details screen is shown. On
// failure the cart and form stay as they are and an alert is set; an
// incomplete form is refused without an alert.
func (a *App) SubmitOrder(ctx context.Context) (string, error) {
	if err := a.requireUser(); err != nil {
		return "", err
	}

	a.mu.RLock()
	form := a.form
	shopID := a.catalog.ShopID
	a.mu.RUnlock()

	id, err := a.deps.Orders.Submit(ctx, form, a.deps.Cart.Items(), shopID)
	if err != nil {
		if !errors.Is(err, order.ErrInvalidForm) {
			a.mu.Lock()
			a.alert = AlertPrefix + err.Error()
			a.mu.Unlock()
		}
		return "", err
	}

	if err := a.deps.Cart.Clear(ctx); err != nil {
		a.logger.Warn("Order placed but the cart could not be cleared", map[string]interface{}{
			"order_id": id,
			"error":    err.Error(),
		})
	}

	a.mu.Lock()
	a.form = a.deps.Orders.NewForm()
	a.orderID = id
	a.alert = ""
	a.screen = ScreenOrderDetails
	a.mu.Unlock()
	return id, nil
}

// OrderDetails loads the last placed order.
func (a *App) OrderDetails(ctx context.Context) (*order.Details, error) {
	a.mu.RLock()
	id := a.orderID
	a.mu.RUnlock()

	if id == "" {
		return nil, ErrNoOrder
	}
	return a.deps.Orders.Details(ctx, id)
}

// ShowOrder points the order details screen at id.
func (a *App) ShowOrder(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.orderID = id
	a.screen = ScreenOrderDetails
}
