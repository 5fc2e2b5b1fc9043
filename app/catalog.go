package app

import (
	"context"

	"github.com/itsneelabh/storefront/catalog"
)

// SelectShop shows another shop from page 1.
func (a *App) SelectShop(ctx context.Context, shopID int) error {
	if err := a.requireUser(); err != nil {
		return err
	}
	a.mu.Lock()
	a.catalog.ShopID = shopID
	a.catalog.Page = 1
	a.mu.Unlock()

	a.loadPage(ctx)
	return nil
}

// ToggleSort picks a sort field: the active field flips direction, another
// field sorts ascending. The page resets to 1.
func (a *App) ToggleSort(ctx context.Context, field catalog.SortField) error {
	if err := a.requireUser(); err != nil {
		return err
	}
	a.mu.Lock()
	a.catalog.Sort = catalog.NextSort(a.catalog.Sort, field)
	a.catalog.Page = 1
	a.mu.Unlock()

	a.loadPage(ctx)
	return nil
}

// SetPage moves to page. Pages outside 1..TotalPages are ignored and do
// not fetch.
func (a *App) SetPage(ctx context.Context, page int) error {
	if err := a.requireUser(); err != nil {
		return err
	}
	a.mu.Lock()
	if page < 1 || page > a.catalog.TotalPages {
		a.mu.Unlock()
		return nil
	}
	a.catalog.Page = page
	a.mu.Unlock()

	a.loadPage(ctx)
	return nil
}

// loadPage fetches the page the view currently points at. A result that a
// newer fetch has superseded is dropped; a failed fetch leaves an empty
// page 1.
func (a *App) loadPage(ctx context.Context) {
	seq := a.deps.Catalog.Begin()

	a.mu.Lock()
	q := catalog.Query{
		ShopID:   a.catalog.ShopID,
		Sort:     a.catalog.Sort,
		Page:     a.catalog.Page,
		PageSize: a.deps.Catalog.PageSize(),
	}
	a.catalog.Loading = true
	a.mu.Unlock()

	res := a.deps.Catalog.FetchSeq(ctx, seq, q)

	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.deps.Catalog.IsCurrent(res.Seq) {
		a.logger.Debug("Discarding stale catalog page", map[string]interface{}{
			"shop_id": q.ShopID,
			"page":    q.Page,
			"seq":     res.Seq,
		})
		return
	}
	a.catalog.Items = res.Items
	a.catalog.TotalPages = res.TotalPages
	a.catalog.Err = res.Err
	a.catalog.Loading = false
	if res.Err != nil {
		a.catalog.Page = 1
	}
}
