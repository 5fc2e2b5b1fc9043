// Package catalog fetches shops and paginated, sorted flower listings and
// validates every listed item before it reaches the caller.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/itsneelabh/storefront/api"
	"github.com/itsneelabh/storefront/core"
)

// Backend is the part of the API client the fetcher needs.
type Backend interface {
	ListFlowers(ctx context.Context, shopID int, q api.FlowerQuery) (json.RawMessage, error)
	ListShops(ctx context.Context) (json.RawMessage, error)
}

// Fetcher loads catalog pages. Every Fetch gets a new sequence number so
// callers can drop responses that a later request has superseded.
type Fetcher struct {
	backend  Backend
	pageSize int

	seq atomic.Uint64

	logger    core.Logger
	telemetry core.Telemetry
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithLogger sets the logger.
func WithLogger(logger core.Logger) Option {
	return func(f *Fetcher) {
		f.logger = core.ComponentLogger(logger, "storefront/catalog")
	}
}

// WithTelemetry sets the telemetry provider.
func WithTelemetry(t core.Telemetry) Option {
	return func(f *Fetcher) {
		if t != nil {
			f.telemetry = t
		}
	}
}

// NewFetcher creates a fetcher. A non-positive page size uses the default.
func NewFetcher(backend Backend, cfg core.CatalogConfig, opts ...Option) *Fetcher {
	pageSize := cfg.PageSize
	if pageSize < 1 {
		pageSize = core.DefaultPageSize
	}
	f := &Fetcher{
		backend:   backend,
		pageSize:  pageSize,
		logger:    &core.NoOpLogger{},
		telemetry: &core.NoOpTelemetry{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// PageSize is the configured listing page size.
func (f *Fetcher) PageSize() int {
	return f.pageSize
}

// Begin reserves the next sequence number. Fetch calls it; callers that
// start a fetch in the background can call it first and pass the number
// to FetchSeq.
func (f *Fetcher) Begin() uint64 {
	return f.seq.Add(1)
}

// IsCurrent reports whether seq belongs to the latest fetch.
func (f *Fetcher) IsCurrent(seq uint64) bool {
	return f.seq.Load() == seq
}

// Fetch loads one page. It never fails: transport errors, non-2xx
// responses and undecodable bodies give an empty single page with Err set.
func (f *Fetcher) Fetch(ctx context.Context, q Query) *Result {
	return f.FetchSeq(ctx, f.Begin(), q)
}

// FetchSeq is Fetch with a sequence number obtained from Begin.
func (f *Fetcher) FetchSeq(ctx context.Context, seq uint64, q Query) *Result {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = f.pageSize
	}

	ctx, span := f.telemetry.StartSpan(ctx, "catalog.fetch")
	defer span.End()
	span.SetAttribute("shop_id", q.ShopID)
	span.SetAttribute("page", q.Page)
	span.SetAttribute("sort_by", string(q.Sort.Field))

	result := &Result{Seq: seq, Query: q, Items: []Flower{}, TotalPages: 1}

	body, err := f.backend.ListFlowers(ctx, q.ShopID, q.wire())
	if err != nil {
		span.RecordError(err)
		result.Err = err
		f.logger.Error("Failed to fetch flowers", map[string]interface{}{
			"shop_id": q.ShopID,
			"page":    q.Page,
			"error":   err.Error(),
		})
		return result
	}

	items, totalPages, invalid, err := Decode(body, q.Page, q.PageSize)
	if err != nil {
		span.RecordError(err)
		result.Err = err
		f.logger.Error("Failed to decode flowers", map[string]interface{}{
			"shop_id": q.ShopID,
			"error":   err.Error(),
		})
		return result
	}

	result.Items = items
	result.TotalPages = totalPages
	result.Invalid = invalid
	if len(invalid) > 0 {
		f.logger.Warn("Dropped invalid flowers from listing", map[string]interface{}{
			"shop_id":  q.ShopID,
			"page":     q.Page,
			"dropped":  countItems(invalid),
			"problems": describe(invalid),
		})
	}
	span.SetAttribute("items", len(items))
	span.SetAttribute("total_pages", totalPages)
	return result
}

type envelope struct {
	Items      []json.RawMessage `json:"items"`
	TotalPages int               `json:"totalPages"`
}

// Decode parses a listing body. A bare list carries no page count, so it
// counts as two pages when page 1 came back full and one page otherwise. An
// {items, totalPages} envelope uses totalPages, or 1 when that is missing.
func Decode(body []byte, page, pageSize int) ([]Flower, int, []ValidationError, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, 0, nil, fmt.Errorf("empty listing body: %w", core.ErrCorruptData)
	}

	var raw []json.RawMessage
	var totalPages int
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, 0, nil, fmt.Errorf("decode listing: %v: %w", err, core.ErrCorruptData)
		}
		totalPages = bareListPages(page, pageSize, len(raw))
	case '{':
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, 0, nil, fmt.Errorf("decode listing: %v: %w", err, core.ErrCorruptData)
		}
		raw = env.Items
		totalPages = env.TotalPages
		if totalPages < 1 {
			totalPages = 1
		}
	default:
		return nil, 0, nil, fmt.Errorf("listing is neither a list nor an object: %w", core.ErrCorruptData)
	}

	items := make([]Flower, 0, len(raw))
	var invalid []ValidationError
	for i, r := range raw {
		flower, errs := validateFlower(i, r)
		if len(errs) > 0 {
			invalid = append(invalid, errs...)
			continue
		}
		items = append(items, flower)
	}
	return items, totalPages, invalid, nil
}

// bareListPages guesses the page count for a response without one.
// TODO: drop once every backend returns the {items, totalPages} envelope.
func bareListPages(page, pageSize, n int) int {
	if page == 1 && n == pageSize {
		return 2
	}
	return 1
}

func countItems(errs []ValidationError) int {
	seen := make(map[int]struct{})
	for _, e := range errs {
		seen[e.Index] = struct{}{}
	}
	return len(seen)
}

func describe(errs []ValidationError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Error())
	}
	return out
}

// ListShops loads the shop list. On failure it returns an empty list along
// with the error, which callers may only log.
func (f *Fetcher) ListShops(ctx context.Context) ([]Shop, error) {
	ctx, span := f.telemetry.StartSpan(ctx, "catalog.list_shops")
	defer span.End()

	body, err := f.backend.ListShops(ctx)
	if err == nil {
		var shops []Shop
		if err = json.Unmarshal(body, &shops); err == nil {
			if shops == nil {
				shops = []Shop{}
			}
			span.SetAttribute("shops", len(shops))
			return shops, nil
		}
		err = fmt.Errorf("decode shops: %v: %w", err, core.ErrCorruptData)
	}

	span.RecordError(err)
	f.logger.Error("Failed to fetch shops", map[string]interface{}{
		"error": err.Error(),
	})
	return []Shop{}, err
}

// ShopName finds a shop's name, or "Shop <id>" when it is not listed.
func ShopName(shops []Shop, id int) string {
	for _, s := range shops {
		if s.ID == id {
			return s.Name
		}
	}
	return "Shop " + strconv.Itoa(id)
}
