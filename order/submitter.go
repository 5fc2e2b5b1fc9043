package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/itsneelabh/storefront/api"
	"github.com/itsneelabh/storefront/cart"
	"github.com/itsneelabh/storefront/core"
)

// MetricSubmitted counts order submissions by outcome.
const MetricSubmitted = "storefront.orders.submitted"

// ErrNoDetails means GET /orders/{id} answered without order data.
var ErrNoDetails = errors.New("no order data received")

// Backend is the part of the API client the submitter needs.
type Backend interface {
	CreateOrder(ctx context.Context, payload interface{}) (*api.Response, error)
	GetOrder(ctx context.Context, id string) (json.RawMessage, error)
}

// Submitter sends orders and reads them back.
type Submitter struct {
	backend   Backend
	options   RequestOptions
	now       func() time.Time
	logger    core.Logger
	telemetry core.Telemetry
}

// Option configures a Submitter.
type Option func(*Submitter)

// WithLogger sets the logger.
func WithLogger(logger core.Logger) Option {
	return func(s *Submitter) {
		s.logger = core.ComponentLogger(logger, "storefront/order")
	}
}

// WithTelemetry sets the telemetry provider.
func WithTelemetry(t core.Telemetry) Option {
	return func(s *Submitter) {
		if t != nil {
			s.telemetry = t
		}
	}
}

// WithClock overrides time.Now for the default delivery time.
func WithClock(now func() time.Time) Option {
	return func(s *Submitter) {
		s.now = now
	}
}

// NewSubmitter creates a submitter. It fails only on an unknown timezone.
func NewSubmitter(backend Backend, cfg core.OrderConfig, opts ...Option) (*Submitter, error) {
	loc, err := ResolveLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}
	s := &Submitter{
		backend: backend,
		options: RequestOptions{
			Latitude:  cfg.DeliveryLatitude,
			Longitude: cfg.DeliveryLongitude,
			Location:  loc,
		},
		now:       time.Now,
		logger:    &core.NoOpLogger{},
		telemetry: &core.NoOpTelemetry{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Location is the client timezone used for delivery times.
func (s *Submitter) Location() *time.Location {
	return s.options.Location
}

// NewForm returns an empty form with delivery at noon tomorrow, client time.
func (s *Submitter) NewForm() Form {
	return NewForm(s.now().In(s.options.Location))
}

// Submit sends the order and returns its id. An incomplete form or empty
// cart is refused with a *FormError before any request is made.
func (s *Submitter) Submit(ctx context.Context, form Form, items cart.Items, shopID int) (string, error) {
	if problems := Validate(form, items); len(problems) > 0 {
		return "", &FormError{Fields: problems}
	}

	ctx, span := s.telemetry.StartSpan(ctx, "order.submit")
	defer span.End()

	req := BuildRequest(form, items, shopID, s.options)
	span.SetAttribute("shop_id", shopID)
	span.SetAttribute("lines", len(req.OrderItems))
	span.SetAttribute("total", req.TotalPrice)

	s.logger.Info("Submitting order", map[string]interface{}{
		"shop_id":  shopID,
		"lines":    len(req.OrderItems),
		"total":    req.TotalPrice,
		"timezone": req.UserTimezone,
	})

	resp, err := s.backend.CreateOrder(ctx, req)
	if err != nil {
		span.RecordError(err)
		s.record("error")
		s.logger.Error("Order submission failed", map[string]interface{}{
			"shop_id": shopID,
			"error":   err.Error(),
		})
		return "", fmt.Errorf("submit order: %w", err)
	}

	id, err := ExtractOrderID(resp.Body, resp.Header)
	if err != nil {
		span.RecordError(err)
		s.record("no_id")
		s.logger.Error("Order accepted without an id", map[string]interface{}{
			"status":   resp.StatusCode,
			"body":     string(resp.Body),
			"location": resp.Header.Get("Location"),
		})
		return "", err
	}

	span.SetAttribute("order_id", id)
	s.record("ok")
	s.logger.Info("Order submitted", map[string]interface{}{
		"order_id": id,
	})
	return id, nil
}

// Details fetches a stored order.
func (s *Submitter) Details(ctx context.Context, id string) (*Details, error) {
	ctx, span := s.telemetry.StartSpan(ctx, "order.details")
	defer span.End()
	span.SetAttribute("order_id", id)

	body, err := s.backend.GetOrder(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("load order %s: %w", id, err)
	}

	var resp detailsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("decode order %s: %v: %w", id, err, core.ErrCorruptData)
	}
	if !resp.Success || resp.Data == nil {
		return nil, ErrNoDetails
	}
	return resp.Data, nil
}

func (s *Submitter) record(outcome string) {
	s.telemetry.RecordMetric(MetricSubmitted, 1, map[string]string{"outcome": outcome})
}
