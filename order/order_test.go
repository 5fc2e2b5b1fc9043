package order

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsneelabh/storefront/api"
	"github.com/itsneelabh/storefront/cart"
	"github.com/itsneelabh/storefront/catalog"
	"github.com/itsneelabh/storefront/core"
)

func filledForm() Form {
	return Form{
		Name:             "Ann",
		Email:            "ann@example.com",
		Phone:            "+380000000",
		Address:          "Khreshchatyk 1",
		DeliveryDateTime: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
	}
}

func oneRose() cart.Items {
	items := cart.Add(nil, catalog.Flower{ID: 5, Name: "Rose", Price: 10}, "u1")
	return cart.UpdateQuantity(items, 5, 2)
}

func TestDefaultDeliveryTime(t *testing.T) {
	kyiv, err := time.LoadLocation("Europe/Kyiv")
	require.NoError(t, err)

	tests := []struct {
		now  time.Time
		want time.Time
	}{
		{time.Date(2026, 1, 10, 8, 30, 0, 0, time.UTC), time.Date(2026, 1, 11, 12, 0, 0, 0, time.UTC)},
		{time.Date(2026, 1, 31, 23, 59, 0, 0, time.UTC), time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)},
		{time.Date(2026, 12, 31, 0, 0, 0, 0, kyiv), time.Date(2027, 1, 1, 12, 0, 0, 0, kyiv)},
	}
	for _, tt := range tests {
		assert.True(t, tt.want.Equal(DefaultDeliveryTime(tt.now)), tt.now.String())
	}
	assert.True(t, NewForm(tests[0].now).DeliveryDateTime.Equal(tests[0].want))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Form)
		items  cart.Items
		want   []string
	}{
		{"complete", func(*Form) {}, oneRose(), nil},
		{"blank name", func(f *Form) { f.Name = "   " }, oneRose(), []string{"name"}},
		{"missing email and phone", func(f *Form) { f.Email = ""; f.Phone = "\t" }, oneRose(), []string{"email", "phone"}},
		{"missing address", func(f *Form) { f.Address = "" }, oneRose(), []string{"address"}},
		{"empty cart", func(*Form) {}, nil, []string{"cart"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := filledForm()
			tt.mutate(&form)

			problems := Validate(form, tt.items)
			var fields []string
			for _, p := range problems {
				fields = append(fields, p.Field)
			}
			assert.Equal(t, tt.want, fields)
			assert.Equal(t, tt.want == nil, CanSubmit(form, tt.items))
		})
	}
}

func TestBuildRequest(t *testing.T) {
	kyiv, err := time.LoadLocation("Europe/Kyiv")
	require.NoError(t, err)
	items := cart.Add(oneRose(), catalog.Flower{ID: 9, Price: 3.35}, "u1")

	req := BuildRequest(filledForm(), items, 3, RequestOptions{
		Latitude:  core.DefaultDeliveryLatitude,
		Longitude: core.DefaultDeliveryLongitude,
		Location:  kyiv,
	})

	data, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"Name": "Ann",
		"Email": "ann@example.com",
		"Phone": "+380000000",
		"DeliveryAddress": "Khreshchatyk 1",
		"DeliveryDateTime": "2026-03-02T14:00:00+02:00",
		"DeliveryLatitude": 50.4501,
		"DeliveryLongitude": 30.5234,
		"ShopId": 3,
		"TotalPrice": 23.35,
		"UserTimezone": "Europe/Kyiv",
		"CouponCode": "",
		"OrderItems": [{"FlowerId": 5, "Quantity": 2}, {"FlowerId": 9, "Quantity": 1}]
	}`, string(data))
}

func TestBuildRequestDefaultsToUTC(t *testing.T) {
	req := BuildRequest(filledForm(), oneRose(), 1, RequestOptions{})
	assert.Equal(t, "UTC", req.UserTimezone)
	assert.Equal(t, "2026-03-02T12:00:00Z", req.DeliveryDateTime)
}

func TestResolveLocation(t *testing.T) {
	t.Setenv(core.EnvTimezone, "")
	loc, err := ResolveLocation("")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	t.Setenv(core.EnvTimezone, "America/New_York")
	loc, err = ResolveLocation("")
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", loc.String())

	loc, err = ResolveLocation("Europe/Kyiv")
	require.NoError(t, err)
	assert.Equal(t, "Europe/Kyiv", loc.String(), "configured name wins over TZ")

	_, err = ResolveLocation("Mars/Olympus")
	assert.True(t, errors.Is(err, core.ErrInvalidConfiguration))
}

func TestExtractOrderID(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		location string
		want     string
	}{
		{"top level id", `{"id":"abc123"}`, "", "abc123"},
		{"top level Id number", `{"Id":17}`, "", "17"},
		{"id before Id", `{"id":"a","Id":"b"}`, "", "a"},
		{"nested order", `{"order":{"Id":"o-1"}}`, "", "o-1"},
		{"nested data", `{"success":true,"data":{"id":99}}`, "", "99"},
		{"order before data", `{"order":{"id":"o"},"data":{"id":"d"}}`, "", "o"},
		{"body beats location", `{"id":"abc123"}`, "/orders/42", "abc123"},
		{"location fallback", `{}`, "/orders/42", "42"},
		{"absolute location", `{"success":true}`, "http://api/orders/7", "7"},
		{"empty body", ``, "/orders/42", "42"},
		{"array body", `[1,2]`, "/orders/8", "8"},
		{"zero id is ignored", `{"id":0}`, "/orders/3", "3"},
		{"large id stays exact", `{"id":12345678901234567890}`, "", "12345678901234567890"},
		{"exponent id", `{"id":1e3}`, "", "1000"},
		{"integral float id", `{"Id":42.0}`, "", "42"},
		{"fractional id", `{"id":1.5}`, "", "1.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.location != "" {
				header.Set("Location", tt.location)
			}
			id, err := ExtractOrderID([]byte(tt.body), header)
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestExtractOrderIDMissing(t *testing.T) {
	for _, tc := range []struct{ body, location string }{
		{`{"success":true}`, ""},
		{`{"success":true}`, "/orders/abc"},
		{`{"id":""}`, "/orders/"},
		{`not json`, ""},
	} {
		header := http.Header{}
		header.Set("Location", tc.location)
		_, err := ExtractOrderID([]byte(tc.body), header)
		assert.Equal(t, ErrNoOrderID, err, tc.body)
	}
	_, err := ExtractOrderID(nil, nil)
	assert.Equal(t, ErrNoOrderID, err)
}

type fakeBackend struct {
	calls    int
	payload  interface{}
	response *api.Response
	err      error
	order    json.RawMessage
	orderErr error
}

func (f *fakeBackend) CreateOrder(ctx context.Context, payload interface{}) (*api.Response, error) {
	f.calls++
	f.payload = payload
	return f.response, f.err
}

func (f *fakeBackend) GetOrder(ctx context.Context, id string) (json.RawMessage, error) {
	return f.order, f.orderErr
}

func newTestSubmitter(t *testing.T, backend *fakeBackend) *Submitter {
	t.Helper()
	s, err := NewSubmitter(backend, core.OrderConfig{
		DeliveryLatitude:  core.DefaultDeliveryLatitude,
		DeliveryLongitude: core.DefaultDeliveryLongitude,
		Timezone:          "UTC",
	}, WithClock(func() time.Time { return time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC) }))
	require.NoError(t, err)
	return s
}

func TestSubmit(t *testing.T) {
	tests := []struct {
		name     string
		response *api.Response
		want     string
	}{
		{"id in body", &api.Response{StatusCode: 201, Body: []byte(`{"id":"abc123"}`), Header: http.Header{}}, "abc123"},
		{"id in location", &api.Response{StatusCode: 201, Header: http.Header{"Location": {"/orders/42"}}}, "42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{response: tt.response}
			s := newTestSubmitter(t, backend)

			id, err := s.Submit(context.Background(), filledForm(), oneRose(), 2)
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)

			req, ok := backend.payload.(Request)
			require.True(t, ok)
			assert.Equal(t, 2, req.ShopID)
			assert.Equal(t, 20.0, req.TotalPrice)
			assert.Equal(t, "UTC", req.UserTimezone)
		})
	}
}

func TestSubmitWithoutOrderID(t *testing.T) {
	backend := &fakeBackend{response: &api.Response{StatusCode: 200, Body: []byte(`{"success":true}`), Header: http.Header{}}}
	s := newTestSubmitter(t, backend)

	_, err := s.Submit(context.Background(), filledForm(), oneRose(), 1)
	assert.True(t, errors.Is(err, ErrNoOrderID))
}

func TestSubmitBackendError(t *testing.T) {
	backend := &fakeBackend{err: &api.StatusError{StatusCode: 400, Message: "Invalid shop"}}
	s := newTestSubmitter(t, backend)

	_, err := s.Submit(context.Background(), filledForm(), oneRose(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid shop")
	assert.True(t, api.IsStatus(err, 400))
}

func TestSubmitRefusesIncompleteForm(t *testing.T) {
	backend := &fakeBackend{}
	s := newTestSubmitter(t, backend)

	form := filledForm()
	form.Name = ""
	_, err := s.Submit(context.Background(), form, oneRose(), 1)

	assert.True(t, errors.Is(err, ErrInvalidForm))
	var formErr *FormError
	require.True(t, errors.As(err, &formErr))
	assert.Equal(t, "name", formErr.Fields[0].Field)
	assert.Contains(t, err.Error(), "name is required")
	assert.Equal(t, 0, backend.calls, "no network call")

	_, err = s.Submit(context.Background(), filledForm(), nil, 1)
	assert.True(t, errors.Is(err, ErrInvalidForm))
	assert.Equal(t, 0, backend.calls)
}

func TestSubmitterNewForm(t *testing.T) {
	s := newTestSubmitter(t, &fakeBackend{})
	form := s.NewForm()
	assert.Equal(t, time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC), form.DeliveryDateTime)
	assert.Empty(t, form.Name)
	assert.Equal(t, time.UTC, s.Location())
}

func TestNewSubmitterRejectsUnknownTimezone(t *testing.T) {
	_, err := NewSubmitter(&fakeBackend{}, core.OrderConfig{Timezone: "Nowhere/City"})
	assert.True(t, errors.Is(err, core.ErrInvalidConfiguration))
}

func TestDetails(t *testing.T) {
	backend := &fakeBackend{order: json.RawMessage(`{
		"success": true,
		"data": {
			"Id": "9f8e7d6c-5b4a",
			"Name": "Ann",
			"ShopId": 1,
			"CouponCode": null,
			"TotalPrice": 20,
			"items": [{"Id": 1, "OrderId": 77, "FlowerId": 5, "Quantity": 2, "name": "Rose", "price": 10}],
			"shop": {"Id": 1, "Name": "Central", "Address": "Main st"}
		}
	}`)}
	s := newTestSubmitter(t, backend)

	d, err := s.Details(context.Background(), "9f8e7d6c-5b4a")
	require.NoError(t, err)
	assert.Equal(t, ID("9f8e7d6c-5b4a"), d.ID)
	assert.Equal(t, "9F8E7D6C", d.Number())
	assert.Nil(t, d.CouponCode)
	require.Len(t, d.Items, 1)
	assert.Equal(t, ID("77"), d.Items[0].OrderID)
	assert.Equal(t, "Rose", d.Items[0].Name)
	assert.Equal(t, "Central", d.Shop.Name)
}

func TestDetailsFailures(t *testing.T) {
	tests := []struct {
		name    string
		backend *fakeBackend
		want    error
	}{
		{"not successful", &fakeBackend{order: json.RawMessage(`{"success":false}`)}, ErrNoDetails},
		{"no data", &fakeBackend{order: json.RawMessage(`{"success":true}`)}, ErrNoDetails},
		{"garbage", &fakeBackend{order: json.RawMessage(`<html>`)}, core.ErrCorruptData},
		{"not found", &fakeBackend{orderErr: &api.StatusError{StatusCode: 404}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestSubmitter(t, tt.backend).Details(context.Background(), "1")
			require.Error(t, err)
			if tt.want != nil {
				assert.True(t, errors.Is(err, tt.want))
			}
		})
	}
}
