// Package order validates the checkout form, builds the order payload,
// submits it and reads orders back.
package order

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/itsneelabh/storefront/cart"
)

// ErrInvalidForm is matched by every *FormError.
var ErrInvalidForm = errors.New("order form is incomplete")

// Form is the customer-entered checkout data.
type Form struct {
	Name             string    `form:"name" validate:"required"`
	Email            string    `form:"email" validate:"required"`
	Phone            string    `form:"phone" validate:"required"`
	Address          string    `form:"address" validate:"required"`
	DeliveryDateTime time.Time `form:"delivery_date_time"`
}

// NewForm returns an empty form with the default delivery time.
func NewForm(now time.Time) Form {
	return Form{DeliveryDateTime: DefaultDeliveryTime(now)}
}

// DefaultDeliveryTime is noon tomorrow in now's location.
func DefaultDeliveryTime(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+1, 12, 0, 0, 0, now.Location())
}

// FieldError names a form field that blocks submission.
type FieldError struct {
	Field  string
	Reason string
}

// FormError lists every blocking field.
type FormError struct {
	Fields []FieldError
}

func (e *FormError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Reason)
	}
	return fmt.Sprintf("%s: %s", ErrInvalidForm, strings.Join(parts, ", "))
}

func (e *FormError) Is(target error) bool {
	return target == ErrInvalidForm
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("form")
	})
	return v
}

// Validate lists what blocks submission: any of name, email, phone or
// address blank after trimming, or an empty cart.
func Validate(form Form, items cart.Items) []FieldError {
	trimmed := form
	trimmed.Name = strings.TrimSpace(form.Name)
	trimmed.Email = strings.TrimSpace(form.Email)
	trimmed.Phone = strings.TrimSpace(form.Phone)
	trimmed.Address = strings.TrimSpace(form.Address)

	var out []FieldError
	if err := validate.Struct(trimmed); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				out = append(out, FieldError{Field: fe.Field(), Reason: reason(fe.Tag())})
			}
		} else {
			out = append(out, FieldError{Field: "form", Reason: err.Error()})
		}
	}
	if len(items) == 0 {
		out = append(out, FieldError{Field: "cart", Reason: "is empty"})
	}
	return out
}

func reason(tag string) string {
	if tag == "required" {
		return "is required"
	}
	return "fails " + tag
}

// CanSubmit reports whether Validate finds nothing.
func CanSubmit(form Form, items cart.Items) bool {
	return len(Validate(form, items)) == 0
}
