package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net"

	"github.com/pkg/errors"

	"github.com/itsneelabh/storefront/core"
)

// DefaultErrorMessage is used when an error body carries no message.
const DefaultErrorMessage = "Something went wrong"

// StatusError is a non-2xx backend response.
type StatusError struct {
	StatusCode int
	Body       []byte
	// Message is the body's "message" field or DefaultErrorMessage.
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func newStatusError(resp *Response) *StatusError {
	msg := DefaultErrorMessage
	var body struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(resp.Body, &body) == nil && body.Message != "" {
		msg = body.Message
	}
	return &StatusError{StatusCode: resp.StatusCode, Body: resp.Body, Message: msg}
}

// AsStatusError unwraps err to a *StatusError.
func AsStatusError(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	se, ok := AsStatusError(err)
	return ok && se.StatusCode == code
}

// transportError tags a failed round trip as core.ErrTimeout or
// core.ErrConnectionFailed so core.IsTransient recognises it. An open
// circuit and a canceled context are left as they are.
func transportError(err error) error {
	if errors.Is(err, core.ErrCircuitOpen) || errors.Is(err, context.Canceled) {
		return err
	}
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%w: %w", core.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", core.ErrConnectionFailed, err)
}
