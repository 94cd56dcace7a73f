package stripeapi

import (
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// UpstreamError carries the provider's error type/code/request id so support
// can chase a failed call without grepping provider dashboards blind.
type UpstreamError struct {
	Op        string
	Type      string
	Code      string
	RequestID string
	Msg       string
	wrapped   error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("stripe: %s failed: type=%s code=%s request_id=%s: %s", e.Op, e.Type, e.Code, e.RequestID, e.Msg)
}

func (e *UpstreamError) Unwrap() error { return e.wrapped }

func wrapErr(op string, err error) error {
	var sErr *stripe.Error
	if errors.As(err, &sErr) {
		return &UpstreamError{
			Op:        op,
			Type:      string(sErr.Type),
			Code:      string(sErr.Code),
			RequestID: sErr.RequestID,
			Msg:       sErr.Msg,
			wrapped:   err,
		}
	}
	return fmt.Errorf("stripe: %s failed: %w", op, err)
}

// VerifyEvent checks the webhook signature against the raw body bytes. The
// body must not be re-serialized before verification.
func VerifyEvent(payload []byte, sigHeader, secret string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, sigHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}
