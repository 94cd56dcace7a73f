package processor

import (
	"encoding/json"
	"fmt"
)

// Envelope is the provider event shell handed to the processor: the raw
// object payload plus the envelope fields the dispatch needs. Payloads are
// decoded into a closed set of typed variants with required-field checks so
// a missing field is a decode failure at the boundary, not a nil panic deep
// in reconciliation.
type Envelope struct {
	EventID string
	Type    string
	Data    json.RawMessage
}

type addressPayload struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type customerDetailsPayload struct {
	Email   string          `json:"email"`
	Name    string          `json:"name"`
	Address *addressPayload `json:"address"`
}

type checkoutSessionPayload struct {
	ID              string                  `json:"id"`
	Mode            string                  `json:"mode"`
	PaymentStatus   string                  `json:"payment_status"`
	AmountTotal     int64                   `json:"amount_total"`
	Currency        string                  `json:"currency"`
	Customer        string                  `json:"customer"`
	CustomerDetails *customerDetailsPayload `json:"customer_details"`
	Subscription    string                  `json:"subscription"`
	PaymentIntent   string                  `json:"payment_intent"`
	Metadata        map[string]string       `json:"metadata"`
}

func (p *checkoutSessionPayload) email() string {
	if p.CustomerDetails == nil {
		return ""
	}
	return p.CustomerDetails.Email
}

func decodeCheckoutSession(data json.RawMessage) (*checkoutSessionPayload, error) {
	var p checkoutSessionPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode checkout session payload: %w", err)
	}
	if p.ID == "" {
		return nil, fmt.Errorf("checkout session payload has no id")
	}
	if p.Mode != "payment" && p.Mode != "subscription" {
		return nil, fmt.Errorf("checkout session %s has unsupported mode %q", p.ID, p.Mode)
	}
	// A donation must be attributable to a contactable donor; sessions
	// without a customer email fail loudly.
	if p.email() == "" {
		return nil, fmt.Errorf("checkout session %s has no customer email", p.ID)
	}
	return &p, nil
}

type invoiceParentPayload struct {
	SubscriptionDetails *struct {
		Subscription string `json:"subscription"`
	} `json:"subscription_details"`
}

type invoicePayload struct {
	ID           string                `json:"id"`
	Customer     string                `json:"customer"`
	Status       string                `json:"status"`
	AmountPaid   int64                 `json:"amount_paid"`
	AmountDue    int64                 `json:"amount_due"`
	Currency     string                `json:"currency"`
	Subscription string                `json:"subscription"`
	Parent       *invoiceParentPayload `json:"parent"`
}

// subscriptionID handles both payload generations: the legacy top-level
// subscription field and the newer parent.subscription_details shape.
func (p *invoicePayload) subscriptionID() string {
	if p.Subscription != "" {
		return p.Subscription
	}
	if p.Parent != nil && p.Parent.SubscriptionDetails != nil {
		return p.Parent.SubscriptionDetails.Subscription
	}
	return ""
}

func decodeInvoice(data json.RawMessage) (*invoicePayload, error) {
	var p invoicePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode invoice payload: %w", err)
	}
	if p.ID == "" {
		return nil, fmt.Errorf("invoice payload has no id")
	}
	if p.Customer == "" {
		return nil, fmt.Errorf("invoice %s has no customer", p.ID)
	}
	if p.subscriptionID() == "" {
		return nil, fmt.Errorf("invoice %s has no subscription", p.ID)
	}
	return &p, nil
}

type pricePayload struct {
	ID         string `json:"id"`
	UnitAmount int64  `json:"unit_amount"`
	Currency   string `json:"currency"`
}

type subscriptionPayload struct {
	ID         string `json:"id"`
	Customer   string `json:"customer"`
	Status     string `json:"status"`
	CancelAt   int64  `json:"cancel_at"`
	CanceledAt int64  `json:"canceled_at"`
	Items      struct {
		Data []struct {
			Price *pricePayload `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

func (p *subscriptionPayload) price() *pricePayload {
	if len(p.Items.Data) == 0 {
		return nil
	}
	return p.Items.Data[0].Price
}

func decodeSubscription(data json.RawMessage) (*subscriptionPayload, error) {
	var p subscriptionPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode subscription payload: %w", err)
	}
	if p.ID == "" {
		return nil, fmt.Errorf("subscription payload has no id")
	}
	if p.Customer == "" {
		return nil, fmt.Errorf("subscription %s has no customer", p.ID)
	}
	if p.Status == "" {
		return nil, fmt.Errorf("subscription %s has no status", p.ID)
	}
	if p.price() == nil {
		return nil, fmt.Errorf("subscription %s has no price item", p.ID)
	}
	return &p, nil
}

type chargePayload struct {
	ID            string `json:"id"`
	PaymentIntent string `json:"payment_intent"`
	// Invoice is set on recurring charges; the matching payment row is
	// keyed by it rather than by the payment intent.
	Invoice  string `json:"invoice"`
	Refunded bool   `json:"refunded"`
}

func decodeCharge(data json.RawMessage) (*chargePayload, error) {
	var p chargePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode charge payload: %w", err)
	}
	if p.ID == "" {
		return nil, fmt.Errorf("charge payload has no id")
	}
	return &p, nil
}
