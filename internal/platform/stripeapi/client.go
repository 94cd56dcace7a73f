package stripeapi

import (
	"context"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82"
	"go.uber.org/fx"

	"github.com/harborlight/donations/pkg/types"
)

// Credentials is the per-invocation Stripe configuration. It is loaded from
// the settings service on each request rather than held in a module-level
// singleton, so mode and keys can rotate while the process runs.
type Credentials struct {
	Mode          types.StripeMode
	SecretKey     string
	WebhookSecret string
}

// CheckoutSession is the slice of the provider session this service reads.
type CheckoutSession struct {
	ID               string
	URL              string
	Mode             string
	PaymentStatus    string
	AmountTotalCents int64
	Currency         string
}

// Subscription is the provider subscription detail used for reconciliation.
type Subscription struct {
	ID          string
	CustomerID  string
	Status      string
	PriceID     string
	AmountCents int64
	Currency    string
	CancelAt    *time.Time
	CanceledAt  *time.Time
}

type Customer struct {
	ID    string
	Email string
	Name  string
}

type CheckoutLine struct {
	// PriceID references a cached price; leave empty to price the line
	// inline with Name/AmountCents/Currency instead.
	PriceID     string
	Name        string
	AmountCents int64
	Currency    string
	Quantity    int64
}

type CheckoutSessionParams struct {
	Mode           string // "payment" or "subscription"
	Lines          []CheckoutLine
	SuccessURL     string
	CancelURL      string
	Metadata       map[string]string
	IdempotencyKey string
}

// API is the provider surface the services depend on. Tests substitute fakes.
type API interface {
	CreateProduct(ctx context.Context, name, idempotencyKey string) (string, error)
	CreateOneTimePrice(ctx context.Context, productID, currency string, amountCents int64, idempotencyKey string) (string, error)
	CreateRecurringPrice(ctx context.Context, productID, currency string, amountCents int64, idempotencyKey string) (string, error)
	CreateCheckoutSession(ctx context.Context, params *CheckoutSessionParams) (*CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)
	GetCustomer(ctx context.Context, customerID string) (*Customer, error)
	CreateBillingPortalSession(ctx context.Context, customerID, returnURL string) (string, error)
}

// Factory builds an API bound to one set of credentials.
type Factory func(Credentials) API

func NewFactory() Factory {
	return func(creds Credentials) API { return NewClient(creds) }
}

var Module = fx.Options(
	fx.Provide(NewFactory),
)

// Client talks to Stripe through the v82 client API.
type Client struct {
	sc *stripe.Client
}

func NewClient(creds Credentials) *Client {
	return &Client{sc: stripe.NewClient(creds.SecretKey)}
}

func (c *Client) CreateProduct(ctx context.Context, name, idempotencyKey string) (string, error) {
	params := &stripe.ProductCreateParams{
		Name: stripe.String(name),
	}
	params.IdempotencyKey = stripe.String(idempotencyKey)
	p, err := c.sc.V1Products.Create(ctx, params)
	if err != nil {
		return "", wrapErr("create product", err)
	}
	return p.ID, nil
}

func (c *Client) CreateOneTimePrice(ctx context.Context, productID, currency string, amountCents int64, idempotencyKey string) (string, error) {
	params := &stripe.PriceCreateParams{
		Product:    stripe.String(productID),
		Currency:   stripe.String(currency),
		UnitAmount: stripe.Int64(amountCents),
	}
	params.IdempotencyKey = stripe.String(idempotencyKey)
	p, err := c.sc.V1Prices.Create(ctx, params)
	if err != nil {
		return "", wrapErr("create one-time price", err)
	}
	return p.ID, nil
}

func (c *Client) CreateRecurringPrice(ctx context.Context, productID, currency string, amountCents int64, idempotencyKey string) (string, error) {
	params := &stripe.PriceCreateParams{
		Product:    stripe.String(productID),
		Currency:   stripe.String(currency),
		UnitAmount: stripe.Int64(amountCents),
		Recurring: &stripe.PriceCreateRecurringParams{
			Interval: stripe.String("month"),
		},
	}
	params.IdempotencyKey = stripe.String(idempotencyKey)
	p, err := c.sc.V1Prices.Create(ctx, params)
	if err != nil {
		return "", wrapErr("create recurring price", err)
	}
	return p.ID, nil
}

func (c *Client) CreateCheckoutSession(ctx context.Context, in *CheckoutSessionParams) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionCreateParams{
		Mode:       stripe.String(in.Mode),
		SuccessURL: stripe.String(in.SuccessURL),
		CancelURL:  stripe.String(in.CancelURL),
		SubmitType: stripe.String("donate"),
	}
	if len(in.Metadata) > 0 {
		params.Metadata = in.Metadata
	}
	if in.IdempotencyKey != "" {
		params.IdempotencyKey = stripe.String(in.IdempotencyKey)
	}
	for _, line := range in.Lines {
		lp := &stripe.CheckoutSessionCreateLineItemParams{
			Quantity: stripe.Int64(line.Quantity),
		}
		if line.PriceID != "" {
			lp.Price = stripe.String(line.PriceID)
		} else {
			lp.PriceData = &stripe.CheckoutSessionCreateLineItemPriceDataParams{
				Currency:   stripe.String(line.Currency),
				UnitAmount: stripe.Int64(line.AmountCents),
				ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
					Name: stripe.String(line.Name),
				},
			}
		}
		params.LineItems = append(params.LineItems, lp)
	}

	s, err := c.sc.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		return nil, wrapErr("create checkout session", err)
	}
	return convertSession(s), nil
}

func (c *Client) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	s, err := c.sc.V1CheckoutSessions.Retrieve(ctx, sessionID, nil)
	if err != nil {
		return nil, wrapErr("retrieve checkout session", err)
	}
	return convertSession(s), nil
}

func (c *Client) GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	s, err := c.sc.V1Subscriptions.Retrieve(ctx, subscriptionID, nil)
	if err != nil {
		return nil, wrapErr("retrieve subscription", err)
	}
	return convertSubscription(s)
}

func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	s, err := c.sc.V1Subscriptions.Cancel(ctx, subscriptionID, nil)
	if err != nil {
		return nil, wrapErr("cancel subscription", err)
	}
	return convertSubscription(s)
}

func (c *Client) GetCustomer(ctx context.Context, customerID string) (*Customer, error) {
	cu, err := c.sc.V1Customers.Retrieve(ctx, customerID, nil)
	if err != nil {
		return nil, wrapErr("retrieve customer", err)
	}
	return &Customer{ID: cu.ID, Email: cu.Email, Name: cu.Name}, nil
}

func (c *Client) CreateBillingPortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionCreateParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	s, err := c.sc.V1BillingPortalSessions.Create(ctx, params)
	if err != nil {
		return "", wrapErr("create billing portal session", err)
	}
	return s.URL, nil
}

func convertSession(s *stripe.CheckoutSession) *CheckoutSession {
	return &CheckoutSession{
		ID:               s.ID,
		URL:              s.URL,
		Mode:             string(s.Mode),
		PaymentStatus:    string(s.PaymentStatus),
		AmountTotalCents: s.AmountTotal,
		Currency:         string(s.Currency),
	}
}

func convertSubscription(s *stripe.Subscription) (*Subscription, error) {
	out := &Subscription{
		ID:     s.ID,
		Status: string(s.Status),
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if s.Items == nil || len(s.Items.Data) == 0 || s.Items.Data[0].Price == nil {
		return nil, fmt.Errorf("subscription %s has no price item", s.ID)
	}
	price := s.Items.Data[0].Price
	out.PriceID = price.ID
	out.AmountCents = price.UnitAmount
	out.Currency = string(price.Currency)
	if s.CancelAt > 0 {
		t := time.Unix(s.CancelAt, 0).UTC()
		out.CancelAt = &t
	}
	if s.CanceledAt > 0 {
		t := time.Unix(s.CanceledAt, 0).UTC()
		out.CanceledAt = &t
	}
	return out, nil
}
