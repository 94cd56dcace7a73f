package types

// StripeMode selects which Stripe catalog a request operates on. Test and
// live objects never share cache rows.
type StripeMode string

const (
	StripeModeTest StripeMode = "test"
	StripeModeLive StripeMode = "live"
)

func (m StripeMode) Valid() bool {
	return m == StripeModeTest || m == StripeModeLive
}

// IntentStatus tracks a one-time checkout attempt from creation to its
// terminal paid/failed state.
type IntentStatus string

const (
	IntentStatusPending         IntentStatus = "pending"
	IntentStatusRequiresPayment IntentStatus = "requires_payment"
	IntentStatusPaid            IntentStatus = "paid"
	IntentStatusFailed          IntentStatus = "failed"
)

type PaymentStatus string

const (
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

type WebhookEventStatus string

const (
	WebhookEventStatusReceived  WebhookEventStatus = "received"
	WebhookEventStatusSucceeded WebhookEventStatus = "succeeded"
	WebhookEventStatusFailed    WebhookEventStatus = "failed"
)

// PriceInterval is the billing interval of a cached price.
type PriceInterval string

const (
	PriceIntervalOneTime PriceInterval = "one_time"
	PriceIntervalMonth   PriceInterval = "month"
)
