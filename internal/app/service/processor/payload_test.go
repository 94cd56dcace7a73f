package processor

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeCheckoutSession(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "cs_test_123",
		"mode": "payment",
		"payment_status": "paid",
		"amount_total": 3500,
		"currency": "cad",
		"customer": "cus_123",
		"customer_details": {
			"email": "donor@example.com",
			"name": "A Donor",
			"address": {"line1": "1 Main St", "city": "Halifax", "country": "CA"}
		},
		"payment_intent": "pi_123",
		"metadata": {"donation_intent_id": "0196b0c4-0000-7000-8000-000000000001"}
	}`)

	p, err := decodeCheckoutSession(raw)
	require.NoError(t, err)
	require.Equal(t, "cs_test_123", p.ID)
	require.Equal(t, "payment", p.Mode)
	require.Equal(t, int64(3500), p.AmountTotal)
	require.Equal(t, "donor@example.com", p.email())
	require.Equal(t, "pi_123", p.PaymentIntent)
	require.Equal(t, "0196b0c4-0000-7000-8000-000000000001", p.Metadata["donation_intent_id"])
	require.Equal(t, "Halifax", p.CustomerDetails.Address.City)
}

func TestDecodeCheckoutSessionRejectsMissingEmail(t *testing.T) {
	raw := json.RawMessage(`{"id": "cs_1", "mode": "payment", "customer_details": {"name": "No Email"}}`)
	_, err := decodeCheckoutSession(raw)
	require.ErrorContains(t, err, "no customer email")

	raw = json.RawMessage(`{"id": "cs_2", "mode": "payment"}`)
	_, err = decodeCheckoutSession(raw)
	require.ErrorContains(t, err, "no customer email")
}

func TestDecodeCheckoutSessionRejectsBadMode(t *testing.T) {
	raw := json.RawMessage(`{"id": "cs_1", "mode": "setup", "customer_details": {"email": "a@b.c"}}`)
	_, err := decodeCheckoutSession(raw)
	require.ErrorContains(t, err, "unsupported mode")
}

func TestDecodeInvoiceLegacySubscriptionField(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "in_123",
		"customer": "cus_123",
		"status": "paid",
		"amount_paid": 1000,
		"currency": "cad",
		"subscription": "sub_123"
	}`)

	p, err := decodeInvoice(raw)
	require.NoError(t, err)
	require.Equal(t, "sub_123", p.subscriptionID())
	require.Equal(t, int64(1000), p.AmountPaid)
}

func TestDecodeInvoiceParentSubscriptionDetails(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "in_456",
		"customer": "cus_123",
		"status": "paid",
		"amount_paid": 1500,
		"currency": "cad",
		"parent": {"subscription_details": {"subscription": "sub_456"}}
	}`)

	p, err := decodeInvoice(raw)
	require.NoError(t, err)
	require.Equal(t, "sub_456", p.subscriptionID())
}

func TestDecodeInvoiceRejectsMissingSubscription(t *testing.T) {
	raw := json.RawMessage(`{"id": "in_789", "customer": "cus_123", "status": "paid"}`)
	_, err := decodeInvoice(raw)
	require.ErrorContains(t, err, "no subscription")
}

func TestDecodeSubscription(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "sub_123",
		"customer": "cus_123",
		"status": "active",
		"cancel_at": 1767225600,
		"items": {"data": [{"price": {"id": "price_123", "unit_amount": 1500, "currency": "cad"}}]}
	}`)

	p, err := decodeSubscription(raw)
	require.NoError(t, err)
	require.Equal(t, "active", p.Status)
	require.NotNil(t, p.price())
	require.Equal(t, "price_123", p.price().ID)
	require.Equal(t, int64(1500), p.price().UnitAmount)
	require.Equal(t, int64(1767225600), p.CancelAt)
}

func TestDecodeSubscriptionRejectsMissingPrice(t *testing.T) {
	raw := json.RawMessage(`{"id": "sub_1", "customer": "cus_1", "status": "active", "items": {"data": []}}`)
	_, err := decodeSubscription(raw)
	require.ErrorContains(t, err, "no price item")
}

func TestDecodeCharge(t *testing.T) {
	raw := json.RawMessage(`{"id": "ch_123", "payment_intent": "pi_123", "refunded": true}`)
	p, err := decodeCharge(raw)
	require.NoError(t, err)
	require.True(t, p.Refunded)
	require.Equal(t, "pi_123", p.PaymentIntent)

	_, err = decodeCharge(json.RawMessage(`{}`))
	require.ErrorContains(t, err, "no id")
}

func TestUnixTime(t *testing.T) {
	require.Nil(t, unixTime(0))
	ts := unixTime(1767225600)
	require.NotNil(t, ts)
	require.Equal(t, int64(1767225600), ts.Unix())
}
