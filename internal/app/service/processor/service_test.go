package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/harborlight/donations/internal/app/service/donor"
	"github.com/harborlight/donations/internal/app/service/receipt"
	"github.com/harborlight/donations/internal/models"
	"github.com/harborlight/donations/internal/platform/mailer"
	"github.com/harborlight/donations/internal/platform/stripeapi"
	"github.com/harborlight/donations/pkg/tool"
	"github.com/harborlight/donations/pkg/types"
)

type sinkMailer struct{}

func (sinkMailer) Send(ctx context.Context, msg *mailer.Message) error { return nil }

// fakeStripeAPI answers only what a test wires up; anything else panics.
type fakeStripeAPI struct {
	stripeapi.API
	sub *stripeapi.Subscription
}

func (f *fakeStripeAPI) GetSubscription(ctx context.Context, id string) (*stripeapi.Subscription, error) {
	if f.sub == nil || f.sub.ID != id {
		return nil, fmt.Errorf("unknown subscription %s", id)
	}
	return f.sub, nil
}

func newProcessorTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Donor{},
		&models.DonationIntent{},
		&models.DonationSubscription{},
		&models.DonationPayment{},
	))
	return db
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := newProcessorTestDB(t)
	log := zap.NewNop().Sugar()
	return New(db, donor.New(db, log), receipt.New(sinkMailer{}, log), log), db
}

func seedDonor(t *testing.T, db *gorm.DB, customerID string) *models.Donor {
	t.Helper()
	d := &models.Donor{
		ID:               tool.GenerateUUIDV7(),
		Email:            "donor@example.com",
		Name:             "A Donor",
		StripeCustomerID: &customerID,
	}
	require.NoError(t, db.Create(d).Error)
	return d
}

func TestProcessIgnoresUnknownEventType(t *testing.T) {
	s := &Service{log: zap.NewNop().Sugar()}
	err := s.Process(context.Background(), nil, types.StripeModeTest, &Envelope{
		EventID: "evt_1",
		Type:    "payout.created",
		Data:    json.RawMessage(`{"id": "po_1"}`),
	})
	require.NoError(t, err)
}

func TestProcessFailsOnUndecodablePayload(t *testing.T) {
	s := &Service{log: zap.NewNop().Sugar()}

	err := s.Process(context.Background(), nil, types.StripeModeTest, &Envelope{
		EventID: "evt_2",
		Type:    "checkout.session.completed",
		Data:    json.RawMessage(`{"mode": "payment"}`),
	})
	require.Error(t, err)

	err = s.Process(context.Background(), nil, types.StripeModeTest, &Envelope{
		EventID: "evt_3",
		Type:    "customer.subscription.updated",
		Data:    json.RawMessage(`{"id": "sub_1", "customer": "cus_1", "status": "definitely_new_status", "items": {"data": [{"price": {"id": "p"}}]}}`),
	})
	require.Error(t, err)
}

func TestChargeRefundedMatchesInvoiceKeyedPayment(t *testing.T) {
	s, db := newTestService(t)
	d := seedDonor(t, db, "cus_1")

	// Recurring payments are keyed by invoice id, not payment intent.
	require.NoError(t, db.Create(&models.DonationPayment{
		ID:                tool.GenerateUUIDV7(),
		DonorID:           d.ID,
		ProviderPaymentID: "in_123",
		AmountCents:       1500,
		Currency:          "cad",
		Status:            types.PaymentStatusSucceeded,
	}).Error)

	err := s.Process(context.Background(), nil, types.StripeModeTest, &Envelope{
		EventID: "evt_ref_1",
		Type:    "charge.refunded",
		Data:    json.RawMessage(`{"id": "ch_9", "payment_intent": "pi_9", "refunded": true, "invoice": "in_123"}`),
	})
	require.NoError(t, err)

	var p models.DonationPayment
	require.NoError(t, db.Where("provider_payment_id = ?", "in_123").First(&p).Error)
	require.Equal(t, types.PaymentStatusRefunded, p.Status)
	require.NotNil(t, p.RefundedAt)
	require.NotNil(t, p.ProviderChargeID)
	require.Equal(t, "ch_9", *p.ProviderChargeID)
}

func TestChargeRefundedMatchesPaymentIntent(t *testing.T) {
	s, db := newTestService(t)
	d := seedDonor(t, db, "cus_1")

	require.NoError(t, db.Create(&models.DonationPayment{
		ID:                tool.GenerateUUIDV7(),
		DonorID:           d.ID,
		ProviderPaymentID: "pi_77",
		AmountCents:       3500,
		Currency:          "cad",
		Status:            types.PaymentStatusSucceeded,
	}).Error)

	err := s.Process(context.Background(), nil, types.StripeModeTest, &Envelope{
		EventID: "evt_ref_2",
		Type:    "charge.refunded",
		Data:    json.RawMessage(`{"id": "ch_10", "payment_intent": "pi_77", "refunded": true}`),
	})
	require.NoError(t, err)

	var p models.DonationPayment
	require.NoError(t, db.Where("provider_payment_id = ?", "pi_77").First(&p).Error)
	require.Equal(t, types.PaymentStatusRefunded, p.Status)
}

func TestChargeRefundedUnknownPaymentFails(t *testing.T) {
	s, _ := newTestService(t)

	err := s.Process(context.Background(), nil, types.StripeModeTest, &Envelope{
		EventID: "evt_ref_3",
		Type:    "charge.refunded",
		Data:    json.RawMessage(`{"id": "ch_11", "payment_intent": "pi_none", "refunded": true}`),
	})
	require.ErrorContains(t, err, "matches no recorded payment")
}

func TestInsertPaymentDuplicateIsNoOp(t *testing.T) {
	s, db := newTestService(t)
	d := seedDonor(t, db, "cus_1")

	row := func() *models.DonationPayment {
		return &models.DonationPayment{
			ID:                tool.GenerateUUIDV7(),
			DonorID:           d.ID,
			ProviderPaymentID: "pi_once",
			AmountCents:       1000,
			Currency:          "cad",
			Status:            types.PaymentStatusSucceeded,
		}
	}

	created, err := s.insertPayment(context.Background(), row())
	require.NoError(t, err)
	require.True(t, created)

	created, err = s.insertPayment(context.Background(), row())
	require.NoError(t, err)
	require.False(t, created)

	var n int64
	require.NoError(t, db.Model(&models.DonationPayment{}).Count(&n).Error)
	require.Equal(t, int64(1), n)
}

func TestInvoicePaidRedeliveryKeepsSinglePayment(t *testing.T) {
	s, db := newTestService(t)
	seedDonor(t, db, "cus_1")

	api := &fakeStripeAPI{sub: &stripeapi.Subscription{
		ID:          "sub_1",
		CustomerID:  "cus_1",
		Status:      "active",
		PriceID:     "price_1",
		AmountCents: 1500,
		Currency:    "cad",
	}}
	env := &Envelope{
		EventID: "evt_inv_1",
		Type:    "invoice.paid",
		Data:    json.RawMessage(`{"id": "in_55", "customer": "cus_1", "status": "paid", "amount_paid": 1500, "currency": "cad", "subscription": "sub_1"}`),
	}

	require.NoError(t, s.Process(context.Background(), api, types.StripeModeTest, env))
	require.NoError(t, s.Process(context.Background(), api, types.StripeModeTest, env))

	var payments int64
	require.NoError(t, db.Model(&models.DonationPayment{}).Where("provider_payment_id = ?", "in_55").Count(&payments).Error)
	require.Equal(t, int64(1), payments)

	var sub models.DonationSubscription
	require.NoError(t, db.Where("stripe_subscription_id = ?", "sub_1").First(&sub).Error)
	require.Equal(t, types.SubscriptionStatusActive, sub.Status)
	require.NotNil(t, sub.LastInvoiceStatus)
	require.Equal(t, "paid", *sub.LastInvoiceStatus)
}

func TestInvoiceFailedRecordsInvoiceStatus(t *testing.T) {
	s, db := newTestService(t)
	d := seedDonor(t, db, "cus_1")

	require.NoError(t, db.Create(&models.DonationSubscription{
		ID:                   tool.GenerateUUIDV7(),
		DonorID:              d.ID,
		StripeSubscriptionID: "sub_2",
		Status:               types.SubscriptionStatusActive,
		StripePriceID:        "price_2",
		AmountCents:          2000,
		Currency:             "cad",
		Mode:                 types.StripeModeTest,
	}).Error)

	err := s.Process(context.Background(), nil, types.StripeModeTest, &Envelope{
		EventID: "evt_inv_2",
		Type:    "invoice.payment_failed",
		Data:    json.RawMessage(`{"id": "in_77", "customer": "cus_1", "status": "open", "subscription": "sub_2"}`),
	})
	require.NoError(t, err)

	var sub models.DonationSubscription
	require.NoError(t, db.Where("stripe_subscription_id = ?", "sub_2").First(&sub).Error)
	require.Equal(t, types.SubscriptionStatusPastDue, sub.Status)
	require.NotNil(t, sub.LastInvoiceStatus)
	require.Equal(t, "open", *sub.LastInvoiceStatus)
}
