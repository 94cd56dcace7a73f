package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/harborlight/donations/internal/app/service/donor"
	"github.com/harborlight/donations/internal/app/service/receipt"
	"github.com/harborlight/donations/internal/models"
	"github.com/harborlight/donations/internal/platform/stripeapi"
	"github.com/harborlight/donations/pkg/logctx"
	"github.com/harborlight/donations/pkg/tool"
	"github.com/harborlight/donations/pkg/types"
)

// Service reconciles provider webhook events into local donation state. Every
// handler is idempotent: redelivered events converge on the same rows, and a
// receipt is only sent when this delivery actually inserted the payment.
type Service struct {
	db      *gorm.DB
	donor   *donor.Service
	receipt *receipt.Service
	log     *zap.SugaredLogger
}

func New(db *gorm.DB, donorSvc *donor.Service, receiptSvc *receipt.Service, log *zap.SugaredLogger) *Service {
	return &Service{db: db, donor: donorSvc, receipt: receiptSvc, log: log}
}

// Process dispatches one verified event. Unrecognized event types are logged
// and succeed; a subscribed-but-unhandled type must never wedge the event log
// in a retry loop.
func (s *Service) Process(ctx context.Context, api stripeapi.API, mode types.StripeMode, env *Envelope) error {
	ctx = logctx.WithEventID(ctx, env.EventID)

	switch env.Type {
	case "checkout.session.completed":
		return s.handleCheckoutCompleted(ctx, api, mode, env)
	case "invoice.paid":
		return s.handleInvoicePaid(ctx, api, mode, env)
	case "invoice.payment_failed":
		return s.handleInvoiceFailed(ctx, env)
	case "customer.subscription.updated", "customer.subscription.deleted":
		return s.handleSubscriptionChanged(ctx, api, mode, env)
	case "charge.refunded":
		return s.handleChargeRefunded(ctx, env)
	default:
		logctx.FromCtx(ctx, s.log).Infow("webhook_event_ignored", "type", env.Type)
		return nil
	}
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, api stripeapi.API, mode types.StripeMode, env *Envelope) error {
	sess, err := decodeCheckoutSession(env.Data)
	if err != nil {
		return err
	}

	var addr *models.DonorAddress
	if a := sess.CustomerDetails.Address; a != nil {
		addr = &models.DonorAddress{
			Line1:      a.Line1,
			Line2:      a.Line2,
			City:       a.City,
			State:      a.State,
			PostalCode: a.PostalCode,
			Country:    a.Country,
		}
	}
	d, err := s.donor.Upsert(ctx, &donor.UpsertInput{
		Email:            sess.email(),
		Name:             sess.CustomerDetails.Name,
		StripeCustomerID: sess.Customer,
		Address:          addr,
	})
	if err != nil {
		return err
	}

	if sess.Mode == "subscription" {
		return s.reconcileSubscriptionCheckout(ctx, api, mode, d, sess)
	}
	return s.reconcilePaymentCheckout(ctx, d, sess)
}

func (s *Service) reconcilePaymentCheckout(ctx context.Context, d *models.Donor, sess *checkoutSessionPayload) error {
	intentID := sess.Metadata["donation_intent_id"]
	if intentID == "" {
		return fmt.Errorf("checkout session %s has no donation_intent_id metadata", sess.ID)
	}

	var intent models.DonationIntent
	if err := s.db.WithContext(ctx).Where("id = ?", intentID).First(&intent).Error; err != nil {
		return fmt.Errorf("failed to load donation intent %s: %w", intentID, err)
	}

	paid := sess.PaymentStatus == "paid" || sess.PaymentStatus == "no_payment_required"
	status := types.IntentStatusPaid
	if !paid {
		status = types.IntentStatusFailed
	}
	if err := s.db.WithContext(ctx).Model(&intent).Update("status", status).Error; err != nil {
		return fmt.Errorf("failed to update donation intent %s: %w", intentID, err)
	}
	if !paid {
		logctx.FromCtx(ctx, s.log).Warnw("checkout_completed_unpaid",
			"intent_id", intentID, "payment_status", sess.PaymentStatus)
		return nil
	}

	if sess.PaymentIntent == "" {
		return fmt.Errorf("paid checkout session %s has no payment_intent", sess.ID)
	}
	created, err := s.insertPayment(ctx, &models.DonationPayment{
		ID:                tool.GenerateUUIDV7(),
		DonorID:           d.ID,
		IntentID:          &intent.ID,
		ProviderPaymentID: sess.PaymentIntent,
		AmountCents:       sess.AmountTotal,
		Currency:          sess.Currency,
		Status:            types.PaymentStatusSucceeded,
		PaidAt:            time.Now(),
	})
	if err != nil {
		return err
	}
	if created {
		s.receipt.SendReceipt(d.Email, d.Name, sess.AmountTotal, sess.Currency, false)
	}
	logctx.FromCtx(ctx, s.log).Infow("one_time_donation_reconciled",
		"intent_id", intentID, "donor_id", d.ID, "payment_created", created)
	return nil
}

func (s *Service) reconcileSubscriptionCheckout(ctx context.Context, api stripeapi.API, mode types.StripeMode, d *models.Donor, sess *checkoutSessionPayload) error {
	if sess.Subscription == "" {
		return fmt.Errorf("subscription checkout session %s has no subscription", sess.ID)
	}
	// The session payload carries no price detail, so fetch the
	// authoritative subscription from the provider.
	detail, err := api.GetSubscription(ctx, sess.Subscription)
	if err != nil {
		return err
	}
	row, err := s.upsertSubscription(ctx, d.ID, mode, detail)
	if err != nil {
		return err
	}
	logctx.FromCtx(ctx, s.log).Infow("subscription_checkout_reconciled",
		"subscription_id", row.ID, "stripe_subscription_id", detail.ID, "status", row.Status)
	return nil
}

func (s *Service) handleInvoicePaid(ctx context.Context, api stripeapi.API, mode types.StripeMode, env *Envelope) error {
	inv, err := decodeInvoice(env.Data)
	if err != nil {
		return err
	}

	d, err := s.donor.ResolveByCustomer(ctx, api, inv.Customer)
	if err != nil {
		return err
	}
	detail, err := api.GetSubscription(ctx, inv.subscriptionID())
	if err != nil {
		return err
	}
	row, err := s.upsertSubscription(ctx, d.ID, mode, detail)
	if err != nil {
		return err
	}
	if inv.Status != "" {
		if err := s.db.WithContext(ctx).Model(row).Update("last_invoice_status", inv.Status).Error; err != nil {
			return fmt.Errorf("failed to record invoice status: %w", err)
		}
	}

	created, err := s.insertPayment(ctx, &models.DonationPayment{
		ID:                tool.GenerateUUIDV7(),
		DonorID:           d.ID,
		SubscriptionID:    &row.ID,
		ProviderPaymentID: inv.ID,
		AmountCents:       inv.AmountPaid,
		Currency:          inv.Currency,
		Status:            types.PaymentStatusSucceeded,
		PaidAt:            time.Now(),
	})
	if err != nil {
		return err
	}
	if created {
		s.receipt.SendReceipt(d.Email, d.Name, inv.AmountPaid, inv.Currency, true)
	}
	logctx.FromCtx(ctx, s.log).Infow("invoice_reconciled",
		"invoice_id", inv.ID, "subscription_id", row.ID, "payment_created", created)
	return nil
}

func (s *Service) handleInvoiceFailed(ctx context.Context, env *Envelope) error {
	inv, err := decodeInvoice(env.Data)
	if err != nil {
		return err
	}

	res := s.db.WithContext(ctx).Model(&models.DonationSubscription{}).
		Where("stripe_subscription_id = ?", inv.subscriptionID()).
		Updates(map[string]any{
			"status":              types.SubscriptionStatusPastDue,
			"last_invoice_status": inv.Status,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to mark subscription past_due: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// The paid invoice that creates the row may still be in flight;
		// the subscription.updated event will catch us up.
		logctx.FromCtx(ctx, s.log).Warnw("invoice_failed_for_unknown_subscription",
			"invoice_id", inv.ID, "stripe_subscription_id", inv.subscriptionID())
		return nil
	}
	logctx.FromCtx(ctx, s.log).Warnw("subscription_payment_failed",
		"invoice_id", inv.ID, "stripe_subscription_id", inv.subscriptionID(), "invoice_status", inv.Status)
	return nil
}

func (s *Service) handleSubscriptionChanged(ctx context.Context, api stripeapi.API, mode types.StripeMode, env *Envelope) error {
	sub, err := decodeSubscription(env.Data)
	if err != nil {
		return err
	}
	status, err := types.ParseSubscriptionStatus(sub.Status)
	if err != nil {
		return err
	}
	if env.Type == "customer.subscription.deleted" {
		// The deleted payload reports the final lifecycle state itself.
		status = types.SubscriptionStatusCanceled
	}

	d, err := s.donor.ResolveByCustomer(ctx, api, sub.Customer)
	if err != nil {
		return err
	}

	price := sub.price()
	detail := &stripeapi.Subscription{
		ID:          sub.ID,
		CustomerID:  sub.Customer,
		Status:      string(status),
		PriceID:     price.ID,
		AmountCents: price.UnitAmount,
		Currency:    price.Currency,
		CancelAt:    unixTime(sub.CancelAt),
		CanceledAt:  unixTime(sub.CanceledAt),
	}
	row, err := s.upsertSubscription(ctx, d.ID, mode, detail)
	if err != nil {
		return err
	}
	logctx.FromCtx(ctx, s.log).Infow("subscription_state_reconciled",
		"subscription_id", row.ID, "stripe_subscription_id", sub.ID, "status", status)
	return nil
}

func (s *Service) handleChargeRefunded(ctx context.Context, env *Envelope) error {
	ch, err := decodeCharge(env.Data)
	if err != nil {
		return err
	}
	if !ch.Refunded {
		// Partial refunds keep the charge unrefunded; nothing to flip yet.
		logctx.FromCtx(ctx, s.log).Infow("charge_partially_refunded", "charge_id", ch.ID)
		return nil
	}

	now := time.Now()
	updates := map[string]any{
		"status":             types.PaymentStatusRefunded,
		"refunded_at":        &now,
		"provider_charge_id": &ch.ID,
	}
	// One-time payments are keyed by the charge's payment intent, recurring
	// ones by the invoice the charge settled. Try the charge id first for
	// redeliveries that already stamped it.
	matchers := [][]any{
		{"provider_charge_id = ?", ch.ID},
	}
	if ch.PaymentIntent != "" {
		matchers = append(matchers, []any{"provider_payment_id = ?", ch.PaymentIntent})
	}
	if ch.Invoice != "" {
		matchers = append(matchers, []any{"provider_payment_id = ?", ch.Invoice})
	}
	var matched int64
	for _, m := range matchers {
		res := s.db.WithContext(ctx).Model(&models.DonationPayment{}).
			Where(m[0], m[1:]...).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("failed to mark payment refunded: %w", res.Error)
		}
		if res.RowsAffected > 0 {
			matched = res.RowsAffected
			break
		}
	}
	if matched == 0 {
		return fmt.Errorf("refunded charge %s matches no recorded payment", ch.ID)
	}
	logctx.FromCtx(ctx, s.log).Infow("payment_refunded", "charge_id", ch.ID)
	return nil
}

// ApplySubscription converges the local row on provider detail obtained
// outside webhook flow, e.g. after an admin-initiated cancel.
func (s *Service) ApplySubscription(ctx context.Context, api stripeapi.API, mode types.StripeMode, detail *stripeapi.Subscription) (*models.DonationSubscription, error) {
	d, err := s.donor.ResolveByCustomer(ctx, api, detail.CustomerID)
	if err != nil {
		return nil, err
	}
	return s.upsertSubscription(ctx, d.ID, mode, detail)
}

// upsertSubscription converges a local subscription row on the provider
// detail. Unknown provider statuses are a hard error so a silent state
// divergence cannot hide behind a default.
func (s *Service) upsertSubscription(ctx context.Context, donorID string, mode types.StripeMode, detail *stripeapi.Subscription) (*models.DonationSubscription, error) {
	status, err := types.ParseSubscriptionStatus(detail.Status)
	if err != nil {
		return nil, err
	}

	var row models.DonationSubscription
	err = s.db.WithContext(ctx).Where("stripe_subscription_id = ?", detail.ID).First(&row).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load subscription %s: %w", detail.ID, err)
	}

	if err == nil {
		row.Status = status
		row.StripePriceID = detail.PriceID
		row.AmountCents = detail.AmountCents
		row.Currency = detail.Currency
		row.CancelAt = detail.CancelAt
		row.CanceledAt = detail.CanceledAt
		if saveErr := s.db.WithContext(ctx).Save(&row).Error; saveErr != nil {
			return nil, fmt.Errorf("failed to update subscription %s: %w", detail.ID, saveErr)
		}
		return &row, nil
	}

	row = models.DonationSubscription{
		ID:                   tool.GenerateUUIDV7(),
		DonorID:              donorID,
		StripeSubscriptionID: detail.ID,
		Status:               status,
		StripePriceID:        detail.PriceID,
		AmountCents:          detail.AmountCents,
		Currency:             detail.Currency,
		Mode:                 mode,
		CancelAt:             detail.CancelAt,
		CanceledAt:           detail.CanceledAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			var winner models.DonationSubscription
			if rerr := s.db.WithContext(ctx).Where("stripe_subscription_id = ?", detail.ID).First(&winner).Error; rerr != nil {
				return nil, fmt.Errorf("failed to re-read subscription after conflict: %w", rerr)
			}
			return &winner, nil
		}
		return nil, fmt.Errorf("failed to create subscription %s: %w", detail.ID, err)
	}
	return &row, nil
}

// insertPayment reports whether this call created the row. A duplicate key on
// provider_payment_id means a concurrent or redelivered event already
// recorded the charge.
func (s *Service) insertPayment(ctx context.Context, p *models.DonationPayment) (bool, error) {
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, fmt.Errorf("failed to record payment %s: %w", p.ProviderPaymentID, err)
	}
	return true, nil
}

func unixTime(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	t := time.Unix(sec, 0)
	return &t
}

var Module = fx.Options(
	fx.Provide(New),
)
