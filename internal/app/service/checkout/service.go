package checkout

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/harborlight/donations/internal/app/service/catalog"
	"github.com/harborlight/donations/internal/app/service/ratelimit"
	"github.com/harborlight/donations/internal/app/service/settings"
	"github.com/harborlight/donations/internal/models"
	"github.com/harborlight/donations/internal/platform/stripeapi"
	cfgpkg "github.com/harborlight/donations/pkg/config"
	"github.com/harborlight/donations/pkg/logctx"
	"github.com/harborlight/donations/pkg/tool"
	"github.com/harborlight/donations/pkg/types"
)

// Session-creation throttles per hashed client IP.
const (
	checkoutLimitEvent     = "checkout_session"
	subscriptionLimitEvent = "subscription_session"

	checkoutLimitMax     = 10
	subscriptionLimitMax = 6
	limitWindow          = 10 * time.Minute
	limitCooldown        = 2 * time.Second
)

type Service struct {
	db       *gorm.DB
	log      *zap.SugaredLogger
	cfg      *cfgpkg.Config
	settings *settings.Service
	catalog  *catalog.Service
	limiter  *ratelimit.Service
	stripe   stripeapi.Factory
}

func NewService(
	db *gorm.DB,
	log *zap.SugaredLogger,
	cfg *cfgpkg.Config,
	set *settings.Service,
	cat *catalog.Service,
	limiter *ratelimit.Service,
	stripe stripeapi.Factory,
) *Service {
	return &Service{db: db, log: log, cfg: cfg, settings: set, catalog: cat, limiter: limiter, stripe: stripe}
}

type CreateCheckoutRequest struct {
	Items             []CartItem `json:"items"`
	CustomAmountCents int64      `json:"customAmountCents"`
	ClientIP          string     `json:"-"`
	UserAgent         string     `json:"-"`
}

// checkLimit enforces a session-creation throttle. These endpoints mutate
// money, so a failing limiter check rejects the request (fail closed).
func (s *Service) checkLimit(ctx context.Context, event, clientIP string, max int64) error {
	d, err := s.limiter.Check(ctx, ratelimit.Limit{
		Event:      event,
		Identifier: tool.HashIdentifier(clientIP),
		Max:        max,
		Window:     limitWindow,
		Cooldown:   limitCooldown,
	})
	if err != nil {
		return fmt.Errorf("rate limit check failed: %w", err)
	}
	if !d.Allowed {
		return &RateLimitedError{RetryIn: d.RetryIn}
	}
	return nil
}

// CreateCheckoutSession validates a one-time cart, persists the donation
// intent before any provider call, then creates the hosted checkout session
// and returns its URL.
func (s *Service) CreateCheckoutSession(ctx context.Context, req *CreateCheckoutRequest) (string, error) {
	if err := s.checkLimit(ctx, checkoutLimitEvent, req.ClientIP, checkoutLimitMax); err != nil {
		return "", err
	}

	creds, err := s.settings.StripeCredentials(ctx)
	if err != nil {
		return "", err
	}
	api := s.stripe(creds)

	ids := make([]string, 0, len(req.Items))
	for _, it := range req.Items {
		if it.Quantity != 0 {
			ids = append(ids, it.CatalogItemID)
		}
	}
	items, err := s.catalog.GetActiveItems(ctx, ids)
	if err != nil {
		return "", err
	}

	plan, err := buildCartPlan(req.Items, items, req.CustomAmountCents)
	if err != nil {
		return "", err
	}
	if plan.Currency == "" {
		plan.Currency = s.cfg.Currency
	}

	// Resolve cached prices before persisting anything; a line without a
	// current cached price rejects the whole cart.
	lines := make([]stripeapi.CheckoutLine, 0, len(plan.Lines)+1)
	for _, line := range plan.Lines {
		priceID, err := s.catalog.ResolveItemPrice(ctx, creds.Mode, line.Item)
		if err != nil {
			return "", validationErrorf("item %s is not available for checkout", line.Item.Key)
		}
		lines = append(lines, stripeapi.CheckoutLine{PriceID: priceID, Quantity: line.Quantity})
	}
	if plan.CustomAmountCents > 0 {
		lines = append(lines, stripeapi.CheckoutLine{
			Name:        "Custom donation",
			AmountCents: plan.CustomAmountCents,
			Currency:    plan.Currency,
			Quantity:    1,
		})
	}

	intent := &models.DonationIntent{
		ID:                tool.GenerateUUIDV7(),
		Status:            types.IntentStatusPending,
		TotalAmountCents:  plan.TotalAmountCents,
		Currency:          plan.Currency,
		CustomAmountCents: plan.CustomAmountCents,
		Mode:              creds.Mode,
		Metadata: datatypes.NewJSONType(&models.DonationIntentMetadata{
			IPHash:    tool.HashIdentifier(req.ClientIP),
			UserAgent: req.UserAgent,
		}),
	}
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(intent).Error; err != nil {
			return fmt.Errorf("failed to create donation intent: %w", err)
		}
		for _, line := range plan.Lines {
			row := &models.DonationIntentItem{
				ID:              tool.GenerateUUIDV7(),
				IntentID:        intent.ID,
				CatalogItemID:   line.Item.ID,
				Name:            line.Item.Name,
				Quantity:        line.Quantity,
				UnitAmountCents: line.UnitAmountCents,
				LineAmountCents: line.LineAmountCents,
			}
			if err := tx.Create(row).Error; err != nil {
				return fmt.Errorf("failed to create intent item: %w", err)
			}
		}
		return nil
	}); err != nil {
		return "", err
	}

	session, err := api.CreateCheckoutSession(ctx, &stripeapi.CheckoutSessionParams{
		Mode:           "payment",
		Lines:          lines,
		SuccessURL:     s.cfg.SuccessURL(),
		CancelURL:      s.cfg.CancelURL(),
		Metadata:       map[string]string{"donation_intent_id": intent.ID},
		IdempotencyKey: "checkout:" + intent.ID,
	})
	if err != nil {
		// Intent stays pending; the webhook can still reconcile it if the
		// session was actually created upstream.
		logctx.FromCtx(ctx, s.log).Errorw("checkout_session_create_failed", "intent_id", intent.ID, "error", err.Error())
		return "", err
	}

	if err := s.db.WithContext(ctx).Model(&models.DonationIntent{}).
		Where("id = ?", intent.ID).
		Updates(map[string]any{
			"status":            types.IntentStatusRequiresPayment,
			"stripe_session_id": session.ID,
		}).Error; err != nil {
		return "", fmt.Errorf("failed to record session on intent: %w", err)
	}

	logctx.FromCtx(ctx, s.log).Infow("checkout_session_created",
		"intent_id", intent.ID, "session_id", session.ID, "total_cents", plan.TotalAmountCents, "currency", plan.Currency)
	return session.URL, nil
}

// CreateSubscriptionSession starts a monthly donation checkout for a
// whole-dollar amount.
func (s *Service) CreateSubscriptionSession(ctx context.Context, monthlyAmountCents int64, clientIP string) (string, error) {
	if err := validateMonthlyAmount(monthlyAmountCents); err != nil {
		return "", err
	}
	if err := s.checkLimit(ctx, subscriptionLimitEvent, clientIP, subscriptionLimitMax); err != nil {
		return "", err
	}

	creds, err := s.settings.StripeCredentials(ctx)
	if err != nil {
		return "", err
	}
	api := s.stripe(creds)

	priceID, err := s.catalog.EnsureRecurringPrice(ctx, api, creds.Mode, s.cfg.Currency, monthlyAmountCents)
	if err != nil {
		return "", err
	}

	session, err := api.CreateCheckoutSession(ctx, &stripeapi.CheckoutSessionParams{
		Mode:       "subscription",
		Lines:      []stripeapi.CheckoutLine{{PriceID: priceID, Quantity: 1}},
		SuccessURL: s.cfg.SuccessURL(),
		CancelURL:  s.cfg.CancelURL(),
		Metadata:   map[string]string{"monthly_amount_cents": fmt.Sprintf("%d", monthlyAmountCents)},
	})
	if err != nil {
		return "", err
	}

	logctx.FromCtx(ctx, s.log).Infow("subscription_session_created",
		"session_id", session.ID, "amount_cents", monthlyAmountCents)
	return session.URL, nil
}

type CheckoutStatus struct {
	Mode             string `json:"mode"`
	PaymentStatus    string `json:"paymentStatus"`
	AmountTotalCents int64  `json:"amountTotalCents"`
	Currency         string `json:"currency"`
}

// GetCheckoutStatus reads the session state back from the provider for the
// post-redirect thank-you page.
func (s *Service) GetCheckoutStatus(ctx context.Context, sessionID string) (*CheckoutStatus, error) {
	if sessionID == "" {
		return nil, validationErrorf("sessionId is required")
	}
	creds, err := s.settings.StripeCredentials(ctx)
	if err != nil {
		return nil, err
	}
	session, err := s.stripe(creds).GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &CheckoutStatus{
		Mode:             session.Mode,
		PaymentStatus:    session.PaymentStatus,
		AmountTotalCents: session.AmountTotalCents,
		Currency:         session.Currency,
	}, nil
}
