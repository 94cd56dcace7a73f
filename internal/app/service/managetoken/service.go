package managetoken

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/harborlight/donations/internal/app/service/donor"
	"github.com/harborlight/donations/internal/app/service/ratelimit"
	"github.com/harborlight/donations/internal/app/service/receipt"
	"github.com/harborlight/donations/internal/models"
	"github.com/harborlight/donations/internal/platform/stripeapi"
	cfgpkg "github.com/harborlight/donations/pkg/config"
	"github.com/harborlight/donations/pkg/logctx"
	"github.com/harborlight/donations/pkg/tool"
	"github.com/harborlight/donations/pkg/types"
)

const tokenTTL = 30 * time.Minute

// ErrInvalidToken covers every way a redeem can fail that the caller may
// learn about: unknown, expired, and already-consumed tokens all collapse
// into it so the response leaks nothing about which case occurred.
var ErrInvalidToken = errors.New("invalid or expired token")

// Service issues and redeems single-use manage links. Issuance is silent
// about whether the email matches a donor; redemption consumes the token
// before any provider call so a portal failure cannot leave a live token
// behind.
type Service struct {
	db      *gorm.DB
	cfg     *cfgpkg.Config
	donor   *donor.Service
	receipt *receipt.Service
	limiter *ratelimit.Service
	log     *zap.SugaredLogger
	now     func() time.Time
}

func New(db *gorm.DB, cfg *cfgpkg.Config, donorSvc *donor.Service, receiptSvc *receipt.Service, limiter *ratelimit.Service, log *zap.SugaredLogger) *Service {
	return &Service{
		db:      db,
		cfg:     cfg,
		donor:   donorSvc,
		receipt: receiptSvc,
		limiter: limiter,
		log:     log,
		now:     time.Now,
	}
}

// RequestLink mails a manage link when the email belongs to a known donor.
// It returns nil either way: the response must not reveal whether the email
// exists. The rate limit fails open; losing the limiter table must not lock
// donors out of their own data.
func (s *Service) RequestLink(ctx context.Context, email, clientIP string) error {
	log := logctx.FromCtx(ctx, s.log)

	dec, err := s.limiter.CheckAll(ctx,
		ratelimit.Limit{Event: "manage_link_ip", Identifier: tool.HashIdentifier(clientIP), Max: 5, Window: 15 * time.Minute},
		ratelimit.Limit{Event: "manage_link_email", Identifier: tool.HashIdentifier(email), Max: 3, Window: 15 * time.Minute},
	)
	if err != nil {
		log.Errorw("manage_link_ratelimit_unavailable", "err", err)
	} else if !dec.Allowed {
		log.Warnw("manage_link_rate_limited", "email_hash", tool.HashIdentifier(email))
		return nil
	}

	d, err := s.donor.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if d == nil {
		log.Infow("manage_link_unknown_email", "email_hash", tool.HashIdentifier(email))
		return nil
	}
	if d.StripeCustomerID == nil || *d.StripeCustomerID == "" {
		// No provider customer means no portal to open.
		log.Infow("manage_link_donor_without_customer", "donor_id", d.ID)
		return nil
	}
	active, err := s.hasActiveSubscription(ctx, d.ID)
	if err != nil {
		return err
	}
	if !active {
		// One-time donors have nothing to manage in the portal.
		log.Infow("manage_link_donor_without_subscription", "donor_id", d.ID)
		return nil
	}

	return s.issue(ctx, d)
}

// hasActiveSubscription reports whether the donor has a subscription the
// billing portal could act on.
func (s *Service) hasActiveSubscription(ctx context.Context, donorID string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.DonationSubscription{}).
		Where("donor_id = ? AND status IN ?", donorID, []types.SubscriptionStatus{
			types.SubscriptionStatusActive,
			types.SubscriptionStatusTrialing,
			types.SubscriptionStatusPastDue,
		}).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("failed to check donor subscriptions: %w", err)
	}
	return n > 0, nil
}

// Resend issues a manage link for a known donor, bypassing the rate limit.
// Unlike RequestLink it reports failures; the admin caller needs them.
func (s *Service) Resend(ctx context.Context, email string) error {
	d, err := s.donor.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if d == nil {
		return fmt.Errorf("no donor with that email")
	}
	if d.StripeCustomerID == nil || *d.StripeCustomerID == "" {
		return fmt.Errorf("donor %s has no linked customer", d.ID)
	}
	active, err := s.hasActiveSubscription(ctx, d.ID)
	if err != nil {
		return err
	}
	if !active {
		return fmt.Errorf("donor %s has no active subscription", d.ID)
	}
	return s.issue(ctx, d)
}

func (s *Service) issue(ctx context.Context, d *models.Donor) error {
	raw, err := tool.NewManageToken()
	if err != nil {
		return err
	}
	expiresAt := s.now().Add(tokenTTL)
	row := &models.DonorManageToken{
		ID:        tool.GenerateUUIDV7(),
		DonorID:   d.ID,
		TokenHash: tool.HashToken(raw),
		ExpiresAt: expiresAt,
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("failed to store manage token: %w", err)
	}

	s.receipt.SendManageLink(d.Email, d.Name, s.cfg.ManageURL(raw), expiresAt)
	logctx.FromCtx(ctx, s.log).Infow("manage_link_issued", "donor_id", d.ID, "token_id", row.ID)
	return nil
}

// Redeem consumes a token and opens a billing portal session for its donor.
// The consume is a conditional update on consumed_at, so two concurrent
// redeems of the same token admit exactly one.
func (s *Service) Redeem(ctx context.Context, api stripeapi.API, rawToken string) (string, error) {
	if rawToken == "" {
		return "", ErrInvalidToken
	}

	var row models.DonorManageToken
	err := s.db.WithContext(ctx).Where("token_hash = ?", tool.HashToken(rawToken)).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrInvalidToken
	}
	if err != nil {
		return "", fmt.Errorf("failed to load manage token: %w", err)
	}
	now := s.now()
	if !row.Usable(now) {
		return "", ErrInvalidToken
	}

	res := s.db.WithContext(ctx).Model(&models.DonorManageToken{}).
		Where("id = ? AND consumed_at IS NULL", row.ID).
		Update("consumed_at", now)
	if res.Error != nil {
		return "", fmt.Errorf("failed to consume manage token: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Lost the race to a concurrent redeem.
		return "", ErrInvalidToken
	}

	d, err := s.donor.GetByID(ctx, row.DonorID)
	if err != nil {
		return "", err
	}
	if d.StripeCustomerID == nil || *d.StripeCustomerID == "" {
		return "", fmt.Errorf("donor %s has no linked customer", d.ID)
	}

	url, err := api.CreateBillingPortalSession(ctx, *d.StripeCustomerID, s.cfg.SiteOrigin+"/donate")
	if err != nil {
		return "", err
	}
	logctx.FromCtx(ctx, s.log).Infow("manage_token_redeemed", "donor_id", d.ID, "token_id", row.ID)
	return url, nil
}

var Module = fx.Options(
	fx.Provide(New),
)
