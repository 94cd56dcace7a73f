package managetoken

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/harborlight/donations/internal/app/service/donor"
	"github.com/harborlight/donations/internal/app/service/ratelimit"
	"github.com/harborlight/donations/internal/app/service/receipt"
	"github.com/harborlight/donations/internal/models"
	"github.com/harborlight/donations/internal/platform/mailer"
	"github.com/harborlight/donations/internal/platform/stripeapi"
	cfgpkg "github.com/harborlight/donations/pkg/config"
	"github.com/harborlight/donations/pkg/tool"
	"github.com/harborlight/donations/pkg/types"
)

type sinkMailer struct{}

func (sinkMailer) Send(ctx context.Context, msg *mailer.Message) error { return nil }

type portalAPI struct {
	stripeapi.API
	calls int
}

func (p *portalAPI) CreateBillingPortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	p.calls++
	return "https://billing.example.test/session/" + customerID, nil
}

func newTokenService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Donor{},
		&models.DonationSubscription{},
		&models.DonorManageToken{},
	))

	log := zap.NewNop().Sugar()
	cfg := &cfgpkg.Config{SiteOrigin: "https://donate.example.test"}
	s := New(db, cfg, donor.New(db, log), receipt.New(sinkMailer{}, log), ratelimit.New(db, log), log)
	return s, db
}

func seedDonor(t *testing.T, db *gorm.DB, customerID *string) *models.Donor {
	t.Helper()
	d := &models.Donor{
		ID:               tool.GenerateUUIDV7(),
		Email:            "donor@example.com",
		Name:             "A Donor",
		StripeCustomerID: customerID,
	}
	require.NoError(t, db.Create(d).Error)
	return d
}

func seedActiveSubscription(t *testing.T, db *gorm.DB, donorID string) {
	t.Helper()
	require.NoError(t, db.Create(&models.DonationSubscription{
		ID:                   tool.GenerateUUIDV7(),
		DonorID:              donorID,
		StripeSubscriptionID: "sub_" + donorID,
		Status:               types.SubscriptionStatusActive,
		StripePriceID:        "price_1",
		AmountCents:          1500,
		Currency:             "cad",
		Mode:                 types.StripeModeTest,
	}).Error)
}

func countTokens(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.DonorManageToken{}).Count(&n).Error)
	return n
}

func TestRedeemRejectsEmptyToken(t *testing.T) {
	s := &Service{now: time.Now}
	_, err := s.Redeem(context.Background(), nil, "")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRedeemConsumesTokenOnce(t *testing.T) {
	s, db := newTokenService(t)
	ctx := context.Background()
	d := seedDonor(t, db, lo.ToPtr("cus_1"))

	raw, err := tool.NewManageToken()
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.DonorManageToken{
		ID:        tool.GenerateUUIDV7(),
		DonorID:   d.ID,
		TokenHash: tool.HashToken(raw),
		ExpiresAt: time.Now().Add(tokenTTL),
	}).Error)

	api := &portalAPI{}
	url, err := s.Redeem(ctx, api, raw)
	require.NoError(t, err)
	require.Equal(t, "https://billing.example.test/session/cus_1", url)

	_, err = s.Redeem(ctx, api, raw)
	require.ErrorIs(t, err, ErrInvalidToken)
	require.Equal(t, 1, api.calls)
}

func TestRequestLinkSilentForUnknownEmail(t *testing.T) {
	s, db := newTokenService(t)

	require.NoError(t, s.RequestLink(context.Background(), "nobody@example.com", "203.0.113.9"))
	require.Zero(t, countTokens(t, db))
}

func TestRequestLinkSkipsDonorWithoutSubscription(t *testing.T) {
	s, db := newTokenService(t)
	ctx := context.Background()
	d := seedDonor(t, db, lo.ToPtr("cus_1"))

	// A one-time donor has a customer record but nothing to manage, so the
	// request succeeds without issuing a link.
	require.NoError(t, s.RequestLink(ctx, d.Email, "203.0.113.9"))
	require.Zero(t, countTokens(t, db))

	seedActiveSubscription(t, db, d.ID)
	require.NoError(t, s.RequestLink(ctx, d.Email, "203.0.113.9"))
	require.Equal(t, int64(1), countTokens(t, db))
}

func TestResendRequiresActiveSubscription(t *testing.T) {
	s, db := newTokenService(t)
	ctx := context.Background()
	d := seedDonor(t, db, lo.ToPtr("cus_1"))

	err := s.Resend(ctx, d.Email)
	require.ErrorContains(t, err, "no active subscription")

	seedActiveSubscription(t, db, d.ID)
	require.NoError(t, s.Resend(ctx, d.Email))
	require.Equal(t, int64(1), countTokens(t, db))
}

func TestTokenUsable(t *testing.T) {
	now := time.Now()
	consumed := now.Add(-time.Minute)

	tok := &models.DonorManageToken{ExpiresAt: now.Add(tokenTTL)}
	require.True(t, tok.Usable(now))

	expired := &models.DonorManageToken{ExpiresAt: now.Add(-time.Second)}
	require.False(t, expired.Usable(now))

	used := &models.DonorManageToken{ExpiresAt: now.Add(tokenTTL), ConsumedAt: &consumed}
	require.False(t, used.Usable(now))
}
