package settings

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/harborlight/donations/internal/models"
	"github.com/harborlight/donations/internal/platform/stripeapi"
	cfgpkg "github.com/harborlight/donations/pkg/config"
	"github.com/harborlight/donations/pkg/types"
)

const (
	keyStripeMode = "stripe_mode"
	// per-mode keys, e.g. stripe_secret_key_live
	keySecretKeyPrefix     = "stripe_secret_key_"
	keyWebhookSecretPrefix = "stripe_webhook_secret_"
)

// Service resolves runtime Stripe credentials. The app_setting table wins
// over static config so live/test can switch without a redeploy.
type Service struct {
	db  *gorm.DB
	cfg *cfgpkg.Config
	log *zap.SugaredLogger
}

func New(db *gorm.DB, cfg *cfgpkg.Config, log *zap.SugaredLogger) *Service {
	return &Service{db: db, cfg: cfg, log: log}
}

func (s *Service) get(ctx context.Context, key string) (string, bool, error) {
	var row models.AppSetting
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return row.Value, true, nil
}

// StripeCredentials returns the credentials for the currently configured
// mode. Loaded per invocation; callers must not cache it across requests.
func (s *Service) StripeCredentials(ctx context.Context) (stripeapi.Credentials, error) {
	mode := s.cfg.Stripe.Mode
	if v, ok, err := s.get(ctx, keyStripeMode); err != nil {
		return stripeapi.Credentials{}, err
	} else if ok {
		m := types.StripeMode(v)
		if !m.Valid() {
			return stripeapi.Credentials{}, fmt.Errorf("invalid stripe_mode setting: %q", v)
		}
		mode = m
	}
	if mode == "" {
		mode = types.StripeModeTest
	}

	creds := stripeapi.Credentials{
		Mode:          mode,
		SecretKey:     s.cfg.Stripe.SecretKey,
		WebhookSecret: s.cfg.Stripe.WebhookSecret,
	}
	if v, ok, err := s.get(ctx, keySecretKeyPrefix+string(mode)); err != nil {
		return stripeapi.Credentials{}, err
	} else if ok {
		creds.SecretKey = v
	}
	if v, ok, err := s.get(ctx, keyWebhookSecretPrefix+string(mode)); err != nil {
		return stripeapi.Credentials{}, err
	} else if ok {
		creds.WebhookSecret = v
	}

	if creds.SecretKey == "" {
		return stripeapi.Credentials{}, fmt.Errorf("no stripe secret key configured for mode %s", mode)
	}
	return creds, nil
}

var Module = fx.Options(
	fx.Provide(New),
)
