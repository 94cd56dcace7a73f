package webhookevent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/harborlight/donations/internal/models"
	"github.com/harborlight/donations/pkg/logctx"
	"github.com/harborlight/donations/pkg/tool"
	"github.com/harborlight/donations/pkg/types"
)

// maxErrorLen bounds stored failure text so a huge provider error cannot
// bloat the ledger.
const maxErrorLen = 500

// Service owns the append-only webhook event ledger that makes delivery
// processing idempotent.
type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

// Begin records the delivery and decides whether to process it. A unique-key
// collision means the event was seen before: succeeded events are skipped
// entirely, anything else (received after a crash, failed) runs again.
func (s *Service) Begin(ctx context.Context, stripeEventID, eventType string, payload []byte) (proceed bool, rec *models.StripeWebhookEvent, err error) {
	row := &models.StripeWebhookEvent{
		ID:            tool.GenerateUUIDV7(),
		StripeEventID: stripeEventID,
		Type:          eventType,
		Status:        types.WebhookEventStatusReceived,
		Payload:       datatypes.JSON(payload),
		ReceivedAt:    time.Now().UTC(),
	}
	err = s.db.WithContext(ctx).Create(row).Error
	if err == nil {
		return true, row, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, nil, fmt.Errorf("failed to record webhook event: %w", err)
	}

	existing, err := s.GetByStripeEventID(ctx, stripeEventID)
	if err != nil {
		return false, nil, err
	}
	if existing.Status == types.WebhookEventStatusSucceeded {
		logctx.FromCtx(ctx, s.log).Infow("webhook_event_replayed_skipped", "stripe_event_id", stripeEventID)
		return false, existing, nil
	}
	return true, existing, nil
}

func (s *Service) MarkSucceeded(ctx context.Context, id string) error {
	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).Model(&models.StripeWebhookEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       types.WebhookEventStatusSucceeded,
			"error":        nil,
			"processed_at": now,
		}).Error; err != nil {
		return fmt.Errorf("failed to mark event succeeded: %w", err)
	}
	return nil
}

func (s *Service) MarkFailed(ctx context.Context, id string, procErr error) error {
	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).Model(&models.StripeWebhookEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       types.WebhookEventStatusFailed,
			"error":        lo.ToPtr(TruncateError(procErr)),
			"processed_at": now,
		}).Error; err != nil {
		return fmt.Errorf("failed to mark event failed: %w", err)
	}
	return nil
}

func (s *Service) GetByStripeEventID(ctx context.Context, stripeEventID string) (*models.StripeWebhookEvent, error) {
	var row models.StripeWebhookEvent
	if err := s.db.WithContext(ctx).Where("stripe_event_id = ?", stripeEventID).First(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to load webhook event %s: %w", stripeEventID, err)
	}
	return &row, nil
}

// List returns recent events for the admin support view, applying optional
// filters.
func (s *Service) List(ctx context.Context, filters []*types.CommonFilter, from, size int) ([]*models.StripeWebhookEvent, int64, error) {
	if size <= 0 {
		size = 20
	}
	if from < 0 {
		from = 0
	}
	tx := s.db.WithContext(ctx).Model(&models.StripeWebhookEvent{})
	for _, f := range filters {
		tx = tx.Where(f)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count webhook events: %w", err)
	}

	var rows []*models.StripeWebhookEvent
	if err := tx.Order("received_at desc").Offset(from).Limit(size).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list webhook events: %w", err)
	}
	return rows, total, nil
}

// TruncateError renders an error for storage, capped at maxErrorLen.
func TruncateError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > maxErrorLen {
		return msg[:maxErrorLen]
	}
	return msg
}

var Module = fx.Options(
	fx.Provide(New),
)
