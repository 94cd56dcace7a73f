package webhookevent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/harborlight/donations/internal/models"
	"github.com/harborlight/donations/pkg/types"
)

func newLedger(t *testing.T) *Service {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.StripeWebhookEvent{}))
	return New(db, zap.NewNop().Sugar())
}

func TestBeginFirstDeliveryProceeds(t *testing.T) {
	s := newLedger(t)
	ctx := context.Background()

	proceed, rec, err := s.Begin(ctx, "evt_1", "invoice.paid", []byte(`{"id": "in_1"}`))
	require.NoError(t, err)
	require.True(t, proceed)
	require.Equal(t, types.WebhookEventStatusReceived, rec.Status)
}

func TestBeginSkipsSucceededRedelivery(t *testing.T) {
	s := newLedger(t)
	ctx := context.Background()

	_, rec, err := s.Begin(ctx, "evt_2", "invoice.paid", []byte(`{"id": "in_2"}`))
	require.NoError(t, err)
	require.NoError(t, s.MarkSucceeded(ctx, rec.ID))

	proceed, again, err := s.Begin(ctx, "evt_2", "invoice.paid", []byte(`{"id": "in_2"}`))
	require.NoError(t, err)
	require.False(t, proceed)
	require.Equal(t, rec.ID, again.ID)
	require.Equal(t, types.WebhookEventStatusSucceeded, again.Status)
}

func TestBeginRetriesFailedRedelivery(t *testing.T) {
	s := newLedger(t)
	ctx := context.Background()

	_, rec, err := s.Begin(ctx, "evt_3", "charge.refunded", []byte(`{"id": "ch_1"}`))
	require.NoError(t, err)
	require.NoError(t, s.MarkFailed(ctx, rec.ID, errors.New("provider timeout")))

	proceed, again, err := s.Begin(ctx, "evt_3", "charge.refunded", []byte(`{"id": "ch_1"}`))
	require.NoError(t, err)
	require.True(t, proceed)
	require.Equal(t, rec.ID, again.ID)
	require.Equal(t, types.WebhookEventStatusFailed, again.Status)
	require.NotNil(t, again.Error)
	require.Equal(t, "provider timeout", *again.Error)

	// Only one ledger row per delivery regardless of redelivery count.
	var n int64
	require.NoError(t, s.db.Model(&models.StripeWebhookEvent{}).Where("stripe_event_id = ?", "evt_3").Count(&n).Error)
	require.Equal(t, int64(1), n)
}

func TestTruncateError_ShortMessageUnchanged(t *testing.T) {
	require.Equal(t, "boom", TruncateError(errors.New("boom")))
}

func TestTruncateError_LongMessageCapped(t *testing.T) {
	long := strings.Repeat("x", 2000)
	out := TruncateError(errors.New(long))
	require.Len(t, out, maxErrorLen)
}

func TestTruncateError_NilError(t *testing.T) {
	require.Equal(t, "", TruncateError(nil))
}
