package catalog

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/harborlight/donations/internal/models"
	"github.com/harborlight/donations/internal/platform/stripeapi"
	"github.com/harborlight/donations/pkg/logctx"
	"github.com/harborlight/donations/pkg/tool"
	"github.com/harborlight/donations/pkg/types"
)

// monthlyProductKey anchors all recurring amount tiers under one product.
const monthlyProductKey = "monthly-donation"

const monthlyProductName = "Monthly donation"

type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

// GetActiveItems loads the requested active catalog items keyed by id.
func (s *Service) GetActiveItems(ctx context.Context, ids []string) (map[string]*models.CatalogItem, error) {
	var rows []*models.CatalogItem
	if err := s.db.WithContext(ctx).Where("id IN ? AND active", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load catalog items: %w", err)
	}
	out := make(map[string]*models.CatalogItem, len(rows))
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

func (s *Service) GetItemByID(ctx context.Context, id string) (*models.CatalogItem, error) {
	var row models.CatalogItem
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to load catalog item %s: %w", id, err)
	}
	return &row, nil
}

// productIdemKey and priceIdemKey are deterministic so concurrent creations
// of the same logical object converge on one Stripe object.
func productIdemKey(mode types.StripeMode, key string) string {
	return fmt.Sprintf("product:%s:%s", mode, key)
}

func itemPriceIdemKey(mode types.StripeMode, key, currency string, amountCents int64) string {
	return fmt.Sprintf("price:%s:%s:%s:%d", mode, key, currency, amountCents)
}

func amountPriceIdemKey(mode types.StripeMode, currency string, interval types.PriceInterval, amountCents int64) string {
	return fmt.Sprintf("price:%s:%s:%s:%d", mode, currency, interval, amountCents)
}

// EnsureProduct returns the cached product row for (mode, key), creating the
// Stripe product and the cache row when missing. A lost insert race re-reads
// the winner instead of erroring.
func (s *Service) EnsureProduct(ctx context.Context, api stripeapi.API, mode types.StripeMode, key, name string) (*models.StripeProduct, error) {
	var row models.StripeProduct
	err := s.db.WithContext(ctx).Where("stripe_mode = ? AND key = ?", mode, key).First(&row).Error
	if err == nil {
		return &row, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to read product cache: %w", err)
	}

	productID, err := api.CreateProduct(ctx, name, productIdemKey(mode, key))
	if err != nil {
		return nil, fmt.Errorf("failed to create stripe product for %s: %w", key, err)
	}

	row = models.StripeProduct{
		ID:              tool.GenerateUUIDV7(),
		Mode:            mode,
		Key:             key,
		StripeProductID: productID,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			var winner models.StripeProduct
			if rerr := s.db.WithContext(ctx).Where("stripe_mode = ? AND key = ?", mode, key).First(&winner).Error; rerr != nil {
				return nil, fmt.Errorf("failed to re-read product cache after conflict: %w", rerr)
			}
			return &winner, nil
		}
		return nil, fmt.Errorf("failed to cache stripe product: %w", err)
	}
	logctx.FromCtx(ctx, s.log).Infow("stripe_product_created", "mode", mode, "key", key, "product_id", productID)
	return &row, nil
}

// EnsureItemPrice makes sure a catalog item has a cached one-time price for
// its current unit amount, recreating the price when the amount changed.
// Used by checkout resolution misses and the admin sync operation.
func (s *Service) EnsureItemPrice(ctx context.Context, api stripeapi.API, mode types.StripeMode, item *models.CatalogItem) (*models.StripeProduct, error) {
	row, err := s.EnsureProduct(ctx, api, mode, item.Key, item.Name)
	if err != nil {
		return nil, err
	}
	if row.StripePriceID != nil && row.PriceAmountCents == item.UnitAmountCents && row.PriceCurrency == item.Currency {
		return row, nil
	}

	priceID, err := api.CreateOneTimePrice(ctx, row.StripeProductID, item.Currency, item.UnitAmountCents,
		itemPriceIdemKey(mode, item.Key, item.Currency, item.UnitAmountCents))
	if err != nil {
		return nil, fmt.Errorf("failed to create stripe price for %s: %w", item.Key, err)
	}

	row.StripePriceID = &priceID
	row.PriceAmountCents = item.UnitAmountCents
	row.PriceCurrency = item.Currency
	if err := s.db.WithContext(ctx).Save(row).Error; err != nil {
		return nil, fmt.Errorf("failed to cache stripe price: %w", err)
	}
	logctx.FromCtx(ctx, s.log).Infow("stripe_item_price_cached",
		"mode", mode, "key", item.Key, "price_id", priceID, "amount_cents", item.UnitAmountCents)
	return row, nil
}

// ResolveItemPrice returns the cached price id for a catalog item, or an
// error when no current price is cached. Checkout rejects such lines rather
// than guessing amounts.
func (s *Service) ResolveItemPrice(ctx context.Context, mode types.StripeMode, item *models.CatalogItem) (string, error) {
	var row models.StripeProduct
	err := s.db.WithContext(ctx).Where("stripe_mode = ? AND key = ?", mode, item.Key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("no cached stripe price for item %s", item.Key)
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve item price: %w", err)
	}
	if row.StripePriceID == nil || row.PriceAmountCents != item.UnitAmountCents || row.PriceCurrency != item.Currency {
		return "", fmt.Errorf("cached stripe price for item %s is stale", item.Key)
	}
	return *row.StripePriceID, nil
}

// EnsureRecurringPrice returns the Stripe price id for a monthly amount
// tier, creating it under the shared monthly product when missing.
func (s *Service) EnsureRecurringPrice(ctx context.Context, api stripeapi.API, mode types.StripeMode, currency string, amountCents int64) (string, error) {
	var row models.StripeAmountPrice
	err := s.db.WithContext(ctx).
		Where("stripe_mode = ? AND currency = ? AND interval = ? AND amount_cents = ?", mode, currency, types.PriceIntervalMonth, amountCents).
		First(&row).Error
	if err == nil {
		return row.StripePriceID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("failed to read price cache: %w", err)
	}

	product, err := s.EnsureProduct(ctx, api, mode, monthlyProductKey, monthlyProductName)
	if err != nil {
		return "", err
	}

	priceID, err := api.CreateRecurringPrice(ctx, product.StripeProductID, currency, amountCents,
		amountPriceIdemKey(mode, currency, types.PriceIntervalMonth, amountCents))
	if err != nil {
		return "", fmt.Errorf("failed to create recurring price: %w", err)
	}

	row = models.StripeAmountPrice{
		ID:              tool.GenerateUUIDV7(),
		Mode:            mode,
		Currency:        currency,
		Interval:        types.PriceIntervalMonth,
		AmountCents:     amountCents,
		StripePriceID:   priceID,
		StripeProductID: product.StripeProductID,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			var winner models.StripeAmountPrice
			if rerr := s.db.WithContext(ctx).
				Where("stripe_mode = ? AND currency = ? AND interval = ? AND amount_cents = ?", mode, currency, types.PriceIntervalMonth, amountCents).
				First(&winner).Error; rerr != nil {
				return "", fmt.Errorf("failed to re-read price cache after conflict: %w", rerr)
			}
			return winner.StripePriceID, nil
		}
		return "", fmt.Errorf("failed to cache recurring price: %w", err)
	}
	logctx.FromCtx(ctx, s.log).Infow("stripe_recurring_price_created",
		"mode", mode, "currency", currency, "amount_cents", amountCents, "price_id", priceID)
	return priceID, nil
}

var Module = fx.Options(
	fx.Provide(New),
)
