package checkout

import (
	"github.com/harborlight/donations/internal/models"
)

const (
	maxLineQuantity = 25
	maxCartLines    = 25

	minCustomAmountCents = 100
	maxCustomAmountCents = 500000

	minMonthlyAmountCents = 500
	maxMonthlyAmountCents = 500000
)

// CartItem is one requested catalog line.
type CartItem struct {
	CatalogItemID string `json:"catalogItemId"`
	Quantity      int64  `json:"quantity"`
}

type planLine struct {
	Item            *models.CatalogItem
	Quantity        int64
	UnitAmountCents int64
	LineAmountCents int64
}

// cartPlan is the validated shape of a one-time checkout: snapshot lines, a
// single shared currency and the computed total.
type cartPlan struct {
	Currency          string
	Lines             []planLine
	CustomAmountCents int64
	TotalAmountCents  int64
}

// buildCartPlan validates a cart against the loaded catalog and computes the
// intent total. Zero-quantity lines are dropped entirely; everything else
// must resolve to an active item in one shared currency.
func buildCartPlan(items []CartItem, catalog map[string]*models.CatalogItem, customAmountCents int64) (*cartPlan, error) {
	if customAmountCents != 0 && (customAmountCents < minCustomAmountCents || customAmountCents > maxCustomAmountCents) {
		return nil, validationErrorf("custom amount must be 0 or between %d and %d cents", minCustomAmountCents, maxCustomAmountCents)
	}
	if len(items) > maxCartLines {
		return nil, validationErrorf("at most %d lines per checkout", maxCartLines)
	}

	plan := &cartPlan{CustomAmountCents: customAmountCents}
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if it.Quantity == 0 {
			continue
		}
		if it.Quantity < 0 || it.Quantity > maxLineQuantity {
			return nil, validationErrorf("quantity for item %s must be between 1 and %d", it.CatalogItemID, maxLineQuantity)
		}
		if _, dup := seen[it.CatalogItemID]; dup {
			return nil, validationErrorf("duplicate line for item %s", it.CatalogItemID)
		}
		seen[it.CatalogItemID] = struct{}{}

		item, ok := catalog[it.CatalogItemID]
		if !ok {
			return nil, validationErrorf("item %s is unknown or inactive", it.CatalogItemID)
		}
		if plan.Currency == "" {
			plan.Currency = item.Currency
		} else if plan.Currency != item.Currency {
			return nil, validationErrorf("all items must share one currency, got %s and %s", plan.Currency, item.Currency)
		}

		line := planLine{
			Item:            item,
			Quantity:        it.Quantity,
			UnitAmountCents: item.UnitAmountCents,
			LineAmountCents: item.UnitAmountCents * it.Quantity,
		}
		plan.Lines = append(plan.Lines, line)
		plan.TotalAmountCents += line.LineAmountCents
	}

	plan.TotalAmountCents += customAmountCents
	if len(plan.Lines) == 0 && customAmountCents == 0 {
		return nil, validationErrorf("checkout requires at least one item or a custom amount")
	}
	return plan, nil
}

// validateMonthlyAmount enforces whole-dollar monthly donations within
// bounds.
func validateMonthlyAmount(amountCents int64) error {
	if amountCents < minMonthlyAmountCents || amountCents > maxMonthlyAmountCents {
		return validationErrorf("monthly amount must be between %d and %d cents", minMonthlyAmountCents, maxMonthlyAmountCents)
	}
	if amountCents%100 != 0 {
		return validationErrorf("monthly amount must be a whole-dollar multiple of 100 cents")
	}
	return nil
}
