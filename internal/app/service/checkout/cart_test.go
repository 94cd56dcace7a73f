package checkout

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/harborlight/donations/internal/models"
)

func testCatalog() map[string]*models.CatalogItem {
	return map[string]*models.CatalogItem{
		"item-socks": {ID: "item-socks", Key: "warm-socks", Name: "Warm socks", UnitAmountCents: 1500, Currency: "cad", Active: true},
		"item-meal":  {ID: "item-meal", Key: "warm-meal", Name: "Warm meal", UnitAmountCents: 800, Currency: "cad", Active: true},
		"item-usd":   {ID: "item-usd", Key: "usd-item", Name: "USD item", UnitAmountCents: 1000, Currency: "usd", Active: true},
	}
}

func TestBuildCartPlan_TotalIsSumOfLinesPlusCustom(t *testing.T) {
	plan, err := buildCartPlan(
		[]CartItem{{CatalogItemID: "item-socks", Quantity: 2}},
		testCatalog(), 500)
	require.NoError(t, err)
	require.Equal(t, int64(2*1500+500), plan.TotalAmountCents)
	require.Equal(t, "cad", plan.Currency)
	require.Len(t, plan.Lines, 1)
	require.Equal(t, int64(3000), plan.Lines[0].LineAmountCents)
}

func TestBuildCartPlan_ZeroQuantityLinesAreDropped(t *testing.T) {
	plan, err := buildCartPlan(
		[]CartItem{
			{CatalogItemID: "item-socks", Quantity: 0},
			{CatalogItemID: "item-meal", Quantity: 1},
		},
		testCatalog(), 0)
	require.NoError(t, err)
	require.Len(t, plan.Lines, 1)
	require.Equal(t, "item-meal", plan.Lines[0].Item.ID)
	require.Equal(t, int64(800), plan.TotalAmountCents)
}

func TestBuildCartPlan_EmptyCartRejected(t *testing.T) {
	_, err := buildCartPlan([]CartItem{{CatalogItemID: "item-socks", Quantity: 0}}, testCatalog(), 0)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrValidation))

	_, err = buildCartPlan(nil, testCatalog(), 0)
	require.True(t, errors.Is(err, ErrValidation))
}

func TestBuildCartPlan_CustomAmountOnlyIsAllowed(t *testing.T) {
	plan, err := buildCartPlan(nil, testCatalog(), 2500)
	require.NoError(t, err)
	require.Empty(t, plan.Lines)
	require.Equal(t, int64(2500), plan.TotalAmountCents)
	// Currency comes from config when no catalog line sets it.
	require.Empty(t, plan.Currency)
}

func TestBuildCartPlan_CustomAmountBounds(t *testing.T) {
	_, err := buildCartPlan(nil, testCatalog(), 99)
	require.True(t, errors.Is(err, ErrValidation))

	_, err = buildCartPlan(nil, testCatalog(), 500001)
	require.True(t, errors.Is(err, ErrValidation))

	_, err = buildCartPlan(nil, testCatalog(), 100)
	require.NoError(t, err)

	_, err = buildCartPlan(nil, testCatalog(), 500000)
	require.NoError(t, err)
}

func TestBuildCartPlan_QuantityBounds(t *testing.T) {
	_, err := buildCartPlan([]CartItem{{CatalogItemID: "item-socks", Quantity: 26}}, testCatalog(), 0)
	require.True(t, errors.Is(err, ErrValidation))

	_, err = buildCartPlan([]CartItem{{CatalogItemID: "item-socks", Quantity: -1}}, testCatalog(), 0)
	require.True(t, errors.Is(err, ErrValidation))

	_, err = buildCartPlan([]CartItem{{CatalogItemID: "item-socks", Quantity: 25}}, testCatalog(), 0)
	require.NoError(t, err)
}

func TestBuildCartPlan_TooManyLinesRejected(t *testing.T) {
	items := make([]CartItem, 26)
	for i := range items {
		items[i] = CartItem{CatalogItemID: "item-socks", Quantity: 1}
	}
	_, err := buildCartPlan(items, testCatalog(), 0)
	require.True(t, errors.Is(err, ErrValidation))
}

func TestBuildCartPlan_DuplicateLinesRejected(t *testing.T) {
	_, err := buildCartPlan([]CartItem{
		{CatalogItemID: "item-socks", Quantity: 1},
		{CatalogItemID: "item-socks", Quantity: 2},
	}, testCatalog(), 0)
	require.True(t, errors.Is(err, ErrValidation))
}

func TestBuildCartPlan_UnknownItemRejected(t *testing.T) {
	_, err := buildCartPlan([]CartItem{{CatalogItemID: "item-gone", Quantity: 1}}, testCatalog(), 0)
	require.True(t, errors.Is(err, ErrValidation))
}

func TestBuildCartPlan_MixedCurrenciesRejected(t *testing.T) {
	_, err := buildCartPlan([]CartItem{
		{CatalogItemID: "item-socks", Quantity: 1},
		{CatalogItemID: "item-usd", Quantity: 1},
	}, testCatalog(), 0)
	require.True(t, errors.Is(err, ErrValidation))
}

func TestValidateMonthlyAmount(t *testing.T) {
	require.NoError(t, validateMonthlyAmount(2500))
	require.NoError(t, validateMonthlyAmount(500))
	require.NoError(t, validateMonthlyAmount(500000))

	require.True(t, errors.Is(validateMonthlyAmount(2550), ErrValidation))
	require.True(t, errors.Is(validateMonthlyAmount(499), ErrValidation))
	require.True(t, errors.Is(validateMonthlyAmount(500100), ErrValidation))
	require.True(t, errors.Is(validateMonthlyAmount(0), ErrValidation))
}
