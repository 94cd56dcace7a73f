package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/harborlight/donations/pkg/types"
)

func TestIdempotencyKeys_DeterministicPerLogicalObject(t *testing.T) {
	require.Equal(t,
		productIdemKey(types.StripeModeTest, "warm-meal"),
		productIdemKey(types.StripeModeTest, "warm-meal"))
	require.Equal(t,
		amountPriceIdemKey(types.StripeModeLive, "cad", types.PriceIntervalMonth, 2500),
		amountPriceIdemKey(types.StripeModeLive, "cad", types.PriceIntervalMonth, 2500))
}

func TestIdempotencyKeys_ModeNeverCollides(t *testing.T) {
	require.NotEqual(t,
		productIdemKey(types.StripeModeTest, "warm-meal"),
		productIdemKey(types.StripeModeLive, "warm-meal"))
	require.NotEqual(t,
		amountPriceIdemKey(types.StripeModeTest, "cad", types.PriceIntervalMonth, 2500),
		amountPriceIdemKey(types.StripeModeLive, "cad", types.PriceIntervalMonth, 2500))
}

func TestIdempotencyKeys_AmountAndCurrencyDistinguish(t *testing.T) {
	base := amountPriceIdemKey(types.StripeModeTest, "cad", types.PriceIntervalMonth, 2500)
	require.NotEqual(t, base, amountPriceIdemKey(types.StripeModeTest, "cad", types.PriceIntervalMonth, 3000))
	require.NotEqual(t, base, amountPriceIdemKey(types.StripeModeTest, "usd", types.PriceIntervalMonth, 2500))
	require.NotEqual(t, base, itemPriceIdemKey(types.StripeModeTest, "cad", "cad", 2500))
}
