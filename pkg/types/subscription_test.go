package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSubscriptionStatus_KnownValues(t *testing.T) {
	for _, s := range []string{"active", "trialing", "past_due", "canceled", "unpaid", "incomplete", "incomplete_expired", "paused"} {
		st, err := ParseSubscriptionStatus(s)
		require.NoError(t, err)
		require.Equal(t, SubscriptionStatus(s), st)
	}
}

func TestParseSubscriptionStatus_UnknownValueIsHardError(t *testing.T) {
	_, err := ParseSubscriptionStatus("definitely_new_status")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported subscription status")

	_, err = ParseSubscriptionStatus("")
	require.Error(t, err)
}

func TestStripeModeValid(t *testing.T) {
	require.True(t, StripeModeTest.Valid())
	require.True(t, StripeModeLive.Valid())
	require.False(t, StripeMode("staging").Valid())
}
