package ratelimit

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func TestDecide_UnderLimitAllowed(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := Limit{Max: 10, Window: 10 * time.Minute}

	d := decide(bucketState{Count: 1, WindowStartAt: now}, l, now)
	require.True(t, d.Allowed)

	d = decide(bucketState{Count: 10, WindowStartAt: now.Add(-5 * time.Minute)}, l, now)
	require.True(t, d.Allowed)
}

func TestDecide_OverLimitDeniedWithRetryHint(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := Limit{Max: 10, Window: 10 * time.Minute}

	d := decide(bucketState{Count: 11, WindowStartAt: now.Add(-4 * time.Minute)}, l, now)
	require.False(t, d.Allowed)
	require.Equal(t, 6*time.Minute, d.RetryIn)
}

func TestDecide_RetryNeverNegative(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := Limit{Max: 1, Window: time.Minute}

	// Window already elapsed by the time the decision is computed.
	d := decide(bucketState{Count: 2, WindowStartAt: now.Add(-2 * time.Minute)}, l, now)
	require.False(t, d.Allowed)
	require.Equal(t, time.Duration(0), d.RetryIn)
}

func TestDecide_CooldownBlocksRapidRepeats(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := Limit{Max: 10, Window: 10 * time.Minute, Cooldown: 5 * time.Second}

	// Second request two seconds after the first.
	d := decide(bucketState{
		Count:         2,
		WindowStartAt: now.Add(-2 * time.Second),
		PrevRequestAt: lo.ToPtr(now.Add(-2 * time.Second)),
	}, l, now)
	require.False(t, d.Allowed)
	require.Equal(t, 3*time.Second, d.RetryIn)

	// Same shape but outside the cooldown.
	d = decide(bucketState{
		Count:         2,
		WindowStartAt: now.Add(-time.Minute),
		PrevRequestAt: lo.ToPtr(now.Add(-time.Minute)),
	}, l, now)
	require.True(t, d.Allowed)
}

func TestDecide_FirstRequestIgnoresCooldown(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := Limit{Max: 10, Window: 10 * time.Minute, Cooldown: 5 * time.Second}

	d := decide(bucketState{Count: 1, WindowStartAt: now}, l, now)
	require.True(t, d.Allowed)
}
