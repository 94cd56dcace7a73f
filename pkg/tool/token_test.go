package tool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewManageToken_UniqueAndURLSafe(t *testing.T) {
	a, err := NewManageToken()
	require.NoError(t, err)
	b, err := NewManageToken()
	require.NoError(t, err)

	require.NotEqual(t, a, b)
	require.GreaterOrEqual(t, len(a), 40)
	require.NotContains(t, a, "+")
	require.NotContains(t, a, "/")
	require.NotContains(t, a, "=")
}

func TestHashToken_DeterministicAndOpaque(t *testing.T) {
	raw := "some-raw-token"
	require.Equal(t, HashToken(raw), HashToken(raw))
	require.NotEqual(t, raw, HashToken(raw))
	require.Len(t, HashToken(raw), 64)
}

func TestHashIdentifier_NeverEchoesInput(t *testing.T) {
	h := HashIdentifier("203.0.113.9")
	require.Len(t, h, 64)
	require.NotContains(t, h, "203.0.113.9")
	require.Equal(t, h, HashIdentifier("203.0.113.9"))
	require.NotEqual(t, h, HashIdentifier("203.0.113.10"))
}
