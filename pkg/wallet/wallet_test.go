package wallet

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	w, err := Generate()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(w.Address, "0x"))
	require.Len(t, w.Address, 42)
	require.NotEmpty(t, w.PrivateKeyHex())
}

func TestRoundTripPrivateKey(t *testing.T) {
	w, err := Generate()
	require.NoError(t, err)

	restored, err := FromPrivateKeyHex(w.PrivateKeyHex())
	require.NoError(t, err)
	require.Equal(t, w.Address, restored.Address)

	prefixed, err := FromPrivateKeyHex("0x" + w.PrivateKeyHex())
	require.NoError(t, err)
	require.Equal(t, w.Address, prefixed.Address)
}

func TestGenerateBatchDistinct(t *testing.T) {
	wallets, err := GenerateBatch(5)
	require.NoError(t, err)
	require.Len(t, wallets, 5)

	seen := make(map[string]struct{})
	for _, w := range wallets {
		_, dup := seen[w.Address]
		require.False(t, dup, "duplicate address %s", w.Address)
		seen[w.Address] = struct{}{}
	}
}
