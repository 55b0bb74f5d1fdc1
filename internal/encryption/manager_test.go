package encryption

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackesh4086/spr-price-check/internal/config"
)

func newLocalManager() *Manager {
	return NewManager(&config.Config{}, nil)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := newLocalManager()

	sealed, err := m.EncryptField(ctx, "60123456789")
	require.NoError(t, err)
	assert.NotEmpty(t, sealed.EncryptedValue)
	assert.NotEmpty(t, sealed.EncryptedDEK)
	assert.Equal(t, "v1", sealed.Version)
	assert.NotContains(t, sealed.EncryptedValue, "60123456789")

	plaintext, err := m.DecryptField(ctx, sealed)
	require.NoError(t, err)
	assert.Equal(t, "60123456789", plaintext)
}

func TestDecryptAfterCacheClear(t *testing.T) {
	ctx := context.Background()
	m := newLocalManager()

	sealed, err := m.EncryptField(ctx, "60123456789")
	require.NoError(t, err)

	// Without the cached data key the DEK must be unwrapped again.
	m.ClearCache()
	plaintext, err := m.DecryptField(ctx, sealed)
	require.NoError(t, err)
	assert.Equal(t, "60123456789", plaintext)
}

func TestEachValueGetsFreshKey(t *testing.T) {
	ctx := context.Background()
	m := newLocalManager()

	first, err := m.EncryptField(ctx, "60123456789")
	require.NoError(t, err)
	second, err := m.EncryptField(ctx, "60123456789")
	require.NoError(t, err)

	assert.NotEqual(t, first.EncryptedValue, second.EncryptedValue)
	assert.NotEqual(t, first.EncryptedDEK, second.EncryptedDEK)
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	ctx := context.Background()
	m := newLocalManager()

	sealed, err := m.EncryptField(ctx, "60123456789")
	require.NoError(t, err)

	sealed.EncryptedValue = "bm90LXJlYWwtY2lwaGVydGV4dA=="
	m.ClearCache()
	_, err = m.DecryptField(ctx, sealed)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}
