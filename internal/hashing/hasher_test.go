package hashing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackesh4086/spr-price-check/internal/config"
)

func newTestHasher() *Hasher {
	// Low costs keep the test fast; verification reads costs from the
	// hash itself anyway.
	return NewHasher(&config.Config{
		Hashing: config.HashingConfig{
			Argon2MemoryCost:  8 * 1024,
			Argon2TimeCost:    1,
			Argon2Parallelism: 1,
		},
	})
}

func TestHashAndVerifyPassword(t *testing.T) {
	h := newTestHasher()

	encoded, err := h.HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.Contains(t, encoded, "$argon2id$")

	ok, err := h.VerifyPassword("correct horse battery staple", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.VerifyPassword("wrong password", encoded)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashesAreSalted(t *testing.T) {
	h := newTestHasher()

	first, err := h.HashPassword("password")
	require.NoError(t, err)
	second, err := h.HashPassword("password")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestVerifyAcceptsForeignCosts(t *testing.T) {
	operator := NewHasher(&config.Config{
		Hashing: config.HashingConfig{
			Argon2MemoryCost:  16 * 1024,
			Argon2TimeCost:    2,
			Argon2Parallelism: 2,
		},
	})
	encoded, err := operator.HashPassword("s3cret")
	require.NoError(t, err)

	ok, err := newTestHasher().VerifyPassword("s3cret", encoded)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyMalformedHash(t *testing.T) {
	h := newTestHasher()

	for _, encoded := range []string{
		"",
		"not-a-hash",
		"$argon2i$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=3,p=2$!!!$aGFzaA",
	} {
		_, err := h.VerifyPassword("password", encoded)
		assert.ErrorIs(t, err, ErrInvalidHash, "hash %q", encoded)
	}

	_, err := h.VerifyPassword("password", "$argon2id$v=18$m=65536,t=3,p=2$c2FsdA$aGFzaA")
	assert.ErrorIs(t, err, ErrIncompatibleVersion)
}
