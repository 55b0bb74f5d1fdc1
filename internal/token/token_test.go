package token

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testQuoteSecret = "quote-secret-for-tests-0123456789abcdef"
	testAdminSecret = "admin-secret-for-tests-0123456789abcdef"
)

func newTestIssuer() (*Issuer, func(time.Duration)) {
	var mu sync.Mutex
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	issuer := NewIssuerWithClock(testQuoteSecret, testAdminSecret, 0, 0, func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	})
	advance := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}
	return issuer, advance
}

func TestQuoteTokenRoundTrip(t *testing.T) {
	issuer, _ := newTestIssuer()

	signed, err := issuer.CreateQuoteToken("60123456789", "iphone-13", "screen")
	require.NoError(t, err)
	require.NotEmpty(t, signed)

	payload, err := issuer.VerifyQuoteToken(signed)
	require.NoError(t, err)
	assert.Equal(t, "60123456789", payload.Phone)
	assert.Equal(t, "iphone-13", payload.ModelID)
	assert.Equal(t, "screen", payload.IssueID)
}

func TestQuoteTokenExpires(t *testing.T) {
	issuer, advance := newTestIssuer()

	signed, err := issuer.CreateQuoteToken("60123456789", "iphone-13", "screen")
	require.NoError(t, err)

	advance(DefaultQuoteTokenTTL - time.Second)
	_, err = issuer.VerifyQuoteToken(signed)
	require.NoError(t, err)

	advance(2 * time.Second)
	_, err = issuer.VerifyQuoteToken(signed)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTamperedTokenIsInvalid(t *testing.T) {
	issuer, _ := newTestIssuer()

	signed, err := issuer.CreateQuoteToken("60123456789", "iphone-13", "screen")
	require.NoError(t, err)

	tampered := []byte(signed)
	last := len(tampered) - 1
	if tampered[last] == 'A' {
		tampered[last] = 'B'
	} else {
		tampered[last] = 'A'
	}

	_, err = issuer.VerifyQuoteToken(string(tampered))
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestGarbageTokenIsInvalid(t *testing.T) {
	issuer, _ := newTestIssuer()

	for _, tokenStr := range []string{"", "not-a-token", "a.b.c"} {
		_, err := issuer.VerifyQuoteToken(tokenStr)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	}
}

func TestAdminTokenRoundTrip(t *testing.T) {
	issuer, advance := newTestIssuer()

	signed, err := issuer.CreateAdminToken("admin")
	require.NoError(t, err)

	payload, err := issuer.VerifyAdminToken(signed)
	require.NoError(t, err)
	assert.Equal(t, "admin", payload.Username)

	advance(DefaultAdminTokenTTL + time.Second)
	_, err = issuer.VerifyAdminToken(signed)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenAudiencesDoNotCross(t *testing.T) {
	issuer, _ := newTestIssuer()

	quote, err := issuer.CreateQuoteToken("60123456789", "iphone-13", "screen")
	require.NoError(t, err)
	admin, err := issuer.CreateAdminToken("admin")
	require.NoError(t, err)

	_, err = issuer.VerifyAdminToken(quote)
	assert.ErrorIs(t, err, ErrTokenInvalid)
	_, err = issuer.VerifyQuoteToken(admin)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
