package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackesh4086/spr-price-check/internal/config"
	"github.com/jackesh4086/spr-price-check/internal/hashing"
	"github.com/jackesh4086/spr-price-check/internal/token"
)

func newAdminService(t *testing.T, username, password string) *AdminService {
	t.Helper()
	hasher := hashing.NewHasher(&config.Config{
		Hashing: config.HashingConfig{
			Argon2MemoryCost:  8 * 1024,
			Argon2TimeCost:    1,
			Argon2Parallelism: 1,
		},
	})

	adminCfg := &config.AdminConfig{}
	if username != "" {
		hash, err := hasher.HashPassword(password)
		require.NoError(t, err)
		adminCfg.Username = username
		adminCfg.PasswordHash = hash
	}

	tokens := token.NewIssuerWithClock(
		"quote-secret-for-tests-0123456789abcdef",
		"admin-secret-for-tests-0123456789abcdef",
		0, 0, time.Now)
	return NewAdminService(adminCfg, hasher, tokens)
}

func TestAdminLogin(t *testing.T) {
	svc := newAdminService(t, "admin", "hunter2hunter2")

	sessionToken, err := svc.Login("admin", "hunter2hunter2")
	require.NoError(t, err)
	require.NotEmpty(t, sessionToken)

	payload, err := svc.VerifySession(sessionToken)
	require.NoError(t, err)
	assert.Equal(t, "admin", payload.Username)
}

func TestAdminLoginRejectsBadCredentials(t *testing.T) {
	svc := newAdminService(t, "admin", "hunter2hunter2")

	_, err := svc.Login("admin", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login("root", "hunter2hunter2")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAdminLoginUnconfigured(t *testing.T) {
	svc := newAdminService(t, "", "")

	_, err := svc.Login("admin", "anything")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerifySessionRejectsGarbage(t *testing.T) {
	svc := newAdminService(t, "admin", "hunter2hunter2")

	_, err := svc.VerifySession("not-a-token")
	assert.ErrorIs(t, err, token.ErrTokenInvalid)
}
