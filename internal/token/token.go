// Package token mints and validates the signed credentials the service
// hands out: the short-lived quote token that scopes one verified phone to
// one price lookup, and the admin session token.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenExpired means the token was well formed and correctly
	// signed but past its expiry; the user should verify again.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid covers everything else: malformed, tampered, or
	// wrong signature. Deliberately unspecific.
	ErrTokenInvalid = errors.New("token invalid")
)

const (
	DefaultQuoteTokenTTL = 10 * time.Minute
	DefaultAdminTokenTTL = 24 * time.Hour

	quoteAudience = "quote"
	adminAudience = "admin"
)

// QuotePayload is the claim set carried by a quote token.
type QuotePayload struct {
	Phone   string `json:"phone"`
	ModelID string `json:"modelId"`
	IssueID string `json:"issueId"`
	jwt.RegisteredClaims
}

// AdminPayload is the claim set carried by an admin session token.
type AdminPayload struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies tokens with process-wide shared secrets.
type Issuer struct {
	quoteSecret []byte
	adminSecret []byte
	quoteTTL    time.Duration
	adminTTL    time.Duration
	now         func() time.Time
}

// NewIssuer creates an issuer. Secrets must be at least 32 bytes; config
// enforces that before this is reached.
func NewIssuer(quoteSecret, adminSecret string, quoteTTL, adminTTL time.Duration) *Issuer {
	if quoteTTL <= 0 {
		quoteTTL = DefaultQuoteTokenTTL
	}
	if adminTTL <= 0 {
		adminTTL = DefaultAdminTokenTTL
	}
	return &Issuer{
		quoteSecret: []byte(quoteSecret),
		adminSecret: []byte(adminSecret),
		quoteTTL:    quoteTTL,
		adminTTL:    adminTTL,
		now:         time.Now,
	}
}

// NewIssuerWithClock is used by tests to simulate time.
func NewIssuerWithClock(quoteSecret, adminSecret string, quoteTTL, adminTTL time.Duration, now func() time.Time) *Issuer {
	i := NewIssuer(quoteSecret, adminSecret, quoteTTL, adminTTL)
	i.now = now
	return i
}

// QuoteTokenTTL returns the configured quote token lifetime.
func (i *Issuer) QuoteTokenTTL() time.Duration { return i.quoteTTL }

// AdminTokenTTL returns the configured admin session lifetime.
func (i *Issuer) AdminTokenTTL() time.Duration { return i.adminTTL }

// CreateQuoteToken mints a self-contained HS256 credential binding phone,
// model and issue for the quote token lifetime. Tokens are never persisted
// or revoked; validity is signature + expiry alone.
func (i *Issuer) CreateQuoteToken(phone, modelID, issueID string) (string, error) {
	now := i.now()
	claims := QuotePayload{
		Phone:   phone,
		ModelID: modelID,
		IssueID: issueID,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{quoteAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.quoteTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.quoteSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign quote token: %w", err)
	}
	return signed, nil
}

// VerifyQuoteToken checks signature and expiry and returns the embedded
// payload. Expired tokens return ErrTokenExpired; every other failure maps
// to ErrTokenInvalid without detail.
func (i *Issuer) VerifyQuoteToken(tokenStr string) (*QuotePayload, error) {
	payload := &QuotePayload{}
	if err := i.parse(tokenStr, payload, i.quoteSecret, quoteAudience); err != nil {
		return nil, err
	}
	return payload, nil
}

// CreateAdminToken mints an admin session token for the given username.
func (i *Issuer) CreateAdminToken(username string) (string, error) {
	now := i.now()
	claims := AdminPayload{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{adminAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.adminTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.adminSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign admin token: %w", err)
	}
	return signed, nil
}

// VerifyAdminToken checks an admin session token.
func (i *Issuer) VerifyAdminToken(tokenStr string) (*AdminPayload, error) {
	payload := &AdminPayload{}
	if err := i.parse(tokenStr, payload, i.adminSecret, adminAudience); err != nil {
		return nil, err
	}
	return payload, nil
}

func (i *Issuer) parse(tokenStr string, claims jwt.Claims, secret []byte, audience string) error {
	parsed, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	},
		jwt.WithTimeFunc(i.now),
		jwt.WithAudience(audience),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrTokenInvalid
	}
	if !parsed.Valid {
		return ErrTokenInvalid
	}
	return nil
}
