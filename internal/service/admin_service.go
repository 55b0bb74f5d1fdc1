package service

import (
	"crypto/subtle"
	"errors"

	"go.uber.org/zap"

	"github.com/jackesh4086/spr-price-check/internal/config"
	"github.com/jackesh4086/spr-price-check/internal/hashing"
	"github.com/jackesh4086/spr-price-check/internal/token"
	"github.com/jackesh4086/spr-price-check/internal/util"
)

// ErrInvalidCredentials is deliberately the only login failure the caller
// ever sees.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AdminService authenticates the single configured admin and issues
// session tokens for the admin area.
type AdminService struct {
	cfg    *config.AdminConfig
	hasher *hashing.Hasher
	tokens *token.Issuer
}

func NewAdminService(cfg *config.AdminConfig, hasher *hashing.Hasher, tokens *token.Issuer) *AdminService {
	return &AdminService{
		cfg:    cfg,
		hasher: hasher,
		tokens: tokens,
	}
}

// Login verifies the username and Argon2id password hash and returns a
// session token. Username comparison is constant time too.
func (s *AdminService) Login(username, password string) (string, error) {
	if s.cfg.Username == "" || s.cfg.PasswordHash == "" {
		util.Warn("Admin login attempted but no admin is configured")
		return "", ErrInvalidCredentials
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.cfg.Username)) == 1

	passOK, err := s.hasher.VerifyPassword(password, s.cfg.PasswordHash)
	if err != nil {
		util.Error("Admin password hash could not be verified", zap.Error(err))
		return "", ErrInvalidCredentials
	}

	if !userOK || !passOK {
		util.Warn("Admin login failed", zap.String("username", username))
		return "", ErrInvalidCredentials
	}

	sessionToken, err := s.tokens.CreateAdminToken(username)
	if err != nil {
		return "", err
	}

	util.Info("Admin logged in", zap.String("username", username))
	return sessionToken, nil
}

// VerifySession validates an admin session token.
func (s *AdminService) VerifySession(tokenStr string) (*token.AdminPayload, error) {
	return s.tokens.VerifyAdminToken(tokenStr)
}
