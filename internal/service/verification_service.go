// Package service orchestrates the verification flow: rate limits, OTP
// lifecycle, quote tokens and the side channels (audit, lead events).
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jackesh4086/spr-price-check/internal/audit"
	"github.com/jackesh4086/spr-price-check/internal/catalog"
	"github.com/jackesh4086/spr-price-check/internal/events"
	"github.com/jackesh4086/spr-price-check/internal/otp"
	"github.com/jackesh4086/spr-price-check/internal/ratelimit"
	"github.com/jackesh4086/spr-price-check/internal/store"
	"github.com/jackesh4086/spr-price-check/internal/token"
	"github.com/jackesh4086/spr-price-check/internal/util"
)

var (
	ErrInvalidPhone = errors.New("invalid phone number")
	ErrInvalidCode  = errors.New("invalid code format")
	ErrUnknownModel = errors.New("unknown model")
	ErrUnknownIssue = errors.New("unknown issue")
)

// VerificationService runs the request/verify/quote flow end to end.
type VerificationService struct {
	otpManager *otp.Manager
	limiter    *ratelimit.Limiter
	tokens     *token.Issuer
	catalog    *catalog.Service
	auditSink  audit.Sink
	publisher  events.Publisher

	ipLimit  int
	ipWindow time.Duration
	cooldown time.Duration
}

func NewVerificationService(
	otpManager *otp.Manager,
	limiter *ratelimit.Limiter,
	tokens *token.Issuer,
	catalogService *catalog.Service,
	auditSink audit.Sink,
	publisher events.Publisher,
	ipLimit int,
	ipWindow time.Duration,
	cooldown time.Duration,
) *VerificationService {
	if ipLimit <= 0 {
		ipLimit = ratelimit.DefaultIPLimit
	}
	if ipWindow <= 0 {
		ipWindow = ratelimit.DefaultIPWindow
	}
	if cooldown <= 0 {
		cooldown = ratelimit.DefaultResendCooldown
	}
	return &VerificationService{
		otpManager: otpManager,
		limiter:    limiter,
		tokens:     tokens,
		catalog:    catalogService,
		auditSink:  auditSink,
		publisher:  publisher,
		ipLimit:    ipLimit,
		ipWindow:   ipWindow,
		cooldown:   cooldown,
	}
}

// RequestCode validates input, applies rate limits and asks the OTP
// manager to issue a code. Validation failures come back as sentinel
// errors; policy refusals come back as a Rejection.
func (s *VerificationService) RequestCode(ctx context.Context, rawPhone, modelID, issueID, clientIP string) (*otp.Rejection, error) {
	phone := util.NormalizeMSISDN(rawPhone)
	if !util.IsValidMSISDN(phone) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPhone, util.MaskPhone(rawPhone))
	}

	modelID = util.SanitizeID(modelID)
	issueID = util.SanitizeID(issueID)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ok, err := s.catalog.ValidModelID(gctx, modelID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownModel, modelID)
		}
		return nil
	})
	g.Go(func() error {
		ok, err := s.catalog.ValidIssueID(gctx, issueID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownIssue, issueID)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	count, err := s.limiter.IncrementWithTTL(ctx, store.IPRateLimitKey(clientIP), s.ipWindow)
	if err != nil {
		return nil, err
	}
	if count > s.ipLimit {
		util.Warn("IP rate limit exceeded",
			zap.String("ip", clientIP),
			zap.Int("count", count))
		return &otp.Rejection{
			Kind:       otp.KindRateLimited,
			Message:    "Too many requests. Please try again later.",
			RetryAfter: int(s.ipWindow.Seconds()),
		}, nil
	}

	// Lockout outranks the resend cooldown: a locked phone must see the
	// lockout message and its remaining wait, not a cooldown wait.
	locked, err := s.otpManager.Locked(ctx, phone)
	if err != nil {
		return nil, err
	}
	if locked != nil {
		return locked, nil
	}

	cooldown, err := s.limiter.EnforceCooldown(ctx, store.PhoneCooldownKey(phone), s.cooldown)
	if err != nil {
		return nil, err
	}
	if !cooldown.OK {
		return &otp.Rejection{
			Kind:       otp.KindCooldown,
			Message:    "Please wait before requesting a new code.",
			RetryAfter: int(cooldown.Wait.Seconds()) + 1,
		}, nil
	}

	s.auditSink.Record(ctx, audit.Entry{
		EventType: audit.EventRequested,
		Phone:     phone,
		ModelID:   modelID,
		IssueID:   issueID,
		ClientIP:  clientIP,
	})

	rejection, err := s.otpManager.Request(ctx, phone, modelID, issueID)
	if err != nil {
		return nil, err
	}
	if rejection != nil {
		if rejection.Kind == otp.KindDelivery {
			s.auditSink.Record(ctx, audit.Entry{
				EventType: audit.EventFailed,
				Phone:     phone,
				ClientIP:  clientIP,
			})
		}
		return rejection, nil
	}

	s.auditSink.Record(ctx, audit.Entry{
		EventType: audit.EventSent,
		Phone:     phone,
		ModelID:   modelID,
		IssueID:   issueID,
		ClientIP:  clientIP,
	})
	return nil, nil
}

// VerifyCode checks the submitted code and, on success, mints the quote
// token bound to the selection that was verified.
func (s *VerificationService) VerifyCode(ctx context.Context, rawPhone, code, clientIP string) (string, *otp.Rejection, error) {
	phone := util.NormalizeMSISDN(rawPhone)
	if !util.IsValidMSISDN(phone) {
		return "", nil, fmt.Errorf("%w: %s", ErrInvalidPhone, util.MaskPhone(rawPhone))
	}
	if !util.ValidOTPCode(code) {
		return "", nil, ErrInvalidCode
	}

	result, rejection, err := s.otpManager.Verify(ctx, phone, code)
	if err != nil {
		return "", nil, err
	}
	if rejection != nil {
		switch rejection.Kind {
		case otp.KindLocked:
			s.auditSink.Record(ctx, audit.Entry{
				EventType: audit.EventLockout,
				Phone:     phone,
				ClientIP:  clientIP,
			})
			s.publisher.Lockout(ctx, phone)
		case otp.KindExpired:
			s.auditSink.Record(ctx, audit.Entry{
				EventType: audit.EventExpired,
				Phone:     phone,
				ClientIP:  clientIP,
			})
		case otp.KindWrongCode:
			s.auditSink.Record(ctx, audit.Entry{
				EventType: audit.EventFailed,
				Phone:     phone,
				ClientIP:  clientIP,
			})
		}
		return "", rejection, nil
	}

	quoteToken, err := s.tokens.CreateQuoteToken(result.Phone, result.ModelID, result.IssueID)
	if err != nil {
		return "", nil, err
	}

	s.auditSink.Record(ctx, audit.Entry{
		EventType: audit.EventVerified,
		Phone:     phone,
		ModelID:   result.ModelID,
		IssueID:   result.IssueID,
		ClientIP:  clientIP,
	})
	s.publisher.LeadCaptured(ctx, phone, result.ModelID, result.IssueID)

	return quoteToken, nil, nil
}

// GetQuote exchanges a valid quote token for the price entry it is bound
// to. Token failures pass through as token.ErrTokenExpired or
// token.ErrTokenInvalid.
func (s *VerificationService) GetQuote(ctx context.Context, tokenStr string) (*catalog.Quote, error) {
	payload, err := s.tokens.VerifyQuoteToken(tokenStr)
	if err != nil {
		return nil, err
	}

	quote, err := s.catalog.GetQuote(ctx, payload.ModelID, payload.IssueID)
	if err != nil {
		return nil, err
	}

	util.Info("Quote served",
		zap.String("phone", util.MaskPhone(payload.Phone)),
		zap.String("model_id", payload.ModelID),
		zap.String("issue_id", payload.IssueID))
	return quote, nil
}

// QuoteTokenTTL exposes the token lifetime for cookie expiry.
func (s *VerificationService) QuoteTokenTTL() time.Duration {
	return s.tokens.QuoteTokenTTL()
}
