package otp

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jackesh4086/spr-price-check/internal/store"
	"github.com/jackesh4086/spr-price-check/internal/util"
)

// Policy constants. Configurable callers must preserve these defaults.
const (
	CodeTTL         = 5 * time.Minute
	ResendCooldown  = 60 * time.Second
	MaxAttempts     = 5
	LockoutDuration = 15 * time.Minute

	codeSpace = 900000
	codeFloor = 100000
)

// Notifier delivers the code to the user's phone out of band. Failure is
// surfaced to the caller, never swallowed.
type Notifier interface {
	SendCode(ctx context.Context, phone, code string) error
}

// Record is the stored state for one phone's live code. At most one record
// exists per phone at a time.
type Record struct {
	Phone       string `json:"phone"`
	HashedCode  string `json:"hashedCode"`
	ModelID     string `json:"modelId"`
	IssueID     string `json:"issueId"`
	ExpiresAt   int64  `json:"expiresAt"`   // unix millis
	Attempts    int    `json:"attempts"`
	LockedUntil int64  `json:"lockedUntil"` // unix millis, 0 = not locked
	LastSentAt  int64  `json:"lastSentAt"`  // unix millis
}

// RejectionKind classifies why a request or verification was refused.
type RejectionKind string

const (
	KindNotFound    RejectionKind = "not_found"
	KindLocked      RejectionKind = "locked"
	KindExpired     RejectionKind = "expired"
	KindWrongCode   RejectionKind = "wrong_code"
	KindCooldown    RejectionKind = "cooldown"
	KindRateLimited RejectionKind = "rate_limited"
	KindDelivery    RejectionKind = "delivery"
)

// Rejection is the typed failure result every refusal path returns. It
// carries enough for the caller to render a message: the kind, a
// user-facing message, the seconds to wait where retry is time-gated, and
// the attempts left after a wrong code.
type Rejection struct {
	Kind         RejectionKind
	Message      string
	RetryAfter   int // seconds; 0 when not applicable
	AttemptsLeft int // only set for KindWrongCode
}

// Retryable reports whether waiting resolves the rejection.
func (r *Rejection) Retryable() bool {
	return r.Kind == KindLocked || r.Kind == KindCooldown || r.Kind == KindRateLimited
}

// VerifyResult carries the catalog selection bound to the verified code.
type VerifyResult struct {
	Phone   string
	ModelID string
	IssueID string
}

// Manager owns the per-phone OTP state machine:
// NONE -> ACTIVE -> (VERIFIED | EXPIRED | LOCKED) -> NONE.
type Manager struct {
	store    store.Store
	notifier Notifier
	now      func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager creates an OTP manager on the given store and notifier.
func NewManager(s store.Store, n Notifier) *Manager {
	return &Manager{
		store:    s,
		notifier: n,
		now:      time.Now,
		locks:    make(map[string]*sync.Mutex),
	}
}

// NewManagerWithClock is used by tests to simulate time.
func NewManagerWithClock(s store.Store, n Notifier, now func() time.Time) *Manager {
	m := NewManager(s, n)
	m.now = now
	return m
}

// phoneLock serializes read-modify-write cycles per phone within this
// process. Instances sharing a store still race across processes; that
// gap is accepted and documented rather than papered over.
func (m *Manager) phoneLock(phone string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[phone]
	if !ok {
		l = &sync.Mutex{}
		m.locks[phone] = l
	}
	return l
}

// GenerateCode draws a code uniformly from the 900000 six-digit strings
// "100000".."999999".
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpace))
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+codeFloor), nil
}

// HashCode returns the hex-encoded SHA-256 digest of the code. Plaintext
// codes are never stored.
func HashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// Locked reports the active lockout for phone, if any. It reads only;
// callers use it to rank lockout above softer refusals before touching
// any other state.
func (m *Manager) Locked(ctx context.Context, phone string) (*Rejection, error) {
	record, err := m.load(ctx, phone)
	if err != nil {
		return nil, err
	}
	now := m.now()
	if record != nil && record.LockedUntil > 0 && now.UnixMilli() < record.LockedUntil {
		return &Rejection{
			Kind:       KindLocked,
			Message:    "Too many failed attempts. Please try again later.",
			RetryAfter: secondsUntil(now, record.LockedUntil),
		}, nil
	}
	return nil, nil
}

// Request creates and stores a fresh code for phone bound to the given
// catalog selection, then asks the notifier to deliver it. Lockout and
// resend-cooldown checks run before anything is generated or stored, so a
// rejected request never invalidates a still-live code. Delivery failure
// rolls the new record back and is reported as a KindDelivery rejection.
func (m *Manager) Request(ctx context.Context, phone, modelID, issueID string) (*Rejection, error) {
	lock := m.phoneLock(phone)
	lock.Lock()
	defer lock.Unlock()

	now := m.now()
	existing, err := m.load(ctx, phone)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		if existing.LockedUntil > 0 && now.UnixMilli() < existing.LockedUntil {
			wait := secondsUntil(now, existing.LockedUntil)
			return &Rejection{
				Kind:       KindLocked,
				Message:    "Too many failed attempts. Please try again later.",
				RetryAfter: wait,
			}, nil
		}
		if sinceSend := now.UnixMilli() - existing.LastSentAt; sinceSend < ResendCooldown.Milliseconds() {
			wait := int((ResendCooldown.Milliseconds() - sinceSend + 999) / 1000)
			return &Rejection{
				Kind:       KindCooldown,
				Message:    "Please wait before requesting a new code.",
				RetryAfter: wait,
			}, nil
		}
	}

	code, err := GenerateCode()
	if err != nil {
		return nil, err
	}

	record := &Record{
		Phone:      phone,
		HashedCode: HashCode(code),
		ModelID:    modelID,
		IssueID:    issueID,
		ExpiresAt:  now.Add(CodeTTL).UnixMilli(),
		Attempts:   0,
		LastSentAt: now.UnixMilli(),
	}
	if err := m.save(ctx, record, CodeTTL); err != nil {
		return nil, err
	}

	if err := m.notifier.SendCode(ctx, phone, code); err != nil {
		// Fail closed: the code was never delivered, so the record must
		// not survive to count against the user.
		if delErr := m.store.Delete(ctx, store.OTPKey(phone)); delErr != nil {
			util.Error("Failed to roll back OTP record after delivery failure",
				zap.String("phone", util.MaskPhone(phone)),
				zap.Error(delErr))
		}
		util.Warn("OTP delivery failed",
			zap.String("phone", util.MaskPhone(phone)),
			zap.Error(err))
		return &Rejection{
			Kind:    KindDelivery,
			Message: "Could not deliver the verification code. Please try again.",
		}, nil
	}

	util.Info("OTP issued",
		zap.String("phone", util.MaskPhone(phone)),
		zap.String("model_id", modelID),
		zap.String("issue_id", issueID))
	return nil, nil
}

// Verify checks the submitted code for phone. On success the record is
// deleted (single use) and the bound model/issue ids are returned. On a
// mismatch the attempts counter is bumped in place; the fifth failure
// locks the phone for LockoutDuration.
func (m *Manager) Verify(ctx context.Context, phone, code string) (*VerifyResult, *Rejection, error) {
	lock := m.phoneLock(phone)
	lock.Lock()
	defer lock.Unlock()

	now := m.now()
	record, err := m.load(ctx, phone)
	if err != nil {
		return nil, nil, err
	}
	if record == nil {
		return nil, &Rejection{
			Kind:    KindNotFound,
			Message: "No verification code found. Please request a new one.",
		}, nil
	}

	if record.LockedUntil > 0 && now.UnixMilli() < record.LockedUntil {
		return nil, &Rejection{
			Kind:       KindLocked,
			Message:    "Too many failed attempts. Please try again later.",
			RetryAfter: secondsUntil(now, record.LockedUntil),
		}, nil
	}

	if now.UnixMilli() > record.ExpiresAt {
		if err := m.store.Delete(ctx, store.OTPKey(phone)); err != nil {
			return nil, nil, err
		}
		return nil, &Rejection{
			Kind:    KindExpired,
			Message: "Verification code has expired. Please request a new one.",
		}, nil
	}

	if subtle.ConstantTimeCompare([]byte(HashCode(code)), []byte(record.HashedCode)) != 1 {
		record.Attempts++

		if record.Attempts >= MaxAttempts {
			record.LockedUntil = now.Add(LockoutDuration).UnixMilli()
			if err := m.save(ctx, record, LockoutDuration); err != nil {
				return nil, nil, err
			}
			util.Warn("Phone locked out after repeated OTP failures",
				zap.String("phone", util.MaskPhone(phone)))
			return nil, &Rejection{
				Kind:       KindLocked,
				Message:    "Too many failed attempts. Account locked for 15 minutes.",
				RetryAfter: int(LockoutDuration.Seconds()),
			}, nil
		}

		// Persist with the remaining lifetime; a wrong guess must not
		// extend the code's expiry.
		remaining := time.Duration(record.ExpiresAt-now.UnixMilli()) * time.Millisecond
		if err := m.save(ctx, record, remaining); err != nil {
			return nil, nil, err
		}
		left := MaxAttempts - record.Attempts
		return nil, &Rejection{
			Kind:         KindWrongCode,
			Message:      fmt.Sprintf("Invalid code. %d attempts remaining.", left),
			AttemptsLeft: left,
		}, nil
	}

	// Single use: the record is gone before the caller sees success.
	if err := m.store.Delete(ctx, store.OTPKey(phone)); err != nil {
		return nil, nil, err
	}

	util.Info("OTP verified",
		zap.String("phone", util.MaskPhone(phone)),
		zap.String("model_id", record.ModelID),
		zap.String("issue_id", record.IssueID))
	return &VerifyResult{
		Phone:   phone,
		ModelID: record.ModelID,
		IssueID: record.IssueID,
	}, nil, nil
}

func (m *Manager) load(ctx context.Context, phone string) (*Record, error) {
	raw, ok, err := m.store.Get(ctx, store.OTPKey(phone))
	if err != nil {
		return nil, fmt.Errorf("failed to read OTP record: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var record Record
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		util.Error("Discarding undecodable OTP record",
			zap.String("phone", util.MaskPhone(phone)),
			zap.Error(err))
		_ = m.store.Delete(ctx, store.OTPKey(phone))
		return nil, nil
	}
	return &record, nil
}

func (m *Manager) save(ctx context.Context, record *Record, ttl time.Duration) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode OTP record: %w", err)
	}
	if err := m.store.Set(ctx, store.OTPKey(record.Phone), string(raw), ttl); err != nil {
		return fmt.Errorf("failed to store OTP record: %w", err)
	}
	return nil
}

func secondsUntil(now time.Time, unixMilli int64) int {
	ms := unixMilli - now.UnixMilli()
	if ms <= 0 {
		return 0
	}
	return int((ms + 999) / 1000)
}
