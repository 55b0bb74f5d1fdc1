// Package audit records the OTP lifecycle into ClickHouse for analytics.
// Rows carry bucket columns instead of raw identifiers; the phone number
// is stored encrypted. Everything here is best-effort.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jackesh4086/spr-price-check/internal/bucketing"
	"github.com/jackesh4086/spr-price-check/internal/client"
	"github.com/jackesh4086/spr-price-check/internal/encryption"
	"github.com/jackesh4086/spr-price-check/internal/util"
)

// Event types written to the audit trail.
const (
	EventRequested = "otp.requested"
	EventSent      = "otp.sent"
	EventVerified  = "otp.verified"
	EventFailed    = "otp.failed"
	EventLockout   = "otp.lockout"
	EventExpired   = "otp.expired"
)

const (
	flushInterval = 5 * time.Second
	maxBatchSize  = 200
	queueSize     = 2048
)

const insertQuery = `
    INSERT INTO otp_events (
        event_id, event_type, phone_bucket, event_bucket, time_bucket,
        date_bucket, phone_encrypted, model_id, issue_id, client_ip, created_at
    )`

// Entry is one audit row before bucketing and encryption.
type Entry struct {
	EventType string
	Phone     string
	ModelID   string
	IssueID   string
	ClientIP  string
}

// Sink receives audit entries. Implementations never block the caller
// beyond a queue append and never return errors to it.
type Sink interface {
	Record(ctx context.Context, entry Entry)
	Close() error
}

// ClickHouseSink batches rows in memory and flushes them on a timer or
// when the batch fills.
type ClickHouseSink struct {
	ch        *client.ClickHouseClient
	encryptor *encryption.Manager
	buckets   *bucketing.Manager

	queue    chan []interface{}
	done     chan struct{}
	closeOne sync.Once
	wg       sync.WaitGroup
}

func NewClickHouseSink(ch *client.ClickHouseClient, encryptor *encryption.Manager, buckets *bucketing.Manager) *ClickHouseSink {
	s := &ClickHouseSink{
		ch:        ch,
		encryptor: encryptor,
		buckets:   buckets,
		queue:     make(chan []interface{}, queueSize),
		done:      make(chan struct{}),
	}
	s.wg.Add(1)
	go s.flushLoop()
	return s
}

// Record enqueues one audit row. A full queue drops the row with a
// warning rather than stalling the request path.
func (s *ClickHouseSink) Record(ctx context.Context, entry Entry) {
	now := time.Now().UTC()
	assignment := s.buckets.Assign(entry.Phone, entry.EventType, now)

	encryptedPhone := ""
	if entry.Phone != "" {
		encrypted, err := s.encryptor.EncryptField(ctx, entry.Phone)
		if err != nil {
			util.Warn("Failed to encrypt phone for audit row", zap.Error(err))
		} else if raw, err := json.Marshal(encrypted); err == nil {
			encryptedPhone = string(raw)
		}
	}

	row := []interface{}{
		uuid.New().String(),
		entry.EventType,
		uint16(assignment.PhoneBucket),
		uint16(assignment.EventBucket),
		assignment.TimeBucket,
		assignment.DateBucket,
		encryptedPhone,
		entry.ModelID,
		entry.IssueID,
		entry.ClientIP,
		now,
	}

	select {
	case s.queue <- row:
	default:
		util.Warn("Audit queue full, dropping row",
			zap.String("event_type", entry.EventType))
	}
}

func (s *ClickHouseSink) flushLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([][]interface{}, 0, maxBatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := s.ch.BatchInsert(ctx, insertQuery, batch); err != nil {
			util.Warn("Failed to flush audit batch",
				zap.Int("rows", len(batch)),
				zap.Error(err))
		} else {
			util.Debug("Audit batch flushed", zap.Int("rows", len(batch)))
		}
		cancel()
		batch = batch[:0]
	}

	for {
		select {
		case row := <-s.queue:
			batch = append(batch, row)
			if len(batch) >= maxBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-s.done:
			for {
				select {
				case row := <-s.queue:
					batch = append(batch, row)
				default:
					flush()
					return
				}
			}
		}
	}
}

// Close drains the queue and stops the flusher.
func (s *ClickHouseSink) Close() error {
	s.closeOne.Do(func() {
		close(s.done)
	})
	s.wg.Wait()
	return nil
}

// NoopSink is used when ClickHouse is not configured.
type NoopSink struct{}

func NewNoopSink() *NoopSink { return &NoopSink{} }

func (NoopSink) Record(ctx context.Context, entry Entry) {}
func (NoopSink) Close() error                            { return nil }
