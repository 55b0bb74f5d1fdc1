// Package events publishes lead and lockout events to Kafka. Publishing
// is best-effort: a broker outage must never fail a user request.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jackesh4086/spr-price-check/internal/client"
	"github.com/jackesh4086/spr-price-check/internal/encryption"
	"github.com/jackesh4086/spr-price-check/internal/util"
)

const (
	TypeLeadCaptured = "lead.captured"
	TypeOTPLockout   = "otp.lockout"
)

// LeadEvent is the wire payload. The phone number only appears encrypted.
type LeadEvent struct {
	EventID        string                    `json:"event_id"`
	Type           string                    `json:"type"`
	PhoneEncrypted *encryption.EncryptedData `json:"phone_encrypted"`
	ModelID        string                    `json:"model_id,omitempty"`
	IssueID        string                    `json:"issue_id,omitempty"`
	OccurredAt     time.Time                 `json:"occurred_at"`
}

// Publisher emits verification lifecycle events.
type Publisher interface {
	LeadCaptured(ctx context.Context, phone, modelID, issueID string)
	Lockout(ctx context.Context, phone string)
}

// KafkaPublisher publishes events to the configured lead topic with the
// phone encrypted at rest.
type KafkaPublisher struct {
	producer  *client.KafkaProducer
	encryptor *encryption.Manager
	topic     string
}

func NewKafkaPublisher(producer *client.KafkaProducer, encryptor *encryption.Manager, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		producer:  producer,
		encryptor: encryptor,
		topic:     topic,
	}
}

// LeadCaptured records a successful verification as a sales lead.
func (p *KafkaPublisher) LeadCaptured(ctx context.Context, phone, modelID, issueID string) {
	p.publish(ctx, &LeadEvent{
		Type:    TypeLeadCaptured,
		ModelID: modelID,
		IssueID: issueID,
	}, phone)
}

// Lockout records that a phone hit the failed-attempt limit.
func (p *KafkaPublisher) Lockout(ctx context.Context, phone string) {
	p.publish(ctx, &LeadEvent{Type: TypeOTPLockout}, phone)
}

func (p *KafkaPublisher) publish(ctx context.Context, event *LeadEvent, phone string) {
	encrypted, err := p.encryptor.EncryptField(ctx, phone)
	if err != nil {
		util.Error("Failed to encrypt phone for event",
			zap.String("type", event.Type),
			zap.Error(err))
		return
	}

	event.EventID = uuid.New().String()
	event.PhoneEncrypted = encrypted
	event.OccurredAt = time.Now().UTC()

	payload, err := json.Marshal(event)
	if err != nil {
		util.Error("Failed to encode event",
			zap.String("type", event.Type),
			zap.Error(err))
		return
	}

	// Keyed by event id, not phone, so the plaintext never leaves.
	if err := p.producer.ProduceMessage(ctx, p.topic, []byte(event.EventID), payload, map[string]string{
		"event_type": event.Type,
	}); err != nil {
		util.Warn("Failed to publish event",
			zap.String("type", event.Type),
			zap.String("event_id", event.EventID),
			zap.Error(err))
		return
	}

	util.Debug("Event published",
		zap.String("type", event.Type),
		zap.String("event_id", event.EventID))
}

// NoopPublisher is used when Kafka is not configured.
type NoopPublisher struct{}

func NewNoopPublisher() *NoopPublisher { return &NoopPublisher{} }

func (NoopPublisher) LeadCaptured(ctx context.Context, phone, modelID, issueID string) {}
func (NoopPublisher) Lockout(ctx context.Context, phone string)                        {}
