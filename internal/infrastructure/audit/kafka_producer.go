package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/genlayerlabs/glvault/internal/domain/models"
	"github.com/genlayerlabs/glvault/pkg/logger"
)

// KafkaConfig configures the audit event publisher.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
	RequiredAcks int
	BatchSize    int
	BatchTimeout time.Duration
	// SigningSecret, if set, causes every published message to carry an
	// X-Signature header so downstream SIEM consumers can verify integrity.
	SigningSecret string
}

// KafkaPublisher mirrors audit entries onto a Kafka topic for downstream
// SIEM ingestion. It is a best-effort fan-out: publish failures are logged,
// never returned as a failure of the primary audit write.
type KafkaPublisher struct {
	writer *kafka.Writer
	secret string
	log    logger.Logger
}

// NewKafkaPublisher builds a KafkaPublisher from cfg.
func NewKafkaPublisher(cfg KafkaConfig, log logger.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		WriteTimeout: cfg.WriteTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
	}
	return &KafkaPublisher{writer: writer, secret: cfg.SigningSecret, log: log}
}

// Mirror publishes entry as a Kafka message keyed by alias.
func (p *KafkaPublisher) Mirror(ctx context.Context, entry models.AuditEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(entry.Alias),
		Value: payload,
	}
	if p.secret != "" {
		msg.Headers = append(msg.Headers, kafka.Header{
			Key:   "X-Signature",
			Value: []byte(SignAuditEntry(payload, p.secret)),
		})
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Warn(ctx, "kafka audit publish failed", logger.Fields{"alias": entry.Alias, "error": err.Error()})
		return err
	}
	return nil
}

// Close closes the underlying Kafka writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
