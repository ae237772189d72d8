package audit

import (
	"healthdatagateway.org/ted/logger"
	"healthdatagateway.org/ted/rmq"
	"encoding/json"
	"fmt"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
	"time"
)

const RFC3339Micro = "2006-01-02T15:04:05.000000-07:00"

// Event is one audit record published to the gateway audit queue.
type Event struct {
	ActionType    string `json:"action_type"`
	ActionName    string `json:"action_name"`
	ActionService string `json:"action_service"`
	Description   string `json:"description"`
	CreatedAt     string `json:"created_at"`
}

// Publisher is the audit capability. The orchestrator always holds
// one, a disabled audit channel is the no-op implementation rather
// than a conditional.
type Publisher interface {
	Publish(event Event) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(Event) error {
	return nil
}

// Nop returns a publisher that drops every event, used when auditing
// is disabled by configuration.
func Nop() Publisher {
	return nopPublisher{}
}

type auditChannel interface {
	PublishAudit(msg amqp.Publishing) error
}

type rmqPublisher struct {
	channel   auditChannel
	service   string
	tedLogger *zerolog.Logger
}

// NewPublisher wraps an RMQ client as an audit publisher. service
// becomes the action_service of every event.
func NewPublisher(channel *rmq.Client, service string) Publisher {
	tedLogger := logger.NewLogger("Audit publisher")
	return &rmqPublisher{channel: channel, service: service, tedLogger: &tedLogger}
}

func (publisher *rmqPublisher) Publish(event Event) error {
	event.ActionService = publisher.service
	if event.CreatedAt == "" {
		event.CreatedAt = time.Now().UTC().Format(RFC3339Micro)
	}
	b, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}
	err = publisher.channel.PublishAudit(amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         b,
	})
	if err != nil {
		publisher.tedLogger.Error().Err(err).Str("action_name", event.ActionName).Msg("Failed to publish audit event")
		return fmt.Errorf("failed to publish audit event: %w", err)
	}
	publisher.tedLogger.Debug().Str("action_name", event.ActionName).Msg("Published audit event")
	return nil
}
