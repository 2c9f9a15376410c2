package messaging

import (
	"context"
	"errors"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Outbound stream names for derived events.
const (
	StreamCaseCreated = "case-created"
	StreamCaseUpdated = "case-updated"
	StreamUacUpdated  = "uac-updated"
)

// ErrPublishFailed is returned when an outbound envelope cannot be appended
// to its stream.
var ErrPublishFailed = errors.New("failed to publish event")

// Publisher appends outbound envelopes to Redis streams.
type Publisher struct {
	client *redis.Client
	logger *zap.Logger
}

// NewPublisher creates a stream publisher.
func NewPublisher(client *redis.Client, logger *zap.Logger) *Publisher {
	return &Publisher{client: client, logger: logger}
}

// Publish encodes the envelope and appends it to the named stream.
func (p *Publisher) Publish(ctx context.Context, stream string, envelope *Envelope) error {
	body, err := Encode(envelope)
	if err != nil {
		return errors.Join(ErrPublishFailed, err)
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{payloadField: string(body)},
	}).Err()
	if err != nil {
		return errors.Join(ErrPublishFailed, err)
	}

	p.logger.Debug("published event",
		zap.String("stream", stream),
		zap.String("event_type", string(envelope.Event.Type)),
		zap.String("transaction_id", envelope.Event.TransactionID))

	return nil
}
