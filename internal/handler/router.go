package handler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/censusrm/caseprocessor/internal/domain"
	"github.com/censusrm/caseprocessor/internal/messaging"
	"github.com/censusrm/caseprocessor/internal/metrics"
	"github.com/censusrm/caseprocessor/internal/store"
)

const descriptionUnexpectedType = "Unexpected event type received"

// Handler applies one inbound event inside an open transaction. Emissions are
// recorded on the outbox, never published directly.
type Handler interface {
	Handle(ctx context.Context, tx store.Tx, envelope *messaging.Envelope, raw []byte, out *Outbox) error
}

// EventPublisher publishes one outbound envelope to a named stream.
type EventPublisher interface {
	Publish(ctx context.Context, stream string, envelope *messaging.Envelope) error
}

// Router decodes inbound envelopes and dispatches each to the handler
// registered for its declared event type, inside a single store transaction.
// Nothing is committed unless the handler returns nil; outbox emissions are
// published only after the commit.
type Router struct {
	store     store.Store
	publisher EventPublisher
	logger    *zap.Logger
	metrics   *metrics.Metrics
	source    string
	handlers  map[domain.EventType]Handler
	expected  map[string]map[domain.EventType]struct{}
}

// NewRouter creates an empty router; register handlers before use.
func NewRouter(
	st store.Store,
	publisher EventPublisher,
	logger *zap.Logger,
	m *metrics.Metrics,
	source string,
) *Router {
	return &Router{
		store:     st,
		publisher: publisher,
		logger:    logger,
		metrics:   m,
		source:    source,
		handlers:  make(map[domain.EventType]Handler),
		expected:  make(map[string]map[domain.EventType]struct{}),
	}
}

// Register binds a handler to an event type.
func (r *Router) Register(eventType domain.EventType, h Handler) {
	r.handlers[eventType] = h
}

// ExpectOn restricts a queue to the given event kinds. A registered kind
// arriving on a queue bound to other kinds is rejected just like an unknown
// kind. Queues with no binding accept any registered kind.
func (r *Router) ExpectOn(queue string, kinds ...domain.EventType) {
	set, bound := r.expected[queue]
	if !bound {
		set = make(map[domain.EventType]struct{}, len(kinds))
		r.expected[queue] = set
	}

	for _, kind := range kinds {
		set[kind] = struct{}{}
	}
}

func (r *Router) expectedOn(queue string, kind domain.EventType) bool {
	kinds, bound := r.expected[queue]
	if !bound {
		return true
	}

	_, ok := kinds[kind]

	return ok
}

// Process applies one raw message. An event type with no registered handler,
// or one outside the kinds bound to the queue, appends a rejection ledger row
// and then fails the transaction, so the rejection is surfaced for poison
// handling with no state committed.
func (r *Router) Process(ctx context.Context, queue string, raw []byte) error {
	started := time.Now()

	envelope, decodeErr := messaging.Decode(raw)
	if decodeErr != nil {
		r.metrics.MessagesFailed.WithLabelValues(queue).Inc()

		return errors.Join(ErrValidation, decodeErr)
	}

	var out *Outbox

	txErr := r.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		h, known := r.handlers[envelope.Event.Type]
		if !known || !r.expectedOn(queue, envelope.Event.Type) {
			row := newLedgerRow(domain.UnexpectedEventType, envelope.Event, raw,
				descriptionUnexpectedType, nil, nil)
			if err := tx.AppendLedger(ctx, row); err != nil {
				return err
			}

			return invariantf("unexpected event type %q on queue %q",
				envelope.Event.Type, queue)
		}

		out = NewOutbox(r.source, envelope.Event)

		return h.Handle(ctx, tx, envelope, raw, out)
	})

	r.metrics.ProcessingSeconds.WithLabelValues(queue).Observe(time.Since(started).Seconds())

	if txErr != nil {
		r.metrics.MessagesFailed.WithLabelValues(queue).Inc()

		return txErr
	}

	for _, outbound := range out.Drain() {
		if err := r.publisher.Publish(ctx, outbound.Stream, outbound.Envelope); err != nil {
			// The transaction is already committed; returning the error lets
			// the message retry, and the handlers tolerate redelivery.
			r.metrics.MessagesFailed.WithLabelValues(queue).Inc()

			return err
		}

		r.metrics.EventsEmitted.WithLabelValues(outbound.Stream).Inc()
	}

	r.metrics.MessagesProcessed.WithLabelValues(queue).Inc()
	r.logger.Debug("processed message",
		zap.String("queue", queue),
		zap.String("event_type", string(envelope.Event.Type)),
		zap.String("transaction_id", envelope.Event.TransactionID))

	return nil
}
