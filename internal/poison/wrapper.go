// Package poison isolates failing messages without stalling the pipeline.
//
// The wrapper sits between the stream consumer and the event router: any
// processing error is hashed, reported to the external exception manager,
// and resolved to one of three outcomes — skip (store a copy, then discard),
// peek (hand the body over for inspection, then retry) or log (the default,
// and the fallback whenever the exception manager itself is unreachable).
// Exception manager failures never propagate.
package poison

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"go.uber.org/zap"

	"github.com/censusrm/caseprocessor/internal/messaging"
	"github.com/censusrm/caseprocessor/internal/metrics"
)

const (
	outcomeSkip = "skip"
	outcomePeek = "peek"
	outcomeLog  = "log"
)

// Processor applies one raw message; the router satisfies this.
type Processor interface {
	Process(ctx context.Context, queue string, raw []byte) error
}

// Reporter is the exception manager surface the wrapper needs.
type Reporter interface {
	ReportError(ctx context.Context, messageHash, service, queue string, cause error) (*Response, error)
	StoreSkippedMessage(ctx context.Context, messageHash, service, queue string, raw []byte) error
	RespondToPeek(ctx context.Context, messageHash string, raw []byte) error
}

// Wrapper implements messaging.MessageHandler around a Processor.
type Wrapper struct {
	processor Processor
	reporter  Reporter
	logger    *zap.Logger
	metrics   *metrics.Metrics
	service   string
}

// NewWrapper creates the poison wrapper for one service.
func NewWrapper(
	processor Processor,
	reporter Reporter,
	logger *zap.Logger,
	m *metrics.Metrics,
	service string,
) *Wrapper {
	return &Wrapper{
		processor: processor,
		reporter:  reporter,
		logger:    logger,
		metrics:   m,
		service:   service,
	}
}

// Handle processes one message and converts any failure into a bounded
// poison decision. The content hash is computed statelessly per call.
func (w *Wrapper) Handle(ctx context.Context, queue string, raw []byte) messaging.Outcome {
	err := w.processor.Process(ctx, queue, raw)
	if err == nil {
		return messaging.Ack
	}

	messageHash := contentHash(raw)

	decision, reportErr := w.reporter.ReportError(ctx, messageHash, w.service, queue, err)
	if reportErr != nil {
		w.logFailure(queue, messageHash, raw, err,
			zap.NamedError("report_error", reportErr))

		return messaging.Retry
	}

	switch {
	case decision.SkipIt:
		return w.skip(ctx, queue, messageHash, raw, err)
	case decision.Peek:
		return w.peek(ctx, queue, messageHash, raw)
	default:
		w.logFailure(queue, messageHash, raw, err)

		return messaging.Retry
	}
}

// skip stores a copy of the message first; only a successfully stored
// message may be discarded.
func (w *Wrapper) skip(
	ctx context.Context,
	queue string,
	messageHash string,
	raw []byte,
	cause error,
) messaging.Outcome {
	if storeErr := w.reporter.StoreSkippedMessage(ctx, messageHash, w.service, queue, raw); storeErr != nil {
		w.logFailure(queue, messageHash, raw, cause,
			zap.NamedError("store_error", storeErr))

		return messaging.Retry
	}

	w.metrics.PoisonOutcomes.WithLabelValues(outcomeSkip).Inc()
	w.logger.Warn("Skipping message",
		zap.String("queue", queue),
		zap.String("message_hash", messageHash))

	return messaging.Ack
}

func (w *Wrapper) peek(
	ctx context.Context,
	queue string,
	messageHash string,
	raw []byte,
) messaging.Outcome {
	if peekErr := w.reporter.RespondToPeek(ctx, messageHash, raw); peekErr != nil {
		w.logger.Warn("failed to respond to peek request",
			zap.String("queue", queue),
			zap.String("message_hash", messageHash),
			zap.Error(peekErr))
	}

	w.metrics.PoisonOutcomes.WithLabelValues(outcomePeek).Inc()

	return messaging.Retry
}

func (w *Wrapper) logFailure(
	queue string,
	messageHash string,
	raw []byte,
	cause error,
	extra ...zap.Field,
) {
	w.metrics.PoisonOutcomes.WithLabelValues(outcomeLog).Inc()

	fields := []zap.Field{
		zap.String("queue", queue),
		zap.String("message_hash", messageHash),
		zap.Bool("valid_json", messaging.IsValidJSON(raw)),
		zap.Error(cause),
	}
	fields = append(fields, extra...)

	w.logger.Error("Could not process message", fields...)
}

func contentHash(raw []byte) string {
	digest := sha256.Sum256(raw)

	return hex.EncodeToString(digest[:])
}
