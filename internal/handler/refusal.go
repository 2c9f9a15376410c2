package handler

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/censusrm/caseprocessor/internal/messaging"
	"github.com/censusrm/caseprocessor/internal/store"
)

const descriptionRefusalReceived = "Refusal Received"

// RefusalHandler applies REFUSAL_RECEIVED events. A refusal against a
// coverage-survey case is recorded in the ledger only; CCS cases follow a
// separate downstream lifecycle and take no persistence or emission here.
type RefusalHandler struct {
	logger *zap.Logger
}

// NewRefusalHandler creates the refusal handler.
func NewRefusalHandler(logger *zap.Logger) *RefusalHandler {
	return &RefusalHandler{logger: logger}
}

// Handle processes one refusal.
func (h *RefusalHandler) Handle(
	ctx context.Context,
	tx store.Tx,
	envelope *messaging.Envelope,
	raw []byte,
	out *Outbox,
) error {
	refusal := envelope.Payload.Refusal

	caseID, parseErr := uuid.Parse(refusal.CollectionCase.ID)
	if parseErr != nil {
		return validationf("refusal carries an invalid case id %q", refusal.CollectionCase.ID)
	}

	c, err := tx.CaseByID(ctx, caseID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return lookupf("refused case %s not found", caseID)
		}

		return err
	}

	row := newLedgerRow(envelope.Event.Type, envelope.Event, raw,
		descriptionRefusalReceived, &c.ID, nil)
	if err := tx.AppendLedger(ctx, row); err != nil {
		return err
	}

	if c.CCSCase {
		h.logger.Info("refusal against ccs case recorded in ledger only",
			zap.String("case_id", c.ID.String()))

		return nil
	}

	c.RefusalReceived = true

	if err := tx.UpdateCase(ctx, c); err != nil {
		return err
	}

	out.CaseUpdated(c, "")

	return nil
}
