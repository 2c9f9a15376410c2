package handler

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/censusrm/caseprocessor/internal/domain"
	"github.com/censusrm/caseprocessor/internal/messaging"
	"github.com/censusrm/caseprocessor/internal/store"
)

const descriptionFieldCaseUpdated = "Field case update received"

// FieldUpdateHandler applies FIELD_CASE_UPDATED events: a capacity change for
// a communal establishment. The case is locked for the whole check-and-write
// so the capacity comparison sees a response counter no concurrent receipt is
// halfway through updating.
type FieldUpdateHandler struct {
	logger *zap.Logger
}

// NewFieldUpdateHandler creates the field-case-updated handler.
func NewFieldUpdateHandler(logger *zap.Logger) *FieldUpdateHandler {
	return &FieldUpdateHandler{logger: logger}
}

// Handle processes one capacity update.
func (h *FieldUpdateHandler) Handle(
	ctx context.Context,
	tx store.Tx,
	envelope *messaging.Envelope,
	raw []byte,
	out *Outbox,
) error {
	collectionCase := envelope.Payload.CollectionCase

	caseID, parseErr := uuid.Parse(collectionCase.ID)
	if parseErr != nil {
		return validationf("field case update carries an invalid case id %q", collectionCase.ID)
	}

	if collectionCase.CeExpectedCapacity == nil {
		return validationf("field case update carries no expected capacity")
	}

	locked, err := tx.LockCase(ctx, caseID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return lookupf("case %s not found", caseID)
		}

		return err
	}

	if locked.CaseType != domain.CaseTypeCommunal {
		return invariantf("capacity update targets case %s of type %s, not a communal establishment",
			locked.ID, locked.CaseType)
	}

	locked.CeExpectedCapacity = collectionCase.CeExpectedCapacity

	// Field operations always learn about the new capacity; when the responses
	// already cover it, the fieldwork is cancelled instead of updated.
	instruction := messaging.InstructionUpdate
	if locked.CeActualResponses >= *collectionCase.CeExpectedCapacity {
		instruction = messaging.InstructionCancel
	}

	if err := tx.UpdateCase(ctx, locked); err != nil {
		return err
	}

	row := newLedgerRow(envelope.Event.Type, envelope.Event, raw,
		descriptionFieldCaseUpdated, &locked.ID, nil)
	if err := tx.AppendLedger(ctx, row); err != nil {
		return err
	}

	out.CaseUpdated(locked, instruction)

	return nil
}
