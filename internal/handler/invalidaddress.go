package handler

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/censusrm/caseprocessor/internal/messaging"
	"github.com/censusrm/caseprocessor/internal/store"
)

const descriptionInvalidAddress = "Invalid address"

// InvalidAddressHandler applies ADDRESS_NOT_VALID events.
type InvalidAddressHandler struct {
	logger *zap.Logger
}

// NewInvalidAddressHandler creates the invalid-address handler.
func NewInvalidAddressHandler(logger *zap.Logger) *InvalidAddressHandler {
	return &InvalidAddressHandler{logger: logger}
}

// Handle processes one invalid-address report.
func (h *InvalidAddressHandler) Handle(
	ctx context.Context,
	tx store.Tx,
	envelope *messaging.Envelope,
	raw []byte,
	out *Outbox,
) error {
	invalidAddress := envelope.Payload.InvalidAddress

	caseID, parseErr := uuid.Parse(invalidAddress.CollectionCase.ID)
	if parseErr != nil {
		return validationf("invalid-address report carries an invalid case id %q",
			invalidAddress.CollectionCase.ID)
	}

	locked, err := tx.LockCase(ctx, caseID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return lookupf("case %s not found", caseID)
		}

		return err
	}

	locked.AddressInvalid = true

	if err := tx.UpdateCase(ctx, locked); err != nil {
		return err
	}

	description := descriptionInvalidAddress
	if invalidAddress.Reason != "" {
		description = description + " (" + invalidAddress.Reason + ")"
	}

	row := newLedgerRow(envelope.Event.Type, envelope.Event, raw,
		description, &locked.ID, nil)
	if err := tx.AppendLedger(ctx, row); err != nil {
		return err
	}

	out.CaseUpdated(locked, "")

	return nil
}
