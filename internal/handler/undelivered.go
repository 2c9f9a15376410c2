package handler

import (
	"context"
	"errors"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/censusrm/caseprocessor/internal/messaging"
	"github.com/censusrm/caseprocessor/internal/store"
)

const descriptionUndeliveredMail = "Undelivered mail reported"

// UndeliveredHandler applies UNDELIVERED_MAIL_REPORTED events. The target is
// resolved by questionnaire id when one is supplied, otherwise by case ref.
// When resolved by qid the ledger row records the link as well as the case.
type UndeliveredHandler struct {
	logger *zap.Logger
}

// NewUndeliveredHandler creates the undelivered-mail handler.
func NewUndeliveredHandler(logger *zap.Logger) *UndeliveredHandler {
	return &UndeliveredHandler{logger: logger}
}

// Handle processes one undelivered-mail report.
func (h *UndeliveredHandler) Handle(
	ctx context.Context,
	tx store.Tx,
	envelope *messaging.Envelope,
	raw []byte,
	out *Outbox,
) error {
	info := envelope.Payload.FulfilmentInformation

	if info.QuestionnaireID != "" {
		return h.byQid(ctx, tx, envelope, raw, info.QuestionnaireID, out)
	}

	if info.CaseRef == "" {
		return validationf("undelivered mail carries neither a qid nor a case ref")
	}

	caseRef, parseErr := strconv.ParseInt(info.CaseRef, 10, 64)
	if parseErr != nil {
		return validationf("undelivered mail carries an invalid case ref %q", info.CaseRef)
	}

	c, err := tx.CaseByRef(ctx, caseRef)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return lookupf("no case with ref %d", caseRef)
		}

		return err
	}

	return h.markUndelivered(ctx, tx, envelope, raw, c.ID, nil, out)
}

func (h *UndeliveredHandler) byQid(
	ctx context.Context,
	tx store.Tx,
	envelope *messaging.Envelope,
	raw []byte,
	qid string,
	out *Outbox,
) error {
	link, err := tx.LinkByQID(ctx, qid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return lookupf("no uac/qid link for qid %s", qid)
		}

		return err
	}

	if link.CaseID == nil {
		// Nothing to flag; the report is still worth its audit row.
		row := newLedgerRow(envelope.Event.Type, envelope.Event, raw,
			descriptionUndeliveredMail, nil, &link.ID)

		return tx.AppendLedger(ctx, row)
	}

	return h.markUndelivered(ctx, tx, envelope, raw, *link.CaseID, &link.ID, out)
}

func (h *UndeliveredHandler) markUndelivered(
	ctx context.Context,
	tx store.Tx,
	envelope *messaging.Envelope,
	raw []byte,
	caseID uuid.UUID,
	linkID *uuid.UUID,
	out *Outbox,
) error {
	locked, err := tx.LockCase(ctx, caseID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return lookupf("case %s not found", caseID)
		}

		return err
	}

	locked.UndeliveredAsAddressed = true

	if err := tx.UpdateCase(ctx, locked); err != nil {
		return err
	}

	row := newLedgerRow(envelope.Event.Type, envelope.Event, raw,
		descriptionUndeliveredMail, &locked.ID, linkID)
	if err := tx.AppendLedger(ctx, row); err != nil {
		return err
	}

	out.CaseUpdated(locked, "")

	return nil
}
