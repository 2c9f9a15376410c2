package handler

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/censusrm/caseprocessor/internal/domain"
	"github.com/censusrm/caseprocessor/internal/messaging"
	"github.com/censusrm/caseprocessor/internal/store"
)

const (
	descriptionQidReceipted   = "QID Receipted"
	descriptionQidUnreceipted = "QID Unreceipted"
)

// ReceiptHandler applies RESPONSE_RECEIVED events: a normal receipt
// deactivates the code and receipts the linked case through the receipting
// protocol; an unreceipt flags the code and clears the case's receipt.
type ReceiptHandler struct {
	logger *zap.Logger
}

// NewReceiptHandler creates the receipt handler.
func NewReceiptHandler(logger *zap.Logger) *ReceiptHandler {
	return &ReceiptHandler{logger: logger}
}

// Handle processes one receipt or unreceipt.
func (h *ReceiptHandler) Handle(
	ctx context.Context,
	tx store.Tx,
	envelope *messaging.Envelope,
	raw []byte,
	out *Outbox,
) error {
	response := envelope.Payload.Response

	link, err := tx.LinkByQID(ctx, response.QuestionnaireID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return lookupf("no uac/qid link for qid %s", response.QuestionnaireID)
		}

		return err
	}

	if response.Unreceipt {
		return h.unreceipt(ctx, tx, envelope, raw, link, out)
	}

	link.Active = false

	row := newLedgerRow(envelope.Event.Type, envelope.Event, raw,
		descriptionQidReceipted, link.CaseID, &link.ID)
	if err := tx.AppendLedger(ctx, row); err != nil {
		return err
	}

	out.UacUpdated(link)

	// A code that was unreceipted earlier takes no further state change from
	// a normal receipt: the deactivation above is recorded but not persisted
	// on this pass.
	if link.Unreceipted {
		h.logger.Info("receipt for unreceipted qid ignored",
			zap.String("qid", link.QID),
			zap.String("transaction_id", envelope.Event.TransactionID))

		return nil
	}

	if link.CaseID != nil {
		if err := receiptCase(ctx, tx, link, out); err != nil {
			return err
		}
	}

	return tx.UpdateLink(ctx, link)
}

func (h *ReceiptHandler) unreceipt(
	ctx context.Context,
	tx store.Tx,
	envelope *messaging.Envelope,
	raw []byte,
	link *domain.UacQidLink,
	out *Outbox,
) error {
	link.Unreceipted = true

	if err := tx.UpdateLink(ctx, link); err != nil {
		return err
	}

	row := newLedgerRow(envelope.Event.Type, envelope.Event, raw,
		descriptionQidUnreceipted, link.CaseID, &link.ID)
	if err := tx.AppendLedger(ctx, row); err != nil {
		return err
	}

	out.UacUpdated(link)

	if link.CaseID == nil {
		return nil
	}

	locked, err := tx.LockCase(ctx, *link.CaseID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return lookupf("case %s linked by qid %s not found", link.CaseID, link.QID)
		}

		return err
	}

	locked.ReceiptReceived = false

	if err := tx.UpdateCase(ctx, locked); err != nil {
		return err
	}

	out.CaseUpdated(locked, "")

	return nil
}
