package handler

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/censusrm/caseprocessor/internal/domain"
	"github.com/censusrm/caseprocessor/internal/messaging"
	"github.com/censusrm/caseprocessor/internal/store"
)

// receiptCase applies the receipting rules for one qualifying code against its
// linked case. The row lock taken here is held for the whole
// read-increment-write span of the surrounding transaction; that is what keeps
// ceActualResponses exact when many receipt and linking events race against
// the same communal establishment.
//
// Rules by classification of the code:
//   - no linked case: nothing to do
//   - case already receipted: nothing to do (a case is receipted at most once)
//   - continuation code: never receipts
//   - CE case + individual code, unit level: increment the response counter;
//     receipt and close only when the counter reaches the expected capacity
//   - CE case + individual code, establishment level: increment the counter
//     but never receipt the aggregate case
//   - anything else: receipt directly and instruct field operations to close
func receiptCase(ctx context.Context, tx store.Tx, link *domain.UacQidLink, out *Outbox) error {
	if link.CaseID == nil {
		return nil
	}

	c, err := tx.CaseByID(ctx, *link.CaseID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return lookupf("case %s linked by qid %s not found", link.CaseID, link.QID)
		}

		return err
	}

	if c.ReceiptReceived {
		return nil
	}

	questionnaireType := domain.QuestionnaireTypeOf(link.QID)
	if questionnaireType.IsContinuation() {
		return nil
	}

	if c.CaseType == domain.CaseTypeCommunal && questionnaireType.IsIndividual() {
		return incrementCeResponses(ctx, tx, c.ID, out)
	}

	return receiptDirectly(ctx, tx, c.ID, out)
}

func incrementCeResponses(ctx context.Context, tx store.Tx, caseID uuid.UUID, out *Outbox) error {
	locked, err := tx.LockCase(ctx, caseID)
	if err != nil {
		return err
	}

	// Re-check under the lock: a concurrent worker may have receipted the
	// case between our stale read and lock acquisition.
	if locked.ReceiptReceived {
		return nil
	}

	locked.CeActualResponses++

	instruction := ""

	if locked.AddressLevel == domain.AddressLevelUnit &&
		locked.CeExpectedCapacity != nil &&
		locked.CeActualResponses >= *locked.CeExpectedCapacity {
		locked.ReceiptReceived = true
		instruction = messaging.InstructionClose
	}

	if err := tx.UpdateCase(ctx, locked); err != nil {
		return err
	}

	out.CaseUpdated(locked, instruction)

	return nil
}

func receiptDirectly(ctx context.Context, tx store.Tx, caseID uuid.UUID, out *Outbox) error {
	locked, err := tx.LockCase(ctx, caseID)
	if err != nil {
		return err
	}

	if locked.ReceiptReceived {
		return nil
	}

	locked.ReceiptReceived = true

	if err := tx.UpdateCase(ctx, locked); err != nil {
		return err
	}

	out.CaseUpdated(locked, messaging.InstructionClose)

	return nil
}
