package handler

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/censusrm/caseprocessor/internal/domain"
	"github.com/censusrm/caseprocessor/internal/ident"
	"github.com/censusrm/caseprocessor/internal/messaging"
	"github.com/censusrm/caseprocessor/internal/store"
)

const descriptionQuestionnaireLinked = "Questionnaire Linked"

// LinkedHandler applies QUESTIONNAIRE_LINKED events: it binds a previously
// unlinked code to a case. An individual questionnaire landing on a household
// parent derives a child case first and binds the code to the child. A code
// whose response already arrived before linking (inactive link) receipts the
// newly bound case immediately.
type LinkedHandler struct {
	caseRefs *ident.CaseRefGenerator
	logger   *zap.Logger
}

// NewLinkedHandler creates the questionnaire-linked handler.
func NewLinkedHandler(caseRefs *ident.CaseRefGenerator, logger *zap.Logger) *LinkedHandler {
	return &LinkedHandler{caseRefs: caseRefs, logger: logger}
}

// Handle processes one questionnaire-linked event.
func (h *LinkedHandler) Handle(
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

	caseID, parseErr := uuid.Parse(response.CaseID)
	if parseErr != nil {
		return validationf("questionnaire link carries an invalid case id %q", response.CaseID)
	}

	c, err := tx.CaseByID(ctx, caseID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return lookupf("linked case %s not found", caseID)
		}

		return err
	}

	if link.CaseID != nil && *link.CaseID != c.ID {
		return invariantf("qid %s is already linked to case %s", link.QID, link.CaseID)
	}

	// The response arrived before the link did; remember so the freshly
	// bound case can be receipted below.
	responseAlreadyReceived := !link.Active

	target := c

	questionnaireType := domain.QuestionnaireTypeOf(link.QID)
	if questionnaireType.IsIndividual() && c.CaseType == domain.CaseTypeHousehold {
		child, deriveErr := deriveChildCase(ctx, tx, h.caseRefs, c, uuid.New())
		if deriveErr != nil {
			return deriveErr
		}

		out.CaseCreated(child, "")

		target = child
		link.Active = false
	}

	link.CaseID = &target.ID
	link.CCSCase = target.CCSCase

	if responseAlreadyReceived {
		if err := receiptCase(ctx, tx, link, out); err != nil {
			return err
		}
	}

	if err := tx.UpdateLink(ctx, link); err != nil {
		return err
	}

	row := newLedgerRow(envelope.Event.Type, envelope.Event, raw,
		descriptionQuestionnaireLinked, &target.ID, &link.ID)
	if err := tx.AppendLedger(ctx, row); err != nil {
		return err
	}

	out.UacUpdated(link)

	return nil
}
