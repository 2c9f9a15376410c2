package handler

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/censusrm/caseprocessor/internal/domain"
	"github.com/censusrm/caseprocessor/internal/ident"
	"github.com/censusrm/caseprocessor/internal/messaging"
	"github.com/censusrm/caseprocessor/internal/store"
)

const descriptionFulfilmentRequested = "Fulfilment Request Received"

// Individual-response fulfilment code families. A request carrying one of
// these against a household case gets its own child case so the individual's
// answers stay separate from the household return.
var individualFulfilmentPrefixes = []string{"P_OR_I", "UACIT"}

// FulfilmentHandler applies FULFILMENT_REQUESTED events: replacement or
// additional questionnaires requested for an existing case.
type FulfilmentHandler struct {
	caseRefs *ident.CaseRefGenerator
	logger   *zap.Logger
}

// NewFulfilmentHandler creates the fulfilment-requested handler.
func NewFulfilmentHandler(caseRefs *ident.CaseRefGenerator, logger *zap.Logger) *FulfilmentHandler {
	return &FulfilmentHandler{caseRefs: caseRefs, logger: logger}
}

// Handle processes one fulfilment request.
func (h *FulfilmentHandler) Handle(
	ctx context.Context,
	tx store.Tx,
	envelope *messaging.Envelope,
	raw []byte,
	out *Outbox,
) error {
	request := envelope.Payload.FulfilmentRequest

	if request.FulfilmentCode == "" {
		return validationf("fulfilment request carries no fulfilment code")
	}

	caseID, parseErr := uuid.Parse(request.CaseID)
	if parseErr != nil {
		return validationf("fulfilment request carries an invalid case id %q", request.CaseID)
	}

	c, err := tx.CaseByID(ctx, caseID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return lookupf("fulfilment target case %s not found", caseID)
		}

		return err
	}

	target := c
	qidType := initialQidType(c)

	if isIndividualFulfilment(request.FulfilmentCode) && c.CaseType == domain.CaseTypeHousehold {
		childID := uuid.New()

		if request.IndividualCaseID != "" {
			parsed, childParseErr := uuid.Parse(request.IndividualCaseID)
			if childParseErr != nil {
				return validationf("fulfilment request carries an invalid individual case id %q",
					request.IndividualCaseID)
			}

			childID = parsed
		}

		child, deriveErr := deriveChildCase(ctx, tx, h.caseRefs, c, childID)
		if deriveErr != nil {
			return deriveErr
		}

		out.CaseCreated(child, "")

		target = child
		qidType = qidTypeIndividual
	}

	link, err := issueLink(ctx, tx, qidType, target)
	if err != nil {
		return err
	}

	row := newLedgerRow(envelope.Event.Type, envelope.Event, raw,
		descriptionFulfilmentRequested, &target.ID, &link.ID)
	if err := tx.AppendLedger(ctx, row); err != nil {
		return err
	}

	out.UacUpdated(link)

	return nil
}

func isIndividualFulfilment(code string) bool {
	for _, prefix := range individualFulfilmentPrefixes {
		if strings.HasPrefix(code, prefix) {
			return true
		}
	}

	return false
}
