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

const descriptionCCSAddressListed = "CCS Address Listed"

// CCSPropertyHandler applies CCS_ADDRESS_LISTED events: it mints a
// coverage-survey case for the listed property. A questionnaire id supplied
// by the lister is bound to the new case; otherwise a fresh CCS code is
// issued. A field-operations create instruction is attached only when no qid
// was supplied, because a supplied qid means an interviewer is already at the
// property.
type CCSPropertyHandler struct {
	caseRefs *ident.CaseRefGenerator
	logger   *zap.Logger
}

// NewCCSPropertyHandler creates the CCS-property-listed handler.
func NewCCSPropertyHandler(caseRefs *ident.CaseRefGenerator, logger *zap.Logger) *CCSPropertyHandler {
	return &CCSPropertyHandler{caseRefs: caseRefs, logger: logger}
}

// Handle processes one listed property.
func (h *CCSPropertyHandler) Handle(
	ctx context.Context,
	tx store.Tx,
	envelope *messaging.Envelope,
	raw []byte,
	out *Outbox,
) error {
	property := envelope.Payload.CCSProperty

	caseID, parseErr := uuid.Parse(property.CollectionCase.ID)
	if parseErr != nil {
		return validationf("ccs property carries an invalid case id %q",
			property.CollectionCase.ID)
	}

	sampleUnit := property.SampleUnit

	if sampleUnit.AddressType == "" {
		return validationf("ccs property is missing its address type")
	}

	sequenceNumber, err := tx.NextCaseSequence(ctx)
	if err != nil {
		return err
	}

	caseRef, err := h.caseRefs.CaseRef(sequenceNumber)
	if err != nil {
		return err
	}

	c := &domain.Case{
		ID:               caseID,
		SequenceNumber:   sequenceNumber,
		CaseRef:          caseRef,
		CaseType:         sampleUnit.AddressType,
		Survey:           domain.SurveyCCS,
		AddressLine1:     sampleUnit.AddressLine1,
		AddressLine2:     sampleUnit.AddressLine2,
		AddressLine3:     sampleUnit.AddressLine3,
		TownName:         sampleUnit.TownName,
		Postcode:         sampleUnit.Postcode,
		Region:           sampleUnit.Region,
		AddressType:      sampleUnit.AddressType,
		AddressLevel:     sampleUnit.AddressLevel,
		EstabType:        sampleUnit.EstabType,
		OrganisationName: sampleUnit.OrganisationName,
		Uprn:             sampleUnit.Uprn,
		CCSCase:          true,
	}

	if err := tx.InsertCase(ctx, c); err != nil {
		return err
	}

	var link *domain.UacQidLink

	if property.QuestionnaireID != "" {
		existing, linkErr := tx.LinkByQID(ctx, property.QuestionnaireID)
		if linkErr != nil {
			if errors.Is(linkErr, store.ErrNotFound) {
				return lookupf("no uac/qid link for listed qid %s", property.QuestionnaireID)
			}

			return linkErr
		}

		existing.CaseID = &c.ID
		existing.CCSCase = true

		if err := tx.UpdateLink(ctx, existing); err != nil {
			return err
		}

		link = existing

		out.CaseCreated(c, "")
	} else {
		issued, issueErr := issueLink(ctx, tx, qidTypeCCS, c)
		if issueErr != nil {
			return issueErr
		}

		link = issued

		out.CaseCreated(c, messaging.InstructionCreate)
	}

	row := newLedgerRow(envelope.Event.Type, envelope.Event, raw,
		descriptionCCSAddressListed, &c.ID, &link.ID)
	if err := tx.AppendLedger(ctx, row); err != nil {
		return err
	}

	out.UacUpdated(link)

	return nil
}
