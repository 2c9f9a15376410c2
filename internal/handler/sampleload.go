package handler

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/censusrm/caseprocessor/internal/domain"
	"github.com/censusrm/caseprocessor/internal/ident"
	"github.com/censusrm/caseprocessor/internal/messaging"
	"github.com/censusrm/caseprocessor/internal/store"
)

const descriptionSampleLoaded = "Sample loaded"

// SampleLoadHandler applies SAMPLE_LOADED events from bulk ingestion: a fully
// populated case is created, its case ref stamped, and an initial uac/qid
// link issued so the first paper or online response can be receipted.
type SampleLoadHandler struct {
	caseRefs *ident.CaseRefGenerator
	logger   *zap.Logger
}

// NewSampleLoadHandler creates the sample-loaded handler.
func NewSampleLoadHandler(caseRefs *ident.CaseRefGenerator, logger *zap.Logger) *SampleLoadHandler {
	return &SampleLoadHandler{caseRefs: caseRefs, logger: logger}
}

// Handle processes one sample unit.
func (h *SampleLoadHandler) Handle(
	ctx context.Context,
	tx store.Tx,
	envelope *messaging.Envelope,
	raw []byte,
	out *Outbox,
) error {
	collectionCase := envelope.Payload.CollectionCase

	caseID, parseErr := uuid.Parse(collectionCase.ID)
	if parseErr != nil {
		return validationf("sample carries an invalid case id %q", collectionCase.ID)
	}

	address := collectionCase.Address

	if address.AddressLine1 == "" {
		return validationf("sample is missing its first address line")
	}

	if collectionCase.TreatmentCode == "" {
		return validationf("sample is missing its treatment code")
	}

	sequenceNumber, err := tx.NextCaseSequence(ctx)
	if err != nil {
		return err
	}

	caseRef, err := h.caseRefs.CaseRef(sequenceNumber)
	if err != nil {
		return err
	}

	caseType := collectionCase.CaseType
	if caseType == "" {
		caseType = address.AddressType
	}

	survey := collectionCase.Survey
	if survey == "" {
		survey = domain.SurveyCensus
	}

	c := &domain.Case{
		ID:                   caseID,
		SequenceNumber:       sequenceNumber,
		CaseRef:              caseRef,
		CaseType:             caseType,
		Survey:               survey,
		CollectionExerciseID: collectionCase.CollectionExerciseID,
		ActionPlanID:         collectionCase.ActionPlanID,
		TreatmentCode:        collectionCase.TreatmentCode,
		AddressLine1:         address.AddressLine1,
		AddressLine2:         address.AddressLine2,
		AddressLine3:         address.AddressLine3,
		TownName:             address.TownName,
		Postcode:             address.Postcode,
		Region:               address.Region,
		AddressType:          address.AddressType,
		AddressLevel:         address.AddressLevel,
		EstabType:            address.EstabType,
		OrganisationName:     address.OrganisationName,
		Uprn:                 address.Uprn,
		FieldCoordinatorID:   collectionCase.FieldCoordinatorID,
		FieldOfficerID:       collectionCase.FieldOfficerID,
		CeExpectedCapacity:   collectionCase.CeExpectedCapacity,
		HandDelivery:         collectionCase.HandDelivery,
	}

	if err := tx.InsertCase(ctx, c); err != nil {
		return err
	}

	link, err := issueLink(ctx, tx, initialQidType(c), c)
	if err != nil {
		return err
	}

	row := newLedgerRow(envelope.Event.Type, envelope.Event, raw,
		descriptionSampleLoaded, &c.ID, &link.ID)
	if err := tx.AppendLedger(ctx, row); err != nil {
		return err
	}

	out.CaseCreated(c, messaging.InstructionCreate)
	out.UacUpdated(link)

	return nil
}
