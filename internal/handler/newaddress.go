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

const descriptionNewAddressReported = "New Address reported"

// NewAddressHandler applies NEW_ADDRESS_REPORTED events: it mints a skeleton
// case from the minimal mandatory fields. The full address detail arrives
// later and enriches the case.
type NewAddressHandler struct {
	caseRefs *ident.CaseRefGenerator
	logger   *zap.Logger
}

// NewNewAddressHandler creates the new-address handler.
func NewNewAddressHandler(caseRefs *ident.CaseRefGenerator, logger *zap.Logger) *NewAddressHandler {
	return &NewAddressHandler{caseRefs: caseRefs, logger: logger}
}

// Handle processes one new-address event. All mandatory-field checks happen
// before any write, so a validation failure persists nothing.
func (h *NewAddressHandler) Handle(
	ctx context.Context,
	tx store.Tx,
	envelope *messaging.Envelope,
	raw []byte,
	out *Outbox,
) error {
	collectionCase := envelope.Payload.NewAddress.CollectionCase

	caseID, parseErr := uuid.Parse(collectionCase.ID)
	if parseErr != nil {
		return validationf("new address carries an invalid case id %q", collectionCase.ID)
	}

	address := collectionCase.Address

	if address.AddressType == "" {
		return validationf("new address is missing its address type")
	}

	if address.AddressLevel == "" {
		return validationf("new address is missing its address level")
	}

	if address.Region == "" {
		return validationf("new address is missing its region")
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
		CeExpectedCapacity:   collectionCase.CeExpectedCapacity,
		Skeleton:             true,
	}

	if err := tx.InsertCase(ctx, c); err != nil {
		return err
	}

	row := newLedgerRow(envelope.Event.Type, envelope.Event, raw,
		descriptionNewAddressReported, &c.ID, nil)
	if err := tx.AppendLedger(ctx, row); err != nil {
		return err
	}

	out.CaseCreated(c, "")

	return nil
}
