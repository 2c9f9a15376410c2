package handler

import (
	"context"

	"github.com/google/uuid"

	"github.com/censusrm/caseprocessor/internal/domain"
	"github.com/censusrm/caseprocessor/internal/ident"
	"github.com/censusrm/caseprocessor/internal/store"
)

// deriveChildCase mints a household-individual case from a household parent:
// the address is inherited, a fresh sequence number is drawn and the case ref
// stamped from it. The child is persisted before the caller binds anything to
// it.
func deriveChildCase(
	ctx context.Context,
	tx store.Tx,
	caseRefs *ident.CaseRefGenerator,
	parent *domain.Case,
	childID uuid.UUID,
) (*domain.Case, error) {
	sequenceNumber, err := tx.NextCaseSequence(ctx)
	if err != nil {
		return nil, err
	}

	caseRef, err := caseRefs.CaseRef(sequenceNumber)
	if err != nil {
		return nil, err
	}

	child := &domain.Case{
		ID:                   childID,
		SequenceNumber:       sequenceNumber,
		CaseRef:              caseRef,
		CaseType:             domain.CaseTypeHouseholdIndividual,
		Survey:               parent.Survey,
		CollectionExerciseID: parent.CollectionExerciseID,
		ActionPlanID:         parent.ActionPlanID,
		TreatmentCode:        parent.TreatmentCode,
		AddressLine1:         parent.AddressLine1,
		AddressLine2:         parent.AddressLine2,
		AddressLine3:         parent.AddressLine3,
		TownName:             parent.TownName,
		Postcode:             parent.Postcode,
		Region:               parent.Region,
		AddressType:          parent.AddressType,
		AddressLevel:         parent.AddressLevel,
		EstabType:            parent.EstabType,
		OrganisationName:     parent.OrganisationName,
		Uprn:                 parent.Uprn,
		FieldCoordinatorID:   parent.FieldCoordinatorID,
		FieldOfficerID:       parent.FieldOfficerID,
		CCSCase:              parent.CCSCase,
	}

	if err := tx.InsertCase(ctx, child); err != nil {
		return nil, err
	}

	return child, nil
}
