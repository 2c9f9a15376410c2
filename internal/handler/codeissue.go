package handler

import (
	"context"

	"github.com/google/uuid"

	"github.com/censusrm/caseprocessor/internal/domain"
	"github.com/censusrm/caseprocessor/internal/ident"
	"github.com/censusrm/caseprocessor/internal/store"
)

// Questionnaire types issued by this service. The tranche digit is fixed for
// the current collection exercise.
const (
	qidTypeHousehold    = 1
	qidTypeIndividual   = 21
	qidTypeCeIndividual = 31
	qidTypeCCS          = 71

	qidTranche = 1
)

// initialQidType picks the questionnaire type band for a case's first code.
func initialQidType(c *domain.Case) int {
	if c.CCSCase {
		return qidTypeCCS
	}

	switch c.CaseType {
	case domain.CaseTypeHouseholdIndividual:
		return qidTypeIndividual
	case domain.CaseTypeCommunal:
		return qidTypeCeIndividual
	default:
		return qidTypeHousehold
	}
}

// issueLink mints and persists a fresh uac/qid link bound to a case: the
// store allocates the embedded unique number, the access code is drawn
// independently at random. Global uniqueness of both values is enforced by
// the store's unique constraints at insert time.
func issueLink(
	ctx context.Context,
	tx store.Tx,
	questionnaireType int,
	c *domain.Case,
) (*domain.UacQidLink, error) {
	uniqueNumber, err := tx.NextUniqueQidNumber(ctx)
	if err != nil {
		return nil, err
	}

	qid, err := ident.BuildQid(questionnaireType, qidTranche, uniqueNumber)
	if err != nil {
		return nil, err
	}

	accessCode, err := ident.NewAccessCode()
	if err != nil {
		return nil, err
	}

	link := &domain.UacQidLink{
		ID:           uuid.New(),
		QID:          qid,
		UAC:          accessCode,
		UniqueNumber: uniqueNumber,
		CaseID:       &c.ID,
		Active:       true,
		CCSCase:      c.CCSCase,
	}

	if err := tx.InsertLink(ctx, link); err != nil {
		return nil, err
	}

	return link, nil
}
