package handler_test

import (
	"strconv"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/censusrm/caseprocessor/internal/domain"
	"github.com/censusrm/caseprocessor/internal/handler"
	"github.com/censusrm/caseprocessor/internal/messaging"
)

func Test_Undelivered_ResolvedByQidLogsAgainstLink(t *testing.T) {
	f := newFixture(t)

	caseID := uuid.New()
	qid := mustQid(t, 1, 600)
	linkID := uuid.New()
	f.store.Seed(
		[]domain.Case{householdCase(caseID)},
		[]domain.UacQidLink{{ID: linkID, QID: qid, UAC: "testuac", CaseID: &caseID, Active: true}},
	)

	err := f.process(t, newEnvelope(domain.UndeliveredMailReported, messaging.Payload{
		FulfilmentInformation: &messaging.FulfilmentInformation{QuestionnaireID: qid},
	}))
	require.NoError(t, err)

	c := f.caseByID(t, caseID)
	assert.True(t, c.UndeliveredAsAddressed)

	ledger := f.store.Ledger()
	require.Len(t, ledger, 1)
	require.NotNil(t, ledger[0].LinkID)
	assert.Equal(t, linkID, *ledger[0].LinkID)
}

func Test_Undelivered_ResolvedByCaseRefLogsAgainstCase(t *testing.T) {
	f := newFixture(t)

	caseID := uuid.New()
	c := householdCase(caseID)
	f.store.Seed([]domain.Case{c}, nil)

	err := f.process(t, newEnvelope(domain.UndeliveredMailReported, messaging.Payload{
		FulfilmentInformation: &messaging.FulfilmentInformation{
			CaseRef: strconv.FormatInt(c.CaseRef, 10),
		},
	}))
	require.NoError(t, err)

	updated := f.caseByID(t, caseID)
	assert.True(t, updated.UndeliveredAsAddressed)

	ledger := f.store.Ledger()
	require.Len(t, ledger, 1)
	assert.Nil(t, ledger[0].LinkID)
	require.NotNil(t, ledger[0].CaseID)
	assert.Equal(t, caseID, *ledger[0].CaseID)
}

func Test_Undelivered_WithoutQidOrCaseRefFailsValidation(t *testing.T) {
	f := newFixture(t)

	err := f.process(t, newEnvelope(domain.UndeliveredMailReported, messaging.Payload{
		FulfilmentInformation: &messaging.FulfilmentInformation{},
	}))

	require.ErrorIs(t, err, handler.ErrValidation)
}

func Test_InvalidAddress_FlagsCase(t *testing.T) {
	f := newFixture(t)

	caseID := uuid.New()
	f.store.Seed([]domain.Case{householdCase(caseID)}, nil)

	err := f.process(t, newEnvelope(domain.AddressNotValid, messaging.Payload{
		InvalidAddress: &messaging.InvalidAddress{
			Reason:         "DEMOLISHED",
			CollectionCase: messaging.CollectionCaseRef{ID: caseID.String()},
		},
	}))
	require.NoError(t, err)

	c := f.caseByID(t, caseID)
	assert.True(t, c.AddressInvalid)

	require.Len(t, f.store.Ledger(), 1)
	assert.Contains(t, f.store.Ledger()[0].Description, "DEMOLISHED")
	assert.Len(t, f.publisher.byStream(messaging.StreamCaseUpdated), 1)
}
