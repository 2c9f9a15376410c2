package handler_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/censusrm/caseprocessor/internal/domain"
	"github.com/censusrm/caseprocessor/internal/messaging"
)

func Test_Refusal_MarksCaseRefused(t *testing.T) {
	f := newFixture(t)

	caseID := uuid.New()
	f.store.Seed([]domain.Case{householdCase(caseID)}, nil)

	err := f.process(t, newEnvelope(domain.RefusalReceived, messaging.Payload{
		Refusal: &messaging.Refusal{
			Type:           "HARD_REFUSAL",
			CollectionCase: messaging.CollectionCaseRef{ID: caseID.String()},
		},
	}))
	require.NoError(t, err)

	c := f.caseByID(t, caseID)
	assert.True(t, c.RefusalReceived)

	require.Len(t, f.store.Ledger(), 1)
	assert.Equal(t, "Refusal Received", f.store.Ledger()[0].Description)
	assert.Len(t, f.publisher.byStream(messaging.StreamCaseUpdated), 1)
}

func Test_Refusal_AgainstCCSCaseOnlyAppendsLedgerRow(t *testing.T) {
	f := newFixture(t)

	caseID := uuid.New()
	ccs := householdCase(caseID)
	ccs.CCSCase = true
	ccs.Survey = domain.SurveyCCS
	f.store.Seed([]domain.Case{ccs}, nil)

	err := f.process(t, newEnvelope(domain.RefusalReceived, messaging.Payload{
		Refusal: &messaging.Refusal{
			Type:           "HARD_REFUSAL",
			CollectionCase: messaging.CollectionCaseRef{ID: caseID.String()},
		},
	}))
	require.NoError(t, err)

	require.Len(t, f.store.Ledger(), 1)

	c := f.caseByID(t, caseID)
	assert.False(t, c.RefusalReceived, "ccs case must not be persisted")
	assert.Empty(t, f.publisher.published, "ccs case must not be emitted")
}
