package handler_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/censusrm/caseprocessor/internal/domain"
	"github.com/censusrm/caseprocessor/internal/handler"
	"github.com/censusrm/caseprocessor/internal/messaging"
)

func Test_Router_RejectsUnexpectedEventType_CommittingNothing(t *testing.T) {
	f := newFixture(t)

	envelope := newEnvelope(domain.ResponseReceived, messaging.Payload{
		Response: &messaging.Response{QuestionnaireID: mustQid(t, 1, 1)},
	})
	// Declare a type no handler is registered for.
	envelope.Event.Type = domain.CaseCreated
	envelope.Payload = messaging.Payload{CollectionCase: &messaging.CollectionCase{ID: "x"}}

	err := f.process(t, envelope)

	require.Error(t, err)
	assert.ErrorIs(t, err, handler.ErrInvariant)
	assert.Empty(t, f.store.Ledger(), "rejection must not commit its ledger row")
	assert.Empty(t, f.publisher.published)
}

func Test_Router_RejectsRegisteredKindOnTheWrongQueue(t *testing.T) {
	f := newFixture(t)
	f.router.ExpectOn("receipt-events", domain.ResponseReceived)
	f.router.ExpectOn("refusal-events", domain.RefusalReceived)

	caseID := uuid.New()
	f.store.Seed([]domain.Case{householdCase(caseID)}, nil)

	envelope := newEnvelope(domain.RefusalReceived, messaging.Payload{
		Refusal: &messaging.Refusal{
			Type:           "HARD_REFUSAL",
			CollectionCase: messaging.CollectionCaseRef{ID: caseID.String()},
		},
	})

	raw, err := messaging.Encode(envelope)
	require.NoError(t, err)

	err = f.router.Process(context.Background(), "receipt-events", raw)

	require.ErrorIs(t, err, handler.ErrInvariant)
	assert.Empty(t, f.store.Ledger())
	assert.Empty(t, f.publisher.published)
	assert.False(t, f.caseByID(t, caseID).RefusalReceived)

	// The same message on its own queue processes normally.
	err = f.router.Process(context.Background(), "refusal-events", raw)

	require.NoError(t, err)
	assert.True(t, f.caseByID(t, caseID).RefusalReceived)
}

func Test_Router_RejectsMalformedMessage(t *testing.T) {
	f := newFixture(t)

	err := f.router.Process(context.Background(), testQueue, []byte("not json at all"))

	require.Error(t, err)
	assert.ErrorIs(t, err, handler.ErrValidation)
	assert.Empty(t, f.store.Ledger())
}

func Test_Router_PublishesOnlyAfterCommit(t *testing.T) {
	f := newFixture(t)

	// A lookup failure rolls back; nothing may be published.
	envelope := newEnvelope(domain.ResponseReceived, messaging.Payload{
		Response: &messaging.Response{QuestionnaireID: mustQid(t, 1, 404)},
	})

	err := f.process(t, envelope)

	require.ErrorIs(t, err, handler.ErrLookup)
	assert.Empty(t, f.publisher.published)
}
