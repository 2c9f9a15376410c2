package handler_test

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/censusrm/caseprocessor/internal/domain"
	"github.com/censusrm/caseprocessor/internal/messaging"
)

func Test_CeReceipting_CountsConcurrentResponsesExactly(t *testing.T) {
	const half = 3 // 3 receipts + 3 linking events, capacity 6

	f := newFixture(t)

	caseID := uuid.New()
	ce := communalCase(caseID, 2*half, domain.AddressLevelUnit)

	var links []domain.UacQidLink

	receiptQids := make([]string, 0, half)
	linkedQids := make([]string, 0, half)

	for i := 0; i < half; i++ {
		qid := mustQid(t, 31, int64(100+i))
		receiptQids = append(receiptQids, qid)
		links = append(links, domain.UacQidLink{
			ID: uuid.New(), QID: qid, UAC: "testuac", CaseID: &caseID, Active: true,
		})
	}

	for i := 0; i < half; i++ {
		// These responses arrived before linking: the link is inactive and
		// unbound, so the linking event itself triggers the increment.
		qid := mustQid(t, 31, int64(200+i))
		linkedQids = append(linkedQids, qid)
		links = append(links, domain.UacQidLink{
			ID: uuid.New(), QID: qid, UAC: "testuac", Active: false,
		})
	}

	f.store.Seed([]domain.Case{ce}, links)

	var wg sync.WaitGroup

	for _, qid := range receiptQids {
		wg.Add(1)

		go func(qid string) {
			defer wg.Done()

			err := f.process(t, newEnvelope(domain.ResponseReceived, messaging.Payload{
				Response: &messaging.Response{QuestionnaireID: qid},
			}))
			assert.NoError(t, err)
		}(qid)
	}

	for _, qid := range linkedQids {
		wg.Add(1)

		go func(qid string) {
			defer wg.Done()

			err := f.process(t, newEnvelope(domain.QuestionnaireLinked, messaging.Payload{
				Response: &messaging.Response{QuestionnaireID: qid, CaseID: caseID.String()},
			}))
			assert.NoError(t, err)
		}(qid)
	}

	wg.Wait()

	c := f.caseByID(t, caseID)
	assert.Equal(t, 2*half, c.CeActualResponses, "no increment may be lost or duplicated")
	assert.True(t, c.ReceiptReceived, "the threshold response must receipt the case")
}

func Test_CeReceipting_EstablishmentLevelNeverReceipts(t *testing.T) {
	f := newFixture(t)

	caseID := uuid.New()
	ce := communalCase(caseID, 1, domain.AddressLevelEstablishment)

	qid := mustQid(t, 31, 300)
	f.store.Seed(
		[]domain.Case{ce},
		[]domain.UacQidLink{{ID: uuid.New(), QID: qid, UAC: "testuac", CaseID: &caseID, Active: true}},
	)

	err := f.process(t, newEnvelope(domain.ResponseReceived, messaging.Payload{
		Response: &messaging.Response{QuestionnaireID: qid},
	}))
	require.NoError(t, err)

	c := f.caseByID(t, caseID)
	assert.Equal(t, 1, c.CeActualResponses)
	assert.False(t, c.ReceiptReceived, "an establishment-level aggregate is never receipted")
}

func Test_CeReceipting_ContinuationQidNeverReceipts(t *testing.T) {
	f := newFixture(t)

	caseID := uuid.New()
	qid := mustQid(t, 11, 301)
	f.store.Seed(
		[]domain.Case{householdCase(caseID)},
		[]domain.UacQidLink{{ID: uuid.New(), QID: qid, UAC: "testuac", CaseID: &caseID, Active: true}},
	)

	err := f.process(t, newEnvelope(domain.ResponseReceived, messaging.Payload{
		Response: &messaging.Response{QuestionnaireID: qid},
	}))
	require.NoError(t, err)

	c := f.caseByID(t, caseID)
	assert.False(t, c.ReceiptReceived)
	assert.Zero(t, c.CeActualResponses)

	// The receipt is still audited and the code still deactivated.
	assert.Len(t, f.store.Ledger(), 1)
	assert.False(t, f.linkByQid(t, qid).Active)
}

func Test_CeReceipting_AlreadyReceiptedCaseIsUntouched(t *testing.T) {
	f := newFixture(t)

	caseID := uuid.New()
	ce := communalCase(caseID, 5, domain.AddressLevelUnit)
	ce.ReceiptReceived = true
	ce.CeActualResponses = 5

	qid := mustQid(t, 31, 302)
	f.store.Seed(
		[]domain.Case{ce},
		[]domain.UacQidLink{{ID: uuid.New(), QID: qid, UAC: "testuac", CaseID: &caseID, Active: true}},
	)

	err := f.process(t, newEnvelope(domain.ResponseReceived, messaging.Payload{
		Response: &messaging.Response{QuestionnaireID: qid},
	}))
	require.NoError(t, err)

	c := f.caseByID(t, caseID)
	assert.Equal(t, 5, c.CeActualResponses, "a receipted case takes no further increments")
}
