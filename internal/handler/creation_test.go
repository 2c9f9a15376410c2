package handler_test

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/censusrm/caseprocessor/internal/domain"
	"github.com/censusrm/caseprocessor/internal/handler"
	"github.com/censusrm/caseprocessor/internal/messaging"
)

func Test_NewAddress_MintsSkeletonCase(t *testing.T) {
	f := newFixture(t)

	caseID := uuid.New()

	err := f.process(t, newEnvelope(domain.NewAddressReported, messaging.Payload{
		NewAddress: &messaging.NewAddress{
			CollectionCase: messaging.CollectionCase{
				ID: caseID.String(),
				Address: messaging.Address{
					AddressLine1: "3 Vacant Lot",
					AddressType:  domain.CaseTypeHousehold,
					AddressLevel: domain.AddressLevelUnit,
					Region:       "W",
				},
			},
		},
	}))
	require.NoError(t, err)

	c := f.caseByID(t, caseID)
	assert.True(t, c.Skeleton)
	assert.Equal(t, domain.CaseTypeHousehold, c.CaseType)
	assert.GreaterOrEqual(t, c.CaseRef, int64(10_000_000))
	assert.LessOrEqual(t, c.CaseRef, int64(99_999_999))
	assert.NotZero(t, c.SequenceNumber)

	require.Len(t, f.store.Ledger(), 1)
	assert.Len(t, f.publisher.byStream(messaging.StreamCaseCreated), 1)
}

func Test_NewAddress_MissingMandatoryFieldPersistsNothing(t *testing.T) {
	f := newFixture(t)

	err := f.process(t, newEnvelope(domain.NewAddressReported, messaging.Payload{
		NewAddress: &messaging.NewAddress{
			CollectionCase: messaging.CollectionCase{
				ID: uuid.NewString(),
				Address: messaging.Address{
					// addressType deliberately missing
					AddressLevel: domain.AddressLevelUnit,
					Region:       "W",
				},
			},
		},
	}))

	require.ErrorIs(t, err, handler.ErrValidation)
	assert.Empty(t, f.store.Cases())
	assert.Empty(t, f.store.Ledger())
	assert.Empty(t, f.publisher.published)
}

func Test_SampleLoaded_CreatesCaseWithInitialCode(t *testing.T) {
	f := newFixture(t)

	caseID := uuid.New()

	err := f.process(t, newEnvelope(domain.SampleLoaded, messaging.Payload{
		CollectionCase: &messaging.CollectionCase{
			ID:            caseID.String(),
			CaseType:      domain.CaseTypeHousehold,
			TreatmentCode: "HH_LF2R1E",
			Address: messaging.Address{
				AddressLine1: "12 Sample Street",
				TownName:     "Sampleton",
				Postcode:     "SA1 1MP",
				Region:       "E",
				AddressType:  domain.CaseTypeHousehold,
				AddressLevel: domain.AddressLevelUnit,
			},
		},
	}))
	require.NoError(t, err)

	c := f.caseByID(t, caseID)
	assert.Equal(t, "HH_LF2R1E", c.TreatmentCode)
	assert.False(t, c.Skeleton)
	assert.GreaterOrEqual(t, c.CaseRef, int64(10_000_000))

	links := f.store.Links()
	require.Len(t, links, 1)
	assert.Equal(t, caseID, *links[0].CaseID)
	assert.True(t, links[0].Active)
	assert.True(t, strings.HasPrefix(links[0].QID, "01"), "household sample gets a household qid")
	assert.Len(t, links[0].UAC, 16)

	created := f.publisher.byStream(messaging.StreamCaseCreated)
	require.Len(t, created, 1)
	require.NotNil(t, created[0].Payload.CollectionCase.Metadata)
	assert.Equal(t, messaging.InstructionCreate, created[0].Payload.CollectionCase.Metadata.FieldInstruction)

	assert.Len(t, f.publisher.byStream(messaging.StreamUacUpdated), 1)
}

func Test_CCSProperty_WithoutQidIssuesFreshCCSCode(t *testing.T) {
	f := newFixture(t)

	caseID := uuid.New()

	err := f.process(t, newEnvelope(domain.CCSAddressListed, messaging.Payload{
		CCSProperty: &messaging.CCSProperty{
			CollectionCase: messaging.CollectionCaseRef{ID: caseID.String()},
			SampleUnit: messaging.Address{
				AddressLine1: "7 Listed Lane",
				AddressType:  domain.CaseTypeHousehold,
				AddressLevel: domain.AddressLevelUnit,
				Region:       "E",
			},
		},
	}))
	require.NoError(t, err)

	c := f.caseByID(t, caseID)
	assert.True(t, c.CCSCase)
	assert.Equal(t, domain.SurveyCCS, c.Survey)

	links := f.store.Links()
	require.Len(t, links, 1)
	assert.True(t, links[0].CCSCase)
	assert.True(t, strings.HasPrefix(links[0].QID, "71"))

	created := f.publisher.byStream(messaging.StreamCaseCreated)
	require.Len(t, created, 1)
	require.NotNil(t, created[0].Payload.CollectionCase.Metadata)
	assert.Equal(t, messaging.InstructionCreate, created[0].Payload.CollectionCase.Metadata.FieldInstruction)
}

func Test_CCSProperty_WithSuppliedQidBindsExistingCode(t *testing.T) {
	f := newFixture(t)

	caseID := uuid.New()
	qid := mustQid(t, 71, 500)
	f.store.Seed(nil, []domain.UacQidLink{{ID: uuid.New(), QID: qid, UAC: "testuac", Active: true}})

	err := f.process(t, newEnvelope(domain.CCSAddressListed, messaging.Payload{
		CCSProperty: &messaging.CCSProperty{
			CollectionCase:  messaging.CollectionCaseRef{ID: caseID.String()},
			QuestionnaireID: qid,
			SampleUnit: messaging.Address{
				AddressLine1: "7 Listed Lane",
				AddressType:  domain.CaseTypeHousehold,
				AddressLevel: domain.AddressLevelUnit,
				Region:       "E",
			},
		},
	}))
	require.NoError(t, err)

	link := f.linkByQid(t, qid)
	require.NotNil(t, link.CaseID)
	assert.Equal(t, caseID, *link.CaseID)
	assert.True(t, link.CCSCase)

	created := f.publisher.byStream(messaging.StreamCaseCreated)
	require.Len(t, created, 1)
	assert.Nil(t, created[0].Payload.CollectionCase.Metadata,
		"an interviewer is already present, no field instruction")
}

func Test_CCSProperty_UnknownSuppliedQidFailsLookup(t *testing.T) {
	f := newFixture(t)

	err := f.process(t, newEnvelope(domain.CCSAddressListed, messaging.Payload{
		CCSProperty: &messaging.CCSProperty{
			CollectionCase:  messaging.CollectionCaseRef{ID: uuid.NewString()},
			QuestionnaireID: mustQid(t, 71, 501),
			SampleUnit: messaging.Address{
				AddressLine1: "7 Listed Lane",
				AddressType:  domain.CaseTypeHousehold,
			},
		},
	}))

	require.ErrorIs(t, err, handler.ErrLookup)
	assert.Empty(t, f.store.Cases(), "the minted case must roll back with the failed lookup")
}

func Test_Fulfilment_IndividualCodeDerivesChildCase(t *testing.T) {
	f := newFixture(t)

	parentID := uuid.New()
	f.store.Seed([]domain.Case{householdCase(parentID)}, nil)

	err := f.process(t, newEnvelope(domain.FulfilmentRequested, messaging.Payload{
		FulfilmentRequest: &messaging.FulfilmentRequest{
			CaseID:         parentID.String(),
			FulfilmentCode: "P_OR_I1",
		},
	}))
	require.NoError(t, err)

	require.Len(t, f.store.Cases(), 2)

	links := f.store.Links()
	require.Len(t, links, 1)
	assert.True(t, strings.HasPrefix(links[0].QID, "21"), "individual fulfilment gets an individual qid")

	child := f.caseByID(t, *links[0].CaseID)
	assert.Equal(t, domain.CaseTypeHouseholdIndividual, child.CaseType)
	assert.NotEqual(t, parentID, child.ID)

	assert.Len(t, f.publisher.byStream(messaging.StreamCaseCreated), 1)
	assert.Len(t, f.publisher.byStream(messaging.StreamUacUpdated), 1)
}

func Test_Fulfilment_ReplacementCodeBindsToSameCase(t *testing.T) {
	f := newFixture(t)

	caseID := uuid.New()
	f.store.Seed([]domain.Case{householdCase(caseID)}, nil)

	err := f.process(t, newEnvelope(domain.FulfilmentRequested, messaging.Payload{
		FulfilmentRequest: &messaging.FulfilmentRequest{
			CaseID:         caseID.String(),
			FulfilmentCode: "P_LP_HL1",
		},
	}))
	require.NoError(t, err)

	require.Len(t, f.store.Cases(), 1)

	links := f.store.Links()
	require.Len(t, links, 1)
	assert.Equal(t, caseID, *links[0].CaseID)

	assert.Empty(t, f.publisher.byStream(messaging.StreamCaseCreated))
	assert.Len(t, f.publisher.byStream(messaging.StreamUacUpdated), 1)
}
