package handler_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/censusrm/caseprocessor/internal/domain"
	"github.com/censusrm/caseprocessor/internal/handler"
	"github.com/censusrm/caseprocessor/internal/ident"
	"github.com/censusrm/caseprocessor/internal/messaging"
	"github.com/censusrm/caseprocessor/internal/metrics"
	"github.com/censusrm/caseprocessor/internal/store/memstore"
)

const testQueue = "test-queue"

// capturePublisher records outbound envelopes instead of sending them.
type capturePublisher struct {
	mu        sync.Mutex
	published []captured
}

type captured struct {
	stream   string
	envelope *messaging.Envelope
}

func (p *capturePublisher) Publish(_ context.Context, stream string, envelope *messaging.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.published = append(p.published, captured{stream: stream, envelope: envelope})

	return nil
}

func (p *capturePublisher) byStream(stream string) []*messaging.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []*messaging.Envelope

	for _, c := range p.published {
		if c.stream == stream {
			out = append(out, c.envelope)
		}
	}

	return out
}

type fixture struct {
	store     *memstore.Store
	publisher *capturePublisher
	router    *handler.Router
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	caseRefs, err := ident.NewCaseRefGenerator([]byte("test-key"), []byte("test-tweak"))
	require.NoError(t, err)

	st := memstore.NewStore()
	publisher := &capturePublisher{}
	logger := zap.NewNop()

	router := handler.NewRouter(st, publisher, logger, metrics.New(), "caseprocessor-test")
	handler.RegisterAll(router, caseRefs, logger)

	return &fixture{store: st, publisher: publisher, router: router}
}

func (f *fixture) process(t *testing.T, envelope *messaging.Envelope) error {
	t.Helper()

	raw, err := messaging.Encode(envelope)
	require.NoError(t, err)

	return f.router.Process(context.Background(), testQueue, raw)
}

func (f *fixture) caseByID(t *testing.T, id uuid.UUID) domain.Case {
	t.Helper()

	for _, c := range f.store.Cases() {
		if c.ID == id {
			return c
		}
	}

	t.Fatalf("case %s not found", id)

	return domain.Case{}
}

func (f *fixture) linkByQid(t *testing.T, qid string) domain.UacQidLink {
	t.Helper()

	for _, l := range f.store.Links() {
		if l.QID == qid {
			return l
		}
	}

	t.Fatalf("link for qid %s not found", qid)

	return domain.UacQidLink{}
}

func newEnvelope(eventType domain.EventType, payload messaging.Payload) *messaging.Envelope {
	return &messaging.Envelope{
		Event: messaging.EventInfo{
			Type:          eventType,
			DateTime:      time.Date(2021, 3, 21, 9, 30, 0, 0, time.UTC),
			Channel:       "EQ",
			Source:        "RH",
			TransactionID: uuid.NewString(),
		},
		Payload: payload,
	}
}

func householdCase(id uuid.UUID) domain.Case {
	return domain.Case{
		ID:             id,
		SequenceNumber: 1,
		CaseRef:        12_345_678,
		CaseType:       domain.CaseTypeHousehold,
		Survey:         domain.SurveyCensus,
		AddressLine1:   "1 Test Street",
		TownName:       "Testtown",
		Postcode:       "TT1 1TT",
		Region:         "E",
		AddressType:    domain.CaseTypeHousehold,
		AddressLevel:   domain.AddressLevelUnit,
	}
}

func communalCase(id uuid.UUID, expectedCapacity int, addressLevel string) domain.Case {
	c := householdCase(id)
	c.CaseType = domain.CaseTypeCommunal
	c.AddressType = domain.CaseTypeCommunal
	c.AddressLevel = addressLevel
	c.CeExpectedCapacity = &expectedCapacity

	return c
}

func mustQid(t *testing.T, questionnaireType int, uniqueNumber int64) string {
	t.Helper()

	qid, err := ident.BuildQid(questionnaireType, 1, uniqueNumber)
	require.NoError(t, err)

	return qid
}
