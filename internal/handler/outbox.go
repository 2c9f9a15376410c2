package handler

import (
	"strconv"
	"time"

	"github.com/censusrm/caseprocessor/internal/domain"
	"github.com/censusrm/caseprocessor/internal/messaging"
)

const outboundChannel = "RM"

// Outbound is one derived event waiting to be published.
type Outbound struct {
	Stream   string
	Envelope *messaging.Envelope
}

// Outbox buffers derived events inside a transaction scope. Handlers record
// emissions here; the router publishes the buffered envelopes only after the
// transaction has committed, so a rolled-back transaction emits nothing.
type Outbox struct {
	source  string
	cause   messaging.EventInfo
	pending []Outbound
}

// NewOutbox creates an outbox for one inbound event. Outbound envelopes carry
// the cause's transaction id so downstream consumers can correlate them.
func NewOutbox(source string, cause messaging.EventInfo) *Outbox {
	return &Outbox{source: source, cause: cause}
}

// CaseCreated buffers a case-created emission. A non-empty instruction rides
// on the metadata block for downstream field operations.
func (o *Outbox) CaseCreated(c *domain.Case, instruction string) {
	o.add(messaging.StreamCaseCreated, domain.CaseCreated, messaging.Payload{
		CollectionCase: o.collectionCase(c, instruction),
	})
}

// CaseUpdated buffers a case-updated emission.
func (o *Outbox) CaseUpdated(c *domain.Case, instruction string) {
	o.add(messaging.StreamCaseUpdated, domain.CaseUpdated, messaging.Payload{
		CollectionCase: o.collectionCase(c, instruction),
	})
}

// UacUpdated buffers a uac-updated emission.
func (o *Outbox) UacUpdated(l *domain.UacQidLink) {
	caseID := ""
	if l.CaseID != nil {
		caseID = l.CaseID.String()
	}

	o.add(messaging.StreamUacUpdated, domain.UacUpdated, messaging.Payload{
		UAC: &messaging.UAC{
			QuestionnaireID: l.QID,
			UAC:             l.UAC,
			CaseID:          caseID,
			Active:          l.Active,
			Unreceipted:     l.Unreceipted,
			CCSCase:         l.CCSCase,
		},
	})
}

// Drain returns the buffered emissions and empties the outbox.
func (o *Outbox) Drain() []Outbound {
	pending := o.pending
	o.pending = nil

	return pending
}

func (o *Outbox) add(stream string, eventType domain.EventType, payload messaging.Payload) {
	o.pending = append(o.pending, Outbound{
		Stream: stream,
		Envelope: &messaging.Envelope{
			Event: messaging.EventInfo{
				Type:          eventType,
				DateTime:      time.Now().UTC(),
				Channel:       outboundChannel,
				Source:        o.source,
				TransactionID: o.cause.TransactionID,
			},
			Payload: payload,
		},
	})
}

func (o *Outbox) collectionCase(c *domain.Case, instruction string) *messaging.CollectionCase {
	var metadata *messaging.Metadata
	if instruction != "" {
		metadata = &messaging.Metadata{
			CauseEventType:   o.cause.Type,
			FieldInstruction: instruction,
		}
	}

	return &messaging.CollectionCase{
		ID:                   c.ID.String(),
		CaseRef:              strconv.FormatInt(c.CaseRef, 10),
		CaseType:             c.CaseType,
		Survey:               c.Survey,
		CollectionExerciseID: c.CollectionExerciseID,
		ActionPlanID:         c.ActionPlanID,
		TreatmentCode:        c.TreatmentCode,
		Address: messaging.Address{
			AddressLine1:     c.AddressLine1,
			AddressLine2:     c.AddressLine2,
			AddressLine3:     c.AddressLine3,
			TownName:         c.TownName,
			Postcode:         c.Postcode,
			Region:           c.Region,
			AddressType:      c.AddressType,
			AddressLevel:     c.AddressLevel,
			EstabType:        c.EstabType,
			OrganisationName: c.OrganisationName,
			Uprn:             c.Uprn,
		},
		FieldCoordinatorID:     c.FieldCoordinatorID,
		FieldOfficerID:         c.FieldOfficerID,
		CeExpectedCapacity:     c.CeExpectedCapacity,
		CeActualResponses:      c.CeActualResponses,
		ReceiptReceived:        c.ReceiptReceived,
		RefusalReceived:        c.RefusalReceived,
		AddressInvalid:         c.AddressInvalid,
		UndeliveredAsAddressed: c.UndeliveredAsAddressed,
		HandDelivery:           c.HandDelivery,
		CCSCase:                c.CCSCase,
		Skeleton:               c.Skeleton,
		Metadata:               metadata,
	}
}
