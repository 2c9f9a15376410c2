package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType is the closed set of business event kinds handled or recorded by
// this service.
type EventType string

// Inbound event types.
const (
	SampleLoaded            EventType = "SAMPLE_LOADED"
	ResponseReceived        EventType = "RESPONSE_RECEIVED"
	RefusalReceived         EventType = "REFUSAL_RECEIVED"
	QuestionnaireLinked     EventType = "QUESTIONNAIRE_LINKED"
	FulfilmentRequested     EventType = "FULFILMENT_REQUESTED"
	AddressNotValid         EventType = "ADDRESS_NOT_VALID"
	FieldCaseUpdated        EventType = "FIELD_CASE_UPDATED"
	NewAddressReported      EventType = "NEW_ADDRESS_REPORTED"
	UndeliveredMailReported EventType = "UNDELIVERED_MAIL_REPORTED"
	CCSAddressListed        EventType = "CCS_ADDRESS_LISTED"
)

// Outbound (derived) event types.
const (
	CaseCreated EventType = "CASE_CREATED"
	CaseUpdated EventType = "CASE_UPDATED"
	UacUpdated  EventType = "UAC_UPDATED"
)

// Ledger-only event types.
const (
	UnexpectedEventType EventType = "UNEXPECTED_EVENT_TYPE"
)

// LedgerEvent is an append-only audit row recording one processed (or
// rejected) business event. At least one of CaseID / LinkID is set. The
// business timestamp claimed by the originating event (EventDate) and the
// moment this service ingested the message (ProcessedAt) are tracked
// separately. Ledger rows are never updated or deleted by business logic.
type LedgerEvent struct {
	ID            uuid.UUID
	CaseID        *uuid.UUID
	LinkID        *uuid.UUID
	Type          EventType
	Description   string
	Channel       string
	Source        string
	TransactionID string
	EventDate     time.Time
	ProcessedAt   time.Time
	Payload       []byte
}
