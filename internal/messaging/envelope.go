package messaging

import (
	"errors"
	"fmt"
	"time"

	"github.com/censusrm/caseprocessor/internal/domain"
)

var (
	// ErrMissingEventType is returned when an envelope declares no event type.
	ErrMissingEventType = errors.New("envelope is missing its event type")

	// ErrPayloadMismatch is returned when the payload variant matching the
	// declared event type is absent.
	ErrPayloadMismatch = errors.New("payload does not match the declared event type")
)

// Field instructions carried on outbound metadata, directed at the downstream
// field-operations service.
const (
	InstructionCreate = "CREATE"
	InstructionUpdate = "UPDATE"
	InstructionClose  = "CLOSE"
	InstructionCancel = "CANCEL"
)

// Envelope is the wire shape shared by every inbound and outbound message.
type Envelope struct {
	Event   EventInfo `json:"event"`
	Payload Payload   `json:"payload"`
}

// EventInfo describes the business event carried by an envelope. DateTime is
// the business timestamp claimed by the originator, not the processing time.
type EventInfo struct {
	Type          domain.EventType `json:"type"`
	DateTime      time.Time        `json:"dateTime"`
	Channel       string           `json:"channel"`
	Source        string           `json:"source"`
	TransactionID string           `json:"transactionId"`
}

// Payload is a tagged union keyed by EventInfo.Type. Exactly one variant is
// populated; Validate enforces that the variant matching the declared type is
// present, and handlers consult only that variant.
type Payload struct {
	Response              *Response              `json:"response,omitempty"`
	Refusal               *Refusal               `json:"refusal,omitempty"`
	UAC                   *UAC                   `json:"uac,omitempty"`
	CollectionCase        *CollectionCase        `json:"collectionCase,omitempty"`
	NewAddress            *NewAddress            `json:"newAddress,omitempty"`
	InvalidAddress        *InvalidAddress        `json:"invalidAddress,omitempty"`
	FulfilmentRequest     *FulfilmentRequest     `json:"fulfilmentRequest,omitempty"`
	FulfilmentInformation *FulfilmentInformation `json:"fulfilmentInformation,omitempty"`
	CCSProperty           *CCSProperty           `json:"ccsProperty,omitempty"`
	Metadata              *Metadata              `json:"metadata,omitempty"`
}

// Response is carried by RESPONSE_RECEIVED and QUESTIONNAIRE_LINKED events.
type Response struct {
	QuestionnaireID string `json:"questionnaireId"`
	CaseID          string `json:"caseId,omitempty"`
	Unreceipt       bool   `json:"unreceipt,omitempty"`
}

// Refusal is carried by REFUSAL_RECEIVED events.
type Refusal struct {
	Type           string            `json:"type"`
	CollectionCase CollectionCaseRef `json:"collectionCase"`
}

// UAC is the outbound uac-updated payload.
type UAC struct {
	QuestionnaireID string `json:"questionnaireId"`
	UAC             string `json:"uac,omitempty"`
	CaseID          string `json:"caseId,omitempty"`
	Active          bool   `json:"active"`
	Unreceipted     bool   `json:"unreceipted,omitempty"`
	CCSCase         bool   `json:"ccsCase,omitempty"`
}

// CollectionCaseRef identifies a case by id only.
type CollectionCaseRef struct {
	ID string `json:"id"`
}

// Address is the nested address block of a CollectionCase.
type Address struct {
	AddressLine1     string `json:"addressLine1"`
	AddressLine2     string `json:"addressLine2,omitempty"`
	AddressLine3     string `json:"addressLine3,omitempty"`
	TownName         string `json:"townName,omitempty"`
	Postcode         string `json:"postcode,omitempty"`
	Region           string `json:"region,omitempty"`
	AddressType      string `json:"addressType,omitempty"`
	AddressLevel     string `json:"addressLevel,omitempty"`
	EstabType        string `json:"estabType,omitempty"`
	OrganisationName string `json:"organisationName,omitempty"`
	Uprn             string `json:"uprn,omitempty"`
}

// CollectionCase is carried by SAMPLE_LOADED and FIELD_CASE_UPDATED events
// inbound, and by case-created / case-updated events outbound.
type CollectionCase struct {
	ID                     string    `json:"id"`
	CaseRef                string    `json:"caseRef,omitempty"`
	CaseType               string    `json:"caseType,omitempty"`
	Survey                 string    `json:"survey,omitempty"`
	CollectionExerciseID   string    `json:"collectionExerciseId,omitempty"`
	ActionPlanID           string    `json:"actionPlanId,omitempty"`
	TreatmentCode          string    `json:"treatmentCode,omitempty"`
	Address                Address   `json:"address"`
	FieldCoordinatorID     string    `json:"fieldCoordinatorId,omitempty"`
	FieldOfficerID         string    `json:"fieldOfficerId,omitempty"`
	CeExpectedCapacity     *int      `json:"ceExpectedCapacity,omitempty"`
	CeActualResponses      int       `json:"ceActualResponses,omitempty"`
	ReceiptReceived        bool      `json:"receiptReceived,omitempty"`
	RefusalReceived        bool      `json:"refusalReceived,omitempty"`
	AddressInvalid         bool      `json:"addressInvalid,omitempty"`
	UndeliveredAsAddressed bool      `json:"undeliveredAsAddressed,omitempty"`
	HandDelivery           bool      `json:"handDelivery,omitempty"`
	CCSCase                bool      `json:"ccsCase,omitempty"`
	Skeleton               bool      `json:"skeleton,omitempty"`
	Metadata               *Metadata `json:"metadata,omitempty"`
}

// NewAddress is carried by NEW_ADDRESS_REPORTED events.
type NewAddress struct {
	SourceCaseID   string         `json:"sourceCaseId,omitempty"`
	CollectionCase CollectionCase `json:"collectionCase"`
}

// InvalidAddress is carried by ADDRESS_NOT_VALID events.
type InvalidAddress struct {
	Reason         string            `json:"reason,omitempty"`
	CollectionCase CollectionCaseRef `json:"collectionCase"`
}

// FulfilmentRequest is carried by FULFILMENT_REQUESTED events.
type FulfilmentRequest struct {
	CaseID           string `json:"caseId"`
	FulfilmentCode   string `json:"fulfilmentCode"`
	IndividualCaseID string `json:"individualCaseId,omitempty"`
}

// FulfilmentInformation is carried by UNDELIVERED_MAIL_REPORTED events. Either
// the questionnaire id or the case ref identifies the target.
type FulfilmentInformation struct {
	QuestionnaireID string `json:"questionnaireId,omitempty"`
	CaseRef         string `json:"caseRef,omitempty"`
	FulfilmentCode  string `json:"fulfilmentCode,omitempty"`
}

// CCSProperty is carried by CCS_ADDRESS_LISTED events.
type CCSProperty struct {
	CollectionCase    CollectionCaseRef `json:"collectionCase"`
	SampleUnit        Address           `json:"sampleUnit"`
	QuestionnaireID   string            `json:"questionnaireId,omitempty"`
	InterviewRequired bool              `json:"interviewRequired,omitempty"`
}

// Metadata rides on outbound payloads to instruct downstream field operations.
type Metadata struct {
	CauseEventType   domain.EventType `json:"causeEventType"`
	FieldInstruction string           `json:"fieldInstruction,omitempty"`
}

// Validate checks the tagged-union discipline: an inbound event type must
// have its matching payload variant populated. Types outside the inbound set
// pass structural validation and are left for the router to reject.
func (e *Envelope) Validate() error {
	if e.Event.Type == "" {
		return ErrMissingEventType
	}

	present := false

	switch e.Event.Type {
	case domain.ResponseReceived, domain.QuestionnaireLinked:
		present = e.Payload.Response != nil
	case domain.RefusalReceived:
		present = e.Payload.Refusal != nil
	case domain.SampleLoaded, domain.FieldCaseUpdated:
		present = e.Payload.CollectionCase != nil
	case domain.NewAddressReported:
		present = e.Payload.NewAddress != nil
	case domain.AddressNotValid:
		present = e.Payload.InvalidAddress != nil
	case domain.FulfilmentRequested:
		present = e.Payload.FulfilmentRequest != nil
	case domain.UndeliveredMailReported:
		present = e.Payload.FulfilmentInformation != nil
	case domain.CCSAddressListed:
		present = e.Payload.CCSProperty != nil
	default:
		// Kinds outside the inbound set have no variant to check here; the
		// router rejects them, recording the rejection against the channel.
		return nil
	}

	if !present {
		return fmt.Errorf("%w: %s", ErrPayloadMismatch, e.Event.Type)
	}

	return nil
}
