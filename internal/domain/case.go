package domain

import (
	"github.com/google/uuid"
)

// Case types as they appear on the wire and in the store.
const (
	CaseTypeHousehold           = "HH"
	CaseTypeHouseholdIndividual = "HI"
	CaseTypeCommunal            = "CE"
	CaseTypeSpecialPopulation   = "SPG"
)

// Address levels. A "U"nit level case is a single responding unit, an
// "E"stablishment level case is the aggregate communal establishment.
const (
	AddressLevelUnit          = "U"
	AddressLevelEstablishment = "E"
)

// Surveys a case can belong to.
const (
	SurveyCensus = "CENSUS"
	SurveyCCS    = "CCS"
)

// Case is a single data-collection unit tracked through its lifecycle.
//
// SequenceNumber is allocated exactly once at creation and CaseRef is derived
// from it by the case-ref cipher; neither is ever recomputed. CeActualResponses
// may only be mutated while holding the row lock (store.Tx.LockCase).
type Case struct {
	ID                   uuid.UUID
	SequenceNumber       int64
	CaseRef              int64
	CaseType             string
	Survey               string
	CollectionExerciseID string
	ActionPlanID         string
	TreatmentCode        string

	AddressLine1     string
	AddressLine2     string
	AddressLine3     string
	TownName         string
	Postcode         string
	Region           string
	AddressType      string
	AddressLevel     string
	EstabType        string
	OrganisationName string
	Uprn             string

	FieldCoordinatorID string
	FieldOfficerID     string

	CeExpectedCapacity *int
	CeActualResponses  int

	ReceiptReceived        bool
	RefusalReceived        bool
	AddressInvalid         bool
	UndeliveredAsAddressed bool
	HandDelivery           bool

	CCSCase  bool
	Skeleton bool
}
