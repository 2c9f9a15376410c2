package domain

import (
	"github.com/google/uuid"
)

// UacQidLink pairs a single-use random access code (UAC) with a structured
// questionnaire id. A link may exist before any case references it, and a case
// may accumulate several links over its life (e.g. replacement fulfilments).
//
// UniqueNumber is issued by the store at creation time and is embedded in the
// questionnaire id. UAC and QID values are globally unique, enforced by store
// constraints rather than by the generators.
type UacQidLink struct {
	ID           uuid.UUID
	QID          string
	UAC          string
	UniqueNumber int64
	CaseID       *uuid.UUID
	Active       bool
	Unreceipted  bool
	CCSCase      bool
}
