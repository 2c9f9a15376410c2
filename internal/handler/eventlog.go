package handler

import (
	"time"

	"github.com/google/uuid"

	"github.com/censusrm/caseprocessor/internal/domain"
	"github.com/censusrm/caseprocessor/internal/messaging"
)

// newLedgerRow builds the audit row for one processed event. EventDate is the
// business timestamp claimed by the originator; ProcessedAt is stamped here.
// The raw envelope bytes are kept verbatim as the payload snapshot.
func newLedgerRow(
	eventType domain.EventType,
	event messaging.EventInfo,
	raw []byte,
	description string,
	caseID *uuid.UUID,
	linkID *uuid.UUID,
) *domain.LedgerEvent {
	return &domain.LedgerEvent{
		ID:            uuid.New(),
		CaseID:        caseID,
		LinkID:        linkID,
		Type:          eventType,
		Description:   description,
		Channel:       event.Channel,
		Source:        event.Source,
		TransactionID: event.TransactionID,
		EventDate:     event.DateTime,
		ProcessedAt:   time.Now().UTC(),
		Payload:       raw,
	}
}
