package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/censusrm/caseprocessor/internal/domain"
	"github.com/censusrm/caseprocessor/internal/store"
	"github.com/censusrm/caseprocessor/internal/store/pgstore/internal/adapters"
)

const dialectPostgres = "postgres"

var caseColumns = []any{
	"id", "sequence_number", "case_ref", "case_type", "survey",
	"collection_exercise_id", "action_plan_id", "treatment_code",
	"address_line1", "address_line2", "address_line3", "town_name",
	"postcode", "region", "address_type", "address_level", "estab_type",
	"organisation_name", "uprn", "field_coordinator_id", "field_officer_id",
	"ce_expected_capacity", "ce_actual_responses", "receipt_received",
	"refusal_received", "address_invalid", "undelivered_as_addressed",
	"hand_delivery", "ccs_case", "skeleton",
}

var linkColumns = []any{
	"id", "qid", "uac", "unique_number", "case_id", "active",
	"unreceipted", "ccs_case",
}

// Tx implements store.Tx over one database transaction.
type Tx struct {
	db     adapters.DBTx
	tables TableNames
	logger *zap.Logger
}

// CaseByID looks up a case by its id.
func (t *Tx) CaseByID(ctx context.Context, id uuid.UUID) (*domain.Case, error) {
	query := t.selectCase().Where(goqu.C("id").Eq(id.String()))

	return t.queryOneCase(ctx, query)
}

// CaseByRef looks up a case by its public case reference.
func (t *Tx) CaseByRef(ctx context.Context, caseRef int64) (*domain.Case, error) {
	query := t.selectCase().Where(goqu.C("case_ref").Eq(caseRef))

	return t.queryOneCase(ctx, query)
}

// LockCase re-fetches a case under an exclusive row lock (FOR UPDATE). The
// call blocks until any concurrent holder of the same row lock commits or
// rolls back.
func (t *Tx) LockCase(ctx context.Context, id uuid.UUID) (*domain.Case, error) {
	query := t.selectCase().
		Where(goqu.C("id").Eq(id.String())).
		ForUpdate(exp.Wait)

	return t.queryOneCase(ctx, query)
}

// LinkByQID looks up a uac/qid link by questionnaire id.
func (t *Tx) LinkByQID(ctx context.Context, qid string) (*domain.UacQidLink, error) {
	query := goqu.Dialect(dialectPostgres).
		From(t.tables.Links).
		Select(linkColumns...).
		Where(goqu.C("qid").Eq(qid))

	sqlQuery, _, buildErr := query.ToSQL()
	if buildErr != nil {
		return nil, errors.Join(ErrBuildQueryFailed, buildErr)
	}

	rows, queryErr := t.db.Query(ctx, sqlQuery)
	if queryErr != nil {
		return nil, errors.Join(ErrQueryFailed, queryErr)
	}
	defer t.closeRows(rows)

	if !rows.Next() {
		if rowsErr := rows.Err(); rowsErr != nil {
			return nil, errors.Join(ErrQueryFailed, rowsErr)
		}

		return nil, store.ErrNotFound
	}

	return scanLink(rows)
}

// InsertCase inserts a new case row.
func (t *Tx) InsertCase(ctx context.Context, c *domain.Case) error {
	query := goqu.Dialect(dialectPostgres).
		Insert(t.tables.Cases).
		Rows(caseRecord(c))

	return t.execExpectingOneRow(ctx, query)
}

// UpdateCase persists the mutable fields of an existing case row.
func (t *Tx) UpdateCase(ctx context.Context, c *domain.Case) error {
	query := goqu.Dialect(dialectPostgres).
		Update(t.tables.Cases).
		Set(caseRecord(c)).
		Where(goqu.C("id").Eq(c.ID.String()))

	return t.execExpectingOneRow(ctx, query)
}

// InsertLink inserts a new uac/qid link row.
func (t *Tx) InsertLink(ctx context.Context, l *domain.UacQidLink) error {
	query := goqu.Dialect(dialectPostgres).
		Insert(t.tables.Links).
		Rows(linkRecord(l))

	return t.execExpectingOneRow(ctx, query)
}

// UpdateLink persists the mutable fields of an existing link row.
func (t *Tx) UpdateLink(ctx context.Context, l *domain.UacQidLink) error {
	query := goqu.Dialect(dialectPostgres).
		Update(t.tables.Links).
		Set(linkRecord(l)).
		Where(goqu.C("id").Eq(l.ID.String()))

	return t.execExpectingOneRow(ctx, query)
}

// AppendLedger inserts an audit ledger row. There is deliberately no update
// or delete counterpart.
func (t *Tx) AppendLedger(ctx context.Context, e *domain.LedgerEvent) error {
	payload := string(e.Payload)
	if payload == "" {
		payload = "{}"
	}

	record := goqu.Record{
		"id":             e.ID.String(),
		"event_type":     string(e.Type),
		"description":    e.Description,
		"channel":        e.Channel,
		"source":         e.Source,
		"transaction_id": e.TransactionID,
		"event_date":     e.EventDate,
		"processed_at":   e.ProcessedAt,
		"payload":        goqu.L("?::jsonb", payload),
		"case_id":        nullableUUID(e.CaseID),
		"link_id":        nullableUUID(e.LinkID),
	}

	query := goqu.Dialect(dialectPostgres).
		Insert(t.tables.Ledger).
		Rows(record)

	return t.execExpectingOneRow(ctx, query)
}

// NextCaseSequence allocates the next case sequence number. Postgres
// sequences never hand out the same value twice, even when the surrounding
// transaction rolls back, which keeps sequence numbers single-use.
func (t *Tx) NextCaseSequence(ctx context.Context) (int64, error) {
	return t.nextSequenceValue(ctx, t.tables.CaseSeq)
}

// NextUniqueQidNumber allocates the next questionnaire id unique number.
func (t *Tx) NextUniqueQidNumber(ctx context.Context) (int64, error) {
	return t.nextSequenceValue(ctx, t.tables.QidUniqSeq)
}

func (t *Tx) nextSequenceValue(ctx context.Context, sequence string) (int64, error) {
	sqlQuery := fmt.Sprintf("SELECT nextval('%s')", sequence)

	rows, queryErr := t.db.Query(ctx, sqlQuery)
	if queryErr != nil {
		return 0, errors.Join(ErrQueryFailed, queryErr)
	}
	defer t.closeRows(rows)

	if !rows.Next() {
		return 0, errors.Join(ErrQueryFailed, rows.Err())
	}

	var value int64
	if scanErr := rows.Scan(&value); scanErr != nil {
		return 0, errors.Join(ErrScanFailed, scanErr)
	}

	return value, nil
}

func (t *Tx) selectCase() *goqu.SelectDataset {
	return goqu.Dialect(dialectPostgres).
		From(t.tables.Cases).
		Select(caseColumns...)
}

type sqlConvertible interface {
	ToSQL() (string, []any, error)
}

func (t *Tx) queryOneCase(ctx context.Context, query *goqu.SelectDataset) (*domain.Case, error) {
	sqlQuery, _, buildErr := query.ToSQL()
	if buildErr != nil {
		return nil, errors.Join(ErrBuildQueryFailed, buildErr)
	}

	rows, queryErr := t.db.Query(ctx, sqlQuery)
	if queryErr != nil {
		return nil, errors.Join(ErrQueryFailed, queryErr)
	}
	defer t.closeRows(rows)

	if !rows.Next() {
		if rowsErr := rows.Err(); rowsErr != nil {
			return nil, errors.Join(ErrQueryFailed, rowsErr)
		}

		return nil, store.ErrNotFound
	}

	return scanCase(rows)
}

func (t *Tx) execExpectingOneRow(ctx context.Context, query sqlConvertible) error {
	sqlQuery, _, buildErr := query.ToSQL()
	if buildErr != nil {
		return errors.Join(ErrBuildQueryFailed, buildErr)
	}

	result, execErr := t.db.Exec(ctx, sqlQuery)
	if execErr != nil {
		return errors.Join(ErrExecFailed, execErr)
	}

	rowsAffected, rowsErr := result.RowsAffected()
	if rowsErr != nil {
		return errors.Join(ErrExecFailed, rowsErr)
	}

	if rowsAffected != 1 {
		return fmt.Errorf("%w: %d", ErrUnexpectedRowCount, rowsAffected)
	}

	return nil
}

func (t *Tx) closeRows(rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		t.logger.Warn("failed to close database rows", zap.Error(closeErr))
	}
}

func caseRecord(c *domain.Case) goqu.Record {
	return goqu.Record{
		"id":                       c.ID.String(),
		"sequence_number":          c.SequenceNumber,
		"case_ref":                 c.CaseRef,
		"case_type":                c.CaseType,
		"survey":                   c.Survey,
		"collection_exercise_id":   c.CollectionExerciseID,
		"action_plan_id":           c.ActionPlanID,
		"treatment_code":           c.TreatmentCode,
		"address_line1":            c.AddressLine1,
		"address_line2":            c.AddressLine2,
		"address_line3":            c.AddressLine3,
		"town_name":                c.TownName,
		"postcode":                 c.Postcode,
		"region":                   c.Region,
		"address_type":             c.AddressType,
		"address_level":            c.AddressLevel,
		"estab_type":               c.EstabType,
		"organisation_name":        c.OrganisationName,
		"uprn":                     c.Uprn,
		"field_coordinator_id":     c.FieldCoordinatorID,
		"field_officer_id":         c.FieldOfficerID,
		"ce_expected_capacity":     nullableInt(c.CeExpectedCapacity),
		"ce_actual_responses":      c.CeActualResponses,
		"receipt_received":         c.ReceiptReceived,
		"refusal_received":         c.RefusalReceived,
		"address_invalid":          c.AddressInvalid,
		"undelivered_as_addressed": c.UndeliveredAsAddressed,
		"hand_delivery":            c.HandDelivery,
		"ccs_case":                 c.CCSCase,
		"skeleton":                 c.Skeleton,
	}
}

func linkRecord(l *domain.UacQidLink) goqu.Record {
	return goqu.Record{
		"id":            l.ID.String(),
		"qid":           l.QID,
		"uac":           l.UAC,
		"unique_number": l.UniqueNumber,
		"case_id":       nullableUUID(l.CaseID),
		"active":        l.Active,
		"unreceipted":   l.Unreceipted,
		"ccs_case":      l.CCSCase,
	}
}

func scanCase(rows adapters.DBRows) (*domain.Case, error) {
	var (
		c          domain.Case
		id         string
		ceExpected sql.NullInt64
	)

	scanErr := rows.Scan(
		&id, &c.SequenceNumber, &c.CaseRef, &c.CaseType, &c.Survey,
		&c.CollectionExerciseID, &c.ActionPlanID, &c.TreatmentCode,
		&c.AddressLine1, &c.AddressLine2, &c.AddressLine3, &c.TownName,
		&c.Postcode, &c.Region, &c.AddressType, &c.AddressLevel, &c.EstabType,
		&c.OrganisationName, &c.Uprn, &c.FieldCoordinatorID, &c.FieldOfficerID,
		&ceExpected, &c.CeActualResponses, &c.ReceiptReceived,
		&c.RefusalReceived, &c.AddressInvalid, &c.UndeliveredAsAddressed,
		&c.HandDelivery, &c.CCSCase, &c.Skeleton,
	)
	if scanErr != nil {
		return nil, errors.Join(ErrScanFailed, scanErr)
	}

	parsedID, parseErr := uuid.Parse(id)
	if parseErr != nil {
		return nil, errors.Join(ErrScanFailed, parseErr)
	}

	c.ID = parsedID

	if ceExpected.Valid {
		capacity := int(ceExpected.Int64)
		c.CeExpectedCapacity = &capacity
	}

	return &c, nil
}

func scanLink(rows adapters.DBRows) (*domain.UacQidLink, error) {
	var (
		l      domain.UacQidLink
		id     string
		caseID sql.NullString
	)

	scanErr := rows.Scan(
		&id, &l.QID, &l.UAC, &l.UniqueNumber, &caseID, &l.Active,
		&l.Unreceipted, &l.CCSCase,
	)
	if scanErr != nil {
		return nil, errors.Join(ErrScanFailed, scanErr)
	}

	parsedID, parseErr := uuid.Parse(id)
	if parseErr != nil {
		return nil, errors.Join(ErrScanFailed, parseErr)
	}

	l.ID = parsedID

	if caseID.Valid {
		parsedCaseID, caseIDErr := uuid.Parse(caseID.String)
		if caseIDErr != nil {
			return nil, errors.Join(ErrScanFailed, caseIDErr)
		}

		l.CaseID = &parsedCaseID
	}

	return &l, nil
}

func nullableInt(value *int) any {
	if value == nil {
		return nil
	}

	return *value
}

func nullableUUID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}

	return id.String()
}
