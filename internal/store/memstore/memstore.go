// Package memstore implements store.Store in memory.
//
// It mirrors the transactional semantics of the Postgres store closely enough
// for concurrency tests: writes are staged per transaction and become visible
// atomically on commit, row locks taken with LockCase are held until the
// transaction ends, and sequence values are never reused even when the
// allocating transaction rolls back.
package memstore

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/censusrm/caseprocessor/internal/domain"
	"github.com/censusrm/caseprocessor/internal/store"
)

// Store implements store.Store in memory.
type Store struct {
	mu         sync.RWMutex
	cases      map[uuid.UUID]domain.Case
	casesByRef map[int64]uuid.UUID
	links      map[uuid.UUID]domain.UacQidLink
	linksByQID map[string]uuid.UUID
	ledger     []domain.LedgerEvent

	rowLocksMu sync.Mutex
	rowLocks   map[uuid.UUID]*sync.Mutex

	caseSeq int64
	qidSeq  int64
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		cases:      make(map[uuid.UUID]domain.Case),
		casesByRef: make(map[int64]uuid.UUID),
		links:      make(map[uuid.UUID]domain.UacQidLink),
		linksByQID: make(map[string]uuid.UUID),
		rowLocks:   make(map[uuid.UUID]*sync.Mutex),
	}
}

// WithinTx runs fn against a staged view of the store. A nil return from fn
// publishes all staged writes atomically; any error discards them. Row locks
// acquired by fn are released either way.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	tx := &memTx{
		store:       s,
		stagedCases: make(map[uuid.UUID]domain.Case),
		stagedLinks: make(map[uuid.UUID]domain.UacQidLink),
	}

	defer tx.releaseRowLocks()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	tx.commit()

	return nil
}

// Cases returns a snapshot of all committed cases, for test assertions.
func (s *Store) Cases() []domain.Case {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Case, 0, len(s.cases))
	for _, c := range s.cases {
		out = append(out, c)
	}

	return out
}

// Links returns a snapshot of all committed links, for test assertions.
func (s *Store) Links() []domain.UacQidLink {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.UacQidLink, 0, len(s.links))
	for _, l := range s.links {
		out = append(out, l)
	}

	return out
}

// Ledger returns a snapshot of all committed ledger rows, for test assertions.
func (s *Store) Ledger() []domain.LedgerEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.LedgerEvent, len(s.ledger))
	copy(out, s.ledger)

	return out
}

// Seed inserts committed records directly, bypassing transactions. Test setup
// only.
func (s *Store) Seed(cases []domain.Case, links []domain.UacQidLink) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range cases {
		s.cases[c.ID] = c
		s.casesByRef[c.CaseRef] = c.ID
	}

	for _, l := range links {
		s.links[l.ID] = l
		s.linksByQID[l.QID] = l.ID
	}
}

func (s *Store) rowLock(id uuid.UUID) *sync.Mutex {
	s.rowLocksMu.Lock()
	defer s.rowLocksMu.Unlock()

	lock, ok := s.rowLocks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.rowLocks[id] = lock
	}

	return lock
}

type memTx struct {
	store        *Store
	stagedCases  map[uuid.UUID]domain.Case
	stagedLinks  map[uuid.UUID]domain.UacQidLink
	stagedLedger []domain.LedgerEvent
	heldLocks    []*sync.Mutex
}

func (t *memTx) CaseByID(_ context.Context, id uuid.UUID) (*domain.Case, error) {
	if staged, ok := t.stagedCases[id]; ok {
		c := staged

		return &c, nil
	}

	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	committed, ok := t.store.cases[id]
	if !ok {
		return nil, store.ErrNotFound
	}

	c := committed

	return &c, nil
}

func (t *memTx) CaseByRef(ctx context.Context, caseRef int64) (*domain.Case, error) {
	for _, staged := range t.stagedCases {
		if staged.CaseRef == caseRef {
			c := staged

			return &c, nil
		}
	}

	t.store.mu.RLock()
	id, ok := t.store.casesByRef[caseRef]
	t.store.mu.RUnlock()

	if !ok {
		return nil, store.ErrNotFound
	}

	return t.CaseByID(ctx, id)
}

func (t *memTx) LockCase(ctx context.Context, id uuid.UUID) (*domain.Case, error) {
	lock := t.store.rowLock(id)
	lock.Lock()
	t.heldLocks = append(t.heldLocks, lock)

	return t.CaseByID(ctx, id)
}

func (t *memTx) LinkByQID(_ context.Context, qid string) (*domain.UacQidLink, error) {
	for _, staged := range t.stagedLinks {
		if staged.QID == qid {
			l := staged

			return &l, nil
		}
	}

	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	id, ok := t.store.linksByQID[qid]
	if !ok {
		return nil, store.ErrNotFound
	}

	l := t.store.links[id]

	return &l, nil
}

func (t *memTx) InsertCase(_ context.Context, c *domain.Case) error {
	t.stagedCases[c.ID] = *c

	return nil
}

func (t *memTx) UpdateCase(_ context.Context, c *domain.Case) error {
	t.stagedCases[c.ID] = *c

	return nil
}

func (t *memTx) InsertLink(_ context.Context, l *domain.UacQidLink) error {
	t.stagedLinks[l.ID] = *l

	return nil
}

func (t *memTx) UpdateLink(_ context.Context, l *domain.UacQidLink) error {
	t.stagedLinks[l.ID] = *l

	return nil
}

func (t *memTx) AppendLedger(_ context.Context, e *domain.LedgerEvent) error {
	t.stagedLedger = append(t.stagedLedger, *e)

	return nil
}

func (t *memTx) NextCaseSequence(_ context.Context) (int64, error) {
	return atomic.AddInt64(&t.store.caseSeq, 1), nil
}

func (t *memTx) NextUniqueQidNumber(_ context.Context) (int64, error) {
	return atomic.AddInt64(&t.store.qidSeq, 1), nil
}

func (t *memTx) commit() {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	for id, c := range t.stagedCases {
		t.store.cases[id] = c
		t.store.casesByRef[c.CaseRef] = id
	}

	for id, l := range t.stagedLinks {
		t.store.links[id] = l
		t.store.linksByQID[l.QID] = id
	}

	t.store.ledger = append(t.store.ledger, t.stagedLedger...)
}

func (t *memTx) releaseRowLocks() {
	for _, lock := range t.heldLocks {
		lock.Unlock()
	}

	t.heldLocks = nil
}
