// Package memstore provides an in-memory transactional implementation of
// the records store, plus the lift log repo methods the write path needs.
// Update transactions run on a copy of the state which replaces the live
// state only when the transaction function returns no error.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/2beens/liftrecords/internal/records"
)

type state struct {
	exercises map[int64]records.Exercise
	entries   map[int64]records.Entry
	records   map[int64]records.Record
	audit     []records.AuditRecord

	lastExerciseID int64
	lastEntryID    int64
	lastRecordID   int64
	lastAuditID    int64
}

func newState() *state {
	return &state{
		exercises: make(map[int64]records.Exercise),
		entries:   make(map[int64]records.Entry),
		records:   make(map[int64]records.Record),
		audit:     make([]records.AuditRecord, 0),
	}
}

func (s *state) clone() *state {
	c := &state{
		exercises:      make(map[int64]records.Exercise, len(s.exercises)),
		entries:        make(map[int64]records.Entry, len(s.entries)),
		records:        make(map[int64]records.Record, len(s.records)),
		audit:          make([]records.AuditRecord, len(s.audit)),
		lastExerciseID: s.lastExerciseID,
		lastEntryID:    s.lastEntryID,
		lastRecordID:   s.lastRecordID,
		lastAuditID:    s.lastAuditID,
	}
	for id, ex := range s.exercises {
		c.exercises[id] = ex
	}
	for id, e := range s.entries {
		c.entries[id] = copyEntry(e)
	}
	for id, r := range s.records {
		c.records[id] = r
	}
	// audit records are never mutated, sharing them is fine
	copy(c.audit, s.audit)
	return c
}

func copyEntry(e records.Entry) records.Entry {
	e.Sets = append([]records.Set(nil), e.Sets...)
	if e.DeletedAt != nil {
		deletedAt := *e.DeletedAt
		e.DeletedAt = &deletedAt
	}
	return e
}

type Store struct {
	mu    sync.RWMutex
	state *state
	now   func() time.Time
}

func New() *Store {
	return &Store{
		state: newState(),
		now:   time.Now,
	}
}

// View runs fn against the committed state.
func (s *Store) View(ctx context.Context, fn func(ctx context.Context, tx records.ReadTx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(ctx, &tx{state: s.state})
}

// Update runs fn on a copy of the state, and commits the copy if fn succeeds.
// Updates are serialized for the whole store, which covers the per timeline
// serialization requirement.
func (s *Store) Update(
	ctx context.Context,
	_ records.TimelineKey,
	fn func(ctx context.Context, tx records.WriteTx) error,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	if err := fn(ctx, &tx{state: working}); err != nil {
		return err
	}
	s.state = working
	return nil
}

type tx struct {
	state *state
}

func (t *tx) Exercise(_ context.Context, id int64) (records.Exercise, error) {
	ex, ok := t.state.exercises[id]
	if !ok {
		return records.Exercise{}, fmt.Errorf("%w: %d", records.ErrExerciseNotFound, id)
	}
	return ex, nil
}

func (t *tx) Entry(_ context.Context, id int64) (records.Entry, error) {
	e, ok := t.state.entries[id]
	if !ok {
		return records.Entry{}, fmt.Errorf("%w: %d", records.ErrEntryNotFound, id)
	}
	return copyEntry(e), nil
}

func (t *tx) Timeline(_ context.Context, key records.TimelineKey) ([]records.Entry, error) {
	timeline := make([]records.Entry, 0)
	for _, e := range t.state.entries {
		if e.Timeline() != key || e.IsDeleted() {
			continue
		}
		timeline = append(timeline, copyEntry(e))
	}
	records.SortTimeline(timeline)
	return timeline, nil
}

func (t *tx) Records(_ context.Context, key records.TimelineKey) ([]records.Record, error) {
	list := make([]records.Record, 0)
	for _, r := range t.state.records {
		if r.Key.TimelineKey == key {
			list = append(list, r)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].ID < list[j].ID
	})
	return list, nil
}

func (t *tx) AuditForEntry(_ context.Context, entryID int64) ([]records.AuditRecord, error) {
	list := make([]records.AuditRecord, 0)
	for _, a := range t.state.audit {
		if a.EntryID == entryID {
			list = append(list, a)
		}
	}
	return list, nil
}

func (t *tx) AuditForExercise(_ context.Context, exerciseID int64) ([]records.AuditRecord, error) {
	list := make([]records.AuditRecord, 0)
	for _, a := range t.state.audit {
		if a.ExerciseID == exerciseID {
			list = append(list, a)
		}
	}
	return list, nil
}

func (t *tx) InsertRecord(_ context.Context, record records.Record) (records.Record, error) {
	for _, r := range t.state.records {
		if r.EntryID == record.EntryID && r.Key == record.Key {
			return records.Record{}, fmt.Errorf("%w: entry %d already holds %s in row %d", records.ErrInconsistentLedger, record.EntryID, record.Key, r.ID)
		}
	}
	if record.PreviousID != nil {
		if _, ok := t.state.records[*record.PreviousID]; !ok {
			return records.Record{}, fmt.Errorf("previous record %d not found", *record.PreviousID)
		}
	}

	t.state.lastRecordID++
	record.ID = t.state.lastRecordID
	record.PreviousID = copyPtr(record.PreviousID)
	record.PreviousEntryID = copyPtr(record.PreviousEntryID)
	record.PreviousValue = copyPtr(record.PreviousValue)
	t.state.records[record.ID] = record
	return record, nil
}

func (t *tx) DeleteRecord(_ context.Context, id int64) error {
	if _, ok := t.state.records[id]; !ok {
		return fmt.Errorf("%w: %d", records.ErrRecordNotFound, id)
	}
	delete(t.state.records, id)

	// same as ON DELETE SET NULL on previous_id
	for rid, r := range t.state.records {
		if r.PreviousID != nil && *r.PreviousID == id {
			r.PreviousID = nil
			t.state.records[rid] = r
		}
	}
	return nil
}

func (t *tx) SetEntryPR(_ context.Context, entryID int64, isPR bool, prCount int) error {
	e, ok := t.state.entries[entryID]
	if !ok {
		return fmt.Errorf("%w: %d", records.ErrEntryNotFound, entryID)
	}
	e.IsPR = isPR
	e.PRCount = prCount
	t.state.entries[entryID] = e
	return nil
}

func (t *tx) AppendAudit(_ context.Context, record records.AuditRecord) (records.AuditRecord, error) {
	t.state.lastAuditID++
	record.ID = t.state.lastAuditID
	t.state.audit = append(t.state.audit, record)
	return record, nil
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
