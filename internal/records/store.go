package records

import "context"

// ReadTx is a consistent read-only view of the store.
type ReadTx interface {
	Exercise(ctx context.Context, id int64) (Exercise, error)
	// Entry returns the entry with the given ID, soft-deleted entries included.
	Entry(ctx context.Context, id int64) (Entry, error)
	// Timeline returns all non-deleted entries of a timeline, in timeline order.
	Timeline(ctx context.Context, key TimelineKey) ([]Entry, error)
	// Records returns all ledger rows of a timeline.
	Records(ctx context.Context, key TimelineKey) ([]Record, error)
	// AuditForEntry returns the audit records of an entry, oldest first.
	AuditForEntry(ctx context.Context, entryID int64) ([]AuditRecord, error)
	// AuditForExercise returns the audit records of an exercise, oldest first.
	AuditForExercise(ctx context.Context, exerciseID int64) ([]AuditRecord, error)
}

// WriteTx extends ReadTx with the writes done by a recalculation pass.
type WriteTx interface {
	ReadTx
	InsertRecord(ctx context.Context, record Record) (Record, error)
	// DeleteRecord removes a ledger row. Rows superseding it keep their
	// previous snapshot, but lose the PreviousID link.
	DeleteRecord(ctx context.Context, id int64) error
	SetEntryPR(ctx context.Context, entryID int64, isPR bool, prCount int) error
	AppendAudit(ctx context.Context, record AuditRecord) (AuditRecord, error)
}

// Store runs functions in transactions. Update transactions are serialized
// per timeline and either commit all their writes or none.
type Store interface {
	View(ctx context.Context, fn func(ctx context.Context, tx ReadTx) error) error
	Update(ctx context.Context, key TimelineKey, fn func(ctx context.Context, tx WriteTx) error) error
}
