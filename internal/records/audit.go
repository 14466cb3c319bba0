package records

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type TriggerKind string

const (
	TriggerCreated TriggerKind = "created"
	TriggerUpdated TriggerKind = "updated"
	TriggerDeleted TriggerKind = "deleted"
	// TriggerRebuild is used for full timeline rebuilds, e.g. after an
	// exercise type change.
	TriggerRebuild TriggerKind = "rebuild"
)

func (tk TriggerKind) String() string {
	return string(tk)
}

func (tk TriggerKind) IsValid() bool {
	switch tk {
	case TriggerCreated, TriggerUpdated, TriggerDeleted, TriggerRebuild:
		return true
	default:
		return false
	}
}

// AuditRecord is the append-only trace of one classification decision.
type AuditRecord struct {
	ID            int64       `json:"id"`
	PassID        uuid.UUID   `json:"passId"`
	UserID        int64       `json:"userId"`
	ExerciseID    int64       `json:"exerciseId"`
	EntryID       int64       `json:"entryId"`
	Trigger       TriggerKind `json:"trigger"`
	TriggerEntry  int64       `json:"triggerEntryId"`
	Cascade       bool        `json:"cascade"`
	EntryLoggedAt time.Time   `json:"entryLoggedAt"`
	Decision      Decision    `json:"decision"`
	CreatedAt     time.Time   `json:"createdAt"`
}

// Decision is the full classifier state for one entry.
type Decision struct {
	Metrics      MetricsSnapshot `json:"metrics"`
	PriorEntries int             `json:"priorEntries"`
	PriorBests   []PriorBest     `json:"priorBests"`
	Awarded      []Award         `json:"awarded"`
	Rejected     []Rejection     `json:"rejected"`
}

// auditRecorder appends the audit records of a single recalculation pass.
type auditRecorder struct {
	passID       uuid.UUID
	trigger      TriggerKind
	triggerEntry int64
	now          func() time.Time
}

func newAuditRecorder(trigger TriggerKind, triggerEntry int64, now func() time.Time) *auditRecorder {
	return &auditRecorder{
		passID:       uuid.New(),
		trigger:      trigger,
		triggerEntry: triggerEntry,
		now:          now,
	}
}

func (a *auditRecorder) record(
	ctx context.Context,
	tx WriteTx,
	entry Entry,
	metrics Metrics,
	prior *PriorBests,
	cl Classification,
) error {
	_, err := tx.AppendAudit(ctx, AuditRecord{
		PassID:        a.passID,
		UserID:        entry.UserID,
		ExerciseID:    entry.ExerciseID,
		EntryID:       entry.ID,
		Trigger:       a.trigger,
		TriggerEntry:  a.triggerEntry,
		Cascade:       entry.ID != a.triggerEntry,
		EntryLoggedAt: entry.LoggedAt,
		Decision: Decision{
			Metrics:      metrics.Snapshot(),
			PriorEntries: prior.Entries,
			PriorBests:   prior.List(),
			Awarded:      cl.Awards,
			Rejected:     cl.Rejections,
		},
		CreatedAt: a.now(),
	})
	if err != nil {
		return fmt.Errorf("append audit for entry %d: %w", entry.ID, err)
	}
	return nil
}
