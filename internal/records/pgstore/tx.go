package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/liftrecords/internal/records"
	"github.com/2beens/liftrecords/pkg"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type tx struct {
	tx    pgx.Tx
	store *Store
	// write passes read the exercise type from the db and refresh the cache
	uncached bool
}

func (t *tx) Exercise(ctx context.Context, id int64) (records.Exercise, error) {
	if t.uncached {
		return t.store.refreshExercise(ctx, t.tx, id)
	}
	return t.store.cachedExercise(ctx, t.tx, id)
}

func (t *tx) Entry(ctx context.Context, id int64) (records.Entry, error) {
	return getEntry(ctx, t.tx, id)
}

func (t *tx) Timeline(ctx context.Context, key records.TimelineKey) ([]records.Entry, error) {
	return listTimeline(ctx, t.tx, key)
}

func (t *tx) Records(ctx context.Context, key records.TimelineKey) ([]records.Record, error) {
	rows, err := t.tx.Query(
		ctx,
		`
			SELECT
				id, user_id, exercise_id, category, reps, weight, lift_log_id, value,
				previous_id, previous_lift_log_id, previous_value, created_at
			FROM personal_record
			WHERE user_id = $1 AND exercise_id = $2
			ORDER BY id;`,
		key.UserID, key.ExerciseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]records.Record, 0)
	for rows.Next() {
		var r records.Record
		var category string
		if err := rows.Scan(
			&r.ID, &r.Key.UserID, &r.Key.ExerciseID, &category, &r.Key.Reps, &r.Key.Weight,
			&r.EntryID, &r.Value, &r.PreviousID, &r.PreviousEntryID, &r.PreviousValue, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		r.Key.Category = records.Category(category)
		list = append(list, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (t *tx) AuditForEntry(ctx context.Context, entryID int64) ([]records.AuditRecord, error) {
	return t.audit(ctx, `WHERE lift_log_id = $1`, entryID)
}

func (t *tx) AuditForExercise(ctx context.Context, exerciseID int64) ([]records.AuditRecord, error) {
	return t.audit(ctx, `WHERE exercise_id = $1`, exerciseID)
}

func (t *tx) audit(ctx context.Context, where string, id int64) ([]records.AuditRecord, error) {
	rows, err := t.tx.Query(
		ctx,
		`
			SELECT
				id, pass_id::text, user_id, exercise_id, lift_log_id, trigger_kind, trigger_lift_log_id,
				is_cascade, entry_logged_at, decision, created_at
			FROM personal_record_audit
			`+where+`
			ORDER BY id;`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]records.AuditRecord, 0)
	for rows.Next() {
		var a records.AuditRecord
		var passID, trigger string
		var decision []byte
		if err := rows.Scan(
			&a.ID, &passID, &a.UserID, &a.ExerciseID, &a.EntryID, &trigger, &a.TriggerEntry,
			&a.Cascade, &a.EntryLoggedAt, &decision, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		if a.PassID, err = uuid.Parse(passID); err != nil {
			return nil, fmt.Errorf("audit %d pass id: %w", a.ID, err)
		}
		if err := json.Unmarshal(decision, &a.Decision); err != nil {
			return nil, fmt.Errorf("unmarshal decision of audit %d: %w", a.ID, err)
		}
		a.Trigger = records.TriggerKind(trigger)
		list = append(list, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (t *tx) InsertRecord(ctx context.Context, record records.Record) (records.Record, error) {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	err := t.tx.QueryRow(
		ctx,
		`
			INSERT INTO personal_record
				(user_id, exercise_id, category, reps, weight, lift_log_id, value,
				 previous_id, previous_lift_log_id, previous_value, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING id;`,
		record.Key.UserID, record.Key.ExerciseID, string(record.Key.Category), record.Key.Reps, record.Key.Weight,
		record.EntryID, record.Value, record.PreviousID, record.PreviousEntryID, record.PreviousValue, record.CreatedAt,
	).Scan(&record.ID)
	if err != nil {
		if pkg.IsUniqueViolationError(err) {
			return records.Record{}, fmt.Errorf("%w: entry %d already holds %s", records.ErrInconsistentLedger, record.EntryID, record.Key)
		}
		return records.Record{}, err
	}
	return record, nil
}

func (t *tx) DeleteRecord(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM personal_record WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", records.ErrRecordNotFound, id)
	}
	return nil
}

func (t *tx) SetEntryPR(ctx context.Context, entryID int64, isPR bool, prCount int) error {
	tag, err := t.tx.Exec(
		ctx,
		`UPDATE lift_log SET is_pr = $1, pr_count = $2 WHERE id = $3`,
		isPR, prCount, entryID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", records.ErrEntryNotFound, entryID)
	}
	return nil
}

func (t *tx) AppendAudit(ctx context.Context, record records.AuditRecord) (records.AuditRecord, error) {
	decision, err := json.Marshal(record.Decision)
	if err != nil {
		return records.AuditRecord{}, fmt.Errorf("marshal decision: %w", err)
	}
	err = t.tx.QueryRow(
		ctx,
		`
			INSERT INTO personal_record_audit
				(pass_id, user_id, exercise_id, lift_log_id, trigger_kind, trigger_lift_log_id,
				 is_cascade, entry_logged_at, decision, created_at)
				VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id;`,
		record.PassID.String(), record.UserID, record.ExerciseID, record.EntryID, string(record.Trigger), record.TriggerEntry,
		record.Cascade, record.EntryLoggedAt, decision, record.CreatedAt,
	).Scan(&record.ID)
	if err != nil {
		return records.AuditRecord{}, err
	}
	return record, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
