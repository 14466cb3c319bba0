package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/2beens/liftrecords/internal/records"
	"github.com/2beens/liftrecords/internal/telemetry/tracing"
	"github.com/2beens/liftrecords/pkg"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
)

const entryColumns = `id, user_id, exercise_id, logged_at, sets, is_pr, pr_count, created_at, deleted_at`

func (s *Store) AddExercise(ctx context.Context, exercise records.Exercise) (_ records.Exercise, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.records.exercise.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	err = s.db.QueryRow(
		ctx,
		`INSERT INTO exercise (owner_user_id, name, type) VALUES ($1, $2, $3) RETURNING id;`,
		exercise.OwnerUserID, exercise.Name, string(exercise.Type),
	).Scan(&exercise.ID)
	if err != nil {
		return records.Exercise{}, err
	}
	return exercise, nil
}

func (s *Store) GetExercise(ctx context.Context, id int64) (_ records.Exercise, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.records.exercise.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int64("exercise.id", id))

	return s.cachedExercise(ctx, s.db, id)
}

// UpdateExerciseType changes the type of an exercise. All timelines of the
// exercise have to be rebuilt afterward.
func (s *Store) UpdateExerciseType(ctx context.Context, id int64, exerciseType records.ExerciseType) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.records.exercise.update_type")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	tag, err := s.db.Exec(ctx, `UPDATE exercise SET type = $1 WHERE id = $2`, string(exerciseType), id)
	if err != nil {
		return err
	}
	if s.exercises != nil {
		s.exercises.Invalidate(id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", records.ErrExerciseNotFound, id)
	}
	return nil
}

func (s *Store) AddEntry(ctx context.Context, entry records.Entry) (_ records.Entry, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.records.entry.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	sets, err := json.Marshal(entry.Sets)
	if err != nil {
		return records.Entry{}, fmt.Errorf("marshal sets: %w", err)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	err = s.db.QueryRow(
		ctx,
		`
			INSERT INTO lift_log
				(user_id, exercise_id, logged_at, sets, created_at)
				VALUES ($1, $2, $3, $4, $5)
			RETURNING id;`,
		entry.UserID, entry.ExerciseID, entry.LoggedAt, sets, entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		if pkg.IsForeignKeyViolationError(err) {
			return records.Entry{}, fmt.Errorf("%w: %d", records.ErrExerciseNotFound, entry.ExerciseID)
		}
		return records.Entry{}, err
	}

	entry.IsPR = false
	entry.PRCount = 0
	entry.DeletedAt = nil
	return entry, nil
}

func (s *Store) GetEntry(ctx context.Context, id int64) (_ records.Entry, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.records.entry.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int64("entry.id", id))

	return getEntry(ctx, s.db, id)
}

// UpdateEntry replaces the timestamp and all sets of a non-deleted entry.
func (s *Store) UpdateEntry(ctx context.Context, entry records.Entry) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.records.entry.update")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int64("entry.id", entry.ID))

	sets, err := json.Marshal(entry.Sets)
	if err != nil {
		return fmt.Errorf("marshal sets: %w", err)
	}
	tag, err := s.db.Exec(
		ctx,
		`UPDATE lift_log SET logged_at = $1, sets = $2 WHERE id = $3 AND deleted_at IS NULL;`,
		entry.LoggedAt, sets, entry.ID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", records.ErrEntryNotFound, entry.ID)
	}
	return nil
}

// DeleteEntry soft-deletes an entry.
func (s *Store) DeleteEntry(ctx context.Context, id int64) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.records.entry.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int64("entry.id", id))

	tag, err := s.db.Exec(
		ctx,
		`UPDATE lift_log SET deleted_at = now() WHERE id = $1 AND deleted_at IS NULL;`,
		id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", records.ErrEntryNotFound, id)
	}
	return nil
}

// RestoreEntry clears the soft delete of an entry.
func (s *Store) RestoreEntry(ctx context.Context, id int64) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.records.entry.restore")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int64("entry.id", id))

	tag, err := s.db.Exec(
		ctx,
		`UPDATE lift_log SET deleted_at = NULL WHERE id = $1 AND deleted_at IS NOT NULL;`,
		id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: no deleted entry %d", records.ErrEntryNotFound, id)
	}
	return nil
}

func (s *Store) ListEntries(ctx context.Context, key records.TimelineKey) (_ []records.Entry, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.records.entry.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("timeline", key.String()))

	return listTimeline(ctx, s.db, key)
}

// ListUserExercises returns the IDs of all exercises the user has entries for.
func (s *Store) ListUserExercises(ctx context.Context, userID int64) (_ []int64, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.records.entry.list_exercises")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	return s.listIDs(
		ctx,
		`SELECT DISTINCT exercise_id FROM lift_log WHERE user_id = $1 ORDER BY exercise_id;`,
		userID,
	)
}

// ListExerciseUsers returns the IDs of all users with entries of the exercise.
func (s *Store) ListExerciseUsers(ctx context.Context, exerciseID int64) (_ []int64, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.records.entry.list_users")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int64("exercise.id", exerciseID))

	return s.listIDs(
		ctx,
		`SELECT DISTINCT user_id FROM lift_log WHERE exercise_id = $1 ORDER BY user_id;`,
		exerciseID,
	)
}

func (s *Store) listIDs(ctx context.Context, query string, arg int64) ([]int64, error) {
	rows, err := s.db.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

func getExercise(ctx context.Context, q querier, id int64) (records.Exercise, error) {
	var exercise records.Exercise
	var exerciseType string
	err := q.QueryRow(
		ctx,
		`SELECT id, owner_user_id, name, type FROM exercise WHERE id = $1;`,
		id,
	).Scan(&exercise.ID, &exercise.OwnerUserID, &exercise.Name, &exerciseType)
	if err != nil {
		if isNoRows(err) {
			return records.Exercise{}, fmt.Errorf("%w: %d", records.ErrExerciseNotFound, id)
		}
		return records.Exercise{}, fmt.Errorf("exercise [query row]: %w", err)
	}
	exercise.Type = records.ExerciseType(exerciseType)
	return exercise, nil
}

func getEntry(ctx context.Context, q querier, id int64) (records.Entry, error) {
	rows, err := q.Query(ctx, `SELECT `+entryColumns+` FROM lift_log WHERE id = $1;`, id)
	if err != nil {
		return records.Entry{}, err
	}
	defer rows.Close()

	entries, err := rows2entries(rows)
	if err != nil {
		return records.Entry{}, err
	}
	if len(entries) != 1 {
		return records.Entry{}, fmt.Errorf("%w: %d", records.ErrEntryNotFound, id)
	}
	return entries[0], nil
}

func listTimeline(ctx context.Context, q querier, key records.TimelineKey) ([]records.Entry, error) {
	rows, err := q.Query(
		ctx,
		`
			SELECT `+entryColumns+`
			FROM lift_log
			WHERE user_id = $1 AND exercise_id = $2 AND deleted_at IS NULL
			ORDER BY logged_at, id;`,
		key.UserID, key.ExerciseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return rows2entries(rows)
}

func rows2entries(rows pgx.Rows) ([]records.Entry, error) {
	entries := make([]records.Entry, 0)
	for rows.Next() {
		var e records.Entry
		var sets []byte
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.ExerciseID, &e.LoggedAt, &sets,
			&e.IsPR, &e.PRCount, &e.CreatedAt, &e.DeletedAt,
		); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		if err := json.Unmarshal(sets, &e.Sets); err != nil {
			return nil, fmt.Errorf("unmarshal sets of entry %d: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
