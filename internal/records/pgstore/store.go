// Package pgstore implements the records store, and the lift log repo,
// on top of Postgres.
package pgstore

import (
	"context"
	"fmt"

	"github.com/2beens/liftrecords/internal/cache"
	"github.com/2beens/liftrecords/internal/records"
	"github.com/2beens/liftrecords/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/multierr"
)

var (
	_ records.Store = (*Store)(nil)
	_ records.WriteTx = (*tx)(nil)
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	db        *pgxpool.Pool
	exercises *cache.ExerciseCache
}

// New creates the store. exerciseCache is optional.
func New(db *pgxpool.Pool, exerciseCache *cache.ExerciseCache) *Store {
	return &Store{
		db:        db,
		exercises: exerciseCache,
	}
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("run schema: %w", err)
	}
	return nil
}

// View runs fn in a read only, repeatable read transaction, so all reads
// of one call see the same snapshot.
func (s *Store) View(ctx context.Context, fn func(ctx context.Context, tx records.ReadTx) error) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.records.view")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	pgTx, err := s.db.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return fmt.Errorf("begin view: %w", err)
	}
	defer func() {
		err = s.finish(ctx, pgTx, err)
	}()

	return fn(ctx, &tx{tx: pgTx, store: s})
}

// Update runs fn in a transaction holding the advisory lock of the timeline,
// so recalculation passes of one (user, exercise) pair never interleave.
func (s *Store) Update(
	ctx context.Context,
	key records.TimelineKey,
	fn func(ctx context.Context, tx records.WriteTx) error,
) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.records.update")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("timeline", key.String()))

	pgTx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	defer func() {
		err = s.finish(ctx, pgTx, err)
	}()

	if _, err := pgTx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key.String()); err != nil {
		return fmt.Errorf("lock timeline %s: %w", key, err)
	}

	return fn(ctx, &tx{tx: pgTx, store: s, uncached: true})
}

func (s *Store) finish(ctx context.Context, pgTx pgx.Tx, err error) error {
	if err != nil {
		if rollbackErr := pgTx.Rollback(ctx); rollbackErr != nil {
			return multierr.Append(err, fmt.Errorf("rollback: %w", rollbackErr))
		}
		return err
	}
	if err := pgTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) cachedExercise(ctx context.Context, q querier, id int64) (records.Exercise, error) {
	if s.exercises != nil {
		if exercise, ok := s.exercises.Get(id); ok {
			return exercise, nil
		}
	}
	return s.refreshExercise(ctx, q, id)
}

func (s *Store) refreshExercise(ctx context.Context, q querier, id int64) (records.Exercise, error) {
	exercise, err := getExercise(ctx, q, id)
	if err != nil {
		return records.Exercise{}, err
	}
	if s.exercises != nil {
		s.exercises.Set(exercise)
	}
	return exercise, nil
}
