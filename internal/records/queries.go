package records

import (
	"context"
	"fmt"

	"github.com/2beens/liftrecords/internal/telemetry/tracing"

	"go.opentelemetry.io/otel/attribute"
)

// Classify computes which record slots an entry satisfies against the
// entries before it. Read-only: no ledger or audit rows are written, so it
// can be used for display purposes.
func (s *Service) Classify(ctx context.Context, entryID int64) (_ Classification, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.records.classify")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int64("entry.id", entryID))

	var cl Classification
	err = s.store.View(ctx, func(ctx context.Context, tx ReadTx) error {
		entry, err := tx.Entry(ctx, entryID)
		if err != nil {
			return err
		}
		if entry.IsDeleted() {
			return fmt.Errorf("%w: entry %d is deleted", ErrEntryNotFound, entryID)
		}

		exercise, err := tx.Exercise(ctx, entry.ExerciseID)
		if err != nil {
			return err
		}
		if !exercise.Type.SupportsPRs() {
			cl = Classification{Awards: []Award{}, Rejections: []Rejection{}}
			return nil
		}

		if err := entry.Validate(); err != nil {
			return err
		}

		timeline, err := tx.Timeline(ctx, entry.Timeline())
		if err != nil {
			return fmt.Errorf("list timeline: %w", err)
		}

		prior := NewPriorBests()
		for _, e := range timeline {
			if !e.Before(entry) {
				break
			}
			if err := e.Validate(); err != nil {
				return err
			}
			prior.Add(e.ID, ExtractMetrics(e.Sets))
		}

		cl = s.classifier.Classify(ExtractMetrics(entry.Sets), prior)
		return nil
	})
	if err != nil {
		return Classification{}, err
	}
	return cl, nil
}

// CurrentRecords returns the current (not superseded) ledger row of every
// slot of a timeline.
func (s *Service) CurrentRecords(ctx context.Context, key TimelineKey) (_ []Record, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.records.current")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(
		attribute.Int64("user.id", key.UserID),
		attribute.Int64("exercise.id", key.ExerciseID),
	)

	var current []Record
	err = s.withLedger(ctx, key, func(l *ledger) {
		current = l.current()
	})
	if err != nil {
		return nil, err
	}
	return current, nil
}

// CurrentRecord returns the current ledger row of a single slot.
func (s *Service) CurrentRecord(ctx context.Context, key RecordKey) (Record, error) {
	chain, err := s.Chain(ctx, key)
	if err != nil {
		return Record{}, err
	}
	if len(chain) == 0 {
		return Record{}, fmt.Errorf("%w: %s", ErrRecordNotFound, key)
	}
	return chain[0], nil
}

// Chain returns the supersession history of a slot, current row first.
func (s *Service) Chain(ctx context.Context, key RecordKey) (_ []Record, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.records.chain")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("record.key", key.String()))

	if err := key.Slot.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidQuery, err)
	}

	var chain []Record
	err = s.withLedger(ctx, key.TimelineKey, func(l *ledger) {
		chain = l.chain(key.Slot)
	})
	if err != nil {
		return nil, err
	}
	return chain, nil
}

func (s *Service) AuditForEntry(ctx context.Context, entryID int64) (_ []AuditRecord, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.records.audit.entry")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var audit []AuditRecord
	err = s.store.View(ctx, func(ctx context.Context, tx ReadTx) error {
		var viewErr error
		audit, viewErr = tx.AuditForEntry(ctx, entryID)
		return viewErr
	})
	if err != nil {
		return nil, err
	}
	return audit, nil
}

func (s *Service) AuditForExercise(ctx context.Context, exerciseID int64) (_ []AuditRecord, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.records.audit.exercise")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var audit []AuditRecord
	err = s.store.View(ctx, func(ctx context.Context, tx ReadTx) error {
		var viewErr error
		audit, viewErr = tx.AuditForExercise(ctx, exerciseID)
		return viewErr
	})
	if err != nil {
		return nil, err
	}
	return audit, nil
}

func (s *Service) withLedger(ctx context.Context, key TimelineKey, fn func(l *ledger)) error {
	return s.store.View(ctx, func(ctx context.Context, tx ReadTx) error {
		records, err := tx.Records(ctx, key)
		if err != nil {
			return fmt.Errorf("list records: %w", err)
		}
		l, err := newLedger(records)
		if err != nil {
			return err
		}
		fn(l)
		return nil
	})
}
