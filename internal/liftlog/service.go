package liftlog

import (
	"context"
	"fmt"
	"time"

	"github.com/2beens/liftrecords/internal/records"
	"github.com/2beens/liftrecords/internal/telemetry/tracing"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/multierr"
)

// EntriesRepo is the lift log persistence used by the write path.
// Both records stores implement it.
type EntriesRepo interface {
	AddExercise(ctx context.Context, exercise records.Exercise) (records.Exercise, error)
	GetExercise(ctx context.Context, id int64) (records.Exercise, error)
	AddEntry(ctx context.Context, entry records.Entry) (records.Entry, error)
	GetEntry(ctx context.Context, id int64) (records.Entry, error)
	UpdateEntry(ctx context.Context, entry records.Entry) error
	DeleteEntry(ctx context.Context, id int64) error
	RestoreEntry(ctx context.Context, id int64) error
}

type Recalculator interface {
	Recalculate(ctx context.Context, trigger records.Trigger) error
}

type SetParams struct {
	Weight    float64 `json:"weight" validate:"gte=0,lte=2000"`
	Reps      int     `json:"reps" validate:"gt=0,lte=1000"`
	BandColor string  `json:"bandColor" validate:"omitempty,max=32"`
}

type NewEntryParams struct {
	UserID     int64       `json:"userId" validate:"gt=0"`
	ExerciseID int64       `json:"exerciseId" validate:"gt=0"`
	LoggedAt   time.Time   `json:"loggedAt" validate:"required"`
	Sets       []SetParams `json:"sets" validate:"required,min=1,max=100,dive"`
}

type UpdateEntryParams struct {
	LoggedAt time.Time   `json:"loggedAt" validate:"required"`
	Sets     []SetParams `json:"sets" validate:"required,min=1,max=100,dive"`
}

type NewExerciseParams struct {
	OwnerUserID *int64               `json:"ownerUserId" validate:"omitempty,gt=0"`
	Name        string               `json:"name" validate:"required,max=128"`
	Type        records.ExerciseType `json:"type" validate:"required"`
}

// Service persists lift logs and runs the records recalculation for every
// change before returning.
type Service struct {
	repo         EntriesRepo
	recalculator Recalculator
	validate     *validator.Validate
}

func NewService(repo EntriesRepo, recalculator Recalculator) *Service {
	return &Service{
		repo:         repo,
		recalculator: recalculator,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (s *Service) AddExercise(ctx context.Context, params NewExerciseParams) (_ records.Exercise, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.liftlog.exercise.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if err := s.validate.Struct(params); err != nil {
		return records.Exercise{}, fmt.Errorf("%w: %s", records.ErrInvalidEntry, err)
	}
	if !params.Type.IsValid() {
		log.Warnf("new exercise [%s] with unknown type [%s], it will be treated as regular", params.Name, params.Type)
	}

	exercise, err := s.repo.AddExercise(ctx, records.Exercise{
		OwnerUserID: params.OwnerUserID,
		Name:        params.Name,
		Type:        params.Type,
	})
	if err != nil {
		return records.Exercise{}, fmt.Errorf("add exercise: %w", err)
	}
	return exercise, nil
}

func (s *Service) GetExercise(ctx context.Context, id int64) (records.Exercise, error) {
	return s.repo.GetExercise(ctx, id)
}

// Create stores a new lift log and classifies it. If the recalculation
// fails, the entry is removed again so no unclassified entry is left behind.
func (s *Service) Create(ctx context.Context, params NewEntryParams) (_ records.Entry, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.liftlog.create")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(
		attribute.Int64("user.id", params.UserID),
		attribute.Int64("exercise.id", params.ExerciseID),
	)

	if err := s.validate.Struct(params); err != nil {
		return records.Entry{}, fmt.Errorf("%w: %s", records.ErrInvalidEntry, err)
	}

	exercise, err := s.repo.GetExercise(ctx, params.ExerciseID)
	if err != nil {
		return records.Entry{}, err
	}
	if exercise.OwnerUserID != nil && *exercise.OwnerUserID != params.UserID {
		return records.Entry{}, fmt.Errorf("%w: %d is not visible to user %d", records.ErrExerciseNotFound, exercise.ID, params.UserID)
	}

	entry, err := s.repo.AddEntry(ctx, records.Entry{
		UserID:     params.UserID,
		ExerciseID: params.ExerciseID,
		LoggedAt:   params.LoggedAt.UTC(),
		Sets:       toSets(params.Sets),
	})
	if err != nil {
		return records.Entry{}, fmt.Errorf("add entry: %w", err)
	}
	span.SetAttributes(attribute.Int64("entry.id", entry.ID))

	if err := s.recalculator.Recalculate(ctx, records.Trigger{
		Kind:    records.TriggerCreated,
		EntryID: entry.ID,
	}); err != nil {
		if delErr := s.repo.DeleteEntry(ctx, entry.ID); delErr != nil {
			err = multierr.Append(err, fmt.Errorf("remove unclassified entry %d: %w", entry.ID, delErr))
		}
		return records.Entry{}, err
	}

	return s.repo.GetEntry(ctx, entry.ID)
}

func (s *Service) Get(ctx context.Context, id int64) (_ records.Entry, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.liftlog.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	entry, err := s.repo.GetEntry(ctx, id)
	if err != nil {
		return records.Entry{}, err
	}
	if entry.IsDeleted() {
		return records.Entry{}, fmt.Errorf("%w: %d", records.ErrEntryNotFound, id)
	}
	return entry, nil
}

// Update replaces the timestamp and sets of an entry and reclassifies its
// timeline from the earlier of the old and new timestamps. If the
// recalculation fails, the previous version of the entry is restored.
func (s *Service) Update(ctx context.Context, id int64, params UpdateEntryParams) (_ records.Entry, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.liftlog.update")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int64("entry.id", id))

	if err := s.validate.Struct(params); err != nil {
		return records.Entry{}, fmt.Errorf("%w: %s", records.ErrInvalidEntry, err)
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return records.Entry{}, err
	}

	updated := current
	updated.LoggedAt = params.LoggedAt.UTC()
	updated.Sets = toSets(params.Sets)
	if err := s.repo.UpdateEntry(ctx, updated); err != nil {
		return records.Entry{}, fmt.Errorf("update entry: %w", err)
	}

	previousLoggedAt := current.LoggedAt
	if err := s.recalculator.Recalculate(ctx, records.Trigger{
		Kind:             records.TriggerUpdated,
		EntryID:          id,
		PreviousLoggedAt: &previousLoggedAt,
	}); err != nil {
		if restoreErr := s.repo.UpdateEntry(ctx, current); restoreErr != nil {
			err = multierr.Append(err, fmt.Errorf("restore entry %d: %w", id, restoreErr))
		}
		return records.Entry{}, err
	}

	return s.repo.GetEntry(ctx, id)
}

// Delete soft-deletes an entry and reclassifies everything after it.
// If the recalculation fails, the entry is restored.
func (s *Service) Delete(ctx context.Context, id int64) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.liftlog.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int64("entry.id", id))

	if err := s.repo.DeleteEntry(ctx, id); err != nil {
		return err
	}

	if err := s.recalculator.Recalculate(ctx, records.Trigger{
		Kind:    records.TriggerDeleted,
		EntryID: id,
	}); err != nil {
		if restoreErr := s.repo.RestoreEntry(ctx, id); restoreErr != nil {
			log.Errorf("entry %d stays deleted with a stale ledger, rebuild its timeline: %s", id, restoreErr)
			err = multierr.Append(err, fmt.Errorf("restore entry %d: %w", id, restoreErr))
		}
		return err
	}
	return nil
}

func toSets(params []SetParams) []records.Set {
	sets := make([]records.Set, 0, len(params))
	for _, p := range params {
		sets = append(sets, records.Set{
			Weight:    p.Weight,
			Reps:      p.Reps,
			BandColor: p.BandColor,
		})
	}
	return sets
}
