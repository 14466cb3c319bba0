package records_test

import (
	"context"
	"testing"
	"time"

	"github.com/2beens/liftrecords/internal/records"
	"github.com/2beens/liftrecords/internal/records/memstore"
	"github.com/2beens/liftrecords/internal/telemetry/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	oneRepMaxSlot = records.Slot{Category: records.CategoryOneRepMax}
	volumeSlot    = records.Slot{Category: records.CategoryVolume}
)

type testEnv struct {
	ctx            context.Context
	store          *memstore.Store
	service        *records.Service
	metricsManager *metrics.Manager
	exercise       records.Exercise
	userID         int64
}

func newTestEnv(t *testing.T, exerciseType records.ExerciseType, cfg records.Config) *testEnv {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	exercise, err := store.AddExercise(ctx, records.Exercise{Name: "squat", Type: exerciseType})
	require.NoError(t, err)

	metricsManager := metrics.NewTestManager()
	return &testEnv{
		ctx:            ctx,
		store:          store,
		service:        records.NewService(store, cfg, metricsManager),
		metricsManager: metricsManager,
		exercise:       exercise,
		userID:         1,
	}
}

func (env *testEnv) key() records.TimelineKey {
	return records.TimelineKey{UserID: env.userID, ExerciseID: env.exercise.ID}
}

func (env *testEnv) recordKey(slot records.Slot) records.RecordKey {
	return records.RecordKey{TimelineKey: env.key(), Slot: slot}
}

func (env *testEnv) add(t *testing.T, loggedAt time.Time, sets ...records.Set) (records.Entry, error) {
	t.Helper()
	entry, err := env.store.AddEntry(env.ctx, records.Entry{
		UserID:     env.userID,
		ExerciseID: env.exercise.ID,
		LoggedAt:   loggedAt,
		Sets:       sets,
	})
	require.NoError(t, err)
	err = env.service.Recalculate(env.ctx, records.Trigger{Kind: records.TriggerCreated, EntryID: entry.ID})
	return entry, err
}

func (env *testEnv) log(t *testing.T, loggedAt time.Time, sets ...records.Set) records.Entry {
	t.Helper()
	entry, err := env.add(t, loggedAt, sets...)
	require.NoError(t, err)
	return env.entry(t, entry.ID)
}

func (env *testEnv) update(t *testing.T, id int64, loggedAt time.Time, passPrevious bool, sets ...records.Set) {
	t.Helper()
	before := env.entry(t, id)
	require.NoError(t, env.store.UpdateEntry(env.ctx, records.Entry{ID: id, LoggedAt: loggedAt, Sets: sets}))

	trigger := records.Trigger{Kind: records.TriggerUpdated, EntryID: id}
	if passPrevious {
		trigger.PreviousLoggedAt = &before.LoggedAt
	}
	require.NoError(t, env.service.Recalculate(env.ctx, trigger))
}

func (env *testEnv) delete(t *testing.T, id int64) {
	t.Helper()
	require.NoError(t, env.store.DeleteEntry(env.ctx, id))
	require.NoError(t, env.service.Recalculate(env.ctx, records.Trigger{Kind: records.TriggerDeleted, EntryID: id}))
}

func (env *testEnv) entry(t *testing.T, id int64) records.Entry {
	t.Helper()
	entry, err := env.store.GetEntry(env.ctx, id)
	require.NoError(t, err)
	return entry
}

func (env *testEnv) current(t *testing.T, slot records.Slot) records.Record {
	t.Helper()
	r, err := env.service.CurrentRecord(env.ctx, env.recordKey(slot))
	require.NoError(t, err)
	return r
}

func (env *testEnv) allRecords(t *testing.T) []records.Record {
	t.Helper()
	var list []records.Record
	require.NoError(t, env.store.View(env.ctx, func(ctx context.Context, tx records.ReadTx) error {
		var err error
		list, err = tx.Records(ctx, env.key())
		return err
	}))
	return list
}

func day(d int) time.Time {
	return time.Date(2024, time.January, d, 18, 0, 0, 0, time.UTC)
}

func TestService_StraightProgression(t *testing.T) {
	env := newTestEnv(t, records.ExerciseTypeRegular, records.DefaultConfig())

	e1 := env.log(t, day(1), records.Set{Weight: 100, Reps: 5})
	e2 := env.log(t, day(8), records.Set{Weight: 105, Reps: 5})
	e3 := env.log(t, day(15), records.Set{Weight: 100, Reps: 5})

	assert.True(t, e1.IsPR)
	assert.Equal(t, 3, e1.PRCount)
	assert.True(t, e2.IsPR)
	assert.Equal(t, 3, e2.PRCount)
	assert.False(t, e3.IsPR)
	assert.Equal(t, 0, e3.PRCount)

	current := env.current(t, oneRepMaxSlot)
	assert.Equal(t, e2.ID, current.EntryID)
	require.NotNil(t, current.PreviousEntryID)
	assert.Equal(t, e1.ID, *current.PreviousEntryID)
	assert.InDelta(t, 116.667, *current.PreviousValue, 1e-3)

	chain, err := env.service.Chain(env.ctx, env.recordKey(records.RepSpecificSlot(5)))
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, e2.ID, chain[0].EntryID)
	assert.Equal(t, e1.ID, chain[1].EntryID)
	assert.Nil(t, chain[1].PreviousID)

	cl, err := env.service.Classify(env.ctx, e3.ID)
	require.NoError(t, err)
	assert.False(t, cl.IsPR())
	require.NotEmpty(t, cl.Rejections)
	assert.Equal(t, records.CategoryOneRepMax, cl.Rejections[0].Category)
	assert.Equal(t, e2.ID, cl.Rejections[0].BlockingEntryID)
}

func TestService_RepCountIndependence(t *testing.T) {
	env := newTestEnv(t, records.ExerciseTypeRegular, records.DefaultConfig())

	env.log(t, day(1), records.Set{Weight: 200, Reps: 3})
	e2 := env.log(t, day(2), records.Set{Weight: 185, Reps: 5})

	assert.True(t, e2.IsPR)
	assert.Equal(t, 2, e2.PRCount)
	assert.Equal(t, e2.ID, env.current(t, records.RepSpecificSlot(5)).EntryID)
	assert.NotEqual(t, e2.ID, env.current(t, oneRepMaxSlot).EntryID)
}

func TestService_BackdatedEntryDemotesLaterEntry(t *testing.T) {
	env := newTestEnv(t, records.ExerciseTypeRegular, records.DefaultConfig())

	e1 := env.log(t, day(15), records.Set{Weight: 300, Reps: 5})
	require.True(t, e1.IsPR)

	e2 := env.log(t, day(10), records.Set{Weight: 315, Reps: 5})
	assert.True(t, e2.IsPR)

	// judged against the strictly earlier and heavier entry #2 now
	e1 = env.entry(t, e1.ID)
	assert.False(t, e1.IsPR)
	assert.Equal(t, 0, e1.PRCount)

	current := env.current(t, oneRepMaxSlot)
	assert.Equal(t, e2.ID, current.EntryID)
	assert.Nil(t, current.PreviousID)
	assert.Len(t, env.allRecords(t), 3)

	audit, err := env.service.AuditForEntry(env.ctx, e1.ID)
	require.NoError(t, err)
	require.Len(t, audit, 2)
	last := audit[1]
	assert.True(t, last.Cascade)
	assert.Equal(t, e2.ID, last.TriggerEntry)
	assert.Equal(t, records.TriggerCreated, last.Trigger)
	assert.Empty(t, last.Decision.Awarded)
	assert.Equal(t, 1, last.Decision.PriorEntries)
}

func TestService_DeleteRevertsToPreviousHolder(t *testing.T) {
	env := newTestEnv(t, records.ExerciseTypeRegular, records.DefaultConfig())

	e1 := env.log(t, day(1), records.Set{Weight: 100, Reps: 5})
	first := env.current(t, oneRepMaxSlot)
	e2 := env.log(t, day(8), records.Set{Weight: 110, Reps: 5})
	require.Equal(t, e2.ID, env.current(t, oneRepMaxSlot).EntryID)

	env.delete(t, e2.ID)

	afterDelete := env.current(t, oneRepMaxSlot)
	assert.Equal(t, first.ID, afterDelete.ID)
	assert.Equal(t, e1.ID, afterDelete.EntryID)
	for _, r := range env.allRecords(t) {
		assert.NotEqual(t, e2.ID, r.EntryID)
	}
	assert.True(t, env.entry(t, e1.ID).IsPR)

	_, err := env.service.Classify(env.ctx, e2.ID)
	assert.ErrorIs(t, err, records.ErrEntryNotFound)
}

func TestService_DeleteInTheMiddleRelinksChain(t *testing.T) {
	env := newTestEnv(t, records.ExerciseTypeRegular, records.DefaultConfig())

	e1 := env.log(t, day(1), records.Set{Weight: 100, Reps: 5})
	e2 := env.log(t, day(2), records.Set{Weight: 110, Reps: 5})
	e3 := env.log(t, day(3), records.Set{Weight: 120, Reps: 5})

	env.delete(t, e2.ID)

	chain, err := env.service.Chain(env.ctx, env.recordKey(oneRepMaxSlot))
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, e3.ID, chain[0].EntryID)
	assert.Equal(t, e1.ID, chain[1].EntryID)
	require.NotNil(t, chain[0].PreviousID)
	assert.Equal(t, chain[1].ID, *chain[0].PreviousID)
	assert.Equal(t, e1.ID, *chain[0].PreviousEntryID)
}

func TestService_ToleranceTie(t *testing.T) {
	env := newTestEnv(t, records.ExerciseTypeRegular, records.DefaultConfig())

	env.log(t, day(1), records.Set{Weight: 100, Reps: 1})
	e2 := env.log(t, day(2), records.Set{Weight: 100.05, Reps: 1})
	e3 := env.log(t, day(3), records.Set{Weight: 100, Reps: 1})

	assert.False(t, e2.IsPR)
	assert.False(t, e3.IsPR)
	assert.Len(t, env.allRecords(t), 3)
}

func TestService_UpdateMovesEntryLater(t *testing.T) {
	for _, passPrevious := range []bool{true, false} {
		env := newTestEnv(t, records.ExerciseTypeRegular, records.DefaultConfig())

		e0 := env.log(t, day(1), records.Set{Weight: 50, Reps: 5})
		e1 := env.log(t, day(5), records.Set{Weight: 100, Reps: 5})
		e2 := env.log(t, day(8), records.Set{Weight: 110, Reps: 5})
		require.Equal(t, e1.ID, *env.current(t, oneRepMaxSlot).PreviousEntryID)

		// without the previous timestamp, it is taken from the audit trail
		env.update(t, e1.ID, day(15), passPrevious, records.Set{Weight: 100, Reps: 5})

		current := env.current(t, oneRepMaxSlot)
		assert.Equal(t, e2.ID, current.EntryID)
		require.NotNil(t, current.PreviousEntryID)
		assert.Equal(t, e0.ID, *current.PreviousEntryID)
		assert.False(t, env.entry(t, e1.ID).IsPR)

		// 100 was used by e1 only, so e1 at its new position gets no hypertrophy slot either
		cl, err := env.service.Classify(env.ctx, e1.ID)
		require.NoError(t, err)
		assert.False(t, cl.IsPR())
	}
}

func TestService_UpdateSetsOnly(t *testing.T) {
	env := newTestEnv(t, records.ExerciseTypeRegular, records.DefaultConfig())

	e1 := env.log(t, day(1), records.Set{Weight: 100, Reps: 5})
	e2 := env.log(t, day(2), records.Set{Weight: 90, Reps: 5})
	require.False(t, e2.IsPR)

	env.update(t, e2.ID, day(2), true, records.Set{Weight: 120, Reps: 5})
	assert.True(t, env.entry(t, e2.ID).IsPR)
	assert.Equal(t, e2.ID, env.current(t, oneRepMaxSlot).EntryID)

	env.update(t, e1.ID, day(1), true, records.Set{Weight: 130, Reps: 5})
	assert.False(t, env.entry(t, e2.ID).IsPR)
	assert.Equal(t, e1.ID, env.current(t, oneRepMaxSlot).EntryID)
}

func TestService_Idempotent(t *testing.T) {
	env := newTestEnv(t, records.ExerciseTypeRegular, records.DefaultConfig())

	first := env.log(t, day(1), records.Set{Weight: 100, Reps: 5}, records.Set{Weight: 90, Reps: 8})
	env.log(t, day(3), records.Set{Weight: 105, Reps: 5}, records.Set{Weight: 90, Reps: 9})
	env.log(t, day(5), records.Set{Weight: 95, Reps: 6})
	before := env.allRecords(t)
	require.NotEmpty(t, before)

	for i := 0; i < 3; i++ {
		require.NoError(t, env.service.Recalculate(env.ctx, records.Trigger{
			Kind:             records.TriggerUpdated,
			EntryID:          first.ID,
			PreviousLoggedAt: &first.LoggedAt,
		}))
	}

	assert.Equal(t, before, env.allRecords(t))
}

func TestService_IneligibleExercise(t *testing.T) {
	env := newTestEnv(t, records.ExerciseTypeBodyweight, records.DefaultConfig())

	e1 := env.log(t, day(1), records.Set{Weight: 0, Reps: 10})
	e2 := env.log(t, day(2), records.Set{Weight: 0, Reps: 15})

	assert.False(t, e1.IsPR)
	assert.False(t, e2.IsPR)
	assert.Empty(t, env.allRecords(t))

	audit, err := env.service.AuditForExercise(env.ctx, env.exercise.ID)
	require.NoError(t, err)
	assert.Empty(t, audit)

	cl, err := env.service.Classify(env.ctx, e2.ID)
	require.NoError(t, err)
	assert.False(t, cl.IsPR())
	assert.Empty(t, cl.Rejections)
}

func TestService_RebuildAfterExerciseTypeChange(t *testing.T) {
	env := newTestEnv(t, records.ExerciseTypeRegular, records.DefaultConfig())

	e1 := env.log(t, day(1), records.Set{Weight: 40, Reps: 10})
	e2 := env.log(t, day(2), records.Set{Weight: 45, Reps: 10})
	require.True(t, e2.IsPR)
	before := env.allRecords(t)

	require.NoError(t, env.store.UpdateExerciseType(env.ctx, env.exercise.ID, records.ExerciseTypeBandedAssistance))
	require.NoError(t, env.service.Rebuild(env.ctx, env.key()))
	assert.Empty(t, env.allRecords(t))
	assert.False(t, env.entry(t, e1.ID).IsPR)
	assert.False(t, env.entry(t, e2.ID).IsPR)

	require.NoError(t, env.store.UpdateExerciseType(env.ctx, env.exercise.ID, records.ExerciseTypeRegular))
	require.NoError(t, env.service.Rebuild(env.ctx, env.key()))
	after := env.allRecords(t)
	assert.Len(t, after, len(before))
	assert.True(t, env.entry(t, e1.ID).IsPR)
	assert.True(t, env.entry(t, e2.ID).IsPR)

	audit, err := env.service.AuditForEntry(env.ctx, e2.ID)
	require.NoError(t, err)
	assert.Equal(t, records.TriggerRebuild, audit[len(audit)-1].Trigger)

	assert.Equal(t, 2.0, testutil.ToFloat64(env.metricsManager.CounterRecalculations.WithLabelValues("rebuild")))
}

func TestService_MalformedEntry(t *testing.T) {
	env := newTestEnv(t, records.ExerciseTypeRegular, records.DefaultConfig())
	env.log(t, day(1), records.Set{Weight: 100, Reps: 5})
	before := env.allRecords(t)

	entry, err := env.add(t, day(2), records.Set{Weight: 200, Reps: 0})
	assert.ErrorIs(t, err, records.ErrInvalidEntry)
	assert.False(t, env.entry(t, entry.ID).IsPR)
	assert.Equal(t, before, env.allRecords(t))
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metricsManager.CounterRecalculationErrors.WithLabelValues("invalid_input")))
}

func TestService_InvalidTrigger(t *testing.T) {
	env := newTestEnv(t, records.ExerciseTypeRegular, records.DefaultConfig())
	e1 := env.log(t, day(1), records.Set{Weight: 100, Reps: 5})

	err := env.service.Recalculate(env.ctx, records.Trigger{Kind: records.TriggerDeleted, EntryID: e1.ID})
	assert.ErrorIs(t, err, records.ErrInvalidTrigger)

	err = env.service.Recalculate(env.ctx, records.Trigger{Kind: records.TriggerRebuild, EntryID: e1.ID})
	assert.ErrorIs(t, err, records.ErrInvalidTrigger)

	err = env.service.Recalculate(env.ctx, records.Trigger{Kind: records.TriggerCreated, EntryID: 404})
	assert.ErrorIs(t, err, records.ErrEntryNotFound)
}

func TestService_CascadeTooLarge(t *testing.T) {
	env := newTestEnv(t, records.ExerciseTypeRegular, records.Config{
		Tolerance:  records.DefaultTolerance,
		MaxCascade: 2,
	})

	env.log(t, day(10), records.Set{Weight: 100, Reps: 5})
	env.log(t, day(11), records.Set{Weight: 100, Reps: 5})
	env.log(t, day(12), records.Set{Weight: 100, Reps: 5})
	before := env.allRecords(t)

	entry, err := env.add(t, day(1), records.Set{Weight: 150, Reps: 5})
	assert.ErrorIs(t, err, records.ErrCascadeTooLarge)
	assert.Equal(t, "cascade_too_large", records.ErrorKind(err))
	assert.False(t, env.entry(t, entry.ID).IsPR)
	assert.Equal(t, before, env.allRecords(t))
}

func TestService_InconsistentLedger(t *testing.T) {
	env := newTestEnv(t, records.ExerciseTypeRegular, records.DefaultConfig())

	e1 := env.log(t, day(1), records.Set{Weight: 100, Reps: 5})
	e2 := env.log(t, day(2), records.Set{Weight: 90, Reps: 5})

	// a second, unlinked head for the one-rep max slot
	require.NoError(t, env.store.Update(env.ctx, env.key(), func(ctx context.Context, tx records.WriteTx) error {
		_, err := tx.InsertRecord(ctx, records.Record{
			Key:     env.recordKey(oneRepMaxSlot),
			EntryID: e2.ID,
			Value:   105,
		})
		return err
	}))

	_, err := env.add(t, day(3), records.Set{Weight: 80, Reps: 5})
	assert.ErrorIs(t, err, records.ErrInconsistentLedger)

	_, err = env.service.CurrentRecords(env.ctx, env.key())
	assert.ErrorIs(t, err, records.ErrInconsistentLedger)

	require.NoError(t, env.service.Rebuild(env.ctx, env.key()))
	current, err := env.service.CurrentRecords(env.ctx, env.key())
	require.NoError(t, err)
	require.NotEmpty(t, current)
	assert.Equal(t, oneRepMaxSlot, current[0].Key.Slot)
	assert.Equal(t, e1.ID, current[0].EntryID)
}

func TestService_ClassifyIsReadOnly(t *testing.T) {
	env := newTestEnv(t, records.ExerciseTypeRegular, records.DefaultConfig())
	env.log(t, day(1), records.Set{Weight: 100, Reps: 5})
	e2 := env.log(t, day(2), records.Set{Weight: 110, Reps: 5})

	before, err := env.service.AuditForExercise(env.ctx, env.exercise.ID)
	require.NoError(t, err)
	ledgerBefore := env.allRecords(t)

	cl, err := env.service.Classify(env.ctx, e2.ID)
	require.NoError(t, err)
	assert.True(t, cl.IsPR())

	after, err := env.service.AuditForExercise(env.ctx, env.exercise.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, ledgerBefore, env.allRecords(t))
}

func TestService_AuditTrail(t *testing.T) {
	env := newTestEnv(t, records.ExerciseTypeRegular, records.DefaultConfig())
	e1 := env.log(t, day(5), records.Set{Weight: 100, Reps: 5})
	e2 := env.log(t, day(6), records.Set{Weight: 95, Reps: 5})
	e0 := env.log(t, day(1), records.Set{Weight: 80, Reps: 5})

	audit, err := env.service.AuditForExercise(env.ctx, env.exercise.ID)
	require.NoError(t, err)
	// e1, then e2 alone, then e0 followed by the e1 and e2 cascade
	require.Len(t, audit, 5)
	assert.Equal(t, e2.ID, audit[1].EntryID)

	pass := audit[2:]
	assert.Equal(t, e0.ID, pass[0].EntryID)
	assert.False(t, pass[0].Cascade)
	for _, a := range pass {
		assert.Equal(t, pass[0].PassID, a.PassID)
		assert.Equal(t, e0.ID, a.TriggerEntry)
	}
	assert.Equal(t, e1.ID, pass[1].EntryID)
	assert.True(t, pass[1].Cascade)
	assert.Equal(t, 1, pass[1].Decision.PriorEntries)
	assert.Equal(t, e2.ID, pass[2].EntryID)
	require.NotEmpty(t, pass[2].Decision.Rejected)
	assert.Equal(t, e1.ID, pass[2].Decision.Rejected[0].BlockingEntryID)
	assert.Equal(t, day(6), pass[2].EntryLoggedAt)
	assert.NotEqual(t, audit[0].PassID, pass[0].PassID)

	assert.Equal(t, 3.0, testutil.ToFloat64(env.metricsManager.CounterRecalculations.WithLabelValues("created")))
}
