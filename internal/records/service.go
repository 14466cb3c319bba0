package records

import (
	"context"
	"fmt"
	"time"

	"github.com/2beens/liftrecords/internal/telemetry/metrics"
	"github.com/2beens/liftrecords/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const DefaultMaxCascade = 10000

type Config struct {
	// Tolerance below which two metric values are considered equal.
	Tolerance float64
	// MaxCascade is the max number of entries a single pass may reclassify.
	MaxCascade int
}

func DefaultConfig() Config {
	return Config{
		Tolerance:  DefaultTolerance,
		MaxCascade: DefaultMaxCascade,
	}
}

// Trigger is delivered synchronously after a lift log was created, updated
// or (soft) deleted.
type Trigger struct {
	Kind    TriggerKind
	EntryID int64
	// PreviousLoggedAt is the entry timestamp before an update. When missing,
	// it is taken from the latest audit record of the entry.
	PreviousLoggedAt *time.Time
}

// Service keeps the personal records ledger of every timeline in line with
// its lift logs.
type Service struct {
	store          Store
	classifier     *Classifier
	maxCascade     int
	metricsManager *metrics.Manager
	now            func() time.Time
}

// NewService creates the records service. metricsManager is optional.
func NewService(store Store, cfg Config, metricsManager *metrics.Manager) *Service {
	if cfg.MaxCascade <= 0 {
		cfg.MaxCascade = DefaultMaxCascade
	}
	return &Service{
		store:          store,
		classifier:     NewClassifier(cfg.Tolerance),
		maxCascade:     cfg.MaxCascade,
		metricsManager: metricsManager,
		now:            time.Now,
	}
}

// passStats collects what a single pass did, reported only after commit.
type passStats struct {
	reclassified int
	awarded      map[Category]int
	removed      map[Category]int
}

func newPassStats() *passStats {
	return &passStats{
		awarded: make(map[Category]int),
		removed: make(map[Category]int),
	}
}

// Recalculate brings the ledger of the trigger entry's timeline in line with
// its history. The whole pass runs in one store transaction.
func (s *Service) Recalculate(ctx context.Context, trigger Trigger) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.records.recalculate")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(
		attribute.String("trigger", trigger.Kind.String()),
		attribute.Int64("entry.id", trigger.EntryID),
	)

	if !trigger.Kind.IsValid() || trigger.Kind == TriggerRebuild {
		return fmt.Errorf("%w: unsupported trigger kind [%s]", ErrInvalidTrigger, trigger.Kind)
	}

	key, err := s.resolveTimeline(ctx, trigger.EntryID)
	if err != nil {
		s.reportError(err)
		return err
	}
	span.SetAttributes(
		attribute.Int64("user.id", key.UserID),
		attribute.Int64("exercise.id", key.ExerciseID),
	)

	begin := time.Now()
	stats := newPassStats()
	err = s.store.Update(ctx, key, func(ctx context.Context, tx WriteTx) error {
		return s.recalculate(ctx, tx, key, trigger, stats)
	})
	if err != nil {
		s.reportError(err)
		return fmt.Errorf("recalculate %s [%s entry %d]: %w", key, trigger.Kind, trigger.EntryID, err)
	}

	s.reportPass(trigger.Kind, stats, time.Since(begin))
	log.Debugf(
		"recalculated %s after [%s] of entry %d: %d reclassified",
		key, trigger.Kind, trigger.EntryID, stats.reclassified,
	)
	return nil
}

// Rebuild reclassifies a whole timeline from its first entry, dropping all
// existing ledger rows first. It is the migration path after an exercise
// type change, and the repair path for an inconsistent ledger.
func (s *Service) Rebuild(ctx context.Context, key TimelineKey) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.records.rebuild")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(
		attribute.Int64("user.id", key.UserID),
		attribute.Int64("exercise.id", key.ExerciseID),
	)

	begin := time.Now()
	stats := newPassStats()
	err = s.store.Update(ctx, key, func(ctx context.Context, tx WriteTx) error {
		exercise, err := tx.Exercise(ctx, key.ExerciseID)
		if err != nil {
			return err
		}

		records, err := tx.Records(ctx, key)
		if err != nil {
			return fmt.Errorf("list records: %w", err)
		}
		for _, r := range records {
			if err := tx.DeleteRecord(ctx, r.ID); err != nil {
				return fmt.Errorf("delete record %d: %w", r.ID, err)
			}
			stats.removed[r.Key.Category]++
		}

		timeline, err := tx.Timeline(ctx, key)
		if err != nil {
			return fmt.Errorf("list timeline: %w", err)
		}

		if !exercise.Type.SupportsPRs() {
			for _, e := range timeline {
				if err := s.setEntryPR(ctx, tx, e, Classification{}); err != nil {
					return err
				}
			}
			return nil
		}

		if len(timeline) > s.maxCascade {
			return fmt.Errorf("%w: %d entries, max %d", ErrCascadeTooLarge, len(timeline), s.maxCascade)
		}

		audit := newAuditRecorder(TriggerRebuild, 0, s.now)
		return s.replay(ctx, tx, key, timeline, 0, &ledger{byEntry: map[int64]map[Slot]Record{}}, audit, stats)
	})
	if err != nil {
		s.reportError(err)
		return fmt.Errorf("rebuild %s: %w", key, err)
	}

	s.reportPass(TriggerRebuild, stats, time.Since(begin))
	log.Infof("rebuilt %s: %d entries reclassified", key, stats.reclassified)
	return nil
}

func (s *Service) resolveTimeline(ctx context.Context, entryID int64) (TimelineKey, error) {
	var key TimelineKey
	err := s.store.View(ctx, func(ctx context.Context, tx ReadTx) error {
		entry, err := tx.Entry(ctx, entryID)
		if err != nil {
			return err
		}
		key = entry.Timeline()
		return nil
	})
	return key, err
}

func (s *Service) recalculate(
	ctx context.Context,
	tx WriteTx,
	key TimelineKey,
	trigger Trigger,
	stats *passStats,
) error {
	// re-read inside the transaction, the timeline is locked from here on
	entry, err := tx.Entry(ctx, trigger.EntryID)
	if err != nil {
		return err
	}
	if entry.Timeline() != key {
		return fmt.Errorf("%w: entry %d moved to %s during recalculation", ErrInvalidTrigger, entry.ID, entry.Timeline())
	}

	switch {
	case trigger.Kind == TriggerDeleted && !entry.IsDeleted():
		return fmt.Errorf("%w: entry %d is not deleted", ErrInvalidTrigger, entry.ID)
	case trigger.Kind != TriggerDeleted && entry.IsDeleted():
		return fmt.Errorf("%w: entry %d is deleted", ErrInvalidTrigger, entry.ID)
	}

	if !entry.IsDeleted() {
		if err := entry.Validate(); err != nil {
			return err
		}
	}

	exercise, err := tx.Exercise(ctx, entry.ExerciseID)
	if err != nil {
		return err
	}

	records, err := tx.Records(ctx, key)
	if err != nil {
		return fmt.Errorf("list records: %w", err)
	}
	l, err := newLedger(records)
	if err != nil {
		return err
	}

	if !exercise.Type.SupportsPRs() {
		return s.skipIneligible(ctx, tx, entry, l, stats)
	}

	timeline, err := tx.Timeline(ctx, key)
	if err != nil {
		return fmt.Errorf("list timeline: %w", err)
	}

	anchorAt := entry.LoggedAt
	if trigger.Kind == TriggerUpdated {
		previousLoggedAt, err := s.previousLoggedAt(ctx, tx, trigger)
		if err != nil {
			return err
		}
		if previousLoggedAt != nil && previousLoggedAt.Before(anchorAt) {
			anchorAt = *previousLoggedAt
		}
	}

	// first timeline position not before the anchor; everything earlier
	// is unaffected by this trigger
	start := len(timeline)
	for i, e := range timeline {
		if !before(e.LoggedAt, e.ID, anchorAt, entry.ID) {
			start = i
			break
		}
	}

	if cascade := len(timeline) - start; cascade > s.maxCascade {
		return fmt.Errorf("%w: %d entries to reclassify, max %d", ErrCascadeTooLarge, cascade, s.maxCascade)
	}

	audit := newAuditRecorder(trigger.Kind, entry.ID, s.now)
	return s.replay(ctx, tx, key, timeline, start, l, audit, stats)
}

func (s *Service) previousLoggedAt(ctx context.Context, tx ReadTx, trigger Trigger) (*time.Time, error) {
	if trigger.PreviousLoggedAt != nil {
		return trigger.PreviousLoggedAt, nil
	}
	audit, err := tx.AuditForEntry(ctx, trigger.EntryID)
	if err != nil {
		return nil, fmt.Errorf("audit for entry %d: %w", trigger.EntryID, err)
	}
	if len(audit) == 0 {
		return nil, nil
	}
	loggedAt := audit[len(audit)-1].EntryLoggedAt
	return &loggedAt, nil
}

// replay reclassifies timeline[start:], in order, against the fold of
// timeline[:start], and diffs the ledger rows of each reclassified entry.
// Rows of entries no longer in the timeline are removed.
func (s *Service) replay(
	ctx context.Context,
	tx WriteTx,
	key TimelineKey,
	timeline []Entry,
	start int,
	l *ledger,
	audit *auditRecorder,
	stats *passStats,
) error {
	inTimeline := make(map[int64]bool, len(timeline))
	for _, e := range timeline {
		inTimeline[e.ID] = true
	}
	for entryID, slots := range l.byEntry {
		if inTimeline[entryID] {
			continue
		}
		for _, r := range slots {
			if err := tx.DeleteRecord(ctx, r.ID); err != nil {
				return fmt.Errorf("delete record %d: %w", r.ID, err)
			}
			stats.removed[r.Key.Category]++
		}
	}

	prior := NewPriorBests()
	heads := make(map[Slot]Record)
	for _, e := range timeline[:start] {
		if err := e.Validate(); err != nil {
			return err
		}
		prior.Add(e.ID, ExtractMetrics(e.Sets))
		for slot, r := range l.byEntry[e.ID] {
			heads[slot] = r
		}
	}

	for _, e := range timeline[start:] {
		if err := e.Validate(); err != nil {
			return err
		}
		m := ExtractMetrics(e.Sets)
		cl := s.classifier.Classify(m, prior)

		if err := s.writeLedger(ctx, tx, key, e, cl, l.byEntry[e.ID], heads, stats); err != nil {
			return err
		}
		if err := s.setEntryPR(ctx, tx, e, cl); err != nil {
			return err
		}
		if err := audit.record(ctx, tx, e, m, prior, cl); err != nil {
			return err
		}

		prior.Add(e.ID, m)
		stats.reclassified++
	}

	return nil
}

// writeLedger makes the ledger rows of entry match its classification.
// An existing row is kept when it already links to the current chain head,
// otherwise it is replaced by a new row. heads is advanced as rows are written.
func (s *Service) writeLedger(
	ctx context.Context,
	tx WriteTx,
	key TimelineKey,
	entry Entry,
	cl Classification,
	existing map[Slot]Record,
	heads map[Slot]Record,
	stats *passStats,
) error {
	awarded := make(map[Slot]bool, len(cl.Awards))
	for _, a := range cl.Awards {
		awarded[a.Slot] = true

		want := Record{
			Key:     RecordKey{TimelineKey: key, Slot: a.Slot},
			EntryID: entry.ID,
			Value:   a.Value,
		}
		if previous, ok := heads[a.Slot]; ok {
			want.PreviousID = &previous.ID
			want.PreviousEntryID = &previous.EntryID
			want.PreviousValue = &previous.Value
		}

		if current, ok := existing[a.Slot]; ok {
			if sameRecord(current, want) {
				heads[a.Slot] = current
				continue
			}
			if err := tx.DeleteRecord(ctx, current.ID); err != nil {
				return fmt.Errorf("delete record %d: %w", current.ID, err)
			}
			stats.removed[a.Category]++
		}

		want.CreatedAt = s.now()
		inserted, err := tx.InsertRecord(ctx, want)
		if err != nil {
			return fmt.Errorf("insert record %s for entry %d: %w", want.Key, entry.ID, err)
		}
		heads[a.Slot] = inserted
		stats.awarded[a.Category]++
	}

	for slot, current := range existing {
		if awarded[slot] {
			continue
		}
		if err := tx.DeleteRecord(ctx, current.ID); err != nil {
			return fmt.Errorf("delete record %d: %w", current.ID, err)
		}
		stats.removed[slot.Category]++
	}

	return nil
}

func (s *Service) setEntryPR(ctx context.Context, tx WriteTx, entry Entry, cl Classification) error {
	if entry.IsPR == cl.IsPR() && entry.PRCount == cl.Count() {
		return nil
	}
	if err := tx.SetEntryPR(ctx, entry.ID, cl.IsPR(), cl.Count()); err != nil {
		return fmt.Errorf("set entry %d pr: %w", entry.ID, err)
	}
	return nil
}

// skipIneligible handles entries of exercises which do not support PRs:
// the entry is not evaluated, only its stale rows and cache fields are reset.
func (s *Service) skipIneligible(ctx context.Context, tx WriteTx, entry Entry, l *ledger, stats *passStats) error {
	for _, r := range l.byEntry[entry.ID] {
		if err := tx.DeleteRecord(ctx, r.ID); err != nil {
			return fmt.Errorf("delete record %d: %w", r.ID, err)
		}
		stats.removed[r.Key.Category]++
	}
	if entry.IsDeleted() {
		return nil
	}
	return s.setEntryPR(ctx, tx, entry, Classification{})
}

func (s *Service) reportPass(kind TriggerKind, stats *passStats, duration time.Duration) {
	if s.metricsManager == nil {
		return
	}
	s.metricsManager.CounterRecalculations.WithLabelValues(kind.String()).Inc()
	s.metricsManager.HistogramRecalculationDuration.Observe(duration.Seconds())
	s.metricsManager.HistogramCascadeSize.Observe(float64(stats.reclassified))
	for category, count := range stats.awarded {
		s.metricsManager.CounterRecordsAwarded.WithLabelValues(string(category)).Add(float64(count))
	}
	for category, count := range stats.removed {
		s.metricsManager.CounterRecordsRemoved.WithLabelValues(string(category)).Add(float64(count))
	}
}

func (s *Service) reportError(err error) {
	if s.metricsManager == nil {
		return
	}
	s.metricsManager.CounterRecalculationErrors.WithLabelValues(ErrorKind(err)).Inc()
}
