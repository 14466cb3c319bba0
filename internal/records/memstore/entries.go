package memstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/2beens/liftrecords/internal/records"
)

// AddExercise stores a new exercise and returns it with its assigned ID.
func (s *Store) AddExercise(_ context.Context, exercise records.Exercise) (records.Exercise, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.lastExerciseID++
	exercise.ID = s.state.lastExerciseID
	s.state.exercises[exercise.ID] = exercise
	return exercise, nil
}

func (s *Store) GetExercise(_ context.Context, id int64) (records.Exercise, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&tx{state: s.state}).Exercise(context.Background(), id)
}

// UpdateExerciseType changes the type of an exercise. The ledger of its
// timelines must be rebuilt afterward.
func (s *Store) UpdateExerciseType(_ context.Context, id int64, exerciseType records.ExerciseType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ex, ok := s.state.exercises[id]
	if !ok {
		return fmt.Errorf("%w: %d", records.ErrExerciseNotFound, id)
	}
	ex.Type = exerciseType
	s.state.exercises[id] = ex
	return nil
}

func (s *Store) AddEntry(_ context.Context, entry records.Entry) (records.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state.exercises[entry.ExerciseID]; !ok {
		return records.Entry{}, fmt.Errorf("%w: %d", records.ErrExerciseNotFound, entry.ExerciseID)
	}

	s.state.lastEntryID++
	entry.ID = s.state.lastEntryID
	entry.IsPR = false
	entry.PRCount = 0
	entry.DeletedAt = nil
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	s.state.entries[entry.ID] = copyEntry(entry)
	return copyEntry(entry), nil
}

func (s *Store) GetEntry(_ context.Context, id int64) (records.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&tx{state: s.state}).Entry(context.Background(), id)
}

// UpdateEntry replaces the timestamp and all sets of a non-deleted entry.
func (s *Store) UpdateEntry(_ context.Context, entry records.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.state.entries[entry.ID]
	if !ok || current.IsDeleted() {
		return fmt.Errorf("%w: %d", records.ErrEntryNotFound, entry.ID)
	}
	current.LoggedAt = entry.LoggedAt
	current.Sets = append([]records.Set(nil), entry.Sets...)
	s.state.entries[entry.ID] = current
	return nil
}

// DeleteEntry soft-deletes an entry.
func (s *Store) DeleteEntry(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.state.entries[id]
	if !ok || current.IsDeleted() {
		return fmt.Errorf("%w: %d", records.ErrEntryNotFound, id)
	}
	deletedAt := s.now()
	current.DeletedAt = &deletedAt
	s.state.entries[id] = current
	return nil
}

// RestoreEntry clears the soft delete of an entry.
func (s *Store) RestoreEntry(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.state.entries[id]
	if !ok || !current.IsDeleted() {
		return fmt.Errorf("%w: no deleted entry %d", records.ErrEntryNotFound, id)
	}
	current.DeletedAt = nil
	s.state.entries[id] = current
	return nil
}

func (s *Store) ListEntries(_ context.Context, key records.TimelineKey) ([]records.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&tx{state: s.state}).Timeline(context.Background(), key)
}

// ListUserExercises returns the IDs of all exercises the user has entries for.
func (s *Store) ListUserExercises(_ context.Context, userID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[int64]bool)
	ids := make([]int64, 0)
	for _, e := range s.state.entries {
		if e.UserID != userID || seen[e.ExerciseID] {
			continue
		}
		seen[e.ExerciseID] = true
		ids = append(ids, e.ExerciseID)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i] < ids[j]
	})
	return ids, nil
}

// ListExerciseUsers returns the IDs of all users with entries of the exercise.
func (s *Store) ListExerciseUsers(_ context.Context, exerciseID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[int64]bool)
	ids := make([]int64, 0)
	for _, e := range s.state.entries {
		if e.ExerciseID != exerciseID || seen[e.UserID] {
			continue
		}
		seen[e.UserID] = true
		ids = append(ids, e.UserID)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i] < ids[j]
	})
	return ids, nil
}
