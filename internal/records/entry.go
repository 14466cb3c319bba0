package records

import (
	"fmt"
	"sort"
	"time"
)

// ExerciseType is the closed set of exercise categories.
type ExerciseType string

const (
	ExerciseTypeRegular            ExerciseType = "regular"
	ExerciseTypeWeightedBodyweight ExerciseType = "weighted_bodyweight"
	ExerciseTypeBodyweight         ExerciseType = "bodyweight"
	ExerciseTypeBandedResistance   ExerciseType = "banded_resistance"
	ExerciseTypeBandedAssistance   ExerciseType = "banded_assistance"
)

func (et ExerciseType) String() string {
	return string(et)
}

func (et ExerciseType) IsValid() bool {
	switch et {
	case ExerciseTypeRegular,
		ExerciseTypeWeightedBodyweight,
		ExerciseTypeBodyweight,
		ExerciseTypeBandedResistance,
		ExerciseTypeBandedAssistance:
		return true
	default:
		return false
	}
}

type Exercise struct {
	ID int64 `json:"id"`
	// OwnerUserID is nil for global exercises.
	OwnerUserID *int64       `json:"ownerUserId,omitempty"`
	Name        string       `json:"name"`
	Type        ExerciseType `json:"type"`
}

type Set struct {
	Weight    float64 `json:"weight"`
	Reps      int     `json:"reps"`
	BandColor string  `json:"bandColor,omitempty"`
}

// Entry is a single lift log of one user for one exercise.
// IsPR and PRCount are cache fields written by the recalculation pass,
// they are never read back as classification input.
type Entry struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"userId"`
	ExerciseID int64      `json:"exerciseId"`
	LoggedAt   time.Time  `json:"loggedAt"`
	Sets       []Set      `json:"sets"`
	IsPR       bool       `json:"isPr"`
	PRCount    int        `json:"prCount"`
	CreatedAt  time.Time  `json:"createdAt"`
	DeletedAt  *time.Time `json:"deletedAt,omitempty"`
}

func (e Entry) Timeline() TimelineKey {
	return TimelineKey{UserID: e.UserID, ExerciseID: e.ExerciseID}
}

func (e Entry) IsDeleted() bool {
	return e.DeletedAt != nil
}

// Before reports whether e comes before o in the timeline.
// Entries are ordered by LoggedAt, ties broken by ID.
func (e Entry) Before(o Entry) bool {
	return before(e.LoggedAt, e.ID, o.LoggedAt, o.ID)
}

func before(t1 time.Time, id1 int64, t2 time.Time, id2 int64) bool {
	if !t1.Equal(t2) {
		return t1.Before(t2)
	}
	return id1 < id2
}

// Validate rejects entries which cannot be classified.
func (e Entry) Validate() error {
	if len(e.Sets) == 0 {
		return fmt.Errorf("%w: entry %d has no sets", ErrInvalidEntry, e.ID)
	}
	for i, s := range e.Sets {
		if s.Reps <= 0 {
			return fmt.Errorf("%w: entry %d set %d has non-positive reps [%d]", ErrInvalidEntry, e.ID, i+1, s.Reps)
		}
		if s.Weight < 0 {
			return fmt.Errorf("%w: entry %d set %d has negative weight [%.2f]", ErrInvalidEntry, e.ID, i+1, s.Weight)
		}
	}
	return nil
}

// TimelineKey identifies the history of one user for one exercise.
type TimelineKey struct {
	UserID     int64 `json:"userId"`
	ExerciseID int64 `json:"exerciseId"`
}

func (k TimelineKey) String() string {
	return fmt.Sprintf("user:%d/exercise:%d", k.UserID, k.ExerciseID)
}

// SortTimeline sorts entries in place into timeline order.
func SortTimeline(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Before(entries[j])
	})
}
