package records

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Category is a personal record category.
type Category string

const (
	CategoryOneRepMax   Category = "one_rep_max"
	CategoryVolume      Category = "volume"
	CategoryRepSpecific Category = "rep_specific"
	CategoryHypertrophy Category = "hypertrophy"
)

func (c Category) IsValid() bool {
	switch c {
	case CategoryOneRepMax, CategoryVolume, CategoryRepSpecific, CategoryHypertrophy:
		return true
	default:
		return false
	}
}

func (c Category) order() int {
	switch c {
	case CategoryOneRepMax:
		return 0
	case CategoryVolume:
		return 1
	case CategoryRepSpecific:
		return 2
	default:
		return 3
	}
}

// Slot is one record line within a timeline: a category, plus the rep count
// for rep specific records, or the weight for hypertrophy records.
type Slot struct {
	Category Category `json:"category"`
	Reps     int      `json:"reps,omitempty"`
	Weight   float64  `json:"weight,omitempty"`
}

func RepSpecificSlot(reps int) Slot {
	return Slot{Category: CategoryRepSpecific, Reps: reps}
}

func HypertrophySlot(weight float64) Slot {
	return Slot{Category: CategoryHypertrophy, Weight: NormalizeWeight(weight)}
}

// Validate checks that the slot fields match its category.
func (s Slot) Validate() error {
	switch s.Category {
	case CategoryOneRepMax, CategoryVolume:
		if s.Reps != 0 || s.Weight != 0 {
			return fmt.Errorf("%s slot takes no reps or weight", s.Category)
		}
	case CategoryRepSpecific:
		if s.Reps < MinRepSpecificReps || s.Reps > MaxRepSpecificReps {
			return fmt.Errorf("rep specific slot reps must be in [%d, %d], got %d", MinRepSpecificReps, MaxRepSpecificReps, s.Reps)
		}
	case CategoryHypertrophy:
		if s.Weight < 0 || s.Weight != NormalizeWeight(s.Weight) {
			return fmt.Errorf("invalid hypertrophy slot weight: %v", s.Weight)
		}
	default:
		return fmt.Errorf("unknown record category: %s", s.Category)
	}
	return nil
}

func (s Slot) String() string {
	switch s.Category {
	case CategoryOneRepMax:
		return "one-rep max"
	case CategoryVolume:
		return "volume"
	case CategoryRepSpecific:
		return fmt.Sprintf("%d-rep max", s.Reps)
	case CategoryHypertrophy:
		return fmt.Sprintf("reps at %.2f", s.Weight)
	default:
		return string(s.Category)
	}
}

func (s Slot) less(o Slot) bool {
	if s.Category != o.Category {
		return s.Category.order() < o.Category.order()
	}
	if s.Reps != o.Reps {
		return s.Reps < o.Reps
	}
	return s.Weight < o.Weight
}

type RecordKey struct {
	TimelineKey
	Slot
}

func (k RecordKey) String() string {
	return fmt.Sprintf("%s/%s", k.TimelineKey, k.Slot)
}

// Record is one ledger row: the award of one slot to one entry, linked to
// the row it superseded. PreviousEntryID and PreviousValue are snapshots and
// stay readable after the previous row is gone.
type Record struct {
	ID              int64     `json:"id"`
	Key             RecordKey `json:"key"`
	EntryID         int64     `json:"entryId"`
	Value           float64   `json:"value"`
	PreviousID      *int64    `json:"previousId,omitempty"`
	PreviousEntryID *int64    `json:"previousEntryId,omitempty"`
	PreviousValue   *float64  `json:"previousValue,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// ledger is an indexed view over all rows of one timeline.
type ledger struct {
	records []Record
	bySlot  map[Slot][]Record
	byEntry map[int64]map[Slot]Record
}

// newLedger indexes records and verifies the chain invariants:
// at most one row per (entry, slot), and at most one chain head per slot.
func newLedger(records []Record) (*ledger, error) {
	l := &ledger{
		records: records,
		bySlot:  make(map[Slot][]Record),
		byEntry: make(map[int64]map[Slot]Record),
	}
	for _, r := range records {
		slots, ok := l.byEntry[r.EntryID]
		if !ok {
			slots = make(map[Slot]Record)
			l.byEntry[r.EntryID] = slots
		}
		if dup, ok := slots[r.Key.Slot]; ok {
			return nil, fmt.Errorf(
				"%w: entry %d holds rows %d and %d for %s",
				ErrInconsistentLedger, r.EntryID, dup.ID, r.ID, r.Key,
			)
		}
		slots[r.Key.Slot] = r
		l.bySlot[r.Key.Slot] = append(l.bySlot[r.Key.Slot], r)
	}

	for slot, rows := range l.bySlot {
		heads := chainHeads(rows)
		if len(heads) > 1 {
			return nil, fmt.Errorf(
				"%w: %d current rows for %s (rows %d and %d)",
				ErrInconsistentLedger, len(heads), slot, heads[0].ID, heads[1].ID,
			)
		}
	}

	return l, nil
}

// chainHeads returns the rows of one slot which no other row supersedes.
func chainHeads(rows []Record) []Record {
	superseded := make(map[int64]bool, len(rows))
	for _, r := range rows {
		if r.PreviousID != nil {
			superseded[*r.PreviousID] = true
		}
	}
	var heads []Record
	for _, r := range rows {
		if !superseded[r.ID] {
			heads = append(heads, r)
		}
	}
	sort.Slice(heads, func(i, j int) bool {
		return heads[i].ID < heads[j].ID
	})
	return heads
}

func (l *ledger) current() []Record {
	current := make([]Record, 0, len(l.bySlot))
	for _, rows := range l.bySlot {
		current = append(current, chainHeads(rows)...)
	}
	sort.Slice(current, func(i, j int) bool {
		return current[i].Key.Slot.less(current[j].Key.Slot)
	})
	return current
}

// chain returns the supersession chain of a slot, newest row first.
func (l *ledger) chain(slot Slot) []Record {
	rows := l.bySlot[slot]
	heads := chainHeads(rows)
	if len(heads) == 0 {
		return []Record{}
	}

	byID := make(map[int64]Record, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}

	chain := make([]Record, 0, len(rows))
	visited := make(map[int64]bool, len(rows))
	r := heads[0]
	for !visited[r.ID] {
		visited[r.ID] = true
		chain = append(chain, r)
		if r.PreviousID == nil {
			break
		}
		previous, ok := byID[*r.PreviousID]
		if !ok {
			break
		}
		r = previous
	}
	return chain
}

// sameRecord reports whether existing already is the row the pass wants
// to write, so it can be kept as is.
func sameRecord(existing, want Record) bool {
	return equalInt64Ptr(existing.PreviousID, want.PreviousID) &&
		equalInt64Ptr(existing.PreviousEntryID, want.PreviousEntryID) &&
		equalFloatPtr(existing.PreviousValue, want.PreviousValue) &&
		equalFloat(existing.Value, want.Value)
}

func equalInt64Ptr(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func equalFloatPtr(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return equalFloat(*a, *b)
}

func equalFloat(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
