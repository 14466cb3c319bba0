package records

import (
	"fmt"
	"sort"
)

const DefaultTolerance = 0.1

// Best is the best value of one record slot seen so far, and the entry holding it.
type Best struct {
	Value   float64 `json:"value"`
	EntryID int64   `json:"entryId"`
}

// PriorBests is the best-known state of a timeline at some point in it,
// i.e. the fold of the metrics of all entries before that point.
type PriorBests struct {
	Entries      int
	OneRepMax    Best
	Volume       Best
	WeightAtReps map[int]Best
	RepsAtWeight map[float64]Best
}

func NewPriorBests() *PriorBests {
	return &PriorBests{
		WeightAtReps: make(map[int]Best),
		RepsAtWeight: make(map[float64]Best),
	}
}

// Add folds the metrics of the next entry in the timeline into p.
// Exact ties keep the earlier holder.
func (p *PriorBests) Add(entryID int64, m Metrics) {
	if p.Entries == 0 || m.BestEstimatedMax > p.OneRepMax.Value {
		p.OneRepMax = Best{Value: m.BestEstimatedMax, EntryID: entryID}
	}
	if p.Entries == 0 || m.TotalVolume > p.Volume.Value {
		p.Volume = Best{Value: m.TotalVolume, EntryID: entryID}
	}
	for reps, w := range m.BestWeightPerReps {
		if b, ok := p.WeightAtReps[reps]; !ok || w > b.Value {
			p.WeightAtReps[reps] = Best{Value: w, EntryID: entryID}
		}
	}
	for w, reps := range m.MaxRepsPerWeight {
		if b, ok := p.RepsAtWeight[w]; !ok || float64(reps) > b.Value {
			p.RepsAtWeight[w] = Best{Value: float64(reps), EntryID: entryID}
		}
	}
	p.Entries++
}

// PriorBest is one slot of PriorBests, in serializable form.
type PriorBest struct {
	Slot
	Best
}

// List returns all prior bests, ordered by slot.
func (p *PriorBests) List() []PriorBest {
	if p.Entries == 0 {
		return []PriorBest{}
	}
	list := []PriorBest{
		{Slot: Slot{Category: CategoryOneRepMax}, Best: p.OneRepMax},
		{Slot: Slot{Category: CategoryVolume}, Best: p.Volume},
	}
	for _, reps := range sortedReps(p.WeightAtReps) {
		list = append(list, PriorBest{Slot: RepSpecificSlot(reps), Best: p.WeightAtReps[reps]})
	}
	for _, w := range sortedWeights(p.RepsAtWeight) {
		list = append(list, PriorBest{Slot: HypertrophySlot(w), Best: p.RepsAtWeight[w]})
	}
	return list
}

// Award is one satisfied record slot.
type Award struct {
	Slot
	Value float64 `json:"value"`
}

// Rejection explains why a considered record slot was not satisfied.
type Rejection struct {
	Slot
	Value           float64 `json:"value"`
	BestPrior       float64 `json:"bestPrior"`
	BlockingEntryID int64   `json:"blockingEntryId"`
	Reason          string  `json:"reason"`
}

type Classification struct {
	Awards     []Award     `json:"awards"`
	Rejections []Rejection `json:"rejections"`
}

func (c Classification) IsPR() bool {
	return len(c.Awards) > 0
}

// Count is the number of awarded record slots, cached on the entry as PRCount.
func (c Classification) Count() int {
	return len(c.Awards)
}

// Categories returns the distinct awarded categories.
func (c Classification) Categories() []Category {
	seen := make(map[Category]bool)
	var categories []Category
	for _, a := range c.Awards {
		if !seen[a.Category] {
			seen[a.Category] = true
			categories = append(categories, a.Category)
		}
	}
	sort.Slice(categories, func(i, j int) bool {
		return categories[i].order() < categories[j].order()
	})
	return categories
}

// Classifier decides which record slots an entry satisfies, given the bests
// of all strictly earlier entries. Values within the tolerance of the prior
// best are ties, and ties are never records unless there is no prior entry.
type Classifier struct {
	tolerance float64
}

func NewClassifier(tolerance float64) *Classifier {
	if tolerance < 0 {
		tolerance = 0
	}
	return &Classifier{
		tolerance: tolerance,
	}
}

func (c *Classifier) Classify(m Metrics, prior *PriorBests) Classification {
	cl := Classification{
		Awards:     []Award{},
		Rejections: []Rejection{},
	}
	first := prior.Entries == 0

	oneRepMax := Slot{Category: CategoryOneRepMax}
	if first || c.beats(m.BestEstimatedMax, prior.OneRepMax.Value) {
		cl.Awards = append(cl.Awards, Award{Slot: oneRepMax, Value: m.BestEstimatedMax})
	} else {
		cl.Rejections = append(cl.Rejections, rejection(oneRepMax, m.BestEstimatedMax, prior.OneRepMax))
	}

	volume := Slot{Category: CategoryVolume}
	if first || c.beats(m.TotalVolume, prior.Volume.Value) {
		cl.Awards = append(cl.Awards, Award{Slot: volume, Value: m.TotalVolume})
	} else {
		cl.Rejections = append(cl.Rejections, rejection(volume, m.TotalVolume, prior.Volume))
	}

	// every rep count stands on its own, the first time at N reps is a record
	// for N no matter what was lifted at other rep counts
	for _, reps := range sortedReps(m.BestWeightPerReps) {
		slot := RepSpecificSlot(reps)
		w := m.BestWeightPerReps[reps]
		best, seen := prior.WeightAtReps[reps]
		if !seen || c.beats(w, best.Value) {
			cl.Awards = append(cl.Awards, Award{Slot: slot, Value: w})
		} else {
			cl.Rejections = append(cl.Rejections, rejection(slot, w, best))
		}
	}

	// hypertrophy only considers weights which were already used before
	for _, w := range sortedWeights(m.MaxRepsPerWeight) {
		best, seen := prior.RepsAtWeight[w]
		if !seen {
			continue
		}
		slot := HypertrophySlot(w)
		reps := float64(m.MaxRepsPerWeight[w])
		if reps > best.Value {
			cl.Awards = append(cl.Awards, Award{Slot: slot, Value: reps})
		} else {
			cl.Rejections = append(cl.Rejections, rejection(slot, reps, best))
		}
	}

	return cl
}

func (c *Classifier) beats(value, best float64) bool {
	return value-best > c.tolerance
}

func rejection(slot Slot, value float64, best Best) Rejection {
	r := Rejection{
		Slot:            slot,
		Value:           value,
		BestPrior:       best.Value,
		BlockingEntryID: best.EntryID,
	}
	if slot.Category == CategoryHypertrophy {
		r.Reason = fmt.Sprintf(
			"%d reps at %.2f do not beat %d reps from entry #%d",
			int(value), slot.Weight, int(best.Value), best.EntryID,
		)
	} else {
		r.Reason = fmt.Sprintf(
			"%s %.1f does not beat %.1f from entry #%d",
			slot, value, best.Value, best.EntryID,
		)
	}
	return r
}
