package records

import (
	"math"
	"sort"
)

const (
	MinRepSpecificReps = 1
	MaxRepSpecificReps = 10
)

// Metrics are the comparable values derived from the sets of one entry.
type Metrics struct {
	BestEstimatedMax float64
	TotalVolume      float64
	// BestWeightPerReps holds the heaviest weight lifted at exactly N reps,
	// for N in [MinRepSpecificReps, MaxRepSpecificReps].
	BestWeightPerReps map[int]float64
	// MaxRepsPerWeight holds the most reps done in one set at a given
	// (normalized) weight.
	MaxRepsPerWeight map[float64]int
}

// ExtractMetrics derives the entry metrics from already validated sets.
func ExtractMetrics(sets []Set) Metrics {
	m := Metrics{
		BestWeightPerReps: make(map[int]float64),
		MaxRepsPerWeight:  make(map[float64]int),
	}

	for _, s := range sets {
		if est := EstimateOneRepMax(s.Weight, s.Reps); est > m.BestEstimatedMax {
			m.BestEstimatedMax = est
		}
		m.TotalVolume += s.Weight * float64(s.Reps)

		if s.Reps >= MinRepSpecificReps && s.Reps <= MaxRepSpecificReps {
			if w, ok := m.BestWeightPerReps[s.Reps]; !ok || s.Weight > w {
				m.BestWeightPerReps[s.Reps] = s.Weight
			}
		}

		w := NormalizeWeight(s.Weight)
		if s.Reps > m.MaxRepsPerWeight[w] {
			m.MaxRepsPerWeight[w] = s.Reps
		}
	}

	return m
}

// NormalizeWeight rounds a weight to 0.01, so it can be used as an exact key.
func NormalizeWeight(weight float64) float64 {
	return math.Round(weight*100) / 100
}

// WeightReps is a single (weight, reps) pair, used in serialized snapshots.
type WeightReps struct {
	Weight float64 `json:"weight"`
	Reps   int     `json:"reps"`
}

// MetricsSnapshot is the serializable form of Metrics, stored with audit records.
type MetricsSnapshot struct {
	BestEstimatedMax  float64         `json:"bestEstimatedMax"`
	TotalVolume       float64         `json:"totalVolume"`
	BestWeightPerReps map[int]float64 `json:"bestWeightPerReps"`
	MaxRepsPerWeight  []WeightReps    `json:"maxRepsPerWeight"`
}

func (m Metrics) Snapshot() MetricsSnapshot {
	snapshot := MetricsSnapshot{
		BestEstimatedMax:  m.BestEstimatedMax,
		TotalVolume:       m.TotalVolume,
		BestWeightPerReps: make(map[int]float64, len(m.BestWeightPerReps)),
		MaxRepsPerWeight:  make([]WeightReps, 0, len(m.MaxRepsPerWeight)),
	}
	for reps, w := range m.BestWeightPerReps {
		snapshot.BestWeightPerReps[reps] = w
	}
	for _, w := range sortedWeights(m.MaxRepsPerWeight) {
		snapshot.MaxRepsPerWeight = append(snapshot.MaxRepsPerWeight, WeightReps{
			Weight: w,
			Reps:   m.MaxRepsPerWeight[w],
		})
	}
	return snapshot
}

func sortedReps[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func sortedWeights[V any](m map[float64]V) []float64 {
	keys := make([]float64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Float64s(keys)
	return keys
}
