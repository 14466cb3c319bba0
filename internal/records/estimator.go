package records

// EstimateOneRepMax estimates the heaviest single repetition implied by
// lifting weight for reps, using the Epley formula weight * (1 + reps/30).
// A single rep is returned as is. Only used to order performances.
func EstimateOneRepMax(weight float64, reps int) float64 {
	if reps <= 1 {
		return weight
	}
	return weight * (1 + float64(reps)/30)
}
