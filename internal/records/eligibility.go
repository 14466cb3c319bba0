package records

// SupportsPRs reports whether entries of this exercise type take part in
// PR tracking. Exercises without mandatory external load (plain bodyweight,
// resistance and assistance bands) are excluded. Unknown types are treated
// as regular.
func (et ExerciseType) SupportsPRs() bool {
	switch et {
	case ExerciseTypeBodyweight,
		ExerciseTypeBandedResistance,
		ExerciseTypeBandedAssistance:
		return false
	default:
		return true
	}
}
