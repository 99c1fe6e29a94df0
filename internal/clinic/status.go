package clinic

// EffectiveStatus derives the displayed status of a visit. A recorded
// diagnosis completes the visit even if the status write never landed,
// unless the visit was canceled.
func EffectiveStatus(v Visit, hasDiagnosis bool) VisitStatus {
	if hasDiagnosis && v.Status != StatusCanceled {
		return StatusCompleted
	}
	return v.Status
}
