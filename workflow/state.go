package workflow

// StepState represents the execution state of a step
type StepState int

const (
	// NotStarted indicates the step has been added but the sequence has not reached it
	NotStarted StepState = iota

	// Running indicates the step is currently executing
	Running

	// Skipped indicates the step was not run because a prerequisite did not
	// succeed or the context was cancelled
	Skipped

	// Completed indicates the step's Run function returned.
	// The step may have succeeded or failed - check the Error field
	Completed
)

// String returns a human-readable representation of the StepState
func (s StepState) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Running:
		return "running"
	case Skipped:
		return "skipped"
	case Completed:
		return "completed"
	default:
		return "unknown"
	}
}
