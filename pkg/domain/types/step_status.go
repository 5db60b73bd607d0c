package types

import "github.com/m-mizutani/goerr/v2"

// StepStatus represents the recorded outcome of a single step
type StepStatus string

const (
	StepStatusPass    StepStatus = "pass"
	StepStatusFail    StepStatus = "fail"
	StepStatusSkipped StepStatus = "skipped"
)

// IsValid checks if the step status is valid
func (s StepStatus) IsValid() bool {
	switch s {
	case StepStatusPass,
		StepStatusFail,
		StepStatusSkipped:
		return true
	default:
		return false
	}
}

// String returns the string representation of the step status
func (s StepStatus) String() string {
	return string(s)
}

// ParseStepStatus parses a string into a StepStatus
func ParseStepStatus(s string) (StepStatus, error) {
	status := StepStatus(s)
	if !status.IsValid() {
		return "", goerr.Wrap(ErrBadRequest, "invalid step status", goerr.V("status", s))
	}
	return status, nil
}
