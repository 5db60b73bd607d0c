package types

import "github.com/m-mizutani/goerr/v2"

// ExecutionStatus represents the status of an execution
type ExecutionStatus string

const (
	ExecutionStatusInProgress      ExecutionStatus = "in-progress"
	ExecutionStatusPass            ExecutionStatus = "pass"
	ExecutionStatusFail            ExecutionStatus = "fail"
	ExecutionStatusPartiallyTested ExecutionStatus = "partially-tested"
	ExecutionStatusCantBeTested    ExecutionStatus = "cant-be-tested"
)

// AllExecutionStatuses returns all valid execution statuses
func AllExecutionStatuses() []ExecutionStatus {
	return []ExecutionStatus{
		ExecutionStatusInProgress,
		ExecutionStatusPass,
		ExecutionStatusFail,
		ExecutionStatusPartiallyTested,
		ExecutionStatusCantBeTested,
	}
}

// IsValid checks if the execution status is valid
func (s ExecutionStatus) IsValid() bool {
	switch s {
	case ExecutionStatusInProgress,
		ExecutionStatusPass,
		ExecutionStatusFail,
		ExecutionStatusPartiallyTested,
		ExecutionStatusCantBeTested:
		return true
	default:
		return false
	}
}

// IsFinal checks if the status is a terminal verdict
func (s ExecutionStatus) IsFinal() bool {
	return s.IsValid() && s != ExecutionStatusInProgress
}

// BlocksAssignment reports whether an execution with this status removes
// its story from the assignment pool. pass and cant-be-tested are terminal
// exclusions, in-progress means another tester holds the story. fail and
// partially-tested keep the story eligible for re-test.
func (s ExecutionStatus) BlocksAssignment() bool {
	switch s {
	case ExecutionStatusInProgress,
		ExecutionStatusPass,
		ExecutionStatusCantBeTested:
		return true
	default:
		return false
	}
}

// String returns the string representation of the execution status
func (s ExecutionStatus) String() string {
	return string(s)
}

// ParseExecutionStatus parses a string into an ExecutionStatus
func ParseExecutionStatus(s string) (ExecutionStatus, error) {
	status := ExecutionStatus(s)
	if !status.IsValid() {
		return "", goerr.Wrap(ErrBadRequest, "invalid execution status", goerr.V("status", s))
	}
	return status, nil
}
