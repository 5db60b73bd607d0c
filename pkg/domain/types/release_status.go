package types

import "github.com/m-mizutani/goerr/v2"

// ReleaseStatus represents the status of a release
type ReleaseStatus string

const (
	// ReleaseStatusOpen means the release's story set may still change.
	ReleaseStatusOpen ReleaseStatus = "OPEN"
	// ReleaseStatusClosed means the story snapshot is frozen and test
	// sessions may run against it.
	ReleaseStatusClosed ReleaseStatus = "CLOSED"
)

// IsValid checks if the release status is valid
func (s ReleaseStatus) IsValid() bool {
	switch s {
	case ReleaseStatusOpen,
		ReleaseStatusClosed:
		return true
	default:
		return false
	}
}

// String returns the string representation of the release status
func (s ReleaseStatus) String() string {
	return string(s)
}

// ParseReleaseStatus parses a string into a ReleaseStatus
func ParseReleaseStatus(s string) (ReleaseStatus, error) {
	status := ReleaseStatus(s)
	if !status.IsValid() {
		return "", goerr.Wrap(ErrBadRequest, "invalid release status", goerr.V("status", s))
	}
	return status, nil
}
