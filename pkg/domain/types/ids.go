package types

import (
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

// ProjectID represents a unique identifier for a project
type ProjectID string

// ReleaseID represents a unique identifier for a release
type ReleaseID string

// StoryID represents a unique identifier for a release story snapshot
type StoryID string

// StepID represents a unique identifier for a step within a release story
type StepID string

// ExecutionID represents a unique identifier for an execution
type ExecutionID string

// UserID represents a unique identifier for a user (tester)
type UserID string

// NewExecutionID generates a new random ExecutionID
func NewExecutionID() ExecutionID {
	return ExecutionID(uuid.NewString())
}

func (x ProjectID) String() string   { return string(x) }
func (x ReleaseID) String() string   { return string(x) }
func (x StoryID) String() string     { return string(x) }
func (x StepID) String() string      { return string(x) }
func (x ExecutionID) String() string { return string(x) }
func (x UserID) String() string      { return string(x) }

// Validate checks if the ReleaseID is valid
func (x ReleaseID) Validate() error {
	if x == "" {
		return goerr.Wrap(ErrBadRequest, "release ID cannot be empty")
	}
	return nil
}

// Validate checks if the ExecutionID is valid
func (x ExecutionID) Validate() error {
	if x == "" {
		return goerr.Wrap(ErrBadRequest, "execution ID cannot be empty")
	}
	return nil
}

// Validate checks if the UserID is valid
func (x UserID) Validate() error {
	if x == "" {
		return goerr.Wrap(ErrBadRequest, "user ID cannot be empty")
	}
	return nil
}
