package types

import "github.com/m-mizutani/goerr/v2"

// Error taxonomy shared across repository, usecase and controller layers.
// Every error returned from a state-changing operation wraps one of these
// so that callers can map it to a transport-level outcome.
var (
	ErrNotFound   = goerr.New("not found")
	ErrConflict   = goerr.New("conflict")
	ErrForbidden  = goerr.New("forbidden")
	ErrBadRequest = goerr.New("bad request")
)

// Context keys for error values
const (
	ReleaseIDKey   = "release_id"
	StoryIDKey     = "story_id"
	StepIDKey      = "step_id"
	ExecutionIDKey = "execution_id"
	TesterIDKey    = "tester_id"
	ProjectIDKey   = "project_id"
)
