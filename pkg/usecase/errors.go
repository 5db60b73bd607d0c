package usecase

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/meirborowski/veriflow/pkg/domain/types"
)

// Sentinel errors for the use case layer. All wrap the domain taxonomy so
// transport layers can map them without knowing the message.
var (
	ErrReleaseNotFound   = goerr.Wrap(types.ErrNotFound, "release not found")
	ErrExecutionNotFound = goerr.Wrap(types.ErrNotFound, "execution not found")
	ErrStepNotFound      = goerr.Wrap(types.ErrNotFound, "step not found for this execution")
	ErrNotYourExecution  = goerr.Wrap(types.ErrForbidden, "not your execution")
	ErrNotProjectMember  = goerr.Wrap(types.ErrForbidden, "not a member of the project")
	ErrNotInProgress     = goerr.Wrap(types.ErrConflict, "execution is not in progress")
	ErrInvalidVerdict    = goerr.Wrap(types.ErrConflict, "invalid final status")
)
