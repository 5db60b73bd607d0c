package model

import (
	"time"

	"github.com/meirborowski/veriflow/pkg/domain/types"
)

// Release represents a release of a project. The coordinator only runs
// test sessions against closed releases, whose story snapshot is frozen.
type Release struct {
	ID        types.ReleaseID
	ProjectID types.ProjectID
	Name      string
	Status    types.ReleaseStatus
	CreatedAt time.Time
	ClosedAt  *time.Time
}

// IsClosed reports whether the release story set is frozen
func (r *Release) IsClosed() bool {
	return r.Status == types.ReleaseStatusClosed
}
