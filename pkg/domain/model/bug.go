package model

import "github.com/meirborowski/veriflow/pkg/domain/types"

// BugReport is the optional payload accompanying a fail verdict. Creating
// the actual bug record is delegated to an external collaborator; the
// coordinator only passes the payload through after the execution is
// durably finalized.
type BugReport struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Severity    string            `json:"severity,omitempty"`
	ExecutionID types.ExecutionID `json:"executionId,omitempty"`
	StoryID     types.StoryID     `json:"releaseStoryId,omitempty"`
	ReporterID  types.UserID      `json:"reporterId,omitempty"`
}
