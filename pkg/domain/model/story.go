package model

import (
	"sort"
	"time"

	"github.com/meirborowski/veriflow/pkg/domain/types"
)

// Step is one instruction of a release story's test script
type Step struct {
	ID          types.StepID `json:"id"`
	Order       int          `json:"order"`
	Instruction string       `json:"instruction"`
}

// ReleaseStory is an immutable snapshot of a user story taken when its
// release was closed. Never mutated by the coordinator.
type ReleaseStory struct {
	ID          types.StoryID   `json:"id"`
	ReleaseID   types.ReleaseID `json:"releaseId"`
	Seq         int             `json:"seq"` // insertion order within the snapshot, tie-break for equal priority
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Priority    types.Priority  `json:"priority"`
	Steps       []Step          `json:"steps"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Step returns the step with the given ID, or nil if the story has no such step
func (s *ReleaseStory) Step(stepID types.StepID) *Step {
	for i := range s.Steps {
		if s.Steps[i].ID == stepID {
			return &s.Steps[i]
		}
	}
	return nil
}

// OrderedSteps returns the steps sorted by their order field
func (s *ReleaseStory) OrderedSteps() []Step {
	steps := make([]Step, len(s.Steps))
	copy(steps, s.Steps)
	sort.Slice(steps, func(i, j int) bool {
		return steps[i].Order < steps[j].Order
	})
	return steps
}
