package ws

import (
	"encoding/json"

	"github.com/meirborowski/veriflow/pkg/domain/model"
	"github.com/meirborowski/veriflow/pkg/domain/types"
)

// Command types accepted from clients
const (
	CommandJoinSession  = "join-session"
	CommandLeaveSession = "leave-session"
	CommandRequestWork  = "request-work"
	CommandUpdateStep   = "update-step"
	CommandSubmitResult = "submit-result"
	CommandHeartbeat    = "heartbeat"
)

// Event types pushed to clients
const (
	EventTesterJoined    = "tester-joined"
	EventTesterLeft      = "tester-left"
	EventStoryAssigned   = "story-assigned"
	EventPoolEmpty       = "pool-empty"
	EventStepUpdated     = "step-updated"
	EventResultSubmitted = "result-submitted"
	EventStatusChanged   = "status-changed"
	EventDashboardUpdate = "dashboard-update"
	EventError           = "error"
)

// Command is the envelope of every client-to-server message
type Command struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Event is the envelope of every server-to-client message
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type joinSessionPayload struct {
	ReleaseID types.ReleaseID `json:"releaseId"`
}

type updateStepPayload struct {
	ExecutionID types.ExecutionID `json:"executionId"`
	StepID      types.StepID      `json:"stepId"`
	Status      types.StepStatus  `json:"status"`
	Comment     string            `json:"comment,omitempty"`
}

type bugPayload struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type submitResultPayload struct {
	ExecutionID types.ExecutionID     `json:"executionId"`
	Status      types.ExecutionStatus `json:"status"`
	Comment     string                `json:"comment,omitempty"`
	Bug         *bugPayload           `json:"bug,omitempty"`
}

type testerPresencePayload struct {
	TesterID        types.UserID  `json:"testerId"`
	Name            string        `json:"name,omitempty"`
	Reason          string        `json:"reason,omitempty"`
	UnlockedStoryID types.StoryID `json:"unlockedStoryId,omitempty"`
}

type storyAssignedPayload struct {
	Execution *model.Execution    `json:"execution"`
	Story     *model.ReleaseStory `json:"story"`
}

type stepUpdatedPayload struct {
	ExecutionID types.ExecutionID `json:"executionId"`
	StoryID     types.StoryID     `json:"storyId"`
	StepID      types.StepID      `json:"stepId"`
	Status      types.StepStatus  `json:"status"`
	TesterID    types.UserID      `json:"testerId"`
}

type resultSubmittedPayload struct {
	ExecutionID types.ExecutionID     `json:"executionId"`
	StoryID     types.StoryID         `json:"storyId"`
	Status      types.ExecutionStatus `json:"status"`
	Attempt     int                   `json:"attempt"`
	TesterID    types.UserID          `json:"testerId"`
}

type statusChangedPayload struct {
	StoryID  types.StoryID     `json:"storyId"`
	Status   types.StoryStatus `json:"status"`
	Attempt  int               `json:"attempt,omitempty"`
	TesterID types.UserID      `json:"testerId,omitempty"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
