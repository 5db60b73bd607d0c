package model

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/meirborowski/veriflow/pkg/domain/types"
)

// StoryLatest is the latest aggregated state of one release story
type StoryLatest struct {
	StoryID           types.StoryID     `json:"releaseStoryId"`
	Title             string            `json:"title"`
	Priority          types.Priority    `json:"priority"`
	Status            types.StoryStatus `json:"status"`
	Attempt           int               `json:"attempt"`
	LatestExecutionID types.ExecutionID `json:"latestExecutionId,omitempty"`
	TesterID          types.UserID      `json:"testerId,omitempty"`
}

// DashboardSummary holds per-status story counts for a release. The six
// buckets always sum to Total.
type DashboardSummary struct {
	Untested        int `json:"untested"`
	InProgress      int `json:"inProgress"`
	Pass            int `json:"pass"`
	Fail            int `json:"fail"`
	PartiallyTested int `json:"partiallyTested"`
	CantBeTested    int `json:"cantBeTested"`
	Total           int `json:"total"`
}

// Add counts one story under the given status bucket
func (s *DashboardSummary) Add(status types.StoryStatus) {
	switch status {
	case types.StoryStatusUntested:
		s.Untested++
	case types.StoryStatusInProgress:
		s.InProgress++
	case types.StoryStatusPass:
		s.Pass++
	case types.StoryStatusFail:
		s.Fail++
	case types.StoryStatusPartiallyTested:
		s.PartiallyTested++
	case types.StoryStatusCantBeTested:
		s.CantBeTested++
	}
	s.Total++
}

// Validate checks the bucket-sum invariant
func (s *DashboardSummary) Validate() error {
	sum := s.Untested + s.InProgress + s.Pass + s.Fail + s.PartiallyTested + s.CantBeTested
	if sum != s.Total {
		return goerr.New("dashboard summary buckets do not sum to total",
			goerr.V("sum", sum), goerr.V("total", s.Total))
	}
	return nil
}

// Dashboard is the full pull-style dashboard payload for a release
type Dashboard struct {
	Stories []*StoryLatest   `json:"stories"`
	Summary DashboardSummary `json:"summary"`
}
