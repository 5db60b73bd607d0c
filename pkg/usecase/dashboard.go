package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/meirborowski/veriflow/pkg/domain/interfaces"
	"github.com/meirborowski/veriflow/pkg/domain/model"
	"github.com/meirborowski/veriflow/pkg/domain/types"
)

// DashboardUseCase computes per-story latest status and release-wide
// summary counts from execution history. Serves both the pull-style query
// and the realtime broadcast payloads.
type DashboardUseCase struct {
	repo interfaces.Repository
}

func NewDashboardUseCase(repo interfaces.Repository) *DashboardUseCase {
	return &DashboardUseCase{repo: repo}
}

// FindLatestByRelease returns the latest status of every story of the
// release plus the six-bucket summary. The buckets always sum to the story
// count.
func (uc *DashboardUseCase) FindLatestByRelease(ctx context.Context, releaseID types.ReleaseID) (*model.Dashboard, error) {
	if _, err := uc.repo.Release().Get(ctx, releaseID); err != nil {
		return nil, goerr.Wrap(err, "release not found", goerr.V(types.ReleaseIDKey, releaseID))
	}

	stories, err := uc.repo.Story().ListByRelease(ctx, releaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list release stories", goerr.V(types.ReleaseIDKey, releaseID))
	}
	execs, err := uc.repo.Execution().ListByRelease(ctx, releaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list executions", goerr.V(types.ReleaseIDKey, releaseID))
	}

	latestFinal := make(map[types.StoryID]*model.Execution)
	inProgress := make(map[types.StoryID]*model.Execution)
	for _, e := range execs {
		if e.IsInProgress() {
			inProgress[e.StoryID] = e
			continue
		}
		if cur, ok := latestFinal[e.StoryID]; !ok || e.Attempt > cur.Attempt {
			latestFinal[e.StoryID] = e
		}
	}

	dashboard := &model.Dashboard{
		Stories: make([]*model.StoryLatest, 0, len(stories)),
	}
	for _, story := range stories {
		entry := &model.StoryLatest{
			StoryID:  story.ID,
			Title:    story.Title,
			Priority: story.Priority,
			Status:   types.StoryStatusUntested,
		}
		if e, ok := latestFinal[story.ID]; ok {
			entry.Status = types.StoryStatus(e.Status)
			entry.Attempt = e.Attempt
			entry.LatestExecutionID = e.ID
			entry.TesterID = e.TesterID
		} else if e, ok := inProgress[story.ID]; ok {
			entry.Status = types.StoryStatusInProgress
			entry.Attempt = e.Attempt
			entry.LatestExecutionID = e.ID
			entry.TesterID = e.TesterID
		}
		dashboard.Stories = append(dashboard.Stories, entry)
		dashboard.Summary.Add(entry.Status)
	}

	if err := dashboard.Summary.Validate(); err != nil {
		return nil, goerr.Wrap(err, "dashboard summary invariant violated", goerr.V(types.ReleaseIDKey, releaseID))
	}

	return dashboard, nil
}

// GetDashboardSummary is the summary half of FindLatestByRelease, used for
// the lightweight broadcast after every state-changing event.
func (uc *DashboardUseCase) GetDashboardSummary(ctx context.Context, releaseID types.ReleaseID) (*model.DashboardSummary, error) {
	dashboard, err := uc.FindLatestByRelease(ctx, releaseID)
	if err != nil {
		return nil, err
	}
	return &dashboard.Summary, nil
}

// GetExecutionHistory returns the release's executions, newest first, with
// optional story/status filters and pagination.
func (uc *DashboardUseCase) GetExecutionHistory(ctx context.Context, releaseID types.ReleaseID, opts ...interfaces.ListExecutionOption) ([]*model.Execution, error) {
	if _, err := uc.repo.Release().Get(ctx, releaseID); err != nil {
		return nil, goerr.Wrap(err, "release not found", goerr.V(types.ReleaseIDKey, releaseID))
	}
	return uc.repo.Execution().ListByRelease(ctx, releaseID, opts...)
}

// ExecutionDetail is the full pull-style view of one execution
type ExecutionDetail struct {
	Execution  *model.Execution    `json:"execution"`
	Story      *model.ReleaseStory `json:"story"`
	TesterName string              `json:"testerName"`
}

// GetExecutionDetail returns one execution with its step results, story
// and tester name.
func (uc *DashboardUseCase) GetExecutionDetail(ctx context.Context, executionID types.ExecutionID) (*ExecutionDetail, error) {
	exec, err := uc.repo.Execution().Get(ctx, executionID)
	if err != nil {
		return nil, goerr.Wrap(err, "execution not found", goerr.V(types.ExecutionIDKey, executionID))
	}

	story, err := uc.repo.Story().Get(ctx, exec.StoryID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get release story", goerr.V(types.StoryIDKey, exec.StoryID))
	}

	detail := &ExecutionDetail{
		Execution: exec,
		Story:     story,
	}
	// Tester records live outside the coordinator; tolerate their absence.
	if user, err := uc.repo.User().Get(ctx, exec.TesterID); err == nil {
		detail.TesterName = user.Name
	}

	return detail, nil
}
