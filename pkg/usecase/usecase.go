package usecase

import (
	"github.com/meirborowski/veriflow/pkg/domain/interfaces"
)

type UseCases struct {
	repo        interfaces.Repository
	bugReporter interfaces.BugReporter

	Assignment *AssignmentUseCase
	Recorder   *RecorderUseCase
	Dashboard  *DashboardUseCase
	Session    *SessionUseCase
	Auth       AuthUseCaseInterface
}

type Option func(*UseCases)

// WithBugReporter sets the external collaborator that files bug records
// from failed executions
func WithBugReporter(reporter interfaces.BugReporter) Option {
	return func(uc *UseCases) {
		uc.bugReporter = reporter
	}
}

func WithAuth(auth AuthUseCaseInterface) Option {
	return func(uc *UseCases) {
		uc.Auth = auth
	}
}

func New(repo interfaces.Repository, opts ...Option) *UseCases {
	uc := &UseCases{
		repo: repo,
	}

	for _, opt := range opts {
		opt(uc)
	}

	uc.Assignment = NewAssignmentUseCase(repo)
	uc.Recorder = NewRecorderUseCase(repo, uc.bugReporter)
	uc.Dashboard = NewDashboardUseCase(repo)
	uc.Session = NewSessionUseCase(repo)
	if uc.Auth == nil {
		uc.Auth = NewAuthUseCase(repo)
	}

	return uc
}
