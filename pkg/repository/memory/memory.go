package memory

import (
	"context"
	"sync"
	"time"

	"github.com/meirborowski/veriflow/pkg/domain/interfaces"
	"github.com/meirborowski/veriflow/pkg/domain/model"
	"github.com/meirborowski/veriflow/pkg/domain/model/auth"
	"github.com/meirborowski/veriflow/pkg/domain/types"
)

// Memory is the in-memory repository backend used for tests and local
// development. All tables share one mutex, so every multi-entity operation
// (assignment, finalize, cleanup) is a single critical section, the
// in-memory equivalent of the Firestore backend's transactions.
type Memory struct {
	store     *store
	project   *projectRepository
	user      *userRepository
	release   *releaseRepository
	story     *storyRepository
	execution *executionRepository
	tokens    *tokenStore
}

var _ interfaces.Repository = &Memory{}

// store holds all tables behind a single mutex
type store struct {
	mu         sync.RWMutex
	projects   map[types.ProjectID]*model.Project
	users      map[types.UserID]*model.User
	releases   map[types.ReleaseID]*model.Release
	stories    map[types.StoryID]*model.ReleaseStory
	executions map[types.ExecutionID]*model.Execution
	storySeq   int
}

func New() *Memory {
	s := &store{
		projects:   make(map[types.ProjectID]*model.Project),
		users:      make(map[types.UserID]*model.User),
		releases:   make(map[types.ReleaseID]*model.Release),
		stories:    make(map[types.StoryID]*model.ReleaseStory),
		executions: make(map[types.ExecutionID]*model.Execution),
	}

	return &Memory{
		store:     s,
		project:   &projectRepository{store: s},
		user:      &userRepository{store: s},
		release:   &releaseRepository{store: s},
		story:     &storyRepository{store: s},
		execution: &executionRepository{store: s},
		tokens:    newTokenStore(),
	}
}

func (m *Memory) Project() interfaces.ProjectRepository     { return m.project }
func (m *Memory) User() interfaces.UserRepository           { return m.user }
func (m *Memory) Release() interfaces.ReleaseRepository     { return m.release }
func (m *Memory) Story() interfaces.StoryRepository         { return m.story }
func (m *Memory) Execution() interfaces.ExecutionRepository { return m.execution }

func (m *Memory) PutToken(ctx context.Context, token *auth.Token) error {
	return m.tokens.Put(ctx, token)
}

func (m *Memory) GetToken(ctx context.Context, tokenID auth.TokenID) (*auth.Token, error) {
	return m.tokens.Get(ctx, tokenID)
}

func (m *Memory) DeleteToken(ctx context.Context, tokenID auth.TokenID) error {
	return m.tokens.Delete(ctx, tokenID)
}

func (m *Memory) Close() error {
	return nil
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
