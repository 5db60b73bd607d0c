package cli

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/meirborowski/veriflow/pkg/cli/config"
	"github.com/meirborowski/veriflow/pkg/domain/model"
	"github.com/meirborowski/veriflow/pkg/domain/types"
	"github.com/meirborowski/veriflow/pkg/usecase"
	"github.com/meirborowski/veriflow/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// cmdSeed loads supporting entities from a TOML file into the repository
// and issues an access token per seeded tester. The coordinator does not
// manage projects, releases or stories itself; in production they arrive
// from the upstream test management system, and this command stands in
// for that feed during development and staging.
func cmdSeed() *cli.Command {
	var path string
	var issueTokens bool
	var repoCfg config.Repository

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "file",
			Aliases:     []string{"f"},
			Usage:       "Path to the TOML seed file",
			Required:    true,
			Sources:     cli.EnvVars("VERIFLOW_SEED_FILE"),
			Destination: &path,
		},
		&cli.BoolFlag{
			Name:        "issue-tokens",
			Usage:       "Issue an access token for every seeded user and print the credentials",
			Value:       true,
			Destination: &issueTokens,
		},
	}
	flags = append(flags, repoCfg.Flags()...)

	return &cli.Command{
		Name:  "seed",
		Usage: "Load projects, releases and story snapshots from a TOML file",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			seed, err := config.LoadSeed(path)
			if err != nil {
				return err
			}

			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logging.Default().Error("failed to close repository", "error", err.Error())
				}
			}()

			now := time.Now().UTC()

			members := make([]types.UserID, len(seed.Project.Members))
			for i, m := range seed.Project.Members {
				members[i] = types.UserID(m)
			}
			project := &model.Project{
				ID:        types.ProjectID(seed.Project.ID),
				Name:      seed.Project.Name,
				MemberIDs: members,
				CreatedAt: now,
			}
			if err := repo.Project().Put(ctx, project); err != nil {
				return goerr.Wrap(err, "failed to seed project", goerr.V(types.ProjectIDKey, project.ID))
			}

			for _, u := range seed.Users {
				user := &model.User{
					ID:    types.UserID(u.ID),
					Name:  u.Name,
					Email: u.Email,
				}
				if err := repo.User().Put(ctx, user); err != nil {
					return goerr.Wrap(err, "failed to seed user", goerr.V(types.TesterIDKey, user.ID))
				}
			}

			for _, r := range seed.Releases {
				status, err := types.ParseReleaseStatus(r.Status)
				if err != nil {
					return goerr.Wrap(err, "invalid release status in seed", goerr.V(types.ReleaseIDKey, r.ID))
				}
				release := &model.Release{
					ID:        types.ReleaseID(r.ID),
					ProjectID: project.ID,
					Name:      r.Name,
					Status:    status,
					CreatedAt: now,
				}
				if release.IsClosed() {
					closedAt := now
					release.ClosedAt = &closedAt
				}
				if err := repo.Release().Put(ctx, release); err != nil {
					return goerr.Wrap(err, "failed to seed release", goerr.V(types.ReleaseIDKey, release.ID))
				}
			}

			for seq, s := range seed.Stories {
				priority, err := types.ParsePriority(s.Priority)
				if err != nil {
					return goerr.Wrap(err, "invalid priority in seed", goerr.V(types.StoryIDKey, s.ID))
				}

				steps := make([]model.Step, len(s.Steps))
				for i, step := range s.Steps {
					steps[i] = model.Step{
						ID:          types.StepID(step.ID),
						Order:       i + 1,
						Instruction: step.Instruction,
					}
				}

				story := &model.ReleaseStory{
					ID:          types.StoryID(s.ID),
					ReleaseID:   types.ReleaseID(s.Release),
					Seq:         seq + 1,
					Title:       s.Title,
					Description: s.Description,
					Priority:    priority,
					Steps:       steps,
					CreatedAt:   now,
				}
				if err := repo.Story().Put(ctx, story); err != nil {
					return goerr.Wrap(err, "failed to seed story", goerr.V(types.StoryIDKey, story.ID))
				}
			}

			logging.Default().Info("seed completed",
				"project", project.ID,
				"users", len(seed.Users),
				"releases", len(seed.Releases),
				"stories", len(seed.Stories),
			)

			if issueTokens {
				authUC := usecase.NewAuthUseCase(repo)
				for _, u := range seed.Users {
					token, err := authUC.IssueToken(ctx, types.UserID(u.ID), u.Name, u.Email)
					if err != nil {
						return goerr.Wrap(err, "failed to issue token", goerr.V(types.TesterIDKey, u.ID))
					}
					// Printed once on purpose; the secret is never logged again
					logging.Default().Info("access token issued",
						"tester_id", u.ID,
						"credential", string(token.ID)+":"+string(token.Secret),
					)
				}
			}

			return nil
		},
	}
}
