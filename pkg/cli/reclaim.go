package cli

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/meirborowski/veriflow/pkg/cli/config"
	"github.com/meirborowski/veriflow/pkg/service/worker"
	"github.com/meirborowski/veriflow/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// cmdReclaim runs a single orphan reclamation sweep and exits. Useful
// for operators after an ungraceful shutdown, or from a cron job when the
// server's own reclaimer is disabled.
func cmdReclaim() *cli.Command {
	var threshold time.Duration
	var repoCfg config.Repository

	flags := []cli.Flag{
		&cli.DurationFlag{
			Name:        "threshold",
			Usage:       "Reclaim in-progress executions older than this",
			Value:       2 * time.Minute,
			Sources:     cli.EnvVars("VERIFLOW_RECLAIM_THRESHOLD"),
			Destination: &threshold,
		},
	}
	flags = append(flags, repoCfg.Flags()...)

	return &cli.Command{
		Name:  "reclaim",
		Usage: "Run a one-shot sweep of orphaned in-progress executions",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logging.Default().Error("failed to close repository", "error", err.Error())
				}
			}()

			reclaimer := worker.NewOrphanReclaimer(repo, time.Minute, threshold)
			if err := reclaimer.Sweep(ctx); err != nil {
				return goerr.Wrap(err, "reclamation sweep failed")
			}

			return nil
		},
	}
}
