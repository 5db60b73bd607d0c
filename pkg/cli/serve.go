package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/meirborowski/veriflow/pkg/cli/config"
	httpctrl "github.com/meirborowski/veriflow/pkg/controller/http"
	"github.com/meirborowski/veriflow/pkg/controller/ws"
	"github.com/meirborowski/veriflow/pkg/service/worker"
	"github.com/meirborowski/veriflow/pkg/usecase"
	"github.com/meirborowski/veriflow/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdServe() *cli.Command {
	var addr string
	var noAuthn bool
	var repoCfg config.Repository
	var sessionCfg config.Session

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("VERIFLOW_ADDR"),
			Destination: &addr,
		},
		&cli.BoolFlag{
			Name:        "no-authn",
			Usage:       "Skip token validation and trust the presented identity (development only)",
			Category:    "Authentication",
			Sources:     cli.EnvVars("VERIFLOW_NO_AUTHN"),
			Destination: &noAuthn,
		},
	}
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, sessionCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start the coordinator server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := sessionCfg.Validate(); err != nil {
				return goerr.Wrap(err, "invalid session configuration")
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

			ucOpts := []usecase.Option{}
			if noAuthn {
				logging.Default().Warn("Running in no-authn mode (development only)")
				ucOpts = append(ucOpts, usecase.WithAuth(usecase.NewNoAuthnUseCase()))
			}

			uc := usecase.New(repo, ucOpts...)

			// Realtime gateway and its session liveness sweeper
			hub := ws.NewHub()
			gateway := ws.New(uc, hub,
				ws.WithSessionTimings(sessionCfg.HeartbeatInterval(), sessionCfg.SessionTimeout()),
			)
			if err := gateway.Registry().Start(ctx); err != nil {
				return goerr.Wrap(err, "failed to start session liveness sweeper")
			}

			// Orphan reclaimer frees story locks held by dead sessions
			reclaimer := worker.NewOrphanReclaimer(repo,
				sessionCfg.ReclaimInterval(), sessionCfg.ReclaimThreshold(),
				worker.WithReclaimHook(gateway.RefreshRooms),
			)
			if err := reclaimer.Start(ctx); err != nil {
				return goerr.Wrap(err, "failed to start orphan reclaimer")
			}

			httpHandler := httpctrl.New(uc,
				httpctrl.WithAuth(uc.Auth),
				httpctrl.WithWebSocket(gateway),
			)
			server := &http.Server{
				Addr:              addr,
				Handler:           httpHandler,
				ReadHeaderTimeout: 30 * time.Second,
			}

			// Setup signal handling for graceful shutdown
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server", "addr", addr)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)

				// Stop the workers before the listener so in-flight
				// cleanups still reach the repository
				reclaimer.Stop()
				gateway.Registry().Stop()

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				logging.Default().Info("Server shutdown completed")
				return nil
			}
		},
	}
}
