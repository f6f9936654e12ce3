package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/okian/xpand/internal/adapters/http/api"
	"github.com/okian/xpand/internal/adapters/http/swagger"
	"github.com/okian/xpand/internal/scheduler"
	"github.com/okian/xpand/pkg/logger"
	"github.com/spf13/cobra"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Minute // admin refresh runs inline
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the recurring refresh and SLA jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return serve(ctx, c)
		},
	}
}

func serve(ctx context.Context, c *cli) error {
	log := logger.Get()
	comps, err := wire(ctx, c.cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := comps.Close(); err != nil {
			log.Error(ctx, "close components", logger.Error(err))
		}
	}()

	runner := scheduler.New(scheduler.WithLogger(log))
	if c.cfg.SchedulingEnabled {
		if err := registerJobs(runner, comps, c); err != nil {
			return err
		}
		if err := runner.Start(ctx); err != nil {
			return err
		}
	} else {
		log.Info(ctx, "scheduling disabled")
	}

	mux := http.NewServeMux()
	swagger.Register(mux)
	api.NewServer(comps.service).Register(mux)

	srv := &http.Server{
		Addr:              c.cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", c.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	runner.Wait()

	log.Info(ctx, "server stopped")
	return nil
}

// registerJobs adds the daily refresh and the standalone SLA sweep.
func registerJobs(r *scheduler.Runner, comps *components, c *cli) error {
	if err := r.Register(scheduler.Job{
		Name:     "refresh",
		Interval: c.cfg.RefreshInterval,
		Handler: func(ctx context.Context) error {
			_, err := comps.service.RunRefresh(ctx)
			return err
		},
	}); err != nil {
		return err
	}
	return r.Register(scheduler.Job{
		Name:     "sla_sweep",
		Interval: c.cfg.SLAInterval,
		Handler: func(ctx context.Context) error {
			_, err := comps.service.RunSweep(ctx)
			return err
		},
	})
}
