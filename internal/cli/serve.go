package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/isdelr/schedpanel/internal/api"
	"github.com/isdelr/schedpanel/internal/auth"
	"github.com/isdelr/schedpanel/internal/config"
	"github.com/isdelr/schedpanel/internal/engine"
	"github.com/isdelr/schedpanel/internal/events"
	"github.com/isdelr/schedpanel/internal/logger"
	"github.com/isdelr/schedpanel/internal/metrics"
	"github.com/isdelr/schedpanel/internal/monitoring"
	"github.com/isdelr/schedpanel/internal/services"
	"github.com/isdelr/schedpanel/internal/websocket"
)

const shutdownTimeout = 5 * time.Second

// sweepInterval sweeps a few times per retention window, at most once a minute.
func sweepInterval(retention time.Duration) time.Duration {
	interval := retention / 4
	switch {
	case interval < time.Second:
		return time.Second
	case interval > time.Minute:
		return time.Minute
	}
	return interval
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bundled scheduler and the panel HTTP server",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	addServeFlags(cmd)
	return cmd
}

func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().Int("port", 0, "HTTP port (overrides PORT)")
	cmd.Flags().Bool("read-only", false, "serve queries only (overrides READ_ONLY)")
	cmd.Flags().String("jobs-file", "", "YAML file of jobs to seed (overrides JOBS_FILE)")
	cmd.Flags().String("log-level", "", "log level (overrides LOG_LEVEL)")
}

// applyFlags lets explicitly set flags win over the environment.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	var err error
	if flags.Changed("port") {
		if cfg.ServerPort, err = flags.GetInt("port"); err != nil {
			return err
		}
	}
	if flags.Changed("read-only") {
		if cfg.ReadOnly, err = flags.GetBool("read-only"); err != nil {
			return err
		}
	}
	if flags.Changed("jobs-file") {
		if cfg.JobsFile, err = flags.GetString("jobs-file"); err != nil {
			return err
		}
	}
	if flags.Changed("log-level") {
		if cfg.LogLevel, err = flags.GetString("log-level"); err != nil {
			return err
		}
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}
	logger.Init(cfg.LogLevel, cfg.LogJSON)
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return serve(ctx, cfg)
}

func serve(ctx context.Context, cfg *config.Config) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	// Metrics
	var (
		sink           metrics.Sink = metrics.NewNoopSink()
		metricsHandler http.Handler
	)
	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		sink = metrics.NewPrometheusSink(reg)
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	// Shared event store
	shared, closeShared, err := openSharedStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open shared event store: %w", err)
	}
	defer closeShared()

	// Live feed and event hub
	feed := websocket.NewHub(sink)
	go feed.Run(ctx)

	hub, err := events.NewHub(events.Options{
		MaxCapacity: cfg.EventsMaxCapacity,
		Retention:   cfg.EventsRetention,
		Shared:      shared,
		Timeout:     cfg.ClusterTimeout,
		Metrics:     sink,
		Publisher:   feed,
	})
	if err != nil {
		return err
	}

	sweeper := monitoring.NewSweeper(hub, sweepInterval(cfg.EventsRetention), cfg.ClusterTimeout)
	go sweeper.Run()
	defer sweeper.Stop()

	// Scheduler
	scheduler := engine.NewCron(engine.CronConfig{
		Name:     cfg.SchedulerName,
		Workers:  cfg.SchedulerWorkers,
		Location: loc,
	}, hub)
	if cfg.JobsFile != "" {
		file, err := config.LoadJobsFile(cfg.JobsFile)
		if err != nil {
			return err
		}
		if err := seedJobs(ctx, scheduler, file); err != nil {
			return err
		}
	}
	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	// Services
	clerk := services.NewClerkService(scheduler, sink)
	commands := services.NewCommandService(scheduler, clerk, sink)
	env := services.NewEnvironmentService(services.EnvironmentOptions{
		Version:         Version,
		SchedulerEngine: "robfig/cron/v3",
		TimelineSpan:    cfg.TimelineSpan,
		ReadOnly:        cfg.ReadOnly,
		Clustered:       cfg.Clustered(),
	})

	var authenticator *auth.Authenticator
	if cfg.JWTSecret != "" {
		if authenticator, err = auth.NewAuthenticator(cfg.JWTSecret); err != nil {
			return err
		}
	} else if !cfg.ReadOnly {
		log.Warn().Msg("JWT_SECRET is not set, control routes are unauthenticated")
	}

	router := api.NewRouter(api.Dependencies{
		Clerk:       clerk,
		Commands:    commands,
		Env:         env,
		Events:      hub,
		Feed:        feed,
		Auth:        authenticator,
		ReadOnly:    cfg.ReadOnly,
		CORSOrigins: cfg.CORSOrigins,
		Metrics:     metricsHandler,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.ServerPort).Str("mode", hub.Mode()).Msg("Server starting")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Debug().Err(err).Msg("systemd notify failed")
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}
	log.Info().Msg("Shutting down server...")
	daemon.SdNotify(false, daemon.SdNotifyStopping)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := scheduler.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Scheduler shutdown failed")
	}

	log.Info().Msg("Server exiting")
	return serveErr
}
