package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/smazurov/framelink/internal/api"
	"github.com/smazurov/framelink/internal/config"
	"github.com/smazurov/framelink/internal/events"
	"github.com/smazurov/framelink/internal/frames"
	"github.com/smazurov/framelink/internal/logging"
	"github.com/smazurov/framelink/internal/metrics"
	"github.com/smazurov/framelink/internal/metrics/exporters"
	"github.com/smazurov/framelink/internal/systemd"
)

// environment is what every session command shares: options, logging, the
// event bus and its subscribers.
type environment struct {
	opts     *Options
	bus      *events.Bus
	logger   *slog.Logger
	notifier *systemd.Notifier
	cleanup  []func()
}

// setup loads options, initializes logging and wires the event bus. Failures
// are setup errors.
func setup(cmd *cobra.Command, opts *Options) (*environment, error) {
	if err := config.LoadConfig(opts, cmd); err != nil {
		return nil, frames.SetupError("load config", err)
	}

	logging.Initialize(opts.Logging())
	logger := logging.GetLogger("main")
	logger.Debug("Options loaded", "config", opts.Config, "flags", changedFlags(cmd))

	if err := opts.Geometry().Validate(); err != nil {
		return nil, frames.SetupError("geometry", err)
	}

	env := &environment{
		opts:     opts,
		bus:      events.New(),
		logger:   logger,
		notifier: systemd.NewNotifier(),
	}
	env.cleanup = append(env.cleanup, metrics.Attach(env.bus), env.notifier.Attach(env.bus))

	if opts.Config != "" {
		if _, err := os.Stat(opts.Config); err == nil {
			w, err := config.WatchLogging(opts.Config, env.bus)
			if err != nil {
				logger.Warn("Config watcher unavailable", "path", opts.Config, "error", err)
			} else {
				env.cleanup = append(env.cleanup, func() { _ = w.Stop() })
			}
		}
	}

	return env, nil
}

// Close stops the watcher and detaches metrics.
func (e *environment) Close() {
	for i := len(e.cleanup) - 1; i >= 0; i-- {
		e.cleanup[i]()
	}
}

// run executes session alongside the optional status API. The status server
// stops when the session returns; a status server that cannot listen stops the
// session and is reported as a setup error.
func (e *environment) run(ctx context.Context, status api.StatusFunc, session func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	if e.opts.StatusListen != "" {
		server := api.NewServer(&api.Options{
			AuthUsername:      e.opts.AuthUsername,
			AuthPassword:      e.opts.AuthPassword,
			Status:            status,
			EventBus:          e.bus,
			PrometheusHandler: exporters.HTTPHandler(),
		})
		g.Go(func() error {
			if err := server.Serve(gctx, e.opts.StatusListen); err != nil {
				return frames.SetupError("status api", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		if err := e.notifier.Watchdog(gctx); err != nil {
			e.logger.Warn("systemd watchdog disabled", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		defer cancel()
		return session(gctx)
	})

	return g.Wait()
}

// finish decides what a session error means for the process. Setup errors are
// returned so main exits non-zero; anything else ended a running session and
// is only logged.
func (e *environment) finish(err error) error {
	switch {
	case err == nil:
		e.logger.Info("Session finished")
		return nil
	case frames.IsSetup(err):
		return err
	case errors.Is(err, frames.ErrDisconnected):
		e.logger.Info("Peer disconnected", "error", err)
		return nil
	default:
		e.logger.Error("Session ended", "error", err)
		return nil
	}
}
