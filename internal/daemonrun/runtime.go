package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"herhaven/internal/config"
	"herhaven/internal/connectivity"
	"herhaven/internal/daemon"
	"herhaven/internal/kvstore"
	"herhaven/internal/logging"
	"herhaven/internal/notifications"
	"herhaven/internal/queue"
	"herhaven/internal/submit"
	"herhaven/internal/syncer"
	"herhaven/internal/workflow"
)

// Runtime holds the assembled collaborators of one daemon process.
type Runtime struct {
	Backend  kvstore.Backend
	Client   *submit.Client
	Monitor  *connectivity.Monitor
	Sync     *syncer.Manager
	Queues   []*queue.Queue
	Workflow *workflow.Manager
	Daemon   *daemon.Daemon
}

// Build opens storage and wires the queues, submission client, connectivity
// monitor, background sync registry and workflow into a daemon. The caller
// owns the returned runtime and must Close it.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, hub *logging.StreamHub) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	backend, err := kvstore.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Storage.Backend, err)
	}

	rt := &Runtime{Backend: backend}
	rt.Client = submit.New(submit.OptionsFromConfig(cfg), logger)
	rt.Monitor = connectivity.NewMonitor(
		connectivity.NewHTTPProber(cfg.Connectivity.ProbeURL, cfg.ProbeTimeout()),
		connectivity.Options{
			Interval: cfg.ProbeInterval(),
			Timeout:  cfg.ProbeTimeout(),
			Netlink:  cfg.Connectivity.Netlink,
			Logger:   logger,
		},
	)

	var registrar syncer.Registrar = syncer.Noop{}
	if cfg.Sync.Enabled {
		rt.Sync = syncer.NewManager(logger, cfg.SyncInterval())
		registrar = rt.Sync
	}

	opts := queue.Options{
		MaxRetries:      cfg.Queue.MaxRetries,
		SyncedRetention: cfg.SyncedRetention(),
		Registrar:       registrar,
		Logger:          logger,
	}
	for _, kind := range queue.Kinds {
		rt.Queues = append(rt.Queues, queue.New(kind, backend, rt.Client, opts))
	}

	notifier := notifications.NewService(cfg)
	rt.Workflow = workflow.NewManager(workflow.Dependencies{
		Queues:       rt.Queues,
		Connectivity: rt.Monitor,
		Sync:         rt.Sync,
		Notifier:     notifier,
		Logger:       logger,
	})

	d, err := daemon.New(cfg, backend, logger, rt.Workflow,
		daemon.WithLogStream(hub),
		daemon.WithBreaker(rt.Client),
		daemon.WithNotifier(notifier),
	)
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("create daemon: %w", err)
	}
	rt.Daemon = d
	return rt, nil
}

// Close stops the daemon and releases storage.
func (r *Runtime) Close() error {
	if r == nil || r.Daemon == nil {
		return nil
	}
	return r.Daemon.Close()
}
