package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"herhaven/internal/api"
	"herhaven/internal/config"
	"herhaven/internal/kvstore"
	"herhaven/internal/logging"
	"herhaven/internal/notifications"
	"herhaven/internal/queue"
	"herhaven/internal/submission"
	"herhaven/internal/workflow"
)

// ErrEntryNotFound is returned when an entry id does not exist in a queue.
var ErrEntryNotFound = errors.New("entry not found")

// BreakerReporter exposes the submission client's circuit breaker state.
type BreakerReporter interface {
	BreakerState() string
}

// Option configures optional Daemon collaborators.
type Option func(*Daemon)

// WithLogStream exposes hub through the logs endpoint.
func WithLogStream(hub *logging.StreamHub) Option {
	return func(d *Daemon) { d.logHub = hub }
}

// WithBreaker reports the submission circuit breaker in status output.
func WithBreaker(b BreakerReporter) Option {
	return func(d *Daemon) { d.breaker = b }
}

// WithNotifier overrides the notifier used by TestNotification.
func WithNotifier(n notifications.Service) Option {
	return func(d *Daemon) { d.notifier = n }
}

// Daemon coordinates the queues and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	backend  kvstore.Backend
	workflow *workflow.Manager
	breaker  BreakerReporter
	notifier notifications.Service
	logHub   *logging.StreamHub
	api      *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, backend kvstore.Backend, logger *slog.Logger, wf *workflow.Manager, opts ...Option) (*Daemon, error) {
	if cfg == nil || backend == nil || wf == nil {
		return nil, errors.New("daemon requires config, storage backend, and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		backend:  backend,
		workflow: wf,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.notifier == nil {
		d.notifier = notifications.NewService(cfg)
	}
	srv, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = srv
	return d, nil
}

// Start acquires the daemon lock, launches the workflow manager and opens the intake API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another herhaven daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.workflow.Start(d.ctx); err != nil {
		d.abortStart()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.api.start(d.ctx); err != nil {
		d.workflow.Stop()
		d.abortStart()
		return err
	}

	d.running.Store(true)
	d.logger.Info("herhaven daemon started",
		logging.String("lock", d.lockPath),
		logging.String("storage", d.cfg.Storage.Backend),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

func (d *Daemon) abortStart() {
	_ = d.lock.Unlock()
	d.cancel()
	d.ctx = nil
	d.cancel = nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.api.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the lock file if no daemon is running"),
		)
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("herhaven daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.backend != nil {
		return d.backend.Close()
	}
	return nil
}

// Running reports whether Start succeeded and Stop has not been called.
func (d *Daemon) Running() bool { return d.running.Load() }

// APIAddress returns the bound intake API address, or "" when disabled.
func (d *Daemon) APIAddress() string { return d.api.address() }

// Submit validates raw as a payload for kind and enqueues it.
func (d *Daemon) Submit(ctx context.Context, kind queue.Kind, raw []byte) (api.EnqueueResponse, error) {
	payload, err := submission.Prepare(kind, raw)
	if err != nil {
		return api.EnqueueResponse{}, err
	}
	id, err := d.workflow.Submit(ctx, kind, payload)
	if err != nil {
		return api.EnqueueResponse{}, err
	}
	return api.EnqueueResponse{ID: id, Kind: string(kind), Queued: true, Online: d.workflow.Online()}, nil
}

// QueueStatus returns counts for one queue.
func (d *Daemon) QueueStatus(ctx context.Context, kind queue.Kind) (api.QueueStatus, error) {
	for _, qs := range d.Status(ctx).Queues {
		if qs.Kind == string(kind) {
			return qs, nil
		}
	}
	return api.QueueStatus{}, fmt.Errorf("%w: %q", queue.ErrUnknownKind, kind)
}

// ListEntries returns the entries of kind, optionally filtered by status.
func (d *Daemon) ListEntries(ctx context.Context, kind queue.Kind, statuses []queue.Status, withPayload bool) ([]api.Entry, error) {
	q, err := d.workflow.Queue(kind)
	if err != nil {
		return nil, err
	}
	entries := q.List(ctx)
	if len(statuses) > 0 {
		allowed := make(map[queue.Status]struct{}, len(statuses))
		for _, s := range statuses {
			allowed[s] = struct{}{}
		}
		filtered := entries[:0]
		for _, entry := range entries {
			if _, ok := allowed[entry.Status]; ok {
				filtered = append(filtered, entry)
			}
		}
		entries = filtered
	}
	return api.FromEntries(kind, entries, withPayload), nil
}

// Drain runs a drain cycle for kind now.
func (d *Daemon) Drain(ctx context.Context, kind queue.Kind) (api.DrainInfo, error) {
	result, err := d.workflow.DrainNow(ctx, kind)
	if err != nil {
		return api.DrainInfo{Kind: string(kind)}, err
	}
	return api.FromDrainResult(result), nil
}

// ClearSynced removes synced entries from kind.
func (d *Daemon) ClearSynced(ctx context.Context, kind queue.Kind) (api.ClearResponse, error) {
	q, err := d.workflow.Queue(kind)
	if err != nil {
		return api.ClearResponse{}, err
	}
	return api.ClearResponse{Kind: string(kind), Removed: q.ClearSynced(ctx)}, nil
}

// RetainActive drops everything but pending and syncing entries from kind.
func (d *Daemon) RetainActive(ctx context.Context, kind queue.Kind) (api.ClearResponse, error) {
	q, err := d.workflow.Queue(kind)
	if err != nil {
		return api.ClearResponse{}, err
	}
	return api.ClearResponse{Kind: string(kind), Removed: q.RetainActive(ctx)}, nil
}

// RemoveEntry deletes one entry from kind.
func (d *Daemon) RemoveEntry(ctx context.Context, kind queue.Kind, id string) (api.ClearResponse, error) {
	q, err := d.workflow.Queue(kind)
	if err != nil {
		return api.ClearResponse{}, err
	}
	id = strings.TrimSpace(id)
	if !q.Remove(ctx, id) {
		return api.ClearResponse{Kind: string(kind)}, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	d.logger.Info("queue entry removed",
		logging.String(logging.FieldQueue, string(kind)),
		logging.String(logging.FieldEntryID, id),
		logging.String(logging.FieldEventType, "entry_removed"),
	)
	return api.ClearResponse{Kind: string(kind), Removed: 1}, nil
}

// TestNotification sends a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// LogStream returns the in-memory log hub, if configured.
func (d *Daemon) LogStream() *logging.StreamHub { return d.logHub }

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	status := api.FromStatusSummary(d.workflow.Status(ctx))
	status.Running = d.running.Load()
	status.PID = os.Getpid()
	status.StorageBackend = d.cfg.Storage.Backend
	status.LockFilePath = d.lockPath
	status.SocketPath = d.cfg.SocketPath()
	if d.breaker != nil {
		status.BreakerState = d.breaker.BreakerState()
	}
	if checker, ok := d.backend.(kvstore.HealthChecker); ok {
		if err := checker.CheckHealth(ctx); err != nil && status.LastError == "" {
			status.LastError = fmt.Sprintf("storage: %v", err)
		}
	}
	return status
}
