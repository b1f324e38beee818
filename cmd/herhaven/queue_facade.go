package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/flock"

	"herhaven/internal/api"
	"herhaven/internal/config"
	"herhaven/internal/ipc"
	"herhaven/internal/kvstore"
	"herhaven/internal/logging"
	"herhaven/internal/queue"
	"herhaven/internal/submission"
	"herhaven/internal/submit"
)

type queueAPI interface {
	Direct() bool
	Status(ctx context.Context, kind queue.Kind) (api.QueueStatus, error)
	List(ctx context.Context, kind queue.Kind, statuses []string, withPayload bool) ([]api.Entry, error)
	Submit(ctx context.Context, kind queue.Kind, payload json.RawMessage) (api.EnqueueResponse, error)
	Drain(ctx context.Context, kind queue.Kind) (api.DrainInfo, error)
	ClearSynced(ctx context.Context, kind queue.Kind) (int, error)
	RetainActive(ctx context.Context, kind queue.Kind) (int, error)
	Remove(ctx context.Context, kind queue.Kind, id string) (int, error)
}

// --- IPC adapter ---

type queueIPCAdapter struct {
	client *ipc.Client
}

func (a *queueIPCAdapter) Direct() bool { return false }

func (a *queueIPCAdapter) Status(_ context.Context, kind queue.Kind) (api.QueueStatus, error) {
	resp, err := a.client.QueueStatus(string(kind))
	if err != nil {
		return api.QueueStatus{}, err
	}
	return *resp, nil
}

func (a *queueIPCAdapter) List(_ context.Context, kind queue.Kind, statuses []string, withPayload bool) ([]api.Entry, error) {
	resp, err := a.client.QueueList(ipc.QueueListRequest{Kind: string(kind), Statuses: statuses, WithPayload: withPayload})
	if err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

func (a *queueIPCAdapter) Submit(_ context.Context, kind queue.Kind, payload json.RawMessage) (api.EnqueueResponse, error) {
	resp, err := a.client.Submit(string(kind), payload)
	if err != nil {
		return api.EnqueueResponse{}, err
	}
	return *resp, nil
}

func (a *queueIPCAdapter) Drain(_ context.Context, kind queue.Kind) (api.DrainInfo, error) {
	resp, err := a.client.QueueDrain(string(kind))
	if err != nil {
		return api.DrainInfo{}, err
	}
	return *resp, nil
}

func (a *queueIPCAdapter) ClearSynced(_ context.Context, kind queue.Kind) (int, error) {
	resp, err := a.client.QueueClearSynced(string(kind))
	if err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

func (a *queueIPCAdapter) RetainActive(_ context.Context, kind queue.Kind) (int, error) {
	resp, err := a.client.QueueRetainActive(string(kind))
	if err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

func (a *queueIPCAdapter) Remove(_ context.Context, kind queue.Kind, id string) (int, error) {
	resp, err := a.client.QueueRemove(string(kind), id)
	if err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

// --- Store adapter ---

// queueStoreAdapter operates on the queues without a daemon. It holds the
// daemon lock for its lifetime so a daemon cannot start underneath it.
type queueStoreAdapter struct {
	backend kvstore.Backend
	lock    *flock.Flock
	queues  map[queue.Kind]*queue.Queue
}

func openQueueStore(ctx context.Context, cfg *config.Config) (*queueStoreAdapter, error) {
	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, errors.New("daemon holds the queue lock but its socket is unreachable; retry shortly")
	}

	backend, err := kvstore.Open(ctx, cfg)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open %s storage: %w", cfg.Storage.Backend, err)
	}

	logger := logging.NewNop()
	client := submit.New(submit.OptionsFromConfig(cfg), logger)
	opts := queue.Options{
		MaxRetries:      cfg.Queue.MaxRetries,
		SyncedRetention: cfg.SyncedRetention(),
		Logger:          logger,
	}
	queues := make(map[queue.Kind]*queue.Queue, len(queue.Kinds))
	for _, kind := range queue.Kinds {
		queues[kind] = queue.New(kind, backend, client, opts)
	}
	return &queueStoreAdapter{backend: backend, lock: lock, queues: queues}, nil
}

func (a *queueStoreAdapter) Close() error {
	err := a.backend.Close()
	_ = a.lock.Unlock()
	return err
}

func (a *queueStoreAdapter) Direct() bool { return true }

func (a *queueStoreAdapter) queue(kind queue.Kind) (*queue.Queue, error) {
	q, ok := a.queues[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", queue.ErrUnknownKind, kind)
	}
	return q, nil
}

func (a *queueStoreAdapter) Status(ctx context.Context, kind queue.Kind) (api.QueueStatus, error) {
	q, err := a.queue(kind)
	if err != nil {
		return api.QueueStatus{}, err
	}
	return api.QueueStatus{Kind: string(kind), Counts: api.FromSummary(q.Summary(ctx))}, nil
}

func (a *queueStoreAdapter) List(ctx context.Context, kind queue.Kind, statuses []string, withPayload bool) ([]api.Entry, error) {
	q, err := a.queue(kind)
	if err != nil {
		return nil, err
	}
	allowed := make(map[queue.Status]struct{}, len(statuses))
	for _, s := range statuses {
		if trimmed := strings.ToLower(strings.TrimSpace(s)); trimmed != "" {
			allowed[queue.Status(trimmed)] = struct{}{}
		}
	}
	var entries []queue.Entry
	for _, entry := range q.List(ctx) {
		if len(allowed) > 0 {
			if _, ok := allowed[entry.Status]; !ok {
				continue
			}
		}
		entries = append(entries, entry)
	}
	return api.FromEntries(kind, entries, withPayload), nil
}

func (a *queueStoreAdapter) Submit(ctx context.Context, kind queue.Kind, payload json.RawMessage) (api.EnqueueResponse, error) {
	q, err := a.queue(kind)
	if err != nil {
		return api.EnqueueResponse{}, err
	}
	prepared, err := submission.Prepare(kind, payload)
	if err != nil {
		return api.EnqueueResponse{}, err
	}
	id, err := q.Enqueue(ctx, prepared)
	if err != nil {
		return api.EnqueueResponse{}, err
	}
	return api.EnqueueResponse{ID: id, Kind: string(kind), Queued: true}, nil
}

func (a *queueStoreAdapter) Drain(ctx context.Context, kind queue.Kind) (api.DrainInfo, error) {
	q, err := a.queue(kind)
	if err != nil {
		return api.DrainInfo{}, err
	}
	return api.FromDrainResult(q.Drain(ctx)), nil
}

func (a *queueStoreAdapter) ClearSynced(ctx context.Context, kind queue.Kind) (int, error) {
	q, err := a.queue(kind)
	if err != nil {
		return 0, err
	}
	return q.ClearSynced(ctx), nil
}

func (a *queueStoreAdapter) RetainActive(ctx context.Context, kind queue.Kind) (int, error) {
	q, err := a.queue(kind)
	if err != nil {
		return 0, err
	}
	return q.RetainActive(ctx), nil
}

func (a *queueStoreAdapter) Remove(ctx context.Context, kind queue.Kind, id string) (int, error) {
	q, err := a.queue(kind)
	if err != nil {
		return 0, err
	}
	if q.Remove(ctx, strings.TrimSpace(id)) {
		return 1, nil
	}
	return 0, nil
}
