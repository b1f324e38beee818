package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"herhaven/internal/logging"
	"herhaven/internal/notifications"
	"herhaven/internal/queue"
	"herhaven/internal/syncer"
)

var (
	// ErrOffline is returned by DrainNow when the remote API is unreachable.
	ErrOffline = errors.New("remote api unreachable")
	// ErrNotRunning is returned when an operation needs a started manager.
	ErrNotRunning = errors.New("workflow not running")
)

// Connectivity is the reachability source the manager follows.
type Connectivity interface {
	Online() bool
	OnOnline(fn func(context.Context))
	Run(ctx context.Context)
}

// Dependencies bundles the collaborators a Manager coordinates.
type Dependencies struct {
	Queues       []*queue.Queue
	Connectivity Connectivity
	// Sync is optional; when nil no background sync tags are handled.
	Sync     *syncer.Manager
	Notifier notifications.Service
	Logger   *slog.Logger
}

// Manager schedules drain cycles across the queues.
type Manager struct {
	logger   *slog.Logger
	notifier notifications.Service
	conn     Connectivity
	sync     *syncer.Manager

	queues map[queue.Kind]*queue.Queue
	order  []queue.Kind

	drainReq chan struct{}

	mu        sync.RWMutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	lastErr   error
	lastDrain map[queue.Kind]DrainRecord
}

// NewManager wires the queues to connectivity and background sync.
func NewManager(deps Dependencies) *Manager {
	m := &Manager{
		logger:    logging.NewComponentLogger(deps.Logger, "workflow"),
		notifier:  deps.Notifier,
		conn:      deps.Connectivity,
		sync:      deps.Sync,
		queues:    make(map[queue.Kind]*queue.Queue, len(deps.Queues)),
		drainReq:  make(chan struct{}, 1),
		lastDrain: make(map[queue.Kind]DrainRecord),
	}
	if m.conn == nil {
		m.conn = alwaysOnline{}
	}
	for _, q := range deps.Queues {
		if q == nil {
			continue
		}
		if _, dup := m.queues[q.Kind()]; !dup {
			m.order = append(m.order, q.Kind())
		}
		m.queues[q.Kind()] = q
		if m.sync != nil && q.Kind().BackgroundSync() {
			m.sync.Handle(q.Kind().SyncTag(), m.syncHandler(q))
		}
	}
	m.conn.OnOnline(func(context.Context) { m.RequestDrain() })
	return m
}

// Queue returns the queue for kind.
func (m *Manager) Queue(kind queue.Kind) (*queue.Queue, error) {
	q, ok := m.queues[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", queue.ErrUnknownKind, kind)
	}
	return q, nil
}

// Kinds lists managed queue kinds in registration order.
func (m *Manager) Kinds() []queue.Kind {
	return append([]queue.Kind(nil), m.order...)
}

// Online reports the connectivity monitor's last observation.
func (m *Manager) Online() bool { return m.conn.Online() }

// Submit enqueues payload on the kind's queue and requests a drain when
// online. Validation of the payload is the caller's job.
func (m *Manager) Submit(ctx context.Context, kind queue.Kind, payload []byte) (string, error) {
	q, err := m.Queue(kind)
	if err != nil {
		return "", err
	}
	id, err := q.Enqueue(ctx, payload)
	if err != nil {
		if errors.Is(err, queue.ErrStorageUnavailable) {
			m.setLastError(err)
			m.publish(ctx, notifications.EventStorageUnavailable, notifications.Payload{
				"queue": string(kind),
				"error": err,
			})
		}
		return "", err
	}

	if m.conn.Online() {
		m.RequestDrain()
	} else {
		m.logger.Info("submission queued while offline",
			logging.String(logging.FieldQueue, string(kind)),
			logging.String(logging.FieldEntryID, id),
			logging.String(logging.FieldEventType, "queued_offline"),
		)
		m.publish(ctx, notifications.EventQueuedOffline, notifications.Payload{
			"queue":   string(kind),
			"entryId": id,
		})
	}
	return id, nil
}

// RequestDrain asks the run loop to drain every queue. Requests made while a
// request is already waiting are merged.
func (m *Manager) RequestDrain() {
	select {
	case m.drainReq <- struct{}{}:
	default:
	}
}

// DrainNow drains kind synchronously. It refuses while offline so a manual
// request cannot burn retries against an unreachable API.
func (m *Manager) DrainNow(ctx context.Context, kind queue.Kind) (queue.DrainResult, error) {
	q, err := m.Queue(kind)
	if err != nil {
		return queue.DrainResult{}, err
	}
	if !m.conn.Online() {
		return queue.DrainResult{Kind: kind}, ErrOffline
	}
	return m.drain(ctx, q), nil
}

// DrainAll drains every queue in registration order.
func (m *Manager) DrainAll(ctx context.Context) []queue.DrainResult {
	results := make([]queue.DrainResult, 0, len(m.order))
	for _, kind := range m.order {
		if ctx.Err() != nil {
			break
		}
		results = append(results, m.drain(ctx, m.queues[kind]))
	}
	return results
}

func (m *Manager) drain(ctx context.Context, q *queue.Queue) queue.DrainResult {
	start := time.Now()
	result := q.Drain(ctx)
	if result.Skipped {
		return result
	}
	m.record(result, start)
	m.notifyResult(ctx, result)
	return result
}

// syncHandler drains q for a background sync fire. It fails while entries
// remain pending so the registry keeps the tag and fires it again.
func (m *Manager) syncHandler(q *queue.Queue) syncer.Handler {
	return func(ctx context.Context) error {
		if !m.conn.Online() {
			return ErrOffline
		}
		result := m.drain(ctx, q)
		if result.Skipped {
			return errors.New("drain already in progress")
		}
		if pending := q.Summary(ctx).Pending; pending > 0 {
			return fmt.Errorf("%d %s entries still pending", pending, q.Kind())
		}
		return nil
	}
}

type alwaysOnline struct{}

func (alwaysOnline) Online() bool                   { return true }
func (alwaysOnline) OnOnline(func(context.Context)) {}
func (alwaysOnline) Run(ctx context.Context)        { <-ctx.Done() }
