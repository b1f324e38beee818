package syncer

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"herhaven/internal/logging"
)

// Registrar records interest in a future background sync for tag.
type Registrar interface {
	Register(ctx context.Context, tag string) error
}

// Noop is the Registrar used when background sync is unavailable.
type Noop struct{}

// Register always succeeds and does nothing.
func (Noop) Register(context.Context, string) error { return nil }

// Handler performs the deferred work for a tag. A nil return unregisters the tag.
type Handler func(ctx context.Context) error

// Manager is an in-process background sync registry.
type Manager struct {
	logger   *slog.Logger
	interval time.Duration

	mu       sync.Mutex
	handlers map[string]Handler
	pending  map[string]time.Time

	fireMu  sync.Mutex
	trigger chan struct{}
}

// NewManager constructs a Manager that fires pending tags every interval
// once Run is started. A non-positive interval disables the ticker.
func NewManager(logger *slog.Logger, interval time.Duration) *Manager {
	return &Manager{
		logger:   logging.NewComponentLogger(logger, "syncer"),
		interval: interval,
		handlers: make(map[string]Handler),
		pending:  make(map[string]time.Time),
		trigger:  make(chan struct{}, 1),
	}
}

// Handle binds handler to tag, replacing any previous binding.
func (m *Manager) Handle(tag string, handler Handler) {
	tag = strings.TrimSpace(tag)
	if tag == "" || handler == nil {
		return
	}
	m.mu.Lock()
	m.handlers[tag] = handler
	m.mu.Unlock()
}

// Register marks tag as pending and wakes the run loop.
func (m *Manager) Register(_ context.Context, tag string) error {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return errors.New("sync tag is required")
	}
	m.mu.Lock()
	if _, ok := m.pending[tag]; !ok {
		m.pending[tag] = time.Now()
	}
	m.mu.Unlock()
	m.logger.Debug("sync tag registered", logging.String("tag", tag))

	select {
	case m.trigger <- struct{}{}:
	default:
	}
	return nil
}

// Pending returns the registered tags in lexical order.
func (m *Manager) Pending() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	tags := make([]string, 0, len(m.pending))
	for tag := range m.pending {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Fire runs the handler for every pending tag. Tags whose handler succeeds,
// and tags without a handler, are unregistered. It returns the number of
// tags that were cleared.
func (m *Manager) Fire(ctx context.Context) int {
	m.fireMu.Lock()
	defer m.fireMu.Unlock()

	cleared := 0
	for _, tag := range m.Pending() {
		if ctx.Err() != nil {
			return cleared
		}
		m.mu.Lock()
		handler := m.handlers[tag]
		m.mu.Unlock()

		if handler == nil {
			m.logger.Debug("sync tag has no handler; dropping", logging.String("tag", tag))
			m.unregister(tag)
			cleared++
			continue
		}

		if err := handler(ctx); err != nil {
			logging.WarnWithContext(m.logger, "background sync incomplete; tag stays registered", "sync_incomplete",
				logging.String("tag", tag),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "sync retries on the next interval or connectivity change"),
				logging.String(logging.FieldImpact, "queued work remains pending"),
			)
			continue
		}
		m.unregister(tag)
		cleared++
		m.logger.Info("background sync completed",
			logging.String("tag", tag),
			logging.String(logging.FieldEventType, "sync_completed"),
		)
	}
	return cleared
}

func (m *Manager) unregister(tag string) {
	m.mu.Lock()
	delete(m.pending, tag)
	m.mu.Unlock()
}

// Run fires pending tags on registration and on every interval tick while
// gate reports true. It returns when ctx is cancelled.
func (m *Manager) Run(ctx context.Context, gate func() bool) {
	var tick <-chan time.Time
	if m.interval > 0 {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.trigger:
		case <-tick:
		}
		if gate != nil && !gate() {
			continue
		}
		m.Fire(ctx)
	}
}
