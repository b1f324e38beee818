package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"herhaven/internal/logging"
)

// Options configure a Monitor.
type Options struct {
	Interval time.Duration
	Timeout  time.Duration
	// Netlink enables udev network interface events as probe triggers.
	Netlink bool
	Logger  *slog.Logger
}

// Monitor tracks reachability and fires OnOnline callbacks.
type Monitor struct {
	prober   Prober
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
	netlink  *netlinkWatcher

	mu        sync.Mutex
	online    bool
	known     bool
	lastCheck time.Time
	callbacks []func(context.Context)

	trigger chan struct{}
}

// Snapshot is a point-in-time view of the monitor state.
type Snapshot struct {
	Online    bool      `json:"online"`
	Known     bool      `json:"known"`
	LastCheck time.Time `json:"last_check"`
}

// NewMonitor constructs a Monitor around prober.
func NewMonitor(prober Prober, opts Options) *Monitor {
	logger := logging.NewComponentLogger(opts.Logger, "connectivity")
	interval := opts.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	timeout := opts.Timeout
	if timeout <= 0 || timeout > interval {
		timeout = interval
	}
	m := &Monitor{
		prober:   prober,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
		trigger:  make(chan struct{}, 1),
	}
	if opts.Netlink {
		m.netlink = newNetlinkWatcher(logger, m.Trigger)
	}
	return m
}

// OnOnline registers fn to run whenever the monitor observes the remote side
// becoming reachable, including the first successful probe after start.
func (m *Monitor) OnOnline(fn func(context.Context)) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.callbacks = append(m.callbacks, fn)
	m.mu.Unlock()
}

// Online reports the last observed reachability.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Snapshot returns the current state.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{Online: m.online, Known: m.known, LastCheck: m.lastCheck}
}

// Trigger requests an immediate probe from the run loop.
func (m *Monitor) Trigger() {
	select {
	case m.trigger <- struct{}{}:
	default:
	}
}

// Check probes once, records the result, and runs OnOnline callbacks on an
// offline to online transition. It returns the new state.
func (m *Monitor) Check(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	err := m.prober.Probe(probeCtx)
	cancel()
	online := err == nil

	m.mu.Lock()
	wasOnline := m.online
	wasKnown := m.known
	m.online = online
	m.known = true
	m.lastCheck = time.Now()
	callbacks := make([]func(context.Context), len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.mu.Unlock()

	switch {
	case online && !wasOnline:
		m.logger.Info("remote api reachable",
			logging.Bool("initial", !wasKnown),
			logging.String(logging.FieldEventType, "connectivity_online"),
		)
		for _, fn := range callbacks {
			fn(ctx)
		}
	case !online && (wasOnline || !wasKnown):
		logging.WarnWithContext(m.logger, "remote api unreachable", "connectivity_offline",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "submissions stay queued until connectivity returns"),
			logging.String(logging.FieldImpact, "queued submissions are not delivered while offline"),
		)
	}
	return online
}

// Run probes immediately and then on every interval tick or trigger until ctx ends.
func (m *Monitor) Run(ctx context.Context) {
	if m.netlink != nil {
		m.netlink.Start(ctx)
		defer m.netlink.Stop()
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-m.trigger:
		}
		if ctx.Err() != nil {
			return
		}
		m.Check(ctx)
	}
}
