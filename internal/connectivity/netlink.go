package connectivity

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"herhaven/internal/logging"
)

// netlinkWatcher listens for udev events on the net subsystem and calls
// onChange so the monitor can probe without waiting for the next tick.
type netlinkWatcher struct {
	logger   *slog.Logger
	onChange func()

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

func newNetlinkWatcher(logger *slog.Logger, onChange func()) *netlinkWatcher {
	return &netlinkWatcher{
		logger:   logging.NewComponentLogger(logger, "netlink-watcher"),
		onChange: onChange,
	}
}

// Start connects to the udev netlink socket. Failure to connect is logged and
// leaves the monitor on interval probing only.
func (w *netlinkWatcher) Start(ctx context.Context) {
	if w == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		logging.WarnWithContext(w.logger, "failed to connect to netlink socket; relying on interval probes", "netlink_connect_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "ensure the daemon may open netlink sockets or set connectivity.netlink = false"),
			logging.String(logging.FieldImpact, "connectivity changes are noticed on the next probe interval"),
		)
		return
	}

	w.conn = conn
	w.quit = make(chan struct{})
	w.running = true
	go w.loop(ctx, conn, w.quit)

	w.logger.Info("netlink watcher started", logging.String(logging.FieldEventType, "netlink_watcher_started"))
}

// Stop closes the netlink connection.
func (w *netlinkWatcher) Stop() {
	if w == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	if w.quit != nil {
		close(w.quit)
		w.quit = nil
	}
	if w.conn != nil {
		_ = w.conn.Close()
		w.conn = nil
	}
	w.running = false
}

// Running reports whether the watcher is connected.
func (w *netlinkWatcher) Running() bool {
	if w == nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *netlinkWatcher) loop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}) {
	events := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(events, errs, buildNetMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case evt := <-events:
			w.handleEvent(evt)
		case err := <-errs:
			logging.WarnWithContext(w.logger, "netlink watcher error", "netlink_watcher_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "connectivity changes may be noticed late"),
			)
		}
	}
}

// buildNetMatcher matches interface add, change, move, and online events.
func buildNetMatcher() netlink.Matcher {
	action := "add|change|move|online"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "net",
		},
	})
	return rules
}

func (w *netlinkWatcher) handleEvent(evt netlink.UEvent) {
	w.logger.Debug("network interface event",
		logging.String("action", string(evt.Action)),
		logging.String("interface", evt.Env["INTERFACE"]),
	)
	if w.onChange != nil {
		w.onChange()
	}
}
