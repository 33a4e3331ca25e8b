package output

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"stagecue/internal/logging"
)

// DisplayMonitor listens for udev netlink events on the drm subsystem and
// triggers an output reconcile when a monitor is plugged or unplugged, so the
// second screen never lingers in an undefined state after cabling changes.
type DisplayMonitor struct {
	logger  *slog.Logger
	handler func(ctx context.Context)

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// NewDisplayMonitor creates a monitor that invokes handler on hotplug events.
func NewDisplayMonitor(logger *slog.Logger, handler func(ctx context.Context)) *DisplayMonitor {
	return &DisplayMonitor{
		logger:  logging.NewComponentLogger(logger, "display-monitor"),
		handler: handler,
	}
}

// Start begins listening for drm hotplug events. A failure to open the
// netlink socket is non-fatal: the operator can still reconcile manually.
func (m *DisplayMonitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("failed to connect to netlink socket; display hotplug detection unavailable",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
			logging.String(logging.FieldErrorHint, "ensure the daemon has permission to access netlink sockets"),
		)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, quit)

	m.logger.Info("display monitor started",
		logging.String(logging.FieldEventType, "display_monitor_started"),
	)
	return nil
}

// Stop shuts the monitor down.
func (m *DisplayMonitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false

	m.logger.Info("display monitor stopped",
		logging.String(logging.FieldEventType, "display_monitor_stopped"),
	)
}

// Running reports whether the monitor is active.
func (m *DisplayMonitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *DisplayMonitor) monitorLoop(ctx context.Context, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return
	}

	monitorQuit := conn.Monitor(queue, errs, m.buildMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handleEvent(ctx, uevent)
		case err := <-errs:
			m.logger.Warn("display monitor error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "display_monitor_error"),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
			)
		}
	}
}

// buildMatcher matches connector change events: SUBSYSTEM=drm, ACTION=change.
func (m *DisplayMonitor) buildMatcher() netlink.Matcher {
	action := "change"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "drm",
		},
	})
	return rules
}

func (m *DisplayMonitor) handleEvent(ctx context.Context, uevent netlink.UEvent) {
	m.logger.Info("display topology changed",
		logging.String(logging.FieldEventType, "display_hotplug"),
		logging.String("action", string(uevent.Action)),
		logging.String("kobj", uevent.KObj),
	)
	if m.handler != nil {
		m.handler(ctx)
	}
}
