package devices

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"github.com/UtsahaJoshi/The-New-Hires/internal/logging"
	"github.com/UtsahaJoshi/The-New-Hires/internal/services"
)

// Event is a hot-plug notification for a capture node.
type Event struct {
	Action    string
	Path      string
	Subsystem string
}

// Added reports whether the node appeared.
func (e Event) Added() bool { return e.Action == string(netlink.ADD) }

// Watcher listens for video4linux and sound udev events.
type Watcher struct {
	logger *slog.Logger

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// NewWatcher returns an unstarted watcher.
func NewWatcher(logger *slog.Logger) *Watcher {
	return &Watcher{logger: logging.NewComponentLogger(logger, "device-watcher")}
}

// Start connects to the udev netlink socket and delivers matching events to
// handler until ctx is cancelled or Stop is called. Handler runs on the
// watcher goroutine.
func (w *Watcher) Start(ctx context.Context, handler func(Event)) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		return services.Wrap(services.ErrDeviceUnavailable, "devices", "watch", "connect udev netlink socket", err)
	}

	w.conn = conn
	w.quit = make(chan struct{})
	w.running = true

	quit := w.quit
	go w.loop(ctx, conn, quit, handler)

	w.logger.Debug("device watcher started",
		logging.String(logging.FieldEventType, "device_watcher_started"),
	)
	return nil
}

// Stop shuts down the watcher. Safe to call repeatedly.
func (w *Watcher) Stop() {
	if w == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	close(w.quit)
	w.quit = nil
	if w.conn != nil {
		_ = w.conn.Close()
		w.conn = nil
	}
	w.running = false
}

// Running reports whether the watcher is active.
func (w *Watcher) Running() bool {
	if w == nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) loop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}, handler func(Event)) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(queue, errs, buildMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			event, ok := toEvent(uevent)
			if !ok {
				continue
			}
			w.logger.Debug("capture node event",
				logging.String("action", event.Action),
				logging.String("device", event.Path),
				logging.String("subsystem", event.Subsystem),
			)
			if handler != nil {
				handler(event)
			}
		case err := <-errs:
			w.logger.Warn("udev monitor error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "device_watcher_error"),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "hot-plug detection may miss devices"),
			)
		}
	}
}

// buildMatcher matches add/remove events for cameras and sound devices.
func buildMatcher() netlink.Matcher {
	action := "add|remove"
	rules := &netlink.RuleDefinitions{}
	for _, subsystem := range []string{"video4linux", "sound"} {
		rules.AddRule(netlink.RuleDefinition{
			Action: &action,
			Env:    map[string]string{"SUBSYSTEM": subsystem},
		})
	}
	return rules
}

func toEvent(uevent netlink.UEvent) (Event, bool) {
	path := extractDeviceName(uevent)
	if path == "" {
		return Event{}, false
	}
	return Event{
		Action:    string(uevent.Action),
		Path:      path,
		Subsystem: uevent.Env["SUBSYSTEM"],
	}, true
}

func extractDeviceName(uevent netlink.UEvent) string {
	if devname := uevent.Env["DEVNAME"]; devname != "" {
		if !strings.HasPrefix(devname, "/") {
			devname = "/dev/" + devname
		}
		return devname
	}
	return ""
}

// WaitFor blocks until path passes Probe or ctx ends. It re-probes on every
// hot-plug event for the node so a camera plugged in after the call is seen.
func WaitFor(ctx context.Context, path string, logger *slog.Logger) error {
	if err := Probe(path); err == nil {
		return nil
	}

	events := make(chan Event, 8)
	watcher := NewWatcher(logger)
	if err := watcher.Start(ctx, func(e Event) {
		select {
		case events <- e:
		default:
		}
	}); err != nil {
		return err
	}
	defer watcher.Stop()

	// The node may have appeared between the first probe and Start.
	if err := Probe(path); err == nil {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return services.Wrap(services.ErrDeviceUnavailable, "devices", "wait", path+" did not appear", ctx.Err())
		case event := <-events:
			if event.Path != path || !event.Added() {
				continue
			}
			if err := Probe(path); err == nil {
				return nil
			} else if services.Classify(err) == services.KindPermissionDenied {
				return err
			}
		}
	}
}
