// Package systemd reports session progress to the service manager through
// sd_notify. Every call is a no-op when the process was not started by
// systemd with NOTIFY_SOCKET set.
package systemd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/smazurov/framelink/internal/events"
	"github.com/smazurov/framelink/internal/logging"
)

// Notifier forwards session state changes to systemd.
type Notifier struct {
	logger *slog.Logger
	ready  bool
}

// NewNotifier creates a notifier.
func NewNotifier() *Notifier {
	return &Notifier{logger: logging.GetLogger("main")}
}

// Attach subscribes to session state changes on bus. READY=1 is sent the first
// time a session can do useful work: a producer that is listening or a
// consumer that is looping. Every transition updates STATUS, and the closed
// state sends STOPPING=1. The returned function unsubscribes.
func (n *Notifier) Attach(bus *events.Bus) func() {
	return bus.Subscribe(func(e events.SessionStateChangedEvent) {
		n.notify(fmt.Sprintf("STATUS=%s %s", e.Role, e.To))

		switch {
		case e.To == "closed":
			n.notify(daemon.SdNotifyStopping)
		case !n.ready && isReady(e.Role, e.To):
			n.ready = true
			n.notify(daemon.SdNotifyReady)
		}
	})
}

func isReady(role, state string) bool {
	switch role {
	case events.RoleProducer:
		return state == "listening"
	case events.RoleConsumer:
		return state == "looping"
	}
	return false
}

// Watchdog pings the systemd watchdog at half the configured interval until
// ctx is done. It returns immediately when the watchdog is not enabled.
func (n *Notifier) Watchdog(ctx context.Context) error {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		return err
	}
	if interval == 0 {
		return nil
	}

	n.logger.Debug("systemd watchdog enabled", "interval", interval)
	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n.notify(daemon.SdNotifyWatchdog)
		}
	}
}

func (n *Notifier) notify(state string) {
	sent, err := daemon.SdNotify(false, state)
	switch {
	case err != nil:
		n.logger.Debug("sd_notify failed", "state", state, "error", err)
	case sent:
		n.logger.Debug("sd_notify sent", "state", state)
	}
}
