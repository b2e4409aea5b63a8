package main

import (
	"context"
	"log"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// sdNotify sends state to the service manager. Outside systemd it is a no-op.
func sdNotify(state string) {
	if _, err := daemon.SdNotify(false, state); err != nil {
		log.Printf("sd_notify %q failed: %v", state, err)
	}
}

// runWatchdog pings the systemd watchdog at half its interval while healthy
// reports true. It returns at once when no watchdog is configured.
func runWatchdog(ctx context.Context, healthy func() bool) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return
	}
	t := time.NewTicker(interval / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if healthy() {
				sdNotify(daemon.SdNotifyWatchdog)
			}
		}
	}
}
