//go:build !windows

package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/activation"
	"golang.org/x/sys/unix"
)

func platformFlags() {
	flag.StringVar(&socket, "socket", "", "path to a Unix socket on which to serve the API")
	flag.IntVar(&setUID, "setuid", 0, "set user ID after opening listening port; must be used with setgid")
	flag.IntVar(&setGID, "setgid", 0, "set group ID after opening listening port; must be used with setuid")
}

// trySocketListener prefers a systemd-passed socket, then -socket. A nil
// listener means neither applies and the caller should listen on addr.
func trySocketListener() (net.Listener, error) {
	listeners, err := activation.Listeners()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve sockets from systemd: %w", err)
	}
	if len(listeners) > 1 {
		return nil, fmt.Errorf("received %d sockets from systemd, but only 1 is supported", len(listeners))
	}
	if len(listeners) == 1 {
		sockAddr := listeners[0].Addr()
		if sockAddr.Network() == "tcp" {
			addr = sockAddr.String()
		} else {
			addr = fmt.Sprintf("{%s:%s}", sockAddr.Network(), sockAddr.String())
		}
		return listeners[0], nil
	}

	if socket != "" {
		_ = os.Remove(socket)
		addr = fmt.Sprintf("{unix:%s}", socket)
		return net.Listen("unix", socket)
	}
	return nil, nil
}

func dropPrivileges(uid, gid int) error {
	if err := unix.Setgroups([]int{}); err != nil {
		return err
	}
	if err := unix.Setgid(gid); err != nil {
		return err
	}
	return unix.Setuid(uid)
}

// notifyReload delivers SIGHUP so operators can reload app.yaml without -hotreload.
func notifyReload(c chan<- os.Signal) {
	signal.Notify(c, syscall.SIGHUP)
}

var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}
