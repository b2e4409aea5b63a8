package main

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"

	"github.com/Microsoft/go-winio"
)

func platformFlags() {
	flag.StringVar(&socket, "socket", "", `path to a Windows named pipe on which to serve the API, e.g. \\.\pipe\nightgard`)
}

func trySocketListener() (net.Listener, error) {
	if socket == "" {
		return nil, nil
	}
	addr = fmt.Sprintf("{pipe:%s}", socket)
	return winio.ListenPipe(socket, nil)
}

func dropPrivileges(uid, gid int) error {
	return errors.New("setuid and setgid not supported on Windows")
}

func notifyReload(c chan<- os.Signal) {}

var shutdownSignals = []os.Signal{os.Interrupt}
