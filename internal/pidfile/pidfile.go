// Package pidfile writes the daemon's process id and refuses to start a
// second instance while the recorded process is alive.
package pidfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// PIDFile is a file used to store the process ID of a running process.
type PIDFile struct {
	path string
}

func checkPIDFileAlreadyExists(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return nil
	}
	if processExists(pid) {
		return fmt.Errorf("pid file found, ensure nightgard is not running or delete %s", path)
	}
	return nil
}

// New creates a PIDFile at path holding the current pid. A file left behind
// by a process that is gone is overwritten.
func New(path string) (*PIDFile, error) {
	if err := checkPIDFileAlreadyExists(path); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	file := &PIDFile{path: path}
	if err := file.Write(); err != nil {
		return nil, err
	}
	return file, nil
}

// Write stores the current pid.
func (file PIDFile) Write() error {
	return os.WriteFile(file.path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

// Remove deletes the PIDFile.
func (file PIDFile) Remove() error {
	return os.Remove(file.path)
}
