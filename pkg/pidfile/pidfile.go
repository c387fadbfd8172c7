// Package pidfile guards against overlapping invocations. The scheduler
// fires every couple of minutes and nothing else serializes runs, so the
// lock is held for the whole cycle.
package pidfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// PIDFile is a lock file holding the owning process ID.
type PIDFile struct {
	path string
	pid  int
}

// New creates a PIDFile for the current process.
func New(path string) *PIDFile {
	return &PIDFile{path: path, pid: os.Getpid()}
}

// Path returns the lock file location.
func (p *PIDFile) Path() string { return p.path }

// CheckRunning reports whether another live process owns the lock, and
// that process's PID. A stale file (dead owner) reports not running.
func (p *PIDFile) CheckRunning() (bool, int, error) {
	pid, err := p.read()
	if err != nil {
		if os.IsNotExist(err) {
			return false, 0, nil
		}
		return false, 0, fmt.Errorf("failed to read PID file: %w", err)
	}
	return processAlive(pid), pid, nil
}

// Create takes the lock. A stale file left by a dead process is replaced;
// a live owner is an error.
func (p *PIDFile) Create() error {
	if pid, err := p.read(); err == nil {
		if processAlive(pid) {
			return fmt.Errorf("already running with PID %d", pid)
		}
		if err := os.Remove(p.path); err != nil {
			return fmt.Errorf("failed to remove stale PID file: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("failed to create PID file directory: %w", err)
	}
	if err := os.WriteFile(p.path, []byte(strconv.Itoa(p.pid)+"\n"), 0o644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}

// Remove releases the lock, refusing to remove a file owned by another
// process.
func (p *PIDFile) Remove() error {
	pid, err := p.read()
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return os.Remove(p.path)
	}
	if pid != p.pid {
		return fmt.Errorf("PID file owned by %d, not removing", pid)
	}
	return os.Remove(p.path)
}

// ForceRemove deletes the lock file regardless of ownership.
func (p *PIDFile) ForceRemove() error {
	return os.Remove(p.path)
}

func (p *PIDFile) read() (int, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file contents: %q", strings.TrimSpace(string(data)))
	}
	return pid, nil
}

// processAlive probes a PID with signal 0.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	// EPERM means the process exists but belongs to someone else.
	return err == syscall.EPERM
}
