package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// HeldError is returned when another daemon instance already owns the
// data directory.
type HeldError struct {
	PID  int
	Path string
}

func (e *HeldError) Error() string {
	return fmt.Sprintf("data dir locked by PID %d (%s)", e.PID, e.Path)
}

// Guard is an exclusive flock over the fleet data directory. Two daemons
// sharing one data dir would corrupt per-number credential stores, so the
// guard must be acquired before any session is opened.
type Guard struct {
	file *os.File
	path string
}

// Acquire takes the data dir lock, creating the directory if needed.
// Returns HeldError when another live process owns it.
func Acquire(dataDir string) (*Guard, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	path := filepath.Join(dataDir, "wafleetd.lock")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		data, _ := os.ReadFile(path)
		_ = f.Close()
		return nil, &HeldError{PID: ownerPID(string(data)), Path: path}
	}

	if err := f.Truncate(0); err != nil {
		_ = f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, 0); err != nil {
		_ = f.Close()
		return nil, err
	}
	body := fmt.Sprintf("pid=%d\nstarted=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if _, err := f.WriteString(body); err != nil {
		_ = f.Close()
		return nil, err
	}

	return &Guard{file: f, path: path}, nil
}

// Release drops the lock and removes the file. Safe on nil and safe to
// call twice.
func (g *Guard) Release() error {
	if g == nil || g.file == nil {
		return nil
	}
	_ = os.Remove(g.path)
	err := g.file.Close()
	g.file = nil
	return err
}

func ownerPID(body string) int {
	for _, line := range strings.Split(body, "\n") {
		if after, ok := strings.CutPrefix(line, "pid="); ok {
			pid, _ := strconv.Atoi(after)
			return pid
		}
	}
	return 0
}
