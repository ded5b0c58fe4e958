package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/petervdpas/airwaves/internal/session"
	"github.com/petervdpas/airwaves/internal/util"
)

// RunFlag is the liveness record a running worker keeps on disk. It exists
// exactly while a run is in progress.
type RunFlag struct {
	PID       int       `json:"pid"`
	ProfileID string    `json:"profile_id"`
	StartedAt time.Time `json:"started_at"`
}

func writeRunFlag(path string, f RunFlag) error {
	if path == "" {
		return nil
	}
	return util.WriteJSONFile(path, f)
}

func removeRunFlag(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warnf("WORKER: remove run flag: %v", err)
	}
}

// ReadRunFlag loads the flag at path. ok is false when there is none.
func ReadRunFlag(path string) (f RunFlag, ok bool, err error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return RunFlag{}, false, nil
	}
	if err != nil {
		return RunFlag{}, false, err
	}
	if err := json.Unmarshal(b, &f); err != nil {
		return RunFlag{}, false, fmt.Errorf("parse run flag: %w", err)
	}
	return f, true, nil
}

// FlagStatus reports the worker status the flag at path describes. A flag
// left behind by a process that no longer exists counts as not running.
func FlagStatus(path string) session.Status {
	f, ok, err := ReadRunFlag(path)
	if err != nil {
		log.Debugf("WORKER: %v", err)
		return session.Status{}
	}
	if !ok || !pidAlive(f.PID) {
		return session.Status{}
	}
	return session.Status{Running: true, ProfileID: f.ProfileID}
}

func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	if pid == os.Getpid() {
		return true
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return p.Signal(syscall.Signal(0)) == nil
}

// WatchRunFlag calls fn with the flag's status every time the flag file is
// created, rewritten or removed, until ctx is cancelled.
func WatchRunFlag(ctx context.Context, path string, fn func(session.Status)) error {
	path = filepath.Clean(path)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				fn(FlagStatus(path))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warnf("WORKER: run flag watcher error: %v", err)
		}
	}
}
