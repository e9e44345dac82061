package workspace

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const (
	lockName   = ".audio2text.lock"
	retryDelay = 250 * time.Millisecond
)

// scratchPatterns match the temporary files a run leaves only if it crashed.
var scratchPatterns = []string{"segment_*.wav", "decoded_*.wav"}

// Workspace is the directory holding a run's temporary files. One run at a
// time holds it: the channel serializes runs in this process and the file
// lock serializes processes sharing the directory.
type Workspace struct {
	Dir  string
	lock *flock.Flock
	sem  chan struct{}
}

// Open creates dir if needed and removes scratch files left by crashed runs
// that no longer hold the lock.
func Open(dir string) (*Workspace, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace %q: %w", dir, err)
	}
	w := &Workspace{
		Dir:  dir,
		lock: flock.New(filepath.Join(dir, lockName)),
		sem:  make(chan struct{}, 1),
	}

	ok, err := w.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire workspace lock: %w", err)
	}
	if ok {
		w.sweep()
		if err := w.lock.Unlock(); err != nil {
			return nil, fmt.Errorf("release workspace lock: %w", err)
		}
	}
	return w, nil
}

// Acquire blocks until the workspace is free or ctx is done. The returned
// function releases it.
func (w *Workspace) Acquire(ctx context.Context) (func(), error) {
	select {
	case w.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("wait for workspace: %w", ctx.Err())
	}

	ok, err := w.lock.TryLockContext(ctx, retryDelay)
	if err != nil || !ok {
		<-w.sem
		if err == nil {
			err = errors.New("lock not acquired")
		}
		return nil, fmt.Errorf("acquire workspace lock: %w", err)
	}

	return func() {
		if err := w.lock.Unlock(); err != nil {
			slog.Warn("release workspace lock", "dir", w.Dir, "err", err)
		}
		<-w.sem
	}, nil
}

// Scratch lists leftover temporary files in the workspace.
func (w *Workspace) Scratch() ([]string, error) {
	var out []string
	for _, pattern := range scratchPatterns {
		matches, err := filepath.Glob(filepath.Join(w.Dir, pattern))
		if err != nil {
			return nil, err
		}
		out = append(out, matches...)
	}
	return out, nil
}

func (w *Workspace) sweep() {
	stale, err := w.Scratch()
	if err != nil {
		slog.Debug("scan workspace", "dir", w.Dir, "err", err)
		return
	}
	for _, path := range stale {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			slog.Debug("remove stale scratch file", "file", filepath.Base(path), "err", err)
			continue
		}
		slog.Info("removed stale scratch file", "file", filepath.Base(path))
	}
}
