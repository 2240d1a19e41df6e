package configstore

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"
)

const (
	lockWait       = 5 * time.Second
	lockRetryDelay = 100 * time.Millisecond
	lockStaleAfter = 30 * time.Second
)

// documentLock guards writes to one config document. The mutex orders
// writers inside this process; the sibling ".lock" file orders processes
// sharing the document.
type documentLock struct {
	mu   sync.Mutex
	path string
}

func newDocumentLock(docPath string) *documentLock {
	return &documentLock{path: docPath + ".lock"}
}

// acquire blocks until the document is ours, ctx is done or lockWait passes.
// Lock files older than lockStaleAfter are taken over. The returned func
// releases the lock.
func (l *documentLock) acquire(ctx context.Context) (func() error, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, lockWait)
		defer cancel()
	}

	l.mu.Lock()
	for {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			fmt.Fprintf(f, "%d", os.Getpid())
			f.Close()
			return l.release, nil
		}
		if !os.IsExist(err) {
			l.mu.Unlock()
			return nil, fmt.Errorf("create lock file %s: %w", l.path, err)
		}

		if l.stale() {
			if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
				l.mu.Unlock()
				return nil, fmt.Errorf("remove stale lock file %s: %w", l.path, err)
			}
			continue
		}

		select {
		case <-ctx.Done():
			l.mu.Unlock()
			return nil, fmt.Errorf("wait for lock file %s: %w", l.path, ctx.Err())
		case <-time.After(lockRetryDelay):
		}
	}
}

func (l *documentLock) stale() bool {
	info, err := os.Stat(l.path)
	return err == nil && time.Since(info.ModTime()) > lockStaleAfter
}

func (l *documentLock) release() error {
	defer l.mu.Unlock()
	return os.Remove(l.path)
}
