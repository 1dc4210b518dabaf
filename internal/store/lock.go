package store

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const lockFile = "LOCK"

// acquireDirLock takes the exclusive lock on dataDir, polling until timeout
// while another process holds it.
func acquireDirLock(dataDir string, timeout time.Duration) (*flock.Flock, error) {
	path := filepath.Join(dataDir, lockFile)
	l := flock.New(path)
	deadline := time.Now().Add(timeout)
	for {
		locked, err := l.TryLock()
		if err != nil {
			return nil, fmt.Errorf("locking data directory: %w", err)
		}
		if locked {
			return l, nil
		}
		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("data directory %s is in use by another process", dataDir)
		}
		time.Sleep(100 * time.Millisecond)
	}
}
