package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrLocked is returned when another process holds the ledger lock.
var ErrLocked = errors.New("lock: another writer holds the ledgers")

// Lock is an advisory lock file guarding the ledgers against a second writer.
type Lock struct {
	path string
}

type lockBody struct {
	PID     int       `json:"pid"`
	Started time.Time `json:"started"`
	RunID   string    `json:"run_id"`
}

// AcquireLock creates the lock file exclusively. A leftover file from a
// crashed run must be removed by the operator.
func AcquireLock(path, runID string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("lock: create dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if errors.Is(err, os.ErrExist) {
		holder, _ := os.ReadFile(path)
		return nil, fmt.Errorf("%w: %s (%s)", ErrLocked, path, string(holder))
	}
	if err != nil {
		return nil, fmt.Errorf("lock: create %q: %w", path, err)
	}
	defer f.Close()

	body := lockBody{PID: os.Getpid(), Started: time.Now().UTC(), RunID: runID}
	if err := json.NewEncoder(f).Encode(body); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("lock: write %q: %w", path, err)
	}
	return &Lock{path: path}, nil
}

// Release removes the lock file.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("lock: release %q: %w", l.path, err)
	}
	return nil
}
