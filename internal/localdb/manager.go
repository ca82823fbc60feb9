package localdb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Manager owns the single local-state sqlite handle for a qvarnd node.
type Manager struct {
	path string
	DB   *DB
}

// OpenManager opens or creates the local-state DB under stateDir, retrying
// briefly since the directory may be created concurrently with the schema
// loader on first boot.
func OpenManager(ctx context.Context, stateDir string) (*Manager, error) {
	if stateDir == "" {
		stateDir = "."
	}
	if err := os.MkdirAll(stateDir, 0o700); err != nil {
		return nil, err
	}
	var (
		db  *DB
		err error
	)
	for i := 0; i < 5; i++ {
		db, err = Open(stateDir)
		if err == nil {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(200*(i+1)) * time.Millisecond):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open local state db: %w", err)
	}
	return &Manager{path: filepath.Join(stateDir, "qvarnd-local.sqlite"), DB: db}, nil
}

func (m *Manager) Close() error {
	if m == nil || m.DB == nil {
		return nil
	}
	return m.DB.Close()
}

func (m *Manager) Path() string { return m.path }
