package session

import (
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/samsaffron/relaychat/internal/config"
)

// OpenStorage builds the storage backend named by kind under dataDir.
func OpenStorage(kind, dataDir string) (Storage, error) {
	switch kind {
	case config.StoreFile, "":
		return NewFileStorage(dataDir)
	case config.StoreSQLite:
		return NewSQLiteStorage(filepath.Join(dataDir, "relaychat.db"))
	case config.StoreBolt:
		return NewBoltStorage(filepath.Join(dataDir, "relaychat.bolt"))
	case config.StoreMemory:
		return NewMemoryStorage(), nil
	default:
		return nil, errors.Errorf("unknown store backend %q", kind)
	}
}
