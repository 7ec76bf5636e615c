package kvstore

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/clientboot/internal/config"
)

// Open builds the Store selected by cfg.
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case config.StorageMemory, "":
		return NewMemoryStore(), nil
	case config.StorageUnavailable:
		return UnavailableStore{Cause: fmt.Errorf("storage backend disabled by configuration")}, nil
	case config.StorageFS:
		return NewFSStore(cfg.Path)
	case config.StorageSQLite:
		return NewSQLiteStore(cfg.Path)
	case config.StorageNATS:
		return NewNATSStore(ctx, cfg.NATSURL, cfg.Bucket)
	default:
		return nil, ErrOpenFailed.WithContext("backend", string(cfg.Backend))
	}
}
