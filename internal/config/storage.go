package config

import "git.home.luguber.info/inful/clientboot/internal/foundation/normalization"

// StorageBackend names a kvstore implementation.
type StorageBackend string

const (
	StorageMemory StorageBackend = "memory"
	StorageFS     StorageBackend = "fs"
	StorageSQLite StorageBackend = "sqlite"
	StorageNATS   StorageBackend = "nats"
	// StorageUnavailable refuses every access; useful to exercise the degraded path.
	StorageUnavailable StorageBackend = "unavailable"
)

var storageBackendNormalizer = normalization.NewNormalizer(map[string]StorageBackend{
	"memory":      StorageMemory,
	"fs":          StorageFS,
	"file":        StorageFS,
	"sqlite":      StorageSQLite,
	"nats":        StorageNATS,
	"unavailable": StorageUnavailable,
}, StorageMemory)

// NormalizeStorageBackend returns the typed backend, or an error listing the valid names.
func NormalizeStorageBackend(raw string) (StorageBackend, error) {
	return storageBackendNormalizer.NormalizeWithError(raw)
}
