package kvstore

import (
	"git.home.luguber.info/inful/clientboot/internal/foundation/errors"
)

var (
	// ErrAccessDenied indicates the storage refused access entirely, as browsers do in private mode.
	ErrAccessDenied = errors.StorageError("storage access denied").Build()

	// ErrOpenFailed indicates the backing store could not be opened.
	ErrOpenFailed = errors.StorageError("could not open key-value store").Build()

	// ErrReadFailed indicates a value could not be read.
	ErrReadFailed = errors.StorageError("failed to read key").Build()

	// ErrWriteFailed indicates a value could not be written.
	ErrWriteFailed = errors.StorageError("failed to write key").Build()

	// ErrRemoveFailed indicates a key could not be removed.
	ErrRemoveFailed = errors.StorageError("failed to remove key").Build()

	// ErrClosed indicates the store was used after Close.
	ErrClosed = errors.StorageError("key-value store is closed").Build()

	// ErrInvalidKey indicates a key the backend cannot represent.
	ErrInvalidKey = errors.ValidationError("invalid storage key").Build()
)

func wrap(sentinel *errors.ClassifiedError, key string, cause error) error {
	return sentinel.WithCause(cause).WithContext("key", key)
}
