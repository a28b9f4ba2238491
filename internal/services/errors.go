package services

import "errors"

var (
	// ErrStoreRequired is returned when no object store is provided.
	ErrStoreRequired = errors.New("object store required")

	// ErrPartitionerRequired is returned when no partitioner is provided.
	ErrPartitionerRequired = errors.New("partitioner required")

	// ErrFetcherRequired is returned when no URL fetcher is provided.
	ErrFetcherRequired = errors.New("fetcher required")

	// ErrInboxDisabled is returned by ProcessObject when no object reader is configured.
	ErrInboxDisabled = errors.New("stored object ingestion is not enabled")
)

// FetchError wraps a failure to retrieve a URL. It maps to a client error.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	return "Failed to fetch URL: " + e.Err.Error()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// StorageError wraps a failed envelope upload, including missing credentials.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string {
	return "S3 Error: " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
