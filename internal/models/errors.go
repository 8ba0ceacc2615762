package models

import "errors"

var (
	// ErrConfiguration reports invalid parameters such as a bad chunk size or dimension.
	ErrConfiguration = errors.New("configuration error")
	// ErrDimensionMismatch reports a vector whose length differs from the index dimension.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrEmbeddingProvider reports a failure of the embedding backend.
	ErrEmbeddingProvider = errors.New("embedding provider error")
	// ErrPersistence reports an unreadable, corrupt, or unwritable index file.
	ErrPersistence = errors.New("persistence error")
	// ErrNotFound reports a missing catalog entry.
	ErrNotFound = errors.New("not found")
	// ErrUnsupportedType reports an upload with an unsupported file type.
	ErrUnsupportedType = errors.New("unsupported file type")
)
