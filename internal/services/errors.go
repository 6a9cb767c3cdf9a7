package services

import (
	"errors"

	"dealpilot/internal/repository"
)

// ErrSourceNotFound is returned when an operation names a source that does
// not exist.
var ErrSourceNotFound = errors.New("knowledge source not found")

// isNotFound recognizes the storage layer's not-found sentinel.
func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}

// FailureKind classifies where in the ingestion pipeline a failure happened.
type FailureKind string

const (
	FailValidation          FailureKind = "validation"
	FailExtraction          FailureKind = "extraction"
	FailInsufficientContent FailureKind = "insufficient_content"
	FailChunking            FailureKind = "chunking"
	FailEmbedding           FailureKind = "embedding"
	FailStorage             FailureKind = "storage"
)

// IngestError is a typed pipeline failure. Message is the user-facing reason
// recorded on the source record; Err carries the underlying cause for logs.
type IngestError struct {
	Kind    FailureKind
	Message string
	Err     error
}

func (e *IngestError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *IngestError) Unwrap() error {
	return e.Err
}

// UserCorrectable reports whether re-uploading a fixed file can resolve the
// failure, as opposed to an operator-side problem (embedding quota, storage).
func (e *IngestError) UserCorrectable() bool {
	switch e.Kind {
	case FailValidation, FailExtraction, FailInsufficientContent, FailChunking:
		return true
	}
	return false
}
