package common

import "errors"

// Failure kinds surfaced at the pipeline boundary. Internal component errors
// are wrapped with one of these sentinels so the transport layer can map them
// to a client-facing status with errors.Is, without leaking internals.
var (
	// ErrInvalidInput marks empty or malformed text and bad chunking
	// parameters. No partial state change has happened.
	ErrInvalidInput = errors.New("invalid input")

	// ErrMissingInput marks a build request with no seed text and no
	// existing snapshot.
	ErrMissingInput = errors.New("missing input")

	// ErrNotFound marks an unknown tenant identifier.
	ErrNotFound = errors.New("not found")

	// ErrExtraction marks unusable model output for a single chunk. It is
	// recovered locally and never aborts a build.
	ErrExtraction = errors.New("extraction failed")

	// ErrModelCall marks a transport or timeout failure talking to the
	// model or embedding interface after retries are exhausted.
	ErrModelCall = errors.New("model call failed")

	// ErrPersistence marks a snapshot read/write failure.
	ErrPersistence = errors.New("persistence failed")
)
