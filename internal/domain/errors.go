package domain

import "errors"

var (
	// ErrModelUnavailable means the embedding or chat backend cannot be
	// reached or is misconfigured. Fatal for the current operation.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrExtractionFailed means a document could not be read or parsed.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrDimensionMismatch means a vector's length does not match the
	// index's configured dimension. Vectors are never truncated or padded.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrIndexNotFound means no index has ever been built at the given
	// location. Distinct from an index that exists but holds no entries.
	ErrIndexNotFound = errors.New("index not found")

	// ErrGenerationFailed means the chat backend failed or timed out
	// mid-turn. Conversation state stays at the last completed turn.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrModelMismatch means the persisted index was built with a
	// different embedding model than the one configured now.
	ErrModelMismatch = errors.New("embedding model mismatch")
)
