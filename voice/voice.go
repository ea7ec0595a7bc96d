package voice

import (
	"context"
	"errors"
)

// Error taxonomy. Providers wrap failures with one of these sentinels so
// callers can classify with errors.Is; everything else is treated as
// transient.
var (
	// ErrInvalidInput is a caller error. Never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrQuotaExceeded is a provider billing/rate-limit rejection. Retried
	// with long exponential backoff, then escalated: it usually means the
	// surrounding batch should stop burning quota.
	ErrQuotaExceeded = errors.New("embedding quota exceeded")

	// ErrTransient is a network or provider hiccup. Retried with short
	// linear backoff.
	ErrTransient = errors.New("transient provider failure")

	// ErrStoreUnavailable is a vector store failure. Retrieval paths degrade
	// to empty results; ingestion paths abort the batch.
	ErrStoreUnavailable = errors.New("vector store unavailable")
)

// Embedder converts text to a fixed-dimension vector. Implementations:
// openai.Embedder (HTTP provider), onnx.Embedder (local model, build-tagged),
// mock.Embedder (deterministic, for tests).
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// Store is the namespaced vector storage backend.
//
// A successful Upsert makes the record visible to subsequent Query calls
// issued through the same Store. No read-after-write guarantee holds across
// independently-issued retrieval paths: hosted backends are eventually
// consistent, and callers must tolerate a just-written record being briefly
// invisible.
type Store interface {
	// Upsert writes a record, idempotent by id within a namespace. An
	// existing id's vector and metadata are overwritten.
	Upsert(ctx context.Context, ns Namespace, rec Record) error

	// Query returns up to topK records ranked by cosine similarity,
	// descending. filter may be nil. Ordering among exact score ties is
	// unspecified.
	Query(ctx context.Context, ns Namespace, embedding []float32, topK int, filter Filter) ([]QueryResult, error)

	// Delete removes records by id, best-effort; missing ids are not an
	// error.
	Delete(ctx context.Context, ns Namespace, ids ...string) error

	// Close releases resources.
	Close() error
}
