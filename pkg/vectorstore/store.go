// Package vectorstore provides similarity search over embedding vectors,
// backed by Redis vector indexes, with namespaces for independent corpora
// (schema fragments, cached answers) and alias pointers for atomic namespace
// swaps.
package vectorstore

import (
	"context"
	"errors"
)

var (
	// ErrAliasNotFound indicates the alias has no namespace assigned yet.
	ErrAliasNotFound = errors.New("vectorstore: alias not found")

	// ErrDimensionMismatch indicates a vector whose length does not match
	// the store's configured dimension.
	ErrDimensionMismatch = errors.New("vectorstore: vector dimension mismatch")
)

// Match is one search result, nearest first. Distance is the cosine distance
// in [0, 2]; 0 means identical direction.
type Match struct {
	ID       string
	Distance float64
	Payload  map[string]string
}

// Store indexes vectors with string payloads and answers k-nearest-neighbor
// queries. Implementations must be safe for concurrent use.
type Store interface {
	// Upsert writes or replaces a document in the namespace. The payload
	// field name "vector" is reserved for the embedding itself.
	Upsert(ctx context.Context, namespace, id string, vector []float32, payload map[string]string) error

	// Search returns up to k nearest documents with distance <= maxDistance,
	// ordered nearest first. A maxDistance of 0 disables the cutoff.
	Search(ctx context.Context, namespace string, vector []float32, k int, maxDistance float64) ([]Match, error)

	// Touch marks a document as recently used, refreshing its TTL and its
	// position in the eviction order.
	Touch(ctx context.Context, namespace, id string) error

	// IncrementField atomically adds delta to an integer payload field and
	// returns the new value. A missing field counts as zero.
	IncrementField(ctx context.Context, namespace, id, field string, delta int64) (int64, error)

	// Delete removes a single document from the namespace.
	Delete(ctx context.Context, namespace, id string) error

	// DropNamespace deletes the namespace's index and all its documents.
	DropNamespace(ctx context.Context, namespace string) error

	// SetAlias points alias at namespace, replacing any previous target.
	SetAlias(ctx context.Context, alias, namespace string) error

	// ResolveAlias returns the namespace an alias points at, or
	// ErrAliasNotFound.
	ResolveAlias(ctx context.Context, alias string) (string, error)
}
