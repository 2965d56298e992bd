package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and local development. It
// computes exact cosine distances instead of approximate HNSW search, which
// is fine at the corpus sizes tests use.
type MemoryStore struct {
	mu         sync.RWMutex
	dimension  int
	capacity   int
	namespaces map[string]map[string]*memoryDoc
	aliases    map[string]string
}

type memoryDoc struct {
	vector   []float32
	payload  map[string]string
	lastUsed time.Time
}

// NewMemoryStore creates an in-memory Store. Capacity 0 disables eviction.
func NewMemoryStore(dimension, capacity int) *MemoryStore {
	return &MemoryStore{
		dimension:  dimension,
		capacity:   capacity,
		namespaces: make(map[string]map[string]*memoryDoc),
		aliases:    make(map[string]string),
	}
}

func (s *MemoryStore) Upsert(_ context.Context, namespace, id string, vector []float32, payload map[string]string) error {
	if len(vector) != s.dimension {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), s.dimension)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docs, ok := s.namespaces[namespace]
	if !ok {
		docs = make(map[string]*memoryDoc)
		s.namespaces[namespace] = docs
	}

	vecCopy := make([]float32, len(vector))
	copy(vecCopy, vector)
	payloadCopy := make(map[string]string, len(payload))
	for k, v := range payload {
		if k == vectorField {
			continue
		}
		payloadCopy[k] = v
	}
	docs[id] = &memoryDoc{vector: vecCopy, payload: payloadCopy, lastUsed: time.Now()}

	if s.capacity > 0 && len(docs) > s.capacity {
		s.evictOldest(docs)
	}
	return nil
}

func (s *MemoryStore) evictOldest(docs map[string]*memoryDoc) {
	var oldestID string
	var oldest time.Time
	for id, doc := range docs {
		if oldestID == "" || doc.lastUsed.Before(oldest) {
			oldestID = id
			oldest = doc.lastUsed
		}
	}
	delete(docs, oldestID)
}

func (s *MemoryStore) Search(_ context.Context, namespace string, vector []float32, k int, maxDistance float64) ([]Match, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), s.dimension)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := s.namespaces[namespace]
	matches := make([]Match, 0, len(docs))
	for id, doc := range docs {
		distance := CosineDistance(vector, doc.vector)
		if maxDistance > 0 && distance > maxDistance {
			continue
		}
		payload := make(map[string]string, len(doc.payload))
		for key, v := range doc.payload {
			payload[key] = v
		}
		matches = append(matches, Match{ID: id, Distance: distance, Payload: payload})
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (s *MemoryStore) Touch(_ context.Context, namespace, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc, ok := s.namespaces[namespace][id]; ok {
		doc.lastUsed = time.Now()
	}
	return nil
}

func (s *MemoryStore) IncrementField(_ context.Context, namespace, id, field string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.namespaces[namespace][id]
	if !ok {
		return 0, fmt.Errorf("document %s not found in namespace %s", id, namespace)
	}
	current, _ := strconv.ParseInt(doc.payload[field], 10, 64)
	current += delta
	doc.payload[field] = strconv.FormatInt(current, 10)
	return current, nil
}

func (s *MemoryStore) Delete(_ context.Context, namespace, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.namespaces[namespace], id)
	return nil
}

func (s *MemoryStore) DropNamespace(_ context.Context, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.namespaces, namespace)
	return nil
}

func (s *MemoryStore) SetAlias(_ context.Context, alias, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aliases[alias] = namespace
	return nil
}

func (s *MemoryStore) ResolveAlias(_ context.Context, alias string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	namespace, ok := s.aliases[alias]
	if !ok {
		return "", ErrAliasNotFound
	}
	return namespace, nil
}

// Len returns the number of documents in a namespace.
func (s *MemoryStore) Len(namespace string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.namespaces[namespace])
}

// CosineDistance returns 1 minus the cosine similarity of a and b, in
// [0, 2]. Zero-magnitude vectors are treated as maximally distant.
func CosineDistance(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 2
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}

var _ Store = (*MemoryStore)(nil)
