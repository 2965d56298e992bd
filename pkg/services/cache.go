package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/askdb-ai/askdb-engine/pkg/models"
	"github.com/askdb-ai/askdb-engine/pkg/vectorstore"
)

// CacheNamespace is the vector store namespace holding cached answers.
const CacheNamespace = "cache"

// cacheCandidates is how many neighbors a lookup inspects for the exact
// question fast path before falling back to the nearest match.
const cacheCandidates = 5

// CacheHit is a successful semantic cache lookup.
type CacheHit struct {
	Entry    models.CacheEntry
	Distance float64
	Exact    bool // the stored question text matched the incoming one
}

// SemanticCache stores validated answers keyed by question embedding, so
// near-duplicate phrasings of an answered question skip generation.
type SemanticCache struct {
	store       vectorstore.Store
	maxDistance float64
	logger      *zap.Logger
}

// NewSemanticCache creates a SemanticCache. maxDistance is the cosine
// distance above which a neighbor no longer counts as the same question.
func NewSemanticCache(store vectorstore.Store, maxDistance float64, logger *zap.Logger) *SemanticCache {
	return &SemanticCache{store: store, maxDistance: maxDistance, logger: logger}
}

// Lookup returns the cached entry for the question, or nil on a miss. An
// exact question-text match among the neighbors wins regardless of rank;
// otherwise the nearest neighbor within the distance threshold is the hit.
// Lookup refreshes the hit entry's recency and increments its hit count.
func (c *SemanticCache) Lookup(ctx context.Context, question string, vector []float32) (*CacheHit, error) {
	matches, err := c.store.Search(ctx, CacheNamespace, vector, cacheCandidates, 0)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}

	var hit *CacheHit
	for _, m := range matches {
		if m.Payload["question"] == question {
			hit = &CacheHit{Entry: decodeEntry(m.Payload), Distance: m.Distance, Exact: true}
			break
		}
	}
	if hit == nil && matches[0].Distance <= c.maxDistance {
		hit = &CacheHit{Entry: decodeEntry(matches[0].Payload), Distance: matches[0].Distance}
	}
	if hit == nil {
		return nil, nil
	}

	id := entryID(hit.Entry.Question)
	if err := c.store.Touch(ctx, CacheNamespace, id); err != nil {
		c.logger.Debug("cache touch failed", zap.Error(err))
	}
	if n, err := c.store.IncrementField(ctx, CacheNamespace, id, "hit_count", 1); err != nil {
		c.logger.Debug("cache hit count update failed", zap.Error(err))
	} else {
		hit.Entry.HitCount = int(n)
	}

	c.logger.Info("semantic cache hit",
		zap.Bool("exact", hit.Exact),
		zap.Float64("distance", hit.Distance))
	return hit, nil
}

// Store writes a validated answer to the cache. Only accepted SQL reaches
// this point; rejected or failed requests are never cached.
func (c *SemanticCache) Store(ctx context.Context, vector []float32, entry models.CacheEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	rows := entry.Rows
	truncated := entry.Truncated
	if len(rows) > models.MaxCachedRows {
		rows = rows[:models.MaxCachedRows]
		truncated = true
	}
	rowsJSON, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	columnsJSON, err := json.Marshal(entry.Columns)
	if err != nil {
		return err
	}

	payload := map[string]string{
		"question":   entry.Question,
		"sql":        entry.SQL,
		"answer":     entry.Answer,
		"rows":       string(rowsJSON),
		"columns":    string(columnsJSON),
		"truncated":  strconv.FormatBool(truncated),
		"created_at": entry.CreatedAt.Format(time.RFC3339),
		"hit_count":  strconv.Itoa(entry.HitCount),
	}
	return c.store.Upsert(ctx, CacheNamespace, entryID(entry.Question), vector, payload)
}

// Invalidate drops every cached answer. Called after re-indexing, since
// cached SQL may reference tables that no longer exist.
func (c *SemanticCache) Invalidate(ctx context.Context) error {
	return c.store.DropNamespace(ctx, CacheNamespace)
}

func entryID(question string) string {
	sum := sha256.Sum256([]byte(question))
	return hex.EncodeToString(sum[:])
}

func decodeEntry(payload map[string]string) models.CacheEntry {
	entry := models.CacheEntry{
		Question: payload["question"],
		SQL:      payload["sql"],
		Answer:   payload["answer"],
	}
	if raw := payload["rows"]; raw != "" {
		_ = json.Unmarshal([]byte(raw), &entry.Rows)
	}
	if raw := payload["columns"]; raw != "" {
		_ = json.Unmarshal([]byte(raw), &entry.Columns)
	}
	if raw := payload["truncated"]; raw != "" {
		if b, err := strconv.ParseBool(raw); err == nil {
			entry.Truncated = b
		}
	}
	if raw := payload["created_at"]; raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			entry.CreatedAt = ts
		}
	}
	if raw := payload["hit_count"]; raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			entry.HitCount = n
		}
	}
	return entry
}
