package vectorstore

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	vectorField = "vector"

	keyPrefix   = "vs:"
	aliasPrefix = "vs:alias:"
)

// RedisStore implements Store on a Redis instance with the search module
// (Redis Stack, MemoryDB, or Valkey with vector search). Each namespace gets
// its own HNSW index over hash documents; an access-ordered set per namespace
// drives capacity eviction.
type RedisStore struct {
	client    *redis.Client
	dimension int
	ttl       time.Duration
	capacity  int64
	logger    *zap.Logger
}

// RedisStoreConfig configures a RedisStore.
type RedisStoreConfig struct {
	Dimension int           // embedding vector length
	TTL       time.Duration // per-document expiry, 0 disables
	Capacity  int64         // max documents per namespace, 0 disables eviction
}

// NewRedisStore creates a Store backed by the given Redis client. Indexes are
// created lazily on first write to a namespace.
func NewRedisStore(client *redis.Client, cfg RedisStoreConfig, logger *zap.Logger) *RedisStore {
	return &RedisStore{
		client:    client,
		dimension: cfg.Dimension,
		ttl:       cfg.TTL,
		capacity:  cfg.Capacity,
		logger:    logger,
	}
}

func docKey(namespace, id string) string {
	return keyPrefix + namespace + ":doc:" + id
}

func docPrefix(namespace string) string {
	return keyPrefix + namespace + ":doc:"
}

func indexName(namespace string) string {
	return "idx:" + namespace
}

func hitsKey(namespace string) string {
	return keyPrefix + namespace + ":hits"
}

// encodeVector serializes a float32 slice to the little-endian byte layout
// the search module expects for FLOAT32 vector fields.
func encodeVector(vector []float32) []byte {
	buf := make([]byte, 4*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// ensureIndex creates the namespace's HNSW index if it does not exist yet.
func (s *RedisStore) ensureIndex(ctx context.Context, namespace string) error {
	err := s.client.FTCreate(ctx, indexName(namespace),
		&redis.FTCreateOptions{
			OnHash: true,
			Prefix: []interface{}{docPrefix(namespace)},
		},
		&redis.FieldSchema{
			FieldName: vectorField,
			FieldType: redis.SearchFieldTypeVector,
			VectorArgs: &redis.FTVectorArgs{
				HNSWOptions: &redis.FTHNSWOptions{
					Type:           "FLOAT32",
					Dim:            s.dimension,
					DistanceMetric: "COSINE",
				},
			},
		},
	).Err()
	if err != nil && !isIndexExistsError(err) {
		return fmt.Errorf("creating index for namespace %s: %w", namespace, err)
	}
	return nil
}

func isIndexExistsError(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "index already exists")
}

func isUnknownIndexError(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unknown index")
}

func (s *RedisStore) Upsert(ctx context.Context, namespace, id string, vector []float32, payload map[string]string) error {
	if len(vector) != s.dimension {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), s.dimension)
	}
	if err := s.ensureIndex(ctx, namespace); err != nil {
		return err
	}

	key := docKey(namespace, id)
	fields := make(map[string]interface{}, len(payload)+1)
	for k, v := range payload {
		if k == vectorField {
			continue
		}
		fields[k] = v
	}
	fields[vectorField] = encodeVector(vector)

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	pipe.ZAdd(ctx, hitsKey(namespace), redis.Z{
		Score:  float64(time.Now().UnixMilli()),
		Member: id,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("upserting %s: %w", key, err)
	}

	if s.capacity > 0 {
		if err := s.evict(ctx, namespace); err != nil {
			s.logger.Warn("vector store eviction failed",
				zap.String("namespace", namespace),
				zap.Error(err))
		}
	}
	return nil
}

// evict removes least recently used documents until the namespace is back
// under capacity.
func (s *RedisStore) evict(ctx context.Context, namespace string) error {
	count, err := s.client.ZCard(ctx, hitsKey(namespace)).Result()
	if err != nil {
		return err
	}
	excess := count - s.capacity
	if excess <= 0 {
		return nil
	}

	oldest, err := s.client.ZPopMin(ctx, hitsKey(namespace), excess).Result()
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(oldest))
	for _, z := range oldest {
		if id, ok := z.Member.(string); ok {
			keys = append(keys, docKey(namespace, id))
		}
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

func (s *RedisStore) Search(ctx context.Context, namespace string, vector []float32, k int, maxDistance float64) ([]Match, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), s.dimension)
	}

	query := fmt.Sprintf("*=>[KNN %d @%s $vec AS score]", k, vectorField)
	res, err := s.client.FTSearchWithArgs(ctx, indexName(namespace), query,
		&redis.FTSearchOptions{
			SortBy:         []redis.FTSearchSortBy{{FieldName: "score", Asc: true}},
			LimitOffset:    0,
			Limit:          k,
			DialectVersion: 2,
			Params: map[string]interface{}{
				"vec": encodeVector(vector),
			},
		},
	).Result()
	if err != nil {
		// A namespace that was never written has no index; treat as empty.
		if isUnknownIndexError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("searching namespace %s: %w", namespace, err)
	}

	prefix := docPrefix(namespace)
	matches := make([]Match, 0, len(res.Docs))
	for _, doc := range res.Docs {
		scoreStr, ok := doc.Fields["score"]
		if !ok {
			continue
		}
		distance, err := strconv.ParseFloat(scoreStr, 64)
		if err != nil {
			continue
		}
		if maxDistance > 0 && distance > maxDistance {
			continue
		}

		payload := make(map[string]string, len(doc.Fields))
		for k, v := range doc.Fields {
			if k == vectorField || k == "score" {
				continue
			}
			payload[k] = v
		}
		matches = append(matches, Match{
			ID:       strings.TrimPrefix(doc.ID, prefix),
			Distance: distance,
			Payload:  payload,
		})
	}
	return matches, nil
}

func (s *RedisStore) Touch(ctx context.Context, namespace, id string) error {
	key := docKey(namespace, id)
	pipe := s.client.TxPipeline()
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	pipe.ZAdd(ctx, hitsKey(namespace), redis.Z{
		Score:  float64(time.Now().UnixMilli()),
		Member: id,
	})
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) IncrementField(ctx context.Context, namespace, id, field string, delta int64) (int64, error) {
	return s.client.HIncrBy(ctx, docKey(namespace, id), field, delta).Result()
}

func (s *RedisStore) Delete(ctx context.Context, namespace, id string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, docKey(namespace, id))
	pipe.ZRem(ctx, hitsKey(namespace), id)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) DropNamespace(ctx context.Context, namespace string) error {
	err := s.client.FTDropIndexWithArgs(ctx, indexName(namespace),
		&redis.FTDropIndexOptions{DeleteDocs: true}).Err()
	if err != nil && !isUnknownIndexError(err) {
		return fmt.Errorf("dropping namespace %s: %w", namespace, err)
	}
	return s.client.Del(ctx, hitsKey(namespace)).Err()
}

func (s *RedisStore) SetAlias(ctx context.Context, alias, namespace string) error {
	return s.client.Set(ctx, aliasPrefix+alias, namespace, 0).Err()
}

func (s *RedisStore) ResolveAlias(ctx context.Context, alias string) (string, error) {
	namespace, err := s.client.Get(ctx, aliasPrefix+alias).Result()
	if err == redis.Nil {
		return "", ErrAliasNotFound
	}
	if err != nil {
		return "", err
	}
	return namespace, nil
}

var _ Store = (*RedisStore)(nil)
