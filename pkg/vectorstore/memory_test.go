package vectorstore

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{
			name:     "identical vectors",
			a:        []float32{1, 2, 3},
			b:        []float32{1, 2, 3},
			expected: 0,
		},
		{
			name:     "orthogonal vectors",
			a:        []float32{1, 0},
			b:        []float32{0, 1},
			expected: 1,
		},
		{
			name:     "opposite vectors",
			a:        []float32{1, 0},
			b:        []float32{-1, 0},
			expected: 2,
		},
		{
			name:     "scaled vectors have zero distance",
			a:        []float32{1, 2},
			b:        []float32{10, 20},
			expected: 0,
		},
		{
			name:     "zero vector is maximally distant",
			a:        []float32{0, 0},
			b:        []float32{1, 1},
			expected: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineDistance(tt.a, tt.b)
			assert.InDelta(t, tt.expected, got, 1e-9)
		})
	}
}

func TestMemoryStore_UpsertAndSearch(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(2, 0)

	require.NoError(t, store.Upsert(ctx, "cache", "a", []float32{1, 0}, map[string]string{"question": "first"}))
	require.NoError(t, store.Upsert(ctx, "cache", "b", []float32{0, 1}, map[string]string{"question": "second"}))
	require.NoError(t, store.Upsert(ctx, "cache", "c", []float32{0.9, 0.1}, map[string]string{"question": "third"}))

	matches, err := store.Search(ctx, "cache", []float32{1, 0}, 2, 0)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, "a", matches[0].ID)
	assert.InDelta(t, 0, matches[0].Distance, 1e-9)
	assert.Equal(t, "first", matches[0].Payload["question"])
	assert.Equal(t, "c", matches[1].ID)
	assert.Less(t, matches[0].Distance, matches[1].Distance)
}

func TestMemoryStore_SearchMaxDistance(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(2, 0)

	require.NoError(t, store.Upsert(ctx, "cache", "near", []float32{1, 0}, nil))
	require.NoError(t, store.Upsert(ctx, "cache", "far", []float32{0, 1}, nil))

	matches, err := store.Search(ctx, "cache", []float32{1, 0}, 10, 0.15)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "near", matches[0].ID)
}

func TestMemoryStore_SearchEmptyNamespace(t *testing.T) {
	store := NewMemoryStore(2, 0)
	matches, err := store.Search(context.Background(), "missing", []float32{1, 0}, 5, 0)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestMemoryStore_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(3, 0)

	err := store.Upsert(ctx, "cache", "a", []float32{1, 0}, nil)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = store.Search(ctx, "cache", []float32{1, 0}, 5, 0)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestMemoryStore_CapacityEviction(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(2, 2)

	require.NoError(t, store.Upsert(ctx, "cache", "a", []float32{1, 0}, nil))
	require.NoError(t, store.Upsert(ctx, "cache", "b", []float32{0, 1}, nil))

	// Touching "a" makes "b" the eviction candidate.
	require.NoError(t, store.Touch(ctx, "cache", "a"))
	require.NoError(t, store.Upsert(ctx, "cache", "c", []float32{1, 1}, nil))

	assert.Equal(t, 2, store.Len("cache"))
	matches, err := store.Search(ctx, "cache", []float32{0, 1}, 10, 0)
	require.NoError(t, err)
	for _, m := range matches {
		assert.NotEqual(t, "b", m.ID)
	}
}

func TestMemoryStore_DropNamespace(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(2, 0)

	require.NoError(t, store.Upsert(ctx, "schema_v1", "a", []float32{1, 0}, nil))
	require.NoError(t, store.Upsert(ctx, "schema_v2", "a", []float32{1, 0}, nil))
	require.NoError(t, store.DropNamespace(ctx, "schema_v1"))

	assert.Equal(t, 0, store.Len("schema_v1"))
	assert.Equal(t, 1, store.Len("schema_v2"))
}

func TestMemoryStore_Aliases(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(2, 0)

	_, err := store.ResolveAlias(ctx, "schema")
	assert.ErrorIs(t, err, ErrAliasNotFound)

	require.NoError(t, store.SetAlias(ctx, "schema", "schema_v1"))
	ns, err := store.ResolveAlias(ctx, "schema")
	require.NoError(t, err)
	assert.Equal(t, "schema_v1", ns)

	// Repointing the alias is how a rebuilt index goes live.
	require.NoError(t, store.SetAlias(ctx, "schema", "schema_v2"))
	ns, err = store.ResolveAlias(ctx, "schema")
	require.NoError(t, err)
	assert.Equal(t, "schema_v2", ns)
}

func TestMemoryStore_ReservedVectorField(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(2, 0)

	require.NoError(t, store.Upsert(ctx, "cache", "a", []float32{1, 0}, map[string]string{
		"vector": "should be dropped",
		"sql":    "SELECT 1",
	}))

	matches, err := store.Search(ctx, "cache", []float32{1, 0}, 1, 0)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "SELECT 1", matches[0].Payload["sql"])
	_, present := matches[0].Payload["vector"]
	assert.False(t, present)
}

func TestEncodeVector(t *testing.T) {
	buf := encodeVector([]float32{1, -2.5})
	require.Len(t, buf, 8)

	readBack := func(b []byte) float32 {
		bits := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
		return math.Float32frombits(bits)
	}
	assert.Equal(t, float32(1), readBack(buf[0:4]))
	assert.Equal(t, float32(-2.5), readBack(buf[4:8]))
}

func TestMemoryStore_IncrementField(t *testing.T) {
	store := NewMemoryStore(2, 0)
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, "cache", "doc1", []float32{1, 0}, map[string]string{"hit_count": "0"}))

	n, err := store.IncrementField(ctx, "cache", "doc1", "hit_count", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = store.IncrementField(ctx, "cache", "doc1", "hit_count", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// A missing field counts as zero.
	n, err = store.IncrementField(ctx, "cache", "doc1", "views", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	_, err = store.IncrementField(ctx, "cache", "missing", "hit_count", 1)
	assert.Error(t, err)
}
