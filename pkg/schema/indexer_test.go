package schema

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/askdb-ai/askdb-engine/pkg/adapters/datasource"
	"github.com/askdb-ai/askdb-engine/pkg/apperrors"
	"github.com/askdb-ai/askdb-engine/pkg/llm"
	"github.com/askdb-ai/askdb-engine/pkg/vectorstore"
)

// mockDiscoverer serves canned metadata for a two-table listings database.
type mockDiscoverer struct {
	tables         []datasource.TableMetadata
	columns        map[string][]datasource.ColumnMetadata
	fks            []datasource.ForeignKeyMetadata
	distinctValues map[string][]string
	tablesErr      error
}

func (m *mockDiscoverer) DiscoverTables(context.Context) ([]datasource.TableMetadata, error) {
	return m.tables, m.tablesErr
}

func (m *mockDiscoverer) DiscoverColumns(_ context.Context, _, tableName string) ([]datasource.ColumnMetadata, error) {
	return m.columns[tableName], nil
}

func (m *mockDiscoverer) DiscoverForeignKeys(context.Context) ([]datasource.ForeignKeyMetadata, error) {
	return m.fks, nil
}

func (m *mockDiscoverer) GetDistinctValues(_ context.Context, _, tableName, columnName string, limit int) ([]string, error) {
	values := m.distinctValues[tableName+"."+columnName]
	if len(values) > limit {
		values = values[:limit]
	}
	return values, nil
}

func (m *mockDiscoverer) Close() error { return nil }

func listingsDiscoverer() *mockDiscoverer {
	return &mockDiscoverer{
		tables: []datasource.TableMetadata{
			{SchemaName: "public", TableName: "properties", RowCount: 1200},
			{SchemaName: "public", TableName: "agents", RowCount: 40},
		},
		columns: map[string][]datasource.ColumnMetadata{
			"properties": {
				{ColumnName: "id", DataType: "integer", IsPrimaryKey: true, OrdinalPosition: 1},
				{ColumnName: "city", DataType: "text", IsNullable: true, OrdinalPosition: 2},
				{ColumnName: "price", DataType: "numeric", IsNullable: true, OrdinalPosition: 3},
				{ColumnName: "agent_id", DataType: "integer", IsNullable: true, OrdinalPosition: 4},
			},
			"agents": {
				{ColumnName: "agent_id", DataType: "integer", IsPrimaryKey: true, OrdinalPosition: 1},
				{ColumnName: "name", DataType: "text", IsNullable: false, OrdinalPosition: 2},
			},
		},
		fks: []datasource.ForeignKeyMetadata{
			{
				ConstraintName: "properties_agent_id_fkey",
				SourceSchema:   "public", SourceTable: "properties", SourceColumn: "agent_id",
				TargetSchema: "public", TargetTable: "agents", TargetColumn: "agent_id",
			},
		},
		distinctValues: map[string][]string{
			"properties.city": {"Oakland", "San Francisco", "San Jose"},
			// Too many names to treat as an enum.
			"agents.name": manyValues(25),
		},
	}
}

func manyValues(n int) []string {
	values := make([]string, n)
	for i := range values {
		values[i] = fmt.Sprintf("agent-%02d", i)
	}
	return values
}

func TestIndexer_BuildFragments(t *testing.T) {
	ix := NewIndexer(listingsDiscoverer(), &llm.MockEmbeddingClient{}, vectorstore.NewMemoryStore(4, 0),
		IndexerConfig{SampleValues: 20}, zap.NewNop())

	fragments, tableCount, err := ix.BuildFragments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, tableCount)

	// Two table fragments plus one column fragment for properties.city;
	// agents.name has too many distinct values.
	require.Len(t, fragments, 3)

	byID := map[string]string{}
	for _, f := range fragments {
		byID[f.ID()] = f.Description
		assert.NotEmpty(t, f.Hash)
	}

	props := byID["properties"]
	assert.Contains(t, props, "Table: properties (Schema: public)")
	assert.Contains(t, props, "- id (integer, NOT NULL) [PRIMARY KEY]")
	assert.Contains(t, props, "- city (text, NULL)")
	assert.Contains(t, props, "FOREIGN KEY references public.agents(agent_id)")

	city := byID["properties.city"]
	assert.Contains(t, city, "Column: properties.city (text)")
	assert.Contains(t, city, "Oakland, San Francisco, San Jose")

	_, hasNameFragment := byID["agents.name"]
	assert.False(t, hasNameFragment)
}

func TestIndexer_FragmentHashIsStable(t *testing.T) {
	ix := NewIndexer(listingsDiscoverer(), &llm.MockEmbeddingClient{}, vectorstore.NewMemoryStore(4, 0),
		IndexerConfig{}, zap.NewNop())

	first, _, err := ix.BuildFragments(context.Background())
	require.NoError(t, err)
	second, _, err := ix.BuildFragments(context.Background())
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Hash, second[i].Hash)
	}
}

func TestIndexer_IndexPublishesAtomically(t *testing.T) {
	ctx := context.Background()
	store := vectorstore.NewMemoryStore(4, 0)
	embedder := &llm.MockEmbeddingClient{}
	ix := NewIndexer(listingsDiscoverer(), embedder, store, IndexerConfig{}, zap.NewNop())

	report, err := ix.Index(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.TableCount)
	assert.Equal(t, 3, report.FragmentCount)

	namespace, err := store.ResolveAlias(ctx, IndexAlias)
	require.NoError(t, err)
	assert.Equal(t, report.Namespace, namespace)
	assert.Equal(t, 3, store.Len(namespace))

	// Re-indexing swaps the alias and drops the previous namespace.
	second, err := ix.Index(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, report.Namespace, second.Namespace)
	assert.Equal(t, 0, store.Len(report.Namespace))

	current, err := store.ResolveAlias(ctx, IndexAlias)
	require.NoError(t, err)
	assert.Equal(t, second.Namespace, current)
}

func TestIndexer_EmbeddingFailureLeavesIndexUntouched(t *testing.T) {
	ctx := context.Background()
	store := vectorstore.NewMemoryStore(4, 0)

	good := NewIndexer(listingsDiscoverer(), &llm.MockEmbeddingClient{}, store, IndexerConfig{}, zap.NewNop())
	report, err := good.Index(ctx)
	require.NoError(t, err)

	failing := &llm.MockEmbeddingClient{
		CreateEmbeddingFunc: func(context.Context, string) ([]float32, error) {
			return nil, errors.New("provider down")
		},
	}
	bad := NewIndexer(listingsDiscoverer(), failing, store, IndexerConfig{}, zap.NewNop())

	_, err = bad.Index(ctx)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindEmbeddingUnavailable, apperrors.KindOf(err))

	// The alias still points at the last complete index.
	namespace, err := store.ResolveAlias(ctx, IndexAlias)
	require.NoError(t, err)
	assert.Equal(t, report.Namespace, namespace)
	assert.Equal(t, 3, store.Len(namespace))
}

func TestIndexer_DiscoveryFailure(t *testing.T) {
	disc := listingsDiscoverer()
	disc.tablesErr = errors.New("connection refused")
	ix := NewIndexer(disc, &llm.MockEmbeddingClient{}, vectorstore.NewMemoryStore(4, 0),
		IndexerConfig{}, zap.NewNop())

	_, err := ix.Index(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.KindSchemaIndexUnavailable, apperrors.KindOf(err))
}
