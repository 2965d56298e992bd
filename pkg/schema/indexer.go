// Package schema turns database metadata into embeddable fragments and
// keeps the vector index of those fragments up to date.
package schema

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/askdb-ai/askdb-engine/pkg/adapters/datasource"
	"github.com/askdb-ai/askdb-engine/pkg/apperrors"
	"github.com/askdb-ai/askdb-engine/pkg/llm"
	"github.com/askdb-ai/askdb-engine/pkg/models"
	"github.com/askdb-ai/askdb-engine/pkg/vectorstore"
)

// IndexAlias is the vector store alias that always points at the live
// schema index namespace.
const IndexAlias = "schema"

// Payload field names used for fragment documents in the vector store.
const (
	payloadTable       = "table"
	payloadColumn      = "column"
	payloadDescription = "description"
	payloadHash        = "hash"
)

// IndexerConfig tunes fragment construction.
type IndexerConfig struct {
	// SampleValues is the max distinct values sampled per text column; a
	// column with at most this many values gets its own fragment.
	SampleValues int
}

// IndexReport summarizes one indexing run.
type IndexReport struct {
	Namespace      string        `json:"namespace"`
	TableCount     int           `json:"table_count"`
	FragmentCount  int           `json:"fragment_count"`
	Duration       time.Duration `json:"-"`
	DurationMillis int64         `json:"duration_ms"`
}

// Indexer builds schema fragments from a live database and publishes them
// to a versioned vector store namespace.
type Indexer struct {
	discoverer datasource.SchemaDiscoverer
	embedder   llm.EmbeddingClient
	store      vectorstore.Store
	cfg        IndexerConfig
	logger     *zap.Logger
}

// NewIndexer creates an Indexer.
func NewIndexer(discoverer datasource.SchemaDiscoverer, embedder llm.EmbeddingClient, store vectorstore.Store, cfg IndexerConfig, logger *zap.Logger) *Indexer {
	if cfg.SampleValues <= 0 {
		cfg.SampleValues = 20
	}
	return &Indexer{
		discoverer: discoverer,
		embedder:   embedder,
		store:      store,
		cfg:        cfg,
		logger:     logger,
	}
}

// Index rebuilds the schema index from scratch. Fragments are written to a
// fresh versioned namespace; only after every document is stored does the
// alias move, so readers never observe a partially built index. The previous
// namespace is dropped after the swap.
func (ix *Indexer) Index(ctx context.Context) (*IndexReport, error) {
	start := time.Now()

	fragments, tableCount, err := ix.BuildFragments(ctx)
	if err != nil {
		return nil, err
	}
	if len(fragments) == 0 {
		return nil, apperrors.New(apperrors.KindSchemaIndexUnavailable,
			"no tables found to index", false, nil)
	}

	texts := make([]string, len(fragments))
	for i, f := range fragments {
		texts[i] = f.Description
	}
	vectors, err := ix.embedder.CreateEmbeddings(ctx, texts)
	if err != nil {
		return nil, apperrors.New(apperrors.KindEmbeddingUnavailable,
			"embedding provider unavailable during indexing", true, err)
	}

	namespace := fmt.Sprintf("schema_v%d", time.Now().UnixNano())
	for i, f := range fragments {
		payload := map[string]string{
			payloadTable:       f.Table,
			payloadColumn:      f.Column,
			payloadDescription: f.Description,
			payloadHash:        f.Hash,
		}
		if err := ix.store.Upsert(ctx, namespace, f.ID(), vectors[i], payload); err != nil {
			// Abandon the half-built namespace; the alias still points at
			// the previous complete index.
			if dropErr := ix.store.DropNamespace(ctx, namespace); dropErr != nil {
				ix.logger.Warn("failed to clean up abandoned index namespace",
					zap.String("namespace", namespace), zap.Error(dropErr))
			}
			return nil, apperrors.New(apperrors.KindSchemaIndexUnavailable,
				"failed to store schema fragments", true, err)
		}
	}

	previous, err := ix.store.ResolveAlias(ctx, IndexAlias)
	if err != nil && !errors.Is(err, vectorstore.ErrAliasNotFound) {
		return nil, apperrors.New(apperrors.KindSchemaIndexUnavailable,
			"failed to resolve current index alias", true, err)
	}

	if err := ix.store.SetAlias(ctx, IndexAlias, namespace); err != nil {
		return nil, apperrors.New(apperrors.KindSchemaIndexUnavailable,
			"failed to publish new index", true, err)
	}

	if previous != "" && previous != namespace {
		if err := ix.store.DropNamespace(ctx, previous); err != nil {
			ix.logger.Warn("failed to drop previous index namespace",
				zap.String("namespace", previous), zap.Error(err))
		}
	}

	duration := time.Since(start)
	ix.logger.Info("schema index published",
		zap.String("namespace", namespace),
		zap.Int("tables", tableCount),
		zap.Int("fragments", len(fragments)),
		zap.Duration("duration", duration))

	return &IndexReport{
		Namespace:      namespace,
		TableCount:     tableCount,
		FragmentCount:  len(fragments),
		Duration:       duration,
		DurationMillis: duration.Milliseconds(),
	}, nil
}

// BuildFragments introspects the database and renders one fragment per table
// plus one per low-cardinality text column. Returns the fragments and the
// number of tables seen.
func (ix *Indexer) BuildFragments(ctx context.Context) ([]models.SchemaFragment, int, error) {
	tables, err := ix.discoverer.DiscoverTables(ctx)
	if err != nil {
		return nil, 0, apperrors.New(apperrors.KindSchemaIndexUnavailable,
			"failed to discover tables", true, err)
	}

	fks, err := ix.discoverer.DiscoverForeignKeys(ctx)
	if err != nil {
		return nil, 0, apperrors.New(apperrors.KindSchemaIndexUnavailable,
			"failed to discover foreign keys", true, err)
	}
	fksBySource := make(map[string][]datasource.ForeignKeyMetadata)
	for _, fk := range fks {
		key := fk.SourceSchema + "." + fk.SourceTable
		fksBySource[key] = append(fksBySource[key], fk)
	}

	var fragments []models.SchemaFragment
	for _, table := range tables {
		columns, err := ix.discoverer.DiscoverColumns(ctx, table.SchemaName, table.TableName)
		if err != nil {
			return nil, 0, apperrors.New(apperrors.KindSchemaIndexUnavailable,
				fmt.Sprintf("failed to discover columns for %s", table.TableName), true, err)
		}

		tableFKs := fksBySource[table.SchemaName+"."+table.TableName]
		fragments = append(fragments, newFragment(table.TableName, "",
			renderTableDescription(table, columns, tableFKs)))

		for _, col := range columns {
			if !isTextType(col.DataType) {
				continue
			}
			values, err := ix.discoverer.GetDistinctValues(ctx, table.SchemaName, table.TableName,
				col.ColumnName, ix.cfg.SampleValues+1)
			if err != nil {
				// Sampling is best effort; an unreadable column just gets
				// no column fragment.
				ix.logger.Debug("skipping value sampling",
					zap.String("table", table.TableName),
					zap.String("column", col.ColumnName),
					zap.Error(err))
				continue
			}
			if len(values) == 0 || len(values) > ix.cfg.SampleValues {
				continue
			}
			fragments = append(fragments, newFragment(table.TableName, col.ColumnName,
				renderColumnDescription(table.TableName, col, values)))
		}
	}

	return fragments, len(tables), nil
}

func newFragment(table, column, description string) models.SchemaFragment {
	sum := sha256.Sum256([]byte(description))
	return models.SchemaFragment{
		Table:       table,
		Column:      column,
		Description: description,
		Hash:        hex.EncodeToString(sum[:]),
	}
}

// renderTableDescription formats one table as embeddable text: name, schema,
// and every column with type, nullability, and constraints.
func renderTableDescription(table datasource.TableMetadata, columns []datasource.ColumnMetadata, fks []datasource.ForeignKeyMetadata) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Table: %s (Schema: %s)\nColumns:\n", table.TableName, table.SchemaName)

	fkByColumn := make(map[string]datasource.ForeignKeyMetadata, len(fks))
	for _, fk := range fks {
		fkByColumn[fk.SourceColumn] = fk
	}

	for _, col := range columns {
		nullable := "NOT NULL"
		if col.IsNullable {
			nullable = "NULL"
		}

		var constraints []string
		if col.IsPrimaryKey {
			constraints = append(constraints, "PRIMARY KEY")
		}
		if fk, ok := fkByColumn[col.ColumnName]; ok {
			constraints = append(constraints,
				fmt.Sprintf("FOREIGN KEY references %s.%s(%s)", fk.TargetSchema, fk.TargetTable, fk.TargetColumn))
		}
		constraintStr := ""
		if len(constraints) > 0 {
			constraintStr = " [" + strings.Join(constraints, ", ") + "]"
		}

		fmt.Fprintf(&sb, "- %s (%s, %s)%s\n", col.ColumnName, col.DataType, nullable, constraintStr)
	}

	return sb.String()
}

// renderColumnDescription formats a low-cardinality column with its sampled
// values, which lets value-laden questions ("homes in San Francisco") match
// the column that holds those values.
func renderColumnDescription(tableName string, col datasource.ColumnMetadata, values []string) string {
	sorted := make([]string, len(values))
	copy(sorted, values)
	sort.Strings(sorted)
	return fmt.Sprintf("Column: %s.%s (%s)\nSample values: %s\n",
		tableName, col.ColumnName, col.DataType, strings.Join(sorted, ", "))
}

func isTextType(dataType string) bool {
	switch strings.ToLower(dataType) {
	case "text", "varchar", "character varying", "character", "char", "bpchar", "citext":
		return true
	}
	return false
}
