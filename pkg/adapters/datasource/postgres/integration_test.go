package postgres

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/askdb-ai/askdb-engine/pkg/apperrors"
	"github.com/askdb-ai/askdb-engine/pkg/testhelpers"
)

func setupListingsSchema(t *testing.T) {
	t.Helper()

	db := testhelpers.GetTestDB(t)
	ctx := context.Background()

	_, err := db.Pool.Exec(ctx, `
		DROP TABLE IF EXISTS listings_properties;
		CREATE TABLE listings_properties (
			id SERIAL PRIMARY KEY,
			address TEXT NOT NULL,
			city TEXT NOT NULL,
			price NUMERIC NOT NULL
		);
		INSERT INTO listings_properties (address, city, price) VALUES
			('12 Grant Ave', 'San Francisco', 2400000),
			('88 Oak St', 'San Francisco', 1850000),
			('5 Pine Rd', 'Oakland', 950000);
	`)
	if err != nil {
		t.Fatalf("failed to seed test schema: %v", err)
	}
}

func TestSchemaDiscoverer_Integration(t *testing.T) {
	setupListingsSchema(t)
	db := testhelpers.GetTestDB(t)
	ctx := context.Background()

	discoverer := NewSchemaDiscovererFromPool(db.Pool, zap.NewNop())

	tables, err := discoverer.DiscoverTables(ctx)
	if err != nil {
		t.Fatalf("DiscoverTables failed: %v", err)
	}
	found := false
	for _, tbl := range tables {
		if tbl.TableName == "listings_properties" {
			found = true
		}
	}
	if !found {
		t.Fatal("listings_properties not discovered")
	}

	columns, err := discoverer.DiscoverColumns(ctx, "public", "listings_properties")
	if err != nil {
		t.Fatalf("DiscoverColumns failed: %v", err)
	}
	byName := map[string]bool{}
	var pkFound bool
	for _, col := range columns {
		byName[col.ColumnName] = true
		if col.ColumnName == "id" && col.IsPrimaryKey {
			pkFound = true
		}
	}
	for _, want := range []string{"id", "address", "city", "price"} {
		if !byName[want] {
			t.Errorf("column %q not discovered", want)
		}
	}
	if !pkFound {
		t.Error("primary key on id not detected")
	}

	values, err := discoverer.GetDistinctValues(ctx, "public", "listings_properties", "city", 10)
	if err != nil {
		t.Fatalf("GetDistinctValues failed: %v", err)
	}
	if len(values) != 2 {
		t.Errorf("expected 2 distinct cities, got %d: %v", len(values), values)
	}
}

func TestQueryExecutor_Integration(t *testing.T) {
	setupListingsSchema(t)
	db := testhelpers.GetTestDB(t)
	ctx := context.Background()

	executor := NewQueryExecutorFromPool(db.Pool, 5*time.Second, zap.NewNop())

	t.Run("select with results", func(t *testing.T) {
		result, err := executor.Execute(ctx,
			"SELECT address, price FROM listings_properties WHERE city = 'San Francisco' ORDER BY price DESC", 1000)
		if err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		if result.RowCount != 2 {
			t.Errorf("expected 2 rows, got %d", result.RowCount)
		}
		if result.Truncated {
			t.Error("expected truncated false")
		}
		if len(result.Columns) != 2 || result.Columns[0] != "address" {
			t.Errorf("unexpected columns: %v", result.Columns)
		}
		if result.Rows[0]["address"] != "12 Grant Ave" {
			t.Errorf("unexpected first row: %v", result.Rows[0])
		}
	})

	t.Run("row limit truncates", func(t *testing.T) {
		result, err := executor.Execute(ctx, "SELECT id FROM listings_properties ORDER BY id", 2)
		if err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		if result.RowCount != 2 {
			t.Errorf("expected 2 rows at the limit, got %d", result.RowCount)
		}
		if !result.Truncated {
			t.Error("expected truncated true")
		}
	})

	t.Run("write rejected by read-only transaction", func(t *testing.T) {
		_, err := executor.Execute(ctx, "DELETE FROM listings_properties", 1000)
		if err == nil {
			t.Fatal("expected write to fail in read-only transaction")
		}
		if kind := apperrors.KindOf(err); kind != apperrors.KindExecutionError {
			t.Errorf("expected kind ExecutionError, got %s", kind)
		}

		var count int
		if err := db.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM listings_properties").Scan(&count); err != nil {
			t.Fatalf("count failed: %v", err)
		}
		if count != 3 {
			t.Errorf("expected rows untouched, got %d", count)
		}
	})

	t.Run("timeout classified", func(t *testing.T) {
		slow := NewQueryExecutorFromPool(db.Pool, 100*time.Millisecond, zap.NewNop())
		_, err := slow.Execute(ctx, "SELECT pg_sleep(5)", 1000)
		if err == nil {
			t.Fatal("expected timeout error")
		}
		if kind := apperrors.KindOf(err); kind != apperrors.KindExecutionTimeout {
			t.Errorf("expected kind ExecutionTimeout, got %s", kind)
		}
	})
}
