package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"

	"github.com/angelmondragon/repricer-backend/pkg/config"
)

func TestConfiguredTables(t *testing.T) {
	tables := configuredTables(config.BigQueryConfig{PricingEventsTable: " pricing_events "})
	if len(tables) != 1 || tables[0] != "pricing_events" {
		t.Fatalf("unexpected tables %v", tables)
	}
	if tables := configuredTables(config.BigQueryConfig{PricingEventsTable: " "}); len(tables) != 0 {
		t.Fatalf("expected no tables, got %v", tables)
	}
}

func TestNewClientValidation(t *testing.T) {
	ctx := context.Background()
	if _, err := NewClient(ctx, config.GCPConfig{}, config.BigQueryConfig{Dataset: "d", PricingEventsTable: "t"}, nil); !errors.Is(err, errProjectIDRequired) {
		t.Fatalf("expected project error, got %v", err)
	}
	if _, err := NewClient(ctx, config.GCPConfig{ProjectID: "acme"}, config.BigQueryConfig{PricingEventsTable: "t"}, nil); !errors.Is(err, errDatasetRequired) {
		t.Fatalf("expected dataset error, got %v", err)
	}
	if _, err := NewClient(ctx, config.GCPConfig{ProjectID: "acme"}, config.BigQueryConfig{Dataset: "d"}, nil); !errors.Is(err, errTableNameRequired) {
		t.Fatalf("expected table error, got %v", err)
	}
}

func TestUninitializedClient(t *testing.T) {
	var c *Client
	if err := c.InsertRows(context.Background(), "pricing_events", []any{struct{}{}}); !errors.Is(err, errClientNotInitialized) {
		t.Fatalf("expected not initialized, got %v", err)
	}
	if err := c.Ping(context.Background()); !errors.Is(err, errClientNotInitialized) {
		t.Fatalf("expected not initialized, got %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestInsertRowsRejectsUnconfiguredTable(t *testing.T) {
	c := &Client{bq: &bigquery.Client{}, tables: map[string]struct{}{"pricing_events": {}}}
	if err := c.InsertRows(context.Background(), " ", nil); !errors.Is(err, errTableNameRequired) {
		t.Fatalf("expected table name error, got %v", err)
	}
	if err := c.InsertRows(context.Background(), "orders", []any{struct{}{}}); err == nil {
		t.Fatal("expected unconfigured table to fail")
	}
	if err := c.InsertRows(context.Background(), "pricing_events", nil); err != nil {
		t.Fatalf("empty batch should be a no-op, got %v", err)
	}
}

func TestDescribeMetadataErr(t *testing.T) {
	missing := describeMetadataErr("table", "pricing_events", &googleapi.Error{Code: http.StatusNotFound})
	if missing.Error() != `table "pricing_events" does not exist` {
		t.Fatalf("unexpected message %q", missing)
	}
	denied := &googleapi.Error{Code: http.StatusForbidden}
	if err := describeMetadataErr("dataset", "repricer", denied); !errors.Is(err, denied) {
		t.Fatalf("expected cause to be wrapped, got %v", err)
	}
}

func TestIsNotFound(t *testing.T) {
	if !isNotFound(fmt.Errorf("wrapped: %w", &googleapi.Error{Code: http.StatusNotFound})) {
		t.Fatal("expected wrapped 404 to be not found")
	}
	if isNotFound(&googleapi.Error{Code: http.StatusForbidden}) {
		t.Fatal("403 is not a not-found")
	}
	if isNotFound(errors.New("boom")) {
		t.Fatal("plain errors are not not-found")
	}
}
