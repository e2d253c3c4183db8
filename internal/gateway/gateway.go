// Package gateway resolves the Elasticsearch cluster and Oracle source
// database of an environment.
package gateway

import (
	"context"

	"es-query-studio/internal/common/database"
	"es-query-studio/internal/mapping"
)

// SearchEngine is the Elasticsearch surface used by the services.
type SearchEngine interface {
	Ping(ctx context.Context) error
	Info(ctx context.Context) (*database.ClusterInfo, error)
	Search(ctx context.Context, index string, body map[string]interface{}) (*database.SearchResult, error)
	ListIndices(ctx context.Context) ([]database.IndexInfo, error)
	GetMapping(ctx context.Context, index string) (map[string]interface{}, error)
	IndexExists(ctx context.Context, index string) (bool, error)
	CreateIndex(ctx context.Context, index string, body map[string]interface{}) error
	DeleteIndex(ctx context.Context, index string) error
	BulkIndex(ctx context.Context, index string, docs []map[string]interface{}, idField string) (*database.BulkResult, error)
}

// SourceDatabase is the Oracle surface used for mapping generation and
// data loading.
type SourceDatabase interface {
	Ping(ctx context.Context) error
	ListTables(ctx context.Context, owner string) ([]string, error)
	DescribeTable(ctx context.Context, owner, table string) (*mapping.TableMetadata, error)
	DetectRelationships(ctx context.Context, owner string, tables []string) ([]mapping.Relationship, error)
	FetchRows(ctx context.Context, owner, table string, limit int) (*database.Rows, error)
}

// Resolver hands out the gateways of an environment. An empty environment
// id selects the configured defaults.
type Resolver interface {
	SearchEngine(ctx context.Context, environmentID string) (SearchEngine, error)
	SourceDatabase(ctx context.Context, environmentID string) (SourceDatabase, error)
}

var (
	_ SearchEngine   = (*database.ElasticsearchClient)(nil)
	_ SourceDatabase = (*database.OracleClient)(nil)
)
