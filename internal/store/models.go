// Package store persists environments, per-index field classifications and
// generated mappings.
package store

import (
	"context"
	"errors"
	"time"

	"es-query-studio/internal/querydsl"
)

var ErrNotFound = errors.New("not found")

// Environment is a pair of connection targets: an Elasticsearch cluster and
// optionally an Oracle source database.
type Environment struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ESAddresses []string  `json:"esAddresses"`
	ESUsername  string    `json:"esUsername,omitempty"`
	ESPassword  string    `json:"esPassword,omitempty"`
	OracleDSN   string    `json:"oracleDsn,omitempty"`
	OracleOwner string    `json:"oracleOwner,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Redacted returns a copy without secrets, for API responses.
func (e Environment) Redacted() Environment {
	if e.ESPassword != "" {
		e.ESPassword = "********"
	}
	if e.OracleDSN != "" {
		e.OracleDSN = "********"
	}
	return e
}

// IndexConfig records how the fields of one index are scoped.
type IndexConfig struct {
	EnvironmentID     string    `json:"environmentId"`
	IndexName         string    `json:"indexName"`
	RootFields        []string  `json:"rootFields"`
	NestedFields      []string  `json:"nestedFields"`
	ParentChildFields []string  `json:"parentChildFields"`
	RelationName      string    `json:"parentChildRelationName,omitempty"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

func (c IndexConfig) Classifier() *querydsl.StaticClassifier {
	return querydsl.NewStaticClassifier(c.RootFields, c.NestedFields, c.ParentChildFields, c.RelationName)
}

// MappingRecord is a generated mapping and whether it was applied.
type MappingRecord struct {
	ID            string                 `json:"id"`
	EnvironmentID string                 `json:"environmentId"`
	IndexName     string                 `json:"indexName"`
	Mapping       map[string]interface{} `json:"mapping"`
	Applied       bool                   `json:"applied"`
	CreatedAt     time.Time              `json:"createdAt"`
}

// ConfigStore is the persistence boundary used by workers and the API.
type ConfigStore interface {
	CreateEnvironment(ctx context.Context, env *Environment) error
	GetEnvironment(ctx context.Context, id string) (*Environment, error)
	ListEnvironments(ctx context.Context) ([]Environment, error)
	DeleteEnvironment(ctx context.Context, id string) error

	SaveIndexConfig(ctx context.Context, cfg *IndexConfig) error
	GetIndexConfig(ctx context.Context, environmentID, indexName string) (*IndexConfig, error)

	SaveMapping(ctx context.Context, rec *MappingRecord) error
	GetMapping(ctx context.Context, id string) (*MappingRecord, error)
	ListMappings(ctx context.Context, environmentID string) ([]MappingRecord, error)
	MarkMappingApplied(ctx context.Context, id string) error
}
