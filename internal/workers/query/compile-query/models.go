// internal/workers/query/compile-query/models.go
package compilequery

import "es-query-studio/internal/querydsl"

// Input is either a field value map with options or a pre-built structure.
type Input struct {
	EnvironmentID string                     `json:"environmentId"`
	IndexName     string                     `json:"indexName"`
	Fields        querydsl.FieldValueMap     `json:"fields"`
	Operator      string                     `json:"operator,omitempty"`
	Pagination    *querydsl.Pagination       `json:"pagination,omitempty"`
	Sort          []querydsl.SortRule        `json:"sort,omitempty"`
	Source        []string                   `json:"source,omitempty"`
	Aggregations  []querydsl.AggregationSpec `json:"aggregations,omitempty"`
	Structure     map[string]interface{}     `json:"structure,omitempty"`
}

type Output struct {
	IndexName string                   `json:"indexName"`
	Query     map[string]interface{}   `json:"query"`
	Structure *querydsl.QueryStructure `json:"structure,omitempty"`
}
