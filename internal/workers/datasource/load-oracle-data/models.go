// internal/workers/datasource/load-oracle-data/models.go
package loadoracledata

import "es-query-studio/internal/mapping"

type Input struct {
	EnvironmentID string `json:"environmentId"`
	IndexName     string `json:"indexName"`
	Table         string `json:"table"`
	Owner         string `json:"owner,omitempty"`
	Limit         int    `json:"limit,omitempty"`
	// IdField names the mapping field whose value becomes the document id.
	IdField string `json:"idField,omitempty"`
}

type Output struct {
	IndexName      string                  `json:"indexName"`
	Table          string                  `json:"table"`
	RowsRead       int                     `json:"rowsRead"`
	Indexed        uint64                  `json:"indexed"`
	Failed         uint64                  `json:"failed"`
	Skipped        int                     `json:"skipped"`
	ColumnAnalysis *mapping.ColumnAnalysis `json:"columnAnalysis"`
	Failures       []string                `json:"failures,omitempty"`
}
