// internal/workers/mapping/validate-mapping/models.go
package validatemapping

import "es-query-studio/internal/mapping"

// Input carries a mapping, or names an index whose live mapping is read
// from the environment's cluster.
type Input struct {
	EnvironmentID string                 `json:"environmentId"`
	IndexName     string                 `json:"indexName,omitempty"`
	Mapping       map[string]interface{} `json:"mapping,omitempty"`
}

type Output struct {
	*mapping.ValidationReport
	Source string `json:"source"` // "inline" or "cluster"
}
