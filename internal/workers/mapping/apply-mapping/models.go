// internal/workers/mapping/apply-mapping/models.go
package applymapping

// Input names a stored mapping record or carries the mapping inline.
type Input struct {
	EnvironmentID string                 `json:"environmentId"`
	IndexName     string                 `json:"indexName"`
	MappingID     string                 `json:"mappingId,omitempty"`
	Mapping       map[string]interface{} `json:"mapping,omitempty"`
	Recreate      bool                   `json:"recreate,omitempty"`
}

type Output struct {
	IndexName string `json:"indexName"`
	MappingID string `json:"mappingId,omitempty"`
	Created   bool   `json:"created"`
	Recreated bool   `json:"recreated"`
}
