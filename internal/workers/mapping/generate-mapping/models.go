// internal/workers/mapping/generate-mapping/models.go
package generatemapping

import "es-query-studio/internal/mapping"

// Input selects one of two sources: explicit field descriptors, or Oracle
// tables described through the environment's source database.
type Input struct {
	EnvironmentID       string                 `json:"environmentId"`
	IndexName           string                 `json:"indexName"`
	Fields              []mapping.MappingField `json:"fields,omitempty"`
	Owner               string                 `json:"owner,omitempty"`
	Tables              []string               `json:"tables,omitempty"`
	RootTable           string                 `json:"rootTable,omitempty"`
	Relationships       []mapping.Relationship `json:"relationships,omitempty"`
	DetectRelationships bool                   `json:"detectRelationships,omitempty"`
	Save                *bool                  `json:"save,omitempty"` // defaults to true
}

type Output struct {
	Mapping       map[string]interface{}    `json:"mapping"`
	MappingID     string                    `json:"mappingId,omitempty"`
	Relationships []mapping.Relationship    `json:"relationships,omitempty"`
	Validation    *mapping.ValidationReport `json:"validation"`
}
