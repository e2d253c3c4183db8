package mapping

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issuesFor(r *ValidationReport, field string) []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Field == field {
			out = append(out, i)
		}
	}
	return out
}

func TestValidate_CleanMapping(t *testing.T) {
	generated, err := BuildProperties([]MappingField{
		{FieldName: "name", ElasticType: FieldTypeText},
		{FieldName: "status", ElasticType: FieldTypeKeyword},
		{FieldName: "created", ElasticType: FieldTypeDate},
	})
	require.NoError(t, err)

	r := Validate(Wrap(generated))
	assert.True(t, r.Valid)
	assert.Empty(t, r.Issues)
	assert.Equal(t, 1.0, r.Score)
	assert.Equal(t, 3, r.FieldCount)
	assert.True(t, r.HasTextFields)
	assert.True(t, r.HasKeywordFields)
	assert.NoError(t, r.Err())
}

func TestValidate_MissingSections(t *testing.T) {
	r := Validate(map[string]interface{}{"settings": map[string]interface{}{}})
	assert.False(t, r.Valid)
	require.Len(t, r.Issues, 1)
	assert.Equal(t, CategoryStructural, r.Issues[0].Category)
	assert.Contains(t, r.Issues[0].Message, "Missing")

	r = Validate(map[string]interface{}{"mappings": map[string]interface{}{"properties": map[string]interface{}{}}})
	assert.False(t, r.Valid)
	assert.Contains(t, r.Issues[0].Message, "No field properties")
	assert.Error(t, r.Err())
}

func TestValidate_FieldIssues(t *testing.T) {
	r := Validate(map[string]interface{}{
		"properties": map[string]interface{}{
			"notes":   map[string]interface{}{"type": "text"},
			"code":    map[string]interface{}{"type": "keyword", "analyzer": "standard"},
			"born":    map[string]interface{}{"type": "date"},
			"DOB":     map[string]interface{}{"type": "date", "format": "yyyy-MM-dd"},
			"broken":  "text",
			"untyped": map[string]interface{}{"index": false},
			"weird":   map[string]interface{}{"type": "strang"},
			"address": map[string]interface{}{"properties": map[string]interface{}{
				"city": map[string]interface{}{"type": "keyword"},
			}},
		},
	})

	assert.False(t, r.Valid)
	assert.Equal(t, 9, r.FieldCount)
	assert.Equal(t, 1, r.NestingDepth)

	assert.Equal(t, IssueSuggestion, issuesFor(r, "notes")[0].Type)
	assert.Equal(t, IssueWarning, issuesFor(r, "code")[0].Type)
	assert.Contains(t, issuesFor(r, "born")[0].Message, "format")
	assert.Len(t, issuesFor(r, "DOB"), 2)
	assert.Equal(t, IssueError, issuesFor(r, "broken")[0].Type)
	assert.Contains(t, issuesFor(r, "untyped")[0].Message, "missing required 'type'")
	assert.Contains(t, issuesFor(r, "weird")[0].Message, "Invalid field type")
	assert.Empty(t, issuesFor(r, "address"))
	assert.Empty(t, issuesFor(r, "address.city"))

	// 3 errors, 1 warning, 4 suggestions
	assert.InDelta(t, 1-0.6-0.05-0.04, r.Score, 0.001)
	assert.Equal(t, "9 fields, 3 errors, 1 warnings, 4 suggestions", r.Summary)

	err := r.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
	assert.Contains(t, err.Error(), "weird")
}

func TestValidate_Limits(t *testing.T) {
	deep := map[string]interface{}{"type": "keyword"}
	for i := 0; i < 5; i++ {
		deep = map[string]interface{}{"type": "object", "properties": map[string]interface{}{"level": deep}}
	}
	props := map[string]interface{}{"deep": deep}
	for i := 0; i < MaxFieldCount; i++ {
		props[fmt.Sprintf("f%04d", i)] = map[string]interface{}{"type": "long"}
	}

	r := Validate(map[string]interface{}{"properties": props})
	assert.True(t, r.Valid)
	assert.Equal(t, 5, r.NestingDepth)

	var warnings []string
	for _, i := range r.Issues {
		if i.Type == IssueWarning {
			warnings = append(warnings, i.Message)
		}
	}
	require.Len(t, warnings, 2)
	assert.Contains(t, warnings[0], "High field count")
	assert.Contains(t, warnings[1], "Deep nesting")
}

func TestExtractProperties_GetMappingShape(t *testing.T) {
	props, err := ExtractProperties(map[string]interface{}{
		"customers": map[string]interface{}{
			"mappings": map[string]interface{}{
				"properties": map[string]interface{}{"id": map[string]interface{}{"type": "long"}},
			},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, props, "id")

	_, err = ExtractProperties(map[string]interface{}{"a": 1, "b": 2})
	assert.Error(t, err)
}
