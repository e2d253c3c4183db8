package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	reg := Default()
	require.NoError(t, reg.Validate())

	var taskTypes []string
	for _, a := range reg.Activities {
		taskTypes = append(taskTypes, a.TaskType)
		assert.NotEmpty(t, a.InputSchema, a.TaskType)
		assert.NotEmpty(t, a.ErrorCodes, a.TaskType)
	}
	assert.Equal(t, []string{
		"compile-query", "execute-search", "generate-mapping", "apply-mapping",
		"validate-mapping", "test-connection", "load-oracle-data",
	}, taskTypes)
}

func TestFind(t *testing.T) {
	reg := Default()

	a, ok := reg.Find("execute-search")
	require.True(t, ok)
	assert.Equal(t, "query.search.execute", a.ID)
	assert.Equal(t, 30*time.Second, a.TimeoutOr(time.Second))

	_, ok = reg.Find("send-email")
	assert.False(t, ok)
}

func TestActivity_ValidateInput(t *testing.T) {
	a, ok := Default().Find("compile-query")
	require.True(t, ok)

	tests := []struct {
		name    string
		payload string
		valid   bool
		field   string
	}{
		{"minimal", `{"indexName":"customers"}`, true, ""},
		{"full", `{"indexName":"customers","fields":{"city":"Paris"},"operator":"OR",
			"pagination":{"from":0,"size":20},"sort":[{"field":"name","order":"asc"}],
			"aggregations":[{"name":"by_city","type":"terms","field":"city",
				"sub_aggregations":[{"name":"avg_age","type":"avg","field":"age"}]}]}`, true, ""},
		{"structure only", `{"structure":{"index_name":"customers","query":{"operator":"AND"}}}`, true, ""},
		{"missing index", `{"fields":{}}`, false, "indexName"},
		{"empty index beside structure", `{"indexName":"","structure":{}}`, false, "indexName"},
		{"bad operator", `{"indexName":"c","operator":"XOR"}`, false, "operator"},
		{"negative page", `{"indexName":"c","pagination":{"from":-1}}`, false, "pagination.from"},
		{"aggregation without field", `{"indexName":"c","aggregations":[{"name":"a","type":"terms"}]}`, false, "aggregations.0.field"},
		{"not json", `{indexName`, false, "(root)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := a.ValidateInput([]byte(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.valid, res.Valid, res.GetErrorMessages())
			if tt.field != "" {
				assert.True(t, res.HasErrors(tt.field), res.GetErrorMessages())
			}
		})
	}
}

func TestActivity_ValidateInput_StructureOnlySearch(t *testing.T) {
	a, ok := Default().Find("execute-search")
	require.True(t, ok)

	res, err := a.ValidateInput([]byte(`{"structure":{"index_name":"customers","query":{"operator":"OR"}},"generateQuestions":true}`))
	require.NoError(t, err)
	assert.True(t, res.Valid, res.GetErrorMessages())

	res, err = a.ValidateInput([]byte(`{"generateQuestions":true}`))
	require.NoError(t, err)
	assert.False(t, res.Valid)
}

func TestLoadRegistry_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"version": "2.0.0",
		"activities": [
			{"id": "query.search.execute", "taskType": "execute-search", "timeout": "90s", "retries": 5},
			{"id": "query.search.export", "taskType": "export-search", "timeout": "5m"}
		]
	}`), 0o600))

	reg, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", reg.Version)
	assert.Len(t, reg.Activities, 8)

	a, ok := reg.Find("execute-search")
	require.True(t, ok)
	assert.Equal(t, 5, a.Retries)
	assert.Equal(t, 90*time.Second, a.TimeoutOr(0))

	_, ok = reg.Find("export-search")
	assert.True(t, ok)
}

func TestLoadRegistry_Invalid(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadRegistry(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"activities":[{"id":"Bad-Id","taskType":"x"}]}`), 0o600))
	_, err = LoadRegistry(bad)
	assert.ErrorContains(t, err, "domain.subdomain.action")
}

func TestValidate_DuplicateTaskType(t *testing.T) {
	reg := &ActivityRegistry{Activities: []Activity{
		{ID: "query.search.one", TaskType: "search"},
		{ID: "query.search.two", TaskType: "search"},
	}}
	assert.ErrorContains(t, reg.Validate(), "duplicate task type")

	reg = &ActivityRegistry{Activities: []Activity{{ID: "query.search.one", TaskType: "search", Timeout: "soon"}}}
	assert.ErrorContains(t, reg.Validate(), "invalid timeout")
}
