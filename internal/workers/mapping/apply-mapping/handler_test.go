package applymapping

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"es-query-studio/internal/common/database"
	"es-query-studio/internal/common/errors"
	"es-query-studio/internal/common/logger"
	"es-query-studio/internal/gateway/gatewaytest"
	"es-query-studio/internal/store"
	"es-query-studio/internal/store/storetest"
)

func createTestConfig() *Config {
	return &Config{Timeout: 5 * time.Second}
}

func customerMapping() map[string]interface{} {
	return map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"name": map[string]interface{}{"type": "keyword"},
			},
		},
	}
}

func TestExecute_InlineMapping(t *testing.T) {
	r := gatewaytest.NewResolver()
	h := NewHandler(createTestConfig(), r, storetest.NewMemoryStore(), logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{IndexName: "customers", Mapping: customerMapping()})
	require.NoError(t, err)
	assert.True(t, out.Created)
	assert.False(t, out.Recreated)
	assert.Equal(t, customerMapping(), r.Search.Indices["customers"])
}

func TestExecute_WrapsBareProperties(t *testing.T) {
	r := gatewaytest.NewResolver()
	h := NewHandler(createTestConfig(), r, storetest.NewMemoryStore(), logger.NewTestLogger(t))

	_, err := h.Execute(context.Background(), &Input{
		IndexName: "customers",
		Mapping: map[string]interface{}{
			"properties": map[string]interface{}{"name": map[string]interface{}{"type": "keyword"}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, customerMapping(), r.Search.Indices["customers"])
}

func TestExecute_StoredMappingIsMarkedApplied(t *testing.T) {
	s := storetest.NewMemoryStore()
	rec := &store.MappingRecord{EnvironmentID: "dev", IndexName: "customers", Mapping: customerMapping()}
	require.NoError(t, s.SaveMapping(context.Background(), rec))

	r := gatewaytest.NewResolver()
	h := NewHandler(createTestConfig(), r, s, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{EnvironmentID: "dev", IndexName: "customers", MappingID: rec.ID})
	require.NoError(t, err)
	assert.Equal(t, rec.ID, out.MappingID)

	stored, err := s.GetMapping(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.True(t, stored.Applied)
	assert.Contains(t, r.Search.Indices, "customers")
}

func TestExecute_ExistingIndex(t *testing.T) {
	t.Run("rejected without recreate", func(t *testing.T) {
		r := gatewaytest.NewResolver()
		r.Search.Indices["customers"] = map[string]interface{}{}
		h := NewHandler(createTestConfig(), r, storetest.NewMemoryStore(), logger.NewTestLogger(t))

		_, err := h.Execute(context.Background(), &Input{IndexName: "customers", Mapping: customerMapping()})
		require.Error(t, err)
		std := errors.AsStandardError(err)
		assert.Equal(t, errors.ErrCodeIndexAlreadyExists, std.Code)
		assert.False(t, std.Retryable)
	})

	t.Run("dropped and created with recreate", func(t *testing.T) {
		r := gatewaytest.NewResolver()
		r.Search.Indices["customers"] = map[string]interface{}{}
		h := NewHandler(createTestConfig(), r, storetest.NewMemoryStore(), logger.NewTestLogger(t))

		out, err := h.Execute(context.Background(), &Input{IndexName: "customers", Mapping: customerMapping(), Recreate: true})
		require.NoError(t, err)
		assert.True(t, out.Created)
		assert.True(t, out.Recreated)
		assert.Equal(t, customerMapping(), r.Search.Indices["customers"])
	})
}

func TestExecute_Errors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(r *gatewaytest.Resolver)
		input *Input
		code  errors.ErrorCode
	}{
		{
			name:  "missing index name",
			input: &Input{Mapping: customerMapping()},
			code:  errors.ErrCodeInvalidRequest,
		},
		{
			name:  "no mapping",
			input: &Input{IndexName: "customers"},
			code:  errors.ErrCodeInvalidRequest,
		},
		{
			name:  "unknown mapping record",
			input: &Input{IndexName: "customers", MappingID: "ghost"},
			code:  errors.ErrCodeMappingNotFound,
		},
		{
			name: "structurally invalid",
			input: &Input{IndexName: "customers", Mapping: map[string]interface{}{
				"mappings": map[string]interface{}{"properties": map[string]interface{}{
					"name": map[string]interface{}{"type": "strng"},
				}},
			}},
			code: errors.ErrCodeMappingInvalid,
		},
		{
			name: "rejected by the cluster",
			setup: func(r *gatewaytest.Resolver) {
				r.Search.CreateErr = &database.ResponseError{StatusCode: 400, Type: "mapper_parsing_exception", Reason: "bad"}
			},
			input: &Input{IndexName: "customers", Mapping: customerMapping()},
			code:  errors.ErrCodeMappingInvalid,
		},
		{
			name: "cluster failure",
			setup: func(r *gatewaytest.Resolver) {
				r.Search.CreateErr = stderrors.New("connection reset")
			},
			input: &Input{IndexName: "customers", Mapping: customerMapping()},
			code:  errors.ErrCodeMappingApplyFailed,
		},
		{
			name: "unknown environment",
			setup: func(r *gatewaytest.Resolver) {
				r.Missing["qa"] = true
				r.MissingErr = errors.NewEnvironmentNotFoundError("qa")
			},
			input: &Input{EnvironmentID: "qa", IndexName: "customers", Mapping: customerMapping()},
			code:  errors.ErrCodeEnvironmentNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gatewaytest.NewResolver()
			if tt.setup != nil {
				tt.setup(r)
			}
			h := NewHandler(createTestConfig(), r, storetest.NewMemoryStore(), logger.NewTestLogger(t))

			_, err := h.Execute(context.Background(), tt.input)
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.AsStandardError(err).Code)
		})
	}
}
