//go:build e2e

// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"es-query-studio/internal/common/config"
	"es-query-studio/internal/common/database"
	"es-query-studio/internal/common/logger"
	"es-query-studio/internal/gateway"
	"es-query-studio/internal/mapping"
	"es-query-studio/internal/store"
	applymapping "es-query-studio/internal/workers/mapping/apply-mapping"
	generatemapping "es-query-studio/internal/workers/mapping/generate-mapping"
	validatemapping "es-query-studio/internal/workers/mapping/validate-mapping"
	compilequery "es-query-studio/internal/workers/query/compile-query"
	executesearch "es-query-studio/internal/workers/query/execute-search"
)

// Run with live services:
//
//	E2E_ES_URL=http://localhost:9200 E2E_REDIS_ADDR=localhost:6379 go test -tags e2e ./test/e2e/...
var (
	esURL     = envOr("E2E_ES_URL", "http://localhost:9200")
	redisAddr = os.Getenv("E2E_REDIS_ADDR")
	zeebeAddr = os.Getenv("E2E_ZEEBE_ADDRESS")

	zapLog *zap.Logger
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestMain(m *testing.M) {
	zapLog, _ = zap.NewDevelopment()
	code := m.Run()
	_ = zapLog.Sync()
	os.Exit(code)
}

type harness struct {
	store     store.ConfigStore
	gateways  *gateway.Provider
	env       *store.Environment
	generate  *generatemapping.Handler
	apply     *applymapping.Handler
	validate  *validatemapping.Handler
	search    *executesearch.Handler
	indexName string
}

func setup(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	log := logger.NewZapAdapter(zapLog)

	es, err := database.NewElasticsearch(config.ElasticsearchConfig{URL: esURL})
	require.NoError(t, err)
	require.NoError(t, es.Ping(ctx), "elasticsearch is not reachable at %s", esURL)
	t.Logf("elasticsearch connected: %s", esURL)

	db, err := database.NewSQLStore(config.StoreConfig{
		Driver: "sqlite3",
		Path:   filepath.Join(t.TempDir(), "e2e.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	sqlStore := store.NewSQLStore(db.DB, db.Driver)
	require.NoError(t, sqlStore.Migrate(ctx))

	var configStore store.ConfigStore = sqlStore
	if redisAddr != "" {
		rdb, err := database.NewRedis(config.RedisConfig{Address: redisAddr, CacheTTL: 60})
		require.NoError(t, err)
		require.NoError(t, rdb.Ping(ctx), "redis is not reachable at %s", redisAddr)
		t.Cleanup(func() { _ = rdb.Close() })
		configStore = store.NewCachedConfigStore(sqlStore, rdb.Client, rdb.TTL, log)
		t.Logf("redis cache enabled: %s", redisAddr)
	}

	env := &store.Environment{Name: "e2e", ESAddresses: []string{esURL}}
	require.NoError(t, configStore.CreateEnvironment(ctx, env))

	gateways := gateway.NewProvider(configStore, config.ElasticsearchConfig{URL: esURL}, config.OracleConfig{}, log)
	t.Cleanup(gateways.Close)

	compiler := compilequery.NewHandler(compilequery.LoadConfig(), configStore, log)
	return &harness{
		store:     configStore,
		gateways:  gateways,
		env:       env,
		generate:  generatemapping.NewHandler(generatemapping.LoadConfig(), gateways, configStore, log),
		apply:     applymapping.NewHandler(applymapping.LoadConfig(), gateways, configStore, log),
		validate:  validatemapping.NewHandler(validatemapping.LoadConfig(), gateways, log),
		search:    executesearch.NewHandler(executesearch.LoadConfig(), compiler, gateways, nil, log),
		indexName: fmt.Sprintf("e2e-customers-%d", time.Now().UnixNano()),
	}
}

func TestMappingAndSearchFlow(t *testing.T) {
	h := setup(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// 1. Generate and store a mapping
	generated, err := h.generate.Execute(ctx, &generatemapping.Input{
		EnvironmentID: h.env.ID,
		IndexName:     h.indexName,
		Fields: []mapping.MappingField{
			{FieldName: "customer_id", ElasticType: mapping.FieldTypeKeyword},
			{FieldName: "name", ElasticType: mapping.FieldTypeText},
			{FieldName: "status", ElasticType: mapping.FieldTypeKeyword},
			{FieldName: "orders", ElasticType: mapping.FieldTypeNested, NestedFields: []mapping.MappingField{
				{FieldName: "amount", ElasticType: mapping.FieldTypeDouble},
			}},
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, generated.MappingID)
	assert.True(t, generated.Validation.Valid)

	// 2. Apply it to the cluster
	applied, err := h.apply.Execute(ctx, &applymapping.Input{
		EnvironmentID: h.env.ID,
		IndexName:     h.indexName,
		MappingID:     generated.MappingID,
	})
	require.NoError(t, err)
	assert.True(t, applied.Created)

	es, err := h.gateways.SearchEngine(ctx, h.env.ID)
	require.NoError(t, err)
	t.Cleanup(func() { _ = es.DeleteIndex(context.Background(), h.indexName) })

	// 3. Validate the live mapping
	report, err := h.validate.Execute(ctx, &validatemapping.Input{
		EnvironmentID: h.env.ID,
		IndexName:     h.indexName,
	})
	require.NoError(t, err)
	assert.True(t, report.Valid, "issues: %v", report.Issues)
	assert.Equal(t, "cluster", report.Source)

	// 4. Index documents
	bulk, err := es.BulkIndex(ctx, h.indexName, []map[string]interface{}{
		{"customer_id": "c1", "name": "Ada Lovelace", "status": "active"},
		{"customer_id": "c2", "name": "Alan Turing", "status": "inactive"},
		{"customer_id": "c3", "name": "Grace Hopper", "status": "active"},
	}, "customer_id")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), bulk.Indexed)

	// 5. Search through the compiler
	found, err := h.search.Execute(ctx, &executesearch.Input{Input: compilequery.Input{
		EnvironmentID: h.env.ID,
		IndexName:     h.indexName,
		Fields:        map[string]interface{}{"status": "active"},
	}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), found.TotalHits)

	ids := make([]string, 0, len(found.Hits))
	for _, hit := range found.Hits {
		ids = append(ids, hit.ID)
	}
	assert.ElementsMatch(t, []string{"c1", "c3"}, ids)

	// 6. The stored record is marked applied
	rec, err := h.store.GetMapping(ctx, generated.MappingID)
	require.NoError(t, err)
	assert.True(t, rec.Applied)
}

func TestZeebeTopology(t *testing.T) {
	if zeebeAddr == "" {
		t.Skip("E2E_ZEEBE_ADDRESS not set")
	}

	client, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         zeebeAddr,
		UsePlaintextConnection: true,
	})
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = client.NewTopologyCommand().Send(ctx)
	assert.NoError(t, err, "zeebe topology request failed")
}
