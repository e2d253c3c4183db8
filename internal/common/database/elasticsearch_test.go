package database

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"es-query-studio/internal/common/config"
)

type fakeCluster struct {
	mu         sync.Mutex
	lastSearch map[string]interface{}
	created    map[string]map[string]interface{}
	bulkIDs    []string
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	switch {
	case path == "/" && r.Method == http.MethodHead:
		w.WriteHeader(http.StatusOK)

	case path == "/":
		fmt.Fprint(w, `{"name":"node-1","cluster_name":"studio","cluster_uuid":"abc","version":{"number":"8.11.0"}}`)

	case path == "/customers/_search":
		_ = json.NewDecoder(r.Body).Decode(&f.lastSearch)
		fmt.Fprint(w, `{"took":3,"timed_out":false,
			"hits":{"total":{"value":2,"relation":"eq"},"max_score":1.5,"hits":[
				{"_index":"customers","_id":"1","_score":1.5,"_source":{"name":"Ada"}},
				{"_index":"customers","_id":"2","_score":null,"_source":{"name":"Grace"}}
			]},
			"aggregations":{"by_city":{"buckets":[{"key":"Paris","doc_count":2}]}}}`)

	case path == "/missing/_search" || path == "/missing/_mapping" || (path == "/missing" && r.Method == http.MethodDelete):
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"type":"index_not_found_exception","reason":"no such index [missing]"},"status":404}`)

	case path == "/broken/_search":
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"type":"parsing_exception","reason":"unknown query [matchh]"},"status":400}`)

	case path == "/_cat/indices":
		fmt.Fprint(w, `[
			{"health":"green","status":"open","index":"orders","docs.count":"5","store.size":"1kb"},
			{"health":"green","status":"open","index":".kibana","docs.count":"1","store.size":"1kb"},
			{"health":"yellow","status":"open","index":"customers","docs.count":"2","store.size":"2kb"}
		]`)

	case path == "/customers/_mapping":
		fmt.Fprint(w, `{"customers":{"mappings":{"properties":{"name":{"type":"text"}}}}}`)

	case r.Method == http.MethodHead:
		if _, ok := f.created[strings.TrimPrefix(path, "/")]; ok || path == "/customers" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)

	case r.Method == http.MethodPut:
		name := strings.TrimPrefix(path, "/")
		if name == "customers" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":{"type":"resource_already_exists_exception","reason":"index [customers] already exists"},"status":400}`)
			return
		}
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.created[name] = body
		fmt.Fprintf(w, `{"acknowledged":true,"index":%q}`, name)

	case strings.HasSuffix(path, "/_bulk"):
		f.serveBulk(w, r.Body)

	default:
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{}`)
	}
}

func (f *fakeCluster) serveBulk(w http.ResponseWriter, body io.Reader) {
	var items []string
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 10<<20)
	line := 0
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		line++
		if line%2 == 0 {
			continue
		}
		var action map[string]map[string]interface{}
		_ = json.Unmarshal([]byte(text), &action)
		id, _ := action["index"]["_id"].(string)
		f.bulkIDs = append(f.bulkIDs, id)
		if id == "bad" {
			items = append(items, `{"index":{"_id":"bad","status":400,"error":{"type":"mapper_parsing_exception","reason":"failed to parse"}}}`)
			continue
		}
		items = append(items, fmt.Sprintf(`{"index":{"_id":%q,"status":201,"result":"created"}}`, id))
	}
	fmt.Fprintf(w, `{"took":1,"errors":true,"items":[%s]}`, strings.Join(items, ","))
}

func newFakeElasticsearch(t *testing.T) (*ElasticsearchClient, *fakeCluster) {
	t.Helper()
	fake := &fakeCluster{created: map[string]map[string]interface{}{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := NewElasticsearch(config.ElasticsearchConfig{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return client, fake
}

func TestNewElasticsearch_RequiresAddress(t *testing.T) {
	_, err := NewElasticsearch(config.ElasticsearchConfig{})
	assert.Error(t, err)
}

func TestElasticsearchClient_PingAndInfo(t *testing.T) {
	client, _ := newFakeElasticsearch(t)
	ctx := context.Background()

	require.NoError(t, client.Ping(ctx))

	info, err := client.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, &ClusterInfo{Name: "node-1", ClusterName: "studio", ClusterUUID: "abc", Version: "8.11.0"}, info)
}

func TestElasticsearchClient_Search(t *testing.T) {
	client, fake := newFakeElasticsearch(t)

	body := map[string]interface{}{
		"query":            map[string]interface{}{"match": map[string]interface{}{"name": "ada"}},
		"track_total_hits": true,
	}
	result, err := client.Search(context.Background(), "customers", body)
	require.NoError(t, err)

	assert.Equal(t, int64(2), result.TotalHits)
	assert.Equal(t, 1.5, result.MaxScore)
	assert.Equal(t, int64(3), result.Took)
	require.Len(t, result.Hits, 2)
	assert.Equal(t, Hit{ID: "1", Index: "customers", Score: 1.5, Source: map[string]interface{}{"name": "Ada"}}, result.Hits[0])
	assert.Equal(t, 0.0, result.Hits[1].Score)
	assert.Contains(t, result.Aggregations, "by_city")
	assert.Equal(t, true, fake.lastSearch["track_total_hits"])
}

func TestElasticsearchClient_SearchErrors(t *testing.T) {
	client, _ := newFakeElasticsearch(t)
	ctx := context.Background()

	_, err := client.Search(ctx, "missing", map[string]interface{}{})
	assert.True(t, errors.Is(err, ErrIndexNotFound))

	_, err = client.Search(ctx, "broken", map[string]interface{}{})
	var respErr *ResponseError
	require.True(t, errors.As(err, &respErr))
	assert.Equal(t, http.StatusBadRequest, respErr.StatusCode)
	assert.Equal(t, "parsing_exception", respErr.Type)
	assert.Contains(t, respErr.Error(), "unknown query")
}

func TestElasticsearchClient_Indices(t *testing.T) {
	client, fake := newFakeElasticsearch(t)
	ctx := context.Background()

	indices, err := client.ListIndices(ctx)
	require.NoError(t, err)
	require.Len(t, indices, 2)
	assert.Equal(t, "customers", indices[0].Name)
	assert.Equal(t, "2", indices[0].DocsCount)
	assert.Equal(t, "orders", indices[1].Name)

	m, err := client.GetMapping(ctx, "customers")
	require.NoError(t, err)
	assert.Contains(t, m, "customers")

	_, err = client.GetMapping(ctx, "missing")
	assert.True(t, errors.Is(err, ErrIndexNotFound))

	exists, err := client.IndexExists(ctx, "customers")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = client.IndexExists(ctx, "fresh")
	require.NoError(t, err)
	assert.False(t, exists)

	mappingBody := map[string]interface{}{"mappings": map[string]interface{}{"properties": map[string]interface{}{}}}
	require.NoError(t, client.CreateIndex(ctx, "fresh", mappingBody))
	assert.Contains(t, fake.created, "fresh")

	err = client.CreateIndex(ctx, "customers", mappingBody)
	assert.True(t, errors.Is(err, ErrIndexExists))

	err = client.DeleteIndex(ctx, "missing")
	assert.True(t, errors.Is(err, ErrIndexNotFound))
}

func TestElasticsearchClient_BulkIndex(t *testing.T) {
	client, fake := newFakeElasticsearch(t)

	docs := []map[string]interface{}{
		{"customer_id": 1, "name": "Ada"},
		{"customer_id": 2, "name": "Grace"},
		{"customer_id": "bad", "name": "Broken"},
	}
	result, err := client.BulkIndex(context.Background(), "customers", docs, "customer_id")
	require.NoError(t, err)

	assert.Equal(t, uint64(2), result.Indexed)
	assert.Equal(t, uint64(1), result.Failed)
	require.Len(t, result.Failures, 1)
	assert.Contains(t, result.Failures[0], "mapper_parsing_exception")
	assert.ElementsMatch(t, []string{"1", "2", "bad"}, fake.bulkIDs)
}
