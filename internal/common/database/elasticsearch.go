package database

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/elastic/go-elasticsearch/v8/esutil"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"es-query-studio/internal/common/config"
)

var (
	ErrIndexNotFound = errors.New("index not found")
	ErrIndexExists   = errors.New("index already exists")
)

// ResponseError is a non-2xx answer from the cluster.
type ResponseError struct {
	StatusCode int
	Type       string
	Reason     string
}

func (e *ResponseError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("elasticsearch returned %d", e.StatusCode)
	}
	return fmt.Sprintf("elasticsearch returned %d: %s: %s", e.StatusCode, e.Type, e.Reason)
}

// ElasticsearchClient wraps the Elasticsearch client
type ElasticsearchClient struct {
	Client *elasticsearch.Client
	tracer trace.Tracer
}

// NewElasticsearch creates a new Elasticsearch client
func NewElasticsearch(cfg config.ElasticsearchConfig) (*ElasticsearchClient, error) {
	addresses := cfg.Addresses
	if len(addresses) == 0 && cfg.URL != "" {
		addresses = []string{cfg.URL}
	}
	if len(addresses) == 0 {
		return nil, errors.New("no elasticsearch addresses configured")
	}

	esCfg := elasticsearch.Config{
		Addresses: addresses,
	}
	if cfg.Username != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}

	es, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	return &ElasticsearchClient{
		Client: es,
		tracer: otel.Tracer("es-query-studio/database/elasticsearch"),
	}, nil
}

// Ping tests the Elasticsearch connection
func (c *ElasticsearchClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := c.Client.Ping(c.Client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping error: %s", res.Status())
	}
	return nil
}

type ClusterInfo struct {
	Name        string `json:"name"`
	ClusterName string `json:"cluster_name"`
	ClusterUUID string `json:"cluster_uuid"`
	Version     string `json:"version"`
}

// Info returns cluster information
func (c *ElasticsearchClient) Info(ctx context.Context) (*ClusterInfo, error) {
	res, err := c.Client.Info(c.Client.Info.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, decodeError(res)
	}

	var raw struct {
		Name        string `json:"name"`
		ClusterName string `json:"cluster_name"`
		ClusterUUID string `json:"cluster_uuid"`
		Version     struct {
			Number string `json:"number"`
		} `json:"version"`
	}
	if err := json.NewDecoder(res.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode info response: %w", err)
	}
	return &ClusterInfo{
		Name:        raw.Name,
		ClusterName: raw.ClusterName,
		ClusterUUID: raw.ClusterUUID,
		Version:     raw.Version.Number,
	}, nil
}

type Hit struct {
	ID     string                 `json:"id"`
	Index  string                 `json:"index"`
	Score  float64                `json:"score"`
	Source map[string]interface{} `json:"source"`
}

type SearchResult struct {
	Hits         []Hit                  `json:"hits"`
	TotalHits    int64                  `json:"totalHits"`
	MaxScore     float64                `json:"maxScore"`
	Took         int64                  `json:"took"` // milliseconds, as reported by the cluster
	TimedOut     bool                   `json:"timedOut"`
	Aggregations map[string]interface{} `json:"aggregations,omitempty"`
}

// Search runs body against index.
func (c *ElasticsearchClient) Search(ctx context.Context, index string, body map[string]interface{}) (*SearchResult, error) {
	ctx, span := c.tracer.Start(ctx, "elasticsearch.search", trace.WithAttributes(attribute.String("index", index)))
	defer span.End()

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode search body: %w", err)
	}

	res, err := c.Client.Search(
		c.Client.Search.WithContext(ctx),
		c.Client.Search.WithIndex(index),
		c.Client.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		err := decodeError(res)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if res.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s: %v", ErrIndexNotFound, index, err)
		}
		return nil, err
	}

	var raw struct {
		Took     int64 `json:"took"`
		TimedOut bool  `json:"timed_out"`
		Hits     struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			MaxScore *float64 `json:"max_score"`
			Hits     []struct {
				Index  string                 `json:"_index"`
				ID     string                 `json:"_id"`
				Score  *float64               `json:"_score"`
				Source map[string]interface{} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
		Aggregations map[string]interface{} `json:"aggregations"`
	}
	if err := json.NewDecoder(res.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	result := &SearchResult{
		Hits:         make([]Hit, 0, len(raw.Hits.Hits)),
		TotalHits:    raw.Hits.Total.Value,
		Took:         raw.Took,
		TimedOut:     raw.TimedOut,
		Aggregations: raw.Aggregations,
	}
	if raw.Hits.MaxScore != nil {
		result.MaxScore = *raw.Hits.MaxScore
	}
	for _, h := range raw.Hits.Hits {
		hit := Hit{ID: h.ID, Index: h.Index, Source: h.Source}
		if h.Score != nil {
			hit.Score = *h.Score
		}
		result.Hits = append(result.Hits, hit)
	}

	span.SetAttributes(attribute.Int64("hits.total", result.TotalHits))
	return result, nil
}

type IndexInfo struct {
	Name      string `json:"index"`
	Health    string `json:"health"`
	Status    string `json:"status"`
	DocsCount string `json:"docs.count"`
	StoreSize string `json:"store.size"`
}

// ListIndices returns the user indices of the cluster sorted by name.
// System indices (leading dot) are left out.
func (c *ElasticsearchClient) ListIndices(ctx context.Context) ([]IndexInfo, error) {
	res, err := c.Client.Cat.Indices(
		c.Client.Cat.Indices.WithContext(ctx),
		c.Client.Cat.Indices.WithFormat("json"),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, decodeError(res)
	}

	var all []IndexInfo
	if err := json.NewDecoder(res.Body).Decode(&all); err != nil {
		return nil, fmt.Errorf("decode cat indices response: %w", err)
	}

	out := make([]IndexInfo, 0, len(all))
	for _, idx := range all {
		if strings.HasPrefix(idx.Name, ".") {
			continue
		}
		out = append(out, idx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetMapping returns the raw GET _mapping answer for index, keyed by the
// concrete index name.
func (c *ElasticsearchClient) GetMapping(ctx context.Context, index string) (map[string]interface{}, error) {
	res, err := c.Client.Indices.GetMapping(
		c.Client.Indices.GetMapping.WithContext(ctx),
		c.Client.Indices.GetMapping.WithIndex(index),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, index)
	}
	if res.IsError() {
		return nil, decodeError(res)
	}

	var out map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode mapping response: %w", err)
	}
	return out, nil
}

func (c *ElasticsearchClient) IndexExists(ctx context.Context, index string) (bool, error) {
	res, err := c.Client.Indices.Exists([]string{index}, c.Client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return false, err
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	}
	return false, decodeError(res)
}

// CreateIndex creates index with the given body ({"mappings": ..., "settings": ...}).
func (c *ElasticsearchClient) CreateIndex(ctx context.Context, index string, body map[string]interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode index body: %w", err)
	}

	res, err := c.Client.Indices.Create(
		index,
		c.Client.Indices.Create.WithContext(ctx),
		c.Client.Indices.Create.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		respErr := decodeError(res)
		if respErr.Type == "resource_already_exists_exception" {
			return fmt.Errorf("%w: %s", ErrIndexExists, index)
		}
		return respErr
	}
	return nil
}

func (c *ElasticsearchClient) DeleteIndex(ctx context.Context, index string) error {
	res, err := c.Client.Indices.Delete([]string{index}, c.Client.Indices.Delete.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrIndexNotFound, index)
	}
	if res.IsError() {
		return decodeError(res)
	}
	return nil
}

type BulkResult struct {
	Indexed  uint64   `json:"indexed"`
	Failed   uint64   `json:"failed"`
	Failures []string `json:"failures,omitempty"`
}

// maxReportedFailures bounds BulkResult.Failures.
const maxReportedFailures = 10

// BulkIndex indexes docs into index. When idField is set and present in a
// document, its value becomes the document ID.
func (c *ElasticsearchClient) BulkIndex(ctx context.Context, index string, docs []map[string]interface{}, idField string) (*BulkResult, error) {
	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Client:        c.Client,
		Index:         index,
		NumWorkers:    2,
		FlushBytes:    5 << 20,
		FlushInterval: 5 * time.Second,
		Refresh:       "wait_for",
	})
	if err != nil {
		return nil, fmt.Errorf("create bulk indexer: %w", err)
	}

	var (
		mu       sync.Mutex
		failures []string
	)
	recordFailure := func(msg string) {
		mu.Lock()
		defer mu.Unlock()
		if len(failures) < maxReportedFailures {
			failures = append(failures, msg)
		}
	}

	for i, doc := range docs {
		data, err := json.Marshal(doc)
		if err != nil {
			recordFailure(fmt.Sprintf("document %d: %v", i, err))
			continue
		}

		item := esutil.BulkIndexerItem{
			Action: "index",
			Body:   bytes.NewReader(data),
			OnFailure: func(_ context.Context, item esutil.BulkIndexerItem, resp esutil.BulkIndexerResponseItem, err error) {
				if err != nil {
					recordFailure(err.Error())
					return
				}
				recordFailure(fmt.Sprintf("%s: %s", resp.Error.Type, resp.Error.Reason))
			},
		}
		if idField != "" {
			if id, ok := doc[idField]; ok && id != nil {
				item.DocumentID = fmt.Sprint(id)
			}
		}

		if err := bi.Add(ctx, item); err != nil {
			_ = bi.Close(ctx)
			return nil, fmt.Errorf("add bulk item: %w", err)
		}
	}

	if err := bi.Close(ctx); err != nil {
		return nil, fmt.Errorf("close bulk indexer: %w", err)
	}

	stats := bi.Stats()
	return &BulkResult{
		Indexed:  stats.NumIndexed + stats.NumCreated,
		Failed:   stats.NumFailed + uint64(len(docs)) - stats.NumAdded,
		Failures: failures,
	}, nil
}

func decodeError(res *esapi.Response) *ResponseError {
	out := &ResponseError{StatusCode: res.StatusCode}
	body, err := io.ReadAll(res.Body)
	if err != nil || len(body) == 0 {
		return out
	}

	var payload struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(body, &payload) != nil || len(payload.Error) == 0 {
		out.Reason = strings.TrimSpace(string(body))
		return out
	}

	var detail struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	}
	if json.Unmarshal(payload.Error, &detail) == nil && detail.Type != "" {
		out.Type = detail.Type
		out.Reason = detail.Reason
		return out
	}
	out.Reason = strings.Trim(string(payload.Error), `"`)
	return out
}
