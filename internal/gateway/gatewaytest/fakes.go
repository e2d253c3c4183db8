// Package gatewaytest provides in-memory gateways for handler tests.
package gatewaytest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"es-query-studio/internal/common/database"
	"es-query-studio/internal/gateway"
	"es-query-studio/internal/mapping"
)

// SearchEngine is an in-memory cluster. Indices maps index names to their
// create-index body.
type SearchEngine struct {
	mu sync.Mutex

	PingErr      error
	ClusterInfo  *database.ClusterInfo
	Indices      map[string]map[string]interface{}
	SearchResult *database.SearchResult
	SearchErr    error
	CreateErr    error
	BulkErr      error
	// FailIDs makes BulkIndex report these document ids as failed.
	FailIDs map[string]bool

	Searches []SearchCall
	Indexed  map[string][]map[string]interface{}
}

type SearchCall struct {
	Index string
	Body  map[string]interface{}
}

func NewSearchEngine() *SearchEngine {
	return &SearchEngine{
		ClusterInfo: &database.ClusterInfo{Name: "node-1", ClusterName: "test", Version: "8.11.0"},
		Indices:     map[string]map[string]interface{}{},
		Indexed:     map[string][]map[string]interface{}{},
		FailIDs:     map[string]bool{},
	}
}

func (s *SearchEngine) Ping(context.Context) error { return s.PingErr }

func (s *SearchEngine) Info(context.Context) (*database.ClusterInfo, error) {
	if s.PingErr != nil {
		return nil, s.PingErr
	}
	return s.ClusterInfo, nil
}

func (s *SearchEngine) Search(_ context.Context, index string, body map[string]interface{}) (*database.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Searches = append(s.Searches, SearchCall{Index: index, Body: body})
	if s.SearchErr != nil {
		return nil, s.SearchErr
	}
	if s.SearchResult == nil {
		return &database.SearchResult{Hits: []database.Hit{}}, nil
	}
	return s.SearchResult, nil
}

func (s *SearchEngine) ListIndices(context.Context) ([]database.IndexInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]database.IndexInfo, 0, len(s.Indices))
	for name := range s.Indices {
		out = append(out, database.IndexInfo{
			Name:      name,
			Health:    "green",
			Status:    "open",
			DocsCount: fmt.Sprint(len(s.Indexed[name])),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *SearchEngine) GetMapping(_ context.Context, index string) (map[string]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	body, ok := s.Indices[index]
	if !ok {
		return nil, database.ErrIndexNotFound
	}
	return map[string]interface{}{index: body}, nil
}

func (s *SearchEngine) IndexExists(_ context.Context, index string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.Indices[index]
	return ok, nil
}

func (s *SearchEngine) CreateIndex(_ context.Context, index string, body map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateErr != nil {
		return s.CreateErr
	}
	if _, ok := s.Indices[index]; ok {
		return database.ErrIndexExists
	}
	s.Indices[index] = body
	return nil
}

func (s *SearchEngine) DeleteIndex(_ context.Context, index string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.Indices[index]; !ok {
		return database.ErrIndexNotFound
	}
	delete(s.Indices, index)
	delete(s.Indexed, index)
	return nil
}

func (s *SearchEngine) BulkIndex(_ context.Context, index string, docs []map[string]interface{}, idField string) (*database.BulkResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.BulkErr != nil {
		return nil, s.BulkErr
	}
	res := &database.BulkResult{}
	for _, doc := range docs {
		id := fmt.Sprint(doc[idField])
		if s.FailIDs[id] {
			res.Failed++
			res.Failures = append(res.Failures, fmt.Sprintf("%s: rejected", id))
			continue
		}
		res.Indexed++
		s.Indexed[index] = append(s.Indexed[index], doc)
	}
	return res, nil
}

// SourceDatabase is an in-memory Oracle schema.
type SourceDatabase struct {
	PingErr       error
	Tables        map[string]*mapping.TableMetadata
	Relationships []mapping.Relationship
	Rows          map[string]*database.Rows
	FetchErr      error

	FetchLimits []int
}

func NewSourceDatabase() *SourceDatabase {
	return &SourceDatabase{
		Tables: map[string]*mapping.TableMetadata{},
		Rows:   map[string]*database.Rows{},
	}
}

func (d *SourceDatabase) Ping(context.Context) error { return d.PingErr }

func (d *SourceDatabase) ListTables(context.Context, string) ([]string, error) {
	if d.PingErr != nil {
		return nil, d.PingErr
	}
	names := make([]string, 0, len(d.Tables))
	for name := range d.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (d *SourceDatabase) DescribeTable(_ context.Context, _ string, table string) (*mapping.TableMetadata, error) {
	meta, ok := d.Tables[table]
	if !ok {
		return nil, fmt.Errorf("table %s not found", table)
	}
	return meta, nil
}

func (d *SourceDatabase) DetectRelationships(_ context.Context, _ string, tables []string) ([]mapping.Relationship, error) {
	want := make(map[string]bool, len(tables))
	for _, t := range tables {
		want[t] = true
	}
	var out []mapping.Relationship
	for _, r := range d.Relationships {
		if want[r.ParentTable] && want[r.ChildTable] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (d *SourceDatabase) FetchRows(_ context.Context, _ string, table string, limit int) (*database.Rows, error) {
	d.FetchLimits = append(d.FetchLimits, limit)
	if d.FetchErr != nil {
		return nil, d.FetchErr
	}
	rows, ok := d.Rows[table]
	if !ok {
		return nil, fmt.Errorf("table %s not found", table)
	}
	if limit > 0 && len(rows.Data) > limit {
		return &database.Rows{Columns: rows.Columns, Data: rows.Data[:limit]}, nil
	}
	return rows, nil
}

// Resolver returns the same gateways for every environment except the ones
// listed in Missing, which fail with MissingErr.
type Resolver struct {
	Search     *SearchEngine
	Source     *SourceDatabase
	Missing    map[string]bool
	MissingErr error
	SourceErr  error
}

func NewResolver() *Resolver {
	return &Resolver{Search: NewSearchEngine(), Source: NewSourceDatabase(), Missing: map[string]bool{}}
}

func (r *Resolver) SearchEngine(_ context.Context, environmentID string) (gateway.SearchEngine, error) {
	if r.Missing[environmentID] {
		return nil, r.MissingErr
	}
	return r.Search, nil
}

func (r *Resolver) SourceDatabase(_ context.Context, environmentID string) (gateway.SourceDatabase, error) {
	if r.Missing[environmentID] {
		return nil, r.MissingErr
	}
	if r.SourceErr != nil {
		return nil, r.SourceErr
	}
	return r.Source, nil
}

var (
	_ gateway.SearchEngine   = (*SearchEngine)(nil)
	_ gateway.SourceDatabase = (*SourceDatabase)(nil)
	_ gateway.Resolver       = (*Resolver)(nil)
)
