// Package storetest provides an in-memory ConfigStore for handler and API
// tests.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"es-query-studio/internal/store"
)

// MemoryStore keeps records in maps. Err, when set, is returned by every
// call.
type MemoryStore struct {
	mu sync.Mutex

	Environments map[string]store.Environment
	IndexConfigs map[string]store.IndexConfig
	Mappings     map[string]store.MappingRecord
	Err          error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		Environments: map[string]store.Environment{},
		IndexConfigs: map[string]store.IndexConfig{},
		Mappings:     map[string]store.MappingRecord{},
	}
}

func configKey(environmentID, indexName string) string {
	return environmentID + "/" + indexName
}

func (m *MemoryStore) CreateEnvironment(_ context.Context, env *store.Environment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if env.Name == "" {
		return fmt.Errorf("environment name is required")
	}
	for _, e := range m.Environments {
		if e.Name == env.Name {
			return fmt.Errorf("environment %q already exists", env.Name)
		}
	}
	if env.ID == "" {
		env.ID = uuid.NewString()
	}
	if env.ESAddresses == nil {
		env.ESAddresses = []string{}
	}
	env.CreatedAt = time.Now().UTC()
	m.Environments[env.ID] = *env
	return nil
}

func (m *MemoryStore) GetEnvironment(_ context.Context, id string) (*store.Environment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	env, ok := m.Environments[id]
	if !ok {
		return nil, fmt.Errorf("environment %s: %w", id, store.ErrNotFound)
	}
	return &env, nil
}

func (m *MemoryStore) ListEnvironments(context.Context) ([]store.Environment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]store.Environment, 0, len(m.Environments))
	for _, e := range m.Environments {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryStore) DeleteEnvironment(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.Environments[id]; !ok {
		return fmt.Errorf("environment %s: %w", id, store.ErrNotFound)
	}
	delete(m.Environments, id)
	for k, c := range m.IndexConfigs {
		if c.EnvironmentID == id {
			delete(m.IndexConfigs, k)
		}
	}
	for k, r := range m.Mappings {
		if r.EnvironmentID == id {
			delete(m.Mappings, k)
		}
	}
	return nil
}

func (m *MemoryStore) SaveIndexConfig(_ context.Context, cfg *store.IndexConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if cfg.IndexName == "" {
		return fmt.Errorf("index name is required")
	}
	cfg.UpdatedAt = time.Now().UTC()
	m.IndexConfigs[configKey(cfg.EnvironmentID, cfg.IndexName)] = *cfg
	return nil
}

func (m *MemoryStore) GetIndexConfig(_ context.Context, environmentID, indexName string) (*store.IndexConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	cfg, ok := m.IndexConfigs[configKey(environmentID, indexName)]
	if !ok {
		return nil, fmt.Errorf("index config %s/%s: %w", environmentID, indexName, store.ErrNotFound)
	}
	return &cfg, nil
}

func (m *MemoryStore) SaveMapping(_ context.Context, rec *store.MappingRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.CreatedAt = time.Now().UTC()
	m.Mappings[rec.ID] = *rec
	return nil
}

func (m *MemoryStore) GetMapping(_ context.Context, id string) (*store.MappingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	rec, ok := m.Mappings[id]
	if !ok {
		return nil, fmt.Errorf("mapping %s: %w", id, store.ErrNotFound)
	}
	return &rec, nil
}

func (m *MemoryStore) ListMappings(_ context.Context, environmentID string) ([]store.MappingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := []store.MappingRecord{}
	for _, r := range m.Mappings {
		if r.EnvironmentID == environmentID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) MarkMappingApplied(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	rec, ok := m.Mappings[id]
	if !ok {
		return fmt.Errorf("mapping %s: %w", id, store.ErrNotFound)
	}
	rec.Applied = true
	m.Mappings[id] = rec
	return nil
}

var _ store.ConfigStore = (*MemoryStore)(nil)
