package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"es-query-studio/internal/common/config"
	"es-query-studio/internal/common/database"
	apperrors "es-query-studio/internal/common/errors"
	"es-query-studio/internal/common/logger"
	"es-query-studio/internal/store"
)

type (
	SearchEngineFactory   func(cfg config.ElasticsearchConfig) (SearchEngine, error)
	SourceDatabaseFactory func(dsn, owner string) (SourceDatabase, error)
)

// Provider builds gateways from environment records and keeps one client
// per environment.
type Provider struct {
	store      store.ConfigStore
	esDefault  config.ElasticsearchConfig
	oraDefault config.OracleConfig
	logger     logger.Logger

	newSearch SearchEngineFactory
	newSource SourceDatabaseFactory

	mu      sync.Mutex
	search  map[string]SearchEngine
	sources map[string]SourceDatabase
}

type Option func(*Provider)

func WithSearchEngineFactory(f SearchEngineFactory) Option {
	return func(p *Provider) { p.newSearch = f }
}

func WithSourceDatabaseFactory(f SourceDatabaseFactory) Option {
	return func(p *Provider) { p.newSource = f }
}

func NewProvider(st store.ConfigStore, esDefault config.ElasticsearchConfig, oraDefault config.OracleConfig, log logger.Logger, opts ...Option) *Provider {
	p := &Provider{
		store:      st,
		esDefault:  esDefault,
		oraDefault: oraDefault,
		logger:     log.WithFields(map[string]interface{}{"component": "gateway"}),
		search:     make(map[string]SearchEngine),
		sources:    make(map[string]SourceDatabase),
		newSearch: func(cfg config.ElasticsearchConfig) (SearchEngine, error) {
			return database.NewElasticsearch(cfg)
		},
		newSource: func(dsn, owner string) (SourceDatabase, error) {
			return database.NewOracleFromDSN(dsn, owner, config.GetDuration(oraDefault.PingTimeout))
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) SearchEngine(ctx context.Context, environmentID string) (SearchEngine, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.search[environmentID]; ok {
		return c, nil
	}

	cfg := p.esDefault
	if environmentID != "" {
		env, err := p.environment(ctx, environmentID)
		if err != nil {
			return nil, err
		}
		cfg = ElasticsearchConfigFor(env, p.esDefault)
	}

	c, err := p.newSearch(cfg)
	if err != nil {
		return nil, apperrors.NewElasticsearchConnectionFailedError(err)
	}
	p.search[environmentID] = c
	p.logger.Debug("elasticsearch client created", map[string]interface{}{"environmentId": environmentID})
	return c, nil
}

func (p *Provider) SourceDatabase(ctx context.Context, environmentID string) (SourceDatabase, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.sources[environmentID]; ok {
		return c, nil
	}

	var (
		c   SourceDatabase
		err error
	)
	env := &store.Environment{}
	if environmentID != "" {
		if env, err = p.environment(ctx, environmentID); err != nil {
			return nil, err
		}
	}

	switch {
	case env.OracleDSN != "":
		c, err = p.newSource(env.OracleDSN, env.OracleOwner)
	case p.oraDefault.Host != "":
		owner := p.oraDefault.Owner
		if env.OracleOwner != "" {
			owner = env.OracleOwner
		}
		cfg := p.oraDefault
		cfg.Owner = owner
		c, err = database.NewOracle(cfg)
	default:
		return nil, apperrors.NewInvalidRequestError(
			fmt.Sprintf("environment %q has no oracle connection configured", environmentID))
	}
	if err != nil {
		return nil, apperrors.NewOracleConnectionFailedError(err)
	}
	p.sources[environmentID] = c
	p.logger.Debug("oracle client created", map[string]interface{}{"environmentId": environmentID})
	return c, nil
}

// Forget drops cached clients of an environment, for instance after it was
// deleted or its credentials changed.
func (p *Provider) Forget(environmentID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.search, environmentID)
	if c, ok := p.sources[environmentID]; ok {
		closeQuietly(c)
		delete(p.sources, environmentID)
	}
}

func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, c := range p.sources {
		closeQuietly(c)
		delete(p.sources, id)
	}
	p.search = make(map[string]SearchEngine)
}

func (p *Provider) environment(ctx context.Context, id string) (*store.Environment, error) {
	env, err := p.store.GetEnvironment(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NewEnvironmentNotFoundError(id)
	}
	if err != nil {
		return nil, apperrors.NewStoreOperationFailedError("get environment", err)
	}
	return env, nil
}

// ElasticsearchConfigFor overlays an environment record on the defaults.
func ElasticsearchConfigFor(env *store.Environment, defaults config.ElasticsearchConfig) config.ElasticsearchConfig {
	cfg := defaults
	if len(env.ESAddresses) > 0 {
		cfg.Addresses = env.ESAddresses
		cfg.URL = ""
	}
	if env.ESUsername != "" {
		cfg.Username = env.ESUsername
		cfg.Password = env.ESPassword
	}
	return cfg
}

func closeQuietly(v interface{}) {
	if c, ok := v.(io.Closer); ok {
		_ = c.Close()
	}
}
