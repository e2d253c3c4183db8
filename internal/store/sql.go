package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS environments (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		es_addresses TEXT NOT NULL,
		es_username TEXT NOT NULL DEFAULT '',
		es_password TEXT NOT NULL DEFAULT '',
		oracle_dsn TEXT NOT NULL DEFAULT '',
		oracle_owner TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS index_configs (
		environment_id TEXT NOT NULL,
		index_name TEXT NOT NULL,
		root_fields TEXT NOT NULL,
		nested_fields TEXT NOT NULL,
		parent_child_fields TEXT NOT NULL,
		parent_child_relation_name TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL,
		PRIMARY KEY (environment_id, index_name)
	)`,
	`CREATE TABLE IF NOT EXISTS mappings (
		id TEXT PRIMARY KEY,
		environment_id TEXT NOT NULL,
		index_name TEXT NOT NULL,
		mapping_json TEXT NOT NULL,
		applied INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_mappings_environment ON mappings (environment_id, created_at)`,
}

// SQLStore implements ConfigStore on database/sql. Statements are written
// with ? placeholders and rebound for postgres.
type SQLStore struct {
	db       *sql.DB
	postgres bool
	now      func() time.Time
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{
		db:       db,
		postgres: driver == "postgres",
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Migrate creates the schema when missing.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) rebind(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(query), args...)
}

func (s *SQLStore) CreateEnvironment(ctx context.Context, env *Environment) error {
	if env.Name == "" {
		return errors.New("environment name is required")
	}
	if env.ID == "" {
		env.ID = uuid.NewString()
	}
	env.CreatedAt = s.now()

	addresses, err := json.Marshal(nonNil(env.ESAddresses))
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, `INSERT INTO environments
		(id, name, es_addresses, es_username, es_password, oracle_dsn, oracle_owner, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		env.ID, env.Name, string(addresses), env.ESUsername, env.ESPassword,
		env.OracleDSN, env.OracleOwner, formatTime(env.CreatedAt))
	if err != nil {
		return fmt.Errorf("create environment: %w", err)
	}
	return nil
}

const environmentColumns = `id, name, es_addresses, es_username, es_password, oracle_dsn, oracle_owner, created_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEnvironment(row scanner) (*Environment, error) {
	var (
		env       Environment
		addresses string
		created   string
	)
	if err := row.Scan(&env.ID, &env.Name, &addresses, &env.ESUsername, &env.ESPassword,
		&env.OracleDSN, &env.OracleOwner, &created); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(addresses), &env.ESAddresses); err != nil {
		return nil, fmt.Errorf("environment %s: decode addresses: %w", env.ID, err)
	}
	env.CreatedAt = parseTime(created)
	return &env, nil
}

func (s *SQLStore) GetEnvironment(ctx context.Context, id string) (*Environment, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+environmentColumns+` FROM environments WHERE id = ?`), id)
	env, err := scanEnvironment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("environment %s: %w", id, ErrNotFound)
	}
	return env, err
}

func (s *SQLStore) ListEnvironments(ctx context.Context) ([]Environment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+environmentColumns+` FROM environments ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list environments: %w", err)
	}
	defer rows.Close()

	envs := []Environment{}
	for rows.Next() {
		env, err := scanEnvironment(rows)
		if err != nil {
			return nil, err
		}
		envs = append(envs, *env)
	}
	return envs, rows.Err()
}

// DeleteEnvironment removes the environment with its index configs and
// mapping records.
func (s *SQLStore) DeleteEnvironment(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM environments WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete environment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("environment %s: %w", id, ErrNotFound)
	}
	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM index_configs WHERE environment_id = ?`), id); err != nil {
		return fmt.Errorf("delete index configs: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM mappings WHERE environment_id = ?`), id); err != nil {
		return fmt.Errorf("delete mappings: %w", err)
	}
	return tx.Commit()
}

// SaveIndexConfig inserts or replaces the configuration of one index.
func (s *SQLStore) SaveIndexConfig(ctx context.Context, cfg *IndexConfig) error {
	if cfg.EnvironmentID == "" || cfg.IndexName == "" {
		return errors.New("environment id and index name are required")
	}
	cfg.UpdatedAt = s.now()

	root, _ := json.Marshal(nonNil(cfg.RootFields))
	nested, _ := json.Marshal(nonNil(cfg.NestedFields))
	parentChild, _ := json.Marshal(nonNil(cfg.ParentChildFields))

	_, err := s.exec(ctx, `INSERT INTO index_configs
		(environment_id, index_name, root_fields, nested_fields, parent_child_fields, parent_child_relation_name, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (environment_id, index_name) DO UPDATE SET
			root_fields = excluded.root_fields,
			nested_fields = excluded.nested_fields,
			parent_child_fields = excluded.parent_child_fields,
			parent_child_relation_name = excluded.parent_child_relation_name,
			updated_at = excluded.updated_at`,
		cfg.EnvironmentID, cfg.IndexName, string(root), string(nested), string(parentChild),
		cfg.RelationName, formatTime(cfg.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save index config: %w", err)
	}
	return nil
}

func (s *SQLStore) GetIndexConfig(ctx context.Context, environmentID, indexName string) (*IndexConfig, error) {
	var (
		cfg                       = IndexConfig{EnvironmentID: environmentID, IndexName: indexName}
		root, nested, parentChild string
		updated                   string
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT root_fields, nested_fields, parent_child_fields,
		parent_child_relation_name, updated_at
		FROM index_configs WHERE environment_id = ? AND index_name = ?`), environmentID, indexName).
		Scan(&root, &nested, &parentChild, &cfg.RelationName, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index config %s/%s: %w", environmentID, indexName, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get index config: %w", err)
	}

	for _, f := range []struct {
		raw string
		dst *[]string
	}{{root, &cfg.RootFields}, {nested, &cfg.NestedFields}, {parentChild, &cfg.ParentChildFields}} {
		if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
			return nil, fmt.Errorf("index config %s/%s: %w", environmentID, indexName, err)
		}
	}
	cfg.UpdatedAt = parseTime(updated)
	return &cfg, nil
}

func (s *SQLStore) SaveMapping(ctx context.Context, rec *MappingRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.CreatedAt = s.now()

	body, err := json.Marshal(rec.Mapping)
	if err != nil {
		return fmt.Errorf("encode mapping: %w", err)
	}
	_, err = s.exec(ctx, `INSERT INTO mappings (id, environment_id, index_name, mapping_json, applied, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.EnvironmentID, rec.IndexName, string(body), boolToInt(rec.Applied), formatTime(rec.CreatedAt))
	if err != nil {
		return fmt.Errorf("save mapping: %w", err)
	}
	return nil
}

const mappingColumns = `id, environment_id, index_name, mapping_json, applied, created_at`

func scanMapping(row scanner) (*MappingRecord, error) {
	var (
		rec     MappingRecord
		body    string
		applied int
		created string
	)
	if err := row.Scan(&rec.ID, &rec.EnvironmentID, &rec.IndexName, &body, &applied, &created); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(body), &rec.Mapping); err != nil {
		return nil, fmt.Errorf("mapping %s: %w", rec.ID, err)
	}
	rec.Applied = applied != 0
	rec.CreatedAt = parseTime(created)
	return &rec, nil
}

func (s *SQLStore) GetMapping(ctx context.Context, id string) (*MappingRecord, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+mappingColumns+` FROM mappings WHERE id = ?`), id)
	rec, err := scanMapping(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("mapping %s: %w", id, ErrNotFound)
	}
	return rec, err
}

// ListMappings returns the mapping records of an environment, newest first.
func (s *SQLStore) ListMappings(ctx context.Context, environmentID string) ([]MappingRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT `+mappingColumns+`
		FROM mappings WHERE environment_id = ? ORDER BY created_at DESC, id`), environmentID)
	if err != nil {
		return nil, fmt.Errorf("list mappings: %w", err)
	}
	defer rows.Close()

	recs := []MappingRecord{}
	for rows.Next() {
		rec, err := scanMapping(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}

func (s *SQLStore) MarkMappingApplied(ctx context.Context, id string) error {
	res, err := s.exec(ctx, `UPDATE mappings SET applied = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark mapping applied: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("mapping %s: %w", id, ErrNotFound)
	}
	return nil
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
