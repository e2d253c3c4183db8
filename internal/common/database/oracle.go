package database

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	go_ora "github.com/sijms/go-ora/v2"

	"es-query-studio/internal/common/config"
	"es-query-studio/internal/mapping"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_$#]*$`)

// ValidateIdentifier rejects anything that is not a plain Oracle identifier.
// Identifiers are the only part of a statement that cannot be bound.
func ValidateIdentifier(name string) error {
	if len(name) == 0 || len(name) > 128 || !identifierPattern.MatchString(name) {
		return fmt.Errorf("invalid oracle identifier %q", name)
	}
	return nil
}

// OracleClient reads metadata and rows from an Oracle source database.
type OracleClient struct {
	DB          *sql.DB
	owner       string
	pingTimeout time.Duration
}

// NewOracle opens a pool against the configured service. The connection is
// established lazily; call Ping to verify it.
func NewOracle(cfg config.OracleConfig) (*OracleClient, error) {
	if cfg.Host == "" || cfg.Service == "" {
		return nil, fmt.Errorf("oracle host and service are required")
	}
	port := cfg.Port
	if port == 0 {
		port = 1521
	}
	dsn := go_ora.BuildUrl(cfg.Host, port, cfg.Service, cfg.User, cfg.Password, nil)
	return NewOracleFromDSN(dsn, cfg.Owner, config.GetDuration(cfg.PingTimeout))
}

// NewOracleFromDSN opens a pool from an oracle:// connection URL, as stored
// on environment records.
func NewOracleFromDSN(dsn, owner string, pingTimeout time.Duration) (*OracleClient, error) {
	db, err := sql.Open("oracle", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open oracle: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(10 * time.Minute)
	return NewOracleFromDB(db, owner, pingTimeout), nil
}

// NewOracleFromDB wraps an existing pool.
func NewOracleFromDB(db *sql.DB, owner string, pingTimeout time.Duration) *OracleClient {
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	return &OracleClient{DB: db, owner: strings.ToUpper(owner), pingTimeout: pingTimeout}
}

func (c *OracleClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.pingTimeout)
	defer cancel()
	return c.DB.PingContext(ctx)
}

func (c *OracleClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// resolveOwner falls back to the client's default schema, then to the
// session user.
func (c *OracleClient) resolveOwner(ctx context.Context, owner string) (string, error) {
	if owner == "" {
		owner = c.owner
	}
	if owner == "" {
		if err := c.DB.QueryRowContext(ctx, "SELECT USER FROM DUAL").Scan(&owner); err != nil {
			return "", fmt.Errorf("resolve current schema: %w", err)
		}
	}
	owner = strings.ToUpper(owner)
	if err := ValidateIdentifier(owner); err != nil {
		return "", err
	}
	return owner, nil
}

// ListTables returns the table names of owner in alphabetical order.
func (c *OracleClient) ListTables(ctx context.Context, owner string) ([]string, error) {
	owner, err := c.resolveOwner(ctx, owner)
	if err != nil {
		return nil, err
	}

	rows, err := c.DB.QueryContext(ctx,
		"SELECT table_name FROM all_tables WHERE owner = :1 ORDER BY table_name", owner)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// DescribeTable returns the columns of owner.table in column order.
func (c *OracleClient) DescribeTable(ctx context.Context, owner, table string) (*mapping.TableMetadata, error) {
	owner, err := c.resolveOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	table = strings.ToUpper(table)
	if err := ValidateIdentifier(table); err != nil {
		return nil, err
	}

	rows, err := c.DB.QueryContext(ctx, `SELECT column_name, data_type, data_length,
		NVL(data_precision, 0), NVL(data_scale, 0), nullable
		FROM all_tab_columns WHERE owner = :1 AND table_name = :2 ORDER BY column_id`, owner, table)
	if err != nil {
		return nil, fmt.Errorf("describe %s.%s: %w", owner, table, err)
	}
	defer rows.Close()

	meta := &mapping.TableMetadata{Name: table}
	for rows.Next() {
		var (
			col      mapping.Column
			nullable string
		)
		if err := rows.Scan(&col.Name, &col.DataType, &col.Length, &col.Precision, &col.Scale, &nullable); err != nil {
			return nil, err
		}
		col.Nullable = nullable == "Y"
		meta.Columns = append(meta.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(meta.Columns) == 0 {
		return nil, fmt.Errorf("table %s.%s not found or has no columns", owner, table)
	}
	return meta, nil
}

const foreignKeyQuery = `SELECT a.table_name, a.column_name, pk.table_name, b.column_name
	FROM all_cons_columns a
	JOIN all_constraints c ON a.owner = c.owner AND a.constraint_name = c.constraint_name
	JOIN all_constraints pk ON c.r_owner = pk.owner AND c.r_constraint_name = pk.constraint_name
	JOIN all_cons_columns b ON pk.owner = b.owner AND pk.constraint_name = b.constraint_name AND b.position = a.position
	WHERE c.constraint_type = 'R' AND a.owner = :1
	ORDER BY a.table_name, a.position`

// DetectRelationships reads foreign keys between the given tables and
// reports each as a nested relationship from the referenced table. An empty
// table list considers every table of owner.
func (c *OracleClient) DetectRelationships(ctx context.Context, owner string, tables []string) ([]mapping.Relationship, error) {
	owner, err := c.resolveOwner(ctx, owner)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(tables))
	for _, t := range tables {
		wanted[strings.ToUpper(t)] = true
	}

	rows, err := c.DB.QueryContext(ctx, foreignKeyQuery, owner)
	if err != nil {
		return nil, fmt.Errorf("detect relationships: %w", err)
	}
	defer rows.Close()

	seen := map[string]bool{}
	var rels []mapping.Relationship
	for rows.Next() {
		var childTable, childColumn, parentTable, parentColumn string
		if err := rows.Scan(&childTable, &childColumn, &parentTable, &parentColumn); err != nil {
			return nil, err
		}
		if len(wanted) > 0 && (!wanted[childTable] || !wanted[parentTable]) {
			continue
		}
		// composite keys yield one row per column; keep the first
		key := parentTable + "->" + childTable
		if seen[key] {
			continue
		}
		seen[key] = true
		rels = append(rels, mapping.Relationship{
			ParentTable:  parentTable,
			ChildTable:   childTable,
			Kind:         mapping.RelationshipNested,
			ParentColumn: parentColumn,
			ChildColumn:  childColumn,
		})
	}
	return rels, rows.Err()
}

// Rows is a fetched result set with column order preserved.
type Rows struct {
	Columns []string
	Data    []map[string]interface{}
}

// FetchRows reads up to limit rows from owner.table.
func (c *OracleClient) FetchRows(ctx context.Context, owner, table string, limit int) (*Rows, error) {
	owner, err := c.resolveOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	table = strings.ToUpper(table)
	if err := ValidateIdentifier(table); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 1000
	}

	query := fmt.Sprintf(`SELECT * FROM "%s"."%s" WHERE ROWNUM <= :1`, owner, table)
	rows, err := c.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch %s.%s: %w", owner, table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := &Rows{Columns: columns}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		out.Data = append(out.Data, row)
	}
	return out, rows.Err()
}
