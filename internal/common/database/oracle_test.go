package database

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"es-query-studio/internal/mapping"
)

func newMockOracle(t *testing.T, owner string) (*OracleClient, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewOracleFromDB(db, owner, time.Second), mock
}

func TestValidateIdentifier(t *testing.T) {
	for _, ok := range []string{"CUSTOMERS", "hr", "ORDER_ITEMS", "T$1", "A#B"} {
		assert.NoError(t, ValidateIdentifier(ok), ok)
	}
	for _, bad := range []string{"", "1TABLE", "CUSTOMERS; DROP TABLE X", `A"B`, "A.B", "A B"} {
		assert.Error(t, ValidateIdentifier(bad), bad)
	}
}

func TestOracleClient_Ping(t *testing.T) {
	client, mock := newMockOracle(t, "HR")
	mock.ExpectPing()

	require.NoError(t, client.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOracleClient_ListTables_DefaultsToSessionUser(t *testing.T) {
	client, mock := newMockOracle(t, "")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT USER FROM DUAL")).
		WillReturnRows(sqlmock.NewRows([]string{"USER"}).AddRow("hr"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT table_name FROM all_tables WHERE owner = :1")).
		WithArgs("HR").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME"}).AddRow("CUSTOMERS").AddRow("ORDERS"))

	tables, err := client.ListTables(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"CUSTOMERS", "ORDERS"}, tables)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOracleClient_DescribeTable(t *testing.T) {
	client, mock := newMockOracle(t, "HR")

	mock.ExpectQuery("FROM all_tab_columns").
		WithArgs("HR", "CUSTOMERS").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "DATA_TYPE", "DATA_LENGTH", "P", "S", "NULLABLE"}).
			AddRow("CUSTOMER_ID", "NUMBER", 22, 10, 0, "N").
			AddRow("BALANCE", "NUMBER", 22, 12, 2, "Y"))

	meta, err := client.DescribeTable(context.Background(), "", "customers")
	require.NoError(t, err)
	assert.Equal(t, &mapping.TableMetadata{Name: "CUSTOMERS", Columns: []mapping.Column{
		{Name: "CUSTOMER_ID", DataType: "NUMBER", Length: 22, Precision: 10},
		{Name: "BALANCE", DataType: "NUMBER", Length: 22, Precision: 12, Scale: 2, Nullable: true},
	}}, meta)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOracleClient_DescribeTable_Missing(t *testing.T) {
	client, mock := newMockOracle(t, "HR")
	mock.ExpectQuery("FROM all_tab_columns").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "DATA_TYPE", "DATA_LENGTH", "P", "S", "NULLABLE"}))

	_, err := client.DescribeTable(context.Background(), "", "GHOST")
	assert.ErrorContains(t, err, "not found")
}

func TestOracleClient_RejectsUnsafeIdentifiers(t *testing.T) {
	client, mock := newMockOracle(t, "HR")
	ctx := context.Background()

	_, err := client.FetchRows(ctx, "", "CUSTOMERS WHERE 1=1", 10)
	assert.Error(t, err)
	_, err = client.DescribeTable(ctx, `HR"`, "CUSTOMERS")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOracleClient_DetectRelationships(t *testing.T) {
	client, mock := newMockOracle(t, "HR")

	mock.ExpectQuery("constraint_type = 'R'").
		WithArgs("HR").
		WillReturnRows(sqlmock.NewRows([]string{"CHILD", "CHILD_COL", "PARENT", "PARENT_COL"}).
			AddRow("ADDRESSES", "CUSTOMER_ID", "CUSTOMERS", "CUSTOMER_ID").
			AddRow("ORDER_LINES", "ORDER_ID", "ORDERS", "ORDER_ID").
			AddRow("ORDER_LINES", "ORDER_REGION", "ORDERS", "REGION").
			AddRow("AUDIT", "CUSTOMER_ID", "CUSTOMERS", "CUSTOMER_ID"))

	rels, err := client.DetectRelationships(context.Background(), "", []string{"customers", "addresses", "orders", "order_lines"})
	require.NoError(t, err)
	assert.Equal(t, []mapping.Relationship{
		{ParentTable: "CUSTOMERS", ChildTable: "ADDRESSES", Kind: mapping.RelationshipNested, ParentColumn: "CUSTOMER_ID", ChildColumn: "CUSTOMER_ID"},
		{ParentTable: "ORDERS", ChildTable: "ORDER_LINES", Kind: mapping.RelationshipNested, ParentColumn: "ORDER_ID", ChildColumn: "ORDER_ID"},
	}, rels)
}

func TestOracleClient_FetchRows(t *testing.T) {
	client, mock := newMockOracle(t, "HR")

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "HR"."CUSTOMERS" WHERE ROWNUM <= :1`)).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"CUSTOMER_ID", "NAME"}).
			AddRow(int64(1), "Ada").
			AddRow(int64(2), nil))

	rows, err := client.FetchRows(context.Background(), "", "customers", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"CUSTOMER_ID", "NAME"}, rows.Columns)
	assert.Equal(t, []map[string]interface{}{
		{"CUSTOMER_ID": int64(1), "NAME": "Ada"},
		{"CUSTOMER_ID": int64(2), "NAME": nil},
	}, rows.Data)
	assert.NoError(t, mock.ExpectationsWereMet())
}
