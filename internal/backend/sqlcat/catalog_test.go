package sqlcat

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanderjulianmartinez/dsroute/internal/backend"
	"github.com/alexanderjulianmartinez/dsroute/pkg/types"
)

const tabularHandle = "11111111-aaaa-bbbb-cccc-000000000001"

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE ds_11111111_aaaa_bbbb_cccc_000000000001 (
		timestamp DATETIME NOT NULL,
		station TEXT,
		value REAL
	)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO ds_11111111_aaaa_bbbb_cccc_000000000001 (timestamp, station, value) VALUES
		('2024-01-01T00:00:00Z', 'A', 1.0),
		('2024-01-01T01:00:00Z', 'A', 3.0),
		('2024-01-01T00:00:00Z', 'B', 10.0)`)
	require.NoError(t, err)

	c, err := NewWithDB(db, Config{Dialect: "sqlite", TablePrefix: "ds_"})
	require.NoError(t, err)
	return c
}

func TestFetchSchema(t *testing.T) {
	c := newTestCatalog(t)

	schema, err := c.FetchSchema(context.Background(), tabularHandle)
	require.NoError(t, err)
	require.NotNil(t, schema)
	assert.Equal(t, []types.Column{
		{Name: "timestamp", Type: "datetime"},
		{Name: "station", Type: "string"},
		{Name: "value", Type: "float"},
	}, schema.Columns)
	require.NotNil(t, schema.RowCountEstimate)
	assert.Equal(t, int64(3), *schema.RowCountEstimate)
}

func TestFetchSchemaAbsent(t *testing.T) {
	c := newTestCatalog(t)

	schema, err := c.FetchSchema(context.Background(), "22222222-0000")
	require.NoError(t, err)
	assert.Nil(t, schema)

	// Handles that cannot name a table are absent, not errors.
	schema, err = c.FetchSchema(context.Background(), "bad;handle")
	require.NoError(t, err)
	assert.Nil(t, schema)
}

func TestQuery(t *testing.T) {
	c := newTestCatalog(t)

	rows, err := c.Query(context.Background(), tabularHandle, types.Query{
		Columns: []string{"station", "value"},
		Filters: []types.Filter{{Column: "value", Op: types.OpGt, Value: 2.0}},
		OrderBy: []string{"-value"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"station", "value"}, rows.Columns)
	require.Equal(t, 2, rows.Len())
	assert.Equal(t, "B", rows.Values[0][0])
	assert.Equal(t, 10.0, rows.Values[0][1])
	assert.Equal(t, "A", rows.Values[1][0])

	rows, err = c.Query(context.Background(), tabularHandle, types.Query{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, rows.Len())
	assert.Len(t, rows.Columns, 3)
}

func TestQueryRejectsUnknownColumn(t *testing.T) {
	c := newTestCatalog(t)

	_, err := c.Query(context.Background(), tabularHandle, types.Query{Columns: []string{"value; DROP TABLE x"}})
	assert.Equal(t, backend.CodeInvalidRequest, backend.CodeOf(err))

	_, err = c.Query(context.Background(), tabularHandle, types.Query{
		Filters: []types.Filter{{Column: "value", Op: "LIKE", Value: "x"}},
	})
	assert.Equal(t, backend.CodeInvalidRequest, backend.CodeOf(err))

	_, err = c.Query(context.Background(), "22222222-0000", types.Query{})
	assert.Equal(t, backend.CodeNotFound, backend.CodeOf(err))
}

func TestAggregate(t *testing.T) {
	c := newTestCatalog(t)

	rows, err := c.Aggregate(context.Background(), tabularHandle, types.AggregateRequest{
		GroupBy: []string{"station"},
		Aggregations: []types.Aggregation{
			{Column: "value", Func: types.AggAvg},
			{Column: "*", Func: types.AggCount},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"station", "avg_value", "count"}, rows.Columns)
	require.Equal(t, 2, rows.Len())
	assert.Equal(t, "A", rows.Values[0][0])
	assert.Equal(t, 2.0, rows.Values[0][1])
	assert.Equal(t, int64(2), rows.Values[0][2])
	assert.Equal(t, 10.0, rows.Values[1][1])

	_, err = c.Aggregate(context.Background(), tabularHandle, types.AggregateRequest{
		Aggregations: []types.Aggregation{{Column: "*", Func: types.AggSum}},
	})
	assert.Equal(t, backend.CodeInvalidRequest, backend.CodeOf(err))

	_, err = c.Aggregate(context.Background(), tabularHandle, types.AggregateRequest{})
	assert.Equal(t, backend.CodeInvalidRequest, backend.CodeOf(err))
}

func TestSemanticType(t *testing.T) {
	cases := map[string]string{
		"INTEGER":                  "integer",
		"bigint unsigned":          "integer",
		"tinyint(1)":               "boolean",
		"double precision":         "float",
		"numeric(10,2)":            "float",
		"timestamp with time zone": "datetime",
		"character varying":        "string",
		"varchar(255)":             "string",
		"date":                     "date",
		"bytea":                    "binary",
		"":                         "unknown",
		"geometry":                 "geometry",
	}
	for in, want := range cases {
		assert.Equal(t, want, semanticType(in), in)
	}
}

func TestTableName(t *testing.T) {
	c := &Catalog{prefix: "ds_"}
	name, ok := c.TableName(" 11111111-aaaa ")
	assert.True(t, ok)
	assert.Equal(t, "ds_11111111_aaaa", name)

	_, ok = c.TableName("a/b")
	assert.False(t, ok)
}

func TestLookupDialect(t *testing.T) {
	for _, name := range []string{"mysql", "postgres", "pgx", "sqlite"} {
		_, err := lookupDialect(name)
		assert.NoError(t, err, name)
	}
	_, err := lookupDialect("oracle")
	assert.Error(t, err)

	assert.Equal(t, "$2", postgresDialect{}.placeholder(2))
	assert.Equal(t, "`a``b`", mysqlDialect{}.quote("a`b"))
}
