package sqlcat

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/alexanderjulianmartinez/dsroute/pkg/types"
)

type dialect interface {
	name() string
	driver() string
	quote(ident string) string
	placeholder(n int) string
	columns(ctx context.Context, db *sql.DB, table string) ([]types.Column, error)
	rowEstimate(ctx context.Context, db *sql.DB, table string) (*int64, error)
}

func lookupDialect(name string) (dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mysql":
		return mysqlDialect{}, nil
	case "postgres", "postgresql", "pgx":
		return postgresDialect{}, nil
	case "sqlite", "sqlite3":
		return sqliteDialect{}, nil
	}
	return nil, fmt.Errorf("unsupported sql dialect: %q", name)
}

func scanColumns(rows *sql.Rows) ([]types.Column, error) {
	defer rows.Close()
	var cols []types.Column
	for rows.Next() {
		var name, dataType string
		if err := rows.Scan(&name, &dataType); err != nil {
			return nil, err
		}
		cols = append(cols, types.Column{Name: name, Type: semanticType(dataType)})
	}
	return cols, rows.Err()
}

type mysqlDialect struct{}

func (mysqlDialect) name() string   { return "mysql" }
func (mysqlDialect) driver() string { return "mysql" }

func (mysqlDialect) quote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func (mysqlDialect) placeholder(int) string { return "?" }

func (mysqlDialect) columns(ctx context.Context, db *sql.DB, table string) ([]types.Column, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT COLUMN_NAME, COLUMN_TYPE
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION
	`, table)
	if err != nil {
		return nil, err
	}
	return scanColumns(rows)
}

func (mysqlDialect) rowEstimate(ctx context.Context, db *sql.DB, table string) (*int64, error) {
	var n sql.NullInt64
	err := db.QueryRowContext(ctx, `
		SELECT TABLE_ROWS
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
	`, table).Scan(&n)
	if err != nil || !n.Valid {
		return nil, err
	}
	return &n.Int64, nil
}

type postgresDialect struct{}

func (postgresDialect) name() string   { return "postgres" }
func (postgresDialect) driver() string { return "pgx" }

func (postgresDialect) quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (postgresDialect) placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (postgresDialect) columns(ctx context.Context, db *sql.DB, table string) ([]types.Column, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position
	`, table)
	if err != nil {
		return nil, err
	}
	return scanColumns(rows)
}

// rowEstimate reads pg_class.reltuples, which is -1 for never analyzed tables.
func (postgresDialect) rowEstimate(ctx context.Context, db *sql.DB, table string) (*int64, error) {
	var n int64
	err := db.QueryRowContext(ctx, `
		SELECT c.reltuples::bigint
		FROM pg_class c
		JOIN pg_namespace ns ON c.relnamespace = ns.oid
		WHERE ns.nspname = current_schema() AND c.relname = $1
	`, table).Scan(&n)
	if err != nil || n < 0 {
		return nil, err
	}
	return &n, nil
}

type sqliteDialect struct{}

func (sqliteDialect) name() string   { return "sqlite" }
func (sqliteDialect) driver() string { return "sqlite" }

func (sqliteDialect) quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (sqliteDialect) placeholder(int) string { return "?" }

func (sqliteDialect) columns(ctx context.Context, db *sql.DB, table string) ([]types.Column, error) {
	rows, err := db.QueryContext(ctx, `SELECT name, type FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, err
	}
	return scanColumns(rows)
}

func (d sqliteDialect) rowEstimate(ctx context.Context, db *sql.DB, table string) (*int64, error) {
	var n int64
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+d.quote(table)).Scan(&n); err != nil {
		return nil, err
	}
	return &n, nil
}
