// Package sqlcat serves tabular datasets stored as tables in a SQL database.
// A dataset handle maps to the table TablePrefix + handle with dashes
// replaced by underscores.
package sqlcat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/alexanderjulianmartinez/dsroute/internal/backend"
	"github.com/alexanderjulianmartinez/dsroute/pkg/types"
)

const defaultTimeout = 5 * time.Second

var tableNameRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

type Config struct {
	Dialect     string // mysql, postgres or sqlite
	DSN         string
	TablePrefix string
	Timeout     time.Duration
}

type Catalog struct {
	db      *sql.DB
	dialect dialect
	prefix  string
	timeout time.Duration
}

var (
	_ backend.SchemaFetcher = (*Catalog)(nil)
	_ backend.TableQuerier  = (*Catalog)(nil)
)

// Open connects to the database and pings it.
func Open(ctx context.Context, cfg Config) (*Catalog, error) {
	d, err := lookupDialect(cfg.Dialect)
	if err != nil {
		return nil, err
	}
	if cfg.DSN == "" {
		return nil, errors.New("sql catalog dsn is required")
	}
	db, err := sql.Open(d.driver(), cfg.DSN)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s ping failed: %w", d.name(), err)
	}
	return newCatalog(db, d, cfg), nil
}

// NewWithDB wraps an existing connection pool.
func NewWithDB(db *sql.DB, cfg Config) (*Catalog, error) {
	d, err := lookupDialect(cfg.Dialect)
	if err != nil {
		return nil, err
	}
	return newCatalog(db, d, cfg), nil
}

func newCatalog(db *sql.DB, d dialect, cfg Config) *Catalog {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Catalog{db: db, dialect: d, prefix: cfg.TablePrefix, timeout: timeout}
}

func (c *Catalog) Close() error {
	return c.db.Close()
}

// TableName returns the table backing handle, or false when the handle
// cannot name a table.
func (c *Catalog) TableName(handle string) (string, bool) {
	name := c.prefix + strings.ReplaceAll(strings.TrimSpace(handle), "-", "_")
	if !tableNameRe.MatchString(name) {
		return "", false
	}
	return name, true
}

func (c *Catalog) FetchSchema(ctx context.Context, handle string) (*types.TableSchema, error) {
	table, ok := c.TableName(handle)
	if !ok {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cols, err := c.dialect.columns(ctx, c.db, table)
	if err != nil {
		return nil, classify(ctx, err)
	}
	if len(cols) == 0 {
		return nil, nil
	}
	schema := &types.TableSchema{Columns: cols}

	estimate, err := c.dialect.rowEstimate(ctx, c.db, table)
	if err != nil {
		if ctx.Err() != nil {
			return nil, classify(ctx, err)
		}
		// Row estimate is optional.
		return schema, nil
	}
	schema.RowCountEstimate = estimate
	return schema, nil
}

// semanticType folds a SQL data type into the small vocabulary the catalog
// exposes (integer, float, string, boolean, datetime, date, binary).
func semanticType(sqlType string) string {
	raw := strings.ToLower(strings.TrimSpace(sqlType))
	t := raw
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = t[:i]
	}
	if f := strings.Fields(t); len(f) > 0 {
		t = f[0]
	}
	switch {
	case t == "":
		return "unknown"
	case t == "bool" || t == "boolean" || raw == "tinyint(1)":
		return "boolean"
	case t == "interval":
		return "interval"
	case strings.HasPrefix(t, "int") || strings.HasSuffix(t, "int") || strings.HasSuffix(t, "serial"):
		return "integer"
	case strings.Contains(t, "float") || strings.Contains(t, "double") || strings.Contains(t, "real") ||
		strings.Contains(t, "numeric") || strings.Contains(t, "decimal"):
		return "float"
	case strings.Contains(t, "timestamp") || t == "datetime":
		return "datetime"
	case t == "date":
		return "date"
	case strings.Contains(t, "char") || strings.Contains(t, "text") || t == "uuid" || t == "json" || t == "jsonb":
		return "string"
	case strings.Contains(t, "blob") || t == "bytea" || strings.Contains(t, "binary"):
		return "binary"
	default:
		return t
	}
}
