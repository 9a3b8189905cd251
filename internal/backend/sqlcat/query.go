package sqlcat

import (
	"context"
	"strconv"
	"strings"

	"github.com/alexanderjulianmartinez/dsroute/internal/backend"
	"github.com/alexanderjulianmartinez/dsroute/pkg/types"
)

const maxQueryLimit = 100000

// builder accumulates one statement and its bound arguments.
type builder struct {
	d    dialect
	cols map[string]bool
	sb   strings.Builder
	args []any
}

func (b *builder) column(name string) (string, error) {
	if !b.cols[name] {
		return "", backend.Errorf(backend.CodeInvalidRequest, "unknown column %q", name)
	}
	return b.d.quote(name), nil
}

func (b *builder) where(filters []types.Filter) error {
	for i, f := range filters {
		col, err := b.column(f.Column)
		if err != nil {
			return err
		}
		if !f.Op.Valid() {
			return backend.Errorf(backend.CodeInvalidRequest, "unsupported operator %q", f.Op)
		}
		if i == 0 {
			b.sb.WriteString(" WHERE ")
		} else {
			b.sb.WriteString(" AND ")
		}
		op := string(f.Op)
		if f.Op == types.OpNe {
			op = "<>"
		}
		b.args = append(b.args, f.Value)
		b.sb.WriteString(col + " " + op + " " + b.d.placeholder(len(b.args)))
	}
	return nil
}

func (c *Catalog) newBuilder(ctx context.Context, handle string) (*builder, string, error) {
	table, ok := c.TableName(handle)
	if !ok {
		return nil, "", backend.Errorf(backend.CodeNotFound, "no table for dataset %s", handle)
	}
	cols, err := c.dialect.columns(ctx, c.db, table)
	if err != nil {
		return nil, "", classify(ctx, err)
	}
	if len(cols) == 0 {
		return nil, "", backend.Errorf(backend.CodeNotFound, "table %s does not exist", table)
	}
	b := &builder{d: c.dialect, cols: make(map[string]bool, len(cols))}
	for _, col := range cols {
		b.cols[col.Name] = true
	}
	return b, c.dialect.quote(table), nil
}

func (c *Catalog) Query(ctx context.Context, handle string, q types.Query) (*types.Rows, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	b, table, err := c.newBuilder(ctx, handle)
	if err != nil {
		return nil, err
	}

	b.sb.WriteString("SELECT ")
	if len(q.Columns) == 0 {
		b.sb.WriteString("*")
	}
	for i, name := range q.Columns {
		col, err := b.column(name)
		if err != nil {
			return nil, err
		}
		if i > 0 {
			b.sb.WriteString(", ")
		}
		b.sb.WriteString(col)
	}
	b.sb.WriteString(" FROM " + table)
	if err := b.where(q.Filters); err != nil {
		return nil, err
	}
	for i, name := range q.OrderBy {
		desc := strings.HasPrefix(name, "-")
		col, err := b.column(strings.TrimPrefix(name, "-"))
		if err != nil {
			return nil, err
		}
		if i == 0 {
			b.sb.WriteString(" ORDER BY ")
		} else {
			b.sb.WriteString(", ")
		}
		b.sb.WriteString(col)
		if desc {
			b.sb.WriteString(" DESC")
		}
	}
	limit := q.Limit
	if limit <= 0 || limit > maxQueryLimit {
		limit = maxQueryLimit
	}
	b.sb.WriteString(" LIMIT " + strconv.Itoa(limit))

	return c.collect(ctx, b)
}

func (c *Catalog) Aggregate(ctx context.Context, handle string, req types.AggregateRequest) (*types.Rows, error) {
	if len(req.Aggregations) == 0 {
		return nil, backend.Errorf(backend.CodeInvalidRequest, "at least one aggregation is required")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	b, table, err := c.newBuilder(ctx, handle)
	if err != nil {
		return nil, err
	}

	var selects, groups []string
	for _, name := range req.GroupBy {
		col, err := b.column(name)
		if err != nil {
			return nil, err
		}
		selects = append(selects, col)
		groups = append(groups, col)
	}
	for _, agg := range req.Aggregations {
		if !agg.Func.Valid() {
			return nil, backend.Errorf(backend.CodeInvalidRequest, "unsupported aggregation %q", agg.Func)
		}
		arg := "*"
		if agg.Column != "*" {
			if arg, err = b.column(agg.Column); err != nil {
				return nil, err
			}
		} else if agg.Func != types.AggCount {
			return nil, backend.Errorf(backend.CodeInvalidRequest, "%s requires a column", agg.Func)
		}
		selects = append(selects, strings.ToUpper(string(agg.Func))+"("+arg+") AS "+c.dialect.quote(agg.Alias()))
	}

	b.sb.WriteString("SELECT " + strings.Join(selects, ", ") + " FROM " + table)
	if err := b.where(req.Filters); err != nil {
		return nil, err
	}
	if len(groups) > 0 {
		g := strings.Join(groups, ", ")
		b.sb.WriteString(" GROUP BY " + g + " ORDER BY " + g)
	}
	return c.collect(ctx, b)
}

func (c *Catalog) collect(ctx context.Context, b *builder) (*types.Rows, error) {
	rows, err := c.db.QueryContext(ctx, b.sb.String(), b.args...)
	if err != nil {
		return nil, classify(ctx, err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, classify(ctx, err)
	}
	out := &types.Rows{Columns: names}
	for rows.Next() {
		vals := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, classify(ctx, err)
		}
		for i, v := range vals {
			if raw, ok := v.([]byte); ok {
				vals[i] = string(raw)
			}
		}
		out.Values = append(out.Values, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(ctx, err)
	}
	return out, nil
}
