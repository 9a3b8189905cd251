package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alexanderjulianmartinez/dsroute/pkg/types"
)

var filterOps = []types.FilterOp{types.OpGte, types.OpLte, types.OpNe, types.OpEq, types.OpGt, types.OpLt}

// parseFilter splits expr at its leftmost operator, preferring the longest
// operator at that position, so "a>=b" is never read as "a>" "=" "b".
func parseFilter(expr string) (types.Filter, error) {
	pos, op := -1, types.FilterOp("")
	for _, cand := range filterOps {
		i := strings.Index(expr, string(cand))
		if i < 0 {
			continue
		}
		if pos < 0 || i < pos || (i == pos && len(cand) > len(op)) {
			pos, op = i, cand
		}
	}
	if pos > 0 {
		col := strings.TrimSpace(expr[:pos])
		raw := strings.TrimSpace(expr[pos+len(op):])
		if col != "" && raw != "" {
			return types.Filter{Column: col, Op: op, Value: parseValue(raw)}, nil
		}
	}
	return types.Filter{}, fmt.Errorf("invalid filter %q, want column<op>value", expr)
}

func parseFilters(exprs []string) ([]types.Filter, error) {
	out := make([]types.Filter, 0, len(exprs))
	for _, e := range exprs {
		f, err := parseFilter(e)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// parseValue returns numbers and booleans as such and anything else as a
// string. Quotes force a string.
func parseValue(raw string) any {
	if len(raw) >= 2 && (raw[0] == '"' || raw[0] == '\'') && raw[len(raw)-1] == raw[0] {
		return raw[1 : len(raw)-1]
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}

func parseAggregation(expr string) (types.Aggregation, error) {
	col, fn, ok := strings.Cut(strings.TrimSpace(expr), ":")
	if !ok {
		if types.AggFunc(strings.ToLower(col)) == types.AggCount {
			return types.Aggregation{Column: "*", Func: types.AggCount}, nil
		}
		return types.Aggregation{}, fmt.Errorf("invalid aggregation %q, want column:func", expr)
	}
	agg := types.Aggregation{Column: strings.TrimSpace(col), Func: types.AggFunc(strings.ToLower(strings.TrimSpace(fn)))}
	if agg.Column == "" || !agg.Func.Valid() {
		return types.Aggregation{}, fmt.Errorf("invalid aggregation %q", expr)
	}
	return agg, nil
}

func parseAggregations(exprs []string) ([]types.Aggregation, error) {
	out := make([]types.Aggregation, 0, len(exprs))
	for _, e := range exprs {
		agg, err := parseAggregation(e)
		if err != nil {
			return nil, err
		}
		out = append(out, agg)
	}
	return out, nil
}
