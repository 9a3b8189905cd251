package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanderjulianmartinez/dsroute/pkg/types"
)

func TestParseFilter(t *testing.T) {
	cases := []struct {
		expr string
		want types.Filter
	}{
		{"value>=2.5", types.Filter{Column: "value", Op: types.OpGte, Value: 2.5}},
		{"depth < 10", types.Filter{Column: "depth", Op: types.OpLt, Value: int64(10)}},
		{"station!=A", types.Filter{Column: "station", Op: types.OpNe, Value: "A"}},
		{"qc=true", types.Filter{Column: "qc", Op: types.OpEq, Value: true}},
		{`code="7"`, types.Filter{Column: "code", Op: types.OpEq, Value: "7"}},
		{"value<=-1", types.Filter{Column: "value", Op: types.OpLte, Value: int64(-1)}},
		{"note=x>=y", types.Filter{Column: "note", Op: types.OpEq, Value: "x>=y"}},
		{"a<b=c", types.Filter{Column: "a", Op: types.OpLt, Value: "b=c"}},
		{"depth>=-5", types.Filter{Column: "depth", Op: types.OpGte, Value: int64(-5)}},
	}
	for _, tc := range cases {
		got, err := parseFilter(tc.expr)
		require.NoError(t, err, tc.expr)
		assert.Equal(t, tc.want, got, tc.expr)
	}

	for _, bad := range []string{"value", ">=3", "=3", "<x", "value>=", " >= 4", ""} {
		_, err := parseFilter(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseAggregation(t *testing.T) {
	agg, err := parseAggregation("value:AVG")
	require.NoError(t, err)
	assert.Equal(t, types.Aggregation{Column: "value", Func: types.AggAvg}, agg)

	agg, err = parseAggregation("count")
	require.NoError(t, err)
	assert.Equal(t, types.Aggregation{Column: "*", Func: types.AggCount}, agg)

	for _, bad := range []string{"value", "value:median", ":sum"} {
		_, err := parseAggregation(bad)
		assert.Error(t, err, bad)
	}
}
