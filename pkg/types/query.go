package types

import "fmt"

type FilterOp string

const (
	OpEq  FilterOp = "="
	OpNe  FilterOp = "!="
	OpLt  FilterOp = "<"
	OpLte FilterOp = "<="
	OpGt  FilterOp = ">"
	OpGte FilterOp = ">="
)

func (op FilterOp) Valid() bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLte, OpGt, OpGte:
		return true
	}
	return false
}

type Filter struct {
	Column string   `json:"column"`
	Op     FilterOp `json:"op"`
	Value  any      `json:"value"`
}

// Query selects rows from a tabular dataset. Empty Columns selects all.
type Query struct {
	Columns []string `json:"columns,omitempty"`
	Filters []Filter `json:"filters,omitempty"`
	OrderBy []string `json:"order_by,omitempty"`
	Limit   int      `json:"limit,omitempty"`
}

type AggFunc string

const (
	AggCount AggFunc = "count"
	AggSum   AggFunc = "sum"
	AggAvg   AggFunc = "avg"
	AggMin   AggFunc = "min"
	AggMax   AggFunc = "max"
)

func (f AggFunc) Valid() bool {
	switch f {
	case AggCount, AggSum, AggAvg, AggMin, AggMax:
		return true
	}
	return false
}

type Aggregation struct {
	Column string  `json:"column"`
	Func   AggFunc `json:"func"`
}

// Alias is the output column name of an aggregation, e.g. "avg_value".
// A count over "*" is named "count".
func (a Aggregation) Alias() string {
	if a.Column == "*" {
		return string(a.Func)
	}
	return fmt.Sprintf("%s_%s", a.Func, a.Column)
}

type AggregateRequest struct {
	GroupBy      []string      `json:"group_by,omitempty"`
	Aggregations []Aggregation `json:"aggregations"`
	Filters      []Filter      `json:"filters,omitempty"`
}

// Rows is a column-ordered result set.
type Rows struct {
	Columns []string `json:"columns"`
	Values  [][]any  `json:"rows"`
}

func (r *Rows) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Values)
}
