package drift

import (
	"fmt"
	"strconv"

	"github.com/alexanderjulianmartinez/dsroute/pkg/types"
)

type Issue struct {
	Kind     string `json:"kind"`
	Severity string `json:"severity"`
	Column   string `json:"column,omitempty"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
	Message  string `json:"message"`
}

type Report struct {
	Handle string  `json:"handle"`
	Issues []Issue `json:"issues"`
}

func (r *Report) Empty() bool {
	return r == nil || len(r.Issues) == 0
}

// MaxSeverity returns the highest severity in the report, or "" when empty.
func (r *Report) MaxSeverity() string {
	if r.Empty() {
		return ""
	}
	top := SeverityInfo
	for _, iss := range r.Issues {
		if severityRank(iss.Severity) > severityRank(top) {
			top = iss.Severity
		}
	}
	return top
}

func (r *Report) add(kind, column, from, to string) {
	r.Issues = append(r.Issues, Issue{
		Kind:     kind,
		Severity: SeverityForChange(kind),
		Column:   column,
		From:     from,
		To:       to,
		Message:  MessageForChange(kind),
	})
}

// Compare reports what changed between a previous and a fresh probe of the
// same dataset. prev may be nil, in which case only conditions of cur itself
// are reported.
func Compare(prev, cur *types.ProbeResult) *Report {
	report := &Report{}
	if cur == nil {
		return report
	}
	report.Handle = cur.Handle

	if cur.Modality == types.ModalityFileBased && cur.FileCount != nil && *cur.FileCount == 0 {
		report.add(KindFileCountZero, "", "", "0")
	}
	if prev == nil {
		return report
	}

	if prev.Modality != cur.Modality {
		report.add(KindModalityChanged, "", prev.Modality.String(), cur.Modality.String())
		return report
	}

	switch cur.Modality {
	case types.ModalityTabular:
		compareSchema(report, prev, cur)
		if from, to := optInt64(prev.RowCountEstimate), optInt64(cur.RowCountEstimate); from != to {
			report.add(KindRowEstimateChanged, "", from, to)
		}
	case types.ModalityFileBased:
		if from, to := optInt(prev.FileCount), optInt(cur.FileCount); from != to {
			report.add(KindFileCountChanged, "", from, to)
		}
	}
	return report
}

func compareSchema(report *Report, prev, cur *types.ProbeResult) {
	before := map[string]types.Column{}
	for _, col := range prev.Schema {
		before[col.Name] = col
	}
	for _, col := range cur.Schema {
		old, ok := before[col.Name]
		if !ok {
			report.add(KindColumnAdded, col.Name, "", col.Type)
			continue
		}
		if old.Type != col.Type {
			report.add(KindTypeChanged, col.Name, old.Type, col.Type)
		}
		delete(before, col.Name)
	}
	// Preserve the previous column order for removals.
	for _, col := range prev.Schema {
		if _, gone := before[col.Name]; gone {
			report.add(KindColumnRemoved, col.Name, col.Type, "")
		}
	}
}

func optInt64(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func optInt(v *int) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(*v)
}
