package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/alexanderjulianmartinez/dsroute/internal/router"
	"github.com/alexanderjulianmartinez/dsroute/pkg/types"
)

type probeOutcome struct {
	Handle string             `json:"handle"`
	Result *types.ProbeResult `json:"result,omitempty"`
	Error  string             `json:"error,omitempty"`
}

func probeOutcomes(out []router.Outcome) []probeOutcome {
	res := make([]probeOutcome, len(out))
	for i, o := range out {
		res[i] = probeOutcome{Handle: o.Handle, Result: o.Result}
		if o.Err != nil {
			res[i].Error = o.Err.Error()
		}
	}
	return res
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func describe(res *types.ProbeResult) string {
	switch res.Modality {
	case types.ModalityTabular:
		s := fmt.Sprintf("%d columns", len(res.Schema))
		if res.RowCountEstimate != nil {
			s += fmt.Sprintf(", ~%d rows", *res.RowCountEstimate)
		}
		return s
	case types.ModalityFileBased:
		if res.FileCount != nil {
			return fmt.Sprintf("%d files", *res.FileCount)
		}
	case types.ModalityError:
		return res.Reason
	}
	return ""
}

func printOutcomes(w io.Writer, out []router.Outcome) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, o := range out {
		switch {
		case o.Result != nil:
			fmt.Fprintf(tw, "%s\t%s\t%s\n", o.Result.Handle, o.Result.Modality, describe(o.Result))
		default:
			fmt.Fprintf(tw, "%s\t-\t%v\n", o.Handle, o.Err)
		}
	}
	tw.Flush()
}

func printSchema(w io.Writer, cols []types.Column) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COLUMN\tTYPE")
	for _, c := range cols {
		fmt.Fprintf(tw, "%s\t%s\n", c.Name, c.Type)
	}
	tw.Flush()
}

func printFiles(w io.Writer, files []types.FileDescriptor) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSIZE\tMODIFIED")
	for _, f := range files {
		modified := "-"
		if !f.ModifiedAt.IsZero() {
			modified = f.ModifiedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\n", f.Name, f.Size, modified)
	}
	tw.Flush()
}

func printRows(w io.Writer, rows *types.Rows, asJSON bool) error {
	if asJSON {
		records := make([]map[string]any, 0, rows.Len())
		for _, vals := range rows.Values {
			rec := make(map[string]any, len(rows.Columns))
			for i, c := range rows.Columns {
				if i < len(vals) {
					rec[c] = vals[i]
				}
			}
			records = append(records, rec)
		}
		return writeJSON(w, records)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, c := range rows.Columns {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, c)
	}
	fmt.Fprintln(tw)
	for _, vals := range rows.Values {
		for i, v := range vals {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			fmt.Fprint(tw, v)
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}
