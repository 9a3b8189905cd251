package router

import (
	"context"
	"io"

	"github.com/alexanderjulianmartinez/dsroute/internal/backend"
	"github.com/alexanderjulianmartinez/dsroute/pkg/types"
)

// Accessor is the capability returned by ResolveAccessor. The concrete type
// is *TabularAccessor or *FileAccessor; switch on it to reach the
// operations valid for the dataset.
type Accessor interface {
	Handle() string
	Modality() types.Modality
	Result() *types.ProbeResult
	accessor()
}

type base struct {
	r   *Router
	res *types.ProbeResult
}

func (b base) Handle() string             { return b.res.Handle }
func (b base) Modality() types.Modality   { return b.res.Modality }
func (b base) Result() *types.ProbeResult { return b.res }
func (base) accessor()                    {}

// ResolveAccessor probes handle, using the cache when possible, and returns
// the accessor for its modality. Empty and Error classifications fail with
// KindModalityUnavailable.
func (r *Router) ResolveAccessor(ctx context.Context, handle string) (Accessor, error) {
	res, err := r.probe(ctx, handle, false)
	if res == nil {
		return nil, err
	}
	switch res.Modality {
	case types.ModalityTabular:
		return &TabularAccessor{base{r: r, res: res}}, nil
	case types.ModalityFileBased:
		return &FileAccessor{base{r: r, res: res}}, nil
	case types.ModalityEmpty:
		return nil, &Error{
			Kind:     KindModalityUnavailable,
			Handle:   res.Handle,
			Op:       "resolve",
			Modality: res.Modality,
			Reason:   "dataset has no tabular schema and no files",
		}
	default:
		return nil, &Error{
			Kind:     KindModalityUnavailable,
			Handle:   res.Handle,
			Op:       "resolve",
			Modality: res.Modality,
			Reason:   res.Reason,
			Err:      err,
		}
	}
}

// opError wraps a failed accessor operation.
func (r *Router) opError(handle, op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*Error); ok {
		return err
	}
	kind := KindPermanentBackendFailure
	switch {
	case isContextErr(err):
		kind = KindCanceled
	case backend.IsRetryable(err):
		kind = KindTransientBackendFailure
	case backend.CodeOf(err) == backend.CodeInvalidRequest:
		kind = KindInvalidArgument
	}
	return &Error{Kind: kind, Handle: handle, Op: op, Err: err}
}

type TabularAccessor struct{ base }

func (a *TabularAccessor) Schema() []types.Column {
	return a.res.Schema
}

func (a *TabularAccessor) RowCountEstimate() (int64, bool) {
	if a.res.RowCountEstimate == nil {
		return 0, false
	}
	return *a.res.RowCountEstimate, true
}

func (a *TabularAccessor) Query(ctx context.Context, q types.Query) (*types.Rows, error) {
	if a.r.b.Tables == nil {
		return nil, &Error{Kind: KindUnsupported, Handle: a.Handle(), Op: "query", Reason: "no tabular query backend configured"}
	}
	if err := a.checkColumns("query", q.Columns, q.Filters, q.OrderBy); err != nil {
		return nil, err
	}
	var rows *types.Rows
	_, err := a.r.run(ctx, a.Handle(), "query", func(ctx context.Context) error {
		var err error
		rows, err = a.r.b.Tables.Query(ctx, a.Handle(), q)
		return err
	})
	if err != nil {
		return nil, a.r.opError(a.Handle(), "query", err)
	}
	return rows, nil
}

func (a *TabularAccessor) Aggregate(ctx context.Context, req types.AggregateRequest) (*types.Rows, error) {
	if a.r.b.Tables == nil {
		return nil, &Error{Kind: KindUnsupported, Handle: a.Handle(), Op: "aggregate", Reason: "no tabular query backend configured"}
	}
	if len(req.Aggregations) == 0 {
		return nil, &Error{Kind: KindInvalidArgument, Handle: a.Handle(), Op: "aggregate", Reason: "at least one aggregation is required"}
	}
	cols := append([]string(nil), req.GroupBy...)
	for _, agg := range req.Aggregations {
		if !agg.Func.Valid() {
			return nil, &Error{Kind: KindInvalidArgument, Handle: a.Handle(), Op: "aggregate", Reason: "unsupported aggregation " + string(agg.Func)}
		}
		if agg.Column != "*" {
			cols = append(cols, agg.Column)
		}
	}
	if err := a.checkColumns("aggregate", cols, req.Filters, nil); err != nil {
		return nil, err
	}
	var rows *types.Rows
	_, err := a.r.run(ctx, a.Handle(), "aggregate", func(ctx context.Context) error {
		var err error
		rows, err = a.r.b.Tables.Aggregate(ctx, a.Handle(), req)
		return err
	})
	if err != nil {
		return nil, a.r.opError(a.Handle(), "aggregate", err)
	}
	return rows, nil
}

// checkColumns rejects columns the probed schema does not have. Order
// columns may carry a leading "-" for descending order.
func (a *TabularAccessor) checkColumns(op string, cols []string, filters []types.Filter, orderBy []string) error {
	names := append([]string(nil), cols...)
	for _, f := range filters {
		if !f.Op.Valid() {
			return &Error{Kind: KindInvalidArgument, Handle: a.Handle(), Op: op, Reason: "unsupported filter operator " + string(f.Op)}
		}
		names = append(names, f.Column)
	}
	for _, o := range orderBy {
		if len(o) > 0 && o[0] == '-' {
			o = o[1:]
		}
		names = append(names, o)
	}
	for _, n := range names {
		if _, ok := a.res.Column(n); !ok {
			return &Error{Kind: KindInvalidArgument, Handle: a.Handle(), Op: op, Reason: "unknown column " + n}
		}
	}
	return nil
}

type FileAccessor struct{ base }

// FileCount is the number of files seen when the dataset was probed.
func (a *FileAccessor) FileCount() int {
	if a.res.FileCount == nil {
		return 0
	}
	return *a.res.FileCount
}

// Files lists the dataset's files from the backend. The listing may differ
// from FileCount if the dataset changed since it was probed.
func (a *FileAccessor) Files(ctx context.Context) ([]types.FileDescriptor, error) {
	var files []types.FileDescriptor
	_, err := a.r.run(ctx, a.Handle(), "list_files", func(ctx context.Context) error {
		var err error
		files, err = a.r.b.Files.ListFiles(ctx, a.Handle())
		return err
	})
	if err != nil {
		return nil, a.r.opError(a.Handle(), "list_files", err)
	}
	return files, nil
}

// Download streams one file into w. It is not retried since w may already
// hold a partial copy.
func (a *FileAccessor) Download(ctx context.Context, name string, w io.Writer) (int64, error) {
	if a.r.b.Objects == nil {
		return 0, &Error{Kind: KindUnsupported, Handle: a.Handle(), Op: "download", Reason: "no file download backend configured"}
	}
	if name == "" {
		return 0, &Error{Kind: KindInvalidArgument, Handle: a.Handle(), Op: "download", Reason: "file name must not be empty"}
	}
	n, err := a.r.b.Objects.Download(ctx, a.Handle(), name, w)
	if err != nil {
		return n, a.r.opError(a.Handle(), "download", err)
	}
	return n, nil
}
