// Package backend defines the read contracts the router consumes from the
// remote catalog, query and file services.
package backend

import (
	"context"
	"io"

	"github.com/alexanderjulianmartinez/dsroute/pkg/types"
)

// SchemaFetcher returns the tabular schema of a dataset. A nil schema with a
// nil error means the dataset has no tabular representation.
type SchemaFetcher interface {
	FetchSchema(ctx context.Context, handle string) (*types.TableSchema, error)
}

// FileLister returns the files attached to a dataset. An empty slice is a
// valid outcome.
type FileLister interface {
	ListFiles(ctx context.Context, handle string) ([]types.FileDescriptor, error)
}

type TableQuerier interface {
	Query(ctx context.Context, handle string, q types.Query) (*types.Rows, error)
	Aggregate(ctx context.Context, handle string, req types.AggregateRequest) (*types.Rows, error)
}

type FileFetcher interface {
	Download(ctx context.Context, handle, name string, w io.Writer) (int64, error)
}
