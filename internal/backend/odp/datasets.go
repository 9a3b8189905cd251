package odp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alexanderjulianmartinez/dsroute/internal/backend"
	"github.com/alexanderjulianmartinez/dsroute/pkg/types"
)

type schemaResponse struct {
	Columns  []types.Column `json:"columns"`
	RowCount *int64         `json:"row_count"`
}

type fileResponse struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
	ModifiedAt  string `json:"modified_at"`
	ETag        string `json:"etag"`
}

type filesResponse struct {
	Files []fileResponse `json:"files"`
}

type rowsResponse struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

var (
	_ backend.SchemaFetcher = (*Client)(nil)
	_ backend.FileLister    = (*Client)(nil)
	_ backend.TableQuerier  = (*Client)(nil)
	_ backend.FileFetcher   = (*Client)(nil)
)

func (c *Client) FetchSchema(ctx context.Context, handle string) (*types.TableSchema, error) {
	var body schemaResponse
	ok, err := c.getJSON(ctx, c.datasetURL(handle, "schema"), &body)
	if err != nil {
		return nil, err
	}
	// No tabular representation registered for the dataset.
	if !ok || len(body.Columns) == 0 {
		return nil, nil
	}
	for i, col := range body.Columns {
		if col.Name == "" {
			return nil, backend.Errorf(backend.CodeMalformedResponse, "schema column %d has no name", i)
		}
	}
	if body.RowCount != nil && *body.RowCount < 0 {
		body.RowCount = nil
	}
	return &types.TableSchema{Columns: body.Columns, RowCountEstimate: body.RowCount}, nil
}

func (c *Client) ListFiles(ctx context.Context, handle string) ([]types.FileDescriptor, error) {
	var body filesResponse
	ok, err := c.getJSON(ctx, c.datasetURL(handle, "files"), &body)
	if err != nil || !ok {
		return nil, err
	}
	files := make([]types.FileDescriptor, 0, len(body.Files))
	for _, f := range body.Files {
		fd := types.FileDescriptor{
			Name:        f.Name,
			Size:        f.Size,
			ContentType: f.ContentType,
			ETag:        f.ETag,
		}
		if f.ModifiedAt != "" {
			if ts, err := time.Parse(time.RFC3339, f.ModifiedAt); err == nil {
				fd.ModifiedAt = ts
			}
		}
		files = append(files, fd)
	}
	return files, nil
}

func (c *Client) Query(ctx context.Context, handle string, q types.Query) (*types.Rows, error) {
	return c.rows(ctx, c.datasetURL(handle, "query"), q)
}

func (c *Client) Aggregate(ctx context.Context, handle string, req types.AggregateRequest) (*types.Rows, error) {
	return c.rows(ctx, c.datasetURL(handle, "aggregate"), req)
}

func (c *Client) rows(ctx context.Context, target string, body any) (*types.Rows, error) {
	var out rowsResponse
	if _, err := c.sendJSON(ctx, http.MethodPost, target, body, &out); err != nil {
		return nil, err
	}
	for i, row := range out.Rows {
		if len(row) != len(out.Columns) {
			return nil, backend.Errorf(backend.CodeMalformedResponse, "row %d has %d values, want %d", i, len(row), len(out.Columns))
		}
	}
	return &types.Rows{Columns: out.Columns, Values: out.Rows}, nil
}

func (c *Client) Download(ctx context.Context, handle, name string, w io.Writer) (int64, error) {
	resp, err := c.do(ctx, http.MethodGet, c.datasetURL(handle, "files", name), nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, classifyTransportError(ctx, fmt.Errorf("download %s: %w", name, err))
	}
	return n, nil
}
