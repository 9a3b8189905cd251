package router

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/alexanderjulianmartinez/dsroute/pkg/types"
)

// Outcome is one entry of a ProbeAll batch.
type Outcome struct {
	Handle string
	Result *types.ProbeResult
	Err    error
}

// ProbeAll probes handles concurrently, at most limit at a time (limit <= 0
// means no limit). Outcomes are returned in input order. A failing handle
// does not stop the others.
func (r *Router) ProbeAll(ctx context.Context, handles []string, forceRefresh bool, limit int) []Outcome {
	out := make([]Outcome, len(handles))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, h := range handles {
		g.Go(func() error {
			res, err := r.Probe(gctx, h, forceRefresh)
			out[i] = Outcome{Handle: h, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}
