package router

import (
	"context"

	"go.uber.org/zap"

	"github.com/alexanderjulianmartinez/dsroute/internal/drift"
	"github.com/alexanderjulianmartinez/dsroute/pkg/types"
)

// Event describes a fresh probe whose outcome differs from the result it
// replaced in the cache.
type Event struct {
	Handle   string             `json:"handle"`
	Previous *types.ProbeResult `json:"previous"`
	Current  *types.ProbeResult `json:"current"`
	Report   *drift.Report      `json:"report"`
}

// Observer is told about probe changes. Errors are logged and never fail
// the probe that produced the event.
type Observer interface {
	ProbeChanged(ctx context.Context, ev Event) error
}

type ObserverFunc func(ctx context.Context, ev Event) error

func (f ObserverFunc) ProbeChanged(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

func (r *Router) notify(ctx context.Context, ev Event) {
	r.log.Warn("probe result changed",
		zap.String("handle", ev.Handle),
		zap.Stringer("from", ev.Previous.Modality),
		zap.Stringer("to", ev.Current.Modality),
		zap.String("severity", ev.Report.MaxSeverity()),
		zap.Int("issues", len(ev.Report.Issues)))
	for _, o := range r.observers {
		if err := o.ProbeChanged(ctx, ev); err != nil {
			r.log.Warn("probe observer failed", zap.String("handle", ev.Handle), zap.Error(err))
		}
	}
}
