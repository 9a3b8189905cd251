// Package router decides how a dataset should be accessed. It probes the
// tabular catalog and the file store, classifies the dataset as tabular, file
// based, empty or in error, caches the outcome and hands out accessors that
// only expose the operations valid for that classification.
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/alexanderjulianmartinez/dsroute/internal/backend"
	"github.com/alexanderjulianmartinez/dsroute/internal/drift"
	"github.com/alexanderjulianmartinez/dsroute/pkg/types"
)

type Config struct {
	// CacheTTL expires probe results; zero keeps them for the process lifetime.
	CacheTTL time.Duration
	// CacheSize bounds the number of cached handles; zero is unbounded.
	CacheSize int
	Retry     RetryPolicy
}

// Backends are the collaborators the router reads from. Schemas and Files
// are required; Tables and Objects enable accessor operations.
type Backends struct {
	Schemas backend.SchemaFetcher
	Files   backend.FileLister
	Tables  backend.TableQuerier
	Objects backend.FileFetcher
}

type Option func(*Router)

func WithLogger(l *zap.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

func WithObserver(o Observer) Option {
	return func(r *Router) {
		if o != nil {
			r.observers = append(r.observers, o)
		}
	}
}

func withSleep(fn sleepFunc) Option {
	return func(r *Router) { r.sleep = fn }
}

type Router struct {
	cfg       Config
	b         Backends
	cache     *expirable.LRU[string, *types.ProbeResult]
	flight    singleflight.Group
	log       *zap.Logger
	now       func() time.Time
	sleep     sleepFunc
	observers []Observer
}

func New(cfg Config, b Backends, opts ...Option) (*Router, error) {
	if b.Schemas == nil {
		return nil, errors.New("router: schema fetcher is required")
	}
	if b.Files == nil {
		return nil, errors.New("router: file lister is required")
	}
	if cfg.CacheTTL < 0 || cfg.CacheSize < 0 {
		return nil, errors.New("router: cache ttl and size must not be negative")
	}
	cfg.Retry = cfg.Retry.withDefaults()

	r := &Router{
		cfg:   cfg,
		b:     b,
		cache: expirable.NewLRU[string, *types.ProbeResult](cfg.CacheSize, nil, cfg.CacheTTL),
		log:   zap.NewNop(),
		now:   time.Now,
		sleep: sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// normalizeHandle trims the handle and canonicalizes UUIDs so that
// equivalent spellings share a cache entry.
func normalizeHandle(handle string) (string, bool) {
	h := strings.TrimSpace(handle)
	if h == "" {
		return "", false
	}
	if id, err := uuid.Parse(h); err == nil {
		return id.String(), true
	}
	return h, true
}

// Probe classifies handle. A cached result is returned unless forceRefresh
// is set. Ordinary backend conditions (no schema, no files, permanent
// backend errors) come back as a classified result with a nil error. When
// transient failures outlast the retry policy the ModalityError result is
// returned together with a KindTransientBackendFailure error. Cancellation
// returns a nil result. Returned results are shared and must not be modified.
func (r *Router) Probe(ctx context.Context, handle string, forceRefresh bool) (*types.ProbeResult, error) {
	res, err := r.probe(ctx, handle, forceRefresh)
	if errors.Is(err, ErrPermanentBackendFailure) {
		return res, nil
	}
	return res, err
}

// probe is Probe without absorbing permanent failures, so callers that
// need the cause of a ModalityError classification can get it.
func (r *Router) probe(ctx context.Context, handle string, forceRefresh bool) (*types.ProbeResult, error) {
	key, ok := normalizeHandle(handle)
	if !ok {
		return nil, &Error{Kind: KindInvalidHandle, Op: "probe", Reason: "dataset handle must not be empty"}
	}
	if !forceRefresh {
		if res, ok := r.cache.Get(key); ok {
			return res, nil
		}
	}

	// Forced refreshes never join a flight that may answer from the cache.
	flightKey := key
	if forceRefresh {
		flightKey += "\x00force"
	}
	for {
		ch := r.flight.DoChan(flightKey, func() (any, error) {
			if !forceRefresh {
				if res, ok := r.cache.Get(key); ok {
					return res, nil
				}
			}
			return r.probeBackends(ctx, key)
		})

		select {
		case <-ctx.Done():
			return nil, &Error{Kind: KindCanceled, Handle: key, Op: "probe", Err: ctx.Err()}
		case out := <-ch:
			// The shared probe was started by a caller that gave up; ours is
			// still live, so run it again.
			if errors.Is(out.Err, ErrCanceled) && ctx.Err() == nil {
				continue
			}
			res, _ := out.Val.(*types.ProbeResult)
			return res, out.Err
		}
	}
}

func (r *Router) probeBackends(ctx context.Context, handle string) (*types.ProbeResult, error) {
	started := r.now()

	var schema *types.TableSchema
	_, err := r.run(ctx, handle, "fetch_schema", func(ctx context.Context) error {
		var err error
		schema, err = r.b.Schemas.FetchSchema(ctx, handle)
		return err
	})
	if err != nil {
		return r.failed(ctx, handle, "fetch_schema", started, err)
	}

	res := &types.ProbeResult{Handle: handle, ProbedAt: started}
	if schema != nil {
		res.Modality = types.ModalityTabular
		res.Schema = append([]types.Column(nil), schema.Columns...)
		if schema.RowCountEstimate != nil && *schema.RowCountEstimate >= 0 {
			n := *schema.RowCountEstimate
			res.RowCountEstimate = &n
		}
		return r.store(ctx, res)
	}

	var files []types.FileDescriptor
	_, err = r.run(ctx, handle, "list_files", func(ctx context.Context) error {
		var err error
		files, err = r.b.Files.ListFiles(ctx, handle)
		return err
	})
	if err != nil {
		return r.failed(ctx, handle, "list_files", started, err)
	}

	if len(files) > 0 {
		n := len(files)
		res.Modality = types.ModalityFileBased
		res.FileCount = &n
	} else {
		res.Modality = types.ModalityEmpty
	}
	return r.store(ctx, res)
}

// failed turns a backend failure into an uncached ModalityError result.
func (r *Router) failed(ctx context.Context, handle, op string, started time.Time, err error) (*types.ProbeResult, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		r.log.Debug("probe canceled", zap.String("handle", handle), zap.String("op", op))
		return nil, &Error{Kind: KindCanceled, Handle: handle, Op: "probe", Err: ctxErr}
	}

	kind := KindPermanentBackendFailure
	if backend.IsRetryable(err) {
		kind = KindTransientBackendFailure
	}
	res := &types.ProbeResult{
		Handle:   handle,
		Modality: types.ModalityError,
		ProbedAt: started,
		Reason:   fmt.Sprintf("%s: %v", op, err),
	}
	r.log.Warn("probe failed",
		zap.String("handle", handle),
		zap.String("op", op),
		zap.Stringer("kind", kind),
		zap.String("code", backend.CodeOf(err)),
		zap.Error(err))
	return res, &Error{Kind: kind, Handle: handle, Op: "probe", Modality: types.ModalityError, Reason: res.Reason, Err: err}
}

func (r *Router) store(ctx context.Context, res *types.ProbeResult) (*types.ProbeResult, error) {
	// A backend may return after the caller gave up; nothing is cached then.
	if ctx.Err() != nil {
		return r.failed(ctx, res.Handle, "store", res.ProbedAt, ctx.Err())
	}
	prev, hadPrev := r.cache.Peek(res.Handle)
	r.cache.Add(res.Handle, res)

	r.log.Debug("probe classified",
		zap.String("handle", res.Handle),
		zap.Stringer("modality", res.Modality),
		zap.Duration("elapsed", r.now().Sub(res.ProbedAt)))

	if hadPrev {
		if report := drift.Compare(prev, res); !report.Empty() {
			r.notify(ctx, Event{Handle: res.Handle, Previous: prev, Current: res, Report: report})
		}
	}
	return res, nil
}

// Cached returns the cached result for handle without probing.
func (r *Router) Cached(handle string) (*types.ProbeResult, bool) {
	key, ok := normalizeHandle(handle)
	if !ok {
		return nil, false
	}
	return r.cache.Get(key)
}

// Invalidate drops the cached result for handle.
func (r *Router) Invalidate(handle string) {
	if key, ok := normalizeHandle(handle); ok {
		r.cache.Remove(key)
	}
}

func (r *Router) InvalidateAll() {
	r.cache.Purge()
}
