// Package executor serves validated grid queries: cache lookup, grid
// generation, response encoding and query event publishing.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/mohammed-shakir/signal-hexgrid/internal/cache"
	"github.com/mohammed-shakir/signal-hexgrid/internal/cache/keys"
	"github.com/mohammed-shakir/signal-hexgrid/internal/core/observability"
	"github.com/mohammed-shakir/signal-hexgrid/internal/core/router"
	"github.com/mohammed-shakir/signal-hexgrid/internal/hexgrid"
	"github.com/mohammed-shakir/signal-hexgrid/internal/logger"
	"github.com/mohammed-shakir/signal-hexgrid/internal/queryevents"
)

type Generator interface {
	Generate(ctx context.Context, q hexgrid.Query) (hexgrid.Result, error)
}

type Publisher interface {
	Publish(ev queryevents.Event)
}

type Executor struct {
	logger    *slog.Logger
	gen       Generator
	cache     cache.Interface
	ttl       time.Duration
	dataset   uint64
	publisher Publisher
	startNow  func() time.Time // for tests
}

type Option func(*Executor)

// WithCache enables response caching. scope partitions keys, normally
// keys.Scope over the loaded measurement set and engine settings.
func WithCache(c cache.Interface, ttl time.Duration, scope uint64) Option {
	return func(e *Executor) {
		e.cache = c
		e.ttl = ttl
		e.dataset = scope
	}
}

func WithPublisher(p Publisher) Option {
	return func(e *Executor) { e.publisher = p }
}

func New(logger *slog.Logger, gen Generator, opts ...Option) *Executor {
	e := &Executor{
		logger:   logger,
		gen:      gen,
		startNow: time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Executor) HandleGrid(ctx context.Context, w http.ResponseWriter, _ *http.Request, q hexgrid.Query) {
	ctx = logger.WithMatchMode(ctx, string(q.Mode))

	var key string
	if e.cache != nil {
		key = keys.Key(q, e.dataset)
		body, ok, err := e.cache.Get(ctx, key)
		if err != nil {
			e.logger.WarnContext(ctx, "cache get failed, treating as miss", "err", err)
		}
		if ok {
			observability.IncCacheHit()
			e.logger.DebugContext(logger.WithCache(ctx, "hit"), "served from cache", "bytes", len(body))
			writeJSON(w, body, "hit")
			e.publish(ctx, q, queryevents.Event{CacheHit: true})
			return
		}
		observability.IncCacheMiss()
	}

	start := e.startNow()
	res, err := e.gen.Generate(ctx, q)
	if err != nil {
		e.writeGenerateError(ctx, w, err)
		return
	}
	observability.ObserveGrid(string(q.Mode), len(res.Collection.Features), res.Matched > 0, time.Since(start).Seconds())

	if m := res.Match; m != nil {
		e.logger.DebugContext(ctx, "nearest point found",
			"lat", m.Measurement.Lat,
			"lon", m.Measurement.Lon,
			"value", m.Measurement.RSRP,
			"distance_m", m.DistanceMeters,
		)
	}

	body, err := json.Marshal(res.Collection)
	if err != nil {
		e.logger.ErrorContext(ctx, "encode grid", "err", err)
		router.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	outcome := ""
	if e.cache != nil {
		outcome = "miss"
		if err := e.cache.Set(ctx, key, body, e.ttl); err != nil {
			e.logger.WarnContext(ctx, "cache set failed", "err", err)
		}
	}
	writeJSON(w, body, outcome)

	ev := queryevents.Event{
		Cells:   len(res.Collection.Features),
		Matched: res.Matched,
	}
	if res.Match != nil {
		v := res.Match.Measurement.RSRP
		ev.Value = &v
	}
	e.publish(ctx, q, ev)
}

func (e *Executor) writeGenerateError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, hexgrid.ErrTooManyCells):
		observability.IncRejected("too_many_cells")
		e.logger.InfoContext(ctx, "grid rejected", "err", err)
		router.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, hexgrid.ErrInvalidQuery):
		observability.IncRejected("invalid_query")
		router.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		e.logger.InfoContext(ctx, "grid generation abandoned", "err", err)
		router.WriteError(w, http.StatusServiceUnavailable, "request canceled")
	default:
		e.logger.ErrorContext(ctx, "grid generation failed", "err", err)
		router.WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (e *Executor) publish(ctx context.Context, q hexgrid.Query, ev queryevents.Event) {
	if e.publisher == nil {
		return
	}
	ev.Operator = q.Operator
	ev.Network = q.Network
	ev.Mode = string(q.Mode)
	ev.UserLat = q.User.Lat
	ev.UserLon = q.User.Lon
	ev.RequestID = logger.RequestID(ctx)
	e.publisher.Publish(ev)
}

func writeJSON(w http.ResponseWriter, body []byte, cacheOutcome string) {
	w.Header().Set("Content-Type", "application/json")
	if cacheOutcome != "" {
		w.Header().Set("X-Cache", cacheOutcome)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
