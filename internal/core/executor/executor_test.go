package executor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammed-shakir/signal-hexgrid/internal/cache/lrustore"
	"github.com/mohammed-shakir/signal-hexgrid/internal/core/model"
	"github.com/mohammed-shakir/signal-hexgrid/internal/hexgrid"
	"github.com/mohammed-shakir/signal-hexgrid/internal/logger"
	"github.com/mohammed-shakir/signal-hexgrid/internal/measurement"
	"github.com/mohammed-shakir/signal-hexgrid/internal/queryevents"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []queryevents.Event
}

func (p *recordingPublisher) Publish(ev queryevents.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

type countingGen struct {
	next  Generator
	calls int
}

func (g *countingGen) Generate(ctx context.Context, q hexgrid.Query) (hexgrid.Result, error) {
	g.calls++
	return g.next.Generate(ctx, q)
}

type errGen struct{ err error }

func (g errGen) Generate(context.Context, hexgrid.Query) (hexgrid.Result, error) {
	return hexgrid.Result{}, g.err
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func scenario() (*measurement.Set, hexgrid.Query) {
	set := measurement.NewSet([]measurement.Measurement{
		{Lat: 52.6201, Lon: 1.2901, Operator: "EE", RSRP: -90},
		{Lat: 52.70, Lon: 1.40, Operator: "EE", RSRP: -110},
		{Lat: 52.62, Lon: 1.29, Operator: "O2", RSRP: -70},
	})
	q := hexgrid.Query{
		Center:       model.Point{Lat: 52.62, Lon: 1.29},
		AreaWidthKm:  1,
		AreaHeightKm: 1,
		HexSizeKm:    0.05,
		User:         model.Point{Lat: 52.62, Lon: 1.29},
		Operator:     "ee",
		Network:      "4G",
		Mode:         hexgrid.MatchGlobal,
	}
	return set, q
}

func serve(e *Executor, q hexgrid.Query) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/generate-hexgrid", nil)
	ctx := logger.WithRequestID(req.Context(), "req-1")
	rr := httptest.NewRecorder()
	e.HandleGrid(ctx, rr, req.WithContext(ctx), q)
	return rr
}

func TestHandleGrid_GeneratesCollection(t *testing.T) {
	set, q := scenario()
	pub := &recordingPublisher{}
	e := New(discard(), hexgrid.New(set), WithPublisher(pub))

	rr := serve(e, q)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Empty(t, rr.Header().Get("X-Cache"), "no cache configured")

	var fc model.FeatureCollection
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	assert.Len(t, fc.Features, 168)
	require.NotNil(t, fc.Nearest)
	assert.Equal(t, -90.0, fc.Nearest.Value)
	for _, f := range fc.Features {
		require.NotNil(t, f.Properties.Value)
		assert.Equal(t, -90.0, *f.Properties.Value)
	}

	require.Len(t, pub.events, 1)
	ev := pub.events[0]
	assert.Equal(t, 168, ev.Cells)
	assert.Equal(t, 168, ev.Matched)
	assert.Equal(t, "ee", ev.Operator)
	assert.Equal(t, "global", ev.Mode)
	assert.Equal(t, "req-1", ev.RequestID)
	require.NotNil(t, ev.Value)
	assert.Equal(t, -90.0, *ev.Value)
	assert.False(t, ev.CacheHit)
}

func TestHandleGrid_CacheHitIsByteIdentical(t *testing.T) {
	set, q := scenario()
	store, err := lrustore.New(16)
	require.NoError(t, err)
	gen := &countingGen{next: hexgrid.New(set)}
	pub := &recordingPublisher{}
	e := New(discard(), gen, WithCache(store, time.Minute, set.Fingerprint()), WithPublisher(pub))

	first := serve(e, q)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "miss", first.Header().Get("X-Cache"))

	second := serve(e, q)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "hit", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.Bytes(), second.Body.Bytes())
	assert.Equal(t, 1, gen.calls, "second request must not regenerate")

	require.Len(t, pub.events, 2)
	assert.True(t, pub.events[1].CacheHit)

	q.Operator = "O2"
	third := serve(e, q)
	assert.Equal(t, "miss", third.Header().Get("X-Cache"))
	assert.Equal(t, 2, gen.calls)
}

func TestHandleGrid_NoMatchIsNotAnError(t *testing.T) {
	set, q := scenario()
	q.Operator = "Vodafone"
	e := New(discard(), hexgrid.New(set))

	rr := serve(e, q)
	require.Equal(t, http.StatusOK, rr.Code)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &raw))
	assert.JSONEq(t, "null", string(raw["nearest"]))
}

func TestHandleGrid_ErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{hexgrid.ErrTooManyCells, http.StatusUnprocessableEntity},
		{hexgrid.ErrInvalidQuery, http.StatusBadRequest},
		{context.Canceled, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		pub := &recordingPublisher{}
		e := New(discard(), errGen{err: c.err}, WithPublisher(pub))
		_, q := scenario()
		rr := serve(e, q)
		assert.Equal(t, c.want, rr.Code, "err=%v", c.err)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.NotEmpty(t, body["error"])
		assert.Empty(t, pub.events, "failed requests publish nothing")
	}
}

func TestHandleGrid_TooManyCellsFromEngine(t *testing.T) {
	set, q := scenario()
	q.AreaWidthKm = 100
	q.AreaHeightKm = 100
	e := New(discard(), hexgrid.New(set, hexgrid.WithMaxCells(1000)))

	rr := serve(e, q)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}
