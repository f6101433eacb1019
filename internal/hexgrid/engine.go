// Package hexgrid tessellates a rectangular area into flat-top hexagons and
// annotates each cell with the nearest matching signal measurement.
package hexgrid

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/mohammed-shakir/signal-hexgrid/internal/core/model"
)

var (
	ErrInvalidQuery = errors.New("invalid query")
	ErrTooManyCells = errors.New("too many cells")
)

const (
	DefaultHexSizeKm = 0.05
	DefaultMaxCells  = 250000
)

// how many cells are emitted between context checks
const ctxCheckEvery = 1024

// CellLabeler names the cell containing a point in some external index.
type CellLabeler interface {
	CellFor(p model.Point) (string, error)
}

type Query struct {
	Center       model.Point
	AreaWidthKm  float64
	AreaHeightKm float64
	// HexSizeKm is the center-to-vertex distance; 0 selects the default.
	HexSizeKm float64
	User      model.Point
	Network   string
	Operator  string
	Mode      MatchMode
}

type Result struct {
	Collection model.FeatureCollection
	// Match is the global match (MatchGlobal only); nil when nothing matched.
	Match *Match
	// Matched counts features that received a value.
	Matched int
	Layout  Layout
}

type Option func(*Engine)

// WithMaxCells caps cols*rows of a layout; n <= 0 disables the cap.
func WithMaxCells(n int) Option {
	return func(e *Engine) { e.maxCells = n }
}

func WithCellLabeler(l CellLabeler) Option {
	return func(e *Engine) { e.labeler = l }
}

func WithDefaultHexSize(km float64) Option {
	return func(e *Engine) {
		if km > 0 && !math.IsInf(km, 0) {
			e.defaultHexKm = km
		}
	}
}

// Engine is stateless apart from its read-only source and options, so a
// single Engine serves concurrent queries.
type Engine struct {
	src          Source
	maxCells     int
	labeler      CellLabeler
	defaultHexKm float64
}

// New returns an engine reading measurements from src.
func New(src Source, opts ...Option) *Engine {
	e := &Engine{
		src:          src,
		maxCells:     DefaultMaxCells,
		defaultHexKm: DefaultHexSizeKm,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Generate lays out the hex grid for q and attaches measurement values
// according to q.Mode.
func (e *Engine) Generate(ctx context.Context, q Query) (Result, error) {
	if err := validate(q); err != nil {
		return Result{}, err
	}
	mode := q.Mode
	if mode == "" {
		mode = MatchGlobal
	}
	if mode != MatchGlobal && mode != MatchPerHex {
		return Result{}, fmt.Errorf("%w: unknown match mode %q", ErrInvalidQuery, mode)
	}

	hexKm := q.HexSizeKm
	if hexKm == 0 {
		hexKm = e.defaultHexKm
	}

	layout := NewLayout(q.Center, q.AreaWidthKm, q.AreaHeightKm, hexKm)
	if !layout.Usable() {
		return Result{}, fmt.Errorf("%w: hex size %g km gives a degenerate layout at latitude %g",
			ErrInvalidQuery, hexKm, q.Center.Lat)
	}
	if e.maxCells > 0 && !(layout.Candidates() <= float64(e.maxCells)) {
		return Result{}, fmt.Errorf("%w: layout needs %.0f candidates, limit is %d",
			ErrTooManyCells, layout.Candidates(), e.maxCells)
	}

	var (
		global    *Match
		operators = ofOperator(e.src, q.Operator)
	)
	if mode == MatchGlobal {
		if m, ok := nearestAmong(operators, q.User); ok {
			global = &m
		}
	}

	res := Result{Layout: layout, Match: global}
	features := make([]model.Feature, 0, estimate(layout))
	for c := range layout.Centers() {
		if len(features)%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return Result{}, fmt.Errorf("generate grid: %w", err)
			}
		}

		props := model.Properties{Center: c.Position()}
		switch mode {
		case MatchGlobal:
			nearest := false
			if global != nil {
				v := global.Measurement.RSRP
				props.Value = &v
				// exact float equality against a synthetic grid point; in
				// practice this almost never holds
				nearest = c.Lon == global.Measurement.Lon && c.Lat == global.Measurement.Lat
			}
			props.IsNearest = &nearest
		case MatchPerHex:
			if m, ok := nearestAmong(operators, c); ok {
				v := m.Measurement.RSRP
				props.Value = &v
			}
		}
		if props.Value != nil {
			res.Matched++
		}

		if e.labeler != nil {
			cell, err := e.labeler.CellFor(c)
			if err != nil {
				return Result{}, fmt.Errorf("label cell %s: %w", c, err)
			}
			props.Cell = cell
		}

		features = append(features, model.Feature{
			Type: "Feature",
			Geometry: model.Geometry{
				Type:        "Polygon",
				Coordinates: [][]model.Position{layout.Ring(c)},
			},
			Properties: props,
		})
	}

	res.Collection = model.FeatureCollection{
		Type:        "FeatureCollection",
		Features:    features,
		WithNearest: mode == MatchGlobal,
	}
	if global != nil {
		res.Collection.Nearest = &model.Nearest{
			Center:         model.Point{Lat: global.Measurement.Lat, Lon: global.Measurement.Lon}.Position(),
			Value:          global.Measurement.RSRP,
			DistanceMeters: global.DistanceMeters,
		}
	}
	return res, nil
}

func validate(q Query) error {
	nums := []struct {
		name string
		v    float64
	}{
		{"center latitude", q.Center.Lat},
		{"center longitude", q.Center.Lon},
		{"area width", q.AreaWidthKm},
		{"area height", q.AreaHeightKm},
		{"hex size", q.HexSizeKm},
		{"user latitude", q.User.Lat},
		{"user longitude", q.User.Lon},
	}
	for _, n := range nums {
		if math.IsNaN(n.v) || math.IsInf(n.v, 0) {
			return fmt.Errorf("%w: %s must be finite", ErrInvalidQuery, n.name)
		}
	}
	if q.AreaWidthKm < 0 || q.AreaHeightKm < 0 || q.HexSizeKm < 0 {
		return fmt.Errorf("%w: sizes must not be negative", ErrInvalidQuery)
	}
	return nil
}

func estimate(l Layout) int {
	n := l.Candidates()
	if !(n >= 0) {
		return 0
	}
	if n > ctxCheckEvery*64 {
		return ctxCheckEvery * 64
	}
	return int(n)
}
