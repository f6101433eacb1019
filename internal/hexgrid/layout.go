package hexgrid

import (
	"iter"
	"math"

	"github.com/mohammed-shakir/signal-hexgrid/internal/core/model"
	"github.com/mohammed-shakir/signal-hexgrid/internal/geodesy"
)

// Layout is the flat-top hexagon packing for one query. Hexes are laid out in
// columns dx apart; odd columns are shifted up by dy/2 so neighbours interlock.
type Layout struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64

	// center-to-vertex distance, in degrees per axis
	SideLat, SideLon float64

	DX, DY float64

	Cols, Rows int

	candidates float64
}

// maxAxis bounds Cols and Rows so the int conversion stays defined for
// absurd inputs; such layouts are rejected by the cell cap anyway.
const maxAxis = math.MaxInt32

// NewLayout computes the packing of hexKm-sized hexagons over a widthKm by
// heightKm box centered on center.
func NewLayout(center model.Point, widthKm, heightKm, hexKm float64) Layout {
	degLat, degLon := geodesy.DegreesPerKm(center.Lat)

	halfW := widthKm / 2 * degLon
	halfH := heightKm / 2 * degLat

	l := Layout{
		MinLat:  center.Lat - halfH,
		MaxLat:  center.Lat + halfH,
		MinLon:  center.Lon - halfW,
		MaxLon:  center.Lon + halfW,
		SideLat: hexKm * degLat,
		SideLon: hexKm * degLon,
	}
	l.DX = 1.5 * l.SideLon
	l.DY = math.Sqrt(3) * l.SideLat

	// +2 overshoots the box so clipping never leaves an edge uncovered
	cols := math.Floor((l.MaxLon-l.MinLon)/l.DX) + 2
	rows := math.Floor((l.MaxLat-l.MinLat)/l.DY) + 2
	l.candidates = cols * rows
	l.Cols = clampAxis(cols)
	l.Rows = clampAxis(rows)
	return l
}

func clampAxis(f float64) int {
	switch {
	case math.IsNaN(f) || f <= 0:
		return 0
	case f > maxAxis:
		return maxAxis
	default:
		return int(f)
	}
}

// Usable reports whether the layout geometry is finite with positive steps.
// Tiny hex sizes can underflow to zero degrees and huge ones near the poles can
// overflow; neither can be enumerated or encoded.
func (l Layout) Usable() bool {
	for _, v := range []float64{l.SideLat, l.SideLon, l.DX, l.DY} {
		if !(v > 0) || math.IsInf(v, 0) {
			return false
		}
	}
	for _, v := range []float64{l.MinLat, l.MaxLat, l.MinLon, l.MaxLon, l.candidates} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Candidates is cols*rows before clipping, as a float so huge layouts can be
// detected without overflow.
func (l Layout) Candidates() float64 {
	return l.candidates
}

// Centers yields the retained hex centers, column by column. A candidate is
// discarded when it lies past MaxLon or MaxLat; nothing is filtered against
// MinLon or MinLat.
func (l Layout) Centers() iter.Seq[model.Point] {
	return func(yield func(model.Point) bool) {
		for col := 0; col < l.Cols; col++ {
			for row := 0; row < l.Rows; row++ {
				c, ok := l.center(col, row)
				if !ok {
					continue
				}
				if !yield(c) {
					return
				}
			}
		}
	}
}

func (l Layout) center(col, row int) (model.Point, bool) {
	lon := l.MinLon + float64(col)*l.DX
	lat := l.MinLat + float64(row)*l.DY
	if col%2 == 1 {
		lat += l.DY / 2
	}
	if lon > l.MaxLon || lat > l.MaxLat {
		return model.Point{}, false
	}
	return model.Point{Lat: lat, Lon: lon}, true
}

// Ring returns the closed boundary of the hex centered at c: six vertices at
// 60° steps from the +lon axis, then the first vertex again.
func (l Layout) Ring(c model.Point) []model.Position {
	ring := make([]model.Position, 0, 7)
	for j := range 6 {
		a := geodesy.DegreesToRadians(60 * float64(j))
		ring = append(ring, model.Position{
			c.Lon + l.SideLon*math.Cos(a),
			c.Lat + l.SideLat*math.Sin(a),
		})
	}
	return append(ring, ring[0])
}
