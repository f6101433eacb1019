package hexgrid

import (
	"math"
	"testing"

	"github.com/mohammed-shakir/signal-hexgrid/internal/core/model"
)

var norwich = model.Point{Lat: 52.62, Lon: 1.29}

func TestNewLayout_KnownDimensions(t *testing.T) {
	l := NewLayout(norwich, 1, 1, 0.05)

	// 1 / (1.5 * 0.05) = 13.33 and 1 / (sqrt(3) * 0.05) = 11.55, plus 2 each
	if l.Cols != 15 || l.Rows != 13 {
		t.Fatalf("cols=%d rows=%d want 15x13", l.Cols, l.Rows)
	}
	if l.Candidates() != 15*13 {
		t.Fatalf("candidates=%v", l.Candidates())
	}
	if math.Abs(l.DX-1.5*l.SideLon) > 1e-18 || math.Abs(l.DY-math.Sqrt(3)*l.SideLat) > 1e-18 {
		t.Fatalf("steps do not follow side lengths: %+v", l)
	}
	if !(l.SideLon > l.SideLat) {
		t.Fatalf("longitude side must be wider than latitude side away from the equator")
	}
}

func TestCenters_CountMatchesUpperClip(t *testing.T) {
	l := NewLayout(norwich, 1, 1, 0.05)

	got := 0
	for c := range l.Centers() {
		if c.Lon > l.MaxLon || c.Lat > l.MaxLat {
			t.Fatalf("center %v outside upper bounds", c)
		}
		got++
	}

	// 14 surviving columns of 12 rows each
	if got != 168 {
		t.Fatalf("centers=%d want 168", got)
	}
}

func TestCenters_OddColumnsShiftHalfRow(t *testing.T) {
	l := NewLayout(norwich, 1, 1, 0.05)

	var first []model.Point
	for c := range l.Centers() {
		first = append(first, c)
		if len(first) == 13 {
			break
		}
	}
	// column 0 keeps 12 rows, so index 12 is column 1 row 0
	c0, c1 := first[0], first[12]
	if c0.Lon != l.MinLon || c0.Lat != l.MinLat {
		t.Fatalf("first center=%v want min corner", c0)
	}
	if math.Abs((c1.Lat-c0.Lat)-l.DY/2) > 1e-12 {
		t.Fatalf("odd column offset=%v want %v", c1.Lat-c0.Lat, l.DY/2)
	}
	if math.Abs((c1.Lon-c0.Lon)-l.DX) > 1e-12 {
		t.Fatalf("column step=%v want %v", c1.Lon-c0.Lon, l.DX)
	}
}

func TestCenters_ZeroAreaYieldsOneCell(t *testing.T) {
	l := NewLayout(norwich, 0, 0, 0.05)
	n := 0
	for c := range l.Centers() {
		if c != norwich {
			t.Fatalf("center=%v want %v", c, norwich)
		}
		n++
	}
	if n != 1 {
		t.Fatalf("cells=%d want 1", n)
	}
}

func TestRing_ClosedSevenPairs(t *testing.T) {
	l := NewLayout(norwich, 1, 1, 0.05)
	ring := l.Ring(norwich)
	if len(ring) != 7 {
		t.Fatalf("ring len=%d want 7", len(ring))
	}
	if ring[0] != ring[6] {
		t.Fatalf("ring not closed: %v != %v", ring[0], ring[6])
	}
	// vertex 0 sits on the +lon axis, vertex 3 opposite it
	if ring[0] != (model.Position{norwich.Lon + l.SideLon, norwich.Lat}) {
		t.Fatalf("vertex0=%v", ring[0])
	}
	if math.Abs(ring[3][0]-(norwich.Lon-l.SideLon)) > 1e-15 {
		t.Fatalf("vertex3=%v", ring[3])
	}
}

func TestNewLayout_HugeAreaDoesNotOverflow(t *testing.T) {
	l := NewLayout(norwich, 1e12, 1e12, 1e-9)
	if l.Cols != maxAxis || l.Rows != maxAxis {
		t.Fatalf("cols=%d rows=%d want clamped", l.Cols, l.Rows)
	}
	if l.Candidates() < 1e30 {
		t.Fatalf("candidates=%v want huge", l.Candidates())
	}
}
