package hexgrid

import (
	"fmt"
	"iter"
	"math"
	"strings"

	"github.com/mohammed-shakir/signal-hexgrid/internal/core/model"
	"github.com/mohammed-shakir/signal-hexgrid/internal/geodesy"
	"github.com/mohammed-shakir/signal-hexgrid/internal/measurement"
)

// Source is the read-only measurement set the engine scans.
type Source interface {
	All() iter.Seq[measurement.Measurement]
}

type MatchMode string

const (
	// MatchGlobal resolves one measurement, nearest to the user point, and
	// applies its value to every hex.
	MatchGlobal MatchMode = "global"
	// MatchPerHex resolves the nearest measurement to each hex center.
	MatchPerHex MatchMode = "per_hex"
)

// ParseMatchMode accepts global or per_hex, case-insensitively.
func ParseMatchMode(s string) (MatchMode, error) {
	switch MatchMode(strings.ToLower(strings.TrimSpace(s))) {
	case MatchGlobal:
		return MatchGlobal, nil
	case MatchPerHex:
		return MatchPerHex, nil
	default:
		return "", fmt.Errorf("unknown match mode %q (want global|per_hex)", s)
	}
}

// Match is a selected measurement and its distance from the query point.
type Match struct {
	Measurement    measurement.Measurement
	DistanceMeters float64
}

// Nearest scans src for the measurement of the given operator closest to p.
// Operator comparison is case-insensitive. Ties keep the earliest measurement.
func Nearest(src Source, operator string, p model.Point) (Match, bool) {
	return nearestAmong(ofOperator(src, operator), p)
}

func ofOperator(src Source, operator string) []measurement.Measurement {
	var out []measurement.Measurement
	for m := range src.All() {
		if strings.EqualFold(m.Operator, operator) {
			out = append(out, m)
		}
	}
	return out
}

func nearestAmong(ms []measurement.Measurement, p model.Point) (Match, bool) {
	best := Match{DistanceMeters: math.Inf(1)}
	found := false
	for _, m := range ms {
		d := geodesy.DistanceMeters(p.Lat, p.Lon, m.Lat, m.Lon)
		if d < best.DistanceMeters {
			best = Match{Measurement: m, DistanceMeters: d}
			found = true
		}
	}
	return best, found
}
