package measurement

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

var ErrMissingColumn = errors.New("missing required column")

// column names expected in the header row (matched trimmed, case-insensitive)
const (
	colLat      = "latitude"
	colLon      = "longitude"
	colOperator = "operator"
	colRSRP     = "rsrp"
)

type LoadStats struct {
	Rows    int
	Loaded  int
	Dropped int
}

// LoadFile reads a measurement CSV from disk. See Load.
func LoadFile(path string) (*Set, LoadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, LoadStats{}, fmt.Errorf("open measurements: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Load(f)
}

// Load parses a CSV with a header row containing latitude, longitude,
// operator and rsrp. Rows whose latitude, longitude or rsrp are not finite
// numbers are dropped and counted; they never fail the load.
func Load(r io.Reader) (*Set, LoadStats, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, LoadStats{}, fmt.Errorf("read header: empty input")
		}
		return nil, LoadStats{}, fmt.Errorf("read header: %w", err)
	}
	idx, err := columnIndex(header)
	if err != nil {
		return nil, LoadStats{}, err
	}

	var (
		stats LoadStats
		items []Measurement
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				stats.Rows++
				stats.Dropped++
				continue
			}
			return nil, stats, fmt.Errorf("read row %d: %w", stats.Rows+1, err)
		}
		stats.Rows++

		m, ok := parseRow(rec, idx)
		if !ok {
			stats.Dropped++
			continue
		}
		items = append(items, m)
	}
	stats.Loaded = len(items)
	return NewSet(items), stats, nil
}

type columns struct {
	lat, lon, operator, rsrp int
}

func columnIndex(header []string) (columns, error) {
	idx := columns{lat: -1, lon: -1, operator: -1, rsrp: -1}
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		switch strings.ToLower(strings.TrimSpace(h)) {
		case colLat:
			idx.lat = i
		case colLon:
			idx.lon = i
		case colOperator:
			idx.operator = i
		case colRSRP:
			idx.rsrp = i
		}
	}
	required := []struct {
		name string
		at   int
	}{
		{colLat, idx.lat},
		{colLon, idx.lon},
		{colOperator, idx.operator},
		{colRSRP, idx.rsrp},
	}
	for _, c := range required {
		if c.at < 0 {
			return columns{}, fmt.Errorf("%w: %s", ErrMissingColumn, c.name)
		}
	}
	return idx, nil
}

func parseRow(rec []string, idx columns) (Measurement, bool) {
	field := func(i int) string {
		if i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	lat, ok := parseFinite(field(idx.lat))
	if !ok {
		return Measurement{}, false
	}
	lon, ok := parseFinite(field(idx.lon))
	if !ok {
		return Measurement{}, false
	}
	rsrp, ok := parseFinite(field(idx.rsrp))
	if !ok {
		return Measurement{}, false
	}
	return Measurement{Lat: lat, Lon: lon, Operator: field(idx.operator), RSRP: rsrp}, true
}

func parseFinite(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
