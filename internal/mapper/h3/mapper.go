// Package h3mapper labels hex grid centers with their H3 cell index.
package h3mapper

import (
	"fmt"
	"math"

	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/signal-hexgrid/internal/core/model"
)

type Mapper struct {
	res int
}

func New(res int) (*Mapper, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}
	return &Mapper{res: res}, nil
}

func (m *Mapper) Resolution() int { return m.res }

// CellFor returns the H3 index, at the mapper's resolution, of the cell that
// contains p.
func (m *Mapper) CellFor(p model.Point) (string, error) {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return "", fmt.Errorf("non-finite point %v", p)
	}
	c, err := h3.LatLngToCell(h3.NewLatLng(p.Lat, p.Lon), m.res)
	if err != nil {
		return "", fmt.Errorf("h3 cell: %w", err)
	}
	return c.String(), nil
}

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}
