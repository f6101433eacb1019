// Package model defines core domain types shared across the service.
package model

import (
	"encoding/json"
	"fmt"
)

type Point struct {
	Lat float64
	Lon float64
}

// Position returns the GeoJSON [lon, lat] ordering of p.
func (p Point) Position() Position {
	return Position{p.Lon, p.Lat}
}

func (p Point) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lon)
}

// Position is a GeoJSON coordinate pair: [lon, lat].
type Position [2]float64

type Geometry struct {
	Type        string       `json:"type"`
	Coordinates [][]Position `json:"coordinates"`
}

type Properties struct {
	Value     *float64 `json:"value"`
	Center    Position `json:"center"`
	IsNearest *bool    `json:"isNearest,omitempty"`
	Cell      string   `json:"cell,omitempty"`
}

type Feature struct {
	Type       string     `json:"type"`
	Geometry   Geometry   `json:"geometry"`
	Properties Properties `json:"properties"`
}

type Nearest struct {
	Center         Position `json:"center"`
	Value          float64  `json:"value"`
	DistanceMeters float64  `json:"distanceMeters"`
}

// FeatureCollection is the hex grid response. When WithNearest is set the
// encoded object always carries a "nearest" member, null if nothing matched;
// otherwise the member is left out.
type FeatureCollection struct {
	Type        string
	Features    []Feature
	Nearest     *Nearest
	WithNearest bool
}

type collectionBody struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

func (fc FeatureCollection) MarshalJSON() ([]byte, error) {
	features := fc.Features
	if features == nil {
		features = []Feature{}
	}
	body := collectionBody{Type: fc.Type, Features: features}
	if !fc.WithNearest {
		return json.Marshal(body)
	}
	return json.Marshal(struct {
		collectionBody
		Nearest *Nearest `json:"nearest"`
	}{body, fc.Nearest})
}

func (fc *FeatureCollection) UnmarshalJSON(b []byte) error {
	var raw struct {
		collectionBody
		Nearest json.RawMessage `json:"nearest"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := FeatureCollection{Type: raw.Type, Features: raw.Features}
	if raw.Nearest != nil {
		out.WithNearest = true
		if string(raw.Nearest) != "null" {
			var n Nearest
			if err := json.Unmarshal(raw.Nearest, &n); err != nil {
				return fmt.Errorf("nearest: %w", err)
			}
			out.Nearest = &n
		}
	}
	*fc = out
	return nil
}
