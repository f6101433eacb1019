package model

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestFeatureCollection_NearestMember(t *testing.T) {
	noMatch := FeatureCollection{Type: "FeatureCollection", WithNearest: true}
	b, err := json.Marshal(noMatch)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got := string(b); got != `{"type":"FeatureCollection","features":[],"nearest":null}` {
		t.Fatalf("got %s", got)
	}

	perHex := FeatureCollection{Type: "FeatureCollection"}
	b, err = json.Marshal(perHex)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(b), "nearest") {
		t.Fatalf("nearest must be omitted, got %s", b)
	}
}

func TestFeatureCollection_DecodeKeepsNearestPresence(t *testing.T) {
	in := `{"type":"FeatureCollection","features":[],"nearest":{"center":[1.291,52.621],"value":-90,"distanceMeters":12.5}}`
	var fc FeatureCollection
	if err := json.Unmarshal([]byte(in), &fc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !fc.WithNearest || fc.Nearest == nil || fc.Nearest.Value != -90 {
		t.Fatalf("unexpected nearest: %+v", fc)
	}
	if fc.Nearest.Center != (Position{1.291, 52.621}) {
		t.Fatalf("center=%v", fc.Nearest.Center)
	}

	var null FeatureCollection
	if err := json.Unmarshal([]byte(`{"type":"FeatureCollection","features":[],"nearest":null}`), &null); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !null.WithNearest || null.Nearest != nil {
		t.Fatalf("expected explicit null nearest: %+v", null)
	}
}

func TestPoint_Position(t *testing.T) {
	p := Point{Lat: 52.62, Lon: 1.29}
	if p.Position() != (Position{1.29, 52.62}) {
		t.Fatalf("position=%v", p.Position())
	}
}
