// Package measurement holds the immutable set of signal-strength samples the
// hex grid is annotated from.
package measurement

import (
	"encoding/binary"
	"iter"
	"math"

	"github.com/cespare/xxhash/v2"
)

// Measurement is one RSRP sample. Coordinates are decimal degrees as read.
type Measurement struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Operator string  `json:"operator"`
	RSRP     float64 `json:"rsrp"`
}

// Set is a read-only, ordered collection of measurements. It is safe for
// concurrent use because nothing mutates it after construction.
type Set struct {
	items       []Measurement
	fingerprint uint64
}

// NewSet copies items into a new Set, keeping their order.
func NewSet(items []Measurement) *Set {
	cp := make([]Measurement, len(items))
	copy(cp, items)
	return &Set{items: cp, fingerprint: fingerprint(cp)}
}

func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// All yields the measurements in load order.
func (s *Set) All() iter.Seq[Measurement] {
	return func(yield func(Measurement) bool) {
		if s == nil {
			return
		}
		for _, m := range s.items {
			if !yield(m) {
				return
			}
		}
	}
}

// Fingerprint identifies the loaded content; equal sets share a fingerprint.
func (s *Set) Fingerprint() uint64 {
	if s == nil {
		return 0
	}
	return s.fingerprint
}

func fingerprint(items []Measurement) uint64 {
	d := xxhash.New()
	var buf [8]byte
	putFloat := func(f float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
		_, _ = d.Write(buf[:])
	}
	for _, m := range items {
		putFloat(m.Lat)
		putFloat(m.Lon)
		putFloat(m.RSRP)
		_, _ = d.WriteString(m.Operator)
		_, _ = d.Write([]byte{0})
	}
	return d.Sum64()
}
