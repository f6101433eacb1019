// Package keys derives cache keys for hex grid queries.
package keys

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/mohammed-shakir/signal-hexgrid/internal/hexgrid"
)

const prefix = "hexgrid:v1"

// Key identifies the response for q against the dataset with the given
// fingerprint. Fields the engine ignores (network) are left out and the
// operator is case-folded, so queries that must produce the same body share
// a key.
func Key(q hexgrid.Query, dataset uint64) string {
	mode := q.Mode
	if mode == "" {
		mode = hexgrid.MatchGlobal
	}
	canon := canonical(q, mode)
	return fmt.Sprintf("%s:%016x:%s:%016x", prefix, dataset, mode, xxhash.Sum64String(canon))
}

// Scope folds the engine settings that change a response body into the
// dataset fingerprint. Instances sharing a cache with different H3 resolution
// or default hex size then never read each other's grids. h3Res < 0 means no
// cell labels.
func Scope(dataset uint64, h3Res int, defaultHexKm float64) uint64 {
	if h3Res < 0 {
		h3Res = -1
	}
	var b strings.Builder
	b.WriteString(strconv.FormatUint(dataset, 16))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(h3Res))
	b.WriteByte('|')
	b.WriteString(strconv.FormatFloat(defaultHexKm, 'g', -1, 64))
	return xxhash.Sum64String(b.String())
}

func canonical(q hexgrid.Query, mode hexgrid.MatchMode) string {
	var b strings.Builder
	b.Grow(160)
	for _, f := range []float64{
		q.Center.Lat, q.Center.Lon,
		q.AreaWidthKm, q.AreaHeightKm, q.HexSizeKm,
		q.User.Lat, q.User.Lon,
	} {
		b.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
		b.WriteByte('|')
	}
	b.WriteString(string(mode))
	b.WriteByte('|')
	b.WriteString(strings.ToLower(q.Operator))
	return b.String()
}
