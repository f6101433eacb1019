package router

import (
	"errors"
	"strings"
	"testing"

	"github.com/mohammed-shakir/signal-hexgrid/internal/hexgrid"
)

const validBody = `{"lat":52.62,"lon":1.29,"width":1,"height":1,"hex_size":0.05,` +
	`"user_lat":52.63,"user_lon":1.3,"network":"4G","operator":"EE"}`

func TestParseGridRequest_Valid(t *testing.T) {
	q, err := ParseGridRequest(strings.NewReader(validBody), hexgrid.MatchGlobal)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if q.Center.Lat != 52.62 || q.Center.Lon != 1.29 || q.User.Lat != 52.63 || q.User.Lon != 1.3 {
		t.Fatalf("points not decoded: %+v", q)
	}
	if q.AreaWidthKm != 1 || q.AreaHeightKm != 1 || q.HexSizeKm != 0.05 {
		t.Fatalf("sizes not decoded: %+v", q)
	}
	if q.Operator != "EE" || q.Network != "4G" || q.Mode != hexgrid.MatchGlobal {
		t.Fatalf("strings not decoded: %+v", q)
	}
}

func TestParseGridRequest_ModeDefaultAndOverride(t *testing.T) {
	q, err := ParseGridRequest(strings.NewReader(validBody), hexgrid.MatchPerHex)
	if err != nil || q.Mode != hexgrid.MatchPerHex {
		t.Fatalf("default mode not applied: %v %v", q.Mode, err)
	}

	body := strings.Replace(validBody, `"operator":"EE"`, `"operator":"EE","match_mode":"GLOBAL"`, 1)
	q, err = ParseGridRequest(strings.NewReader(body), hexgrid.MatchPerHex)
	if err != nil || q.Mode != hexgrid.MatchGlobal {
		t.Fatalf("override not applied: %v %v", q.Mode, err)
	}

	body = strings.Replace(validBody, `"operator":"EE"`, `"operator":"EE","match_mode":"closest"`, 1)
	if _, err := ParseGridRequest(strings.NewReader(body), hexgrid.MatchGlobal); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("unknown mode err=%v want ErrInvalidInput", err)
	}
}

func TestParseGridRequest_OptionalStringsMayBeAbsent(t *testing.T) {
	body := `{"lat":0,"lon":0,"width":0,"height":0,"hex_size":0,"user_lat":0,"user_lon":0}`
	q, err := ParseGridRequest(strings.NewReader(body), hexgrid.MatchGlobal)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if q.Operator != "" || q.Network != "" {
		t.Fatalf("expected empty strings, got %+v", q)
	}
}

func TestParseGridRequest_MissingEachNumericField(t *testing.T) {
	for _, field := range []string{"lat", "lon", "width", "height", "hex_size", "user_lat", "user_lon"} {
		for _, variant := range []string{"absent", "null"} {
			body := dropField(validBody, field, variant == "null")
			_, err := ParseGridRequest(strings.NewReader(body), hexgrid.MatchGlobal)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("%s %s: err=%v want ErrInvalidInput", field, variant, err)
			}
			if !strings.Contains(err.Error(), field) {
				t.Fatalf("%s %s: error %q does not name the field", field, variant, err)
			}
		}
	}
}

func TestParseGridRequest_Rejects(t *testing.T) {
	cases := map[string]string{
		"malformed":        `{"lat":`,
		"empty":            ``,
		"string number":    strings.Replace(validBody, `"lat":52.62`, `"lat":"52.62"`, 1),
		"lat out of range": strings.Replace(validBody, `"lat":52.62`, `"lat":91`, 1),
		"lon out of range": strings.Replace(validBody, `"lon":1.29`, `"lon":-181`, 1),
		"user lat range":   strings.Replace(validBody, `"user_lat":52.63`, `"user_lat":-90.5`, 1),
		"negative width":   strings.Replace(validBody, `"width":1`, `"width":-1`, 1),
		"negative hex":     strings.Replace(validBody, `"hex_size":0.05`, `"hex_size":-0.05`, 1),
		"operator number":  strings.Replace(validBody, `"operator":"EE"`, `"operator":7`, 1),
	}
	for name, body := range cases {
		if _, err := ParseGridRequest(strings.NewReader(body), hexgrid.MatchGlobal); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%s: err=%v want ErrInvalidInput", name, err)
		}
	}
}

// dropField removes "field":value from validBody, or nulls it.
func dropField(body, field string, null bool) string {
	key := `"` + field + `":`
	i := strings.Index(body, key)
	j := i + len(key)
	for j < len(body) && body[j] != ',' && body[j] != '}' {
		j++
	}
	if null {
		return body[:i] + key + "null" + body[j:]
	}
	if body[j] == ',' {
		j++
	}
	return body[:i] + body[j:]
}
