package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mohammed-shakir/signal-hexgrid/internal/core/config"
	"github.com/mohammed-shakir/signal-hexgrid/internal/core/model"
	"github.com/mohammed-shakir/signal-hexgrid/internal/core/observability"
	"github.com/mohammed-shakir/signal-hexgrid/internal/hexgrid"
)

const Route = "/api/generate-hexgrid"

var ErrInvalidInput = errors.New("invalid input")

// receives validated grid queries and serves them
type GridHandler interface {
	HandleGrid(ctx context.Context, w http.ResponseWriter, r *http.Request, q hexgrid.Query)
}

// validates the request body and calls the handler
func HandleGenerate(logger *slog.Logger, cfg config.Config, h GridHandler) http.HandlerFunc {
	def, err := hexgrid.ParseMatchMode(cfg.DefaultMatchMode)
	if err != nil {
		logger.Warn("bad default match mode, using global", "mode", cfg.DefaultMatchMode)
		def = hexgrid.MatchGlobal
	}

	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}

		body := io.Reader(r.Body)
		if cfg.MaxBodyBytes > 0 {
			body = http.MaxBytesReader(sw, r.Body, cfg.MaxBodyBytes)
		}

		q, err := ParseGridRequest(body, def)
		if err != nil {
			status := http.StatusBadRequest
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				status = http.StatusRequestEntityTooLarge
			}
			logger.LogAttrs(r.Context(), slog.LevelDebug, "rejected request", slog.String("err", err.Error()))
			observability.IncRejected("invalid_input")
			WriteError(sw, status, err.Error())
			observability.ObserveHTTP(r.Method, Route, status, time.Since(start).Seconds())
			return
		}

		h.HandleGrid(r.Context(), sw, r, q)
		observability.ObserveHTTP(r.Method, Route, sw.code, time.Since(start).Seconds())
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// WriteError writes {"error": msg} with the given status.
func WriteError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{msg})
}

type gridRequest struct {
	Lat       *float64 `json:"lat"`
	Lon       *float64 `json:"lon"`
	Width     *float64 `json:"width"`
	Height    *float64 `json:"height"`
	HexSize   *float64 `json:"hex_size"`
	UserLat   *float64 `json:"user_lat"`
	UserLon   *float64 `json:"user_lon"`
	Network   string   `json:"network"`
	Operator  string   `json:"operator"`
	MatchMode string   `json:"match_mode"`
}

// ParseGridRequest decodes and validates a generate request body. An absent
// match_mode selects def.
func ParseGridRequest(body io.Reader, def hexgrid.MatchMode) (hexgrid.Query, error) {
	var req gridRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var typeErr *json.UnmarshalTypeError
		var tooBig *http.MaxBytesError
		switch {
		case errors.As(err, &tooBig):
			return hexgrid.Query{}, fmt.Errorf("%w: request body too large: %w", ErrInvalidInput, err)
		case errors.As(err, &typeErr) && typeErr.Field != "":
			return hexgrid.Query{}, fmt.Errorf("%w: field %s has the wrong type", ErrInvalidInput, typeErr.Field)
		default:
			return hexgrid.Query{}, fmt.Errorf("%w: malformed JSON body: %w", ErrInvalidInput, err)
		}
	}

	required := []struct {
		name string
		v    *float64
	}{
		{"lat", req.Lat},
		{"lon", req.Lon},
		{"width", req.Width},
		{"height", req.Height},
		{"hex_size", req.HexSize},
		{"user_lat", req.UserLat},
		{"user_lon", req.UserLon},
	}
	for _, f := range required {
		if f.v == nil {
			return hexgrid.Query{}, fmt.Errorf("%w: missing required field: %s", ErrInvalidInput, f.name)
		}
	}

	for _, c := range []struct {
		name     string
		lat, lon float64
	}{
		{"lat/lon", *req.Lat, *req.Lon},
		{"user_lat/user_lon", *req.UserLat, *req.UserLon},
	} {
		if c.lat < -90 || c.lat > 90 {
			return hexgrid.Query{}, fmt.Errorf("%w: %s latitude must be in [-90,90]", ErrInvalidInput, c.name)
		}
		if c.lon < -180 || c.lon > 180 {
			return hexgrid.Query{}, fmt.Errorf("%w: %s longitude must be in [-180,180]", ErrInvalidInput, c.name)
		}
	}
	if *req.Width < 0 || *req.Height < 0 || *req.HexSize < 0 {
		return hexgrid.Query{}, fmt.Errorf("%w: width, height and hex_size must not be negative", ErrInvalidInput)
	}

	mode := def
	if req.MatchMode != "" {
		m, err := hexgrid.ParseMatchMode(req.MatchMode)
		if err != nil {
			return hexgrid.Query{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		mode = m
	}

	return hexgrid.Query{
		Center:       model.Point{Lat: *req.Lat, Lon: *req.Lon},
		AreaWidthKm:  *req.Width,
		AreaHeightKm: *req.Height,
		HexSizeKm:    *req.HexSize,
		User:         model.Point{Lat: *req.UserLat, Lon: *req.UserLon},
		Network:      req.Network,
		Operator:     req.Operator,
		Mode:         mode,
	}, nil
}
