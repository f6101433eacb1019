package health

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

type ReadinessReporter interface {
	Readiness() (ready bool, measurements int)
}

func Readiness(rr ReadinessReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		type resp struct {
			Status       string `json:"status"`
			Measurements int    `json:"measurements"`
		}
		ready, n := rr.Readiness()
		out := resp{Status: "not_ready"}
		if ready {
			out.Status = "ready"
			out.Measurements = n
		}
		w.Header().Set("Content-Type", "application/json")
		if !ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}

// Dataset reports ready once MarkLoaded has been called.
type Dataset struct {
	n atomic.Int64
}

func (d *Dataset) MarkLoaded(measurements int) {
	// store n+1 so that an empty set still reads as loaded
	d.n.Store(int64(measurements) + 1)
}

func (d *Dataset) Readiness() (bool, int) {
	v := d.n.Load()
	if v == 0 {
		return false, 0
	}
	return true, int(v - 1)
}
