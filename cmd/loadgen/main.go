package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"github.com/mohammed-shakir/signal-hexgrid/internal/core/httpclient"
	"github.com/mohammed-shakir/signal-hexgrid/internal/geodesy"
)

func getenv(key, def string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return def
}

type request struct {
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	HexSize   float64 `json:"hex_size"`
	UserLat   float64 `json:"user_lat"`
	UserLon   float64 `json:"user_lon"`
	Network   string  `json:"network"`
	Operator  string  `json:"operator"`
	MatchMode string  `json:"match_mode,omitempty"`
}

type result struct {
	status  int
	cache   string
	latency time.Duration
	err     error
}

type options struct {
	target    string
	n         int
	workers   int
	lat, lon  float64
	jitterKm  float64
	sizeKm    float64
	hexKm     float64
	operators []string
	mode      string
	repeat    float64
}

// randomRequest jitters the center and user point around the base location.
// With probability repeat it reuses the base point so cache hits are
// exercised.
func randomRequest(o options, rng *rand.Rand) request {
	lat, lon := o.lat, o.lon
	if rng.Float64() >= o.repeat {
		latDeg, lonDeg := geodesy.DegreesPerKm(o.lat)
		lat += (rng.Float64()*2 - 1) * o.jitterKm * latDeg
		lon += (rng.Float64()*2 - 1) * o.jitterKm * lonDeg
	}
	return request{
		Lat: lat, Lon: lon,
		Width: o.sizeKm, Height: o.sizeKm, HexSize: o.hexKm,
		UserLat: lat, UserLon: lon,
		Network:   "4G",
		Operator:  o.operators[rng.IntN(len(o.operators))],
		MatchMode: o.mode,
	}
}

func fire(ctx context.Context, client *http.Client, url string, body []byte) result {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return result{err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return result{err: err, latency: time.Since(start)}
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	return result{status: resp.StatusCode, cache: resp.Header.Get("X-Cache"), latency: time.Since(start)}
}

func runLoad(ctx context.Context, o options) []result {
	url := strings.TrimRight(o.target, "/") + "/api/generate-hexgrid"
	client := httpclient.NewOutbound(o.workers, 30*time.Second)

	jobs := make(chan []byte)
	out := make(chan result, o.workers)
	var wg sync.WaitGroup
	for range o.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for body := range jobs {
				out <- fire(ctx, client, url, body)
			}
		}()
	}

	go func() {
		defer close(jobs)
		rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 7))
		for range o.n {
			b, _ := json.Marshal(randomRequest(o, rng))
			select {
			case jobs <- b:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(out)
	}()

	results := make([]result, 0, o.n)
	for r := range out {
		results = append(results, r)
	}
	return results
}

func report(results []result, elapsed time.Duration) {
	statuses := map[int]int{}
	caches := map[string]int{}
	errs := 0
	lats := make([]time.Duration, 0, len(results))
	for _, r := range results {
		if r.err != nil {
			errs++
			continue
		}
		statuses[r.status]++
		if r.cache != "" {
			caches[r.cache]++
		}
		lats = append(lats, r.latency)
	}
	slices.Sort(lats)
	pct := func(p float64) time.Duration {
		if len(lats) == 0 {
			return 0
		}
		return lats[int(p*float64(len(lats)-1))]
	}

	fmt.Printf("requests=%d errors=%d elapsed=%s rps=%.1f\n",
		len(results), errs, elapsed.Round(time.Millisecond), float64(len(results))/elapsed.Seconds())
	fmt.Printf("status=%v cache=%v\n", statuses, caches)
	fmt.Printf("p50=%s p95=%s p99=%s\n", pct(0.50), pct(0.95), pct(0.99))
}

// tailEvents prints query events published by the server until ctx ends.
func tailEvents(ctx context.Context, brokers []string, topic string) error {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	consumer, err := sarama.NewConsumer(brokers, cfg)
	if err != nil {
		return fmt.Errorf("consumer create: %w", err)
	}
	defer func() { _ = consumer.Close() }()

	parts, err := consumer.Partitions(topic)
	if err != nil {
		return fmt.Errorf("list partitions: %w", err)
	}

	msgs := make(chan *sarama.ConsumerMessage)
	for _, p := range parts {
		pc, err := consumer.ConsumePartition(topic, p, sarama.OffsetNewest)
		if err != nil {
			return fmt.Errorf("consume partition %d: %w", p, err)
		}
		defer func() { _ = pc.Close() }()
		go func() {
			for m := range pc.Messages() {
				select {
				case msgs <- m:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	for {
		select {
		case m := <-msgs:
			fmt.Printf("event key=%s %s\n", m.Key, m.Value)
		case <-ctx.Done():
			return nil
		}
	}
}

func main() {
	var o options
	var operators string
	tail := flag.Bool("tail-events", false, "print query events from Kafka instead of generating load")
	flag.StringVar(&o.target, "target", getenv("TARGET", "http://localhost:5000"), "server base URL")
	flag.IntVar(&o.n, "n", 200, "number of requests")
	flag.IntVar(&o.workers, "c", 8, "concurrent workers")
	flag.Float64Var(&o.lat, "lat", 52.62, "base latitude")
	flag.Float64Var(&o.lon, "lon", 1.29, "base longitude")
	flag.Float64Var(&o.jitterKm, "jitter", 2, "center jitter in km")
	flag.Float64Var(&o.sizeKm, "size", 1, "area width and height in km")
	flag.Float64Var(&o.hexKm, "hex", 0.05, "hex size in km")
	flag.StringVar(&operators, "operators", "EE,O2,Vodafone,Three", "comma-separated operators")
	flag.StringVar(&o.mode, "mode", "", "match mode (global|per_hex, empty for server default)")
	flag.Float64Var(&o.repeat, "repeat", 0.3, "fraction of requests reusing the base point")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *tail {
		brokers := strings.Split(getenv("KAFKA_BROKERS", "localhost:9092"), ",")
		topic := getenv("KAFKA_TOPIC", "hexgrid-queries")
		if err := tailEvents(ctx, brokers, topic); err != nil {
			fmt.Println("Kafka error:", err)
			os.Exit(1)
		}
		return
	}

	for _, op := range strings.Split(operators, ",") {
		if op = strings.TrimSpace(op); op != "" {
			o.operators = append(o.operators, op)
		}
	}
	if len(o.operators) == 0 || o.n <= 0 || o.workers <= 0 {
		fmt.Println("need at least one operator, n > 0 and c > 0")
		os.Exit(2)
	}

	start := time.Now()
	results := runLoad(ctx, o)
	report(results, time.Since(start))
}
