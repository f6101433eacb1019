package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type CacheCfg struct {
	Driver    string // none|lru|redis
	TTL       time.Duration
	LRUSize   int
	OpTimeout time.Duration
	Redis     RedisCfg
}

type RedisCfg struct {
	Addr         string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type EventsCfg struct {
	Enabled bool
	Brokers []string
	Topic   string
	Queue   int
}

type MetricsCfg struct {
	Enabled bool
	Addr    string
	Path    string
}

type Config struct {
	Addr             string
	LogLevel         string
	LogConsole       bool
	LogSampleN       int
	DataPath         string
	DefaultMatchMode string
	DefaultHexSizeKm float64
	MaxCells         int
	H3Res            int
	MaxBodyBytes     int64
	Cache            CacheCfg
	Events           EventsCfg
	Metrics          MetricsCfg
}

// FromEnv reads configuration from the environment. A .env file in the
// working directory is loaded first when present; real environment variables
// take precedence over it.
func FromEnv() Config {
	_ = godotenv.Load()

	addr := getenv("ADDR", "")
	if addr == "" {
		addr = ":" + getenv("PORT", "5000")
	}

	h3Res := getint("H3_RES", 9)
	if h3Res > 15 {
		h3Res = 15
	}

	return Config{
		Addr:             addr,
		LogLevel:         getenv("LOG_LEVEL", "info"),
		LogConsole:       getbool("LOG_CONSOLE", false),
		LogSampleN:       getint("LOG_SAMPLE_N", 0),
		DataPath:         getenv("DATA_PATH", "norwich_cleaned_data.csv"),
		DefaultMatchMode: strings.ToLower(getenv("DEFAULT_MATCH_MODE", "global")),
		DefaultHexSizeKm: getfloat("DEFAULT_HEX_SIZE_KM", 0.05),
		MaxCells:         getint("MAX_CELLS", 250000),
		H3Res:            h3Res,
		MaxBodyBytes:     int64(getint("MAX_BODY_BYTES", 1<<20)),
		Cache: CacheCfg{
			Driver:    strings.ToLower(getenv("CACHE_DRIVER", "none")),
			TTL:       getduration("CACHE_TTL", 60*time.Second),
			LRUSize:   getint("CACHE_LRU_SIZE", 1024),
			OpTimeout: getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),
			Redis: RedisCfg{
				Addr:         getenv("REDIS_ADDR", "localhost:6379"),
				PoolSize:     getint("REDIS_POOL_SIZE", 64),
				MinIdleConns: getint("REDIS_MIN_IDLE_CONNS", 4),
				DialTimeout:  getduration("REDIS_DIAL_TIMEOUT", 2*time.Second),
				ReadTimeout:  getduration("REDIS_READ_TIMEOUT", time.Second),
				WriteTimeout: getduration("REDIS_WRITE_TIMEOUT", time.Second),
			},
		},
		Events: EventsCfg{
			Enabled: getbool("EVENTS_ENABLED", false),
			Brokers: splitList(getenv("KAFKA_BROKERS", "localhost:9092")),
			Topic:   getenv("KAFKA_TOPIC", "hexgrid-queries"),
			Queue:   getint("EVENTS_QUEUE", 1024),
		},
		Metrics: MetricsCfg{
			Enabled: getbool("METRICS_ENABLED", false),
			Addr:    getenv("METRICS_ADDR", ":9090"),
			Path:    getenv("METRICS_PATH", "/metrics"),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	return def
}

// parse "a:9092, b:9092" into ["a:9092","b:9092"]
func splitList(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
