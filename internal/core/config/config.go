package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type QueryEventsCfg struct {
	Enabled bool
	Brokers string
	Topic   string
	Queue   int
}

type Config struct {
	Addr               string
	LogLevel           string
	LogConsole         bool
	MetricsEnabled     bool
	MetricsAddr        string
	RateLimitRPM       int
	RateLimitKeyHeader string
	TrustProxy         bool
	CORSOrigins        []string

	Geocoder          string
	GeocoderURL       string
	GeocoderUserAgent string
	GeocoderRPS       float64
	GeocodeTimeout    time.Duration
	GeocodeCacheTTL   time.Duration
	GeocodeCacheSize  int

	EEAPIURL      string
	EETimeout     time.Duration
	TileCacheTTL  time.Duration
	TileCacheSize int
	H3Res         int

	RedisAddr      string
	CacheOpTimeout time.Duration

	SourcesPath        string
	SourcesAuthPath    string
	CacheDir           string
	DefaultRegionLabel string

	QueryEvents QueryEventsCfg
}

func FromEnv() Config {
	res := getint("H3_RES", 7)
	if res < 0 || res > 15 {
		res = 7
	}

	return Config{
		Addr:               getenv("ADDR", ":8000"),
		LogLevel:           getenv("LOG_LEVEL", "info"),
		LogConsole:         getbool("LOG_CONSOLE", false),
		MetricsEnabled:     getbool("METRICS_ENABLED", false),
		MetricsAddr:        getenv("METRICS_ADDR", ":9100"),
		RateLimitRPM:       getint("RATE_LIMIT_RPM", 120),
		RateLimitKeyHeader: getenv("RATE_LIMIT_KEY_HEADER", ""),
		TrustProxy:         getbool("TRUST_PROXY", false),
		CORSOrigins:        parseList(getenv("CORS_ORIGINS", "http://localhost:5173,http://127.0.0.1:5173")),

		Geocoder:          strings.ToLower(getenv("GEOCODER", "nominatim")),
		GeocoderURL:       getenv("GEOCODER_URL", "https://nominatim.openstreetmap.org"),
		GeocoderUserAgent: getenv("GEOCODER_USER_AGENT", "mosquito-risk/1.0"),
		GeocoderRPS:       getfloat("GEOCODER_RPS", 1),
		GeocodeTimeout:    getduration("GEOCODE_TIMEOUT", 10*time.Second),
		GeocodeCacheTTL:   getduration("GEOCODE_CACHE_TTL", 24*time.Hour),
		GeocodeCacheSize:  getint("GEOCODE_CACHE_SIZE", 256),

		EEAPIURL:      getenv("EE_API_URL", "https://earthengine.googleapis.com"),
		EETimeout:     getduration("EE_TIMEOUT", 30*time.Second),
		TileCacheTTL:  getduration("TILE_CACHE_TTL", 30*time.Minute),
		TileCacheSize: getint("TILE_CACHE_SIZE", 128),
		H3Res:         res,

		RedisAddr:      getenv("REDIS_ADDR", ""),
		CacheOpTimeout: getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),

		SourcesPath:        getenv("SOURCES_PATH", "resources/sources.yaml"),
		SourcesAuthPath:    getenv("SOURCES_AUTH_PATH", "resources/sources.local.yaml"),
		CacheDir:           getenv("CACHE_DIR", ".cache"),
		DefaultRegionLabel: getenv("DEFAULT_REGION_LABEL", "Florida"),

		QueryEvents: QueryEventsCfg{
			Enabled: getbool("QUERY_EVENTS_ENABLED", false),
			Brokers: getenv("KAFKA_BROKERS", "localhost:9092"),
			Topic:   getenv("QUERY_EVENTS_TOPIC", "risk-queries"),
			Queue:   getint("QUERY_EVENTS_QUEUE", 1024),
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
		if n, err := strconv.Atoi(v); err == nil {
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
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// parse "a, b,,c" into [a b c]
func parseList(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
