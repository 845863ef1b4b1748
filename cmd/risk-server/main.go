package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mohammed-shakir/mosquito-risk/internal/cache"
	"github.com/mohammed-shakir/mosquito-risk/internal/cache/redisstore"
	"github.com/mohammed-shakir/mosquito-risk/internal/core/config"
	"github.com/mohammed-shakir/mosquito-risk/internal/core/health"
	"github.com/mohammed-shakir/mosquito-risk/internal/core/httpclient"
	"github.com/mohammed-shakir/mosquito-risk/internal/core/router"
	"github.com/mohammed-shakir/mosquito-risk/internal/core/server"
	"github.com/mohammed-shakir/mosquito-risk/internal/datasets"
	"github.com/mohammed-shakir/mosquito-risk/internal/drivers"
	"github.com/mohammed-shakir/mosquito-risk/internal/earthengine"
	"github.com/mohammed-shakir/mosquito-risk/internal/geocode"
	"github.com/mohammed-shakir/mosquito-risk/internal/layers"
	"github.com/mohammed-shakir/mosquito-risk/internal/logger"
	h3mapper "github.com/mohammed-shakir/mosquito-risk/internal/mapper/h3"
	"github.com/mohammed-shakir/mosquito-risk/internal/metrics"
	"github.com/mohammed-shakir/mosquito-risk/internal/queryevents"
	"github.com/mohammed-shakir/mosquito-risk/internal/ratelimit"
	"github.com/mohammed-shakir/mosquito-risk/internal/regions"
	"github.com/mohammed-shakir/mosquito-risk/internal/risk"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func run() int {
	cfg := config.FromEnv()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   envInt("LOG_SAMPLE_N", 0),
		Service:   "mosquito-risk",
		Component: "risk-server",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	appLog.Info("starting risk server",
		"addr", cfg.Addr,
		"version", Version,
		"geocoder", cfg.Geocoder,
		"h3_res", cfg.H3Res)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sources, err := config.LoadSources(cfg.SourcesPath, cfg.SourcesAuthPath)
	if err != nil {
		appLog.Error("failed to load sources", "path", cfg.SourcesPath, "err", err)
		return 1
	}

	mp := metrics.Init(metrics.Config{
		Enabled: cfg.MetricsEnabled,
		Addr:    cfg.MetricsAddr,
		Path:    "/metrics",
		Build: metrics.BuildInfo{
			Version:   Version,
			Revision:  os.Getenv("BUILD_REVISION"),
			Branch:    os.Getenv("BUILD_BRANCH"),
			BuildDate: os.Getenv("BUILD_DATE"),
		},
	})
	if cfg.MetricsEnabled {
		serveMetrics(ctx, cfg.MetricsAddr, mp.Handler())
	}

	ready := map[string]health.Pinger{}
	var shared cache.Shared
	if cfg.RedisAddr != "" {
		rc, err := redisstore.New(ctx, cfg.RedisAddr,
			redisstore.WithReadTimeout(cfg.CacheOpTimeout),
			redisstore.WithWriteTimeout(cfg.CacheOpTimeout))
		if err != nil {
			appLog.Warn("redis unavailable; using in-process caches only", "addr", cfg.RedisAddr, "err", err)
		} else {
			defer func() { _ = rc.Close() }()
			shared = rc
			ready["redis"] = rc
		}
	}

	outbound := httpclient.NewOutbound(cfg.EETimeout)

	var geo geocode.Geocoder = geocode.Stub{}
	if cfg.Geocoder != "stub" {
		n, err := geocode.NewNominatim(cfg.GeocoderURL,
			geocode.WithHTTPClient(outbound),
			geocode.WithUserAgent(cfg.GeocoderUserAgent),
			geocode.WithRate(cfg.GeocoderRPS),
			geocode.WithTimeout(cfg.GeocodeTimeout),
			geocode.WithLogger(appLog))
		if err != nil {
			appLog.Error("failed to initialize geocoder", "err", err)
			return 1
		}
		geo = n
	}
	geo = geocode.NewCached(geo, cfg.GeocodeCacheTTL, cfg.GeocodeCacheSize, shared, appLog)

	ee, err := earthengine.New(earthengine.Config{
		APIURL: cfg.EEAPIURL,
		Credentials: earthengine.Credentials{
			Project: sources.GoogleEarthEngine.ProjectID,
			Token:   sources.GoogleEarthEngine.Token,
		},
		Timeout:    cfg.EETimeout,
		HTTPClient: outbound,
		Logger:     appLog,
	})
	if err != nil {
		appLog.Error("failed to initialize earth engine client", "err", err)
		return 1
	}
	tiler := earthengine.NewCachedTiler(ee, cfg.TileCacheTTL, cfg.TileCacheSize, shared, appLog)

	var sink queryevents.Sink = queryevents.Nop{}
	if cfg.QueryEvents.Enabled {
		pub, err := queryevents.NewPublisher(splitCSV(cfg.QueryEvents.Brokers), cfg.QueryEvents.Topic, cfg.QueryEvents.Queue, appLog)
		if err != nil {
			appLog.Warn("query events disabled", "err", err)
		} else {
			defer func() {
				if err := pub.Close(); err != nil {
					appLog.Warn("query events close", "err", err)
				}
			}()
			sink = pub
		}
	}

	dsCache := &datasets.Cache{Dir: cfg.CacheDir, Client: httpclient.NewOutbound(5 * time.Minute), Logger: appLog}
	region := regions.NewDefault(sources.Datasets, dsCache, cfg.DefaultRegionLabel, appLog)
	sets := layers.ImageSetsFrom(sources.EEImageSets)
	mapper := h3mapper.New(cfg.H3Res)

	riskSvc := risk.NewService(geo, tiler, region, sets,
		risk.WithMapper(mapper),
		risk.WithEvents(sink),
		risk.WithLogger(appLog))
	driversSvc := drivers.NewService(geo, tiler, sets,
		drivers.WithMapper(mapper),
		drivers.WithEvents(sink),
		drivers.WithLogger(appLog))

	limiter := ratelimit.New(cfg.RateLimitRPM)
	limiter.StartJanitor(ctx, time.Minute)

	handler := server.NewHandler(cfg, appLog, server.Deps{
		Handlers: router.New(riskSvc, driversSvc, appLog),
		Limiter:  limiter,
		Metrics:  mp.Handler(),
		Ready:    ready,
	})

	if err := server.Run(ctx, cfg, appLog, handler); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

func serveMetrics(ctx context.Context, addr string, h http.Handler) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Printf("metrics: listening on %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics server exited: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("metrics: shutdown error: %v", err)
		}
	}()
}

func splitCSV(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
