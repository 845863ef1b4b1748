// Command depcheck probes the risk server's dependencies once and reports
// which are reachable.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/mosquito-risk/internal/cache/redisstore"
	"github.com/mohammed-shakir/mosquito-risk/internal/core/config"
	"github.com/mohammed-shakir/mosquito-risk/internal/earthengine"
	"github.com/mohammed-shakir/mosquito-risk/internal/geocode"
	h3mapper "github.com/mohammed-shakir/mosquito-risk/internal/mapper/h3"
)

func getenv(key, def string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return def
}

func checkRedis(ctx context.Context, addr string) error {
	if addr == "" {
		fmt.Println("redis: skipped (REDIS_ADDR empty)")
		return nil
	}
	c, err := redisstore.New(ctx, addr, redisstore.WithDialTimeout(2*time.Second))
	if err != nil {
		return fmt.Errorf("redis connect: %w", err)
	}
	defer func() { _ = c.Close() }()

	if err := c.Set(ctx, "depcheck", []byte("ok"), 30*time.Second); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	v, ok, err := c.Get(ctx, "depcheck")
	if err != nil {
		return fmt.Errorf("redis get: %w", err)
	}
	if !ok {
		return fmt.Errorf("redis get: key missing after set")
	}
	fmt.Println("redis: GET depcheck =", string(v))
	return nil
}

func checkGeocoder(ctx context.Context, cfg config.Config) error {
	g, err := geocode.NewNominatim(cfg.GeocoderURL,
		geocode.WithUserAgent(cfg.GeocoderUserAgent),
		geocode.WithTimeout(cfg.GeocodeTimeout))
	if err != nil {
		return err
	}
	res, err := g.Geocode(ctx, "Miami, FL")
	if err != nil {
		return fmt.Errorf("geocode: %w", err)
	}
	lng, lat, _ := res.Geometry.Point()
	fmt.Printf("geocoder: %q at %.4f,%.4f\n", res.Label, lat, lng)

	_, cell, err := h3mapper.Snap(lat, lng, cfg.H3Res)
	if err != nil {
		return fmt.Errorf("h3 snap: %w", err)
	}
	fmt.Printf("h3: res %d cell %s\n", cfg.H3Res, cell)
	return nil
}

func checkEarthEngine(ctx context.Context, cfg config.Config) error {
	src, err := config.LoadSources(cfg.SourcesPath, cfg.SourcesAuthPath)
	if err != nil {
		return fmt.Errorf("load sources: %w", err)
	}
	c, err := earthengine.New(earthengine.Config{
		APIURL: cfg.EEAPIURL,
		Credentials: earthengine.Credentials{
			Project: src.GoogleEarthEngine.ProjectID,
			Token:   src.GoogleEarthEngine.Token,
		},
	})
	if err != nil {
		return err
	}
	if err := c.Initialize(ctx); err != nil {
		return err
	}
	fmt.Printf("earthengine: project %s, %d image sets\n", src.GoogleEarthEngine.ProjectID, len(src.EEImageSets))
	return nil
}

func checkKafka(brokers []string, topic string) error {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	consumer, err := sarama.NewConsumer(brokers, cfg)
	if err != nil {
		return fmt.Errorf("consumer create: %w", err)
	}
	defer func() { _ = consumer.Close() }()

	pc, err := consumer.ConsumePartition(topic, 0, sarama.OffsetOldest)
	if err != nil {
		return fmt.Errorf("consume partition: %w", err)
	}
	defer func() { _ = pc.Close() }()

	select {
	case m := <-pc.Messages():
		fmt.Println("kafka: oldest query event:", string(m.Value))
	case <-time.After(5 * time.Second):
		fmt.Println("kafka: no query events yet (timeout)")
	}
	return nil
}

func checkServer(ctx context.Context, baseURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("get health: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health status %d: %s", resp.StatusCode, body)
	}
	fmt.Printf("server: %s (request id %s)\n", strings.TrimSpace(string(body)), resp.Header.Get("X-Request-ID"))
	return nil
}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg := config.FromEnv()
	failed := 0
	report := func(name string, err error) {
		if err != nil {
			failed++
			fmt.Printf("%s: FAILED: %v\n", name, err)
		}
	}

	report("redis", checkRedis(ctx, cfg.RedisAddr))
	report("geocoder", checkGeocoder(ctx, cfg))
	report("earthengine", checkEarthEngine(ctx, cfg))
	if cfg.QueryEvents.Enabled {
		report("kafka", checkKafka(strings.Split(cfg.QueryEvents.Brokers, ","), cfg.QueryEvents.Topic))
	}
	report("server", checkServer(ctx, getenv("RISK_URL", "http://localhost:8000")))

	if failed > 0 {
		fmt.Printf("%d check(s) failed\n", failed)
		os.Exit(1)
	}
	fmt.Println("All checks passed")
}
