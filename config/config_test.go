package config

import (
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Run("loads with defaults when no env vars set", func(t *testing.T) {
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}

		if cfg.Server.Port != "8080" {
			t.Errorf("Server.Port = %s, want 8080", cfg.Server.Port)
		}
		if cfg.Catalog.BaseURL != "https://api-sg.aliexpress.com/sync" {
			t.Errorf("Catalog.BaseURL = %s, want https://api-sg.aliexpress.com/sync", cfg.Catalog.BaseURL)
		}
		if cfg.Catalog.PageSize != 40 {
			t.Errorf("Catalog.PageSize = %d, want 40", cfg.Catalog.PageSize)
		}
		if cfg.Cache.Type != CacheMemory {
			t.Errorf("Cache.Type = %s, want memory", cfg.Cache.Type)
		}
		if cfg.Cache.PositiveTTL != 12*time.Hour {
			t.Errorf("Cache.PositiveTTL = %v, want 12h", cfg.Cache.PositiveTTL)
		}
		if cfg.Cache.NegativeTTL != 24*time.Hour {
			t.Errorf("Cache.NegativeTTL = %v, want 24h", cfg.Cache.NegativeTTL)
		}
		if cfg.Fingerprint.TTL != 7*24*time.Hour {
			t.Errorf("Fingerprint.TTL = %v, want 168h", cfg.Fingerprint.TTL)
		}
		if cfg.Matching.FastPassThreshold != 88 || cfg.Matching.VerifyThreshold != 70 {
			t.Errorf("thresholds = %v/%v, want 88/70", cfg.Matching.FastPassThreshold, cfg.Matching.VerifyThreshold)
		}
		if cfg.Matching.MinPriceRatio != 0.3 {
			t.Errorf("Matching.MinPriceRatio = %v, want 0.3", cfg.Matching.MinPriceRatio)
		}
		if cfg.Matching.CompareTimeout != 60*time.Second {
			t.Errorf("Matching.CompareTimeout = %v, want 60s", cfg.Matching.CompareTimeout)
		}
		if cfg.CatalogConfigured() {
			t.Errorf("CatalogConfigured() = true, want false without credentials")
		}
	})

	t.Run("loads custom values from environment variables", func(t *testing.T) {
		t.Setenv("CHEAPMATCH_SERVER_PORT", "9090")
		t.Setenv("CHEAPMATCH_CATALOG_APP_KEY", "key")
		t.Setenv("CHEAPMATCH_CATALOG_APP_SECRET", "secret")
		t.Setenv("CHEAPMATCH_CATALOG_TRACKING_ID", "tracking")
		t.Setenv("CHEAPMATCH_CACHE_TYPE", "redis")
		t.Setenv("CHEAPMATCH_CACHE_REDIS_URL", "redis://localhost:6379")
		t.Setenv("CHEAPMATCH_CACHE_POSITIVE_TTL", "6h")
		t.Setenv("CHEAPMATCH_MATCHING_CANDIDATE_LIMIT", "10")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}

		if cfg.Server.Port != "9090" {
			t.Errorf("Server.Port = %s, want 9090", cfg.Server.Port)
		}
		if !cfg.CatalogConfigured() {
			t.Errorf("CatalogConfigured() = false, want true")
		}
		if cfg.Cache.Type != CacheRedis {
			t.Errorf("Cache.Type = %s, want redis", cfg.Cache.Type)
		}
		if cfg.Cache.RedisURL != "redis://localhost:6379" {
			t.Errorf("Cache.RedisURL = %s, want redis://localhost:6379", cfg.Cache.RedisURL)
		}
		if cfg.Cache.PositiveTTL != 6*time.Hour {
			t.Errorf("Cache.PositiveTTL = %v, want 6h", cfg.Cache.PositiveTTL)
		}
		if cfg.Matching.CandidateLimit != 10 {
			t.Errorf("Matching.CandidateLimit = %d, want 10", cfg.Matching.CandidateLimit)
		}
	})

	t.Run("fails when redis cache has no URL", func(t *testing.T) {
		t.Setenv("CHEAPMATCH_CACHE_TYPE", "redis")

		if _, err := Load(); err == nil {
			t.Error("Load() error = nil, want error for missing redis URL")
		}
	})

	t.Run("fails when postgres cache has no URL", func(t *testing.T) {
		t.Setenv("CHEAPMATCH_CACHE_TYPE", "postgres")

		if _, err := Load(); err == nil {
			t.Error("Load() error = nil, want error for missing database URL")
		}
	})

	t.Run("fails with invalid cache type", func(t *testing.T) {
		t.Setenv("CHEAPMATCH_CACHE_TYPE", "memcached")

		if _, err := Load(); err == nil {
			t.Error("Load() error = nil, want error for invalid cache type")
		}
	})

	t.Run("fails when verify threshold exceeds fast-pass threshold", func(t *testing.T) {
		t.Setenv("CHEAPMATCH_MATCHING_VERIFY_THRESHOLD", "95")

		if _, err := Load(); err == nil {
			t.Error("Load() error = nil, want error for inverted thresholds")
		}
	})
}
