package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/cheapmatch/backend/config"
	httpDelivery "github.com/cheapmatch/backend/internal/delivery/http"
	"github.com/cheapmatch/backend/internal/domain"
	"github.com/cheapmatch/backend/internal/infrastructure/aliexpress"
	"github.com/cheapmatch/backend/internal/infrastructure/cache"
	"github.com/cheapmatch/backend/internal/infrastructure/gemini"
	"github.com/cheapmatch/backend/internal/infrastructure/imagehash"
	"github.com/cheapmatch/backend/internal/infrastructure/postgres"
	"github.com/cheapmatch/backend/internal/usecase"
)

func main() {
	// .env is optional; real environment variables win
	if err := godotenv.Load(); err == nil {
		log.Printf("Loaded environment from .env")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting CheapMatch Backend v1.0.0")
	log.Printf("Environment: %s", cfg.Server.Environment)
	log.Printf("Port: %s", cfg.Server.Port)
	log.Printf("Cache Type: %s (positive %s, negative %s)", cfg.Cache.Type, cfg.Cache.PositiveTTL, cfg.Cache.NegativeTTL)

	ctx := context.Background()

	// Result cache
	store, closeStore, err := newResultStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize result cache: %v", err)
	}
	defer closeStore()

	// Catalog
	credentials := domain.CatalogCredentials{
		AppKey:     cfg.Catalog.AppKey,
		AppSecret:  cfg.Catalog.AppSecret,
		TrackingID: cfg.Catalog.TrackingID,
	}
	catalogClient := aliexpress.NewClient(credentials, cfg.Catalog.BaseURL)
	catalogClient.SetRateLimit(cfg.Catalog.RatePerSecond, cfg.Catalog.Burst)
	catalogClient.SetTimeout(cfg.Catalog.Timeout)
	if cfg.Server.Environment == "development" {
		catalogClient.SetDebug(true)
		log.Printf("Catalog client debug mode enabled")
	}

	if cfg.CatalogConfigured() {
		log.Printf("Catalog API configured: %s (app key: %s...)", cfg.Catalog.BaseURL, mask(cfg.Catalog.AppKey))
	} else {
		log.Printf("WARNING: Catalog credentials NOT CONFIGURED - every compare will return no match")
	}

	// Language model collaborators
	geminiClient, err := gemini.NewClient(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
	if err != nil {
		log.Fatalf("Failed to initialize Gemini client: %v", err)
	}
	defer geminiClient.Close()

	imageFetcher := imagehash.NewFetcher(cfg.Fingerprint.Timeout)

	collaborators := usecase.Collaborators{Catalog: catalogClient}
	if geminiClient.Configured() {
		collaborators.Keywords = gemini.NewKeywordExtractor(geminiClient)
		collaborators.Semantic = gemini.NewSemanticVerifier(geminiClient)
		collaborators.Visual = gemini.NewVisualVerifier(geminiClient, imageFetcher)
		log.Printf("Gemini configured: model=%s", cfg.Gemini.Model)
	} else {
		log.Printf("WARNING: Gemini API key NOT CONFIGURED - keyword extraction and verification disabled")
	}

	// Matching pipeline
	fingerprints := cache.NewFingerprintCache(imageFetcher, cfg.Fingerprint.Capacity, cfg.Fingerprint.TTL)

	filter := usecase.NewCandidateFilter(usecase.FilterConfig{
		CandidateLimit: cfg.Matching.CandidateLimit,
		MinPriceRatio:  cfg.Matching.MinPriceRatio,
	})
	scorer := usecase.NewLocalScorer(fingerprints, usecase.ScorerConfig{
		FastPassThreshold:  cfg.Matching.FastPassThreshold,
		VerifyThreshold:    cfg.Matching.VerifyThreshold,
		EnableDebugLogging: cfg.Matching.EnableDebugLogging,
	})
	engine := usecase.NewMatchEngine(collaborators, filter, scorer, usecase.EngineConfig{
		Credentials:           credentials,
		SearchPageSize:        cfg.Catalog.PageSize,
		KeywordTitleLength:    cfg.Matching.KeywordTitleLength,
		MinVerifierConfidence: cfg.Matching.MinVerifierConfidence,
		CatalogTimeout:        cfg.Catalog.Timeout,
		KeywordTimeout:        cfg.Gemini.Timeout,
		VerifierTimeout:       cfg.Gemini.Timeout,
		EnableDebugLogging:    cfg.Matching.EnableDebugLogging,
	})

	log.Printf("Matching: limit=%d, min ratio=%.2f, fast-pass=%.0f, verify=%.0f, debug=%v",
		cfg.Matching.CandidateLimit,
		cfg.Matching.MinPriceRatio,
		cfg.Matching.FastPassThreshold,
		cfg.Matching.VerifyThreshold,
		cfg.Matching.EnableDebugLogging)

	compareService := usecase.NewCompareService(store, engine, catalogClient, usecase.CompareServiceConfig{
		PositiveTTL:        cfg.Cache.PositiveTTL,
		NegativeTTL:        cfg.Cache.NegativeTTL,
		RefreshTimeout:     cfg.Catalog.Timeout,
		CompareTimeout:     cfg.Matching.CompareTimeout,
		EnableDebugLogging: cfg.Matching.EnableDebugLogging,
	})

	handler := httpDelivery.NewHandler(compareService)
	router := httpDelivery.SetupRouter(cfg, handler)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
}

// newResultStore builds the configured result cache backend and its cleanup
func newResultStore(ctx context.Context, cfg *config.Config) (domain.ResultStore, func(), error) {
	switch cfg.Cache.Type {
	case config.CacheRedis:
		client, err := cache.NewRedisClient(ctx, cfg.Cache.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("Connected to Redis")
		return cache.NewRedisStore(client, cfg.Cache.Retention), func() { _ = client.Close() }, nil

	case config.CachePostgres:
		db, err := postgres.New(ctx, cfg.Cache.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := db.RunMigrations(cfg.Cache.DatabaseURL); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Printf("Connected to PostgreSQL, migrations applied")
		return postgres.NewStore(db), db.Close, nil

	default:
		store := cache.NewMemoryStore(cfg.Cache.Retention)
		return store, store.Close, nil
	}
}

// mask returns the first characters of a secret for logging
func mask(secret string) string {
	if len(secret) <= 4 {
		return "****"
	}
	return secret[:4]
}

func init() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.SetOutput(os.Stdout)
}
