package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labelscan/backend/config"
	httpDelivery "github.com/labelscan/backend/internal/delivery/http"
	"github.com/labelscan/backend/internal/domain"
	"github.com/labelscan/backend/internal/infrastructure/ai"
	"github.com/labelscan/backend/internal/infrastructure/cache"
	"github.com/labelscan/backend/internal/infrastructure/ocr"
	"github.com/labelscan/backend/internal/infrastructure/registry"
	"github.com/labelscan/backend/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting LabelScan Backend v1.0.0")
	log.Printf("Environment: %s", cfg.Server.Environment)
	log.Printf("Port: %s", cfg.Server.Port)
	log.Printf("Registry: %s", cfg.Registry.BaseURL)

	debug := cfg.Server.Environment == "development" || cfg.Matching.EnableDebugLogging

	// Infrastructure
	registryClient := registry.NewClient(cfg.Registry.APIKey, cfg.Registry.BaseURL)
	registryClient.SetDebug(debug)

	engine := ocr.NewEngine(ocr.Config{
		APIKey:    cfg.OCR.APIKey,
		BaseURL:   cfg.OCR.BaseURL,
		Model:     cfg.OCR.Model,
		RateLimit: cfg.OCR.RateLimit,
	})
	engine.SetDebug(debug)

	aiClient := ai.NewClient(ai.Config{
		APIKey:    cfg.AI.APIKey,
		BaseURL:   cfg.AI.BaseURL,
		Model:     cfg.AI.Model,
		RateLimit: cfg.AI.RateLimit,
	})
	aiClient.SetDebug(debug)
	if aiClient.Configured() {
		log.Printf("AI parsing enabled (model: %s)", cfg.AI.Model)
	} else {
		log.Printf("AI parsing disabled: no credential configured, parser runs rules-only")
	}

	researchCache := cache.NewMemoryCache()
	defer researchCache.Stop()

	// Usecase layer
	matcher := usecase.NewMatcher(registryClient, usecase.MatcherConfig{
		MinConfidence:      cfg.Matching.MinConfidence,
		ResearchBaseURL:    cfg.Registry.BaseURL,
		EnableDebugLogging: debug,
	})

	loadCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	if err := matcher.Load(loadCtx); err != nil {
		cancel()
		log.Fatalf("Failed to load compound registry: %v", err)
	}
	cancel()

	if cfg.Registry.RefreshInterval > 0 {
		go refreshRegistry(matcher, cfg.Registry.RefreshInterval)
		log.Printf("Registry refresh enabled: every %s", cfg.Registry.RefreshInterval)
	}

	parser := usecase.NewIngredientParser(aiClient)
	parser.SetDebug(debug)

	analyzer := usecase.NewSafetyAnalyzer(domain.DefaultSafetyPolicy())
	analyzer.SetDebug(debug)

	scanner := usecase.NewScanner(engine, parser, matcher, analyzer)
	scanner.SetDebug(debug)

	researcher, err := usecase.NewResearcher(aiClient, researchCache, cfg.Cache.TTL)
	if err != nil {
		log.Fatalf("Failed to create researcher: %v", err)
	}
	researcher.SetDebug(debug)

	log.Printf("Matching: confidence=%.2f, debug=%v", cfg.Matching.MinConfidence, debug)

	// Release the recognition session on shutdown signals.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received %s, releasing resources", sig)
		engine.Cleanup()
		researchCache.Stop()
		os.Exit(0)
	}()

	handler := httpDelivery.NewHandler(scanner, researcher, matcher)
	router := httpDelivery.SetupRouter(cfg, handler)

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Printf("Server listening on %s", addr)

	if err := router.Run(addr); err != nil {
		engine.Cleanup()
		log.Fatalf("Failed to start server: %v", err)
	}
}

// refreshRegistry re-pulls the registry snapshot on a fixed interval.
func refreshRegistry(matcher *usecase.Matcher, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		if err := matcher.Refresh(ctx); err != nil {
			log.Printf("Registry refresh failed, keeping previous snapshot: %v", err)
		}
		cancel()
	}
}

func init() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.SetOutput(os.Stdout)
}
