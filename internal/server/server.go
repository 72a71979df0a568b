package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sense-app/sense-ai-chat/config"
	"github.com/sense-app/sense-ai-chat/internal/agent/core"
	"github.com/sense-app/sense-ai-chat/internal/agent/telemetry"
	"github.com/sense-app/sense-ai-chat/internal/store"
	"github.com/sense-app/sense-ai-chat/provider"
	"github.com/sense-app/sense-ai-chat/repository"
	"github.com/sense-app/sense-ai-chat/tools/web_fetch"
	"github.com/sense-app/sense-ai-chat/tools/web_search"
)

func Run(cfg *config.Config, addr string) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, HTTPError{Error: msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie", "Authorization"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	metricsPath := cfg.Telemetry.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	e.GET(metricsPath, echo.WrapHandler(promhttp.Handler()))

	ctx := context.Background()

	dsn, err := cfg.Storage.Postgres.DSN()
	if err != nil {
		return err
	}
	if err := Migrate("file://migrations", dsn, "up", 0); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return err
	}

	secret := cfg.Server.JWTSecret
	if secret == "" {
		return fmt.Errorf("jwt secret not configured (server.jwt_secret)")
	}

	tele := telemetry.NewTelemetry(cfg.Telemetry)

	llm, err := provider.NewProvider(cfg.LLM)
	if err != nil {
		return err
	}

	searcher, err := web_search.NewSearcher(web_search.Provider(cfg.Search.Provider), cfg.Search.APIKey, web_search.Options{
		CountryCode: cfg.Search.CountryCode,
		City:        cfg.Search.City,
		MaxResults:  cfg.Search.MaxResults,
		Timeout:     cfg.Search.Timeout,
	})
	if err != nil {
		return err
	}

	fetcher, err := web_fetch.NewFetcher(web_fetch.FetcherType(cfg.Fetch.Provider), cfg.Fetch.APIKey, cfg.Fetch.Timeout, cfg.Fetch.MaxChars)
	if err != nil {
		return err
	}

	// The replay cache is optional: without redis the live stream still
	// works, reconnecting clients just cannot replay past events.
	var events repository.EventRepository
	if cfg.Storage.Redis.Host != "" {
		events, err = repository.NewEventRepository(ctx, repository.RepoTypeRedis, cfg.Storage.Redis)
		if err != nil {
			return fmt.Errorf("redis connection failed (%s:%s): %w", cfg.Storage.Redis.Host, cfg.Storage.Redis.Port, err)
		}
	}

	orch := buildOrchestrator(cfg, llm, searcher, fetcher, tele)

	api := e.Group("/api")

	auth := &AuthHandler{Store: st, Secret: []byte(secret)}
	auth.Register(api.Group("/auth"))

	titleLogger := log.New(log.Writer(), "[CHAT] ", log.LstdFlags)
	ch := &ChatHandler{
		Store:      st,
		Events:     events,
		Orch:       orch,
		LLM:        llm,
		TitleModel: cfg.LLM.Routing.Model("small"),
		Models: map[string]string{
			"small":     cfg.LLM.Routing.Model("small"),
			"large":     cfg.LLM.Routing.Model("large"),
			"reasoning": cfg.LLM.Routing.Model("reasoning"),
		},
		Logger: titleLogger,
	}
	ch.Register(api.Group("/chat"), []byte(secret))

	if addr == "" {
		addr = cfg.Server.Address
		if addr == "" {
			addr = ":8080"
		}
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}

// buildOrchestrator wires the agent tools against the shared provider
// and gateways.
func buildOrchestrator(cfg *config.Config, llm provider.Provider, searcher web_search.Searcher, fetcher web_fetch.Fetcher, tele *telemetry.Telemetry) *core.Orchestrator {
	small := cfg.LLM.Routing.Model("small")
	large := cfg.LLM.Routing.Model("large")
	reasoning := cfg.LLM.Routing.Model("reasoning")

	agentLogger := log.New(log.Writer(), "[AGENT] ", log.LstdFlags)

	rewriter := &core.QueryRewriter{Provider: llm, Model: small, Logger: agentLogger}
	dedup := &core.Deduplicator{Provider: llm, Model: small, Logger: agentLogger}
	learner := &core.Learner{Provider: llm, Model: large, Logger: agentLogger}

	tools := core.NewRegistry(
		&core.ReflectTool{Dedup: dedup, Logger: agentLogger, Telemetry: tele},
		&core.SearchTool{
			Rewriter:  rewriter,
			Searcher:  searcher,
			Delay:     cfg.Search.RequestDelay,
			Logger:    agentLogger,
			Telemetry: tele,
		},
		&core.ReadTool{Fetcher: fetcher, Learner: learner, Logger: agentLogger, Telemetry: tele},
		&core.ResearchTool{
			Provider:  llm,
			Model:     reasoning,
			Searcher:  searcher,
			Fetcher:   fetcher,
			MaxSteps:  cfg.Agent.ResearchMaxSteps,
			Logger:    agentLogger,
			Telemetry: tele,
		},
		&core.ShopTool{
			Searcher:  searcher,
			Provider:  llm,
			Model:     large,
			MaxTokens: cfg.Agent.ShopSynthesisMaxTokens,
			Logger:    agentLogger,
			Telemetry: tele,
		},
	)

	return &core.Orchestrator{
		Provider:  llm,
		Model:     large,
		Tools:     tools,
		MaxSteps:  cfg.Agent.MaxSteps,
		Logger:    agentLogger,
		Telemetry: tele,
	}
}
