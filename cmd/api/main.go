package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"tattty/internal/dispatch"
	"tattty/internal/domain"
	"tattty/internal/generation"
	"tattty/internal/http/handlers"
	httpapi "tattty/internal/http/httpapi"
	"tattty/internal/imageprep"
	"tattty/internal/infra"
	"tattty/internal/infra/geoip"
	"tattty/internal/middleware"
	"tattty/internal/providers/prompt"
	"tattty/internal/session"
	"tattty/internal/storage"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()

	persister, closeDB := draftPersister(ctx, cfg, logger)
	defer closeDB()

	var lookup middleware.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.GeoIPDBPath).Msg("geoip disabled")
	} else if resolver != nil {
		defer func() {
			_ = resolver.Close()
		}()
		lookup = resolver.Lookup()
	}

	sheets := dispatch.NewSheetsLogger(dispatch.SheetsOptions{
		WebhookURL: cfg.SheetsWebhookURL,
		Logger:     logger.With().Str("component", "sheets").Logger(),
	})
	if !cfg.SubmissionEnabled() {
		logger.Warn().Msg("GENERATION_ENDPOINT not set, submissions will be rejected")
	}

	rules := generation.DefaultRules()
	rules.MinQuestionChars = cfg.MinQuestionChars

	app := handlers.NewApp(handlers.Options{
		Logger:    logger,
		Drafts:    session.NewRegistry(persister, logger.With().Str("component", "drafts").Logger(), session.WithIdleTTL(cfg.DraftTTL)),
		Finalizer: generation.NewFinalizer(generation.WithRules(rules)),
		ImageOptions: imageprep.Options{
			MaxWidth:  cfg.MaxImageDimension,
			MaxHeight: cfg.MaxImageDimension,
			Quality:   imageprep.DefaultOptions().Quality,
			MaxPixels: cfg.MaxImagePixels,
		},
		Submitter: dispatch.NewSubmitter(dispatch.SubmitterOptions{
			HTTPClient: &http.Client{Timeout: cfg.SubmitTimeout},
			UserAgent:  "tattty-api",
		}),
		GenerationEndpoint: cfg.GenerationEndpoint,
		SubmitTimeout:      cfg.SubmitTimeout,
		Sheets:             sheets,
		Prompts:            newEnhancer(cfg, logger),
	})

	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		Logger:          logger,
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		CountryLookup:   lookup,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("addr", server.Addr()).Str("prompt_provider", cfg.PromptProvider).Msg("API listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if err := sheets.Wait(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("sheets records still in flight at shutdown")
	}
	logger.Info().Msg("server stopped")
}

// draftPersister prefers Postgres when DATABASE_URL is set and falls back to JSON files.
func draftPersister(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) (domain.DraftRepository, func()) {
	if cfg.DatabaseURL != "" {
		if err := infra.RunMigrations(ctx, cfg.DatabaseURL, logger); err != nil {
			logger.Fatal().Err(err).Msg("failed to run migrations")
		}
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		logger.Info().Msg("drafts persisted to postgres")
		return session.NewPostgresPersister(infra.NewSQLRunner(pool, logger)), pool.Close
	}
	files, err := storage.NewFileStore(cfg.DraftDir)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.DraftDir).Msg("failed to configure draft storage")
	}
	logger.Info().Str("dir", files.BasePath()).Msg("drafts persisted to files")
	return session.NewFilePersister(files), func() {}
}

func newEnhancer(cfg *infra.Config, logger zerolog.Logger) prompt.Enhancer {
	log := logger.With().Str("component", "prompt").Logger()
	switch cfg.PromptProvider {
	case infra.PromptProviderBackend:
		return prompt.NewBackendEnhancer(prompt.BackendOptions{
			BaseURL:    cfg.PromptBackendURL,
			HTTPClient: &http.Client{Timeout: 30 * time.Second},
		})
	case infra.PromptProviderOpenAI:
		enhancer, err := prompt.NewOpenAIEnhancer(prompt.OpenAIOptions{
			APIKey:       cfg.OpenAIAPIKey,
			Model:        cfg.OpenAIModel,
			BaseURL:      cfg.OpenAIBaseURL,
			Organization: cfg.OpenAIOrg,
			OnFallback: func(reason string, err error) {
				log.Warn().Err(err).Str("reason", reason).Msg("openai enhancer fell back to static prompt")
			},
			OnWarning: func(reason, detail string) {
				log.Warn().Str("reason", reason).Str("detail", detail).Msg("openai model normalized")
			},
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure openai enhancer")
		}
		return enhancer
	default:
		return prompt.NewStaticEnhancer()
	}
}
