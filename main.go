package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/raine/virtual-fitting-room/internal/access"
	"github.com/raine/virtual-fitting-room/internal/config"
	"github.com/raine/virtual-fitting-room/internal/llm"
	"github.com/raine/virtual-fitting-room/internal/server"
	"github.com/raine/virtual-fitting-room/internal/storage"
	"github.com/raine/virtual-fitting-room/internal/studio"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

const (
	memoryCacheBytes = 64 << 20
	memoryCacheTTL   = time.Hour
	shutdownTimeout  = 30 * time.Second
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	// Try to load existing .env file
	config.LoadEnvFile()

	if missing := config.CheckRequired(); len(missing) > 0 {
		if config.IsInteractiveTerminal() {
			if !config.RunSetupWizard() {
				config.WaitOnWindows()
				os.Exit(1)
			}
		} else {
			// Non-interactive (systemd, k8s, etc.) - fail with clear error
			config.FatalWithWait("missing required config: %s", strings.Join(missing, ", "))
		}
	}

	cfg, err := config.Load()
	if err != nil {
		config.FatalWithWait("invalid configuration: %v", err)
	}
	setupLogger(cfg.LogLevel)

	sentryEnabled := false
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			Release:          "virtual-fitting-room@1.0.0",
			TracesSampleRate: 0.2,
		})
		if err != nil {
			log.Error().Err(err).Msg("sentry init failed, continuing without error reporting")
		} else {
			sentryEnabled = true
			defer sentry.Flush(2 * time.Second)
		}
	}

	rotator := llm.NewKeyRotator(cfg.APIKeys)
	if rotator.Len() == 0 {
		config.FatalWithWait("%v", llm.ErrNoCredentials)
	}
	log.Info().Int("keys", rotator.Len()).Msg("gemini key pool loaded")

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		config.FatalWithWait("failed to initialize analysis store: %v", err)
	}
	defer store.Close()
	log.Info().Str("dbPath", cfg.DBPath).Msg("analysis store initialized")

	memory, err := storage.NewMemoryCache(memoryCacheBytes, memoryCacheTTL)
	if err != nil {
		config.FatalWithWait("failed to initialize memory cache: %v", err)
	}

	gen := llm.NewRotatingGenerator(rotator)
	opts := llm.Options{
		TextModel:  cfg.TextModel,
		ImageModel: cfg.ImageModel,
		Language:   cfg.LanguageName(),
	}
	gate := access.NewGate(cfg.PremiumSecret)
	if cfg.PremiumSecret == "" {
		log.Warn().Msg("PREMIUM_ACCESS_SECRET is not set, premium tier disabled")
	}

	analyzer := llm.NewCachedAnalyzer(
		llm.NewGeminiAnalyzer(gen, opts),
		storage.NewTieredCache(memory, store),
		cfg.Language,
	)
	composer := llm.NewPromptComposer(gen, opts)
	synthesizer := llm.NewSynthesizer(gen, gate, opts)
	sessions := studio.NewManager(cfg.SessionTTL)

	e := server.SetupServer(server.Deps{
		Analyzer: analyzer,
		Composer: composer,
		Renderer: synthesizer,
		Gate:     gate,
		Pipeline: studio.NewPipeline(analyzer, composer, synthesizer, gate),
		Sessions: sessions,
		Fetcher:  studio.NewImageFetcher(),
	}, server.Options{
		CORSOrigins: cfg.CORSOrigins,
		Sentry:      sentryEnabled,
	})

	// Create context that cancels on SIGINT or SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", cfg.ListenAddr).Msg("http server listening")
		if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info().Msg("shutting down http server")
		return e.Shutdown(shutdownCtx)
	})

	sweeper := studio.NewSweeper(sessions, store)
	g.Go(func() error {
		sweeper.Run(ctx)
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("shutdown with error")
	} else {
		log.Info().Msg("shutdown complete")
	}
}

// setupLogger writes human-readable logs to a terminal and JSON lines
// otherwise.
func setupLogger(level string) {
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if level == "" {
		return
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		log.Warn().Str("level", level).Msg("unknown LOG_LEVEL, using info")
		return
	}
	zerolog.SetGlobalLevel(lvl)
}
