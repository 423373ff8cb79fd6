package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"whatify/internal/api"
	"whatify/pkg/audio"
	"whatify/pkg/audiocache"
	"whatify/pkg/config"
	"whatify/pkg/db"
	"whatify/pkg/genbus"
	"whatify/pkg/history"
	"whatify/pkg/llm"
	"whatify/pkg/llm/gemini"
	"whatify/pkg/logging"
	"whatify/pkg/playback"
	"whatify/pkg/request"
	"whatify/pkg/sequencer"
	"whatify/pkg/speech"
	"whatify/pkg/store"
	"whatify/pkg/tracker"
	"whatify/pkg/tts/elevenlabs"
	"whatify/pkg/tts/localsynth"
	"whatify/pkg/version"
)

var initConfig = flag.Bool("init-config", false, "Generate default config file and exit")

func main() {
	flag.Parse()

	// Handle --init-config flag
	if *initConfig {
		if err := config.Save("configs/whatify.yaml", config.DefaultConfig()); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Config file generated: configs/whatify.yaml")
		return
	}

	if err := run(context.Background(), "configs/whatify.yaml"); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Secrets may live in a local .env during development.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("Whatify Started", "version", version.Version)

	dbConn, err := db.Init(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbConn.Close()
	st := store.NewSQLiteStore(dbConn)

	tr := tracker.New()
	reqClient := request.New(tr,
		time.Duration(cfg.Request.Timeout),
		cfg.Request.Retries,
		time.Duration(cfg.Request.Backoff.BaseDelay),
	)

	// TTS chain: ElevenLabs with the local synthesizer as fallback.
	primary := elevenlabs.NewProvider(reqClient, &cfg.TTS.ElevenLabs)
	fallback := localsynth.NewProvider(cfg.TTS.Locale)

	player := audio.New(cfg.Audio.Volume)
	defer player.Shutdown()

	cache := audiocache.New(tr)
	engine := speech.New(player, cache, primary, fallback, cfg.TTS.ElevenLabs.VoiceID, &cfg.Narration, tr)
	seq := sequencer.New(engine)
	defer seq.Reset()

	hub := api.NewHub()
	defer hub.Close()

	machine := playback.New(seq, engine, hub, hub, &cfg.Narration)

	generator, err := initGenerator(cfg, reqClient, tr)
	if err != nil {
		return fmt.Errorf("failed to initialize generator: %w", err)
	}

	bus := genbus.New(machine, cache, generator, engine, hub, st)
	defer bus.Reset()

	return runServer(ctx, cfg, machine, bus, generator, primary, player, st, tr, hub)
}

// initGenerator picks the scenario source: Gemini directly, or another
// Whatify-compatible server over HTTP.
func initGenerator(cfg *config.Config, rc *request.Client, tr *tracker.Tracker) (llm.Generator, error) {
	switch cfg.LLM.Provider {
	case "remote":
		if cfg.LLM.BaseURL == "" {
			return nil, fmt.Errorf("llm provider %q needs base_url", cfg.LLM.Provider)
		}
		slog.Info("Generator: Remote", "base_url", cfg.LLM.BaseURL)
		return history.NewClient(cfg.LLM.BaseURL, rc, time.Duration(cfg.Request.Timeout)), nil
	case "gemini", "":
		slog.Info("Generator: Gemini", "model", cfg.LLM.Model)
		return gemini.NewClient(cfg.LLM, tr)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}

func runServer(ctx context.Context, cfg *config.Config, machine *playback.Machine, bus *genbus.Bus, generator llm.Generator, primary *elevenlabs.Provider, player *audio.Manager, st store.ScenarioStore, tr *tracker.Tracker, hub *api.Hub) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	shutdownFunc := func() { quit <- syscall.SIGTERM }

	srv := api.NewServer(cfg.Server.Address,
		api.NewPlaybackHandler(machine, bus),
		api.NewNarrateHandler(primary, cfg.TTS.ElevenLabs.VoiceID),
		api.NewHistoryHandler(generator),
		api.NewScenariosHandler(st),
		api.NewStatsHandler(tr),
		api.NewAudioHandler(player),
		hub,
		shutdownFunc,
	)

	srv.Handler = loggingMiddleware(srv.Handler)
	return runServerLifecycle(ctx, srv, quit)
}

func runServerLifecycle(ctx context.Context, srv *http.Server, quit chan os.Signal) error {
	slog.Info("Starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()
	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.RequestLogger.Info("Request Processed", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
