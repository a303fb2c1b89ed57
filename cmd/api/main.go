package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bobarin/speakrelay/internal/api"
	"github.com/bobarin/speakrelay/internal/config"
	"github.com/bobarin/speakrelay/internal/services"
	"github.com/bobarin/speakrelay/internal/storage"
	"github.com/bobarin/speakrelay/internal/telemetry"
	"github.com/bobarin/speakrelay/internal/worker"
)

func main() {
	log.Println("Starting speech relay...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Provider client lives for the whole process
	tts, err := newSynthesizer(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize TTS provider: %v", err)
	}

	// Metrics
	var metrics *telemetry.Metrics
	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		metrics, err = telemetry.New("speakrelay")
		if err != nil {
			log.Fatalf("Failed to initialize metrics: %v", err)
		}
		metricsHandler = metrics.Handler()
		log.Println("Metrics enabled on /metrics")
	}

	// Audio files
	stor := storage.New(cfg.AudioDir, cfg.AudioFixedPath)
	stor.OnDeleted(func(path string, err error) {
		outcome := "deleted"
		if err != nil {
			outcome = "failed"
		}
		metrics.RecordDeletion(context.Background(), outcome)
	})
	if cfg.AudioFixedPath != "" {
		log.Printf("WARNING: AUDIO_FIXED_PATH=%s, concurrent requests share one file", cfg.AudioFixedPath)
	} else {
		log.Printf("Audio files in %s, deleted after %s", cfg.AudioDir, cfg.AudioDeleteAfter)
	}

	// Playback
	player, err := services.NewPlayer(cfg.PlayerCommand, cfg.PlayerDevice, cfg.Synthesis.Encoding)
	if err != nil {
		log.Fatalf("Failed to configure player: %v", err)
	}
	w := worker.New(player, stor, cfg.AudioDeleteAfter, metrics)

	// Create API handler
	handler := api.NewHandler(tts, stor, w, cfg.Synthesis, cfg.SynthesisTimeout, metrics)
	router := api.NewRouter(handler, api.RouterConfig{
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
		Metrics:            metricsHandler,
	})

	// Start HTTP server
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Printf("API server listening on :%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Let in-flight players finish; pending deletion timers die with the process
	drained := make(chan struct{})
	go func() {
		w.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		log.Println("Timed out waiting for playback to finish")
	}

	if err := tts.Close(); err != nil {
		log.Printf("Failed to close TTS provider: %v", err)
	}
	if err := metrics.Shutdown(context.Background()); err != nil {
		log.Printf("Failed to shut down metrics: %v", err)
	}

	log.Println("Server exited")
}

// newSynthesizer builds the provider named by TTS_PROVIDER.
func newSynthesizer(ctx context.Context, cfg *config.Config) (services.Synthesizer, error) {
	switch cfg.TTSProvider {
	case config.ProviderGoogle:
		svc, err := services.NewGoogleTTSService(ctx, cfg.GoogleCredentialsFile)
		if err != nil {
			return nil, err
		}
		log.Printf("TTS provider: Google Cloud Text-to-Speech (encoding: %s)", cfg.Synthesis.Encoding)
		return svc, nil
	case config.ProviderOpenAI:
		log.Printf("TTS provider: OpenAI (model: %s, voice: %s)", cfg.OpenAITTSModel, cfg.OpenAITTSVoice)
		return services.NewOpenAITTSService(cfg.OpenAIKey, cfg.OpenAITTSModel, cfg.OpenAITTSVoice), nil
	case config.ProviderGemini:
		svc, err := services.NewGeminiTTSService(ctx, cfg.GeminiKey, cfg.GeminiTTSModel, cfg.GeminiTTSVoice)
		if err != nil {
			return nil, err
		}
		log.Printf("TTS provider: Gemini (model: %s, voice: %s)", cfg.GeminiTTSModel, cfg.GeminiTTSVoice)
		return svc, nil
	case config.ProviderElevenLabs:
		log.Printf("TTS provider: ElevenLabs (model: %s)", cfg.ElevenLabsModel)
		return services.NewElevenLabsTTSService(cfg.ElevenLabsKey, cfg.ElevenLabsVoiceID, cfg.ElevenLabsModel), nil
	default:
		return nil, fmt.Errorf("unknown TTS provider %q", cfg.TTSProvider)
	}
}
