package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/chadiek/interview-coach/internal/archive"
	"github.com/chadiek/interview-coach/internal/config"
	"github.com/chadiek/interview-coach/internal/httpserver"
	"github.com/chadiek/interview-coach/internal/interview"
	"github.com/chadiek/interview-coach/internal/llm"
	"github.com/chadiek/interview-coach/internal/logger"
	"github.com/chadiek/interview-coach/internal/rtc"
	"github.com/chadiek/interview-coach/internal/store"
	"github.com/chadiek/interview-coach/internal/transcript"
	"github.com/chadiek/interview-coach/internal/tts"
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.Options{Production: cfg.Production, Level: cfg.LogLevel, FilePath: cfg.LogFile})
	defer func() { _ = log.Sync() }()
	for _, w := range cfg.Warnings {
		log.Warn("config: " + w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, cleanup, err := buildDeps(ctx, cfg, log)
	if err != nil {
		log.Fatal("startup failed", zap.Error(err))
	}
	defer cleanup()

	srv := httpserver.New(deps)
	server := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           srv.Router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", cfg.HTTPAddress))
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("graceful shutdown failed", zap.Error(err))
		_ = server.Close()
	}
}

func buildDeps(ctx context.Context, cfg config.Config, log *zap.Logger) (httpserver.Deps, func(), error) {
	cleanup := func() {}
	icfg := interview.DefaultConfig()
	icfg.ConfidenceThreshold = cfg.ConfidenceThreshold
	icfg.Language = cfg.Language
	icfg.SampleRate = rtc.MicSampleRate
	icfg.WithCamera = cfg.WithCamera
	icfg.GenerateTimeout = cfg.GenerateTimeout
	icfg.TranscribeTimeout = cfg.TranscribeTimeout
	icfg.GeneratorName = cfg.LLMProvider

	deps := httpserver.Deps{
		Logger: log,
		Live: httpserver.LiveConfig{
			Interview:      icfg,
			ICEServers:     rtc.ParseICEServers(cfg.ICEServersJSON),
			AcquireTimeout: cfg.AcquireTimeout,
		},
	}

	switch cfg.StoreDriver {
	case "firestore":
		fs, err := store.NewFirestore(ctx, cfg.GCPProject)
		if err != nil {
			return deps, cleanup, err
		}
		deps.Store = fs
		cleanup = func() { _ = fs.Close() }
	default:
		deps.Store = store.NewMemory()
	}

	switch cfg.STTProvider {
	case "scripted":
		deps.Transcriber = transcript.Scripted{Delay: 1500 * time.Millisecond, Transcript: "This is a scripted answer.", Confidence: 0.9}
	default:
		deps.Transcriber = transcript.NewDeepgramClient(cfg.DeepgramKey, cfg.DeepgramSTTModel)
	}

	switch cfg.LLMProvider {
	case "gemini":
		g, err := llm.NewGeminiClient(ctx, cfg.GeminiKey, cfg.GeminiModel)
		if err != nil {
			return deps, cleanup, err
		}
		deps.Generator = g
	case "scripted":
		deps.Generator = llm.Scripted{Delay: 2 * time.Second}
	default:
		deps.Generator = llm.NewCerebrasClient(cfg.CerebrasKey, cfg.CerebrasModelID)
	}

	var streamer tts.Streamer
	switch cfg.TTSProvider {
	case "elevenlabs":
		streamer = tts.NewElevenLabsClient(cfg.ElevenLabsKey, cfg.ElevenLabsVoiceID, log)
	case "deepgram":
		streamer = tts.NewDeepgramClient(cfg.DeepgramKey, cfg.DeepgramTTSModel, log)
	}
	if streamer != nil {
		deps.Voice = func(sink tts.Sink) interview.Synthesizer {
			return tts.NewSpeaker(streamer, sink, log)
		}
	}

	if cfg.ArchiveEnabled() {
		a, err := archive.New(archive.Config{URL: cfg.SupabaseURL, ServiceRoleKey: cfg.SupabaseServiceRoleKey, Bucket: cfg.SupabaseBucket})
		if err != nil {
			log.Warn("recording archive disabled", zap.Error(err))
		} else {
			deps.Archive = a
		}
	}
	return deps, cleanup, nil
}
