package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"voicevision-tutor/internal/audio"
	"voicevision-tutor/internal/config"
	"voicevision-tutor/internal/httpapi"
	"voicevision-tutor/internal/image"
	"voicevision-tutor/internal/image/tesseract"
	"voicevision-tutor/internal/llm"
	"voicevision-tutor/internal/notify"
	"voicevision-tutor/internal/platform/command"
	"voicevision-tutor/internal/platform/ollama"
	"voicevision-tutor/internal/platform/openaicompat"
	"voicevision-tutor/internal/tempfile"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config", "config.yaml", "Configuration file path")
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	logger.Info("server stopped")
}

func newLogger(cfg config.Config) *slog.Logger {
	if cfg.IsDevelopment() {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	// 1. Notifications
	hub := notify.NewHub(cfg.Notify.ListenerBuffer, logger)
	var notifier notify.Emitter = hub
	var relay *notify.RedisRelay
	if cfg.Notify.RedisURL != "" {
		r, err := notify.NewRedisRelay(hub, cfg.Notify.RedisURL, cfg.Notify.RedisChannel, logger)
		if err != nil {
			return err
		}
		defer r.Close()
		relay = r
		notifier = r
	}

	// 2. Storage and tools
	files, err := tempfile.NewManager(cfg.Storage.UploadDir, logger)
	if err != nil {
		return err
	}
	runner := command.NewExecRunner(cfg.Audio.ToolTimeout)

	// 3. Pipelines
	var recognizer audio.Recognizer
	if cfg.Audio.WhisperServerURL != "" {
		recognizer = audio.NewHTTPRecognizer(cfg.Audio.WhisperServerURL, cfg.Audio.ToolTimeout)
	} else {
		recognizer = audio.NewCLIRecognizer(runner, cfg.Audio.WhisperPath, cfg.Audio.WhisperModelPath, logger)
	}
	audioPipeline := audio.NewPipeline(files, runner, cfg.Audio.FFmpegPath, recognizer, notifier, logger)

	imagePipeline := image.NewPipeline(files, tesseract.Factory, image.Options{
		Language:   cfg.Image.Language,
		Parameters: ocrParameters(cfg.Image),
	}, notifier, logger)

	llmService, err := llm.NewService(newChatClient(cfg.LLM), cfg.LLM.Model, cfg.LLM.Prompts, notifier, logger)
	if err != nil {
		return err
	}

	// 4. HTTP
	handler := httpapi.NewHandler(cfg, audioPipeline, imagePipeline, llmService, notifier, logger)
	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: httpapi.NewRouter(handler, hub, logger),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", "addr", srv.Addr, "env", cfg.Server.Environment, "llm", cfg.LLM.Provider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if relay != nil {
		g.Go(func() error {
			relay.Serve(gctx)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newChatClient(cfg config.LLMConfig) llm.ChatClient {
	if cfg.Provider == config.ProviderOpenAI {
		return openaicompat.NewClient(cfg.URL, cfg.APIKey, cfg.Model, cfg.RequestTimeout)
	}
	return ollama.NewClient(cfg.URL, cfg.Model, cfg.RequestTimeout)
}

func ocrParameters(cfg config.ImageConfig) map[string]string {
	params := map[string]string{}
	if cfg.EngineMode != "" {
		params["tessedit_ocr_engine_mode"] = cfg.EngineMode
	}
	if cfg.PreserveInterwordSpaces != "" {
		params["preserve_interword_spaces"] = cfg.PreserveInterwordSpaces
	}
	return params
}
