package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/amanullahtanweer/deepgram-relay/internal/config"
	"github.com/amanullahtanweer/deepgram-relay/internal/ingress"
	"github.com/amanullahtanweer/deepgram-relay/internal/logging"
	"github.com/amanullahtanweer/deepgram-relay/internal/metrics"
	"github.com/amanullahtanweer/deepgram-relay/internal/server"
	"github.com/amanullahtanweer/deepgram-relay/internal/store"
	"github.com/amanullahtanweer/deepgram-relay/internal/transcriber"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config", "config.yaml", "Configuration file path")
	flag.Parse()

	// .env is optional; deployed environments set variables directly.
	_ = godotenv.Load()

	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}

	logger.Infof("using Deepgram API key: %s", maskKey(cfg.Deepgram.APIKey))

	m := metrics.New()

	st := store.NewSessionStore(cfg.Redis)
	if st != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := st.Ping(ctx); err != nil {
			cancel()
			logger.Fatalf("Failed to connect to Redis: %v", err)
		}
		cancel()
		defer st.Close()
	}

	opts := transcriber.Options{
		Model:          cfg.Deepgram.Model,
		Language:       cfg.Deepgram.Language,
		SmartFormat:    cfg.Deepgram.SmartFormat,
		Encoding:       cfg.Deepgram.Encoding,
		Channels:       cfg.Deepgram.Channels,
		SampleRate:     cfg.Deepgram.SampleRate,
		InterimResults: cfg.Deepgram.InterimResults,
	}

	factory := func() (transcriber.LiveTranscriber, error) {
		return transcriber.NewDeepgram(cfg.Deepgram.APIKey, logger)
	}

	srv := server.New(server.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		StaticDir:       cfg.Server.StaticDir,
		OutputDir:       cfg.Transcription.OutputDir,
		SaveTranscripts: cfg.Transcription.SaveTranscripts,
	}, logger, m, st, factory, opts)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatalf("Server error: %v", err)
		}
	}()

	var ing *ingress.Ingress
	if cfg.AudioSocket.Enabled {
		ing = ingress.New(ingress.Config{
			Host:            cfg.AudioSocket.Host,
			Port:            cfg.AudioSocket.Port,
			OutputDir:       cfg.Transcription.OutputDir,
			SaveTranscripts: cfg.Transcription.SaveTranscripts,
		}, logger, m, st, factory, opts)

		go func() {
			if err := ing.Start(); err != nil {
				logger.Fatalf("AudioSocket ingress error: %v", err)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down...")
	if ing != nil {
		ing.Stop()
	}
	srv.Stop()
}

func maskKey(key string) string {
	if len(key) <= 10 {
		return "*****"
	}
	return key[:5] + "..." + key[len(key)-5:]
}
