package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"example.com/voice_practice/pkg/config"
	"example.com/voice_practice/pkg/metrics"
	"example.com/voice_practice/pkg/protocol"
	"example.com/voice_practice/pkg/themes"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flags := config.RegisterFlags(flag.CommandLine)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err == nil {
		err = flags.Apply(cfg)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	cfg.Logging.Setup(os.Stderr)

	server := NewServer(ServerConfig{
		FragmentDelay:  cfg.Dev.GetFragmentDelay(),
		ReplyTimeout:   cfg.Dev.GetReplyTimeout(),
		Catalog:        themes.Builtin(),
		Metrics:        metrics.NewMetrics(),
		NewTutor:       tutorFactory(cfg.Dev.Tutor),
		NewTranscriber: transcriberFactory(cfg.Dev.Speech),
		Voice:          synthesizer(cfg.Dev),
	})

	httpServer := &http.Server{
		Addr:              cfg.Dev.Listen,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().
			Str("addr", cfg.Dev.Listen).
			Str("channel", protocol.ChannelPath).
			Str("themes", protocol.ThemesPath).
			Str("tutor", cfg.Dev.Tutor.Provider).
			Str("speech", cfg.Dev.Speech.Provider).
			Bool("voice", cfg.Dev.VoiceEnabled()).
			Msg("practice server starting")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Int("sessions", server.Sessions().Count()).Msg("shutting down")

	server.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
}
