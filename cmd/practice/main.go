package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"example.com/voice_practice/client"
	"example.com/voice_practice/pkg/audio"
	"example.com/voice_practice/pkg/capture"
	"example.com/voice_practice/pkg/config"
	"example.com/voice_practice/pkg/metrics"
	"example.com/voice_practice/pkg/playback"
	"example.com/voice_practice/pkg/protocol"
	"example.com/voice_practice/pkg/session"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog := loadCatalog(ctx, cfg.Server.Origin)
	theme, scenario, err := catalog.Resolve(cfg.Practice.Theme, cfg.Practice.Scenario)
	if err != nil {
		log.Warn().Err(err).Msg("configured practice focus not in catalog, using default")
		theme, scenario = catalog.Default()
	}

	channelURL, err := protocol.ChannelURL(cfg.Server.Origin)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid server origin")
	}

	recorder, err := audio.NewTurnRecorder(cfg.Recording.Dir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to prepare recordings")
	}

	m := metrics.NewMetrics()
	go func() {
		if err := m.Serve(ctx, cfg.Metrics.Address); err != nil {
			log.Error().Err(err).Msg("metrics endpoint failed")
		}
	}()

	var player session.Player
	if cfg.Playback.Enabled {
		speaker := playback.NewSpeaker()
		defer speaker.Close()
		player = speaker
	}

	transport := client.NewClient(client.Config{
		URL:              channelURL,
		HandshakeTimeout: cfg.Server.GetHandshakeTimeout(),
	})
	terminal := NewTerminal(os.Stdout)

	var runner *session.Runner
	newSource := func(handler capture.FrameHandler) capture.Source {
		if cfg.Audio.InputFile == "" {
			return capture.NewPortAudioSource(capture.PortAudioConfig{
				FramesPerBuffer: cfg.Audio.FramesPerBuffer,
				Handler:         handler,
			})
		}
		return capture.NewWAVSource(capture.WAVConfig{
			Path:            cfg.Audio.InputFile,
			FramesPerBuffer: cfg.Audio.FramesPerBuffer,
			Realtime:        true,
			Handler:         handler,
			OnEnd: func() {
				// The file plays as one attempt
				if err := runner.Post(ctx, session.StopRecording{}); err != nil {
					log.Debug().Err(err).Msg("stop after input file not posted")
				}
			},
		})
	}

	runner = session.NewRunner(session.RunnerConfig{
		Theme:          theme,
		Scenario:       scenario,
		Transport:      transport,
		NewSource:      newSource,
		Presenter:      terminal,
		Player:         player,
		Recorder:       recorder,
		Metrics:        m,
		QueueSize:      cfg.Audio.QueueSize,
		ConnectTimeout: cfg.Server.GetConnectTimeout(),
	})
	transport.OnMessage(runner.HandleMessage)
	transport.OnClose(runner.HandleClose)
	transport.OnError(runner.HandleError)

	log.Info().
		Str("server", cfg.Server.Origin).
		Str("theme", theme).
		Str("scenario", scenario).
		Str("session_id", runner.SessionID()).
		Msg("voice practice client starting")

	runCtx, cancel := context.WithCancel(ctx)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		runner.Run(runCtx)
	}()

	terminal.Println(fmt.Sprintf("Practice focus: %s / %s. Type help for commands.", theme, scenario))
	readCommands(runCtx, os.Stdin, runner, terminal, catalog)
	cancel()
	<-finished
}

// loadCatalog fetches the themes catalog, falling back to the built-in one
func loadCatalog(ctx context.Context, origin string) *themes.Catalog {
	url, err := protocol.ThemesURL(origin)
	if err != nil {
		log.Warn().Err(err).Msg("no catalog url, using built-in themes")
		return themes.Builtin()
	}
	fetchCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	catalog, err := themes.Fetch(fetchCtx, http.DefaultClient, url)
	if err != nil {
		log.Warn().Err(err).Str("url", url).Msg("failed to fetch themes, using built-in catalog")
		return themes.Builtin()
	}
	log.Debug().Int("themes", len(catalog.Themes)).Msg("loaded themes catalog")
	return catalog
}

// readCommands posts user input to the runner until quit, EOF or cancellation
func readCommands(ctx context.Context, in io.Reader, runner *session.Runner, terminal *Terminal, catalog *themes.Catalog) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			cmd, err := parseCommand(line, catalog)
			if err != nil {
				terminal.Println(err.Error())
				continue
			}
			switch {
			case cmd.quit:
				return
			case cmd.output != "":
				terminal.Println(cmd.output)
			case cmd.status:
				terminal.Println(fmt.Sprintf("Phase: %s", terminal.CurrentPhase()))
			case cmd.event != nil:
				if err := runner.Post(ctx, cmd.event); err != nil {
					return
				}
			}
		}
	}
}
