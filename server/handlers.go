package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"example.com/voice_practice/pkg/metrics"
	"example.com/voice_practice/pkg/protocol"
	"example.com/voice_practice/pkg/stt"
	"example.com/voice_practice/pkg/themes"
)

// Synthesizer turns reply text into base64 encoded speech
type Synthesizer interface {
	SynthesizeBase64(ctx context.Context, text string) (string, error)
}

// ServerConfig holds the practice server settings
type ServerConfig struct {
	FragmentDelay  time.Duration // pause between scripted fragments
	ReplyTimeout   time.Duration // bounds each tutor, speech and voice call
	Catalog        *themes.Catalog
	Metrics        *metrics.Metrics // optional
	NewTutor       TutorFactory     // scripted tutor when nil
	NewTranscriber stt.Factory      // optional, transcribes each turn
	Voice          Synthesizer      // optional, voice-enabled when set
}

// Server answers practice clients with tutor sentences and signal-based scores
type Server struct {
	config   ServerConfig
	sessions *Registry
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewServer creates a practice server
func NewServer(config ServerConfig) *Server {
	if config.Catalog == nil {
		config.Catalog = themes.Builtin()
	}
	if config.ReplyTimeout == 0 {
		config.ReplyTimeout = 20 * time.Second
	}
	return &Server{
		config:   config,
		sessions: NewRegistry(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: log.With().Str("component", "practice-server").Logger(),
	}
}

// Handler returns the HTTP routes of the server
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(protocol.ChannelPath, s.handleConversation)
	mux.HandleFunc(protocol.ThemesPath, s.handleThemes)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	if s.config.Metrics != nil {
		mux.Handle("/metrics", s.config.Metrics.Handler())
	}
	return mux
}

// Sessions returns the registry of connected peers
func (s *Server) Sessions() *Registry {
	return s.sessions
}

// Shutdown closes every open conversation with a going-away frame
func (s *Server) Shutdown() {
	for _, peer := range s.sessions.Peers() {
		if err := peer.CloseWith(websocket.CloseGoingAway, "server shutdown"); err != nil {
			s.logger.Debug().Err(err).Str("peer", peer.ID).Msg("close frame not sent")
		}
		peer.Conn.Close()
	}
}

func (s *Server) handleThemes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	data, err := json.Marshal(s.config.Catalog)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to encode catalog")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// handleConversation runs one practice session until the client leaves
func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade error")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	peer := &Peer{ID: uuid.NewString(), Conn: conn, tutor: s.newTutor()}
	logger := s.logger.With().Str("peer", peer.ID).Logger()
	s.sessions.Add(peer)
	s.config.Metrics.SessionOpened()
	defer func() {
		peer.dropTranscriber()
		s.sessions.Remove(peer.ID)
		s.config.Metrics.SessionClosed()
		logger.Info().Msg("peer disconnected")
	}()
	logger.Info().Str("remote", r.RemoteAddr).Msg("peer connected")

	voice := protocol.StatusVoiceDisabled
	if s.config.Voice != nil {
		voice = protocol.StatusVoiceEnabled
	}
	if err := s.send(peer, status(protocol.StatusConnected)); err != nil {
		return
	}
	if err := s.send(peer, status(voice)); err != nil {
		return
	}

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug().Err(err).Msg("read ended")
			}
			return
		}

		if mt == websocket.BinaryMessage {
			if !peer.paused {
				s.handleAudio(ctx, peer, data, logger)
			}
			continue
		}

		msg, err := protocol.DecodeOutbound(data)
		if err != nil {
			logger.Warn().Err(err).Msg("dropping malformed message")
			if err := s.send(peer, errorMessage("malformed message")); err != nil {
				return
			}
			continue
		}
		s.config.Metrics.RecordMessageReceived(msg.Type)
		logger.Debug().Str("type", msg.Type).Msg("received message")

		if err := s.dispatch(ctx, peer, msg, logger); err != nil {
			logger.Warn().Err(err).Msg("reply failed")
			return
		}
	}
}

func (s *Server) newTutor() Tutor {
	if s.config.NewTutor != nil {
		return s.config.NewTutor()
	}
	return ScriptedTutor{Delay: s.config.FragmentDelay}
}

func (s *Server) dispatch(ctx context.Context, peer *Peer, msg protocol.Outbound, logger zerolog.Logger) error {
	switch msg.Type {
	case protocol.TypeStartPractice:
		return s.handleStartPractice(ctx, peer, msg, logger)
	case protocol.TypePreference:
		return s.handlePreference(peer, msg, logger)
	case protocol.TypeEndTurn:
		return s.handleEndTurn(ctx, peer, logger)
	case protocol.TypeControl:
		return s.handleControl(peer, msg, logger)
	default:
		return s.send(peer, errorMessage(fmt.Sprintf("unsupported message type %q", msg.Type)))
	}
}

// handleAudio buffers turn audio and forwards it to the turn's transcriber,
// opening one on the first chunk. A failing transcriber is dropped for the
// rest of the turn; scoring does not depend on it.
func (s *Server) handleAudio(ctx context.Context, peer *Peer, data []byte, logger zerolog.Logger) {
	pcm := peer.appendAudio(data)
	if len(pcm) == 0 || s.config.NewTranscriber == nil || peer.sttDown {
		return
	}

	if peer.stt == nil {
		transcriber := s.config.NewTranscriber()
		connectCtx, cancel := context.WithTimeout(ctx, s.config.ReplyTimeout)
		err := transcriber.Connect(connectCtx)
		cancel()
		if err != nil {
			logger.Warn().Err(err).Msg("transcriber unavailable for this turn")
			peer.sttDown = true
			return
		}
		peer.stt = transcriber
	}

	if err := peer.stt.SendAudio(pcm); err != nil {
		logger.Warn().Err(err).Msg("transcriber send failed")
		peer.stt.Close()
		peer.stt = nil
		peer.sttDown = true
	}
}

// transcript finishes the turn's transcriber. It returns an empty string
// when the turn was not transcribed.
func (s *Server) transcript(ctx context.Context, peer *Peer, logger zerolog.Logger) string {
	transcriber := peer.stt
	peer.stt = nil
	peer.sttDown = false
	if transcriber == nil {
		return ""
	}

	finishCtx, cancel := context.WithTimeout(ctx, s.config.ReplyTimeout)
	defer cancel()
	text, err := transcriber.Finish(finishCtx)
	if err != nil {
		logger.Warn().Err(err).Msg("transcript unavailable")
		return ""
	}
	return text
}

func (s *Server) handleStartPractice(ctx context.Context, peer *Peer, msg protocol.Outbound, logger zerolog.Logger) error {
	theme, scenario, err := s.config.Catalog.Resolve(msg.Theme, msg.Scenario)
	if err != nil {
		return s.send(peer, errorMessage(err.Error()))
	}

	peer.paused = false
	peer.takeTurn()
	peer.dropTranscriber()
	peer.Theme, peer.Scenario = theme, scenario
	logger.Info().Str("theme", theme).Str("scenario", scenario).Msg("starting practice round")

	text := fmt.Sprintf("Preparing a practice sentence for %s...", target(theme, scenario))
	if err := s.send(peer, status(text)); err != nil {
		return err
	}

	sentence, err := s.reply(ctx, peer, logger,
		func(ctx context.Context, emit func(string)) (string, error) {
			return peer.tutor.Sentence(ctx, theme, scenario, emit)
		},
		func() string { return practiceSentence(theme, scenario) },
		nil)
	peer.Sentence = sentence
	return err
}

func (s *Server) handlePreference(peer *Peer, msg protocol.Outbound, logger zerolog.Logger) error {
	if msg.Theme == "" || msg.Scenario == "" {
		return nil
	}
	if err := s.config.Catalog.Validate(msg.Theme, msg.Scenario); err != nil {
		return s.send(peer, errorMessage(err.Error()))
	}
	peer.Theme, peer.Scenario = msg.Theme, msg.Scenario
	logger.Info().Str("theme", msg.Theme).Str("scenario", msg.Scenario).Msg("updated practice preference")
	return s.send(peer, status(fmt.Sprintf("Practice focus set to %s.", target(msg.Theme, msg.Scenario))))
}

func (s *Server) handleEndTurn(ctx context.Context, peer *Peer, logger zerolog.Logger) error {
	pcm := peer.takeTurn()
	heard := s.transcript(ctx, peer, logger)
	if peer.paused {
		text := "Practice is paused, resume when you are ready."
		_, err := s.reply(ctx, peer, logger,
			func(ctx context.Context, emit func(string)) (string, error) {
				emit(text)
				return text, nil
			},
			func() string { return text },
			nil)
		return err
	}

	attempt := Attempt{
		Theme:      peer.Theme,
		Scenario:   peer.Scenario,
		Sentence:   peer.Sentence,
		Transcript: heard,
		Score:      PronunciationScore(pcm),
	}
	s.config.Metrics.RecordTurnScored(float64(attempt.Score))
	logger.Info().Int("samples", len(pcm)).Int("score", attempt.Score).Str("heard", heard).Msg("scored turn")

	value := float64(attempt.Score)
	_, err := s.reply(ctx, peer, logger,
		func(ctx context.Context, emit func(string)) (string, error) {
			return peer.tutor.Feedback(ctx, attempt, emit)
		},
		func() string { return feedback(attempt) },
		&value)
	return err
}

func (s *Server) handleControl(peer *Peer, msg protocol.Outbound, logger zerolog.Logger) error {
	switch msg.Action {
	case protocol.ActionPause:
		peer.paused = true
	case protocol.ActionResume:
		peer.paused = false
	default:
		return s.send(peer, errorMessage(fmt.Sprintf("unsupported control action %q", msg.Action)))
	}
	logger.Info().Bool("paused", peer.paused).Msg("control")
	paused := peer.paused
	return s.send(peer, protocol.Inbound{Type: protocol.TypePauseState, Paused: &paused})
}

// reply streams compose's fragments as partial responses, then sends the
// final response and the pause state. When compose fails before streaming
// anything, the fallback text is sent instead. Speech is attached to the
// final response when voice is enabled and the session is not paused.
func (s *Server) reply(ctx context.Context, peer *Peer, logger zerolog.Logger,
	compose func(ctx context.Context, emit func(string)) (string, error),
	fallback func() string, score *float64) (string, error) {
	var sendErr error
	streamed := 0
	emit := func(fragment string) {
		if sendErr != nil || fragment == "" {
			return
		}
		f := fragment
		sendErr = s.send(peer, protocol.Inbound{Type: protocol.TypePartialResponse, Text: &f})
		streamed++
	}

	composeCtx, cancel := context.WithTimeout(ctx, s.config.ReplyTimeout)
	text, err := compose(composeCtx, emit)
	cancel()
	if sendErr != nil {
		return text, sendErr
	}
	if err != nil || text == "" {
		logger.Warn().Err(err).Msg("tutor reply failed, using scripted reply")
		text = fallback()
		if streamed == 0 {
			emit(text)
			if sendErr != nil {
				return text, sendErr
			}
		}
	}

	paused := peer.paused
	final := protocol.Inbound{
		Type:   protocol.TypeFinalResponse,
		Text:   &text,
		Score:  score,
		Paused: &paused,
	}
	if s.config.Voice != nil && !paused {
		voiceCtx, cancel := context.WithTimeout(ctx, s.config.ReplyTimeout)
		speech, err := s.config.Voice.SynthesizeBase64(voiceCtx, text)
		cancel()
		if err != nil {
			logger.Warn().Err(err).Msg("speech synthesis failed, sending text only")
		} else {
			final.Audio = speech
		}
	}
	if err := s.send(peer, final); err != nil {
		return text, err
	}
	return text, s.send(peer, protocol.Inbound{Type: protocol.TypePauseState, Paused: &paused})
}

func (s *Server) send(peer *Peer, msg protocol.Inbound) error {
	if err := peer.SendMessage(msg); err != nil {
		return fmt.Errorf("send %s: %w", msg.Type, err)
	}
	s.config.Metrics.RecordMessageSent(msg.Type)
	return nil
}

func status(message string) protocol.Inbound {
	return protocol.Inbound{Type: protocol.TypeStatus, Message: message}
}

func errorMessage(message string) protocol.Inbound {
	return protocol.Inbound{Type: protocol.TypeError, Message: message}
}
