package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"example.com/voice_practice/pkg/audio"
	"example.com/voice_practice/pkg/capture"
	"example.com/voice_practice/pkg/metrics"
	"example.com/voice_practice/pkg/protocol"
)

// Transport is the conversation channel. Sends on a closed channel are
// dropped and return nil.
type Transport interface {
	Connect(ctx context.Context) error
	Send(msg protocol.Outbound) error
	SendAudio(pcm []int16) error
	Close(reason string) error
}

// Presenter renders session output
type Presenter interface {
	Status(text string, tone Tone)
	AppendAssistant(text string)
	FinalizeAssistant(text *string)
	UserMessage(text string)
	Score(score float64)
	Phase(phase Phase)
}

// Player plays base64 encoded synthesized speech
type Player interface {
	Play(data string) error
}

// SourceFactory builds the capture source delivering frames to handler
type SourceFactory func(handler capture.FrameHandler) capture.Source

// RunnerConfig holds the collaborators of a Runner
type RunnerConfig struct {
	Theme          string
	Scenario       string
	Transport      Transport
	NewSource      SourceFactory
	Presenter      Presenter
	Player         Player              // optional
	Recorder       *audio.TurnRecorder // optional
	Metrics        *metrics.Metrics    // optional
	QueueSize      int                 // pipeline frame queue
	ConnectTimeout time.Duration
}

// Runner applies events to the session state on a single goroutine and
// executes the resulting commands
type Runner struct {
	config    RunnerConfig
	sessionID string
	events    chan Event
	pipeline  *audio.Pipeline
	source    capture.Source
	current   State // owned by the Run goroutine

	mu       sync.RWMutex
	snapshot State

	turnEnded time.Time
	done      chan struct{}
	logger    zerolog.Logger
}

// NewRunner creates a runner; call Run to start processing events
func NewRunner(config RunnerConfig) *Runner {
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 10 * time.Second
	}
	sessionID := uuid.New().String()
	r := &Runner{
		config:    config,
		sessionID: sessionID,
		events:    make(chan Event, 64),
		current:   InitialState(config.Theme, config.Scenario),
		snapshot:  InitialState(config.Theme, config.Scenario),
		done:      make(chan struct{}),
		logger:    log.With().Str("component", "session").Str("session_id", sessionID).Logger(),
	}
	r.pipeline = audio.NewPipeline(audio.PipelineConfig{
		QueueSize: config.QueueSize,
		Sink:      r.sendChunk,
		OnDrop:    config.Metrics.RecordFrameDropped,
		Logger:    r.logger,
	})
	return r
}

// SessionID identifies this session in logs and recordings
func (r *Runner) SessionID() string {
	return r.sessionID
}

// State returns the state as of the last fully executed event
func (r *Runner) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot
}

// ErrStopped is returned by Post once Run has returned
var ErrStopped = errors.New("session runner stopped")

// Post queues an event. It blocks while the queue is full.
func (r *Runner) Post(ctx context.Context, ev Event) error {
	select {
	case r.events <- ev:
		return nil
	case <-r.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HandleMessage posts an inbound control message; it matches client.MessageCallback
func (r *Runner) HandleMessage(msg protocol.Inbound) {
	r.post(MessageReceived{Message: msg})
}

// HandleClose posts a channel close; it matches client.CloseCallback
func (r *Runner) HandleClose(reason string) {
	r.post(ChannelClosed{Reason: reason})
}

// HandleError posts a channel error; it matches client.ErrorCallback
func (r *Runner) HandleError(err error) {
	r.post(ChannelError{Err: err})
}

func (r *Runner) post(ev Event) {
	if err := r.Post(context.Background(), ev); err != nil {
		r.logger.Debug().Err(err).Msgf("dropping %T after shutdown", ev)
	}
}

// PushFrame hands a captured frame to the audio pipeline without blocking
func (r *Runner) PushFrame(samples []float32) {
	r.pipeline.Push(samples)
}

// Run processes events until ctx is cancelled, then releases the device
// and closes the channel
func (r *Runner) Run(ctx context.Context) error {
	go r.pipeline.Run(ctx)

	r.logger.Info().
		Str("theme", r.current.Theme).
		Str("scenario", r.current.Scenario).
		Msg("session runner started")

	for {
		select {
		case <-ctx.Done():
			close(r.done)
			r.shutdown()
			return ctx.Err()
		case ev := <-r.events:
			r.apply(ctx, ev)
		}
	}
}

func (r *Runner) apply(ctx context.Context, ev Event) {
	before := r.current.Phase()
	next, cmds := Transition(r.current, ev)
	r.current = next

	for _, cmd := range cmds {
		r.execute(ctx, cmd)
	}

	r.mu.Lock()
	r.snapshot = next
	r.mu.Unlock()

	after := next.Phase()
	if after != before {
		r.logger.Debug().
			Str("event", eventName(ev)).
			Str("from", before.String()).
			Str("to", after.String()).
			Msg("phase changed")
		r.config.Metrics.SetPhase(int(after))
	}
	if r.config.Presenter != nil {
		r.config.Presenter.Phase(after)
	}
}

func (r *Runner) execute(ctx context.Context, cmd Command) {
	switch c := cmd.(type) {
	case OpenChannel:
		go r.dial(ctx)

	case CloseChannel:
		// Close reports back through HandleClose, which posts to this loop
		go func() {
			if err := r.config.Transport.Close(c.Reason); err != nil {
				r.logger.Warn().Err(err).Msg("close failed")
			}
		}()

	case SendControl:
		if err := r.config.Transport.Send(c.Message); err != nil {
			r.logger.Warn().Err(err).Str("type", c.Message.Type).Msg("send failed")
			return
		}
		r.config.Metrics.RecordMessageSent(c.Message.Type)
		if c.Message.Type == protocol.TypeEndTurn {
			r.turnEnded = time.Now()
			r.config.Metrics.RecordTurn()
		}

	case InitCapture:
		if r.source == nil {
			if r.config.NewSource == nil {
				go r.post(CaptureFailed{Err: capture.ErrInitFailed})
				return
			}
			r.source = r.config.NewSource(r.PushFrame)
		}
		go r.initCapture(ctx, r.source)

	case BeginTurn:
		r.beginTurn(ctx, c.SampleRate)

	case EndCapture:
		r.pipeline.End()
		if r.source != nil {
			if err := r.source.Suspend(); err != nil {
				r.logger.Warn().Err(err).Msg("failed to suspend capture")
			}
		}

	case FlushAudio:
		if err := r.pipeline.Flush(ctx); err != nil {
			r.logger.Warn().Err(err).Msg("flush failed")
		}
		path, samples, err := r.config.Recorder.End()
		if err != nil {
			r.logger.Warn().Err(err).Msg("failed to finalize recording")
		} else if path != "" {
			r.logger.Info().Str("path", path).Int("samples", samples).Msg("turn recorded")
		}

	case HoldAudio:
		r.pipeline.Hold(c.Held)

	case PlayAudio:
		if r.config.Player == nil {
			return
		}
		if err := r.config.Player.Play(c.Data); err != nil {
			r.logger.Warn().Err(err).Msg("playback failed")
		}

	case ShowStatus:
		if r.config.Presenter != nil {
			r.config.Presenter.Status(c.Text, c.Tone)
		}

	case AppendAssistant:
		if r.config.Presenter != nil {
			r.config.Presenter.AppendAssistant(c.Text)
		}

	case FinalizeAssistant:
		if !r.turnEnded.IsZero() {
			r.config.Metrics.RecordFeedback(time.Since(r.turnEnded))
			r.turnEnded = time.Time{}
		}
		if r.config.Presenter != nil {
			r.config.Presenter.FinalizeAssistant(c.Text)
		}

	case ShowUserMessage:
		if r.config.Presenter != nil {
			r.config.Presenter.UserMessage(c.Text)
		}

	case ShowScore:
		r.config.Metrics.RecordScore(c.Score)
		if r.config.Presenter != nil {
			r.config.Presenter.Score(c.Score)
		}
	}
}

func (r *Runner) dial(ctx context.Context) {
	dialCtx, cancel := context.WithTimeout(ctx, r.config.ConnectTimeout)
	defer cancel()

	if err := r.config.Transport.Connect(dialCtx); err != nil {
		r.logger.Warn().Err(err).Msg("connect failed")
		r.config.Metrics.RecordConnect(false)
		r.post(ChannelFailed{Err: err})
		return
	}
	r.config.Metrics.RecordConnect(true)
	r.post(ChannelOpened{})
}

func (r *Runner) initCapture(ctx context.Context, src capture.Source) {
	if err := src.Init(ctx); err != nil {
		if !errors.Is(err, capture.ErrInitFailed) {
			err = errors.Join(capture.ErrInitFailed, err)
		}
		r.logger.Warn().Err(err).Msg("capture init failed")
		r.post(CaptureFailed{Err: err})
		return
	}
	r.post(CaptureReady{SampleRate: src.SampleRate()})
}

func (r *Runner) beginTurn(ctx context.Context, sampleRate int) {
	if r.source == nil {
		r.logger.Error().Msg("turn started without a capture source")
		return
	}
	if err := r.pipeline.Begin(ctx, sampleRate); err != nil {
		r.logger.Error().Err(err).Msg("failed to begin turn")
		return
	}
	if err := r.config.Recorder.Begin(r.sessionID, time.Now()); err != nil {
		r.logger.Warn().Err(err).Msg("failed to start turn recording")
	}
	if err := r.source.Resume(); err != nil {
		r.logger.Error().Err(err).Msg("failed to resume capture")
		return
	}
	r.logger.Info().Int("input_rate", sampleRate).Msg("turn started")
}

// sendChunk runs on the pipeline goroutine
func (r *Runner) sendChunk(pcm []int16, final bool) {
	if err := r.config.Transport.SendAudio(pcm); err != nil {
		r.logger.Warn().Err(err).Int("samples", len(pcm)).Msg("audio send failed")
	}
	if err := r.config.Recorder.Write(pcm); err != nil {
		r.logger.Warn().Err(err).Msg("failed to record chunk")
	}
	r.config.Metrics.RecordChunk(len(pcm))
	if final {
		r.logger.Debug().Int("samples", len(pcm)).Msg("flushed final chunk")
	}
}

func (r *Runner) shutdown() {
	r.pipeline.End()
	if r.source != nil {
		if err := r.source.Close(); err != nil {
			r.logger.Warn().Err(err).Msg("failed to close capture")
		}
	}
	if _, _, err := r.config.Recorder.End(); err != nil {
		r.logger.Warn().Err(err).Msg("failed to finalize recording")
	}
	if err := r.config.Transport.Close("client shutdown"); err != nil {
		r.logger.Warn().Err(err).Msg("close failed")
	}
	r.logger.Info().Msg("session runner stopped")
}

func eventName(ev Event) string {
	switch ev.(type) {
	case StartPractice:
		return "start-practice"
	case StartRecording:
		return "start-recording"
	case StopRecording:
		return "stop-recording"
	case ChangePreference:
		return "change-preference"
	case RequestPause:
		return "request-pause"
	case Disconnect:
		return "disconnect"
	case ChannelOpened:
		return "channel-opened"
	case ChannelFailed:
		return "channel-failed"
	case ChannelClosed:
		return "channel-closed"
	case ChannelError:
		return "channel-error"
	case MessageReceived:
		return "message-received"
	case CaptureReady:
		return "capture-ready"
	case CaptureFailed:
		return "capture-failed"
	default:
		return "unknown"
	}
}
