package session

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ai-realtime-bridge-service/internal/audio"
	"ai-realtime-bridge-service/internal/observability/logging"
	"ai-realtime-bridge-service/internal/observability/metrics"
	"ai-realtime-bridge-service/internal/realtime/provider"
	"ai-realtime-bridge-service/internal/realtime/timer"
	"ai-realtime-bridge-service/internal/realtime/wire"
	"ai-realtime-bridge-service/internal/schema"
)

// Session is the state owned by exactly one conversation.
type Session struct {
	id       string
	streamID string
	opts     Options
	codecs   codecPlan

	adapter  provider.Adapter
	profile  provider.Profile
	endpoint string
	setup    []byte

	engine     *Engine
	timers     *timer.Manager
	metrics    *metrics.Metrics
	classifier *schema.Classifier
	log        zerolog.Logger

	// ctx is cancelled exactly once, by disconnectFromProvider.
	ctx    context.Context
	cancel context.CancelFunc
	parent context.Context

	lifecycle *Lifecycle

	client ClientConn
	// sendMu serializes writes to the client socket.
	sendMu       sync.Mutex
	clientClosed bool

	connMu       sync.Mutex
	providerConn ProviderConn
	inbound      <-chan wire.Inbound
	dial         Dialer
	// textMu keeps a user message and its response trigger adjacent.
	textMu sync.Mutex

	dispatching  atomic.Bool
	dispatchDone chan struct{}

	// round is written only by the dispatch loop on TurnCompleted.
	round        atomic.Int64
	isAiSpeaking atomic.Bool

	bufMu        sync.Mutex
	audioBuf     *bytes.Buffer // nil when recording is off or finalized
	finalizeOnce sync.Once

	inputTranscoder  *audio.Transcoder // nil when the client sends pcm16
	outputTranscoder *audio.Transcoder // nil when the provider sends pcm16

	transcriptMu sync.Mutex
	transcripts  []Transcript

	readyOnce sync.Once

	faultMu       sync.Mutex
	providerFault string
	graceful      bool
	closeCode     int
}

func newSession(parent context.Context, e *Engine, client ClientConn, opts Options) (*Session, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	adapter, err := e.cfg.Registry.Lookup(opts.Provider)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	plan, err := negotiateCodecs(adapter, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}

	profile := opts.Profile
	profile.InputCodec = plan.input
	profile.OutputCodec = plan.output

	endpoint, _, err := adapter.Endpoint(profile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	setup, err := adapter.SessionSetup(profile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}

	s := &Session{
		id:           uuid.NewString(),
		streamID:     opts.StreamID,
		opts:         opts,
		codecs:       plan,
		adapter:      adapter,
		profile:      profile,
		endpoint:     endpoint,
		setup:        setup,
		engine:       e,
		timers:       e.cfg.Timers,
		metrics:      e.cfg.Metrics,
		classifier:   e.cfg.Classifier,
		parent:       parent,
		lifecycle:    NewLifecycle(),
		client:       client,
		dial:         e.cfg.Dial,
		dispatchDone: make(chan struct{}),
	}
	if s.streamID == "" {
		s.streamID = uuid.NewString()
	}
	s.ctx, s.cancel = context.WithCancel(parent)
	s.log = logging.WithSession(s.id, s.streamID, string(adapter.ID()))

	if plan.client != provider.CodecPCM16 {
		if s.inputTranscoder, err = audio.NewTranscoder(plan.client); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
		}
	}
	if opts.RecordingEnabled {
		s.audioBuf = &bytes.Buffer{}
		if plan.output != provider.CodecPCM16 {
			if s.outputTranscoder, err = audio.NewTranscoder(plan.output); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
			}
		}
	}
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// StreamID returns the stream id used in client notifications and timer keys.
func (s *Session) StreamID() string { return s.streamID }

// Round returns the number of completed AI turns.
func (s *Session) Round() int64 { return s.round.Load() }

// IsAiSpeaking reports whether an AI turn is in progress.
func (s *Session) IsAiSpeaking() bool { return s.isAiSpeaking.Load() }

// State returns the lifecycle state.
func (s *Session) State() State { return s.lifecycle.State() }

func (s *Session) idleTimerKey() string {
	return "idle:" + s.streamID
}

func (s *Session) enqueueTranscript(t Transcript) {
	s.transcriptMu.Lock()
	s.transcripts = append(s.transcripts, t)
	s.transcriptMu.Unlock()
}

func (s *Session) drainTranscripts() []Transcript {
	s.transcriptMu.Lock()
	defer s.transcriptMu.Unlock()
	out := s.transcripts
	s.transcripts = nil
	return out
}

// setProviderFault records the first provider-side reason for ending the
// session.
func (s *Session) setProviderFault(reason string) {
	s.faultMu.Lock()
	if s.providerFault == "" {
		s.providerFault = reason
	}
	s.faultMu.Unlock()
}

func (s *Session) fault() string {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	return s.providerFault
}

func (s *Session) failureLabel() string {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	switch {
	case s.providerFault != "":
		return "provider"
	case s.graceful:
		return ""
	case s.parent.Err() != nil:
		return "cancelled"
	default:
		return "client_aborted"
	}
}

func (s *Session) markGraceful(code int) {
	s.faultMu.Lock()
	s.graceful = true
	s.closeCode = code
	s.faultMu.Unlock()
}

func (s *Session) closedGracefully() (bool, int) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	return s.graceful, s.closeCode
}
