package session

import (
	"context"
	"fmt"
	"time"

	"ai-realtime-bridge-service/internal/realtime/provider"
)

// IdleFollowUp makes the AI speak up when the caller stays silent after a
// turn. The follow-up is suppressed for the first SkipRounds turns.
type IdleFollowUp struct {
	TimeoutSeconds  float64
	FollowUpMessage string
	SkipRounds      int64
}

// Timeout returns the idle timeout as a duration.
func (p IdleFollowUp) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds * float64(time.Second))
}

// Transcript is one completed utterance.
type Transcript struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Callbacks connect a session to the caller's business logic. Every field is
// optional. Callbacks run after the streaming path has been torn down,
// except OnSessionReady which runs while the session is live.
type Callbacks struct {
	// OnSessionReady fires once, when the provider confirms the session.
	// sendText sends a user message followed by a response trigger.
	OnSessionReady func(ctx context.Context, sessionID string, sendText func(string) error)

	// OnRecordingComplete receives the WAV-encoded recording when it is non-empty.
	OnRecordingComplete func(ctx context.Context, sessionID string, wav []byte) error

	// OnTranscriptionsComplete receives the completed transcripts in order.
	OnTranscriptionsComplete func(ctx context.Context, sessionID string, transcripts []Transcript) error

	// OnSessionEnded fires exactly once per session.
	OnSessionEnded func(ctx context.Context, sessionID string) error
}

// Options is the immutable configuration snapshot for one session.
type Options struct {
	Provider provider.ID
	Profile  provider.Profile

	// ClientCodec is the codec on the client socket. Defaults to the
	// profile input codec, then pcm16.
	ClientCodec provider.Codec

	RecordingEnabled bool
	Greeting         string
	IdleFollowUp     *IdleFollowUp

	// StreamID correlates client notifications; generated when empty.
	StreamID string

	Callbacks Callbacks
}

func (o Options) validate() error {
	if o.Provider == "" {
		return fmt.Errorf("%w: provider is required", ErrInvalidOptions)
	}
	if o.ClientCodec != "" && !o.ClientCodec.Valid() {
		return fmt.Errorf("%w: unknown client codec %q", ErrInvalidOptions, o.ClientCodec)
	}
	if p := o.IdleFollowUp; p != nil {
		if p.TimeoutSeconds <= 0 {
			return fmt.Errorf("%w: idle follow-up timeout must be positive", ErrInvalidOptions)
		}
		if p.FollowUpMessage == "" {
			return fmt.Errorf("%w: idle follow-up message is required", ErrInvalidOptions)
		}
	}
	return nil
}

// codecPlan is the result of matching the client codec against what the
// provider accepts.
type codecPlan struct {
	client    provider.Codec
	input     provider.Codec // negotiated with the provider
	output    provider.Codec
	transcode bool // client audio must be converted before forwarding
}

func negotiateCodecs(a provider.Adapter, opts Options) (codecPlan, error) {
	client := opts.ClientCodec
	if client == "" {
		client = opts.Profile.InputCodec
	}
	if client == "" {
		client = provider.CodecPCM16
	}
	if !client.Valid() {
		return codecPlan{}, fmt.Errorf("%w: unknown codec %q", ErrInvalidOptions, client)
	}

	plan := codecPlan{client: client, input: client}
	if !a.Supports(client) {
		if !a.Supports(provider.CodecPCM16) {
			return codecPlan{}, fmt.Errorf("%w: %s accepts neither %s nor pcm16", provider.ErrUnsupportedCodec, a.ID(), client)
		}
		plan.input = provider.CodecPCM16
		plan.transcode = true
	}

	plan.output = opts.Profile.OutputCodec
	if plan.output == "" || !a.Supports(plan.output) {
		plan.output = provider.CodecPCM16
	}
	return plan, nil
}
