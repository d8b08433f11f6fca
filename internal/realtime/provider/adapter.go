// Package provider defines the contract between the session engine and the
// realtime-AI vendors it can talk to, plus the canonical event vocabulary.
package provider

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// ID identifies a provider implementation.
type ID string

const (
	OpenAI    ID = "openai"
	DashScope ID = "dashscope"
)

// Codec is an audio encoding negotiated with a provider.
type Codec string

const (
	// CodecPCM16 is 16-bit little-endian PCM, 24kHz mono.
	CodecPCM16 Codec = "pcm16"
	// CodecG711ULaw is G.711 μ-law, 8kHz mono.
	CodecG711ULaw Codec = "g711_ulaw"
	// CodecG711ALaw is G.711 A-law, 8kHz mono.
	CodecG711ALaw Codec = "g711_alaw"
)

// SampleRate returns the sample rate the codec implies.
func (c Codec) SampleRate() int {
	switch c {
	case CodecG711ULaw, CodecG711ALaw:
		return 8000
	default:
		return 24000
	}
}

// Valid reports whether c is a known codec.
func (c Codec) Valid() bool {
	switch c {
	case CodecPCM16, CodecG711ULaw, CodecG711ALaw:
		return true
	}
	return false
}

// Errors shared by adapter implementations.
var (
	ErrUnknownProvider   = errors.New("unknown provider")
	ErrMissingServiceURL = errors.New("provider service URL is required")
	ErrUnsupportedCodec  = errors.New("codec not supported by provider")
)

// Profile is the resolved model configuration for one session. Tools and
// TurnDetection are passed through to the provider verbatim.
type Profile struct {
	ServiceURL    string
	APIKey        string
	Region        string
	Model         string
	Voice         string
	Language      string
	Instructions  string
	Tools         []json.RawMessage
	TurnDetection json.RawMessage
	InputCodec    Codec
	OutputCodec   Codec
}

// Adapter translates between canonical session operations and one vendor's
// wire JSON. Implementations are stateless and safe for concurrent use.
type Adapter interface {
	// ID returns the provider identity.
	ID() ID

	// Supports reports whether the provider accepts the codec for input audio.
	Supports(codec Codec) bool

	// Endpoint returns the WebSocket URL and auth headers for the profile.
	Endpoint(p Profile) (string, http.Header, error)

	// SessionSetup builds the initial session-configuration payload.
	SessionSetup(p Profile) ([]byte, error)

	// AudioAppend wraps a base64 audio payload in the provider's append message.
	AudioAppend(audioBase64 string, codec Codec) ([]byte, error)

	// UserText builds a user text message.
	UserText(text string) ([]byte, error)

	// TriggerResponse builds the explicit "respond now" message. Providers that
	// infer turns return nil.
	TriggerResponse() ([]byte, error)

	// Parse turns one wire message into exactly one canonical event. It never
	// fails: malformed input yields an Unknown event carrying the raw text.
	Parse(raw []byte) Event
}

// ResolveURL substitutes a {region} placeholder in a service URL.
func ResolveURL(serviceURL, region string) (string, error) {
	if serviceURL == "" {
		return "", ErrMissingServiceURL
	}
	if strings.Contains(serviceURL, "{region}") {
		if region == "" {
			return "", errors.New("service URL needs a region")
		}
		serviceURL = strings.ReplaceAll(serviceURL, "{region}", region)
	}
	return serviceURL, nil
}
