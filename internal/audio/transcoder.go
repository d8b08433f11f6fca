package audio

import (
	"fmt"
	"sync"

	resampling "github.com/tphakala/go-audio-resampling"

	"ai-realtime-bridge-service/internal/realtime/provider"
)

// Transcoder turns audio in a source codec into PCM16 at 24 kHz mono.
// It keeps resampler state between calls, so one Transcoder must be used
// for one continuous stream. Safe for concurrent use.
type Transcoder struct {
	src provider.Codec

	mu        sync.Mutex
	resampler resampling.Resampler
}

// NewTranscoder creates a Transcoder for src. PCM16 input passes through.
func NewTranscoder(src provider.Codec) (*Transcoder, error) {
	if !src.Valid() {
		return nil, fmt.Errorf("%w: %q", provider.ErrUnsupportedCodec, src)
	}
	t := &Transcoder{src: src}
	if src == provider.CodecPCM16 {
		return t, nil
	}

	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(src.SampleRate()),
		OutputRate: float64(provider.CodecPCM16.SampleRate()),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create resampler: %w", err)
	}
	t.resampler = r
	return t, nil
}

// Source returns the codec this Transcoder reads.
func (t *Transcoder) Source() provider.Codec {
	return t.src
}

// Passthrough reports whether input is already PCM16 24 kHz.
func (t *Transcoder) Passthrough() bool {
	return t.resampler == nil
}

// Process converts one chunk. The resampler may hold back a few samples, so
// output length is not an exact multiple of the input length.
func (t *Transcoder) Process(chunk []byte) ([]byte, error) {
	var pcm []byte
	switch t.src {
	case provider.CodecPCM16:
		return chunk, nil
	case provider.CodecG711ULaw:
		pcm = DecodeULaw(chunk)
	case provider.CodecG711ALaw:
		pcm = DecodeALaw(chunk)
	default:
		return nil, fmt.Errorf("%w: %q", provider.ErrUnsupportedCodec, t.src)
	}

	input := make([]float64, len(pcm)/2)
	for i := range input {
		s := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		input[i] = float64(s) / 32768.0
	}

	t.mu.Lock()
	output, err := t.resampler.Process(input)
	t.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("resample error: %w", err)
	}

	out := make([]byte, len(output)*2)
	for i, s := range output {
		sample := int16(s * 32767.0)
		if s > 1.0 {
			sample = 32767
		} else if s < -1.0 {
			sample = -32768
		}
		out[i*2] = byte(sample)
		out[i*2+1] = byte(sample >> 8)
	}
	return out, nil
}
