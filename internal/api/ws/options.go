package ws

import (
	"ai-realtime-bridge-service/internal/config"
	"ai-realtime-bridge-service/internal/realtime/provider"
	"ai-realtime-bridge-service/internal/realtime/session"
)

// sessionOptions builds the immutable session snapshot from a profile.
func sessionOptions(p config.Profile, streamID string) (session.Options, error) {
	pp, err := p.ProviderProfile()
	if err != nil {
		return session.Options{}, err
	}

	opts := session.Options{
		Provider:         provider.ID(p.Provider),
		Profile:          pp,
		ClientCodec:      provider.Codec(p.ClientCodec),
		RecordingEnabled: p.Recording,
		Greeting:         p.Greeting,
		StreamID:         streamID,
	}
	if f := p.IdleFollowUp; f != nil {
		opts.IdleFollowUp = &session.IdleFollowUp{
			TimeoutSeconds:  f.TimeoutSeconds,
			FollowUpMessage: f.FollowUpMessage,
			SkipRounds:      f.SkipRounds,
		}
	}
	return opts, nil
}
