package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"ai-realtime-bridge-service/internal/realtime/provider"
)

// ErrProfileNotFound is returned when a requested profile does not exist.
var ErrProfileNotFound = errors.New("profile not found")

// IdleFollowUp is the YAML form of an inactivity follow-up policy.
type IdleFollowUp struct {
	TimeoutSeconds  float64 `yaml:"timeout_seconds"`
	FollowUpMessage string  `yaml:"follow_up_message"`
	SkipRounds      int64   `yaml:"skip_rounds"`
}

// Profile is one named assistant configuration.
type Profile struct {
	Name          string           `yaml:"-"`
	Provider      string           `yaml:"provider"`
	ServiceURL    string           `yaml:"service_url"`
	APIKey        string           `yaml:"api_key"`
	APIKeyEnv     string           `yaml:"api_key_env"`
	Region        string           `yaml:"region"`
	Model         string           `yaml:"model"`
	Voice         string           `yaml:"voice"`
	Language      string           `yaml:"language"`
	Instructions  string           `yaml:"instructions"`
	Tools         []map[string]any `yaml:"tools"`
	TurnDetection map[string]any   `yaml:"turn_detection"`
	InputCodec    string           `yaml:"input_codec"`
	OutputCodec   string           `yaml:"output_codec"`
	ClientCodec   string           `yaml:"client_codec"`
	Recording     bool             `yaml:"recording"`
	Greeting      string           `yaml:"greeting"`
	IdleFollowUp  *IdleFollowUp    `yaml:"idle_follow_up"`
}

// Profiles is a set of named profiles with a default.
type Profiles struct {
	byName      map[string]Profile
	defaultName string
}

// LoadProfiles reads and validates a profiles file.
func LoadProfiles(path, defaultName string) (*Profiles, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}
	return ParseProfiles(data, defaultName)
}

// ParseProfiles parses a YAML map of profile name to profile.
func ParseProfiles(data []byte, defaultName string) (*Profiles, error) {
	raw := map[string]Profile{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}
	for name, p := range raw {
		p.Name = name
		if err := p.validate(); err != nil {
			return nil, fmt.Errorf("profile %q: %w", name, err)
		}
		raw[name] = p
	}
	return &Profiles{byName: raw, defaultName: defaultName}, nil
}

// Get returns the named profile, or the default profile for an empty name.
func (ps *Profiles) Get(name string) (Profile, error) {
	if name == "" {
		name = ps.defaultName
	}
	p, ok := ps.byName[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", ErrProfileNotFound, name)
	}
	return p, nil
}

// Names returns the profile names in sorted order.
func (ps *Profiles) Names() []string {
	names := make([]string, 0, len(ps.byName))
	for n := range ps.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (p Profile) validate() error {
	switch provider.ID(p.Provider) {
	case provider.OpenAI, provider.DashScope:
	case "":
		return errors.New("provider is required")
	default:
		return fmt.Errorf("%w: %s", provider.ErrUnknownProvider, p.Provider)
	}
	for _, c := range []string{p.InputCodec, p.OutputCodec, p.ClientCodec} {
		if c != "" && !provider.Codec(c).Valid() {
			return fmt.Errorf("unknown codec %q", c)
		}
	}
	if f := p.IdleFollowUp; f != nil && (f.TimeoutSeconds <= 0 || f.FollowUpMessage == "") {
		return errors.New("idle_follow_up needs a positive timeout_seconds and a follow_up_message")
	}
	return nil
}

// ProviderProfile converts the profile into the provider's model
// configuration. An api_key_env reference is resolved at call time.
func (p Profile) ProviderProfile() (provider.Profile, error) {
	out := provider.Profile{
		ServiceURL:   p.ServiceURL,
		APIKey:       p.APIKey,
		Region:       p.Region,
		Model:        p.Model,
		Voice:        p.Voice,
		Language:     p.Language,
		Instructions: p.Instructions,
		InputCodec:   provider.Codec(p.InputCodec),
		OutputCodec:  provider.Codec(p.OutputCodec),
	}
	if out.APIKey == "" && p.APIKeyEnv != "" {
		out.APIKey = os.Getenv(p.APIKeyEnv)
	}
	for i, tool := range p.Tools {
		raw, err := json.Marshal(tool)
		if err != nil {
			return provider.Profile{}, fmt.Errorf("tool %d: %w", i, err)
		}
		out.Tools = append(out.Tools, raw)
	}
	if p.TurnDetection != nil {
		raw, err := json.Marshal(p.TurnDetection)
		if err != nil {
			return provider.Profile{}, fmt.Errorf("turn_detection: %w", err)
		}
		out.TurnDetection = raw
	}
	return out, nil
}
