// Package schema classifies inbound client messages by shape.
package schema

import (
	"errors"

	"github.com/tidwall/gjson"
)

// Kind is the classification of a client message.
type Kind int

const (
	KindUnknown Kind = iota
	KindAudio
	KindText
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindAudio:
		return "audio"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// ErrMalformed is returned for messages that are not valid JSON.
var ErrMalformed = errors.New("client message is not valid JSON")

// Matcher extracts a value from a message at a gjson path.
type Matcher struct {
	Path string
	Kind Kind
}

// DefaultMatchers are tried in order: a telephony-style audio frame, then a
// plain text field.
var DefaultMatchers = []Matcher{
	{Path: "media.payload", Kind: KindAudio},
	{Path: "text", Kind: KindText},
}

// Message is a classified client message. Value is the base64 payload for
// audio and the text for text.
type Message struct {
	Kind  Kind
	Value string
}

// Classifier applies an ordered list of matchers. The first matcher that
// finds a non-empty string wins.
type Classifier struct {
	matchers []Matcher
}

// New creates a Classifier. With no matchers it uses DefaultMatchers.
func New(matchers ...Matcher) *Classifier {
	if len(matchers) == 0 {
		matchers = DefaultMatchers
	}
	return &Classifier{matchers: matchers}
}

// Classify returns the first match. Valid JSON with no match yields
// KindUnknown and a nil error.
func (c *Classifier) Classify(raw []byte) (Message, error) {
	if !gjson.ValidBytes(raw) {
		return Message{}, ErrMalformed
	}
	for _, m := range c.matchers {
		v := gjson.GetBytes(raw, m.Path)
		if v.Type != gjson.String || v.Str == "" {
			continue
		}
		return Message{Kind: m.Kind, Value: v.Str}, nil
	}
	return Message{Kind: KindUnknown}, nil
}
