package schema

import (
	"errors"
	"testing"
)

func TestClassifier_Classify(t *testing.T) {
	c := New()

	tests := []struct {
		name      string
		raw       string
		wantKind  Kind
		wantValue string
		wantErr   error
	}{
		{"audio", `{"media":{"payload":"AAAA"}}`, KindAudio, "AAAA", nil},
		{"telephony frame", `{"event":"media","streamSid":"MZ1","media":{"track":"inbound","payload":"//8="}}`, KindAudio, "//8=", nil},
		{"text", `{"text":"hello"}`, KindText, "hello", nil},
		{"audio wins over text", `{"text":"hi","media":{"payload":"AAAA"}}`, KindAudio, "AAAA", nil},
		{"empty payload falls through", `{"media":{"payload":""},"text":"hi"}`, KindText, "hi", nil},
		{"non-string text", `{"text":42}`, KindUnknown, "", nil},
		{"unknown shape", `{"event":"start"}`, KindUnknown, "", nil},
		{"malformed", `{"text":`, KindUnknown, "", ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := c.Classify([]byte(tt.raw))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if msg.Kind != tt.wantKind {
				t.Errorf("kind = %s, want %s", msg.Kind, tt.wantKind)
			}
			if msg.Value != tt.wantValue {
				t.Errorf("value = %q, want %q", msg.Value, tt.wantValue)
			}
		})
	}
}

func TestClassifier_CustomMatchers(t *testing.T) {
	c := New(Matcher{Path: "input.text", Kind: KindText})

	msg, err := c.Classify([]byte(`{"input":{"text":"nested"},"text":"ignored"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Kind != KindText || msg.Value != "nested" {
		t.Errorf("unexpected message: %+v", msg)
	}
}
