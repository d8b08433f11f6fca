package dashscope

import "encoding/json"

type clientEvent struct {
	EventID  string           `json:"event_id"`
	Type     string           `json:"type"`
	Session  *sessionConfig   `json:"session,omitempty"`
	Audio    string           `json:"audio,omitempty"`
	Item     *item            `json:"item,omitempty"`
	Response *responseOptions `json:"response,omitempty"`
}

type sessionConfig struct {
	Modalities              []string          `json:"modalities"`
	Voice                   string            `json:"voice,omitempty"`
	Instructions            string            `json:"instructions,omitempty"`
	InputAudioFormat        string            `json:"input_audio_format"`
	OutputAudioFormat       string            `json:"output_audio_format"`
	InputAudioTranscription *transcription    `json:"input_audio_transcription,omitempty"`
	TurnDetection           json.RawMessage   `json:"turn_detection,omitempty"`
	Tools                   []json.RawMessage `json:"tools,omitempty"`
}

type transcription struct {
	Model string `json:"model"`
}

type item struct {
	Type    string    `json:"type"`
	Role    string    `json:"role"`
	Content []content `json:"content"`
}

type content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type responseOptions struct {
	Modalities []string `json:"modalities,omitempty"`
}

type serverEvent struct {
	Type       string       `json:"type"`
	Delta      string       `json:"delta"`
	Transcript string       `json:"transcript"`
	Error      *serverError `json:"error"`
	Choices    []choice     `json:"choices"`
}

type serverError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type choice struct {
	FinishReason string `json:"finish_reason"`
	Message      struct {
		Role    string `json:"role"`
		Content []struct {
			Text  string `json:"text,omitempty"`
			Audio *struct {
				Data string `json:"data"`
			} `json:"audio,omitempty"`
		} `json:"content"`
	} `json:"message"`
}
