// Command audioclient streams a PCM WAV file to a realtime session as
// telephony-style media frames and writes the AI's audio to a WAV file.
package main

import (
	"encoding/base64"
	"encoding/json"
	"flag"
	"io"
	"log"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"ai-realtime-bridge-service/internal/audio"
	"ai-realtime-bridge-service/internal/realtime/session"
)

// 100ms chunks paced in real time.
const chunkInterval = 100 * time.Millisecond

type mediaFrame struct {
	Event string `json:"event"`
	Media struct {
		Payload string `json:"payload"`
	} `json:"media"`
}

func main() {
	audioFile := flag.String("audio", "testdata/sample-24khz.wav", "Path to WAV file (16-bit mono)")
	outFile := flag.String("out", "reply.wav", "Where to write the AI's audio")
	serverAddr := flag.String("server", "ws://localhost:8080/v1/realtime", "Realtime endpoint")
	profile := flag.String("profile", "", "Profile name (server default when empty)")
	streamID := flag.String("stream", "audio-"+time.Now().Format("150405"), "Stream ID")
	linger := flag.Duration("linger", 5*time.Second, "How long to wait for replies after the file ends")
	flag.Parse()

	f, err := os.Open(*audioFile)
	if err != nil {
		log.Fatalf("Failed to open audio file: %v", err)
	}
	defer f.Close()

	format, err := audio.ReadWAVHeader(f)
	if err != nil {
		log.Fatalf("Failed to read WAV header: %v", err)
	}
	log.Printf("WAV file: channels=%d sampleRate=%d bitsPerSample=%d", format.Channels, format.SampleRate, format.BitsPerSample)
	if format.SampleRate != audio.RecordingFormat.SampleRate || format.Channels != 1 {
		log.Printf("Warning: expected 24kHz mono; the provider may reject this audio")
	}

	u, err := url.Parse(*serverAddr)
	if err != nil {
		log.Fatalf("Invalid server url: %v", err)
	}
	q := u.Query()
	if *profile != "" {
		q.Set("profile", *profile)
	}
	q.Set("stream_id", *streamID)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()
	log.Printf("Connected to %s", u.String())

	var (
		mu    sync.Mutex
		reply []byte
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				log.Printf("Session closed: %v", err)
				return
			}
			var env struct {
				Type string          `json:"type"`
				Data json.RawMessage `json:"Data"`
			}
			if json.Unmarshal(msg, &env) != nil {
				continue
			}
			switch env.Type {
			case session.TypeResponseAudioDelta:
				var d session.AudioDelta
				if json.Unmarshal(env.Data, &d) == nil {
					if pcm, err := base64.StdEncoding.DecodeString(d.Base64Payload); err == nil {
						mu.Lock()
						reply = append(reply, pcm...)
						mu.Unlock()
					}
				}
			case session.TypeInputAudioTranscriptionCompleted, session.TypeOutputAudioTranscriptionCompleted:
				var d session.TranscriptionData
				if json.Unmarshal(env.Data, &d) == nil {
					log.Printf("[%s] %s", d.Speaker, d.Transcript)
				}
			default:
				log.Printf("<- %s", env.Type)
			}
		}
	}()

	chunkSize := format.SampleRate * format.Channels * format.BitsPerSample / 8 / 10
	if chunkSize <= 0 {
		log.Fatalf("Unsupported WAV format: %+v", format)
	}
	chunk := make([]byte, chunkSize)
	var totalBytes int64
	var chunkNum int
	startTime := time.Now()

	for {
		n, err := io.ReadFull(f, chunk)
		if n > 0 {
			var frame mediaFrame
			frame.Event = "media"
			frame.Media.Payload = base64.StdEncoding.EncodeToString(chunk[:n])
			payload, _ := json.Marshal(frame)
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Fatalf("Failed to send frame: %v", err)
			}
			chunkNum++
			totalBytes += int64(n)
			if chunkNum%10 == 0 {
				log.Printf("Sent chunk %d (%d bytes total)", chunkNum, totalBytes)
			}
			time.Sleep(chunkInterval)
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			log.Fatalf("Failed to read audio: %v", err)
		}
	}
	log.Printf("Finished streaming: %d chunks, %d bytes in %v", chunkNum, totalBytes, time.Since(startTime))

	select {
	case <-done:
	case <-time.After(*linger):
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"),
			time.Now().Add(time.Second))
		select {
		case <-done:
		case <-time.After(5 * time.Second):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(reply) == 0 {
		log.Println("No audio received")
		return
	}
	if err := os.WriteFile(*outFile, audio.EncodeWAV(reply, audio.RecordingFormat), 0o644); err != nil {
		log.Fatalf("Failed to write %s: %v", *outFile, err)
	}
	log.Printf("Wrote %d bytes of reply audio to %s", len(reply), *outFile)
}
