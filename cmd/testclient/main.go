// Command testclient opens a realtime session and sends each stdin line as a
// text message, printing the transcripts that come back.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"ai-realtime-bridge-service/internal/realtime/session"
)

func main() {
	serverAddr := flag.String("server", "ws://localhost:8080/v1/realtime", "Realtime endpoint")
	profile := flag.String("profile", "", "Profile name (server default when empty)")
	streamID := flag.String("stream", "text-"+time.Now().Format("150405"), "Stream ID")
	flag.Parse()

	u, err := url.Parse(*serverAddr)
	if err != nil {
		log.Fatalf("invalid server url: %v", err)
	}
	q := u.Query()
	if *profile != "" {
		q.Set("profile", *profile)
	}
	q.Set("stream_id", *streamID)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("Connected to %s", u.String())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				log.Printf("Session closed: %v", err)
				return
			}
			printEnvelope(msg)
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		payload, _ := json.Marshal(map[string]string{"text": line})
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Fatalf("failed to send: %v", err)
		}
	}

	log.Println("stdin closed, ending session")
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"),
		time.Now().Add(time.Second))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
	}
}

func printEnvelope(msg []byte) {
	var env struct {
		Type string                    `json:"type"`
		Data session.TranscriptionData `json:"Data"`
	}
	if err := json.Unmarshal(msg, &env); err != nil {
		log.Printf("unparseable message: %s", msg)
		return
	}
	switch env.Type {
	case session.TypeResponseAudioDelta, session.TypeOutputAudioTranscriptionPartial:
		// Too chatty to print.
	case session.TypeInputAudioTranscriptionCompleted, session.TypeOutputAudioTranscriptionCompleted:
		log.Printf("[%s] %s", env.Data.Speaker, env.Data.Transcript)
	case session.TypeClientError:
		log.Printf("error: %s", msg)
	default:
		log.Printf("<- %s", env.Type)
	}
}
