// Command transcriptviewer tails the session Kafka topics and pushes every
// event to connected browsers over a WebSocket.
package main

import (
	"context"
	"embed"
	"encoding/json"
	"flag"
	"io/fs"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/segmentio/kafka-go"
	"github.com/tidwall/gjson"
)

//go:embed static/*
var staticFiles embed.FS

// Hub fans events out to browser connections.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func newHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]struct{})}
}

func (h *Hub) add(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	log.Printf("Client connected. Total: %d", n)
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		_ = conn.Close()
	}
	n := len(h.clients)
	h.mu.Unlock()
	log.Printf("Client disconnected. Total: %d", n)
}

func (h *Hub) broadcast(event json.RawMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, event); err != nil {
			log.Printf("Write error: %v", err)
			_ = conn.Close()
			delete(h.clients, conn)
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local dev tool
	},
}

func wsHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket upgrade error: %v", err)
			return
		}
		hub.add(conn)

		go func() {
			defer hub.remove(conn)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}

func consumeKafka(ctx context.Context, hub *Hub, brokers []string, topic string, since time.Duration) {
	// Partition reader without a consumer group works better through port-forwards.
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer reader.Close()

	if err := reader.SetOffsetAt(ctx, time.Now().Add(-since)); err != nil {
		log.Printf("Could not rewind %s: %v", topic, err)
	}
	log.Printf("Consuming from Kafka topic: %s partition 0 (last %v)", topic, since)

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("Kafka read error on %s: %v", topic, err)
			time.Sleep(time.Second)
			continue
		}
		if !gjson.ValidBytes(msg.Value) {
			log.Printf("Skipping non-JSON message on %s", topic)
			continue
		}

		fields := gjson.GetManyBytes(msg.Value, "eventType", "sessionId", "lines.#")
		log.Printf("Received %s for session %s (%d lines)", fields[0].Str, fields[1].Str, fields[2].Int())
		hub.broadcast(msg.Value)
	}
}

func main() {
	port := flag.String("port", "8081", "HTTP server port")
	brokers := flag.String("brokers", "localhost:9092", "Kafka brokers (comma-separated)")
	topicTranscripts := flag.String("topic-transcripts", "realtime.session.transcripts", "Transcript topic")
	topicSessions := flag.String("topic-sessions", "realtime.session.events", "Session lifecycle topic")
	since := flag.Duration("since", time.Hour, "How far back to replay")
	flag.Parse()

	hub := newHub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	brokerList := strings.Split(*brokers, ",")
	go consumeKafka(ctx, hub, brokerList, *topicTranscripts, *since)
	go consumeKafka(ctx, hub, brokerList, *topicSessions, *since)

	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		log.Fatalf("static files: %v", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.FS(staticFS)))
	mux.HandleFunc("/ws", wsHandler(hub))

	log.Printf("Transcript viewer on http://localhost:%s", *port)
	log.Printf("   Kafka brokers: %s", *brokers)
	log.Printf("   Topics: %s, %s", *topicTranscripts, *topicSessions)

	if err := http.ListenAndServe(":"+*port, mux); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
